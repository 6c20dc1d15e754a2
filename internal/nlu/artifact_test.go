package nlu

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

// Persistence round-trip: a loaded artifact must classify exactly like the
// freshly trained model, for every utterance in the corpus.
func TestModelArtifactRoundTrip(t *testing.T) {
	corpus, model := trainFromFile(t, realCorpusPath)

	path := filepath.Join(t.TempDir(), "model.json")
	if err := SaveModel(path, model); err != nil {
		t.Fatalf("SaveModel err: %v", err)
	}

	loaded, err := LoadModel(path)
	if err != nil {
		t.Fatalf("LoadModel err: %v", err)
	}

	fresh, err := NewClassifier(model, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("NewClassifier err: %v", err)
	}
	restored, err := NewClassifier(loaded, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("NewClassifier err: %v", err)
	}

	for _, example := range corpus.Examples {
		a := fresh.Classify(example.Utterance)
		b := restored.Classify(example.Utterance)
		if a.Intent != b.Intent || a.Confidence != b.Confidence {
			t.Fatalf("round trip diverged for %q: (%q, %v) vs (%q, %v)",
				example.Utterance, a.Intent, a.Confidence, b.Intent, b.Confidence)
		}
	}
}

func TestLoadModelRejectsCorruptArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	if _, err := LoadModel(path); err == nil {
		t.Fatal("expected error for corrupt artifact")
	}
}

func TestLoadModelRejectsWrongVersion(t *testing.T) {
	_, model := trainFromFile(t, realCorpusPath)
	model.Version = ModelVersion + 1

	path := filepath.Join(t.TempDir(), "model.json")
	if err := SaveModel(path, model); err != nil {
		t.Fatalf("SaveModel err: %v", err)
	}

	if _, err := LoadModel(path); err == nil {
		t.Fatal("expected error for version mismatch")
	}
}

// A corrupt artifact must trigger a retrain, never a startup failure.
func TestBuildOrLoadRetrainsOnCorruptArtifact(t *testing.T) {
	corpus, err := LoadCorpus(realCorpusPath)
	if err != nil {
		t.Fatalf("LoadCorpus err: %v", err)
	}

	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	model, err := BuildOrLoad(corpus, path, zap.NewNop())
	if err != nil {
		t.Fatalf("BuildOrLoad err: %v", err)
	}
	if len(model.Intents) == 0 {
		t.Fatal("expected a retrained model")
	}

	// The retrained model is persisted back and loads cleanly next time.
	if _, err := LoadModel(path); err != nil {
		t.Fatalf("expected rewritten artifact to load, got %v", err)
	}
}

func TestBuildOrLoadFirstBuildPersists(t *testing.T) {
	corpus, err := LoadCorpus(realCorpusPath)
	if err != nil {
		t.Fatalf("LoadCorpus err: %v", err)
	}

	path := filepath.Join(t.TempDir(), "nested", "model.json")
	if _, err := BuildOrLoad(corpus, path, zap.NewNop()); err != nil {
		t.Fatalf("BuildOrLoad err: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected persisted artifact: %v", err)
	}
}
