package nlu

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// SaveModel persists the compiled model as a JSON artifact.
func SaveModel(path string, model *Model) error {
	if model == nil {
		return ErrNoModel
	}

	raw, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("encode model artifact: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create artifact directory: %w", err)
		}
	}

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write model artifact: %w", err)
	}
	return nil
}

// LoadModel reads a persisted artifact and checks it is structurally sound.
// Any problem is an error; callers retrain instead of failing the process.
func LoadModel(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}

	var model Model
	if err := json.Unmarshal(raw, &model); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}

	if err := validateModel(&model); err != nil {
		return nil, err
	}
	return &model, nil
}

func validateModel(model *Model) error {
	if model.Version != ModelVersion {
		return fmt.Errorf("model artifact version %d, want %d", model.Version, ModelVersion)
	}
	if model.Locale == "" {
		return fmt.Errorf("model artifact missing locale")
	}
	if len(model.IDF) == 0 || len(model.Intents) == 0 {
		return fmt.Errorf("model artifact is empty")
	}
	for _, intent := range model.Intents {
		if intent.Label == "" || len(intent.Weights) == 0 {
			return fmt.Errorf("model artifact has malformed intent vector")
		}
		if len(model.Answers[intent.Label]) == 0 {
			return fmt.Errorf("model artifact intent %q has no answers", intent.Label)
		}
	}
	return nil
}

// BuildOrLoad returns the persisted model when the artifact is valid and
// retrains from the corpus otherwise. First builds (and rebuilds after a
// corrupt artifact) write the artifact back.
func BuildOrLoad(corpus *Corpus, artifactPath string, logger *zap.Logger) (*Model, error) {
	if model, err := LoadModel(artifactPath); err == nil {
		logger.Info("loaded intent model artifact",
			zap.String("path", artifactPath),
			zap.Int("intents", len(model.Intents)))
		return model, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("intent model artifact unusable, retraining", zap.Error(err))
	}

	model, err := Train(corpus)
	if err != nil {
		return nil, err
	}

	if err := SaveModel(artifactPath, model); err != nil {
		logger.Warn("failed to persist intent model artifact", zap.Error(err))
	} else {
		logger.Info("trained and persisted intent model",
			zap.String("path", artifactPath),
			zap.Int("intents", len(model.Intents)),
			zap.Int("examples", len(corpus.Examples)))
	}
	return model, nil
}
