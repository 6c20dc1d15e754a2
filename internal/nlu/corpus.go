package nlu

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CorpusError marks malformed training data. It is raised at build time so
// the service never starts with a half-built model.
type CorpusError struct {
	Reason string
}

func (e *CorpusError) Error() string {
	return "corpus: " + e.Reason
}

func corpusErrorf(format string, args ...interface{}) error {
	return &CorpusError{Reason: fmt.Sprintf(format, args...)}
}

// TrainingExample binds one utterance to its intent label.
type TrainingExample struct {
	Locale    string
	Utterance string
	Intent    string
}

// AnswerTemplate is one reply phrasing for an intent. Intents with several
// templates get a random pick per response.
type AnswerTemplate struct {
	Locale   string
	Intent   string
	Template string
}

// Corpus is the declarative training set loaded at startup.
type Corpus struct {
	Locale   string
	Examples []TrainingExample
	Answers  []AnswerTemplate
}

// corpusFile is the on-disk YAML shape: utterances and answers grouped per
// intent to keep the file reviewable.
type corpusFile struct {
	Locale  string `yaml:"locale"`
	Intents []struct {
		Label      string   `yaml:"label"`
		Utterances []string `yaml:"utterances"`
		Answers    []string `yaml:"answers"`
	} `yaml:"intents"`
}

// LoadCorpus reads and validates the corpus file.
func LoadCorpus(path string) (*Corpus, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}

	var file corpusFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, corpusErrorf("parse %s: %v", path, err)
	}

	return buildCorpus(file)
}

func buildCorpus(file corpusFile) (*Corpus, error) {
	locale := strings.TrimSpace(file.Locale)
	if locale == "" {
		return nil, corpusErrorf("locale is required")
	}
	if len(file.Intents) == 0 {
		return nil, corpusErrorf("no intents defined")
	}

	corpus := &Corpus{Locale: locale}
	// Intent labels must not collide case-insensitively: a corpus holding
	// both "Greeting" and "greeting" is a data entry mistake.
	seenFold := make(map[string]string)
	seenUtterance := make(map[string]string)

	for _, intent := range file.Intents {
		label := strings.TrimSpace(intent.Label)
		if label == "" {
			return nil, corpusErrorf("intent with empty label")
		}

		fold := strings.ToLower(label)
		if prior, ok := seenFold[fold]; ok {
			return nil, corpusErrorf("intent label %q conflicts with %q", label, prior)
		}
		seenFold[fold] = label

		if len(intent.Utterances) == 0 {
			return nil, corpusErrorf("intent %q has no utterances", label)
		}
		if len(intent.Answers) == 0 {
			return nil, corpusErrorf("intent %q has no answer templates", label)
		}

		for _, utterance := range intent.Utterances {
			utterance = strings.TrimSpace(utterance)
			if utterance == "" {
				return nil, corpusErrorf("intent %q has an empty utterance", label)
			}
			normalized := strings.Join(Tokenize(utterance), " ")
			if normalized == "" {
				return nil, corpusErrorf("intent %q utterance %q has no usable tokens", label, utterance)
			}
			if prior, ok := seenUtterance[normalized]; ok && prior != label {
				return nil, corpusErrorf("utterance %q is claimed by both %q and %q", utterance, prior, label)
			}
			seenUtterance[normalized] = label

			corpus.Examples = append(corpus.Examples, TrainingExample{
				Locale:    locale,
				Utterance: utterance,
				Intent:    label,
			})
		}

		for _, answer := range intent.Answers {
			answer = strings.TrimSpace(answer)
			if answer == "" {
				return nil, corpusErrorf("intent %q has an empty answer template", label)
			}
			corpus.Answers = append(corpus.Answers, AnswerTemplate{
				Locale:   locale,
				Intent:   label,
				Template: answer,
			})
		}
	}

	return corpus, nil
}
