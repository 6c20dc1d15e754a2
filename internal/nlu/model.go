package nlu

import (
	"math"
	"sort"
)

// ModelVersion is bumped whenever the compiled shape changes; persisted
// artifacts with another version are retrained.
const ModelVersion = 1

// Model is the compiled classification artifact. It is immutable after
// Train and safe for unsynchronized concurrent reads.
type Model struct {
	Version int                 `json:"version"`
	Locale  string              `json:"locale"`
	IDF     map[string]float64  `json:"idf"`
	Intents []IntentVector      `json:"intents"`
	Exact   map[string]string   `json:"exact"`
	Answers map[string][]string `json:"answers"`
}

// IntentVector is the unit-length TF-IDF centroid for one intent. Intents
// are kept sorted by label so classification tie-breaks are deterministic.
type IntentVector struct {
	Label   string             `json:"label"`
	Weights map[string]float64 `json:"weights"`
}

// Train compiles the corpus into a Model. Training is pure: the same corpus
// always yields the same model.
func Train(corpus *Corpus) (*Model, error) {
	if corpus == nil || len(corpus.Examples) == 0 {
		return nil, corpusErrorf("nothing to train on")
	}

	// Term frequency per intent over the concatenation of its utterances.
	termFreq := make(map[string]map[string]float64)
	exact := make(map[string]string, len(corpus.Examples))
	for _, example := range corpus.Examples {
		tokens := Tokenize(example.Utterance)
		if len(tokens) == 0 {
			return nil, corpusErrorf("utterance %q has no usable tokens", example.Utterance)
		}

		freq := termFreq[example.Intent]
		if freq == nil {
			freq = make(map[string]float64)
			termFreq[example.Intent] = freq
		}
		for _, token := range tokens {
			freq[token]++
		}

		exact[joinTokens(tokens)] = example.Intent
	}

	answers := make(map[string][]string)
	for _, answer := range corpus.Answers {
		answers[answer.Intent] = append(answers[answer.Intent], answer.Template)
	}
	for label := range termFreq {
		if len(answers[label]) == 0 {
			return nil, corpusErrorf("intent %q has no answer templates", label)
		}
	}

	// Inverse document frequency with each intent as one document.
	docFreq := make(map[string]int)
	for _, freq := range termFreq {
		for term := range freq {
			docFreq[term]++
		}
	}
	intentCount := float64(len(termFreq))
	idf := make(map[string]float64, len(docFreq))
	for term, df := range docFreq {
		idf[term] = math.Log(1 + intentCount/float64(df))
	}

	labels := make([]string, 0, len(termFreq))
	for label := range termFreq {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	intents := make([]IntentVector, 0, len(labels))
	for _, label := range labels {
		weights := make(map[string]float64, len(termFreq[label]))
		for term, tf := range termFreq[label] {
			weights[term] = tf * idf[term]
		}
		normalize(weights)
		intents = append(intents, IntentVector{Label: label, Weights: weights})
	}

	return &Model{
		Version: ModelVersion,
		Locale:  corpus.Locale,
		IDF:     idf,
		Intents: intents,
		Exact:   exact,
		Answers: answers,
	}, nil
}

func joinTokens(tokens []string) string {
	joined := tokens[0]
	for _, token := range tokens[1:] {
		joined += " " + token
	}
	return joined
}

func normalize(weights map[string]float64) {
	var sum float64
	for _, w := range weights {
		sum += w * w
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for term := range weights {
		weights[term] /= norm
	}
}
