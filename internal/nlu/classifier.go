package nlu

import (
	"errors"
	"math"
	"math/rand"
	"sync"
)

// ErrNoModel is returned when the classifier is used before a model exists.
var ErrNoModel = errors.New("nlu: no compiled model")

// Result is produced fresh per classification and never persisted. The
// classifier always reports its best candidate; deciding whether the
// confidence is good enough is the caller's job.
type Result struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	AnswerText string  `json:"answerText"`
}

// Classifier pairs the compiled model with the answer-selection RNG. The
// model is read-only; only the RNG needs locking.
type Classifier struct {
	model *Model

	mu  sync.Mutex
	rng *rand.Rand
}

// NewClassifier wraps a compiled model. The RNG seeds answer template
// selection and must be injected so tests stay deterministic.
func NewClassifier(model *Model, rng *rand.Rand) (*Classifier, error) {
	if model == nil {
		return nil, ErrNoModel
	}
	if rng == nil {
		return nil, errors.New("nlu: rng is required")
	}
	return &Classifier{model: model, rng: rng}, nil
}

// Model exposes the compiled artifact, e.g. for persisting.
func (c *Classifier) Model() *Model {
	return c.model
}

// Classify scores the utterance against every intent and returns the best
// match with a confidence in [0,1]. The caller guarantees non-empty input.
func (c *Classifier) Classify(utterance string) Result {
	tokens := Tokenize(utterance)
	if len(tokens) == 0 {
		return Result{}
	}

	// Verbatim training sentences match their own intent outright.
	if label, ok := c.model.Exact[joinTokens(tokens)]; ok {
		return Result{Intent: label, Confidence: 1, AnswerText: c.pickAnswer(label)}
	}

	query := make(map[string]float64)
	for _, token := range tokens {
		if idf, ok := c.model.IDF[token]; ok {
			query[token] += idf
		}
	}
	if len(query) == 0 {
		return Result{}
	}
	normalize(query)

	var (
		bestLabel string
		bestScore float64
	)
	// Intents are sorted by label, so on a tie the lexicographically
	// smaller intent wins and classification stays deterministic.
	for _, intent := range c.model.Intents {
		var score float64
		for term, weight := range query {
			score += weight * intent.Weights[term]
		}
		if score > bestScore {
			bestScore = score
			bestLabel = intent.Label
		}
	}

	if bestLabel == "" {
		return Result{}
	}

	confidence := math.Min(1, math.Max(0, bestScore))
	return Result{Intent: bestLabel, Confidence: confidence, AnswerText: c.pickAnswer(bestLabel)}
}

// pickAnswer selects one template for the intent, uniformly at random when
// several exist.
func (c *Classifier) pickAnswer(label string) string {
	templates := c.model.Answers[label]
	switch len(templates) {
	case 0:
		return ""
	case 1:
		return templates[0]
	}

	c.mu.Lock()
	idx := c.rng.Intn(len(templates))
	c.mu.Unlock()
	return templates[idx]
}
