package dialogue

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yangruichen/cinechat/backend/internal/metrics"
	model "github.com/yangruichen/cinechat/backend/internal/model/dialogue"
	"github.com/yangruichen/cinechat/backend/internal/model/media"
	"github.com/yangruichen/cinechat/backend/internal/nlu"
)

var (
	ErrEmptyInput      = errors.New("dialogue: user input is required")
	ErrTurnInFlight    = errors.New("dialogue: a turn is already in flight for this session")
	ErrSessionNotFound = errors.New("dialogue: session not found")
	ErrTurnCancelled   = errors.New("dialogue: turn cancelled")
)

// Classifier is the intent matching surface the orchestrator depends on.
type Classifier interface {
	Classify(utterance string) nlu.Result
}

// Resolver turns a recognized intent into media candidates.
type Resolver interface {
	HasQuery(intent string) bool
	Resolve(ctx context.Context, intent string) ([]media.Candidate, error)
}

// EventType tags reveal events pushed to session subscribers.
type EventType string

const (
	EventChunk     EventType = "chunk"
	EventMedia     EventType = "media"
	EventDone      EventType = "done"
	EventCancelled EventType = "cancelled"
)

// Event is one update produced while a bot reply is being revealed.
type Event struct {
	Type  EventType         `json:"type"`
	Text  string            `json:"text,omitempty"`
	Media []media.Candidate `json:"media,omitempty"`
}

// TurnResult is the completed outcome of one user turn.
type TurnResult struct {
	Message    string            `json:"message"`
	Media      []media.Candidate `json:"media"`
	Intent     string            `json:"intent,omitempty"`
	Confidence float64           `json:"confidence"`
	Fallback   FallbackReason    `json:"fallback,omitempty"`
}

// session is the orchestrator's per-user state. All fields are guarded by
// Service.mu; messages are append-only and the only mutable message text is
// the bot reply currently being revealed.
type session struct {
	userID      string
	createdAt   time.Time
	messages    []model.Message
	results     []media.Candidate
	pending     bool
	reveal      *revealTask
	subscribers map[int64]chan Event
	nextSubID   int64
	closed      bool
}

// Service is the per-session dialogue state machine: Idle -> AwaitingResult
// -> Revealing -> Idle, serialized by the pending flag.
type Service struct {
	classifier Classifier
	resolver   Resolver
	threshold  float64
	chunkRunes int
	interval   time.Duration
	logger     *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	mu       sync.Mutex
	sessions map[string]*session
}

// Options tune orchestration behavior.
type Options struct {
	// Threshold is the minimum classification confidence before the intent
	// is acted on.
	Threshold float64
	// RevealChunkRunes and RevealInterval pace the incremental reveal. A
	// zero interval reveals the reply in one step.
	RevealChunkRunes int
	RevealInterval   time.Duration
	// RNG selects fallback phrasing; inject a seeded source in tests.
	RNG *rand.Rand
}

// NewService wires the orchestrator.
func NewService(classifier Classifier, resolver Resolver, opts Options, logger *zap.Logger) *Service {
	rng := opts.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	chunk := opts.RevealChunkRunes
	if chunk < 1 {
		chunk = 3
	}
	return &Service{
		classifier: classifier,
		resolver:   resolver,
		threshold:  opts.Threshold,
		chunkRunes: chunk,
		interval:   opts.RevealInterval,
		logger:     logger,
		rng:        rng,
		sessions:   make(map[string]*session),
	}
}

// SubmitTurn runs one full turn: commit the user message, classify, resolve,
// then reveal the reply. It blocks until the reveal completes or the turn is
// cancelled. A second turn while one is pending is rejected, never
// interleaved.
func (s *Service) SubmitTurn(ctx context.Context, userID, text string) (TurnResult, error) {
	text = strings.TrimSpace(text)
	if userID == "" || text == "" {
		return TurnResult{}, ErrEmptyInput
	}

	s.mu.Lock()
	sess := s.sessions[userID]
	if sess == nil {
		sess = &session{
			userID:      userID,
			createdAt:   time.Now().UTC(),
			subscribers: make(map[int64]chan Event),
		}
		s.sessions[userID] = sess
	}
	if sess.pending {
		s.mu.Unlock()
		metrics.TurnsTotal.WithLabelValues("rejected").Inc()
		return TurnResult{}, ErrTurnInFlight
	}
	// The user message commits synchronously, before any network call.
	sess.pending = true
	sess.messages = append(sess.messages, model.Message{
		ID:        uuid.NewString(),
		Sender:    model.SenderUser,
		Text:      text,
		TurnIndex: len(sess.messages),
		CreatedAt: time.Now().UTC(),
	})
	task := newRevealTask()
	sess.reveal = task
	s.mu.Unlock()

	classification := s.classifier.Classify(text)
	if classification.Intent != "" {
		metrics.ClassificationsTotal.WithLabelValues(classification.Intent).Inc()
	}

	reply, candidates, reason := s.planReply(ctx, classification)

	result, err := s.runReveal(ctx, sess, task, reply, candidates)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues("cancelled").Inc()
		return TurnResult{}, err
	}

	result.Intent = classification.Intent
	result.Confidence = classification.Confidence
	result.Fallback = reason
	if reason == "" {
		metrics.TurnsTotal.WithLabelValues("answered").Inc()
	} else {
		metrics.FallbacksTotal.WithLabelValues(string(reason)).Inc()
		metrics.TurnsTotal.WithLabelValues("fallback").Inc()
	}
	return result, nil
}

// planReply decides between the crafted answer and a fallback pool. Every
// branch yields non-empty reply text.
func (s *Service) planReply(ctx context.Context, classification nlu.Result) (string, []media.Candidate, FallbackReason) {
	if classification.Intent == "" || classification.Confidence < s.threshold {
		s.logger.Info("classification below threshold",
			zap.String("intent", classification.Intent),
			zap.Float64("confidence", classification.Confidence),
			zap.Float64("threshold", s.threshold))
		return s.pickFallback(FallbackLowConfidence), nil, FallbackLowConfidence
	}

	if !s.resolver.HasQuery(classification.Intent) {
		// Pure chat intent; the template is the whole reply.
		return classification.AnswerText, nil, ""
	}

	candidates, err := s.resolver.Resolve(ctx, classification.Intent)
	if err != nil {
		return s.pickFallback(FallbackCatalogFailure), nil, FallbackCatalogFailure
	}
	if len(candidates) == 0 {
		return s.pickFallback(FallbackEmptyResult), nil, FallbackEmptyResult
	}
	return classification.AnswerText, candidates, ""
}

// runReveal appends the bot message and fills it chunk by chunk. The bot
// message is mutable only for the duration of the reveal, then frozen.
func (s *Service) runReveal(ctx context.Context, sess *session, task *revealTask, reply string, candidates []media.Candidate) (TurnResult, error) {
	s.mu.Lock()
	if sess.closed {
		s.mu.Unlock()
		return TurnResult{}, ErrTurnCancelled
	}
	idx := len(sess.messages)
	sess.messages = append(sess.messages, model.Message{
		ID:        uuid.NewString(),
		Sender:    model.SenderBot,
		TurnIndex: idx,
		CreatedAt: time.Now().UTC(),
	})
	s.mu.Unlock()

	if !task.begin() {
		return TurnResult{}, ErrTurnCancelled
	}

	immediate := s.interval <= 0
	var ticker *time.Ticker
	if !immediate {
		ticker = time.NewTicker(s.interval)
		defer ticker.Stop()
	}

	for i, part := range chunks(reply, s.chunkRunes) {
		if !immediate && i > 0 {
			select {
			case <-ticker.C:
			case <-task.cancelCh:
				return TurnResult{}, ErrTurnCancelled
			case <-ctx.Done():
				// The caller went away; flush the rest without pacing so
				// session state stays consistent.
				immediate = true
			}
		} else {
			select {
			case <-task.cancelCh:
				return TurnResult{}, ErrTurnCancelled
			default:
			}
		}

		s.mu.Lock()
		if sess.closed {
			s.mu.Unlock()
			return TurnResult{}, ErrTurnCancelled
		}
		sess.messages[idx].Text += part
		s.mu.Unlock()
		s.broadcast(sess, Event{Type: EventChunk, Text: part})
	}

	if !task.finish() {
		return TurnResult{}, ErrTurnCancelled
	}

	if candidates == nil {
		candidates = []media.Candidate{}
	}

	s.mu.Lock()
	if sess.closed {
		s.mu.Unlock()
		return TurnResult{}, ErrTurnCancelled
	}
	// Reveal complete: freeze the message, clear the pending flag and swap
	// in the turn's result set. Candidates never enter message history.
	sess.pending = false
	sess.results = candidates
	s.mu.Unlock()

	s.broadcast(sess, Event{Type: EventMedia, Media: candidates})
	s.broadcast(sess, Event{Type: EventDone})

	return TurnResult{Message: reply, Media: candidates}, nil
}

// GetSession returns a copy of the user's conversation state.
func (s *Service) GetSession(userID string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}

	messages := make([]model.Message, len(sess.messages))
	copy(messages, sess.messages)
	// Deep-copy the candidates: callers annotate their copy with stored
	// feedback, and those writes must not reach the live session.
	results := make([]media.Candidate, len(sess.results))
	for i, candidate := range sess.results {
		results[i] = candidate.Clone()
	}

	return model.Session{
		UserID:      sess.userID,
		Messages:    messages,
		Results:     results,
		PendingTurn: sess.pending,
		CreatedAt:   sess.createdAt,
	}, nil
}

// ClearSession drops the user's conversation and cancels any in-flight
// reveal.
func (s *Service) ClearSession(userID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.sessions, userID)
	sess.closed = true
	task := sess.reveal
	// Notify and close under the lock; broadcast sends hold the same lock.
	for _, ch := range sess.subscribers {
		select {
		case ch <- Event{Type: EventCancelled}:
		default:
		}
		close(ch)
	}
	sess.subscribers = nil
	s.mu.Unlock()

	if task != nil {
		task.Cancel()
	}

	s.logger.Info("session cleared", zap.String("user_id", userID))
	return nil
}

// Subscribe registers for reveal events on the user's session, creating the
// session when needed. The returned cancel func must be called exactly once.
func (s *Service) Subscribe(userID string) (<-chan Event, func(), error) {
	if userID == "" {
		return nil, nil, ErrEmptyInput
	}

	s.mu.Lock()
	sess := s.sessions[userID]
	if sess == nil {
		sess = &session{
			userID:      userID,
			createdAt:   time.Now().UTC(),
			subscribers: make(map[int64]chan Event),
		}
		s.sessions[userID] = sess
	}
	id := sess.nextSubID
	sess.nextSubID++
	ch := make(chan Event, 64)
	sess.subscribers[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sess.closed || sess.subscribers == nil {
			return
		}
		if current, ok := sess.subscribers[id]; ok {
			delete(sess.subscribers, id)
			close(current)
		}
	}
	return ch, cancel, nil
}

// broadcast fans an event out to the session's subscribers. Slow consumers
// drop events rather than stall the reveal. Sends happen under the same lock
// that guards subscriber close, so a send can never hit a closed channel;
// they are non-blocking, so the lock is held only briefly.
func (s *Service) broadcast(sess *session, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.closed {
		return
	}
	for _, ch := range sess.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
