package dialogue

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/yangruichen/cinechat/backend/internal/model/media"
	"github.com/yangruichen/cinechat/backend/internal/nlu"
	dialogueservice "github.com/yangruichen/cinechat/backend/internal/service/dialogue"
	feedbackservice "github.com/yangruichen/cinechat/backend/internal/service/feedback"
)

type stubClassifier struct {
	result nlu.Result
}

func (s *stubClassifier) Classify(string) nlu.Result { return s.result }

type stubResolver struct {
	candidates []media.Candidate
}

func (s *stubResolver) HasQuery(intent string) bool { return strings.HasPrefix(intent, "recommend_") }

func (s *stubResolver) Resolve(context.Context, string) ([]media.Candidate, error) {
	return s.candidates, nil
}

func newTestRouter(t *testing.T, classifier dialogueservice.Classifier, resolver dialogueservice.Resolver) (chi.Router, *feedbackservice.Store) {
	t.Helper()

	svc := dialogueservice.NewService(classifier, resolver, dialogueservice.Options{
		Threshold:        0.55,
		RevealChunkRunes: 3,
		RNG:              rand.New(rand.NewSource(1)),
	}, zap.NewNop())

	store, err := feedbackservice.NewStore(filepath.Join(t.TempDir(), "feedback.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore err: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	r := chi.NewRouter()
	New(svc, store, zap.NewNop()).RegisterRoutes(r)
	return r, store
}

func postTurn(t *testing.T, router chi.Router, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/dialogue", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleTurnReturnsReplyAndMedia(t *testing.T) {
	classifier := &stubClassifier{result: nlu.Result{
		Intent:     "recommend_action",
		Confidence: 0.9,
		AnswerText: "Here you go:",
	}}
	resolver := &stubResolver{candidates: []media.Candidate{
		{ID: 10, MediaType: media.TypeMovie, Title: "Heat"},
	}}
	router, _ := newTestRouter(t, classifier, resolver)

	rec := postTurn(t, router, `{"userInput":"find me an action movie","userId":"u1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var reply struct {
		Message string            `json:"message"`
		Media   []media.Candidate `json:"media"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Message != "Here you go:" {
		t.Fatalf("unexpected message %q", reply.Message)
	}
	if len(reply.Media) != 1 || reply.Media[0].Title != "Heat" {
		t.Fatalf("unexpected media %+v", reply.Media)
	}
}

// A rejected request must not leave a half-committed session behind.
func TestHandleTurnMissingInputCommitsNothing(t *testing.T) {
	router, _ := newTestRouter(t, &stubClassifier{}, &stubResolver{})

	for _, body := range []string{
		`{"userId":"u1"}`,
		`{"userInput":"   ","userId":"u1"}`,
		`{"userInput":"hello"}`,
		`not json`,
	} {
		rec := postTurn(t, router, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/dialogue/u1/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("history status = %d, want 404 for uncommitted session", rec.Code)
	}
}

func TestHandleTurnAcceptsNumericUserID(t *testing.T) {
	classifier := &stubClassifier{result: nlu.Result{Intent: "greeting", Confidence: 1, AnswerText: "Hey!"}}
	router, _ := newTestRouter(t, classifier, &stubResolver{})

	rec := postTurn(t, router, `{"userInput":"hello","userId":42}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/dialogue/42/history", nil)
	histRec := httptest.NewRecorder()
	router.ServeHTTP(histRec, req)
	if histRec.Code != http.StatusOK {
		t.Fatalf("history status = %d for numeric user id", histRec.Code)
	}
}

func TestHandleHistoryAnnotatesStoredFeedback(t *testing.T) {
	classifier := &stubClassifier{result: nlu.Result{
		Intent:     "recommend_action",
		Confidence: 0.9,
		AnswerText: "Here:",
	}}
	resolver := &stubResolver{candidates: []media.Candidate{
		{ID: 10, MediaType: media.TypeMovie, Title: "Heat"},
		{ID: 11, MediaType: media.TypeMovie, Title: "Ronin"},
	}}
	router, store := newTestRouter(t, classifier, resolver)

	if rec := postTurn(t, router, `{"userInput":"action please","userId":"u1"}`); rec.Code != http.StatusOK {
		t.Fatalf("turn status = %d", rec.Code)
	}
	if err := store.Record(context.Background(), "u1", 10, media.TypeMovie, media.FeedbackLike); err != nil {
		t.Fatalf("Record err: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/dialogue/u1/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}

	var session struct {
		Messages []struct {
			Sender string `json:"sender"`
			Text   string `json:"text"`
		} `json:"messages"`
		Results []media.Candidate `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if len(session.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(session.Messages))
	}
	if len(session.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(session.Results))
	}
	if session.Results[0].Feedback == nil || *session.Results[0].Feedback != media.FeedbackLike {
		t.Fatalf("liked item not annotated: %+v", session.Results[0])
	}
	if session.Results[1].Feedback != nil {
		t.Fatalf("unrated item must stay unannotated: %+v", session.Results[1])
	}
}

func TestHandleClear(t *testing.T) {
	classifier := &stubClassifier{result: nlu.Result{Intent: "greeting", Confidence: 1, AnswerText: "Hey!"}}
	router, _ := newTestRouter(t, classifier, &stubResolver{})

	if rec := postTurn(t, router, `{"userInput":"hello","userId":"u1"}`); rec.Code != http.StatusOK {
		t.Fatalf("turn status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/dialogue/u1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d, want 204", rec.Code)
	}

	// Clearing again reports the session is gone.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/dialogue/u1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second clear status = %d, want 404", rec.Code)
	}
}

func TestUserIDUnmarshal(t *testing.T) {
	cases := []struct {
		raw  string
		want userID
	}{
		{`"abc"`, "abc"},
		{`"  padded  "`, "padded"},
		{`42`, "42"},
	}
	for _, tc := range cases {
		var got userID
		if err := json.Unmarshal([]byte(tc.raw), &got); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("unmarshal %s = %q, want %q", tc.raw, got, tc.want)
		}
	}

	var got userID
	if err := json.Unmarshal([]byte(`{"nested":true}`), &got); err == nil {
		t.Fatal("object form must be rejected")
	}
}
