package feedback

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/yangruichen/cinechat/backend/internal/model/media"
	feedbackservice "github.com/yangruichen/cinechat/backend/internal/service/feedback"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()

	store, err := feedbackservice.NewStore(filepath.Join(t.TempDir(), "feedback.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore err: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	r := chi.NewRouter()
	New(store, zap.NewNop()).RegisterRoutes(r)
	return r
}

func postFeedback(t *testing.T, router chi.Router, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/feedback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func listFeedback(t *testing.T, router chi.Router, user string) map[int64]media.Feedback {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/feedback/"+user, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var reply struct {
		Feedback map[int64]media.Feedback `json:"feedback"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode list reply: %v", err)
	}
	return reply.Feedback
}

func TestRecordThenList(t *testing.T) {
	router := newTestRouter(t)

	rec := postFeedback(t, router, `{"userId":"u1","mediaId":603,"mediaType":"movie","value":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("record status = %d, body = %s", rec.Code, rec.Body.String())
	}

	stored := listFeedback(t, router, "u1")
	if got, ok := stored[603]; !ok || got != media.FeedbackLike {
		t.Fatalf("stored = %v, want like for 603", stored)
	}
}

// The newest verdict per (user, media) pair wins.
func TestRecordOverwritesPreviousValue(t *testing.T) {
	router := newTestRouter(t)

	if rec := postFeedback(t, router, `{"userId":"u1","mediaId":603,"mediaType":"movie","value":1}`); rec.Code != http.StatusOK {
		t.Fatalf("like status = %d", rec.Code)
	}
	if rec := postFeedback(t, router, `{"userId":"u1","mediaId":603,"mediaType":"movie","value":0}`); rec.Code != http.StatusOK {
		t.Fatalf("dislike status = %d", rec.Code)
	}

	stored := listFeedback(t, router, "u1")
	if got := stored[603]; got != media.FeedbackDislike {
		t.Fatalf("stored value = %v, want dislike", got)
	}
}

func TestRecordRejectsBadPayloads(t *testing.T) {
	router := newTestRouter(t)

	cases := []string{
		`not json`,
		`{"mediaId":603,"mediaType":"movie","value":1}`,
		`{"userId":"u1","mediaType":"movie","value":1}`,
		`{"userId":"u1","mediaId":603,"mediaType":"book","value":1}`,
		`{"userId":"u1","mediaId":603,"mediaType":"movie","value":2}`,
	}
	for _, body := range cases {
		if rec := postFeedback(t, router, body); rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestListEmptyUser(t *testing.T) {
	router := newTestRouter(t)

	stored := listFeedback(t, router, "nobody")
	if len(stored) != 0 {
		t.Fatalf("expected empty feedback, got %v", stored)
	}
}
