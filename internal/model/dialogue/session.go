package dialogue

import (
	"time"

	"github.com/yangruichen/cinechat/backend/internal/model/media"
)

// Session captures the conversation state for one user. History is
// append-only; Results holds the candidates of the most recent turn and is
// replaced wholesale, never merged.
type Session struct {
	UserID      string            `json:"userId"`
	Messages    []Message         `json:"messages"`
	Results     []media.Candidate `json:"results"`
	PendingTurn bool              `json:"pendingTurn"`
	CreatedAt   time.Time         `json:"createdAt"`
}
