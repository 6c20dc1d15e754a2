package dialogue

import "time"

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one committed turn entry. Messages are immutable once frozen;
// the only exception is the bot message currently being revealed, whose Text
// grows until the reveal completes.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	TurnIndex int       `json:"turnIndex"`
	CreatedAt time.Time `json:"createdAt"`
}
