package amqp

import (
	"encoding/json"
	"time"
)

const (
	KindFeed   = "feed"
	KindDirect = "direct"
)

// ChatMessage is the payload queued for the chat delivery worker. It
// carries the rendered text; the worker only routes it.
type ChatMessage struct {
	Kind         string    `json:"kind"`
	BudgetID     int64     `json:"budget_id,omitempty"`
	RecipientIDs []int64   `json:"recipient_ids"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewFeedMessage builds a message addressed to a budget's activity feed.
func NewFeedMessage(budgetID int64, recipientIDs []int64, subject, body string) *ChatMessage {
	return &ChatMessage{
		Kind:         KindFeed,
		BudgetID:     budgetID,
		RecipientIDs: recipientIDs,
		Subject:      subject,
		Body:         body,
		Timestamp:    time.Now(),
	}
}

// NewDirectMessage builds a one-to-one message.
func NewDirectMessage(recipientID int64, subject, body string) *ChatMessage {
	return &ChatMessage{
		Kind:         KindDirect,
		RecipientIDs: []int64{recipientID},
		Subject:      subject,
		Body:         body,
		Timestamp:    time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChatMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func ChatMessageFromJSON(data []byte) (*ChatMessage, error) {
	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
