package notify

import (
	"context"
	"fmt"

	"budgetwise/internal/amqp"
	"budgetwise/internal/core"
)

// ChatPublisher is the slice of the AMQP client the chat notifier needs.
type ChatPublisher interface {
	PublishChatMessage(ctx context.Context, msg *amqp.ChatMessage) error
}

// ChatNotifier queues chat notifications for the delivery worker. A nil
// publisher makes every call a no-op so chat stays optional.
type ChatNotifier struct {
	publisher ChatPublisher
}

func NewChatNotifier(publisher ChatPublisher) *ChatNotifier {
	return &ChatNotifier{publisher: publisher}
}

func (n *ChatNotifier) PostToFeed(ctx context.Context, budgetID int64, recipients []core.Recipient, subject, body string) error {
	if n.publisher == nil {
		return nil
	}
	ids := make([]int64, len(recipients))
	for i, r := range recipients {
		ids[i] = r.ID
	}
	if err := n.publisher.PublishChatMessage(ctx, amqp.NewFeedMessage(budgetID, ids, subject, body)); err != nil {
		return fmt.Errorf("queue feed message: %w", err)
	}
	return nil
}

func (n *ChatNotifier) DirectMessage(ctx context.Context, to core.Recipient, subject, body string) error {
	if n.publisher == nil {
		return nil
	}
	if err := n.publisher.PublishChatMessage(ctx, amqp.NewDirectMessage(to.ID, subject, body)); err != nil {
		return fmt.Errorf("queue direct message for %s: %w", to.Name, err)
	}
	return nil
}
