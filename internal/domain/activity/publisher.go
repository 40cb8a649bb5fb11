package activity

import "context"

// Publisher pushes realtime updates to connected clients. Delivery is best
// effort; the stored notification is the source of truth.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// RecipientTopic is the per-user channel a notification is pushed to
func RecipientTopic(prefix string, recipientID string) string {
	return prefix + "/users/" + recipientID + "/notifications"
}

// OrderTopic is the per-order channel activity records are pushed to
func OrderTopic(prefix string, orderID string) string {
	return prefix + "/orders/" + orderID + "/activity"
}
