// Package events provides a small in-process publish/subscribe bus.
//
// Components that need to notify each other without holding direct
// references (the quote wizard's notifications, consent updates) publish
// on a named topic; any number of independent subscribers receive the
// payload. Delivery is fire-and-forget: publishers never learn whether
// anyone listened.
package events

import "sync"

// Known topics.
const (
	TopicNotification  = "notification"
	TopicConsentUpdate = "consent-update"
)

// Handler receives a published payload.
type Handler func(payload any)

// Bus fans published payloads out to topic subscribers. Safe for
// concurrent use.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a topic. Handlers are invoked in
// subscription order, synchronously with Publish.
func (b *Bus) Subscribe(topic string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], fn)
}

// Publish delivers payload to every subscriber of topic. Publishing to a
// topic with no subscribers is a no-op.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	subs := make([]Handler, len(b.handlers[topic]))
	copy(subs, b.handlers[topic])
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(payload)
	}
}

// Notification is the payload published on TopicNotification: a transient,
// non-blocking message for the visitor.
type Notification struct {
	Level   string // "error" or "success"
	Message string
}

// NotifyError publishes an error notification.
func (b *Bus) NotifyError(message string) {
	b.Publish(TopicNotification, Notification{Level: "error", Message: message})
}

// NotifySuccess publishes a success notification.
func (b *Bus) NotifySuccess(message string) {
	b.Publish(TopicNotification, Notification{Level: "success", Message: message})
}
