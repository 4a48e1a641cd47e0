package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nextlevelbuilder/clawgate/internal/admission"
)

const queueSize = 256

// MessageBus carries admitted inbound contexts to the consumer loop,
// outbound replies back to channel adapters, and broadcast events to
// WebSocket clients.
type MessageBus struct {
	inbound  chan admission.FinalizedContext
	outbound chan OutboundMessage

	mu          sync.RWMutex
	subscribers map[string]EventHandler
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:     make(chan admission.FinalizedContext, queueSize),
		outbound:    make(chan OutboundMessage, queueSize),
		subscribers: make(map[string]EventHandler),
	}
}

// PublishInbound enqueues an admitted context. When the queue is full the
// message is dropped with a warning — a stalled consumer must not wedge the
// channel adapters' receive loops.
func (b *MessageBus) PublishInbound(msg admission.FinalizedContext) {
	select {
	case b.inbound <- msg:
	default:
		slog.Warn("inbound queue full, dropping message", "channel", msg.Channel, "session", msg.SessionKey)
	}
}

// ConsumeInbound blocks until a message is available or ctx is done.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (admission.FinalizedContext, bool) {
	select {
	case <-ctx.Done():
		return admission.FinalizedContext{}, false
	case msg := <-b.inbound:
		return msg, true
	}
}

// PublishOutbound enqueues a reply for delivery.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	select {
	case b.outbound <- msg:
	default:
		slog.Warn("outbound queue full, dropping message", "channel", msg.Channel, "chat", msg.ChatID)
	}
}

// SubscribeOutbound blocks until an outbound message is available or ctx is done.
func (b *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case <-ctx.Done():
		return OutboundMessage{}, false
	case msg := <-b.outbound:
		return msg, true
	}
}

// Subscribe registers an event handler under id, replacing any previous one.
func (b *MessageBus) Subscribe(id string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[id] = handler
}

// Unsubscribe removes the handler registered under id.
func (b *MessageBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// Broadcast delivers an event to all subscribers synchronously, in
// registration-map order.
func (b *MessageBus) Broadcast(event Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.subscribers))
	for _, h := range b.subscribers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
