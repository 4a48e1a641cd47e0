// Package bus is the in-process message bus between channel adapters, the
// admission pipeline's consumer loop, and the dispatch server.
package bus

import (
	"context"

	"github.com/nextlevelbuilder/clawgate/internal/admission"
)

// OutboundMessage is a reply to be delivered by a channel adapter.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Media    []MediaAttachment `json:"media,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"` // channel-specific metadata
}

// MediaAttachment represents a media file to be sent with a message.
type MediaAttachment struct {
	URL         string `json:"url"`                    // file path or URL
	ContentType string `json:"content_type,omitempty"` // MIME type (e.g. "image/jpeg")
	Caption     string `json:"caption,omitempty"`
}

// Event represents a server-side event to broadcast to WebSocket clients.
type Event struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventHandler handles a broadcast event.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast + subscription.
// Used by the gateway server to decouple from the concrete MessageBus.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}

// MessageRouter abstracts message routing between channel adapters and the
// dispatcher. Inbound traffic is already admitted — adapters publish only
// what the admission pipeline returned ADMIT for.
type MessageRouter interface {
	PublishInbound(msg admission.FinalizedContext)
	ConsumeInbound(ctx context.Context) (admission.FinalizedContext, bool)
	PublishOutbound(msg OutboundMessage)
	SubscribeOutbound(ctx context.Context) (OutboundMessage, bool)
}
