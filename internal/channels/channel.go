// Package channels provides the channel adapter layer. Adapters connect
// external platforms (Telegram, Discord, WhatsApp) to the gateway: they
// normalize native updates into admission events, run the shared admission
// pipeline, and publish admitted contexts on the message bus.
//
// Adapters contain no policy logic of their own — everything that decides
// whether a message is answered lives in internal/admission.
package channels

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/clawgate/internal/admission"
	"github.com/nextlevelbuilder/clawgate/internal/bus"
)

// InternalChannels are system channels excluded from outbound dispatch.
var InternalChannels = map[string]bool{
	"cli":    true,
	"system": true,
}

// IsInternalChannel checks if a channel name is internal.
func IsInternalChannel(name string) bool {
	return InternalChannels[name]
}

// Channel defines the interface that all channel adapters must satisfy.
type Channel interface {
	// Name returns the channel identifier (e.g., "telegram", "discord").
	Name() string

	// Start begins listening for messages. Should be non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the channel.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning returns whether the channel is actively processing messages.
	IsRunning() bool
}

// BaseChannel provides shared functionality for all channel adapters.
// Adapter implementations embed this struct.
type BaseChannel struct {
	name     string
	bus      *bus.MessageBus
	pipeline *admission.Pipeline
	running  bool
}

// NewBaseChannel creates a new BaseChannel with the given parameters.
func NewBaseChannel(name string, msgBus *bus.MessageBus, pipeline *admission.Pipeline) *BaseChannel {
	return &BaseChannel{
		name:     name,
		bus:      msgBus,
		pipeline: pipeline,
	}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running = running }

// Bus returns the message bus reference.
func (c *BaseChannel) Bus() *bus.MessageBus { return c.bus }

// Pipeline returns the shared admission pipeline.
func (c *BaseChannel) Pipeline() *admission.Pipeline { return c.pipeline }

// HandleEvent runs the admission pipeline for a normalized event and
// publishes the finalized context when admitted. This is the single entry
// point adapters call for every inbound update.
func (c *BaseChannel) HandleEvent(ctx context.Context, acct admission.Account, ev admission.Event, hooks admission.AdapterHooks) admission.Outcome {
	out := c.pipeline.Process(ctx, acct, ev, hooks)
	if out.Decision == admission.DecisionAdmit && out.Context != nil {
		c.bus.PublishInbound(*out.Context)
	}
	return out
}

// Truncate shortens a string to maxLen, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// LogStartupPolicy emits the one-line policy summary adapters log on start,
// so an operator can see at a glance why a channel stays quiet.
func LogStartupPolicy(name string, policy admission.Resolved) {
	slog.Info("channel policy",
		"channel", name,
		"dm_policy", string(policy.DMPolicy),
		"group_policy", string(policy.GroupPolicy),
		"require_mention", policy.RequireMention,
		"allow_from", len(policy.AllowFrom),
	)
}
