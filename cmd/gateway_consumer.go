package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/clawgate/internal/bus"
	"github.com/nextlevelbuilder/clawgate/internal/gateway"
	"github.com/nextlevelbuilder/clawgate/pkg/protocol"
)

// consumeInbound drains admitted contexts from the bus and broadcasts each
// one to connected WebSocket clients as a message event. Platform-side
// redeliveries (reconnecting adapters, bridge replays) are collapsed by a
// short dedupe window keyed on channel + message id.
func consumeInbound(ctx context.Context, msgBus *bus.MessageBus, server *gateway.Server) {
	dedupe := bus.NewDedupeCache(5*time.Minute, 0)

	for {
		fc, ok := msgBus.ConsumeInbound(ctx)
		if !ok {
			return
		}

		key := ""
		if fc.MessageID != "" {
			key = fc.Channel + ":" + fc.MessageID
		}
		if dedupe.Seen(key) {
			slog.Debug("duplicate inbound dropped", "channel", fc.Channel, "message_id", fc.MessageID)
			continue
		}

		slog.Info("message dispatched",
			"channel", fc.Channel,
			"agent", fc.AgentID,
			"session", fc.SessionKey,
			"mentioned", fc.WasMentioned,
		)
		server.BroadcastEvent(*protocol.NewEvent(protocol.EventMessage, fc))
	}
}
