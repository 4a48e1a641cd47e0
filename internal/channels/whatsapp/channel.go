// Package whatsapp connects to a WhatsApp bridge over WebSocket. The bridge
// (e.g. whatsapp-web.js based) speaks the actual WhatsApp protocol; this
// adapter exchanges JSON frames with it and feeds the admission pipeline.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/clawgate/internal/admission"
	"github.com/nextlevelbuilder/clawgate/internal/bus"
	"github.com/nextlevelbuilder/clawgate/internal/channels"
	"github.com/nextlevelbuilder/clawgate/internal/config"
	"github.com/nextlevelbuilder/clawgate/internal/pairing"
	"github.com/nextlevelbuilder/clawgate/internal/sessions"
)

// bridgeFrame is the JSON envelope exchanged with the bridge.
type bridgeFrame struct {
	Type     string   `json:"type"`
	From     string   `json:"from,omitempty"`
	FromName string   `json:"from_name,omitempty"`
	Chat     string   `json:"chat,omitempty"`
	To       string   `json:"to,omitempty"`
	Content  string   `json:"content,omitempty"`
	ID       string   `json:"id,omitempty"`
	Media    []string `json:"media,omitempty"`
	FromMe   bool     `json:"from_me,omitempty"`
	QuotedID string   `json:"quoted_id,omitempty"`
	QuotedBy string   `json:"quoted_by,omitempty"`
	Mentions []string `json:"mentions,omitempty"`
	SelfID   string   `json:"self_id,omitempty"`
	TsMs     int64    `json:"ts_ms,omitempty"`
}

// Channel connects to a WhatsApp bridge via WebSocket.
type Channel struct {
	*channels.BaseChannel
	cfg     *config.Config
	pairing *pairing.Service

	patterns admission.PatternCache
	limiter  *channels.InboundRateLimiter

	mu     sync.Mutex
	conn   *websocket.Conn
	selfID string // bridge-reported own JID, set by the hello frame

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new WhatsApp channel. pairingSvc may be nil.
func New(cfg *config.Config, msgBus *bus.MessageBus, pipe *admission.Pipeline, pairingSvc *pairing.Service) (*Channel, error) {
	if cfg.Channels.WhatsApp.BridgeURL == "" {
		return nil, fmt.Errorf("whatsapp bridge_url is required")
	}

	return &Channel{
		BaseChannel: channels.NewBaseChannel("whatsapp", msgBus, pipe),
		cfg:         cfg,
		pairing:     pairingSvc,
		limiter:     channels.NewInboundRateLimiter(time.Minute, 30),
	}, nil
}

// account snapshots the live settings into the pipeline's account shape.
func (c *Channel) account() admission.Account {
	wa := c.cfg.ChannelsSnapshot().WhatsApp

	return admission.Account{
		Channel:  "whatsapp",
		Settings: wa.AccountSettings,
		Defaults: admission.ChannelDefaults{
			DMPolicy:       admission.DMPolicyPairing,
			GroupPolicy:    admission.GroupPolicyOpen,
			RequireMention: true,
			HistoryLimit:   admission.DefaultHistoryLimit,
		},
		MentionPatterns: c.patterns.Get(wa.MentionPatterns),
		CommandPrefixes: wa.CommandPrefixes,
		OwnerIDs:        c.cfg.GatewaySnapshot().OwnerIDs,
	}
}

// Start connects to the WhatsApp bridge WebSocket and begins listening.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting whatsapp channel", "bridge_url", c.cfg.ChannelsSnapshot().WhatsApp.BridgeURL)

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		// The reconnect loop keeps trying; startup does not fail hard.
		slog.Warn("initial whatsapp bridge connection failed, will retry", "error", err)
	}

	go c.listenLoop()

	c.SetRunning(true)
	return nil
}

// Stop gracefully shuts down the WhatsApp channel.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping whatsapp channel")

	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.SetRunning(false)
	return nil
}

// Send delivers an outbound message to the WhatsApp bridge.
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	return c.writeFrame(bridgeFrame{
		Type:    "message",
		To:      msg.ChatID,
		Content: msg.Content,
	})
}

func (c *Channel) writeFrame(frame bridgeFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("whatsapp bridge not connected")
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal whatsapp frame: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send whatsapp frame: %w", err)
	}
	return nil
}

// connect establishes the WebSocket connection to the bridge.
func (c *Channel) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	bridgeURL := c.cfg.ChannelsSnapshot().WhatsApp.BridgeURL
	conn, _, err := dialer.Dial(bridgeURL, nil)
	if err != nil {
		return fmt.Errorf("dial whatsapp bridge %s: %w", bridgeURL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	slog.Info("whatsapp bridge connected", "url", bridgeURL)
	return nil
}

// listenLoop reads frames from the bridge with automatic reconnection and
// exponential backoff capped at 30s.
func (c *Channel) listenLoop() {
	backoff := time.Second

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			slog.Info("attempting whatsapp bridge reconnect", "backoff", backoff)

			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}

			if err := c.connect(); err != nil {
				slog.Warn("whatsapp bridge reconnect failed", "error", err)
				backoff = min(backoff*2, 30*time.Second)
				continue
			}

			backoff = time.Second
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("whatsapp read error, will reconnect", "error", err)

			c.mu.Lock()
			if c.conn != nil {
				_ = c.conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()
			continue
		}

		var frame bridgeFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Warn("invalid whatsapp bridge frame", "error", err)
			continue
		}

		switch frame.Type {
		case "hello":
			c.mu.Lock()
			c.selfID = frame.SelfID
			c.mu.Unlock()
			slog.Info("whatsapp bridge identified", "self_id", frame.SelfID)
		case "message":
			c.handleIncoming(frame)
		}
	}
}

// handleIncoming normalizes one bridge message and runs it through the
// admission pipeline.
func (c *Channel) handleIncoming(frame bridgeFrame) {
	if frame.From == "" {
		return
	}

	// A flaky bridge can replay bursts; per-sender rate limiting keeps a
	// misbehaving peer from flooding the pipeline.
	if !c.limiter.Allow(frame.From) {
		slog.Warn("whatsapp sender rate limited", "sender", frame.From)
		return
	}

	ev := c.buildEvent(frame)

	slog.Debug("whatsapp message received",
		"sender", ev.SenderID,
		"chat", ev.PeerID,
		"kind", string(ev.PeerKind),
		"preview", channels.Truncate(ev.RawText, 60),
	)

	hooks := admission.AdapterHooks{
		SendPairingReply: func(_ context.Context, code string) error {
			return c.sendPairingReply(ev, code)
		},
	}

	c.HandleEvent(c.ctx, c.account(), ev, hooks)
}

// buildEvent maps a bridge frame onto the neutral admission event. WhatsApp
// group chats carry a JID ending in "@g.us".
func (c *Channel) buildEvent(frame bridgeFrame) admission.Event {
	chatID := frame.Chat
	if chatID == "" {
		chatID = frame.From
	}

	kind := sessions.PeerDirect
	if strings.HasSuffix(chatID, "@g.us") {
		kind = sessions.PeerGroup
	}

	c.mu.Lock()
	selfID := c.selfID
	c.mu.Unlock()

	content := frame.Content
	for _, path := range frame.Media {
		if content != "" {
			content += "\n"
		}
		content += fmt.Sprintf("[attachment: %s]", path)
	}

	ev := admission.Event{
		Channel:       "whatsapp",
		AccountID:     c.cfg.ChannelsSnapshot().WhatsApp.EffectiveAccountID(),
		PeerKind:      kind,
		PeerID:        chatID,
		SenderID:      frame.From,
		SenderDisplay: frame.FromName,
		RawText:       content,
		MessageID:     frame.ID,
		TimestampMs:   frame.TsMs,
		FromSelf:      frame.FromMe || (selfID != "" && frame.From == selfID),
	}

	for _, jid := range frame.Mentions {
		ev.HasAnyMention = true
		if selfID != "" && jid == selfID {
			ev.ExplicitMention = true
		}
	}
	if frame.QuotedBy != "" {
		ev.ReplyToAuthorID = frame.QuotedBy
		ev.ReplyToSelf = selfID != "" && frame.QuotedBy == selfID
	}

	ev.Metadata = map[string]string{}
	if frame.ID != "" {
		ev.Metadata["message_id"] = frame.ID
	}
	return ev
}

// sendPairingReply delivers the pairing code over the bridge, debounced per
// subject.
func (c *Channel) sendPairingReply(ev admission.Event, code string) error {
	subject := ev.SenderID
	if ev.PeerKind.IsGroupLike() {
		subject = "group:" + ev.PeerID
	}
	if c.pairing != nil && !c.pairing.ShouldNotify("whatsapp", subject) {
		slog.Debug("pairing reply suppressed by debounce", "subject", subject)
		return nil
	}

	text := fmt.Sprintf("ClawGate: access not configured.\n\n"+
		"Your WhatsApp ID: %s\n\n"+
		"Pairing code: %s\n\n"+
		"Ask the bot owner to approve with:\n"+
		"  clawgate pairing approve %s",
		ev.SenderID, code, code)

	return c.writeFrame(bridgeFrame{
		Type:    "message",
		To:      ev.PeerID,
		Content: text,
	})
}
