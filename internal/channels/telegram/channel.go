// Package telegram is the Telegram channel adapter, connected via the Bot
// API using long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/clawgate/internal/admission"
	"github.com/nextlevelbuilder/clawgate/internal/bus"
	"github.com/nextlevelbuilder/clawgate/internal/channels"
	"github.com/nextlevelbuilder/clawgate/internal/config"
	"github.com/nextlevelbuilder/clawgate/internal/pairing"
)

// telegramMessageLimit is the Bot API max message length.
const telegramMessageLimit = 4096

// Channel connects to Telegram via the Bot API using long polling.
type Channel struct {
	*channels.BaseChannel
	bot      *telego.Bot
	cfg      *config.Config // live root config; reads see hot-reloaded values
	pairing  *pairing.Service
	patterns admission.PatternCache

	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New creates a new Telegram channel. pairingSvc may be nil (pairing
// policies then reject unknown senders without issuing codes).
func New(cfg *config.Config, msgBus *bus.MessageBus, pipe *admission.Pipeline, pairingSvc *pairing.Service) (*Channel, error) {
	tg := cfg.Channels.Telegram

	var opts []telego.BotOption
	if tg.Proxy != "" {
		proxyURL, parseErr := url.Parse(tg.Proxy)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", tg.Proxy, parseErr)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			},
		}))
	}

	bot, err := telego.NewBot(tg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Channel{
		BaseChannel: channels.NewBaseChannel("telegram", msgBus, pipe),
		bot:         bot,
		cfg:         cfg,
		pairing:     pairingSvc,
	}, nil
}

// account snapshots the live settings into the pipeline's account shape.
// Rebuilt per event so config hot reloads apply immediately.
func (c *Channel) account() admission.Account {
	tg := c.cfg.ChannelsSnapshot().Telegram

	patterns := tg.MentionPatterns
	if name := c.bot.Username(); name != "" {
		patterns = append(append([]string{}, patterns...), "(?i)@"+name+`\b`)
	}

	return admission.Account{
		Channel:  "telegram",
		Settings: tg.AccountSettings,
		Defaults: admission.ChannelDefaults{
			DMPolicy:       admission.DMPolicyPairing,
			GroupPolicy:    admission.GroupPolicyOpen,
			RequireMention: true,
			HistoryLimit:   admission.DefaultHistoryLimit,
		},
		MentionPatterns: c.patterns.Get(patterns),
		CommandPrefixes: tg.CommandPrefixes,
		OwnerIDs:        c.cfg.GatewaySnapshot().OwnerIDs,
	}
}

// Start begins long polling for Telegram updates.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting telegram bot (polling mode)")

	// Stop() cancels this context to cleanly shut down long polling.
	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout: 30,
		AllowedUpdates: []string{
			"message",
			"channel_post",
		},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	c.SetRunning(true)
	slog.Info("telegram bot connected", "username", c.bot.Username())

	// Register bot menu commands with retry.
	go func() {
		commands := DefaultMenuCommands()
		for attempt := 1; attempt <= 3; attempt++ {
			if err := c.SyncMenuCommands(pollCtx, commands); err != nil {
				slog.Warn("failed to sync telegram menu commands", "error", err, "attempt", attempt)
				if attempt < 3 {
					select {
					case <-pollCtx.Done():
						return
					case <-time.After(time.Duration(attempt*5) * time.Second):
					}
				}
			} else {
				slog.Info("telegram menu commands synced")
				return
			}
		}
	}()

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed")
					return
				}
				switch {
				case update.Message != nil:
					c.handleMessage(pollCtx, update.Message, false)
				case update.ChannelPost != nil:
					c.handleMessage(pollCtx, update.ChannelPost, true)
				default:
					slog.Debug("telegram update skipped (no message)", "update_id", update.UpdateID)
				}
			}
		}
	}()

	return nil
}

// Stop shuts down the Telegram bot by cancelling the long polling context
// and waiting for the polling goroutine to exit.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping telegram bot")
	c.SetRunning(false)

	if c.pollCancel != nil {
		c.pollCancel()
	}

	// Telegram holds a getUpdates lock until the poll request ends; wait so
	// a restarting instance can take over cleanly.
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
			slog.Info("telegram bot stopped")
		case <-time.After(10 * time.Second):
			slog.Warn("telegram polling goroutine did not exit within timeout")
		}
	}

	return nil
}

// Send delivers an outbound message, chunking to the Bot API limit and
// routing forum-topic replies to their thread.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	chatID, threadID, err := parseChatTarget(msg.ChatID)
	if err != nil {
		return fmt.Errorf("parse chat id %q: %w", msg.ChatID, err)
	}

	for _, chunk := range splitMessage(msg.Content, telegramMessageLimit) {
		out := tu.Message(tu.ID(chatID), chunk)
		if id := resolveThreadIDForSend(threadID); id > 0 {
			out.MessageThreadID = id
		}
		if _, err := c.bot.SendMessage(ctx, out); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

// parseChatTarget extracts the numeric chat ID and optional forum topic from
// a reply target. "-12345" → (-12345, 0); "-12345:topic:99" → (-12345, 99).
func parseChatTarget(target string) (chatID int64, threadID int, err error) {
	raw := target
	if idx := strings.Index(target, ":topic:"); idx > 0 {
		raw = target[:idx]
		fmt.Sscanf(target[idx+len(":topic:"):], "%d", &threadID)
	}
	_, err = fmt.Sscanf(raw, "%d", &chatID)
	return chatID, threadID, err
}

// telegramGeneralTopicID is the fixed topic ID for the "General" topic in
// forum supergroups.
const telegramGeneralTopicID = 1

// resolveThreadIDForSend returns the thread ID for Telegram send API calls.
// The General topic (1) must be omitted — Telegram rejects it with "thread
// not found".
func resolveThreadIDForSend(threadID int) int {
	if threadID == telegramGeneralTopicID {
		return 0
	}
	return threadID
}

// splitMessage breaks content into chunks of at most limit runes, preferring
// newline boundaries.
func splitMessage(content string, limit int) []string {
	if content == "" {
		return nil
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return []string{content}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = append(chunks, string(runes))
			break
		}
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return chunks
}
