// Package discord connects Discord guilds and DMs to the admission pipeline
// via the gateway websocket API.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/clawgate/internal/admission"
	"github.com/nextlevelbuilder/clawgate/internal/bus"
	"github.com/nextlevelbuilder/clawgate/internal/channels"
	"github.com/nextlevelbuilder/clawgate/internal/config"
	"github.com/nextlevelbuilder/clawgate/internal/pairing"
)

// discordMessageLimit is the Discord max message length.
const discordMessageLimit = 2000

// Channel connects to Discord via the Bot API using gateway events.
type Channel struct {
	*channels.BaseChannel
	session *discordgo.Session
	cfg     *config.Config
	pairing *pairing.Service

	patterns admission.PatternCache

	botUserID   string // populated on start
	botUsername string
}

// New creates a new Discord channel. pairingSvc may be nil.
func New(cfg *config.Config, msgBus *bus.MessageBus, pipe *admission.Pipeline, pairingSvc *pairing.Service) (*Channel, error) {
	session, err := discordgo.New("Bot " + cfg.Channels.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &Channel{
		BaseChannel: channels.NewBaseChannel("discord", msgBus, pipe),
		session:     session,
		cfg:         cfg,
		pairing:     pairingSvc,
	}, nil
}

// account snapshots the live settings into the pipeline's account shape.
func (c *Channel) account() admission.Account {
	dc := c.cfg.ChannelsSnapshot().Discord

	patterns := dc.MentionPatterns
	if c.botUsername != "" {
		patterns = append(append([]string{}, patterns...), "(?i)@"+c.botUsername+`\b`)
	}

	return admission.Account{
		Channel:  "discord",
		Settings: dc.AccountSettings,
		Defaults: admission.ChannelDefaults{
			DMPolicy:       admission.DMPolicyPairing,
			GroupPolicy:    admission.GroupPolicyOpen,
			RequireMention: true,
			HistoryLimit:   admission.DefaultHistoryLimit,
		},
		MentionPatterns: c.patterns.Get(patterns),
		CommandPrefixes: dc.CommandPrefixes,
		OwnerIDs:        c.cfg.GatewaySnapshot().OwnerIDs,
	}
}

// Start opens the Discord gateway connection and begins receiving events.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting discord bot")

	c.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		c.handleMessage(ctx, s, m)
	})

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	user, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		return fmt.Errorf("fetch discord bot identity: %w", err)
	}
	c.botUserID = user.ID
	c.botUsername = user.Username

	c.SetRunning(true)
	slog.Info("discord bot connected", "username", user.Username, "id", user.ID)
	return nil
}

// Stop closes the Discord gateway connection.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping discord bot")
	c.SetRunning(false)
	return c.session.Close()
}

// Send delivers an outbound message to a Discord channel, chunking content
// that exceeds the platform limit.
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("empty chat ID for discord send")
	}
	if msg.Content == "" {
		return nil
	}
	return c.sendChunked(msg.ChatID, msg.Content)
}

// sendChunked splits content at the message limit, preferring newline
// boundaries in the back half of a chunk.
func (c *Channel) sendChunked(channelID, content string) error {
	for len(content) > 0 {
		chunk := content
		if len(chunk) > discordMessageLimit {
			cutAt := discordMessageLimit
			if idx := strings.LastIndexByte(content[:discordMessageLimit], '\n'); idx > discordMessageLimit/2 {
				cutAt = idx + 1
			}
			chunk = content[:cutAt]
			content = content[cutAt:]
		} else {
			content = ""
		}

		if _, err := c.session.ChannelMessageSend(channelID, chunk); err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
	}
	return nil
}
