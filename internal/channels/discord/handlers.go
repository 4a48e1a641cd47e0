package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/clawgate/internal/admission"
	"github.com/nextlevelbuilder/clawgate/internal/channels"
	"github.com/nextlevelbuilder/clawgate/internal/sessions"
)

// handleMessage normalizes one gateway MESSAGE_CREATE and runs it through
// the admission pipeline.
func (c *Channel) handleMessage(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	ev, ch, ok := c.buildEvent(s, m)
	if !ok {
		return
	}

	slog.Debug("discord message received",
		"guild_id", m.GuildID,
		"channel_id", m.ChannelID,
		"sender", ev.SenderID,
		"kind", string(ev.PeerKind),
		"preview", channels.Truncate(ev.RawText, 60),
	)

	hooks := admission.AdapterHooks{
		SendPairingReply: func(ctx context.Context, code string) error {
			return c.sendPairingReply(ctx, m.ChannelID, ev, code)
		},
	}
	if ev.PeerKind == sessions.PeerThread && ch != nil {
		hooks.FetchThreadStarter = func(context.Context) (admission.ThreadStarter, error) {
			return c.fetchThreadStarter(ch)
		}
	}

	out := c.HandleEvent(ctx, c.account(), ev, hooks)
	if out.Decision == admission.DecisionAdmit {
		_ = s.ChannelTyping(m.ChannelID)
	}
}

// buildEvent maps a Discord message onto the neutral admission event. The
// returned channel object is non-nil for guild messages where metadata could
// be resolved.
func (c *Channel) buildEvent(s *discordgo.Session, m *discordgo.MessageCreate) (admission.Event, *discordgo.Channel, bool) {
	dc := c.cfg.ChannelsSnapshot().Discord
	ev := admission.Event{
		Channel:     "discord",
		AccountID:   dc.EffectiveAccountID(),
		PeerID:      m.ChannelID,
		GuildID:     m.GuildID,
		RawText:     messageContent(m),
		MessageID:   m.ID,
		TimestampMs: m.Timestamp.UnixMilli(),
	}

	ev.SenderID = m.Author.ID
	if m.Author.Username != "" {
		ev.SenderID = fmt.Sprintf("%s|%s", m.Author.ID, m.Author.Username)
		ev.SenderTag = m.Author.Username
	}
	ev.SenderDisplay = displayName(m)
	ev.FromBot = m.Author.Bot
	ev.FromSelf = m.Author.ID == c.botUserID

	var ch *discordgo.Channel
	if m.GuildID == "" {
		ev.PeerKind = sessions.PeerDirect
	} else {
		ch = c.resolveChannel(s, m.ChannelID)
		if ch != nil && ch.IsThread() {
			allowThreads := true
			if v := dc.AllowGuildThreads; v != nil {
				allowThreads = *v
			}
			if !allowThreads {
				slog.Debug("discord thread message skipped", "channel_id", m.ChannelID)
				return admission.Event{}, nil, false
			}
			ev.PeerKind = sessions.PeerThread
			ev.ThreadParentID = ch.ParentID
			ev.ThreadParentKind = sessions.PeerChannel
			ev.ThreadLabel = ch.Name
			ev.PeerName = ch.Name
		} else {
			ev.PeerKind = sessions.PeerChannel
			if ch != nil {
				ev.PeerName = ch.Name
			}
		}
	}

	for _, u := range m.Mentions {
		if u.ID == c.botUserID {
			ev.ExplicitMention = true
		}
	}
	ev.HasAnyMention = len(m.Mentions) > 0 || len(m.MentionRoles) > 0 || m.MentionEveryone
	if ref := m.ReferencedMessage; ref != nil && ref.Author != nil {
		ev.ReplyToAuthorID = ref.Author.ID
		ev.ReplyToSelf = ref.Author.ID == c.botUserID
		ev.QuotedText = ref.Content
	}

	ev.Metadata = map[string]string{
		"message_id": m.ID,
		"channel_id": m.ChannelID,
	}
	if m.GuildID != "" {
		ev.Metadata["guild_id"] = m.GuildID
	}

	return ev, ch, true
}

// resolveChannel looks the channel up in gateway state, falling back to a
// REST fetch for channels the session has not cached yet.
func (c *Channel) resolveChannel(s *discordgo.Session, channelID string) *discordgo.Channel {
	if ch, err := s.State.Channel(channelID); err == nil {
		return ch
	}
	ch, err := s.Channel(channelID)
	if err != nil {
		slog.Warn("discord channel lookup failed", "channel_id", channelID, "error", err)
		return nil
	}
	return ch
}

// fetchThreadStarter loads the thread's origin message. Discord threads
// share their ID with the starter message in the parent channel.
func (c *Channel) fetchThreadStarter(ch *discordgo.Channel) (admission.ThreadStarter, error) {
	starter := admission.ThreadStarter{Label: ch.Name}
	if ch.ParentID == "" {
		return starter, nil
	}
	msg, err := c.session.ChannelMessage(ch.ParentID, ch.ID)
	if err != nil {
		return starter, fmt.Errorf("fetch thread starter: %w", err)
	}
	starter.Body = msg.Content
	return starter, nil
}

// sendPairingReply delivers the pairing code to the originating channel,
// debounced per subject.
func (c *Channel) sendPairingReply(_ context.Context, channelID string, ev admission.Event, code string) error {
	subject := pairingSubject(ev)
	if c.pairing != nil && !c.pairing.ShouldNotify("discord", subject) {
		slog.Debug("pairing reply suppressed by debounce", "subject", subject)
		return nil
	}

	userID := ev.SenderID
	if idx := strings.IndexByte(userID, '|'); idx >= 0 {
		userID = userID[:idx]
	}

	text := fmt.Sprintf("ClawGate: access not configured.\n\n"+
		"Your Discord user ID: %s\n\n"+
		"Pairing code: %s\n\n"+
		"Ask the bot owner to approve with:\n"+
		"  clawgate pairing approve %s",
		userID, code, code)

	_, err := c.session.ChannelMessageSend(channelID, text)
	return err
}

// pairingSubject mirrors the subject keying used by the admission pipeline.
func pairingSubject(ev admission.Event) string {
	if ev.PeerKind == sessions.PeerDirect {
		return ev.SenderID
	}
	roomID := ev.PeerID
	if ev.PeerKind == sessions.PeerThread && ev.ThreadParentID != "" {
		roomID = ev.ThreadParentID
	}
	return "group:" + roomID
}

// messageContent folds text and attachment references into the event body.
func messageContent(m *discordgo.MessageCreate) string {
	content := m.Content
	for _, att := range m.Attachments {
		if content != "" {
			content += "\n"
		}
		content += fmt.Sprintf("[attachment: %s]", att.URL)
	}
	return content
}

// displayName prefers the server nickname, then the global display name,
// then the username.
func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
