package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/clawgate/internal/admission"
	"github.com/nextlevelbuilder/clawgate/internal/channels"
	"github.com/nextlevelbuilder/clawgate/internal/sessions"
)

// handleMessage normalizes one Telegram message and runs it through the
// admission pipeline. channelPost marks broadcast-channel posts, which have
// no From user.
func (c *Channel) handleMessage(ctx context.Context, message *telego.Message, channelPost bool) {
	// Service messages (member joined, title changed, pinned, ...) carry no
	// user content; letting them through pollutes mention gating and history.
	if isServiceMessage(message) {
		slog.Debug("telegram service message skipped", "chat_id", message.Chat.ID)
		return
	}

	ev, ok := c.buildEvent(message, channelPost)
	if !ok {
		return
	}

	slog.Debug("telegram message received",
		"chat_type", message.Chat.Type,
		"chat_id", message.Chat.ID,
		"sender", ev.SenderID,
		"text_preview", channels.Truncate(ev.RawText, 60),
	)

	hooks := admission.AdapterHooks{
		SendPairingReply: func(ctx context.Context, code string) error {
			return c.sendPairingReply(ctx, message.Chat.ID, ev, code)
		},
	}

	out := c.HandleEvent(ctx, c.account(), ev, hooks)
	if out.Decision == admission.DecisionAdmit {
		// Typing feedback while the agent works on it.
		action := tu.ChatAction(tu.ID(message.Chat.ID), telego.ChatActionTyping)
		if message.MessageThreadID > 0 {
			action.MessageThreadID = message.MessageThreadID
		}
		_ = c.bot.SendChatAction(ctx, action)
	}
}

// buildEvent maps a Telegram message onto the neutral admission event.
func (c *Channel) buildEvent(message *telego.Message, channelPost bool) (admission.Event, bool) {
	chatIDStr := fmt.Sprintf("%d", message.Chat.ID)
	isGroup := message.Chat.Type == "group" || message.Chat.Type == "supergroup"

	// Forum topics get their own peer identity so each topic forks its own
	// session under the parent group.
	isForum := isGroup && message.Chat.IsForum
	topicID := 0
	if isForum {
		topicID = message.MessageThreadID
		if topicID == 0 {
			topicID = telegramGeneralTopicID
		}
	}

	ev := admission.Event{
		Channel:     "telegram",
		AccountID:   c.cfg.ChannelsSnapshot().Telegram.EffectiveAccountID(),
		PeerID:      chatIDStr,
		PeerName:    message.Chat.Title,
		RawText:     messageText(message),
		MessageID:   fmt.Sprintf("%d", message.MessageID),
		TimestampMs: int64(message.Date) * 1000,
	}

	switch {
	case channelPost:
		ev.PeerKind = sessions.PeerChannel
	case isForum && topicID != telegramGeneralTopicID:
		ev.PeerKind = sessions.PeerThread
		ev.PeerID = fmt.Sprintf("%s:topic:%d", chatIDStr, topicID)
		ev.ThreadParentID = chatIDStr
		ev.ThreadParentKind = sessions.PeerGroup
	case isGroup:
		ev.PeerKind = sessions.PeerGroup
	default:
		ev.PeerKind = sessions.PeerDirect
	}

	user := message.From
	if user == nil {
		if !channelPost {
			return admission.Event{}, false
		}
		// Channel posts are authored by the channel itself.
		ev.SenderID = chatIDStr
		ev.SenderDisplay = message.Chat.Title
	} else {
		userID := fmt.Sprintf("%d", user.ID)
		ev.SenderID = userID
		if user.Username != "" {
			ev.SenderID = fmt.Sprintf("%s|%s", userID, user.Username)
			ev.SenderTag = user.Username
		}
		ev.SenderDisplay = user.FirstName
		ev.FromBot = user.IsBot
		ev.FromSelf = user.IsBot && user.Username != "" && strings.EqualFold(user.Username, c.bot.Username())
	}

	// A forwarded message's body is someone else's words; route it into
	// QuotedText so mention patterns never match on it.
	if isForwarded(message) {
		ev.QuotedText = ev.RawText
	}

	ev.ExplicitMention = detectEntityMention(message, c.bot.Username())
	ev.HasAnyMention = hasAnyMentionEntity(message)
	if reply := message.ReplyToMessage; reply != nil && reply.From != nil {
		ev.ReplyToAuthorID = fmt.Sprintf("%d", reply.From.ID)
		ev.ReplyToSelf = reply.From.Username != "" && strings.EqualFold(reply.From.Username, c.bot.Username())
	}

	ev.Metadata = map[string]string{
		"message_id": ev.MessageID,
	}
	if isForum {
		ev.Metadata["message_thread_id"] = fmt.Sprintf("%d", topicID)
	}

	return ev, true
}

// messageText folds text and caption into the event body; photos and other
// media carry their text in Caption.
func messageText(message *telego.Message) string {
	content := message.Text
	if message.Caption != "" {
		if content != "" {
			content += "\n"
		}
		content += message.Caption
	}
	return content
}

// isForwarded reports whether the message was forwarded from elsewhere.
func isForwarded(msg *telego.Message) bool {
	return msg.ForwardOrigin != nil
}

// detectEntityMention checks for a structural @bot mention in text or
// caption entities. Pattern-based matching (plain "@bot" substrings) is left
// to the pipeline's mention detector.
func detectEntityMention(msg *telego.Message, botUsername string) bool {
	if botUsername == "" {
		return false
	}
	lowerBot := strings.ToLower(botUsername)

	for _, pair := range []struct {
		entities []telego.MessageEntity
		text     string
	}{
		{msg.Entities, msg.Text},
		{msg.CaptionEntities, msg.Caption},
	} {
		if pair.text == "" {
			continue
		}
		for _, entity := range pair.entities {
			if entity.Type == "mention" {
				mentioned := pair.text[entity.Offset : entity.Offset+entity.Length]
				if strings.EqualFold(mentioned, "@"+botUsername) {
					return true
				}
			}
			if entity.Type == "bot_command" {
				cmdText := pair.text[entity.Offset : entity.Offset+entity.Length]
				if strings.Contains(strings.ToLower(cmdText), "@"+lowerBot) {
					return true
				}
			}
		}
	}
	return false
}

// hasAnyMentionEntity reports whether the message mentions anyone at all.
func hasAnyMentionEntity(msg *telego.Message) bool {
	for _, entities := range [][]telego.MessageEntity{msg.Entities, msg.CaptionEntities} {
		for _, entity := range entities {
			if entity.Type == "mention" || entity.Type == "text_mention" {
				return true
			}
		}
	}
	return false
}

// isServiceMessage returns true if the Telegram message is a service/system
// message (member added/removed, title changed, pinned, etc.) rather than a
// user-sent message.
func isServiceMessage(msg *telego.Message) bool {
	if msg.Text != "" || msg.Caption != "" {
		return false
	}
	if msg.Photo != nil || msg.Audio != nil || msg.Video != nil ||
		msg.Document != nil || msg.Voice != nil || msg.VideoNote != nil ||
		msg.Sticker != nil || msg.Animation != nil || msg.Contact != nil ||
		msg.Location != nil || msg.Venue != nil || msg.Poll != nil {
		return false
	}
	return true
}
