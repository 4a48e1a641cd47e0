package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/clawgate/internal/admission"
	"github.com/nextlevelbuilder/clawgate/internal/sessions"
)

// DefaultMenuCommands returns the command list registered in the Telegram
// bot menu.
func DefaultMenuCommands() []telego.BotCommand {
	return []telego.BotCommand{
		{Command: "start", Description: "Start a conversation"},
		{Command: "new", Description: "Start a fresh session"},
		{Command: "status", Description: "Show gateway status"},
		{Command: "help", Description: "Show available commands"},
	}
}

// SyncMenuCommands registers the bot command menu with Telegram.
func (c *Channel) SyncMenuCommands(ctx context.Context, commands []telego.BotCommand) error {
	return c.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: commands,
	})
}

// buildPairingReply formats the message sent when an unknown sender first
// contacts the bot and a pairing code is issued for them.
func buildPairingReply(userID, code string) string {
	return fmt.Sprintf("ClawGate: access not configured.\n\n"+
		"Your Telegram user id: %s\n\n"+
		"Pairing code: %s\n\n"+
		"Ask the bot owner to approve with:\n"+
		"  clawgate pairing approve %s",
		userID, code, code)
}

// sendPairingReply delivers the pairing code to the chat, debounced so a
// chatty sender does not get spammed with the same instructions.
func (c *Channel) sendPairingReply(ctx context.Context, chatID int64, ev admission.Event, code string) error {
	subject := pairingSubject(ev)
	if c.pairing != nil && !c.pairing.ShouldNotify("telegram", subject) {
		slog.Debug("pairing reply suppressed by debounce", "subject", subject)
		return nil
	}

	userID := ev.SenderID
	if idx := strings.IndexByte(userID, '|'); idx >= 0 {
		userID = userID[:idx]
	}

	_, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), buildPairingReply(userID, code)))
	return err
}

// pairingSubject mirrors the subject keying used by the admission pipeline:
// the sender for DMs, the room for group chats.
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
