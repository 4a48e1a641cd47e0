package whatsapp

import (
	"testing"

	"github.com/nextlevelbuilder/clawgate/internal/config"
	"github.com/nextlevelbuilder/clawgate/internal/sessions"
)

func testChannel() *Channel {
	cfg := config.Default()
	cfg.Channels.WhatsApp.BridgeURL = "ws://127.0.0.1:9/ws"
	ch, _ := New(cfg, nil, nil, nil)
	return ch
}

func TestBuildEvent(t *testing.T) {
	c := testChannel()
	c.selfID = "1555000@c.us"

	t.Run("direct message", func(t *testing.T) {
		ev := c.buildEvent(bridgeFrame{
			Type:     "message",
			From:     "1555123@c.us",
			FromName: "Alice",
			Content:  "hello",
			ID:       "m1",
			TsMs:     1710000000000,
		})
		if ev.PeerKind != sessions.PeerDirect {
			t.Errorf("PeerKind = %q, want direct", ev.PeerKind)
		}
		if ev.PeerID != "1555123@c.us" {
			t.Errorf("PeerID = %q, chat should default to the sender", ev.PeerID)
		}
		if ev.SenderDisplay != "Alice" || ev.RawText != "hello" || ev.MessageID != "m1" {
			t.Errorf("ev = %+v", ev)
		}
		if ev.FromSelf {
			t.Error("FromSelf = true for another sender")
		}
	})

	t.Run("group chat by jid suffix", func(t *testing.T) {
		ev := c.buildEvent(bridgeFrame{
			From:    "1555123@c.us",
			Chat:    "1555999-160@g.us",
			Content: "hi all",
		})
		if ev.PeerKind != sessions.PeerGroup {
			t.Errorf("PeerKind = %q, want group", ev.PeerKind)
		}
		if ev.PeerID != "1555999-160@g.us" {
			t.Errorf("PeerID = %q", ev.PeerID)
		}
	})

	t.Run("own echo flagged", func(t *testing.T) {
		if ev := c.buildEvent(bridgeFrame{From: "1555123@c.us", FromMe: true}); !ev.FromSelf {
			t.Error("FromMe frame should set FromSelf")
		}
		if ev := c.buildEvent(bridgeFrame{From: "1555000@c.us"}); !ev.FromSelf {
			t.Error("frame from our own JID should set FromSelf")
		}
	})

	t.Run("mentions", func(t *testing.T) {
		ev := c.buildEvent(bridgeFrame{
			From:     "1555123@c.us",
			Chat:     "1555999-160@g.us",
			Content:  "ping",
			Mentions: []string{"1555777@c.us"},
		})
		if !ev.HasAnyMention || ev.ExplicitMention {
			t.Errorf("someone else mentioned: HasAnyMention=%v ExplicitMention=%v", ev.HasAnyMention, ev.ExplicitMention)
		}

		ev = c.buildEvent(bridgeFrame{
			From:     "1555123@c.us",
			Chat:     "1555999-160@g.us",
			Content:  "ping bot",
			Mentions: []string{"1555000@c.us"},
		})
		if !ev.ExplicitMention {
			t.Error("our JID in mentions should set ExplicitMention")
		}
	})

	t.Run("quoted reply to us", func(t *testing.T) {
		ev := c.buildEvent(bridgeFrame{
			From:     "1555123@c.us",
			Content:  "re: that",
			QuotedID: "m0",
			QuotedBy: "1555000@c.us",
		})
		if !ev.ReplyToSelf || ev.ReplyToAuthorID != "1555000@c.us" {
			t.Errorf("ReplyToSelf=%v ReplyToAuthorID=%q", ev.ReplyToSelf, ev.ReplyToAuthorID)
		}
	})

	t.Run("media folded into body", func(t *testing.T) {
		ev := c.buildEvent(bridgeFrame{
			From:    "1555123@c.us",
			Content: "look",
			Media:   []string{"/tmp/a.jpg"},
		})
		if ev.RawText != "look\n[attachment: /tmp/a.jpg]" {
			t.Errorf("RawText = %q", ev.RawText)
		}
	})
}

func TestNewRequiresBridgeURL(t *testing.T) {
	if _, err := New(config.Default(), nil, nil, nil); err == nil {
		t.Error("missing bridge_url should error")
	}
}
