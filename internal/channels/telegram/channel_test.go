package telegram

import (
	"strings"
	"testing"
)

func TestParseChatTarget(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantChat   int64
		wantThread int
		wantErr    bool
	}{
		{name: "plain group id", target: "-100123456", wantChat: -100123456},
		{name: "positive dm id", target: "386246614", wantChat: 386246614},
		{name: "forum topic target", target: "-100123456:topic:99", wantChat: -100123456, wantThread: 99},
		{name: "garbage", target: "not-a-chat", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat, thread, err := parseChatTarget(tt.target)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseChatTarget(%q) err = %v, wantErr %v", tt.target, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if chat != tt.wantChat || thread != tt.wantThread {
				t.Errorf("parseChatTarget(%q) = (%d, %d), want (%d, %d)", tt.target, chat, thread, tt.wantChat, tt.wantThread)
			}
		})
	}
}

func TestResolveThreadIDForSend(t *testing.T) {
	if got := resolveThreadIDForSend(telegramGeneralTopicID); got != 0 {
		t.Errorf("General topic should be omitted from sends, got %d", got)
	}
	if got := resolveThreadIDForSend(99); got != 99 {
		t.Errorf("resolveThreadIDForSend(99) = %d", got)
	}
}

func TestSplitMessage(t *testing.T) {
	t.Run("short message untouched", func(t *testing.T) {
		got := splitMessage("hello", 10)
		if len(got) != 1 || got[0] != "hello" {
			t.Errorf("splitMessage = %v", got)
		}
	})

	t.Run("empty message yields nothing", func(t *testing.T) {
		if got := splitMessage("", 10); got != nil {
			t.Errorf("splitMessage = %v, want nil", got)
		}
	})

	t.Run("prefers newline boundaries", func(t *testing.T) {
		got := splitMessage("first line\nsecond line", 15)
		if len(got) != 2 {
			t.Fatalf("splitMessage produced %d chunks, want 2: %v", len(got), got)
		}
		if got[0] != "first line\n" || got[1] != "second line" {
			t.Errorf("splitMessage = %q", got)
		}
	})

	t.Run("hard splits without newlines", func(t *testing.T) {
		got := splitMessage(strings.Repeat("x", 25), 10)
		if len(got) != 3 {
			t.Fatalf("splitMessage produced %d chunks, want 3", len(got))
		}
		for i, chunk := range got[:2] {
			if len(chunk) != 10 {
				t.Errorf("chunk %d length = %d, want 10", i, len(chunk))
			}
		}
		if got[2] != "xxxxx" {
			t.Errorf("last chunk = %q", got[2])
		}
	})

	t.Run("counts runes not bytes", func(t *testing.T) {
		got := splitMessage(strings.Repeat("日", 12), 10)
		if len(got) != 2 {
			t.Fatalf("splitMessage produced %d chunks, want 2", len(got))
		}
		if n := len([]rune(got[0])); n != 10 {
			t.Errorf("first chunk has %d runes, want 10", n)
		}
	})
}

func TestBuildPairingReply(t *testing.T) {
	reply := buildPairingReply("386246614", "ABCD2345")
	for _, want := range []string{"386246614", "ABCD2345", "clawgate pairing approve ABCD2345"} {
		if !strings.Contains(reply, want) {
			t.Errorf("pairing reply missing %q:\n%s", want, reply)
		}
	}
}
