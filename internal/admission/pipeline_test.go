package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/clawgate/internal/config"
	"github.com/nextlevelbuilder/clawgate/internal/sessions"
)

type fakePairing struct {
	allowed  map[string][]string
	requests map[string]string
	fail     bool
}

func newFakePairing() *fakePairing {
	return &fakePairing{allowed: map[string][]string{}, requests: map[string]string{}}
}

func (f *fakePairing) Upsert(_ context.Context, channel, subject string, _ map[string]string) (string, bool, error) {
	if f.fail {
		return "", false, errors.New("store down")
	}
	key := channel + ":" + subject
	if code, ok := f.requests[key]; ok {
		return code, false, nil
	}
	code := fmt.Sprintf("CODE%d", len(f.requests)+1)
	f.requests[key] = code
	return code, true, nil
}

func (f *fakePairing) AllowFrom(_ context.Context, channel string) ([]string, error) {
	return f.allowed[channel], nil
}

type fakeCatalog struct {
	seen    map[string]bool
	parents map[string]string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{seen: map[string]bool{}, parents: map[string]string{}}
}

func (f *fakeCatalog) Touch(key, parentKey, _ string, _ sessions.PeerKind) bool {
	if f.seen[key] {
		return false
	}
	f.seen[key] = true
	f.parents[key] = parentKey
	return true
}

func testAccount() Account {
	return Account{
		Channel: "telegram",
		Settings: config.AccountSettings{
			Enabled:   true,
			AllowFrom: config.FlexibleStringSlice{"111"},
		},
		Defaults: ChannelDefaults{
			DMPolicy:       DMPolicyPairing,
			GroupPolicy:    GroupPolicyOpen,
			RequireMention: true,
		},
		CommandPrefixes: []string{"/"},
	}
}

func newTestPipeline(pairing PairingStore, catalog SessionCatalog) *Pipeline {
	return NewPipeline(&config.Config{}, pairing, NewPendingHistory(), catalog)
}

func dmEvent(senderID string) Event {
	return Event{
		Channel:  "telegram",
		PeerKind: sessions.PeerDirect,
		PeerID:   senderID,
		SenderID: senderID,
		RawText:  "hello",
	}
}

func groupEvent(senderID, roomID, text string) Event {
	return Event{
		Channel:  "telegram",
		PeerKind: sessions.PeerGroup,
		PeerID:   roomID,
		SenderID: senderID,
		RawText:  text,
	}
}

func TestPipelineDropsSelfAndBots(t *testing.T) {
	p := newTestPipeline(newFakePairing(), nil)
	acct := testAccount()

	ev := dmEvent("111")
	ev.FromSelf = true
	if out := p.Process(context.Background(), acct, ev, AdapterHooks{}); out.Decision != DecisionDrop || out.Reason != "self-message" {
		t.Errorf("self message: got %s/%s, want drop/self-message", out.Decision, out.Reason)
	}

	ev = dmEvent("111")
	ev.FromBot = true
	if out := p.Process(context.Background(), acct, ev, AdapterHooks{}); out.Decision != DecisionDrop || out.Reason != "bot-author" {
		t.Errorf("bot author: got %s/%s, want drop/bot-author", out.Decision, out.Reason)
	}

	acct.Settings.AllowBots = true
	ev = dmEvent("111")
	ev.FromBot = true
	if out := p.Process(context.Background(), acct, ev, AdapterHooks{}); out.Decision != DecisionAdmit {
		t.Errorf("bot author with allow_bots: got %s/%s, want admit", out.Decision, out.Reason)
	}
}

func TestPipelineDisabledAccount(t *testing.T) {
	p := newTestPipeline(newFakePairing(), nil)
	acct := testAccount()
	acct.Settings.Enabled = false

	if out := p.Process(context.Background(), acct, dmEvent("111"), AdapterHooks{}); out.Decision != DecisionDrop || out.Reason != "disabled" {
		t.Errorf("got %s/%s, want drop/disabled", out.Decision, out.Reason)
	}
}

func TestPipelineDMPairingFlow(t *testing.T) {
	pairing := newFakePairing()
	p := newTestPipeline(pairing, nil)
	acct := testAccount()

	var replies []string
	hooks := AdapterHooks{SendPairingReply: func(_ context.Context, code string) error {
		replies = append(replies, code)
		return nil
	}}

	// Unknown sender: first message issues a code and notifies.
	out := p.Process(context.Background(), acct, dmEvent("999"), hooks)
	if out.Decision != DecisionPair {
		t.Fatalf("first message: got %s/%s, want pair", out.Decision, out.Reason)
	}
	if out.PairingCode == "" {
		t.Error("pair outcome carries no code")
	}
	if len(replies) != 1 || replies[0] != out.PairingCode {
		t.Errorf("replies = %v, want exactly the issued code %q", replies, out.PairingCode)
	}

	// Repeat messages while pending: silent drop, no second notice.
	out = p.Process(context.Background(), acct, dmEvent("999"), hooks)
	if out.Decision != DecisionDrop || out.Reason != "pairing-pending" {
		t.Errorf("repeat message: got %s/%s, want drop/pairing-pending", out.Decision, out.Reason)
	}
	if len(replies) != 1 {
		t.Errorf("replies = %v, want no new notice while pending", replies)
	}

	// After approval the sender lands on the dynamic allowlist and admits.
	pairing.allowed["telegram"] = []string{"999"}
	out = p.Process(context.Background(), acct, dmEvent("999"), hooks)
	if out.Decision != DecisionAdmit {
		t.Errorf("after approval: got %s/%s, want admit", out.Decision, out.Reason)
	}
}

func TestPipelineDMPairingStoreFailure(t *testing.T) {
	pairing := newFakePairing()
	pairing.fail = true
	p := newTestPipeline(pairing, nil)

	out := p.Process(context.Background(), testAccount(), dmEvent("999"), AdapterHooks{})
	if out.Decision != DecisionDrop || out.Reason != "pairing-error" {
		t.Errorf("got %s/%s, want drop/pairing-error", out.Decision, out.Reason)
	}
}

func TestPipelineDMPolicies(t *testing.T) {
	tests := []struct {
		name       string
		dmPolicy   string
		senderID   string
		wantDrop   bool
		wantReason string
	}{
		{name: "allowlist admits listed sender", dmPolicy: "allowlist", senderID: "111"},
		{name: "allowlist drops unknown sender", dmPolicy: "allowlist", senderID: "999", wantDrop: true, wantReason: "not-allowlisted"},
		{name: "disabled drops everyone", dmPolicy: "disabled", senderID: "111", wantDrop: true, wantReason: "dm-disabled"},
		{name: "open still consults the allowlist", dmPolicy: "open", senderID: "999", wantDrop: true, wantReason: "not-allowlisted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(newFakePairing(), nil)
			acct := testAccount()
			acct.Settings.DMPolicy = tt.dmPolicy

			out := p.Process(context.Background(), acct, dmEvent(tt.senderID), AdapterHooks{})
			if tt.wantDrop {
				if out.Decision != DecisionDrop || out.Reason != tt.wantReason {
					t.Errorf("got %s/%s, want drop/%s", out.Decision, out.Reason, tt.wantReason)
				}
				return
			}
			if out.Decision != DecisionAdmit {
				t.Errorf("got %s/%s, want admit", out.Decision, out.Reason)
			}
		})
	}

	t.Run("open with wildcard admits anyone", func(t *testing.T) {
		p := newTestPipeline(newFakePairing(), nil)
		acct := testAccount()
		acct.Settings.DMPolicy = "open"
		acct.Settings.AllowFrom = config.FlexibleStringSlice{"*"}

		out := p.Process(context.Background(), acct, dmEvent("anyone"), AdapterHooks{})
		if out.Decision != DecisionAdmit {
			t.Errorf("got %s/%s, want admit", out.Decision, out.Reason)
		}
	})
}

func TestPipelineDMSessionKey(t *testing.T) {
	p := newTestPipeline(newFakePairing(), nil)

	out := p.Process(context.Background(), testAccount(), dmEvent("111"), AdapterHooks{})
	if out.Decision != DecisionAdmit {
		t.Fatalf("got %s/%s, want admit", out.Decision, out.Reason)
	}
	if got, want := out.Context.SessionKey, "agent:default:telegram:direct:111"; got != want {
		t.Errorf("SessionKey = %q, want %q", got, want)
	}
	if out.Context.ParentSessionKey != "" {
		t.Errorf("ParentSessionKey = %q, want empty for a DM", out.Context.ParentSessionKey)
	}
	if out.Context.ReplyTarget != "111" {
		t.Errorf("ReplyTarget = %q, want 111", out.Context.ReplyTarget)
	}
}

func TestPipelineGroupMentionGating(t *testing.T) {
	p := newTestPipeline(newFakePairing(), nil)
	acct := testAccount()
	acct.MentionPatterns = CompileMentionPatterns([]string{`(?i)@clawbot\b`})

	// Unaddressed chatter is dropped but remembered.
	out := p.Process(context.Background(), acct, groupEvent("222", "-100555", "morning all"), AdapterHooks{})
	if out.Decision != DecisionDrop || out.Reason != "no-mention" {
		t.Fatalf("unaddressed: got %s/%s, want drop/no-mention", out.Decision, out.Reason)
	}

	ev := groupEvent("333", "-100555", "@clawbot summarize")
	ev.SenderDisplay = "Alice"
	out = p.Process(context.Background(), acct, ev, AdapterHooks{})
	if out.Decision != DecisionAdmit {
		t.Fatalf("mention: got %s/%s, want admit", out.Decision, out.Reason)
	}
	if !out.Context.WasMentioned {
		t.Error("WasMentioned = false, want true")
	}
	if !strings.Contains(out.Context.Body, "[Recent messages in this chat]") {
		t.Errorf("Body = %q, want drained transcript header", out.Context.Body)
	}
	if !strings.Contains(out.Context.Body, "morning all") {
		t.Errorf("Body = %q, want the buffered line included", out.Context.Body)
	}
	if !strings.HasSuffix(out.Context.Body, "[From: Alice] @clawbot summarize") {
		t.Errorf("Body = %q, want current line last", out.Context.Body)
	}
	if out.Context.RawBody != "@clawbot summarize" {
		t.Errorf("RawBody = %q, want the sender's text alone", out.Context.RawBody)
	}

	// The transcript was drained; the next mention starts clean.
	out = p.Process(context.Background(), acct, groupEvent("333", "-100555", "@clawbot again"), AdapterHooks{})
	if out.Decision != DecisionAdmit {
		t.Fatalf("second mention: got %s/%s, want admit", out.Decision, out.Reason)
	}
	if strings.Contains(out.Context.Body, "morning all") {
		t.Errorf("Body = %q, buffer should have been drained by the first admit", out.Context.Body)
	}
}

func TestPipelineGroupReplyToSelfBypassesMention(t *testing.T) {
	p := newTestPipeline(newFakePairing(), nil)

	ev := groupEvent("222", "-100555", "what about this?")
	ev.ReplyToSelf = true
	out := p.Process(context.Background(), testAccount(), ev, AdapterHooks{})
	if out.Decision != DecisionAdmit {
		t.Errorf("got %s/%s, want admit on reply to own message", out.Decision, out.Reason)
	}
}

func TestPipelineGroupMentionOff(t *testing.T) {
	p := newTestPipeline(newFakePairing(), nil)
	acct := testAccount()
	acct.Settings.RequireMention = boolPtr(false)

	out := p.Process(context.Background(), acct, groupEvent("222", "-100555", "anyone home"), AdapterHooks{})
	if out.Decision != DecisionAdmit {
		t.Fatalf("got %s/%s, want admit without mention", out.Decision, out.Reason)
	}
	if out.Context.WasMentioned {
		t.Error("WasMentioned = true, want false")
	}
}

func TestPipelineGroupRoomAllowlist(t *testing.T) {
	p := newTestPipeline(newFakePairing(), nil)
	acct := testAccount()
	acct.Settings.GroupPolicy = "allowlist"
	acct.Settings.GroupAllowFrom = config.FlexibleStringSlice{"-100555"}
	acct.Settings.RequireMention = boolPtr(false)

	out := p.Process(context.Background(), acct, groupEvent("222", "-100555", "hi"), AdapterHooks{})
	if out.Decision != DecisionAdmit {
		t.Errorf("listed room: got %s/%s, want admit", out.Decision, out.Reason)
	}

	out = p.Process(context.Background(), acct, groupEvent("222", "-100999", "hi"), AdapterHooks{})
	if out.Decision != DecisionDrop || out.Reason != "room-not-allowlisted" {
		t.Errorf("unlisted room: got %s/%s, want drop/room-not-allowlisted", out.Decision, out.Reason)
	}
}

func TestPipelineCarriesRoomTools(t *testing.T) {
	p := newTestPipeline(newFakePairing(), nil)
	acct := testAccount()
	acct.Settings.RequireMention = boolPtr(false)
	acct.Settings.Rooms = map[string]config.RoomConfig{
		"-100555": {Tools: config.FlexibleStringSlice{"web_search"}},
	}

	out := p.Process(context.Background(), acct, groupEvent("222", "-100555", "hi"), AdapterHooks{})
	if out.Decision != DecisionAdmit {
		t.Fatalf("got %s/%s, want admit", out.Decision, out.Reason)
	}
	if len(out.Context.Tools) != 1 || out.Context.Tools[0] != "web_search" {
		t.Errorf("Tools = %v, want [web_search]", out.Context.Tools)
	}
}

func TestPipelinePolicyDropSkipsHistory(t *testing.T) {
	// Only mention-gated drops feed the pending-history buffer. A message
	// rejected by DM or room policy must leave no trace, or an approved
	// sender's first transcript would replay text from senders who were
	// never admitted.
	t.Run("dm disabled", func(t *testing.T) {
		p := newTestPipeline(newFakePairing(), nil)
		acct := testAccount()
		acct.Settings.DMPolicy = "disabled"

		out := p.Process(context.Background(), acct, dmEvent("111"), AdapterHooks{})
		if out.Decision != DecisionDrop || out.Reason != "dm-disabled" {
			t.Fatalf("got %s/%s, want drop/dm-disabled", out.Decision, out.Reason)
		}
		if n := p.History().Len("agent:default:telegram:direct:111"); n != 0 {
			t.Errorf("history holds %d entries after a dm-disabled drop, want 0", n)
		}
	})

	t.Run("dm sender not allowlisted", func(t *testing.T) {
		p := newTestPipeline(newFakePairing(), nil)
		acct := testAccount()
		acct.Settings.DMPolicy = "allowlist"

		out := p.Process(context.Background(), acct, dmEvent("999"), AdapterHooks{})
		if out.Decision != DecisionDrop || out.Reason != "not-allowlisted" {
			t.Fatalf("got %s/%s, want drop/not-allowlisted", out.Decision, out.Reason)
		}
		if n := p.History().Len("agent:default:telegram:direct:999"); n != 0 {
			t.Errorf("history holds %d entries after an allowlist drop, want 0", n)
		}
	})

	t.Run("room not allowlisted", func(t *testing.T) {
		p := newTestPipeline(newFakePairing(), nil)
		acct := testAccount()
		acct.Settings.GroupPolicy = "allowlist"
		acct.Settings.GroupAllowFrom = config.FlexibleStringSlice{"-100555"}

		out := p.Process(context.Background(), acct, groupEvent("222", "-100999", "remember this"), AdapterHooks{})
		if out.Decision != DecisionDrop || out.Reason != "room-not-allowlisted" {
			t.Fatalf("got %s/%s, want drop/room-not-allowlisted", out.Decision, out.Reason)
		}
		if n := p.History().Len("agent:default:telegram:group:-100999"); n != 0 {
			t.Errorf("history holds %d entries after a room drop, want 0", n)
		}
	})
}

func TestPipelineGroupPairing(t *testing.T) {
	pairing := newFakePairing()
	p := newTestPipeline(pairing, nil)
	acct := testAccount()
	acct.Settings.GroupPolicy = "pairing"
	acct.Settings.RequireMention = boolPtr(false)

	out := p.Process(context.Background(), acct, groupEvent("222", "-100555", "hi"), AdapterHooks{})
	if out.Decision != DecisionPair {
		t.Fatalf("unknown room: got %s/%s, want pair", out.Decision, out.Reason)
	}
	if _, ok := pairing.requests["telegram:group:-100555"]; !ok {
		t.Errorf("pairing subject = %v, want group:-100555", pairing.requests)
	}

	// Approving the room admits subsequent messages.
	pairing.allowed["telegram"] = []string{"group:-100555"}
	out = p.Process(context.Background(), acct, groupEvent("222", "-100555", "hi again"), AdapterHooks{})
	if out.Decision != DecisionAdmit {
		t.Errorf("approved room: got %s/%s, want admit", out.Decision, out.Reason)
	}
}

func TestPipelineCommandGate(t *testing.T) {
	base := func() Account {
		acct := testAccount()
		acct.OwnerIDs = []string{"777"}
		acct.Settings.RequireMention = boolPtr(false)
		return acct
	}

	t.Run("owner command admits", func(t *testing.T) {
		p := newTestPipeline(newFakePairing(), nil)
		out := p.Process(context.Background(), base(), groupEvent("777", "-100555", "/new"), AdapterHooks{})
		if out.Decision != DecisionAdmit {
			t.Fatalf("got %s/%s, want admit", out.Decision, out.Reason)
		}
		if !out.Context.CommandAuthorized {
			t.Error("CommandAuthorized = false, want true")
		}
		if out.Context.CommandText != "/new" {
			t.Errorf("CommandText = %q, want /new", out.Context.CommandText)
		}
	})

	t.Run("stranger command drops", func(t *testing.T) {
		p := newTestPipeline(newFakePairing(), nil)
		out := p.Process(context.Background(), base(), groupEvent("222", "-100555", "/new"), AdapterHooks{})
		if out.Decision != DecisionDrop || out.Reason != "command-unauthorized" {
			t.Errorf("got %s/%s, want drop/command-unauthorized", out.Decision, out.Reason)
		}
	})

	t.Run("stranger prose still flows", func(t *testing.T) {
		p := newTestPipeline(newFakePairing(), nil)
		out := p.Process(context.Background(), base(), groupEvent("222", "-100555", "hello"), AdapterHooks{})
		if out.Decision != DecisionAdmit {
			t.Errorf("got %s/%s, want admit", out.Decision, out.Reason)
		}
		if out.Context.CommandAuthorized {
			t.Error("CommandAuthorized = true for a stranger, want false")
		}
	})

	t.Run("text commands off treats command as prose", func(t *testing.T) {
		p := newTestPipeline(newFakePairing(), nil)
		acct := base()
		acct.Settings.AllowTextCommands = boolPtr(false)
		out := p.Process(context.Background(), acct, groupEvent("222", "-100555", "/new"), AdapterHooks{})
		if out.Decision != DecisionAdmit {
			t.Errorf("got %s/%s, want admit as prose", out.Decision, out.Reason)
		}
	})

	t.Run("allowlisted sender is command authorized", func(t *testing.T) {
		p := newTestPipeline(newFakePairing(), nil)
		acct := base()
		out := p.Process(context.Background(), acct, dmEvent("111"), AdapterHooks{})
		if out.Decision != DecisionAdmit {
			t.Fatalf("got %s/%s, want admit", out.Decision, out.Reason)
		}
		if !out.Context.CommandAuthorized {
			t.Error("CommandAuthorized = false for allowlisted DM sender, want true")
		}
	})

	t.Run("authorized command bypasses mention gate", func(t *testing.T) {
		p := newTestPipeline(newFakePairing(), nil)
		acct := base()
		acct.Settings.RequireMention = boolPtr(true)
		out := p.Process(context.Background(), acct, groupEvent("777", "-100555", "/status"), AdapterHooks{})
		if out.Decision != DecisionAdmit {
			t.Errorf("got %s/%s, want admit without mention", out.Decision, out.Reason)
		}
	})
}

func TestPipelineThreadSessionKeys(t *testing.T) {
	t.Run("guild thread keys under the parent channel kind", func(t *testing.T) {
		catalog := newFakeCatalog()
		p := newTestPipeline(newFakePairing(), catalog)
		acct := testAccount()
		acct.Channel = "discord"
		acct.Settings.RequireMention = boolPtr(false)
		acct.Settings.AllowFrom = config.FlexibleStringSlice{"*"}

		ev := Event{
			Channel:          "discord",
			PeerKind:         sessions.PeerThread,
			PeerID:           "t1",
			SenderID:         "222",
			RawText:          "continuing here",
			ThreadParentID:   "p1",
			ThreadParentKind: sessions.PeerChannel,
			ThreadLabel:      "bug triage",
		}
		starterCalls := 0
		hooks := AdapterHooks{FetchThreadStarter: func(_ context.Context) (ThreadStarter, error) {
			starterCalls++
			return ThreadStarter{Body: "the original report", Label: "bug triage"}, nil
		}}

		out := p.Process(context.Background(), acct, ev, hooks)
		if out.Decision != DecisionAdmit {
			t.Fatalf("got %s/%s, want admit", out.Decision, out.Reason)
		}
		if got, want := out.Context.SessionKey, "agent:default:discord:channel:t1"; got != want {
			t.Errorf("SessionKey = %q, want %q", got, want)
		}
		if got, want := out.Context.ParentSessionKey, "agent:default:discord:channel:p1"; got != want {
			t.Errorf("ParentSessionKey = %q, want %q", got, want)
		}
		if out.Context.ThreadStarterBody != "the original report" {
			t.Errorf("ThreadStarterBody = %q, want the fetched starter", out.Context.ThreadStarterBody)
		}
		if out.Context.ConversationLabel != "bug triage" {
			t.Errorf("ConversationLabel = %q, want bug triage", out.Context.ConversationLabel)
		}
		if starterCalls != 1 {
			t.Errorf("starter fetched %d times, want 1", starterCalls)
		}

		// Second message in the same thread: no re-fetch.
		out = p.Process(context.Background(), acct, ev, hooks)
		if out.Decision != DecisionAdmit {
			t.Fatalf("second message: got %s/%s, want admit", out.Decision, out.Reason)
		}
		if starterCalls != 1 {
			t.Errorf("starter fetched %d times after second message, want 1", starterCalls)
		}
	})

	t.Run("forum topic keys under the parent group kind", func(t *testing.T) {
		p := newTestPipeline(newFakePairing(), newFakeCatalog())
		acct := testAccount()
		acct.Settings.RequireMention = boolPtr(false)

		ev := Event{
			Channel:          "telegram",
			PeerKind:         sessions.PeerThread,
			PeerID:           "-100123:topic:99",
			PeerName:         "Dev Chat",
			SenderID:         "222",
			RawText:          "topic message",
			ThreadParentID:   "-100123",
			ThreadParentKind: sessions.PeerGroup,
		}
		out := p.Process(context.Background(), acct, ev, AdapterHooks{})
		if out.Decision != DecisionAdmit {
			t.Fatalf("got %s/%s, want admit", out.Decision, out.Reason)
		}
		if got, want := out.Context.SessionKey, "agent:default:telegram:group:-100123:topic:99"; got != want {
			t.Errorf("SessionKey = %q, want %q", got, want)
		}
		if got, want := out.Context.ParentSessionKey, "agent:default:telegram:group:-100123"; got != want {
			t.Errorf("ParentSessionKey = %q, want %q", got, want)
		}
	})

	t.Run("starter fetch failure still admits", func(t *testing.T) {
		p := newTestPipeline(newFakePairing(), newFakeCatalog())
		acct := testAccount()
		acct.Settings.RequireMention = boolPtr(false)

		ev := Event{
			Channel:          "telegram",
			PeerKind:         sessions.PeerThread,
			PeerID:           "-100123:topic:7",
			SenderID:         "222",
			RawText:          "hi",
			ThreadParentID:   "-100123",
			ThreadParentKind: sessions.PeerGroup,
		}
		hooks := AdapterHooks{FetchThreadStarter: func(_ context.Context) (ThreadStarter, error) {
			return ThreadStarter{}, errors.New("gone")
		}}
		out := p.Process(context.Background(), acct, ev, hooks)
		if out.Decision != DecisionAdmit {
			t.Errorf("got %s/%s, want admit despite starter failure", out.Decision, out.Reason)
		}
		if out.Context.ThreadStarterBody != "" {
			t.Errorf("ThreadStarterBody = %q, want empty", out.Context.ThreadStarterBody)
		}
	})
}

func TestPipelineThreadUsesParentRoomPolicy(t *testing.T) {
	p := newTestPipeline(newFakePairing(), newFakeCatalog())
	acct := testAccount()
	acct.Settings.Rooms = map[string]config.RoomConfig{
		"-100123": {RequireMention: boolPtr(false)},
	}

	ev := Event{
		Channel:          "telegram",
		PeerKind:         sessions.PeerThread,
		PeerID:           "-100123:topic:4",
		SenderID:         "222",
		RawText:          "no mention here",
		ThreadParentID:   "-100123",
		ThreadParentKind: sessions.PeerGroup,
	}
	out := p.Process(context.Background(), acct, ev, AdapterHooks{})
	if out.Decision != DecisionAdmit {
		t.Errorf("got %s/%s, want admit via parent room override", out.Decision, out.Reason)
	}
}
