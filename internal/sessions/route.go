package sessions

import "strings"

// Binding routes inbound conversations to a specific agent. Empty fields act
// as wildcards; a binding matches when every populated field equals the
// event's value. Bindings are evaluated in config order, first match wins.
type Binding struct {
	AgentID   string   `json:"agent_id"`
	Channel   string   `json:"channel,omitempty"`
	AccountID string   `json:"account_id,omitempty"`
	GuildID   string   `json:"guild_id,omitempty"`
	PeerKind  PeerKind `json:"peer_kind,omitempty"`
	PeerID    string   `json:"peer_id,omitempty"`
}

// RouteInput is the event surface bindings match against.
type RouteInput struct {
	Channel   string
	AccountID string
	GuildID   string
	PeerKind  PeerKind
	PeerID    string
}

func (b Binding) matches(in RouteInput) bool {
	if b.AgentID == "" {
		return false
	}
	if b.Channel != "" && !strings.EqualFold(b.Channel, in.Channel) {
		return false
	}
	if b.AccountID != "" && b.AccountID != in.AccountID {
		return false
	}
	if b.GuildID != "" && b.GuildID != in.GuildID {
		return false
	}
	if b.PeerKind != "" && b.PeerKind != in.PeerKind {
		return false
	}
	if b.PeerID != "" && b.PeerID != in.PeerID {
		return false
	}
	return true
}

// ResolveAgent returns the agent id serving a conversation: the first binding
// that matches, or defaultAgent when none do. Threads inherit the binding of
// their parent surface — callers pass the parent room id as PeerID for
// thread events so a room-level binding captures its threads.
func ResolveAgent(bindings []Binding, defaultAgent string, in RouteInput) string {
	for _, b := range bindings {
		if b.matches(in) {
			return b.AgentID
		}
	}
	if defaultAgent == "" {
		return "default"
	}
	return defaultAgent
}
