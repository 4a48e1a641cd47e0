// Package admission is the shared inbound decision engine for all channels.
// Every adapter normalizes its native event into an Event and calls the
// Pipeline exactly once per message; the pipeline decides whether the message
// reaches an agent at all, which session it belongs to, and what context
// attaches.
//
// Replaces the per-channel policy/mention/pairing checks that used to live in
// each adapter (telegram, discord, whatsapp, ...) with one implementation, so
// all channels share identical defaults and edge-case behavior.
package admission

import "github.com/nextlevelbuilder/clawgate/internal/sessions"

// Event is the neutral inbound shape adapters produce from their native
// update types. Everything the pipeline needs must be carried here; the
// pipeline never touches platform SDK types.
type Event struct {
	Channel       string            // "telegram", "discord", "whatsapp", ...
	AccountID     string            // configured bot account ("default" when single-account)
	PeerKind      sessions.PeerKind // direct | group | channel | thread
	PeerID        string            // chat/room/thread id
	PeerName      string            // room title / channel name, if known
	SenderID      string            // platform sender id
	SenderDisplay string            // first name / display name
	SenderTag     string            // @username-style handle, without "@"
	RawText       string            // message text (captions folded in by adapter)
	QuotedText    string            // forwarded/quoted content, excluded from pattern matching
	MessageID     string
	TimestampMs   int64

	FromSelf bool // authored by this bot account (echo)
	FromBot  bool // authored by some other bot

	ExplicitMention bool   // structural "this bot was mentioned" signal
	HasAnyMention   bool   // any mention markup present, regardless of target
	ReplyToAuthorID string // author of the message this one replies to
	ReplyToSelf     bool   // structurally replies to one of our own messages

	ThreadParentID string // parent room id when PeerID is a thread/topic
	// ThreadParentKind is the surface kind of the thread's parent (group for
	// forum topics, channel for guild threads). Session keys for threads use
	// the parent kind.
	ThreadParentKind sessions.PeerKind
	ThreadLabel      string // thread title, if the platform provides one
	GuildID          string // discord guild / workspace id, for bindings

	Metadata map[string]string
}

// ThreadStarter is the origin message of a thread, fetched via the adapter
// when a thread is first observed (its own session history starts empty).
type ThreadStarter struct {
	Body  string
	Label string
}

// FinalizedContext is the pipeline's ADMIT output and the sole handoff
// artifact to the dispatcher.
type FinalizedContext struct {
	Channel   string            `json:"channel"`
	AccountID string            `json:"account_id"`
	AgentID   string            `json:"agent_id"`
	ChatType  sessions.PeerKind `json:"chat_type"`

	SessionKey       string `json:"session_key"`
	ParentSessionKey string `json:"parent_session_key,omitempty"`

	Body        string `json:"body"`         // text handed to the agent (history transcript + annotation)
	RawBody     string `json:"raw_body"`     // sender's text, unannotated
	CommandText string `json:"command_text,omitempty"`

	SenderID      string `json:"sender_id"`
	SenderDisplay string `json:"sender_display,omitempty"`
	SenderTag     string `json:"sender_tag,omitempty"`

	ConversationLabel string `json:"conversation_label,omitempty"`
	ThreadStarterBody string `json:"thread_starter_body,omitempty"`

	WasMentioned      bool `json:"was_mentioned"`
	CommandAuthorized bool `json:"command_authorized"`

	// Tools the matched room entry grants the downstream engine, if any.
	Tools []string `json:"tools,omitempty"`

	ReplyTarget string `json:"reply_target"` // where outbound replies go (usually PeerID)
	MessageID   string `json:"message_id,omitempty"`
	TimestampMs int64  `json:"timestamp_ms"`

	Metadata map[string]string `json:"metadata,omitempty"`
}
