// Package sessions — session key builder/parser and agent route resolution.
//
// Session keys follow the canonical format:
//
//	agent:{agentId}:{channel}:{kind}:{peerId}
//
// When the event arrived on a non-default bot account, the account id is
// inserted after the channel so two accounts on the same platform never share
// sessions:
//
//	agent:{agentId}:{channel}:{accountId}:{kind}:{peerId}
//
// Examples:
//
//	agent:default:telegram:direct:386246614
//	agent:default:telegram:group:-100123456
//	agent:support:discord:work:channel:7741
//	agent:default:telegram:group:-100123456:topic:99
package sessions

import (
	"fmt"
	"strings"
)

// PeerKind classifies the conversation surface an event arrived on.
type PeerKind string

const (
	PeerDirect  PeerKind = "direct"
	PeerGroup   PeerKind = "group"
	PeerChannel PeerKind = "channel"
	PeerThread  PeerKind = "thread"
)

// IsGroupLike reports whether the kind is a multi-party surface.
func (k PeerKind) IsGroupLike() bool { return k != PeerDirect && k != "" }

// escapeSegment makes one key segment safe to join with ":". A peer or
// account id containing ":" would otherwise let two different conversations
// render the same key (the id's colons are indistinguishable from segment
// separators), silently merging their sessions.
func escapeSegment(s string) string {
	if !strings.ContainsAny(s, ":%") {
		return s
	}
	s = strings.ReplaceAll(s, "%", "%25")
	return strings.ReplaceAll(s, ":", "%3A")
}

// BuildSessionKey builds the canonical session key for a conversation.
// Every variable segment is escaped so distinct (agent, channel, account,
// kind, peer) tuples always produce distinct keys.
func BuildSessionKey(agentID, channel, accountID string, kind PeerKind, peerID string) string {
	if accountID != "" && accountID != "default" {
		return fmt.Sprintf("agent:%s:%s:%s:%s:%s",
			escapeSegment(agentID), escapeSegment(channel), escapeSegment(accountID), kind, escapeSegment(peerID))
	}
	return fmt.Sprintf("agent:%s:%s:%s:%s",
		escapeSegment(agentID), escapeSegment(channel), kind, escapeSegment(peerID))
}

// BuildGroupTopicSessionKey builds the session key for a forum group topic.
//
//	agent:{agentId}:{channel}:group:{chatID}:topic:{topicID}
// Adapters compose topic peers as "{chatID}:topic:{id}"; the chat id is
// escaped inside BuildSessionKey while the topic suffix stays structural.
func BuildGroupTopicSessionKey(agentID, channel, accountID, chatID string, topicID int) string {
	return fmt.Sprintf("%s:topic:%d", BuildSessionKey(agentID, channel, accountID, PeerGroup, chatID), topicID)
}

// BuildAgentMainSessionKey builds the shared "main" session key for an agent.
// Used when dm_scope="main" — all DMs share one session per agent.
//
//	agent:{agentId}:{mainKey}
func BuildAgentMainSessionKey(agentID, mainKey string) string {
	if mainKey == "" {
		mainKey = "main"
	}
	return fmt.Sprintf("agent:%s:%s", escapeSegment(agentID), escapeSegment(mainKey))
}

// BuildScopedSessionKey builds a session key based on scope config.
//
// scope:
//   - "global"     → "global"
//   - "per-sender" → depends on dmScope (default)
//
// dmScope (DMs only — group-like surfaces always use the full key):
//   - "main"                     → agent:{agentId}:{mainKey}
//   - "per-peer"                 → agent:{agentId}:direct:{peerId}
//   - "per-channel-peer"         → agent:{agentId}:{channel}:direct:{peerId}  (default)
//   - "per-account-channel-peer" → agent:{agentId}:{channel}:{accountId}:direct:{peerId}
func BuildScopedSessionKey(agentID, channel, accountID string, kind PeerKind, peerID, scope, dmScope, mainKey string) string {
	if scope == "global" {
		return "global"
	}

	if kind.IsGroupLike() {
		return BuildSessionKey(agentID, channel, accountID, kind, peerID)
	}

	switch dmScope {
	case "main":
		return BuildAgentMainSessionKey(agentID, mainKey)
	case "per-peer":
		return fmt.Sprintf("agent:%s:direct:%s", escapeSegment(agentID), escapeSegment(peerID))
	case "per-account-channel-peer":
		if accountID == "" {
			accountID = "default"
		}
		return fmt.Sprintf("agent:%s:%s:%s:direct:%s",
			escapeSegment(agentID), escapeSegment(channel), escapeSegment(accountID), escapeSegment(peerID))
	default: // "per-channel-peer" or empty
		return BuildSessionKey(agentID, channel, accountID, kind, peerID)
	}
}

// ParseSessionKey extracts the agentID and rest from a canonical session key.
// Returns ("", "") if the key is not in the expected format.
func ParseSessionKey(key string) (agentID, rest string) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 3 || parts[0] != "agent" {
		return "", ""
	}
	return parts[1], parts[2]
}

// PeerKindFromGroup returns PeerGroup if isGroup is true, PeerDirect otherwise.
func PeerKindFromGroup(isGroup bool) PeerKind {
	if isGroup {
		return PeerGroup
	}
	return PeerDirect
}
