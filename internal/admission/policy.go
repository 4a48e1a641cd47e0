package admission

import (
	"strings"

	"github.com/nextlevelbuilder/clawgate/internal/config"
)

// DMPolicy controls how DMs from unknown senders are handled.
type DMPolicy string

const (
	DMPolicyPairing   DMPolicy = "pairing"   // unknown senders get a pairing code
	DMPolicyAllowlist DMPolicy = "allowlist" // only allowlisted senders
	DMPolicyOpen      DMPolicy = "open"      // allowlist must contain "*"
	DMPolicyDisabled  DMPolicy = "disabled"  // reject all DMs
)

// GroupPolicy controls how group/channel messages are handled.
type GroupPolicy string

const (
	GroupPolicyOpen      GroupPolicy = "open"
	GroupPolicyAllowlist GroupPolicy = "allowlist"
	GroupPolicyPairing   GroupPolicy = "pairing"
	GroupPolicyDisabled  GroupPolicy = "disabled"
)

// ChannelDefaults are the per-channel baseline settings the account config
// inherits from. Each adapter registers its own (telegram defaults to
// pairing DMs, whatsapp to open groups without mention gating, ...).
type ChannelDefaults struct {
	DMPolicy       DMPolicy
	GroupPolicy    GroupPolicy
	RequireMention bool
	HistoryLimit   int
}

// Resolved is the effective policy for one inbound event after merging
// channel defaults, account settings, and the matching room override.
type Resolved struct {
	Enabled        bool
	DMPolicy       DMPolicy
	GroupPolicy    GroupPolicy
	RequireMention bool
	AllowBots      bool

	AllowFrom      []string // DM/sender allowlist (account + room extras)
	GroupAllowFrom []string // room allowlist
	RoomUsers      []string // command authorizers from the room entry
	RoomTools      []string // tool names the room entry grants the engine

	AllowTextCommands bool
	UseAccessGroups   bool
	HistoryLimit      int
}

// ResolvePolicy merges the three configuration tiers for an event arriving in
// room (roomID, roomName). Precedence: room entry > account > channel
// defaults. The room entry is selected by exact id, then name
// (case-insensitive), then "*".
//
// The legacy auto_reply flag maps onto mention gating (auto_reply=true means
// "reply without a mention"); an explicit require_mention at the same tier
// wins. When nothing at any tier decides, mention gating stays on — the
// fail-safe is to stay quiet, not to answer.
func ResolvePolicy(def ChannelDefaults, acct config.AccountSettings, roomID, roomName string) Resolved {
	r := Resolved{
		Enabled:           acct.Enabled,
		DMPolicy:          def.DMPolicy,
		GroupPolicy:       def.GroupPolicy,
		RequireMention:    def.RequireMention,
		AllowBots:         acct.AllowBots,
		AllowTextCommands: true,
		UseAccessGroups:   acct.UseAccessGroups,
		HistoryLimit:      def.HistoryLimit,
	}
	if r.DMPolicy == "" {
		r.DMPolicy = DMPolicyPairing
	}
	if r.GroupPolicy == "" {
		r.GroupPolicy = GroupPolicyOpen
	}
	if r.HistoryLimit == 0 {
		r.HistoryLimit = DefaultHistoryLimit
	}

	// Account tier
	if acct.DMPolicy != "" {
		r.DMPolicy = DMPolicy(acct.DMPolicy)
	}
	if acct.GroupPolicy != "" {
		r.GroupPolicy = GroupPolicy(acct.GroupPolicy)
	}
	r.RequireMention = mergeMention(r.RequireMention, acct.RequireMention, acct.AutoReply)
	if acct.AllowTextCommands != nil {
		r.AllowTextCommands = *acct.AllowTextCommands
	}
	if acct.HistoryLimit != 0 {
		r.HistoryLimit = acct.HistoryLimit
	}
	r.AllowFrom = append(r.AllowFrom, acct.AllowFrom...)
	r.GroupAllowFrom = append(r.GroupAllowFrom, acct.GroupAllowFrom...)

	// Room tier
	if room, ok := lookupRoom(acct.Rooms, roomID, roomName); ok {
		if room.Enabled != nil {
			r.Enabled = *room.Enabled
		}
		r.RequireMention = mergeMention(r.RequireMention, room.RequireMention, room.AutoReply)
		if room.HistoryLimit != nil {
			r.HistoryLimit = *room.HistoryLimit
		}
		r.AllowFrom = append(r.AllowFrom, room.AllowFrom...)
		r.RoomUsers = append(r.RoomUsers, room.Users...)
		r.RoomTools = append(r.RoomTools, room.Tools...)
	}

	return r
}

// mergeMention applies one tier's mention settings on top of the inherited
// value. require_mention wins over auto_reply within a tier.
func mergeMention(inherited bool, requireMention, autoReply *bool) bool {
	if requireMention != nil {
		return *requireMention
	}
	if autoReply != nil {
		return !*autoReply
	}
	return inherited
}

func lookupRoom(rooms map[string]config.RoomConfig, roomID, roomName string) (config.RoomConfig, bool) {
	if len(rooms) == 0 {
		return config.RoomConfig{}, false
	}
	if roomID != "" {
		if room, ok := rooms[roomID]; ok {
			return room, true
		}
	}
	if roomName != "" {
		for key, room := range rooms {
			if key != "*" && strings.EqualFold(key, roomName) {
				return room, true
			}
		}
	}
	if room, ok := rooms["*"]; ok {
		return room, true
	}
	return config.RoomConfig{}, false
}
