package config

// ChannelsConfig contains per-channel configuration. Each channel block is
// one bot account; AccountID distinguishes accounts when several gateways
// share a session store.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
}

// AccountSettings are the admission settings every channel account carries.
// They feed the shared policy resolver; adapters never interpret them
// directly.
type AccountSettings struct {
	Enabled   bool   `json:"enabled"`
	AccountID string `json:"account_id,omitempty"` // identity label (default "default")

	AllowFrom      FlexibleStringSlice `json:"allow_from"`                 // DM sender allowlist (ids, @names, "*")
	GroupAllowFrom FlexibleStringSlice `json:"group_allow_from,omitempty"` // room allowlist (room ids/names, "*")

	DMPolicy    string `json:"dm_policy,omitempty"`    // "pairing" (default), "allowlist", "open", "disabled"
	GroupPolicy string `json:"group_policy,omitempty"` // "open" (default), "allowlist", "pairing", "disabled"

	RequireMention *bool `json:"require_mention,omitempty"` // require @bot mention in groups (default true)
	AutoReply      *bool `json:"auto_reply,omitempty"`      // legacy: true means reply without mention; require_mention wins when both set
	AllowBots      bool  `json:"allow_bots,omitempty"`      // accept messages authored by other bots (default false)

	AllowTextCommands *bool               `json:"allow_text_commands,omitempty"` // honor "/..." control commands (default true)
	UseAccessGroups   bool                `json:"use_access_groups,omitempty"`   // OR authorizers instead of AND
	CommandPrefixes   FlexibleStringSlice `json:"command_prefixes,omitempty"`    // default ["/"]

	HistoryLimit    int      `json:"history_limit,omitempty"`    // pending group messages kept for context (default 50, negative = disabled)
	MentionPatterns []string `json:"mention_patterns,omitempty"` // extra regexes that count as a mention

	Rooms map[string]RoomConfig `json:"rooms,omitempty"` // per-room overrides, keyed by id, name, or "*"
}

// RoomConfig overrides account-level settings for one room or peer.
// Nil pointer fields inherit from the account.
type RoomConfig struct {
	Enabled        *bool               `json:"enabled,omitempty"`
	RequireMention *bool               `json:"require_mention,omitempty"`
	AutoReply      *bool               `json:"auto_reply,omitempty"`
	AllowFrom      FlexibleStringSlice `json:"allow_from,omitempty"` // extra sender allowlist for this room
	Users          FlexibleStringSlice `json:"users,omitempty"`      // command authorizers for this room
	Tools          FlexibleStringSlice `json:"tools,omitempty"`      // tool names the engine may use in this room
	HistoryLimit   *int                `json:"history_limit,omitempty"`
}

type TelegramConfig struct {
	AccountSettings
	Token string `json:"token"`
	Proxy string `json:"proxy,omitempty"`
}

type DiscordConfig struct {
	AccountSettings
	Token             string `json:"token"`
	AllowGuildThreads *bool  `json:"allow_guild_threads,omitempty"` // follow bot-created threads (default true)
}

type WhatsAppConfig struct {
	AccountSettings
	BridgeURL string `json:"bridge_url"`
}

// EffectiveAccountID returns the account label, defaulting to "default".
func (s AccountSettings) EffectiveAccountID() string {
	if s.AccountID == "" {
		return "default"
	}
	return s.AccountID
}
