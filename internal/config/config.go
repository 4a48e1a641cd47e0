package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nextlevelbuilder/clawgate/internal/sessions"
)

// DefaultAgentID is the fallback agent when no binding matches and no agent
// is marked default.
const DefaultAgentID = "default"

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the ClawGate gateway.
type Config struct {
	Agents    AgentsConfig    `json:"agents"`
	Channels  ChannelsConfig  `json:"channels"`
	Gateway   GatewayConfig   `json:"gateway"`
	Pairing   PairingConfig   `json:"pairing,omitempty"`
	Sessions  SessionsConfig  `json:"sessions"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Bindings  []AgentBinding  `json:"bindings,omitempty"`
	mu        sync.RWMutex
}

// DatabaseConfig configures Postgres for managed mode.
// PostgresDSN is NEVER read from config.json (secret) — only from env CLAWGATE_POSTGRES_DSN.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`              // from env CLAWGATE_POSTGRES_DSN only
	Mode        string `json:"mode,omitempty"` // "standalone" (default) or "managed"
}

// IsManagedMode returns true if the gateway is running in managed (multi-tenant) mode.
func (c *Config) IsManagedMode() bool {
	return c.Database.Mode == "managed" && c.Database.PostgresDSN != ""
}

// AgentBinding maps a channel/peer pattern to a specific agent.
type AgentBinding struct {
	AgentID string       `json:"agentId"`
	Match   BindingMatch `json:"match"`
}

// BindingMatch specifies what messages this binding applies to.
// Empty fields act as wildcards; bindings are checked in config order.
type BindingMatch struct {
	Channel   string       `json:"channel"`             // "telegram", "discord", "whatsapp", ...
	AccountID string       `json:"accountId,omitempty"` // bot account ID
	Peer      *BindingPeer `json:"peer,omitempty"`      // specific DM/group/channel/thread
	GuildID   string       `json:"guildId,omitempty"`   // Discord guild
}

// BindingPeer specifies a specific chat target.
type BindingPeer struct {
	Kind string `json:"kind"` // "direct", "group", "channel", "thread"
	ID   string `json:"id"`
}

// ToRoute converts a config binding into the form the route resolver consumes.
func (b AgentBinding) ToRoute() sessions.Binding {
	r := sessions.Binding{
		AgentID:   b.AgentID,
		Channel:   b.Match.Channel,
		AccountID: b.Match.AccountID,
		GuildID:   b.Match.GuildID,
	}
	if b.Match.Peer != nil {
		r.PeerKind = sessions.PeerKind(b.Match.Peer.Kind)
		r.PeerID = b.Match.Peer.ID
	}
	return r
}

// RouteBindings returns all bindings in resolver form, preserving config order.
func (c *Config) RouteBindings() []sessions.Binding {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]sessions.Binding, 0, len(c.Bindings))
	for _, b := range c.Bindings {
		out = append(out, b.ToRoute())
	}
	return out
}

// AgentsConfig contains agent routing metadata. ClawGate does not run agents —
// it only decides which agent id a conversation belongs to; the list here
// names the agents that engines may register for.
type AgentsConfig struct {
	List map[string]AgentSpec `json:"list,omitempty"`
}

// AgentSpec is per-agent routing metadata.
type AgentSpec struct {
	DisplayName string `json:"displayName,omitempty"`
	Default     bool   `json:"default,omitempty"`
}

// GatewayConfig controls the dispatch server.
type GatewayConfig struct {
	Host              string   `json:"host"`
	Port              int      `json:"port"`
	Token             string   `json:"token,omitempty"`               // bearer token for WS auth
	OwnerIDs          []string `json:"owner_ids,omitempty"`           // sender IDs considered "owner"
	AllowedOrigins    []string `json:"allowed_origins,omitempty"`     // WebSocket CORS whitelist (empty = allow all)
	MaxMessageChars   int      `json:"max_message_chars,omitempty"`   // max inbound message characters (default 32000)
	RateLimitRPM      int      `json:"rate_limit_rpm,omitempty"`      // per-client requests per minute (default 20, 0 = disabled)
	InboundDebounceMs int      `json:"inbound_debounce_ms,omitempty"` // dedupe window for replayed updates (default 1000ms, -1 = disabled)
}

// PairingConfig controls pairing-request lifecycle.
type PairingConfig struct {
	Storage         string `json:"storage,omitempty"`          // directory for pairing state files (default ~/.clawgate/pairing)
	TTLHours        int    `json:"ttl_hours,omitempty"`        // pending request expiry (default 48)
	DebounceSeconds int    `json:"debounce_seconds,omitempty"` // min interval between pairing replies per sender (default 60)
}

// TelemetryConfig configures OpenTelemetry export for admission decision spans.
// When enabled, spans are exported to an OTLP-compatible backend (Jaeger,
// Tempo, Datadog, etc.).
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`      // enable OTLP export (default false)
	Endpoint    string            `json:"endpoint,omitempty"`     // OTLP endpoint (e.g. "localhost:4317")
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // skip TLS verification (local dev)
	ServiceName string            `json:"service_name,omitempty"` // OTEL service name (default "clawgate")
	Headers     map[string]string `json:"headers,omitempty"`      // extra headers (auth tokens for cloud backends)
}

// SessionsConfig controls session key scoping and catalog storage.
type SessionsConfig struct {
	Storage string `json:"storage"`            // directory for session catalog files
	Scope   string `json:"scope,omitempty"`    // "per-sender" (default), "global"
	DmScope string `json:"dm_scope,omitempty"` // "main", "per-peer", "per-channel-peer" (default), "per-account-channel-peer"
	MainKey string `json:"main_key,omitempty"` // main session key suffix (default "main", used when dm_scope="main")
}

// ChannelsSnapshot returns the channel configuration as a copy taken under
// the read lock. Adapters read settings per event while the hot-reload
// watcher calls ReplaceFrom; direct field access would race.
func (c *Config) ChannelsSnapshot() ChannelsConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Channels
}

// GatewaySnapshot returns the gateway configuration under the read lock.
func (c *Config) GatewaySnapshot() GatewayConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Gateway
}

// ReplaceFrom copies all data fields from src into c, preserving c's mutex.
// Used by the hot-reload watcher so long-lived holders of *Config see updates.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Agents = src.Agents
	c.Channels = src.Channels
	c.Gateway = src.Gateway
	c.Pairing = src.Pairing
	c.Sessions = src.Sessions
	c.Database = src.Database
	c.Telemetry = src.Telemetry
	c.Bindings = src.Bindings
}
