package config

import (
	"fmt"
	"regexp"
)

var validDMPolicies = map[string]bool{
	"": true, "pairing": true, "allowlist": true, "open": true, "disabled": true,
}

var validGroupPolicies = map[string]bool{
	"": true, "open": true, "allowlist": true, "pairing": true, "disabled": true,
}

// Validate checks the config for misconfigurations that would silently change
// admission behavior at runtime. Returns one error per finding so the doctor
// command can report them all.
func (c *Config) Validate() []error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs []error

	check := func(channel string, s AccountSettings) {
		if !validDMPolicies[s.DMPolicy] {
			errs = append(errs, fmt.Errorf("channels.%s: unknown dm_policy %q", channel, s.DMPolicy))
		}
		if !validGroupPolicies[s.GroupPolicy] {
			errs = append(errs, fmt.Errorf("channels.%s: unknown group_policy %q", channel, s.GroupPolicy))
		}
		// "open" does not bypass the allowlist matcher — it must contain
		// the literal wildcard or every sender is rejected.
		if s.DMPolicy == "open" && !containsWildcard(s.AllowFrom) {
			errs = append(errs, fmt.Errorf(`channels.%s: dm_policy "open" requires "*" in allow_from`, channel))
		}
		if s.GroupPolicy == "open" && len(s.GroupAllowFrom) > 0 && !containsWildcard(s.GroupAllowFrom) {
			errs = append(errs, fmt.Errorf(`channels.%s: group_policy "open" with a non-wildcard group_allow_from blocks every room; add "*" or switch to "allowlist"`, channel))
		}
		for _, pat := range s.MentionPatterns {
			if _, err := regexp.Compile(pat); err != nil {
				errs = append(errs, fmt.Errorf("channels.%s: invalid mention_pattern %q: %v", channel, pat, err))
			}
		}
		for key, room := range s.Rooms {
			if key == "" {
				errs = append(errs, fmt.Errorf("channels.%s: rooms entry with empty key", channel))
			}
			_ = room
		}
	}

	check("telegram", c.Channels.Telegram.AccountSettings)
	check("discord", c.Channels.Discord.AccountSettings)
	check("whatsapp", c.Channels.WhatsApp.AccountSettings)

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway.port %d out of range", c.Gateway.Port))
	}
	if c.Pairing.TTLHours < 0 {
		errs = append(errs, fmt.Errorf("pairing.ttl_hours must be >= 0"))
	}

	for i, b := range c.Bindings {
		if b.AgentID == "" {
			errs = append(errs, fmt.Errorf("bindings[%d]: missing agentId", i))
		}
		if b.Match.Peer != nil {
			switch b.Match.Peer.Kind {
			case "direct", "group", "channel", "thread", "":
			default:
				errs = append(errs, fmt.Errorf("bindings[%d]: unknown peer kind %q", i, b.Match.Peer.Kind))
			}
		}
	}

	if c.Database.Mode == "managed" && c.Database.PostgresDSN == "" {
		errs = append(errs, fmt.Errorf("database.mode managed requires CLAWGATE_POSTGRES_DSN"))
	}

	return errs
}

func containsWildcard(list FlexibleStringSlice) bool {
	for _, v := range list {
		if v == "*" {
			return true
		}
	}
	return false
}
