package admission

import (
	"regexp"
	"strings"
	"sync"
)

// MentionResult reports how an event addressed the bot.
type MentionResult struct {
	// WasMentioned is true when this bot specifically was addressed:
	// a structural mention, a configured pattern hit, or a reply to one
	// of the bot's own messages.
	WasMentioned bool
	// HasAnyMention is true when any mention markup is present at all,
	// ours or not. Some channels use it to stay out of conversations
	// clearly directed at someone else.
	HasAnyMention bool
}

// DetectMention evaluates mention gating for an event. Patterns run against
// the sender's own text only — quoted or forwarded content is excluded so a
// forward of someone else's "@bot ..." does not count as addressing us.
func DetectMention(ev Event, patterns []*regexp.Regexp) MentionResult {
	res := MentionResult{HasAnyMention: ev.HasAnyMention || ev.ExplicitMention}

	if ev.ExplicitMention {
		res.WasMentioned = true
		return res
	}
	if ev.ReplyToSelf {
		res.WasMentioned = true
		return res
	}

	// Patterns see only the sender's own words. A forward or quote of
	// someone else's "@bot ..." must not read as addressing us.
	text := ev.RawText
	if ev.QuotedText != "" {
		text = strings.ReplaceAll(text, ev.QuotedText, "")
	}
	for _, re := range patterns {
		if re == nil {
			continue
		}
		if re.MatchString(text) {
			res.WasMentioned = true
			res.HasAnyMention = true
			return res
		}
	}
	return res
}

// PatternCache caches the compiled form of a pattern list. Adapters rebuild
// their settings snapshot per event (for hot reload) and the pattern strings
// rarely change, so compilation is memoized on the joined list.
type PatternCache struct {
	mu       sync.Mutex
	key      string
	compiled []*regexp.Regexp
}

// Get returns the compiled patterns, recompiling only when the list changed.
func (p *PatternCache) Get(patterns []string) []*regexp.Regexp {
	key := strings.Join(patterns, "\x00")

	p.mu.Lock()
	defer p.mu.Unlock()
	if key == p.key && p.compiled != nil {
		return p.compiled
	}
	p.compiled = CompileMentionPatterns(patterns)
	p.key = key
	return p.compiled
}

// CompileMentionPatterns compiles the configured pattern strings, skipping
// any that fail to compile (the doctor command reports those).
func CompileMentionPatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}
