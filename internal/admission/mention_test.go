package admission

import (
	"regexp"
	"testing"
)

func TestDetectMention(t *testing.T) {
	patterns := CompileMentionPatterns([]string{`(?i)@clawbot\b`, `(?i)\bhey claw\b`})

	tests := []struct {
		name          string
		ev            Event
		patterns      []*regexp.Regexp
		wantMentioned bool
		wantAny       bool
	}{
		{
			name:          "explicit mention",
			ev:            Event{ExplicitMention: true, RawText: "hello"},
			wantMentioned: true,
			wantAny:       true,
		},
		{
			name:          "reply to own message counts",
			ev:            Event{ReplyToSelf: true, RawText: "and then?"},
			wantMentioned: true,
			wantAny:       false,
		},
		{
			name:          "pattern hit",
			ev:            Event{RawText: "@ClawBot what time is it"},
			patterns:      patterns,
			wantMentioned: true,
			wantAny:       true,
		},
		{
			name:          "alias pattern hit",
			ev:            Event{RawText: "hey claw, summarize this"},
			patterns:      patterns,
			wantMentioned: true,
			wantAny:       true,
		},
		{
			name:          "no signal",
			ev:            Event{RawText: "just chatting"},
			patterns:      patterns,
			wantMentioned: false,
			wantAny:       false,
		},
		{
			name:          "someone else mentioned",
			ev:            Event{RawText: "ping @alice", HasAnyMention: true},
			patterns:      patterns,
			wantMentioned: false,
			wantAny:       true,
		},
		{
			name: "forwarded text never pattern-matches",
			ev: Event{
				RawText:    "@ClawBot what time is it",
				QuotedText: "@ClawBot what time is it",
			},
			patterns:      patterns,
			wantMentioned: false,
			wantAny:       false,
		},
		{
			name: "own words still match around a quoted block",
			ev: Event{
				RawText:    "hey claw, look at this:\n> @alice said watch @ClawBot closely",
				QuotedText: "@alice said watch @ClawBot closely",
			},
			patterns:      patterns,
			wantMentioned: true,
			wantAny:       true,
		},
		{
			name: "quoted mention alone is not addressing us",
			ev: Event{
				RawText:    "lol\n> @ClawBot do the thing",
				QuotedText: "@ClawBot do the thing",
			},
			patterns:      patterns,
			wantMentioned: false,
			wantAny:       false,
		},
		{
			name:          "nil pattern entries are skipped",
			ev:            Event{RawText: "hello"},
			patterns:      []*regexp.Regexp{nil},
			wantMentioned: false,
			wantAny:       false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectMention(tt.ev, tt.patterns)
			if got.WasMentioned != tt.wantMentioned {
				t.Errorf("WasMentioned = %v, want %v", got.WasMentioned, tt.wantMentioned)
			}
			if got.HasAnyMention != tt.wantAny {
				t.Errorf("HasAnyMention = %v, want %v", got.HasAnyMention, tt.wantAny)
			}
		})
	}
}

func TestCompileMentionPatterns(t *testing.T) {
	got := CompileMentionPatterns([]string{`(?i)@bot\b`, "", `[invalid`})
	if len(got) != 1 {
		t.Fatalf("CompileMentionPatterns returned %d patterns, want 1", len(got))
	}
	if !got[0].MatchString("@Bot hi") {
		t.Error("surviving pattern should match @Bot hi")
	}
}

func TestPatternCacheReuse(t *testing.T) {
	var cache PatternCache
	first := cache.Get([]string{`@bot`})
	second := cache.Get([]string{`@bot`})
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("Get returned %d then %d patterns, want 1 each", len(first), len(second))
	}
	if &first[0] != &second[0] {
		t.Error("unchanged pattern list should return the cached slice")
	}

	changed := cache.Get([]string{`@bot`, `@other`})
	if len(changed) != 2 {
		t.Errorf("Get after change returned %d patterns, want 2", len(changed))
	}
}
