package admission

import "testing"

func TestHasControlCommand(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		prefixes []string
		want     bool
	}{
		{name: "slash command", text: "/status", want: true},
		{name: "slash command with args", text: "/new session please", want: true},
		{name: "plain prose", text: "hello there", want: false},
		{name: "empty text", text: "", want: false},
		{name: "whitespace only", text: "   ", want: false},
		{name: "bare prefix does not count", text: "/", want: false},
		{name: "prefix followed by space is prose", text: "/ status", want: false},
		{name: "command mid-sentence is prose", text: "see /help above", want: false},
		{name: "leading whitespace trimmed", text: "  /status", want: true},
		{name: "custom prefix", text: "!ping", prefixes: []string{"!"}, want: true},
		{name: "default prefix ignored when custom set", text: "/ping", prefixes: []string{"!"}, want: false},
		{name: "empty prefix entry skipped", text: "hello", prefixes: []string{""}, want: false},
		{name: "multi-char prefix", text: "cg:status", prefixes: []string{"cg:"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasControlCommand(tt.text, tt.prefixes); got != tt.want {
				t.Errorf("HasControlCommand(%q, %v) = %v, want %v", tt.text, tt.prefixes, got, tt.want)
			}
		})
	}
}

func TestCommandText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "single line command", text: "/status", want: "/status"},
		{name: "first line only", text: "/new\nand some followup", want: "/new"},
		{name: "trailing whitespace trimmed", text: "  /status  ", want: "/status"},
		{name: "non-command yields empty", text: "hello", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CommandText(tt.text, nil); got != tt.want {
				t.Errorf("CommandText(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
