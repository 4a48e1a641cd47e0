package admission

import "strings"

// HasControlCommand reports whether text starts with a control-command
// prefix. Prefix-only messages ("/", "!") do not count, and neither does
// anything past the first line's leading token — "see /help above" is prose,
// not a command.
func HasControlCommand(text string, prefixes []string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if len(prefixes) == 0 {
		prefixes = []string{"/"}
	}
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		if strings.HasPrefix(trimmed, p) && len(trimmed) > len(p) {
			// The char after the prefix must begin a command word.
			rest := trimmed[len(p):]
			if rest[0] == ' ' || rest[0] == '\t' {
				continue
			}
			return true
		}
	}
	return false
}

// CommandText extracts the first line of a control command for the
// dispatcher, or "" when the text is not a command.
func CommandText(text string, prefixes []string) string {
	if !HasControlCommand(text, prefixes) {
		return ""
	}
	trimmed := strings.TrimSpace(text)
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		return strings.TrimSpace(trimmed[:idx])
	}
	return trimmed
}
