package admission

import "strings"

// Identity is the sender (or room) surface the allowlist matcher sees.
type Identity struct {
	ID   string // platform id, case-sensitive
	Name string // display name, case-insensitive
	Tag  string // @username-style handle without "@", case-insensitive
}

// MatchesAllowList reports whether id matches any entry in list.
//
// Entries are normalized before comparison: surrounding whitespace is
// trimmed and a leading "@", "user:" or "id:" prefix is stripped. The
// literal "*" matches everyone. Ids compare case-sensitively; names and
// tags case-insensitively. Entries may use the compound "id|username"
// form, which matches on either side.
//
// An empty list matches nothing — an account that wants everyone in must
// say so with "*".
func MatchesAllowList(list []string, id Identity) bool {
	for _, raw := range list {
		entry := normalizeEntry(raw)
		if entry == "" {
			continue
		}
		if entry == "*" {
			return true
		}

		entryID := entry
		entryUser := ""
		if idx := strings.Index(entry, "|"); idx > 0 {
			entryID = entry[:idx]
			entryUser = entry[idx+1:]
		}

		if id.ID != "" && (id.ID == entry || id.ID == entryID) {
			return true
		}
		if entryUser != "" && (equalFoldNonEmpty(id.Tag, entryUser) || equalFoldNonEmpty(id.Name, entryUser)) {
			return true
		}
		if equalFoldNonEmpty(id.Tag, entry) || equalFoldNonEmpty(id.Name, entry) {
			return true
		}
	}
	return false
}

func normalizeEntry(e string) string {
	e = strings.TrimSpace(e)
	e = strings.TrimPrefix(e, "@")
	for _, p := range []string{"user:", "id:"} {
		if strings.HasPrefix(e, p) {
			e = e[len(p):]
			break
		}
	}
	return e
}

func equalFoldNonEmpty(a, b string) bool {
	return a != "" && b != "" && strings.EqualFold(a, b)
}

// SenderIdentity splits a possibly-compound "id|username" sender id into an
// Identity, folding in the display name and tag the adapter captured.
func SenderIdentity(senderID, display, tag string) Identity {
	id := Identity{ID: senderID, Name: display, Tag: tag}
	if idx := strings.Index(senderID, "|"); idx > 0 {
		id.ID = senderID[:idx]
		if id.Tag == "" {
			id.Tag = senderID[idx+1:]
		}
	}
	return id
}
