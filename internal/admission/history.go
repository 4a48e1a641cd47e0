package admission

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultHistoryLimit is the pending-history cap used when the config does
// not set one.
const DefaultHistoryLimit = 50

// HistoryEntry is one unaddressed group message kept for future context.
type HistoryEntry struct {
	Sender    string
	Body      string
	MessageID string
	Timestamp time.Time
}

// PendingHistory buffers recent group messages that were dropped for lack of
// a mention, keyed by conversation. When the bot is finally addressed, the
// buffered lines are drained into the agent's context so it can follow the
// discussion it was not part of.
type PendingHistory struct {
	mu      sync.Mutex
	entries map[string][]HistoryEntry
}

func NewPendingHistory() *PendingHistory {
	return &PendingHistory{entries: make(map[string][]HistoryEntry)}
}

// Record appends an entry for key, evicting the oldest once limit is
// reached. A limit <= 0 disables recording entirely.
func (h *PendingHistory) Record(key string, e HistoryEntry, limit int) {
	if limit <= 0 || key == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	buf := append(h.entries[key], e)
	if len(buf) > limit {
		buf = buf[len(buf)-limit:]
	}
	h.entries[key] = buf
}

// Drain returns and clears the buffered entries for key.
func (h *PendingHistory) Drain(key string) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf := h.entries[key]
	delete(h.entries, key)
	return buf
}

// Clear discards any buffered entries for key without returning them.
func (h *PendingHistory) Clear(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.entries, key)
}

// Len reports how many entries are buffered for key.
func (h *PendingHistory) Len(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries[key])
}

// BuildContext drains the buffer for key and renders a transcript with the
// current message appended, annotated with who is speaking. Returns the
// current line alone when nothing was buffered.
func (h *PendingHistory) BuildContext(key, currentSender, currentBody string) string {
	entries := h.Drain(key)
	if len(entries) == 0 {
		return fmt.Sprintf("[From: %s] %s", currentSender, currentBody)
	}

	var b strings.Builder
	b.WriteString("[Recent messages in this chat]\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "[From: %s] %s\n", e.Sender, e.Body)
	}
	fmt.Fprintf(&b, "[From: %s] %s", currentSender, currentBody)
	return b.String()
}
