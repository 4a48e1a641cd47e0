package sessions

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is the catalog record for one session.
type Entry struct {
	Key       string   `json:"key"`
	ParentKey string   `json:"parentKey,omitempty"`
	Kind      PeerKind `json:"kind,omitempty"`
	Label     string   `json:"label,omitempty"`

	MessageCount int       `json:"messageCount"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
}

// Catalog tracks which session keys have been observed and their lightweight
// metadata. It does not hold conversation content — agents keep their own
// transcripts; the gateway only needs to know a session exists, who its
// parent is (thread forking), and when it was last active.
type Catalog struct {
	entries map[string]*Entry
	mu      sync.RWMutex
	storage string
}

// NewCatalog loads existing entries from storage (one JSON file per session).
// An empty storage path keeps the catalog in memory only.
func NewCatalog(storage string) *Catalog {
	c := &Catalog{
		entries: make(map[string]*Entry),
		storage: storage,
	}
	if storage != "" {
		os.MkdirAll(storage, 0755)
		c.loadAll()
	}
	return c
}

// Touch records activity on a session, creating the entry on first sight.
// Returns true when the session was not previously known.
func (c *Catalog) Touch(key, parentKey, label string, kind PeerKind) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &Entry{
			Key:       key,
			ParentKey: parentKey,
			Kind:      kind,
			Created:   time.Now(),
		}
		c.entries[key] = e
	}
	if label != "" {
		e.Label = label
	}
	e.MessageCount++
	e.Updated = time.Now()
	snapshot := *e
	c.mu.Unlock()

	c.persist(&snapshot)
	return !ok
}

// Seen reports whether a session key has been observed before.
func (c *Catalog) Seen(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// Get returns a copy of the entry for key, if known.
func (c *Catalog) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[key]; ok {
		return *e, true
	}
	return Entry{}, false
}

// List returns entries, optionally filtered by agent id, newest first not
// guaranteed — callers sort as needed.
func (c *Catalog) List(agentID string) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	prefix := ""
	if agentID != "" {
		prefix = "agent:" + agentID + ":"
	}

	var result []Entry
	for key, e := range c.entries {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		result = append(result, *e)
	}
	return result
}

// Delete removes a session entry and its file.
func (c *Catalog) Delete(key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	if c.storage != "" {
		path := filepath.Join(c.storage, sanitizeFilename(key)+".json")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (c *Catalog) persist(e *Entry) {
	if c.storage == "" {
		return
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return
	}

	filename := sanitizeFilename(e.Key)
	if filename == "." || !filepath.IsLocal(filename) || strings.ContainsAny(filename, `/\`) {
		return
	}
	path := filepath.Join(c.storage, filename+".json")

	// Atomic write: temp file → rename
	tmpFile, err := os.CreateTemp(c.storage, "session-*.tmp")
	if err != nil {
		return
	}
	tmpPath := tmpFile.Name()
	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return
	}
	tmpFile.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
	}
}

func (c *Catalog) loadAll() {
	files, err := os.ReadDir(c.storage)
	if err != nil {
		return
	}
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.storage, f.Name()))
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil || e.Key == "" {
			continue
		}
		c.entries[e.Key] = &e
	}
}

func sanitizeFilename(key string) string {
	return strings.ReplaceAll(key, ":", "_")
}
