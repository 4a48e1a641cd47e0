// Package file implements the standalone storage backends on local JSON
// files. One gateway process owns the directory; writes are atomic
// (temp file + rename) so a crash never leaves a torn state file.
package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nextlevelbuilder/clawgate/internal/store"
)

type pairingState struct {
	Requests []store.PairingRequest `json:"requests"`
	Allowed  map[string][]string    `json:"allowed"` // channel → subjects
}

// PairingStore is the file-backed pairing store.
type PairingStore struct {
	mu    sync.Mutex
	path  string
	state pairingState
}

// NewPairingStore loads (or initializes) pairing state under dir.
func NewPairingStore(dir string) (*PairingStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	s := &PairingStore{
		path:  filepath.Join(dir, "pairing.json"),
		state: pairingState{Allowed: make(map[string][]string)},
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		return nil, err
	}
	if s.state.Allowed == nil {
		s.state.Allowed = make(map[string][]string)
	}
	return s, nil
}

func (s *PairingStore) CreateRequest(ctx context.Context, req store.PairingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.state.Requests {
		if r.Channel == req.Channel && r.Subject == req.Subject {
			return store.ErrRequestExists
		}
	}
	s.state.Requests = append(s.state.Requests, req)
	return s.persist()
}

func (s *PairingStore) RequestBySubject(ctx context.Context, channel, subject string) (*store.PairingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Requests {
		r := s.state.Requests[i]
		if r.Channel == channel && r.Subject == subject {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *PairingStore) RequestByCode(ctx context.Context, code string) (*store.PairingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Requests {
		r := s.state.Requests[i]
		if r.Code == code {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *PairingStore) ListRequests(ctx context.Context, channel string) ([]store.PairingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.PairingRequest
	for _, r := range s.state.Requests {
		if channel == "" || r.Channel == channel {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *PairingStore) DeleteRequest(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.Requests[:0]
	for _, r := range s.state.Requests {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.state.Requests = kept
	return s.persist()
}

func (s *PairingStore) DeleteRequestsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.Requests[:0]
	removed := 0
	for _, r := range s.state.Requests {
		if r.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.state.Requests = kept
	if removed == 0 {
		return 0, nil
	}
	return removed, s.persist()
}

func (s *PairingStore) AddAllowed(ctx context.Context, channel, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.state.Allowed[channel] {
		if existing == subject {
			return nil
		}
	}
	s.state.Allowed[channel] = append(s.state.Allowed[channel], subject)
	return s.persist()
}

func (s *PairingStore) RemoveAllowed(ctx context.Context, channel, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.state.Allowed[channel]
	kept := list[:0]
	for _, existing := range list {
		if existing != subject {
			kept = append(kept, existing)
		}
	}
	s.state.Allowed[channel] = kept
	return s.persist()
}

func (s *PairingStore) ListAllowed(ctx context.Context, channel string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.state.Allowed[channel]
	out := make([]string, len(list))
	copy(out, list)
	return out, nil
}

// persist writes the state file atomically. Callers hold s.mu.
func (s *PairingStore) persist() error {
	data, err := json.MarshalIndent(&s.state, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "pairing-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	tmp.Close()
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
