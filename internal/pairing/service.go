// Package pairing implements the pairing handshake: unknown senders under a
// "pairing" policy receive a short code, an operator approves the code, and
// the sender lands on the channel's allowlist.
package pairing

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/clawgate/internal/store"
)

// Code alphabet avoids ambiguous glyphs (0/O, 1/I/L) since users read codes
// off a chat message and type them into a terminal.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
const codeLength = 8

// DefaultTTL is how long a pending request stays approvable.
const DefaultTTL = 48 * time.Hour

// Service owns pairing-request lifecycle on top of a PairingStore backend.
type Service struct {
	store    store.PairingStore
	ttl      time.Duration
	debounce time.Duration

	mu         sync.Mutex
	lastNotice map[string]time.Time   // channel:subject → last pairing reply
	upserts    map[string]*sync.Mutex // channel:subject → in-process upsert lock
}

// New creates a pairing service. ttl <= 0 uses DefaultTTL; debounce <= 0
// disables reply debouncing.
func New(st store.PairingStore, ttl, debounce time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store:      st,
		ttl:        ttl,
		debounce:   debounce,
		lastNotice: make(map[string]time.Time),
		upserts:    make(map[string]*sync.Mutex),
	}
}

// subjectLock returns the mutex serializing Upsert calls for one
// (channel, subject). Upsert must never run its lookup and create as two
// separate steps visible to a concurrent caller, or first contact under
// burst delivery mints several requests with different codes.
func (s *Service) subjectLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.upserts[key]
	if !ok {
		m = &sync.Mutex{}
		s.upserts[key] = m
	}
	return m
}

// Upsert returns the pairing code for (channel, subject), creating the
// request on first contact. created is true only when this call created the
// request — callers reply to the sender exactly then. An expired request is
// replaced by a fresh one (created=true again).
func (s *Service) Upsert(ctx context.Context, channel, subject string, meta map[string]string) (string, bool, error) {
	lock := s.subjectLock(channel + ":" + subject)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.store.RequestBySubject(ctx, channel, subject)
	if err != nil {
		return "", false, fmt.Errorf("pairing lookup: %w", err)
	}
	if existing != nil {
		if time.Since(existing.CreatedAt) < s.ttl {
			return existing.Code, false, nil
		}
		if err := s.store.DeleteRequest(ctx, existing.ID); err != nil {
			return "", false, fmt.Errorf("pairing expire: %w", err)
		}
	}

	req := store.PairingRequest{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Channel:   channel,
		Subject:   subject,
		Code:      newCode(),
		Meta:      meta,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		if errors.Is(err, store.ErrRequestExists) {
			// Another gateway process sharing the store won the insert;
			// surface its code so the sender sees one code, not two.
			winner, lookupErr := s.store.RequestBySubject(ctx, channel, subject)
			if lookupErr == nil && winner != nil {
				return winner.Code, false, nil
			}
		}
		return "", false, fmt.Errorf("pairing create: %w", err)
	}
	return req.Code, true, nil
}

// AllowFrom lists subjects approved for channel, merged by the pipeline into
// the configured allowlist.
func (s *Service) AllowFrom(ctx context.Context, channel string) ([]string, error) {
	return s.store.ListAllowed(ctx, channel)
}

// Approve resolves a code, moves its subject onto the channel allowlist, and
// removes the request. Returns the approved request.
func (s *Service) Approve(ctx context.Context, code string) (*store.PairingRequest, error) {
	req, err := s.store.RequestByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("pairing lookup: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("no pairing request with code %q", code)
	}
	if time.Since(req.CreatedAt) >= s.ttl {
		s.store.DeleteRequest(ctx, req.ID)
		return nil, fmt.Errorf("pairing code %q expired", code)
	}
	if err := s.store.AddAllowed(ctx, req.Channel, req.Subject); err != nil {
		return nil, fmt.Errorf("pairing approve: %w", err)
	}
	if err := s.store.DeleteRequest(ctx, req.ID); err != nil {
		return nil, fmt.Errorf("pairing cleanup: %w", err)
	}
	slog.Info("pairing approved", "channel", req.Channel, "subject", req.Subject)
	return req, nil
}

// List returns pending requests, optionally filtered by channel.
func (s *Service) List(ctx context.Context, channel string) ([]store.PairingRequest, error) {
	return s.store.ListRequests(ctx, channel)
}

// Revoke removes a subject from a channel's pairing allowlist.
func (s *Service) Revoke(ctx context.Context, channel, subject string) error {
	return s.store.RemoveAllowed(ctx, channel, subject)
}

// SweepExpired removes requests older than the TTL.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	return s.store.DeleteRequestsBefore(ctx, time.Now().Add(-s.ttl))
}

// RunSweeper removes expired requests on a fixed interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				slog.Warn("pairing sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("pairing sweep removed expired requests", "count", n)
			}
		}
	}
}

// ShouldNotify rate-limits repeat pairing replies to the same subject.
// Returns true at most once per debounce window.
func (s *Service) ShouldNotify(channel, subject string) bool {
	if s.debounce <= 0 {
		return true
	}
	key := channel + ":" + subject
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastNotice[key]; ok && now.Sub(last) < s.debounce {
		return false
	}
	s.lastNotice[key] = now
	return true
}

func newCode() string {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}
