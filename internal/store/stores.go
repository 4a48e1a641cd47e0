// Package store defines the persistence interfaces for pairing state and the
// backends that implement them (file-based for standalone, Postgres for
// managed deployments).
package store

import (
	"context"
	"errors"
	"time"
)

// ErrRequestExists is returned by CreateRequest when a request for the same
// (channel, subject) is already stored. Backends enforce this uniqueness so
// two racing creators can never both land a request.
var ErrRequestExists = errors.New("pairing request already exists for subject")

// PairingRequest is one pending pairing request. Subject is the sender id
// for DM pairing, or "group:{roomId}" for room pairing.
type PairingRequest struct {
	ID        string            `json:"id"`
	Channel   string            `json:"channel"`
	Subject   string            `json:"subject"`
	Code      string            `json:"code"`
	Meta      map[string]string `json:"meta,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// PairingStore persists pairing requests and the approved allowlist.
type PairingStore interface {
	// CreateRequest stores req. Returns ErrRequestExists when a request for
	// req's (channel, subject) is already present.
	CreateRequest(ctx context.Context, req PairingRequest) error
	RequestBySubject(ctx context.Context, channel, subject string) (*PairingRequest, error)
	RequestByCode(ctx context.Context, code string) (*PairingRequest, error)
	ListRequests(ctx context.Context, channel string) ([]PairingRequest, error)
	DeleteRequest(ctx context.Context, id string) error
	// DeleteRequestsBefore removes requests created before cutoff and
	// returns how many were removed.
	DeleteRequestsBefore(ctx context.Context, cutoff time.Time) (int, error)

	AddAllowed(ctx context.Context, channel, subject string) error
	RemoveAllowed(ctx context.Context, channel, subject string) error
	ListAllowed(ctx context.Context, channel string) ([]string, error)
}

// StoreConfig selects and parameterizes the backends.
type StoreConfig struct {
	PostgresDSN string // managed mode
	PairingDir  string // standalone mode file storage
}

// Stores is the top-level container for all storage backends.
type Stores struct {
	Pairing PairingStore
}
