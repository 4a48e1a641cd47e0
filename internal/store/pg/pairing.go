package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/clawgate/internal/store"
)

// PGPairingStore implements store.PairingStore backed by Postgres.
type PGPairingStore struct {
	db *sql.DB
}

func NewPGPairingStore(db *sql.DB) *PGPairingStore {
	return &PGPairingStore{db: db}
}

func (s *PGPairingStore) CreateRequest(ctx context.Context, req store.PairingRequest) error {
	if req.ID == "" {
		req.ID = uuid.Must(uuid.NewV7()).String()
	}
	metaJSON, _ := json.Marshal(req.Meta)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO pairing_requests (id, channel, subject, code, meta, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (channel, subject) DO NOTHING`,
		req.ID, req.Channel, req.Subject, req.Code, metaJSON, req.CreatedAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrRequestExists
	}
	return nil
}

func (s *PGPairingStore) RequestBySubject(ctx context.Context, channel, subject string) (*store.PairingRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, channel, subject, code, meta, created_at
		 FROM pairing_requests WHERE channel = $1 AND subject = $2`,
		channel, subject,
	)
	return scanRequest(row)
}

func (s *PGPairingStore) RequestByCode(ctx context.Context, code string) (*store.PairingRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, channel, subject, code, meta, created_at
		 FROM pairing_requests WHERE code = $1`,
		code,
	)
	return scanRequest(row)
}

func (s *PGPairingStore) ListRequests(ctx context.Context, channel string) ([]store.PairingRequest, error) {
	query := `SELECT id, channel, subject, code, meta, created_at
	          FROM pairing_requests ORDER BY created_at`
	args := []any{}
	if channel != "" {
		query = `SELECT id, channel, subject, code, meta, created_at
		         FROM pairing_requests WHERE channel = $1 ORDER BY created_at`
		args = append(args, channel)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.PairingRequest
	for rows.Next() {
		var req store.PairingRequest
		var metaJSON []byte
		if err := rows.Scan(&req.ID, &req.Channel, &req.Subject, &req.Code, &metaJSON, &req.CreatedAt); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			json.Unmarshal(metaJSON, &req.Meta)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *PGPairingStore) DeleteRequest(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pairing_requests WHERE id = $1`, id)
	return err
}

func (s *PGPairingStore) DeleteRequestsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pairing_requests WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PGPairingStore) AddAllowed(ctx context.Context, channel, subject string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pairing_allowed (id, channel, subject, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (channel, subject) DO NOTHING`,
		uuid.Must(uuid.NewV7()).String(), channel, subject, time.Now(),
	)
	return err
}

func (s *PGPairingStore) RemoveAllowed(ctx context.Context, channel, subject string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM pairing_allowed WHERE channel = $1 AND subject = $2`,
		channel, subject,
	)
	return err
}

func (s *PGPairingStore) ListAllowed(ctx context.Context, channel string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject FROM pairing_allowed WHERE channel = $1 ORDER BY created_at`,
		channel,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, err
		}
		out = append(out, subject)
	}
	return out, rows.Err()
}

func scanRequest(row *sql.Row) (*store.PairingRequest, error) {
	var req store.PairingRequest
	var metaJSON []byte
	err := row.Scan(&req.ID, &req.Channel, &req.Subject, &req.Code, &metaJSON, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(metaJSON) > 0 {
		json.Unmarshal(metaJSON, &req.Meta)
	}
	return &req, nil
}
