package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lumeo-app/lumeo/domain"
)

// CredentialRepository implements domain.CredentialStore using SQLite.
// Values are sealed at rest with a key derived from the device secret.
type CredentialRepository struct {
	db     *sql.DB
	sealer *sealer
}

// NewCredentialRepository creates a SQLite-backed credential store.
func NewCredentialRepository(db *DB, deviceSecret []byte) (*CredentialRepository, error) {
	s, err := newSealer(deviceSecret)
	if err != nil {
		return nil, fmt.Errorf("credential sealer: %w", err)
	}
	return &CredentialRepository{db: db.SqlDB, sealer: s}, nil
}

func (r *CredentialRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var sealed []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM credentials WHERE key = ?`, key,
	).Scan(&sealed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query credential: %w", err)
	}

	value, err := r.sealer.open(key, sealed)
	if err != nil {
		// Wrong device secret or corrupted row. Callers treat this like
		// an absent credential and re-authenticate.
		return nil, fmt.Errorf("unseal credential %s: %w", key, err)
	}
	return value, nil
}

func (r *CredentialRepository) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := r.sealer.seal(key, value)
	if err != nil {
		return fmt.Errorf("seal credential %s: %w", key, err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, sealed, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}
