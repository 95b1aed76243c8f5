// internal/highscore/sqlite.go
//
// SQLite-backed KV, one namespace per owner (user ID or anonymous ID).
// Rows live in high_scores(owner_id, key, value, updated_at).

package highscore

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type sqlKV struct {
	db    *sql.DB
	owner string
}

// NewSQLKV returns a KV scoped to owner.
func NewSQLKV(db *sql.DB, owner string) KV {
	return &sqlKV{db: db, owner: owner}
}

func (s *sqlKV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM high_scores WHERE owner_id=? AND key=?`, s.owner, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *sqlKV) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO high_scores (owner_id, key, value, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(owner_id, key) DO UPDATE SET
            value = excluded.value,
            updated_at = excluded.updated_at`,
		s.owner, key, value, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// MoveOwner re-homes from's values under to, keeping the larger score when
// both exist. Used when a guest signs in.
func MoveOwner(ctx context.Context, db *sql.DB, from, to string) error {
	if from == "" || to == "" || from == to {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO high_scores (owner_id, key, value, updated_at)
        SELECT ?, key, value, updated_at FROM high_scores WHERE owner_id=?
        ON CONFLICT(owner_id, key) DO UPDATE SET
            value = CASE WHEN CAST(excluded.value AS INTEGER) > CAST(high_scores.value AS INTEGER)
                         THEN excluded.value ELSE high_scores.value END,
            updated_at = excluded.updated_at`, to, from); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM high_scores WHERE owner_id=?`, from); err != nil {
		return err
	}
	return tx.Commit()
}
