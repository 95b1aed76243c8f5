package daily

import (
	"context"
	"database/sql"
	"fmt"
)

type Result struct {
	UserID     string `json:"userId"`
	Date       string `json:"date"`
	Score      int    `json:"score"`
	Placements int    `json:"placements"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) AlreadyPlayed(ctx context.Context, userID, date string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM daily_results WHERE user_id=? AND date=?",
		userID, date,
	).Scan(&cnt)
	return cnt > 0, err
}

// InsertResult records a finished daily game; a second result for the same
// user and date is ignored.
func (s *Store) InsertResult(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_results(user_id, date, score, placements)
		VALUES(?,?,?,?)`, r.UserID, r.Date, r.Score, r.Placements,
	)
	return err
}

type LBRow struct {
	UserID     string `json:"userId"`
	Username   string `json:"username,omitempty"`
	Score      int    `json:"score"`
	Placements int    `json:"placements"`
}

// Leaderboard ranks a day's results: highest score first, then fewest
// placements, then earliest finish.
func (s *Store) Leaderboard(ctx context.Context, date string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.user_id, COALESCE(u.username, ''), d.score, d.placements
		FROM daily_results d
		LEFT JOIN users u ON u.id = d.user_id
		WHERE d.date=?
		ORDER BY d.score DESC, d.placements ASC, d.created_at ASC
		LIMIT ?`, date, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LBRow{}
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.UserID, &r.Username, &r.Score, &r.Placements); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MoveOwner hands from's results to to. Where both played the same day the
// account's own result is kept and from's is dropped.
func (s *Store) MoveOwner(ctx context.Context, from, to string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE OR IGNORE daily_results SET user_id=? WHERE user_id=?`, to, from); err != nil {
		return fmt.Errorf("move daily results: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_results WHERE user_id=?`, from); err != nil {
		return fmt.Errorf("drop daily results: %w", err)
	}
	return tx.Commit()
}
