// internal/httpserver/records.go
//
// SQLite bookkeeping for played runs.
// Responsibilities:
//   - One games row per run (a run restarts on reset).
//   - Row kept current after every placement: score, placements, best streak.
//   - On game over or abandonment: finish the row, bump user stats and,
//     for daily games, insert the daily result. Done once per run.
//   - Gated reads: /stats/me, /games/mine.
//
// All writes here are best-effort: failures are logged and never block play.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/woodblocks/internal/daily"
	"github.com/robalobadob/woodblocks/internal/game"
	"github.com/robalobadob/woodblocks/internal/highscore"
	"github.com/robalobadob/woodblocks/internal/store"
)

const (
	statusPlaying   = "playing"
	statusOver      = "over"
	statusAbandoned = "abandoned"
)

// startRun opens a fresh games row for the session's current game.
func (s *Server) startRun(ctx context.Context, sess *store.Session) {
	sess.RunID = uuid.NewString()
	sess.Recorded = false

	mode := "classic"
	if sess.Daily != "" {
		mode = "daily"
	}
	var userID, anonID any
	if sess.User {
		userID = sess.Owner
	} else {
		anonID = sess.Owner
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO games (id, game_id, user_id, anonymous_id, mode, status, started_at) VALUES (?,?,?,?,?,?,?)`,
		sess.RunID, sess.Game.ID, userID, anonID, mode, statusPlaying, now); err != nil {
		log.Warn().Err(err).Str("gameId", sess.Game.ID).Msg("insert game row")
	}
}

// recordPlacement updates the run row after a successful placement.
func (s *Server) recordPlacement(ctx context.Context, sess *store.Session, p game.Placement) {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE games SET score=?, placements=?, best_streak=MAX(best_streak, ?) WHERE id=?`,
		p.Score, sess.Game.Placements(), p.Streak, sess.RunID); err != nil {
		log.Warn().Err(err).Str("gameId", sess.Game.ID).Msg("update game row")
	}
	if p.GameOver {
		s.finishRun(ctx, sess, statusOver)
	}
}

// finishRun closes the run row and bumps stats within one transaction.
// It is a no-op for runs already recorded.
func (s *Server) finishRun(ctx context.Context, sess *store.Session, status string) {
	if sess.Recorded || sess.RunID == "" {
		return
	}
	g := sess.Game
	if status == statusAbandoned && g.Placements() == 0 {
		// nothing played: drop the row instead of counting a game
		if _, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE id=?`, sess.RunID); err != nil {
			log.Warn().Err(err).Msg("drop empty game row")
		}
		sess.Recorded = true
		return
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Warn().Err(err).Msg("finish run: begin")
		return
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		`UPDATE games SET status=?, score=?, placements=?, finished_at=? WHERE id=?`,
		status, g.Score(), g.Placements(), now, sess.RunID); err != nil {
		log.Warn().Err(err).Msg("finish run: update game")
		return
	}
	if sess.User {
		var bestStreak int
		if err := tx.QueryRowContext(ctx, `SELECT best_streak FROM games WHERE id=?`, sess.RunID).Scan(&bestStreak); err != nil {
			log.Warn().Err(err).Msg("finish run: read streak")
			return
		}
		if err := bumpStats(ctx, tx, sess.Owner, g.Score(), bestStreak); err != nil {
			log.Warn().Err(err).Msg("finish run: bump stats")
			return
		}
	}
	if err := tx.Commit(); err != nil {
		log.Warn().Err(err).Msg("finish run: commit")
		return
	}
	sess.Recorded = true

	if sess.Daily != "" {
		if err := s.daily.InsertResult(ctx, daily.Result{
			UserID:     sess.Owner,
			Date:       sess.Daily,
			Score:      g.Score(),
			Placements: g.Placements(),
		}); err != nil {
			log.Warn().Err(err).Msg("insert daily result")
		}
	}
	log.Info().Str("gameId", g.ID).Str("status", status).Int("score", g.Score()).Msg("run finished")
}

// bumpStats increments games played and raises best score/streak (within tx).
func bumpStats(ctx context.Context, tx *sql.Tx, userID string, score, streak int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE users SET games_played = games_played + 1,
		                  best_score   = MAX(best_score, ?),
		                  best_streak  = MAX(best_streak, ?)
		 WHERE id=?`, score, streak, userID)
	return err
}

// ------------------------------ gated reads --------------------------------

// handleStats returns the user's counters plus their stored high score.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r)
	u, err := s.findUserByID(r.Context(), me.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "not_found")
		return
	}
	high, err := highscore.NewKeeper(highscore.NewSQLKV(s.db, me.ID)).Load()
	if err != nil {
		log.Warn().Err(err).Msg("stats: load high score")
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":          u.ID,
		"gamesPlayed": u.GamesPlayed,
		"bestScore":   u.BestScore,
		"bestStreak":  u.BestStreak,
		"highScore":   high,
	})
}

// gameRow is one entry of /games/mine.
type gameRow struct {
	ID         string `json:"id"`
	GameID     string `json:"gameId"`
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	Score      int    `json:"score"`
	Placements int    `json:"placements"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// handleMyGames lists the user's 50 most recent runs.
func (s *Server) handleMyGames(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r)
	rows, err := s.db.QueryContext(r.Context(),
		`SELECT id, game_id, mode, status, score, placements, started_at, COALESCE(finished_at,'')
		 FROM games WHERE user_id=? ORDER BY started_at DESC LIMIT 50`, me.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	defer rows.Close()

	out := []gameRow{}
	for rows.Next() {
		var gr gameRow
		if err := rows.Scan(&gr.ID, &gr.GameID, &gr.Mode, &gr.Status, &gr.Score, &gr.Placements, &gr.StartedAt, &gr.FinishedAt); err == nil {
			out = append(out, gr)
		}
	}
	_ = json.NewEncoder(w).Encode(out)
}
