// internal/httpserver/sweep.go
//
// Idle session eviction. Live games only exist in the session store, so
// without a sweep every game ever started would stay in memory.
//   - Finished games are dropped an hour after their last view.
//   - Unfinished games are dropped after a day idle; their run is recorded
//     as abandoned first.
//   - Open daily runs of past days are forgotten.

package httpserver

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/woodblocks/internal/daily"
	"github.com/robalobadob/woodblocks/internal/store"
)

const (
	idleTTL     = 24 * time.Hour
	finishedTTL = time.Hour
	sweepEvery  = 10 * time.Minute
)

// sweep evicts idle sessions and returns how many were dropped.
func (s *Server) sweep(ctx context.Context) int {
	now := s.now()
	ids, err := s.store.IDs(ctx, "")
	if err != nil {
		log.Warn().Err(err).Msg("sweep: list sessions")
		return 0
	}

	n := 0
	for _, id := range ids {
		err := s.store.Update(ctx, id, func(sess *store.Session) error {
			idle := now.Sub(sess.Touched)
			switch {
			case sess.Game.GameOver() && idle >= finishedTTL:
			case idle >= idleTTL:
				s.finishRun(ctx, sess, statusAbandoned)
			default:
				return nil
			}
			n++
			return s.store.Delete(ctx, id)
		})
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("gameId", id).Msg("sweep: evict")
		}
	}

	if s.dailies != nil {
		s.dailies.prune(daily.DateKey(now))
	}
	return n
}

// sweepLoop runs sweep every interval until ctx is done.
func (s *Server) sweepLoop(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.sweep(ctx); n > 0 {
				log.Info().Int("evicted", n).Msg("sweep")
			}
		}
	}
}
