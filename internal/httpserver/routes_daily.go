// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Challenge" mode.
// Exposes three endpoints under /daily:
//   - POST /daily/new         → start today's daily game (creates or reuses session)
//   - POST /daily/place       → place a piece in today's daily game
//   - GET  /daily/leaderboard → fetch top 20 results for today (or a given date)
//
// Everyone gets the same piece sequence on a given day: the bag is seeded
// from date + salt. Each player gets one run per day: daily games cannot be
// reset and the result is persisted once at game over.

package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/woodblocks/internal/daily"
	"github.com/robalobadob/woodblocks/internal/game"
	"github.com/robalobadob/woodblocks/internal/pieces"
	"github.com/robalobadob/woodblocks/internal/store"
)

// dailyKey identifies one owner's run on one day.
type dailyKey struct{ owner, date string }

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv      *Server
	salt     string
	sessions map[dailyKey]string // game IDs of open daily runs
	mu       sync.Mutex          // guards sessions
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	dd := &dailyServer{
		srv:      s,
		salt:     s.cfg.DailySalt,
		sessions: make(map[dailyKey]string),
	}
	s.dailies = dd
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", dd.handleNew)
		r.Post("/place", dd.handlePlace)
		r.Get("/leaderboard", dd.handleLeaderboard)
	})
}

// -----------------------------------------------------------------------------
// /daily/new

// newRes is returned by /daily/new.
type newRes struct {
	GameID string         `json:"gameId"`
	Date   string         `json:"date"`
	Played bool           `json:"played"`
	State  *game.Snapshot `json:"state,omitempty"`
}

// handleNew creates or reuses a daily session for the current date.
// - If the owner already has a result for today → Played=true.
// - Otherwise create/reuse a live session and return its state.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	owner, user := d.srv.ownerOf(w, r)
	now := d.srv.now()
	date := daily.DateKey(now)

	played, err := d.srv.daily.AlreadyPlayed(r.Context(), owner, date)
	if err != nil {
		log.Warn().Err(err).Msg("daily: already played lookup")
	}
	if played {
		_ = json.NewEncoder(w).Encode(newRes{Date: date, Played: true})
		return
	}

	key := dailyKey{owner: owner, date: date}
	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.sessions[key]; ok {
		who := identity{userID: owner, anonID: owner}
		if snap, err := d.srv.snapshot(r.Context(), who, id); err == nil {
			_ = json.NewEncoder(w).Encode(newRes{GameID: id, Date: date, State: &snap})
			return
		}
		delete(d.sessions, key)
	}

	bag := pieces.NewBag(pieces.NewRNG(daily.Seed(now, d.salt)))
	sess, err := d.srv.newSession(r.Context(), owner, user, date, game.WithSupplier(bag))
	if err != nil {
		writeOpError(w, err)
		return
	}
	d.sessions[key] = sess.Game.ID
	snap := sess.Game.Snapshot()
	_ = json.NewEncoder(w).Encode(newRes{GameID: sess.Game.ID, Date: date, State: &snap})
}

// rekey hands from's open daily runs to to, unless to already has one that day.
func (d *dailyServer) rekey(from, to string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, id := range d.sessions {
		if k.owner != from {
			continue
		}
		delete(d.sessions, k)
		nk := dailyKey{owner: to, date: k.date}
		if _, ok := d.sessions[nk]; !ok {
			d.sessions[nk] = id
		}
	}
}

// prune forgets runs of days other than today; their sessions age out of
// the store like any other.
func (d *dailyServer) prune(today string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k := range d.sessions {
		if k.date != today {
			delete(d.sessions, k)
		}
	}
}

// -----------------------------------------------------------------------------
// /daily/place

// handlePlace applies a placement to one of the caller's daily games.
// The result is persisted when the placement ends the game.
func (d *dailyServer) handlePlace(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeMove(w, r)
	if !ok {
		return
	}
	var res placeRes
	err := d.srv.withSession(r.Context(), d.srv.identify(r), body.GameID, func(sess *store.Session) error {
		if sess.Daily == "" {
			return store.ErrNotFound
		}
		var err error
		res, err = d.srv.placeOn(r.Context(), sess, body.Shape, body.X, body.Y)
		return err
	})
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// -----------------------------------------------------------------------------
// /daily/leaderboard

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(d.srv.now())
	}
	rows, err := d.srv.daily.Leaderboard(r.Context(), date, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	_ = json.NewEncoder(w).Encode(lbRes{Date: date, Top: rows})
}
