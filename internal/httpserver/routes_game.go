// internal/httpserver/routes_game.go
//
// Game endpoints and the session operations they share with live play.
//   - POST /game/new    → start a classic game, returns its snapshot
//   - GET  /game/{id}   → current snapshot
//   - POST /game/place  → place an offered shape at (x, y)
//   - POST /game/check  → dry-run a placement
//   - POST /game/reset  → restart a classic game, keeping the high score
//
// Shapes travel as catalog names ("L_SHAPE", "SQUARE_2X2", ...).
// Rejections answer 400 with one of: unknown_shape, not_offered, invalid_placement.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/woodblocks/internal/game"
	"github.com/robalobadob/woodblocks/internal/highscore"
	"github.com/robalobadob/woodblocks/internal/pieces"
	"github.com/robalobadob/woodblocks/internal/store"
)

var errDailyReset = errors.New("daily games cannot be reset")

// newGameReq is the optional body for POST /game/new.
// Seed fixes the piece sequence (handy for tests and replays).
type newGameReq struct {
	Seed *uint64 `json:"seed,omitempty"`
}

// moveReq is the body for POST /game/place and /game/check.
type moveReq struct {
	GameID string       `json:"gameId"`
	Shape  pieces.Shape `json:"shape"`
	X      int          `json:"x"`
	Y      int          `json:"y"`
}

// gameIDReq is the body for POST /game/reset.
type gameIDReq struct {
	GameID string `json:"gameId"`
}

// placeRes is returned for an accepted placement.
type placeRes struct {
	Placement game.Placement `json:"placement"`
	State     game.Snapshot  `json:"state"`
}

// ---------------------------- identity -------------------------------------

// identity is who is asking: a signed-in user, an anonymous cookie, or both.
type identity struct {
	userID string
	anonID string
}

func (s *Server) identify(r *http.Request) identity {
	var id identity
	if me := userFrom(r); me != nil {
		id.userID = me.ID
	}
	if c, err := r.Cookie(anonCookieName); err == nil {
		id.anonID = c.Value
	}
	return id
}

// owns reports whether the caller may see or play sess.
func (id identity) owns(sess *store.Session) bool {
	return sess.Owner != "" && (sess.Owner == id.userID || sess.Owner == id.anonID)
}

// ownerOf picks the owner for a new game: the user if signed in, else the anon cookie.
func (s *Server) ownerOf(w http.ResponseWriter, r *http.Request) (owner string, user bool) {
	if me := userFrom(r); me != nil {
		return me.ID, true
	}
	return s.ensureAnonID(w, r), false
}

// ---------------------------- session ops ----------------------------------

// newSession builds a game wired to the owner's persistent high score and
// opens its first run.
func (s *Server) newSession(ctx context.Context, owner string, user bool, date string, opts ...game.Option) (*store.Session, error) {
	keeper := highscore.NewKeeper(highscore.NewSQLKV(s.db, owner))
	opts = append([]game.Option{game.WithHighScores(keeper), game.WithLogger(log.Logger)}, opts...)
	sess := &store.Session{
		Game:    game.New(opts...),
		Owner:   owner,
		User:    user,
		Daily:   date,
		Touched: s.now(),
	}
	s.startRun(ctx, sess)
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// withSession runs fn on the caller's session; foreign games look missing.
func (s *Server) withSession(ctx context.Context, who identity, id string, fn func(*store.Session) error) error {
	return s.store.Update(ctx, id, func(sess *store.Session) error {
		if !who.owns(sess) {
			return store.ErrNotFound
		}
		sess.Touched = s.now()
		return fn(sess)
	})
}

// rehomeSessions hands from's live sessions to the account to: ownership,
// stats and the high score of the games still being played.
func (s *Server) rehomeSessions(ctx context.Context, from, to string) {
	ids, err := s.store.IDs(ctx, from)
	if err != nil {
		log.Warn().Err(err).Msg("rehome sessions: list")
		return
	}
	for _, id := range ids {
		err := s.store.Update(ctx, id, func(sess *store.Session) error {
			if sess.Owner != from {
				return nil
			}
			sess.Owner, sess.User = to, true
			sess.Game.SetHighScores(highscore.NewKeeper(highscore.NewSQLKV(s.db, to)))
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("gameId", id).Msg("rehome session")
		}
	}
}

func (s *Server) snapshot(ctx context.Context, who identity, id string) (game.Snapshot, error) {
	var snap game.Snapshot
	err := s.withSession(ctx, who, id, func(sess *store.Session) error {
		snap = sess.Game.Snapshot()
		return nil
	})
	return snap, err
}

func (s *Server) place(ctx context.Context, who identity, id string, shape pieces.Shape, x, y int) (placeRes, error) {
	var res placeRes
	err := s.withSession(ctx, who, id, func(sess *store.Session) error {
		var err error
		res, err = s.placeOn(ctx, sess, shape, x, y)
		return err
	})
	return res, err
}

// placeOn applies a placement to a locked session and records it.
func (s *Server) placeOn(ctx context.Context, sess *store.Session, shape pieces.Shape, x, y int) (placeRes, error) {
	p, err := sess.Game.Place(shape, x, y)
	if err != nil {
		return placeRes{}, err
	}
	s.recordPlacement(ctx, sess, p)
	return placeRes{Placement: p, State: sess.Game.Snapshot()}, nil
}

func (s *Server) check(ctx context.Context, who identity, id string, shape pieces.Shape, x, y int) (bool, error) {
	if _, ok := pieces.Lookup(shape); !ok {
		return false, game.ErrUnknownShape
	}
	var ok bool
	err := s.withSession(ctx, who, id, func(sess *store.Session) error {
		ok = sess.Game.IsValidPlacement(shape, x, y)
		return nil
	})
	return ok, err
}

// reset abandons the current run and starts a new one on the same game.
func (s *Server) reset(ctx context.Context, who identity, id string) (game.Snapshot, error) {
	var snap game.Snapshot
	err := s.withSession(ctx, who, id, func(sess *store.Session) error {
		if sess.Daily != "" {
			return errDailyReset
		}
		s.finishRun(ctx, sess, statusAbandoned)
		sess.Game.Reset()
		s.startRun(ctx, sess)
		snap = sess.Game.Snapshot()
		return nil
	})
	return snap, err
}

// errorStatus maps session/engine errors to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, game.ErrUnknownShape):
		return http.StatusBadRequest, "unknown_shape"
	case errors.Is(err, game.ErrNotOffered):
		return http.StatusBadRequest, "not_offered"
	case errors.Is(err, game.ErrInvalidPlacement):
		return http.StatusBadRequest, "invalid_placement"
	case errors.Is(err, errDailyReset):
		return http.StatusConflict, "daily_no_reset"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

func writeOpError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("game op")
	}
	writeError(w, status, code)
}

// decodeMove parses a move body; unknown shape names surface as unknown_shape.
func decodeMove(w http.ResponseWriter, r *http.Request) (moveReq, bool) {
	var body moveReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, pieces.ErrUnknownShape) {
			writeError(w, http.StatusBadRequest, "unknown_shape")
		} else {
			writeError(w, http.StatusBadRequest, "invalid_json")
		}
		return body, false
	}
	if body.GameID == "" {
		writeError(w, http.StatusBadRequest, "missing gameId")
		return body, false
	}
	return body, true
}

// ------------------------------ handlers -----------------------------------

// handleNewGame creates a new classic game owned by the caller.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var body newGameReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
	}
	var opts []game.Option
	if body.Seed != nil {
		opts = append(opts, game.WithSupplier(pieces.NewBag(pieces.NewRNG(*body.Seed))))
	}

	owner, user := s.ownerOf(w, r)
	sess, err := s.newSession(r.Context(), owner, user, "", opts...)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Game.Snapshot())
}

// handleGetGame returns the caller's game state.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r.Context(), s.identify(r), chi.URLParam(r, "id"))
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handlePlace applies one placement.
func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeMove(w, r)
	if !ok {
		return
	}
	res, err := s.place(r.Context(), s.identify(r), body.GameID, body.Shape, body.X, body.Y)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCheck reports whether a placement would be accepted.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeMove(w, r)
	if !ok {
		return
	}
	valid, err := s.check(r.Context(), s.identify(r), body.GameID, body.Shape, body.X, body.Y)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// handleReset restarts a classic game.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var body gameIDReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.GameID == "" {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	snap, err := s.reset(r.Context(), s.identify(r), body.GameID)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
