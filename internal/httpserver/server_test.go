package httpserver

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/woodblocks/assets"
	"github.com/robalobadob/woodblocks/internal/config"
	"github.com/robalobadob/woodblocks/internal/database"
	"github.com/robalobadob/woodblocks/internal/game"
	"github.com/robalobadob/woodblocks/internal/pieces"
	"github.com/robalobadob/woodblocks/internal/store"
)

type testEnv struct {
	srv   *Server
	db    *sql.DB
	ts    *httptest.Server
	clock atomic.Int64 // server time, unix nanos
}

var testStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db, assets.Migrations, "sql"))

	cfg := config.Config{
		JWTSecret:      "test_secret",
		JWTExpiresDays: 1,
		CookieName:     "blocks_token",
		ClientOrigin:   "http://localhost:5173",
		DailySalt:      "test_salt",
	}
	e := &testEnv{srv: New(store.NewMemoryStore(), db, cfg), db: db}
	e.clock.Store(testStart.UnixNano())
	e.srv.now = func() time.Time { return time.Unix(0, e.clock.Load()).UTC() }
	e.ts = httptest.NewServer(e.srv.Router())
	t.Cleanup(e.ts.Close)
	return e
}

// advance moves the server clock forward.
func (e *testEnv) advance(d time.Duration) { e.clock.Add(int64(d)) }

// client returns an HTTP client with its own cookie jar (one browser).
func (e *testEnv) client(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

// call sends body as JSON and decodes the response into out (if non-nil).
func (e *testEnv) call(t *testing.T, c *http.Client, method, path string, body, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := c.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func (e *testEnv) newGame(t *testing.T, c *http.Client, seed uint64) game.Snapshot {
	t.Helper()
	var snap game.Snapshot
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/game/new", map[string]any{"seed": seed}, &snap))
	require.Len(t, snap.Offered, game.OfferSize)
	return snap
}

func notOffered(offered []pieces.Shape) pieces.Shape {
	for _, s := range pieces.All() {
		if !slices.Contains(offered, s) {
			return s
		}
	}
	return pieces.NoShape
}

func TestHealthAndPieces(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)

	var health map[string]bool
	assert.Equal(t, http.StatusOK, e.call(t, c, http.MethodGet, "/health", nil, &health))
	assert.True(t, health["ok"])

	var list []pieceRes
	assert.Equal(t, http.StatusOK, e.call(t, c, http.MethodGet, "/pieces", nil, &list))
	require.Len(t, list, pieces.Count())
	for _, p := range list {
		assert.True(t, p.Name.Valid())
		assert.NotEmpty(t, p.Cells)
		assert.NotEmpty(t, p.Color)
	}

	var nf map[string]string
	assert.Equal(t, http.StatusNotFound, e.call(t, c, http.MethodGet, "/nope", nil, &nf))
	assert.Equal(t, "not_found", nf["error"])
}

func TestPlayClassicGame(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)
	snap := e.newGame(t, c, 7)

	var got game.Snapshot
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodGet, "/game/"+snap.ID, nil, &got))
	assert.Equal(t, snap, got)

	// Every catalog shape fits at the origin of an empty board; only the
	// 3x3 square would clear something there.
	first := snap.Offered[0]
	if first == pieces.Square3x3 {
		first = snap.Offered[1]
	}
	var res placeRes
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/game/place",
		map[string]any{"gameId": snap.ID, "shape": first, "x": 0, "y": 0}, &res))
	assert.Equal(t, pieces.CellCount(first), res.Placement.Points)
	assert.Equal(t, pieces.CellCount(first), res.State.Score)
	assert.Equal(t, 1, res.State.Placements)
	for _, cell := range res.Placement.Cells {
		assert.Equal(t, first, res.State.Board.At(cell.X, cell.Y))
	}

	var row struct {
		score, placements int
		status            string
	}
	require.NoError(t, e.db.QueryRow(`SELECT score, placements, status FROM games WHERE game_id=?`, snap.ID).
		Scan(&row.score, &row.placements, &row.status))
	assert.Equal(t, res.State.Score, row.score)
	assert.Equal(t, 1, row.placements)
	assert.Equal(t, statusPlaying, row.status)
}

func TestPlaceRejections(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)
	snap := e.newGame(t, c, 11)

	tests := map[string]struct {
		shape  any
		x, y   int
		status int
		code   string
	}{
		"unknown shape": {"blob", 0, 0, http.StatusBadRequest, "unknown_shape"},
		"missing shape": {"", 0, 0, http.StatusBadRequest, "unknown_shape"},
		"not offered":   {notOffered(snap.Offered), 0, 0, http.StatusBadRequest, "not_offered"},
		"out of bounds": {snap.Offered[0], game.Size, game.Size, http.StatusBadRequest, "invalid_placement"},
		"negative":      {snap.Offered[0], -1, 0, http.StatusBadRequest, "invalid_placement"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var out map[string]string
			status := e.call(t, c, http.MethodPost, "/game/place",
				map[string]any{"gameId": snap.ID, "shape": tc.shape, "x": tc.x, "y": tc.y}, &out)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, out["error"])
		})
	}

	var after game.Snapshot
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodGet, "/game/"+snap.ID, nil, &after))
	assert.Equal(t, snap, after)

	var out map[string]string
	assert.Equal(t, http.StatusNotFound, e.call(t, c, http.MethodPost, "/game/place",
		map[string]any{"gameId": "missing", "shape": snap.Offered[0]}, &out))
	assert.Equal(t, http.StatusBadRequest, e.call(t, c, http.MethodPost, "/game/place",
		map[string]any{"shape": snap.Offered[0]}, &out))
}

func TestGamesArePrivateToTheirOwner(t *testing.T) {
	e := newEnv(t)
	owner := e.client(t)
	snap := e.newGame(t, owner, 3)

	stranger := e.client(t)
	var out map[string]string
	assert.Equal(t, http.StatusNotFound, e.call(t, stranger, http.MethodGet, "/game/"+snap.ID, nil, &out))
	assert.Equal(t, http.StatusNotFound, e.call(t, stranger, http.MethodPost, "/game/place",
		map[string]any{"gameId": snap.ID, "shape": snap.Offered[0], "x": 0, "y": 0}, &out))
	assert.Equal(t, http.StatusNotFound, e.call(t, stranger, http.MethodPost, "/game/reset",
		map[string]any{"gameId": snap.ID}, &out))
}

func TestCheckPlacement(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)
	snap := e.newGame(t, c, 5)

	var res map[string]bool
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/game/check",
		map[string]any{"gameId": snap.ID, "shape": snap.Offered[0], "x": 0, "y": 0}, &res))
	assert.True(t, res["valid"])

	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/game/check",
		map[string]any{"gameId": snap.ID, "shape": snap.Offered[0], "x": 8, "y": 8}, &res))
	assert.Equal(t, pieces.CellCount(snap.Offered[0]) == 1, res["valid"])

	// Checking does not care whether the shape is offered.
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/game/check",
		map[string]any{"gameId": snap.ID, "shape": notOffered(snap.Offered), "x": 0, "y": 0}, &res))
	assert.True(t, res["valid"])

	var out map[string]string
	assert.Equal(t, http.StatusBadRequest, e.call(t, c, http.MethodPost, "/game/check",
		map[string]any{"gameId": snap.ID, "shape": "blob"}, &out))
	assert.Equal(t, "unknown_shape", out["error"])
}

func TestResetStartsNewRunAndKeepsHighScore(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)
	snap := e.newGame(t, c, 9)

	var res placeRes
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/game/place",
		map[string]any{"gameId": snap.ID, "shape": snap.Offered[0], "x": 0, "y": 0}, &res))
	best := res.State.HighScore
	require.Positive(t, best)

	var after game.Snapshot
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/game/reset",
		map[string]any{"gameId": snap.ID}, &after))
	assert.Equal(t, snap.ID, after.ID)
	assert.Zero(t, after.Score)
	assert.Zero(t, after.Placements)
	assert.Zero(t, after.Board.Filled())
	assert.Equal(t, best, after.HighScore)

	rows, err := e.db.Query(`SELECT status FROM games WHERE game_id=? ORDER BY status`, snap.ID)
	require.NoError(t, err)
	defer rows.Close()
	var statuses []string
	for rows.Next() {
		var s string
		require.NoError(t, rows.Scan(&s))
		statuses = append(statuses, s)
	}
	assert.Equal(t, []string{statusAbandoned, statusPlaying}, statuses)

	// A fresh game for the same browser starts from the stored best.
	next := e.newGame(t, c, 10)
	assert.Equal(t, best, next.HighScore)
}

func TestSignupClaimsGuestHistory(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)
	snap := e.newGame(t, c, 1)
	var res placeRes
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/game/place",
		map[string]any{"gameId": snap.ID, "shape": snap.Offered[0], "x": 0, "y": 0}, &res))

	var me map[string]any
	assert.Equal(t, http.StatusUnauthorized, e.call(t, c, http.MethodGet, "/auth/me", nil, &me))

	var user map[string]any
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/auth/signup",
		signupReq{Username: "blocky", Password: "password123"}, &user))
	assert.Equal(t, "blocky", user["username"])

	var out map[string]string
	assert.Equal(t, http.StatusConflict, e.call(t, e.client(t), http.MethodPost, "/auth/signup",
		signupReq{Username: "BLOCKY", Password: "password123"}, &out))
	assert.Equal(t, http.StatusBadRequest, e.call(t, e.client(t), http.MethodPost, "/auth/signup",
		signupReq{Username: "no", Password: "password123"}, &out))

	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodGet, "/auth/me", nil, &me))
	assert.Equal(t, "blocky", me["username"])

	var games []gameRow
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodGet, "/games/mine", nil, &games))
	require.Len(t, games, 1)
	assert.Equal(t, snap.ID, games[0].GameID)
	assert.Equal(t, "classic", games[0].Mode)

	var stats map[string]any
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodGet, "/stats/me", nil, &stats))
	assert.EqualValues(t, res.State.HighScore, stats["highScore"])

	// The guest's game stays playable after signing in.
	var got game.Snapshot
	assert.Equal(t, http.StatusOK, e.call(t, c, http.MethodGet, "/game/"+snap.ID, nil, &got))

	var ok map[string]bool
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/auth/logout", nil, &ok))
	assert.Equal(t, http.StatusUnauthorized, e.call(t, c, http.MethodGet, "/auth/me", nil, &me))

	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/auth/login",
		loginReq{Username: "blocky", Password: "password123"}, &user))
	assert.Equal(t, http.StatusUnauthorized, e.call(t, e.client(t), http.MethodPost, "/auth/login",
		loginReq{Username: "blocky", Password: "wrong-password"}, &out))
}

func TestBearerTokenWithWrongSecretIsRejected(t *testing.T) {
	e := newEnv(t)
	other := &Server{cfg: config.Config{JWTSecret: "other", JWTExpiresDays: 1}}
	tok, _, err := other.signJWT("someone", "someone")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, e.ts.URL+"/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestFinishRunRecordsOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u, err := e.srv.createUser(ctx, "finisher", "password123")
	require.NoError(t, err)

	sess, err := e.srv.newSession(ctx, u.ID, true, "", game.WithSupplier(pieces.NewBag(pieces.NewRNG(2))))
	require.NoError(t, err)
	require.NoError(t, e.srv.store.Update(ctx, sess.Game.ID, func(sess *store.Session) error {
		_, err := e.srv.placeOn(ctx, sess, sess.Game.Offered()[0], 0, 0)
		require.NoError(t, err)
		e.srv.finishRun(ctx, sess, statusOver)
		e.srv.finishRun(ctx, sess, statusOver)
		return nil
	}))

	after, err := e.srv.findUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.GamesPlayed)
	assert.Equal(t, sess.Game.Score(), after.BestScore)

	var status string
	require.NoError(t, e.db.QueryRow(`SELECT status FROM games WHERE id=?`, sess.RunID).Scan(&status))
	assert.Equal(t, statusOver, status)
}

func TestResetWithoutPlacementsDropsRow(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)
	snap := e.newGame(t, c, 4)

	var after game.Snapshot
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/game/reset",
		map[string]any{"gameId": snap.ID}, &after))

	var n int
	require.NoError(t, e.db.QueryRow(`SELECT COUNT(1) FROM games WHERE game_id=?`, snap.ID).Scan(&n))
	assert.Equal(t, 1, n)
}

// freeSpot finds a position where the check endpoint accepts shape.
func (e *testEnv) freeSpot(t *testing.T, c *http.Client, id string, shape pieces.Shape) (int, int) {
	t.Helper()
	for y := 0; y < game.Size; y++ {
		for x := 0; x < game.Size; x++ {
			var out map[string]bool
			require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/game/check",
				map[string]any{"gameId": id, "shape": shape, "x": x, "y": y}, &out))
			if out["valid"] {
				return x, y
			}
		}
	}
	t.Fatalf("no room for %s", shape)
	return 0, 0
}

func TestSignupMovesLiveGameToAccount(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)
	snap := e.newGame(t, c, 3)

	var first placeRes
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/game/place",
		map[string]any{"gameId": snap.ID, "shape": snap.Offered[0], "x": 0, "y": 0}, &first))

	var user map[string]any
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/auth/signup",
		signupReq{Username: "mover", Password: "password123"}, &user))
	userID, _ := user["id"].(string)
	require.NotEmpty(t, userID)

	shape := first.State.Offered[0]
	x, y := e.freeSpot(t, c, snap.ID, shape)
	var second placeRes
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/game/place",
		map[string]any{"gameId": snap.ID, "shape": shape, "x": x, "y": y}, &second))
	require.Greater(t, second.State.HighScore, first.State.HighScore)

	var stats map[string]any
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodGet, "/stats/me", nil, &stats))
	assert.EqualValues(t, second.State.HighScore, stats["highScore"])

	// Finishing the run now counts toward the account.
	ctx := context.Background()
	require.NoError(t, e.srv.store.Update(ctx, snap.ID, func(sess *store.Session) error {
		assert.Equal(t, userID, sess.Owner)
		assert.True(t, sess.User)
		e.srv.finishRun(ctx, sess, statusOver)
		return nil
	}))
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodGet, "/stats/me", nil, &stats))
	assert.EqualValues(t, 1, stats["gamesPlayed"])
	assert.EqualValues(t, second.State.Score, stats["bestScore"])

	var games []gameRow
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodGet, "/games/mine", nil, &games))
	require.Len(t, games, 1)
	assert.Equal(t, statusOver, games[0].Status)
}
