package httpserver

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepEvictsIdleSessions(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)
	ctx := context.Background()

	idle := e.newGame(t, c, 5)
	var res placeRes
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/game/place",
		map[string]any{"gameId": idle.ID, "shape": idle.Offered[0], "x": 0, "y": 0}, &res))
	active := e.newGame(t, c, 6)
	var started newRes
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodPost, "/daily/new", nil, &started))

	e.advance(2 * time.Hour)
	assert.Equal(t, 0, e.srv.sweep(ctx))

	e.advance(21 * time.Hour)
	var snap map[string]any
	require.Equal(t, http.StatusOK, e.call(t, c, http.MethodGet, "/game/"+active.ID, nil, &snap))

	e.advance(2 * time.Hour)
	assert.Equal(t, 2, e.srv.sweep(ctx))

	var out map[string]string
	assert.Equal(t, http.StatusNotFound, e.call(t, c, http.MethodGet, "/game/"+idle.ID, nil, &out))
	assert.Equal(t, http.StatusNotFound, e.call(t, c, http.MethodGet, "/game/"+started.GameID, nil, &out))
	assert.Equal(t, http.StatusOK, e.call(t, c, http.MethodGet, "/game/"+active.ID, nil, &snap))

	var status string
	require.NoError(t, e.db.QueryRow(`SELECT status FROM games WHERE game_id=?`, idle.ID).Scan(&status))
	assert.Equal(t, statusAbandoned, status)

	// The daily run never got a placement, so its row is dropped.
	var n int
	require.NoError(t, e.db.QueryRow(`SELECT COUNT(1) FROM games WHERE game_id=?`, started.GameID).Scan(&n))
	assert.Zero(t, n)

	e.srv.dailies.mu.Lock()
	assert.Empty(t, e.srv.dailies.sessions)
	e.srv.dailies.mu.Unlock()

	ids, err := e.srv.store.IDs(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{active.ID}, ids)
}
