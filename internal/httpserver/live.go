// internal/httpserver/live.go
//
// Live play over a websocket: GET /game/{id}/live.
//
// Every frame is a JSON envelope {"t": type, "m": payload}.
//   client → server: state | place {shape,x,y} | check {shape,x,y} | reset
//   server → client: state | placed {placement,state} | rejected {error,shape,x,y}
//                    | checked {valid,shape,x,y} | error {error}
//
// The socket speaks for the identity that opened it and goes through the
// same session operations as the REST routes.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/robalobadob/woodblocks/internal/pieces"
	"github.com/robalobadob/woodblocks/internal/store"
)

// ---------- message envelope ----------

type inMsg struct {
	T string          `json:"t"`           // type
	M json.RawMessage `json:"m,omitempty"` // payload
}

type outMsg struct {
	T string `json:"t"`
	M any    `json:"m,omitempty"`
}

// liveMove is the payload of place and check frames.
type liveMove struct {
	Shape string `json:"shape"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
}

// handleLive upgrades to a websocket and serves moves until the client leaves.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin != "" && origin != s.cfg.ClientOrigin && origin != "http://"+r.Host && origin != "https://"+r.Host {
		writeError(w, http.StatusForbidden, "forbidden origin")
		return
	}

	id := chi.URLParam(r, "id")
	who := s.identify(r)
	snap, err := s.snapshot(r.Context(), who, id)
	if err != nil {
		status, code := errorStatus(err)
		writeError(w, status, code)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		log.Warn().Err(err).Msg("live: accept")
		return
	}
	defer c.Close(websocket.StatusInternalError, "unexpected close")

	ctx := r.Context()
	l := log.With().Str("gameId", id).Logger()
	l.Debug().Msg("live: connected")

	if err := wsjson.Write(ctx, c, outMsg{T: "state", M: snap}); err != nil {
		return
	}

	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				l.Debug().Msg("live: closed")
			default:
				l.Debug().Err(err).Msg("live: read")
			}
			return
		}
		var m inMsg
		if err := json.Unmarshal(data, &m); err != nil {
			if err := wsjson.Write(ctx, c, outMsg{T: "error", M: map[string]string{"error": "invalid_json"}}); err != nil {
				return
			}
			continue
		}
		if err := wsjson.Write(ctx, c, s.liveReply(ctx, who, id, m)); err != nil {
			l.Debug().Err(err).Msg("live: write")
			return
		}
	}
}

// liveReply runs one client frame against the session and builds the answer.
func (s *Server) liveReply(ctx context.Context, who identity, id string, m inMsg) outMsg {
	fail := func(err error) outMsg {
		_, code := errorStatus(err)
		return outMsg{T: "error", M: map[string]string{"error": code}}
	}

	switch m.T {
	case "state":
		snap, err := s.snapshot(ctx, who, id)
		if err != nil {
			return fail(err)
		}
		return outMsg{T: "state", M: snap}

	case "reset":
		snap, err := s.reset(ctx, who, id)
		if err != nil {
			return fail(err)
		}
		return outMsg{T: "state", M: snap}

	case "place", "check":
		var mv liveMove
		if err := json.Unmarshal(m.M, &mv); err != nil {
			return outMsg{T: "error", M: map[string]string{"error": "invalid_json"}}
		}
		echo := func(key string, v any) map[string]any {
			return map[string]any{key: v, "shape": mv.Shape, "x": mv.X, "y": mv.Y}
		}
		shape, err := pieces.ParseShape(mv.Shape)
		if err != nil {
			return outMsg{T: "rejected", M: echo("error", "unknown_shape")}
		}

		if m.T == "check" {
			valid, err := s.check(ctx, who, id, shape, mv.X, mv.Y)
			if err != nil {
				return fail(err)
			}
			return outMsg{T: "checked", M: echo("valid", valid)}
		}

		res, err := s.place(ctx, who, id, shape, mv.X, mv.Y)
		switch {
		case err == nil:
			return outMsg{T: "placed", M: res}
		case errors.Is(err, store.ErrNotFound):
			return fail(err)
		default:
			_, code := errorStatus(err)
			return outMsg{T: "rejected", M: echo("error", code)}
		}

	default:
		return outMsg{T: "error", M: map[string]string{"error": "unknown_type"}}
	}
}
