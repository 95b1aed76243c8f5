// internal/httpserver/server.go
//
// HTTP server wiring for the Wooden Blocks backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health", "/pieces".
//   - Game endpoints (optional auth): /game/new, /game/{id}, /game/place, /game/check, /game/reset.
//   - Live play over websocket (optional auth): /game/{id}/live.
//   - Daily Challenge endpoints (optional auth): mounted under /daily.
//   - Auth + profile/stat endpoints (require auth): /auth/*, /stats/me, /games/mine.
//
// Notes:
//   - Live games sit in the session store; the games table and high scores
//     are SQLite bookkeeping written best-effort alongside each move.
//   - A game is reachable only by its owner: the signed-in user or the
//     anonymous cookie that created it.
//   - The websocket route is mounted outside the request timeout.
//   - While serving, idle sessions are swept from the store (sweep.go).

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/robalobadob/woodblocks/internal/config"
	"github.com/robalobadob/woodblocks/internal/daily"
	"github.com/robalobadob/woodblocks/internal/pieces"
	"github.com/robalobadob/woodblocks/internal/store"
)

// Server bundles router, session store, DB handle and configuration.
type Server struct {
	r       *chi.Mux
	store   store.Store
	db      *sql.DB
	cfg     config.Config
	daily   *daily.Store
	dailies *dailyServer
	now     func() time.Time
	http    *http.Server

	sweepCtx  context.Context
	stopSweep context.CancelFunc
}

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, db *sql.DB, cfg config.Config) *Server {
	s := &Server{
		r:     chi.NewRouter(),
		store: st,
		db:    db,
		cfg:   cfg,
		daily: daily.NewStore(db),
		now:   time.Now,
	}
	s.sweepCtx, s.stopSweep = context.WithCancel(context.Background())

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(accessLog)       // zerolog request line
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(s.cors)          // credentials-friendly CORS

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)                 // default JSON responses

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"woodblocks-go","endpoints":["/health","/pieces","POST /game/new","POST /game/place","/daily/*","/auth/*"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})
		r.Get("/pieces", handlePieces)

		// Game endpoints: OPTIONAL AUTH (guests can play)
		r.Group(func(r chi.Router) {
			r.Use(s.withOptionalAuth())
			r.Post("/game/new", s.handleNewGame)
			r.Get("/game/{id}", s.handleGetGame)
			r.Post("/game/place", s.handlePlace)
			r.Post("/game/check", s.handleCheck)
			r.Post("/game/reset", s.handleReset)

			// Daily Challenge: OPTIONAL AUTH (guests can play; result persisted at game over)
			s.mountDaily(r)
		})

		// Auth + profile/stats (require auth)
		s.mountAuthRoutes(r)
	})

	// Live play sits outside the request timeout.
	s.r.With(s.withOptionalAuth()).Get("/game/{id}/live", s.handleLive)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Start begins serving HTTP on addr and sweeping idle sessions.
// It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	go s.sweepLoop(s.sweepCtx, sweepEvery)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops a server started with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopSweep()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ------------------------------- catalog -----------------------------------

// pieceRes describes one catalog shape for clients that draw pieces.
type pieceRes struct {
	Name        pieces.Shape    `json:"name"`
	Cells       []pieces.Offset `json:"cells"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	Color       string          `json:"color"`
	BorderColor string          `json:"borderColor"`
}

// handlePieces lists the whole catalog.
func handlePieces(w http.ResponseWriter, r *http.Request) {
	out := make([]pieceRes, 0, pieces.Count())
	for _, s := range pieces.All() {
		def, _ := pieces.Lookup(s)
		out = append(out, pieceRes{
			Name:        s,
			Cells:       def.Cells,
			Width:       def.Width,
			Height:      def.Height,
			Color:       def.Color,
			BorderColor: def.BorderColor,
		})
	}
	_ = json.NewEncoder(w).Encode(out)
}

// ------------------------------- helpers -----------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
