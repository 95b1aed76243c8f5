// internal/game/engine.go
//
// Core game engine for a single block-placement session.
// Responsibilities:
//   - Validate placements (bounds + empty cells) against the 9x9 board.
//   - Apply placements: write cells, consume the offered piece, score.
//   - Clear full rows, columns and 3x3 subgrids; track the clear streak.
//   - Refill the offer when empty and detect the terminal state.
//
// Notes:
//   - A Game is single-caller: every method runs to completion synchronously
//     and nothing here locks. Callers that share a Game serialise access
//     (see internal/store).
//   - All checks run before the first write, so a rejected placement never
//     leaves partial state behind.
//   - The high score is saved the moment it is beaten, not at game end.

package game

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/robalobadob/woodblocks/internal/pieces"
)

// Game holds the state of one session. Reset reuses the same instance.
type Game struct {
	ID string

	board      Board
	offered    []pieces.Shape
	score      int
	highScore  int
	streak     int
	placements int
	over       bool

	supplier Supplier
	scores   HighScores
	log      zerolog.Logger
}

// Option configures a Game at construction.
type Option func(*Game)

// WithSupplier sets the piece supplier (default: a randomly seeded bag).
func WithSupplier(s Supplier) Option { return func(g *Game) { g.supplier = s } }

// WithHighScores sets the high-score collaborator (default: not persisted).
func WithHighScores(h HighScores) Option { return func(g *Game) { g.scores = h } }

// WithLogger sets the engine logger (default: disabled).
func WithLogger(l zerolog.Logger) Option { return func(g *Game) { g.log = l } }

// WithID overrides the generated game ID.
func WithID(id string) Option { return func(g *Game) { g.ID = id } }

// New constructs a game, loads the stored high score and deals the first offer.
func New(opts ...Option) *Game {
	g := &Game{
		ID:  uuid.NewString(),
		log: zerolog.Nop(),
	}
	for _, o := range opts {
		o(g)
	}
	if g.supplier == nil {
		g.supplier = pieces.NewBag(nil)
	}
	if g.scores == nil {
		g.scores = &volatileScores{}
	}
	g.log = g.log.With().Str("gameId", g.ID).Logger()

	hs, err := g.scores.Load()
	if err != nil {
		g.log.Warn().Err(err).Msg("load high score")
		hs = 0
	}
	g.highScore = max(hs, 0)
	g.offered = g.supplier.DrawThree()
	return g
}

// Reset starts a fresh game on the same instance. The high score is kept.
func (g *Game) Reset() {
	g.board = Board{}
	g.score = 0
	g.streak = 0
	g.placements = 0
	g.over = false
	g.offered = g.supplier.DrawThree()
}

// SetHighScores rebinds the high-score collaborator mid-game, e.g. when the
// player's identity changes. The better of the current and the newly stored
// high score wins; a current best the new store lacks is saved to it.
func (g *Game) SetHighScores(h HighScores) {
	g.scores = h
	stored, err := h.Load()
	if err != nil {
		g.log.Warn().Err(err).Msg("load high score")
		stored = 0
	}
	if stored >= g.highScore {
		g.highScore = stored
		return
	}
	if err := h.Save(g.highScore); err != nil {
		g.log.Warn().Err(err).Int("highScore", g.highScore).Msg("save high score")
	}
}

// ------------------------------- queries -----------------------------------

func (g *Game) Board() Board { return g.board }

func (g *Game) Offered() []pieces.Shape { return slices.Clone(g.offered) }

func (g *Game) Score() int { return g.score }

func (g *Game) HighScore() int { return g.highScore }

func (g *Game) Streak() int { return g.streak }

func (g *Game) Placements() int { return g.placements }

func (g *Game) GameOver() bool { return g.over }

// Snapshot copies the observable state.
func (g *Game) Snapshot() Snapshot {
	return Snapshot{
		ID:         g.ID,
		Board:      g.board,
		Offered:    g.Offered(),
		Score:      g.score,
		HighScore:  g.highScore,
		Streak:     g.streak,
		Placements: g.placements,
		GameOver:   g.over,
	}
}

// ------------------------------ placement ----------------------------------

// IsValidPlacement reports whether shape fits with its origin at (x, y):
// every cell in bounds and empty. Unknown shapes never fit.
func (g *Game) IsValidPlacement(shape pieces.Shape, x, y int) bool {
	def, ok := pieces.Lookup(shape)
	if !ok {
		return false
	}
	return g.fits(def.Cells, x, y)
}

func (g *Game) fits(cells []pieces.Offset, x, y int) bool {
	for _, c := range cells {
		cx, cy := x+c.DX, y+c.DY
		if cx < 0 || cx >= Size || cy < 0 || cy >= Size {
			return false
		}
		if g.board[cy][cx] != pieces.NoShape {
			return false
		}
	}
	return true
}

// PlaceBlock is Place with the error collapsed to a bool.
func (g *Game) PlaceBlock(shape pieces.Shape, x, y int) (Placement, bool) {
	p, err := g.Place(shape, x, y)
	return p, err == nil
}

// Place puts an offered shape on the board with its origin at (x, y).
//
// Rejections (no state is changed):
//   - ErrUnknownShape if shape is not in the catalog.
//   - ErrNotOffered if shape is not among the offered pieces.
//   - ErrInvalidPlacement if a cell is out of bounds or occupied.
//
// On success the first matching offered piece is consumed, the cell count is
// scored, full regions are cleared, the offer is refilled once empty and the
// game-over state is re-evaluated.
func (g *Game) Place(shape pieces.Shape, x, y int) (Placement, error) {
	def, ok := pieces.Lookup(shape)
	if !ok {
		return Placement{}, g.reject(shape, x, y, fmt.Errorf("%w: %d", ErrUnknownShape, uint8(shape)))
	}
	idx := slices.Index(g.offered, shape)
	if idx < 0 {
		return Placement{}, g.reject(shape, x, y, ErrNotOffered)
	}
	if !g.fits(def.Cells, x, y) {
		return Placement{}, g.reject(shape, x, y, ErrInvalidPlacement)
	}

	p := Placement{Shape: shape, X: x, Y: y, Cells: make([]Point, 0, len(def.Cells))}
	for _, c := range def.Cells {
		cx, cy := x+c.DX, y+c.DY
		g.board[cy][cx] = shape
		p.Cells = append(p.Cells, Point{X: cx, Y: cy})
	}
	g.offered = slices.Delete(g.offered, idx, idx+1)
	g.placements++

	p.Points = pieces.CellCount(shape)
	g.addScore(p.Points)

	p.Clear = g.clearFull()

	if len(g.offered) == 0 {
		g.offered = g.supplier.DrawThree()
		p.Refilled = true
	}

	p.GameOver = g.CheckGameOver()
	p.Score, p.HighScore, p.Streak = g.score, g.highScore, g.streak

	ev := g.log.Debug().Str("shape", shape.String()).Int("x", x).Int("y", y).Int("score", g.score)
	if p.Clear != nil {
		ev = ev.Int("combo", p.Clear.Combo).Int("streak", g.streak)
	}
	ev.Bool("gameOver", p.GameOver).Msg("placed")
	return p, nil
}

func (g *Game) reject(shape pieces.Shape, x, y int, err error) error {
	g.log.Debug().Err(err).Str("shape", shape.String()).Int("x", x).Int("y", y).Msg("placement rejected")
	return err
}

// ------------------------------- clearing ----------------------------------

// clearFull finds every full row, column and subgrid on the current board,
// scores them together and empties them. Returns nil (and resets the streak)
// when nothing is full.
func (g *Game) clearFull() *Clear {
	c := &Clear{Rows: []int{}, Cols: []int{}, Subgrids: []Subgrid{}}
	for y := 0; y < Size; y++ {
		if g.rowFull(y) {
			c.Rows = append(c.Rows, y)
		}
	}
	for x := 0; x < Size; x++ {
		if g.colFull(x) {
			c.Cols = append(c.Cols, x)
		}
	}
	for sy := 0; sy < Size/SubgridSize; sy++ {
		for sx := 0; sx < Size/SubgridSize; sx++ {
			if g.subgridFull(sx, sy) {
				c.Subgrids = append(c.Subgrids, Subgrid{X: sx, Y: sy})
			}
		}
	}

	c.Combo = len(c.Rows) + len(c.Cols) + len(c.Subgrids)
	if c.Combo == 0 {
		g.streak = 0
		return nil
	}

	g.streak++
	c.Streak = g.streak
	c.BaseScore, c.ComboMultiplier, c.ComboScore = comboScore(c.Combo)
	c.StreakBonus = streakBonus(g.streak)
	c.Total = c.ComboScore + c.StreakBonus
	g.addScore(c.Total)

	for _, y := range c.Rows {
		for x := 0; x < Size; x++ {
			g.board[y][x] = pieces.NoShape
		}
	}
	for _, x := range c.Cols {
		for y := 0; y < Size; y++ {
			g.board[y][x] = pieces.NoShape
		}
	}
	for _, s := range c.Subgrids {
		for dy := 0; dy < SubgridSize; dy++ {
			for dx := 0; dx < SubgridSize; dx++ {
				g.board[s.Y*SubgridSize+dy][s.X*SubgridSize+dx] = pieces.NoShape
			}
		}
	}
	return c
}

func (g *Game) rowFull(y int) bool {
	for x := 0; x < Size; x++ {
		if g.board[y][x] == pieces.NoShape {
			return false
		}
	}
	return true
}

func (g *Game) colFull(x int) bool {
	for y := 0; y < Size; y++ {
		if g.board[y][x] == pieces.NoShape {
			return false
		}
	}
	return true
}

func (g *Game) subgridFull(sx, sy int) bool {
	for dy := 0; dy < SubgridSize; dy++ {
		for dx := 0; dx < SubgridSize; dx++ {
			if g.board[sy*SubgridSize+dy][sx*SubgridSize+dx] == pieces.NoShape {
				return false
			}
		}
	}
	return true
}

// ------------------------------- scoring -----------------------------------

// comboScore returns base = 18n, multiplier = 1 + (n-1)/2 and
// floor(base * multiplier) for n cleared regions.
func comboScore(n int) (base int, multiplier float64, score int) {
	base = n * lineScore
	multiplier = 1
	if n > 1 {
		multiplier = 1 + float64(n-1)*0.5
	}
	// multiplier == (n+1)/2, so integer division floors exactly.
	score = base * (n + 1) / 2
	return base, multiplier, score
}

// streakBonus is looked up with the streak after the current clear.
func streakBonus(streak int) int {
	switch {
	case streak >= 5:
		return 70
	case streak == 4:
		return 45
	case streak == 3:
		return 25
	case streak == 2:
		return 10
	default:
		return 0
	}
}

// addScore is the single scoring sink: it raises the score and saves a
// beaten high score immediately. A failed save is logged and play goes on.
func (g *Game) addScore(points int) {
	g.score += points
	if g.score <= g.highScore {
		return
	}
	g.highScore = g.score
	if err := g.scores.Save(g.highScore); err != nil {
		g.log.Warn().Err(err).Int("highScore", g.highScore).Msg("save high score")
	}
}

// ------------------------------- game over ---------------------------------

// CheckGameOver sets and returns the terminal flag when no offered piece fits
// anywhere. Once set it stays set until Reset.
func (g *Game) CheckGameOver() bool {
	if g.over {
		return true
	}
	for _, s := range g.offered {
		if g.canPlaceAnywhere(s) {
			return false
		}
	}
	g.over = true
	return true
}

func (g *Game) canPlaceAnywhere(shape pieces.Shape) bool {
	def, ok := pieces.Lookup(shape)
	if !ok {
		return false
	}
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			if g.fits(def.Cells, x, y) {
				return true
			}
		}
	}
	return false
}

// volatileScores keeps the high score in memory only.
type volatileScores struct{ best int }

func (v *volatileScores) Load() (int, error) { return v.best, nil }

func (v *volatileScores) Save(score int) error {
	v.best = score
	return nil
}
