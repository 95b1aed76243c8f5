// internal/game/types.go
//
// Core type definitions for the block-placement engine.
// Defines:
//   - Board: the 9x9 grid of shape identifiers (NoShape = empty).
//   - Supplier / HighScores: collaborators injected into a Game.
//   - Placement / Clear: event-shaped results handed to the presentation layer.
//   - Snapshot: a JSON-ready view of the whole game state.

package game

import (
	"errors"

	"github.com/robalobadob/woodblocks/internal/pieces"
)

const (
	// Size is the board width and height.
	Size = 9
	// SubgridSize is the edge of one of the nine 3x3 subgrids.
	SubgridSize = 3
	// OfferSize is how many pieces are offered per round.
	OfferSize = 3

	lineScore = 18 // per cleared row, column or subgrid
)

var (
	ErrUnknownShape     = pieces.ErrUnknownShape
	ErrNotOffered       = errors.New("shape not offered")
	ErrInvalidPlacement = errors.New("invalid placement")
)

// Board is indexed [y][x]. A cell holds the shape that filled it, not a
// per-piece token, so adjacent pieces of the same shape are indistinguishable.
type Board [Size][Size]pieces.Shape

// At returns the cell at column x, row y.
func (b Board) At(x, y int) pieces.Shape { return b[y][x] }

// Filled counts non-empty cells.
func (b Board) Filled() int {
	n := 0
	for y := range b {
		for x := range b[y] {
			if b[y][x] != pieces.NoShape {
				n++
			}
		}
	}
	return n
}

// Supplier deals the pieces offered each round.
type Supplier interface {
	DrawThree() []pieces.Shape
}

// HighScores persists the best score across games.
// Load must return 0 (and no error) when nothing has been stored yet.
type HighScores interface {
	Load() (int, error)
	Save(score int) error
}

// Point is an absolute board coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Subgrid identifies one of the nine 3x3 blocks by block column/row (0..2).
type Subgrid struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Clear describes the regions removed by one placement and what they scored.
type Clear struct {
	Rows            []int     `json:"rows"`
	Cols            []int     `json:"cols"`
	Subgrids        []Subgrid `json:"subgrids"`
	Combo           int       `json:"combo"` // rows + cols + subgrids
	ComboMultiplier float64   `json:"comboMultiplier"`
	BaseScore       int       `json:"baseScore"`
	ComboScore      int       `json:"comboScore"`
	Streak          int       `json:"streak"` // streak after this clear
	StreakBonus     int       `json:"streakBonus"`
	Total           int       `json:"total"`
}

// Placement is the outcome of a successful placement.
type Placement struct {
	Shape     pieces.Shape `json:"shape"`
	X         int          `json:"x"`
	Y         int          `json:"y"`
	Cells     []Point      `json:"cells"`
	Points    int          `json:"points"` // base placement score (cell count)
	Clear     *Clear       `json:"clear,omitempty"`
	Refilled  bool         `json:"refilled"`
	Score     int          `json:"score"`
	HighScore int          `json:"highScore"`
	Streak    int          `json:"streak"`
	GameOver  bool         `json:"gameOver"`
}

// Awarded is everything this placement added to the score.
func (p Placement) Awarded() int {
	if p.Clear == nil {
		return p.Points
	}
	return p.Points + p.Clear.Total
}

// Snapshot is a copy of the observable game state.
type Snapshot struct {
	ID         string         `json:"id"`
	Board      Board          `json:"board"`
	Offered    []pieces.Shape `json:"offered"`
	Score      int            `json:"score"`
	HighScore  int            `json:"highScore"`
	Streak     int            `json:"streak"`
	Placements int            `json:"placements"`
	GameOver   bool           `json:"gameOver"`
}
