// internal/pieces/catalog.go
//
// Static catalog of every piece shape the game can offer.
// Responsibilities:
//   - Declare the Shape enumeration (20 polyominoes, no rotation).
//   - Map each Shape to its Definition (cell offsets, bounds, colours).
//   - Parse/format shape names at the API boundary.
//
// Notes:
//   - Offsets are relative to the top-left corner of the bounding box.
//   - NoShape is the zero value and marks an empty board cell; it has no
//     definition and is never offered.

package pieces

import (
	"errors"
	"fmt"
)

// Shape identifies one polyomino in the catalog.
type Shape uint8

const (
	NoShape Shape = iota
	Single
	Horizontal2
	Horizontal3
	Horizontal4
	Horizontal5
	Vertical2
	Vertical3
	Vertical4
	Vertical5
	Square2x2
	Square3x3
	LShape
	LShapeMirror
	LShapeLarge
	LShapeLargeMirror
	TShape
	ZShape
	ZShapeMirror
	UShape
	Cross

	shapeCount = int(Cross)
)

// ErrUnknownShape is returned when a name or value is not in the catalog.
var ErrUnknownShape = errors.New("unknown shape")

// Offset is a cell position relative to a piece origin.
type Offset struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// Definition describes a shape's geometry and colours.
type Definition struct {
	Cells       []Offset
	Width       int
	Height      int
	Color       string
	BorderColor string
}

var names = [...]string{
	NoShape:           "",
	Single:            "SINGLE",
	Horizontal2:       "HORIZONTAL_2",
	Horizontal3:       "HORIZONTAL_3",
	Horizontal4:       "HORIZONTAL_4",
	Horizontal5:       "HORIZONTAL_5",
	Vertical2:         "VERTICAL_2",
	Vertical3:         "VERTICAL_3",
	Vertical4:         "VERTICAL_4",
	Vertical5:         "VERTICAL_5",
	Square2x2:         "SQUARE_2X2",
	Square3x3:         "SQUARE_3X3",
	LShape:            "L_SHAPE",
	LShapeMirror:      "L_SHAPE_MIRROR",
	LShapeLarge:       "L_SHAPE_LARGE",
	LShapeLargeMirror: "L_SHAPE_LARGE_MIRROR",
	TShape:            "T_SHAPE",
	ZShape:            "Z_SHAPE",
	ZShapeMirror:      "Z_SHAPE_MIRROR",
	UShape:            "U_SHAPE",
	Cross:             "CROSS",
}

// palette colours, shared between shapes of the same family.
const (
	blue, blueBorder     = "#3CA3DE", "#3B82AC"
	pink, pinkBorder     = "#F555AD", "#BE3A82"
	red, redBorder       = "#FA5053", "#DE3638"
	orange, orangeBorder = "#F99825", "#E06917"
	green, greenBorder   = "#86BD42", "#629E12"
	purple, purpleBorder = "#B57CE3", "#8A5BB6"
	teal, tealBorder     = "#52CCBC", "#239E90"
)

func cells(xy ...int) []Offset {
	out := make([]Offset, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		out = append(out, Offset{DX: xy[i], DY: xy[i+1]})
	}
	return out
}

var definitions = [...]Definition{
	Single:      {Cells: cells(0, 0), Width: 1, Height: 1, Color: blue, BorderColor: blueBorder},
	Horizontal2: {Cells: cells(0, 0, 1, 0), Width: 2, Height: 1, Color: pink, BorderColor: pinkBorder},
	Horizontal3: {Cells: cells(0, 0, 1, 0, 2, 0), Width: 3, Height: 1, Color: red, BorderColor: redBorder},
	Horizontal4: {Cells: cells(0, 0, 1, 0, 2, 0, 3, 0), Width: 4, Height: 1, Color: orange, BorderColor: orangeBorder},
	Horizontal5: {Cells: cells(0, 0, 1, 0, 2, 0, 3, 0, 4, 0), Width: 5, Height: 1, Color: green, BorderColor: greenBorder},
	Vertical2:   {Cells: cells(0, 0, 0, 1), Width: 1, Height: 2, Color: pink, BorderColor: pinkBorder},
	Vertical3:   {Cells: cells(0, 0, 0, 1, 0, 2), Width: 1, Height: 3, Color: red, BorderColor: redBorder},
	Vertical4:   {Cells: cells(0, 0, 0, 1, 0, 2, 0, 3), Width: 1, Height: 4, Color: orange, BorderColor: orangeBorder},
	Vertical5:   {Cells: cells(0, 0, 0, 1, 0, 2, 0, 3, 0, 4), Width: 1, Height: 5, Color: green, BorderColor: greenBorder},
	Square2x2:   {Cells: cells(0, 0, 1, 0, 0, 1, 1, 1), Width: 2, Height: 2, Color: purple, BorderColor: purpleBorder},
	Square3x3: {
		Cells: cells(
			0, 0, 1, 0, 2, 0,
			0, 1, 1, 1, 2, 1,
			0, 2, 1, 2, 2, 2,
		),
		Width: 3, Height: 3, Color: teal, BorderColor: tealBorder,
	},
	LShape:            {Cells: cells(0, 0, 0, 1, 0, 2, 1, 2), Width: 2, Height: 3, Color: blue, BorderColor: blueBorder},
	LShapeMirror:      {Cells: cells(1, 0, 1, 1, 1, 2, 0, 2), Width: 2, Height: 3, Color: blue, BorderColor: blueBorder},
	LShapeLarge:       {Cells: cells(0, 0, 0, 1, 0, 2, 0, 3, 1, 3), Width: 2, Height: 4, Color: pink, BorderColor: pinkBorder},
	LShapeLargeMirror: {Cells: cells(1, 0, 1, 1, 1, 2, 1, 3, 0, 3), Width: 2, Height: 4, Color: pink, BorderColor: pinkBorder},
	TShape:            {Cells: cells(1, 0, 0, 1, 1, 1, 2, 1), Width: 3, Height: 2, Color: red, BorderColor: redBorder},
	ZShape:            {Cells: cells(0, 0, 1, 0, 1, 1, 2, 1), Width: 3, Height: 2, Color: orange, BorderColor: orangeBorder},
	ZShapeMirror:      {Cells: cells(1, 0, 2, 0, 0, 1, 1, 1), Width: 3, Height: 2, Color: orange, BorderColor: orangeBorder},
	UShape:            {Cells: cells(0, 0, 2, 0, 0, 1, 1, 1, 2, 1), Width: 3, Height: 2, Color: green, BorderColor: greenBorder},
	Cross:             {Cells: cells(1, 0, 0, 1, 1, 1, 2, 1, 1, 2), Width: 3, Height: 3, Color: purple, BorderColor: purpleBorder},
}

// All returns every catalog shape in declaration order.
func All() []Shape {
	out := make([]Shape, 0, shapeCount)
	for s := Single; s <= Cross; s++ {
		out = append(out, s)
	}
	return out
}

// Count is the number of shapes in the catalog.
func Count() int { return shapeCount }

// Valid reports whether s is a catalog shape (NoShape is not).
func (s Shape) Valid() bool { return s >= Single && s <= Cross }

// Lookup returns the definition for s. The returned Cells slice is a copy.
func Lookup(s Shape) (Definition, bool) {
	if !s.Valid() {
		return Definition{}, false
	}
	d := definitions[s]
	d.Cells = append([]Offset(nil), d.Cells...)
	return d, true
}

// CellCount returns the number of cells in s, or 0 for an unknown shape.
func CellCount(s Shape) int {
	if !s.Valid() {
		return 0
	}
	return len(definitions[s].Cells)
}

// String returns the catalog name (e.g. "L_SHAPE").
func (s Shape) String() string {
	if int(s) < len(names) {
		return names[s]
	}
	return fmt.Sprintf("Shape(%d)", uint8(s))
}

// ParseShape maps a catalog name back to its Shape.
func ParseShape(name string) (Shape, error) {
	for s := Single; s <= Cross; s++ {
		if names[s] == name {
			return s, nil
		}
	}
	return NoShape, fmt.Errorf("%w: %q", ErrUnknownShape, name)
}

// MarshalText encodes a shape as its name; NoShape encodes as "".
func (s Shape) MarshalText() ([]byte, error) {
	if s != NoShape && !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownShape, uint8(s))
	}
	return []byte(names[s]), nil
}

// UnmarshalText decodes a shape name; "" decodes to NoShape.
func (s *Shape) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*s = NoShape
		return nil
	}
	v, err := ParseShape(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
