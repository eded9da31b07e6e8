package grid

import (
	"errors"
	"fmt"
)

// ErrInvalidDimension is returned when a grid is created or resized with a
// non-positive number of columns or rows
var ErrInvalidDimension = errors.New("invalid dimension")

// Grid is the visible screen: rows x cols cells plus the scrollback that
// receives rows scrolled off the top. It is not safe for concurrent use.
type Grid struct {
	cols       int
	rows       int
	lines      []Row
	scrollback *Scrollback
}

// New creates a grid filled with default cells
func New(cols, rows, scrollback int) (*Grid, error) {
	if err := validateDimensions(cols, rows); err != nil {
		return nil, err
	}
	if scrollback < 0 {
		return nil, fmt.Errorf("scrollback cannot be negative, got: %d", scrollback)
	}

	return &Grid{
		cols:       cols,
		rows:       rows,
		lines:      newLines(cols, rows),
		scrollback: NewScrollback(scrollback),
	}, nil
}

func validateDimensions(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimension, cols, rows)
	}
	return nil
}

func newLines(cols, rows int) []Row {
	lines := make([]Row, rows)
	for y := range lines {
		lines[y] = NewRow(cols)
	}
	return lines
}

// Cols returns the number of columns
func (g *Grid) Cols() int {
	return g.cols
}

// Rows returns the number of rows
func (g *Grid) Rows() int {
	return g.rows
}

// Scrollback returns the history store
func (g *Grid) Scrollback() *Scrollback {
	return g.scrollback
}

// Contains reports whether (x, y) is inside the grid
func (g *Grid) Contains(x, y int) bool {
	return x >= 0 && x < g.cols && y >= 0 && y < g.rows
}

// Cell returns the cell at (x, y); out of range coordinates yield a default cell
func (g *Grid) Cell(x, y int) Cell {
	if !g.Contains(x, y) {
		return DefaultCell()
	}
	return g.lines[y][x]
}

// SetCell stores c at (x, y); out of range coordinates are ignored
func (g *Grid) SetCell(x, y int, c Cell) {
	if !g.Contains(x, y) {
		return
	}
	g.lines[y][x] = c
}

// Row returns a copy of row y
func (g *Grid) Row(y int) Row {
	if y < 0 || y >= g.rows {
		return nil
	}
	return g.lines[y].Clone()
}

// Lines returns a deep copy of the visible rows
func (g *Grid) Lines() []Row {
	out := make([]Row, len(g.lines))
	for y, line := range g.lines {
		out[y] = line.Clone()
	}
	return out
}

// Resize reconciles the grid to cols x rows. Rows are added or removed at the
// bottom and cells on the right; content outside the new bounds is lost.
func (g *Grid) Resize(cols, rows int) error {
	if err := validateDimensions(cols, rows); err != nil {
		return err
	}

	for len(g.lines) < rows {
		g.lines = append(g.lines, NewRow(cols))
	}
	if len(g.lines) > rows {
		clear(g.lines[rows:])
		g.lines = g.lines[:rows]
	}

	for y, line := range g.lines {
		if len(line) != cols {
			g.lines[y] = line.resize(cols)
		}
	}

	g.cols = cols
	g.rows = rows
	return nil
}

// ScrollUp moves the top row into scrollback and appends an empty row
func (g *Grid) ScrollUp() {
	top := g.lines[0]
	copy(g.lines, g.lines[1:])
	g.lines[g.rows-1] = NewRow(g.cols)
	g.scrollback.Push(top)
}

// Clear replaces every row with an empty one. Scrollback is kept.
func (g *Grid) Clear() {
	g.lines = newLines(g.cols, g.rows)
}
