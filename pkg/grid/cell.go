// Package grid provides the cell grid backing a terminal screen
package grid

import "strings"

// Color represents a terminal palette index
type Color int

const (
	ColorBlack         Color = 0
	ColorRed           Color = 1
	ColorGreen         Color = 2
	ColorYellow        Color = 3
	ColorBlue          Color = 4
	ColorMagenta       Color = 5
	ColorCyan          Color = 6
	ColorWhite         Color = 7
	ColorBrightBlack   Color = 8
	ColorBrightRed     Color = 9
	ColorBrightGreen   Color = 10
	ColorBrightYellow  Color = 11
	ColorBrightBlue    Color = 12
	ColorBrightMagenta Color = 13
	ColorBrightCyan    Color = 14
	ColorBrightWhite   Color = 15
)

var colorNames = []string{
	"black", "red", "green", "yellow", "blue", "magenta", "cyan", "white",
	"bright_black", "bright_red", "bright_green", "bright_yellow",
	"bright_blue", "bright_magenta", "bright_cyan", "bright_white",
}

// String returns the string representation of Color
func (c Color) String() string {
	if int(c) >= 0 && int(c) < len(colorNames) {
		return colorNames[c]
	}
	return "unknown"
}

// Attributes holds the visual attributes stored with each cell
type Attributes struct {
	Foreground Color `json:"foreground"`
	Background Color `json:"background"`
	Bold       bool  `json:"bold"`
	Italic     bool  `json:"italic"`
	Underline  bool  `json:"underline"`
}

// DefaultAttributes returns white on black with no flags set
func DefaultAttributes() Attributes {
	return Attributes{
		Foreground: ColorWhite,
		Background: ColorBlack,
	}
}

// Cell is one character position in the grid
type Cell struct {
	Char rune `json:"char"`
	Attributes
}

// DefaultCell returns an empty cell
func DefaultCell() Cell {
	return Cell{Char: ' ', Attributes: DefaultAttributes()}
}

// Row is an ordered sequence of cells, one per column
type Row []Cell

// NewRow creates a row of cols default cells
func NewRow(cols int) Row {
	row := make(Row, cols)
	for i := range row {
		row[i] = DefaultCell()
	}
	return row
}

// Clone returns an independent copy of the row
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// String returns the characters of the row
func (r Row) String() string {
	var b strings.Builder
	b.Grow(len(r))
	for _, c := range r {
		b.WriteRune(c.Char)
	}
	return b.String()
}

// resize pads with default cells or truncates to cols
func (r Row) resize(cols int) Row {
	if cols <= len(r) {
		return r[:cols:cols]
	}
	out := make(Row, cols)
	copy(out, r)
	for i := len(r); i < cols; i++ {
		out[i] = DefaultCell()
	}
	return out
}
