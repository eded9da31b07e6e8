// Package render paints terminal snapshots onto a tcell screen
package render

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"termgrid/pkg/grid"
	"termgrid/pkg/notify"
	"termgrid/pkg/terminal"
)

// Source is the part of a terminal the renderer reads from
type Source interface {
	Snapshot() terminal.Snapshot
	OnRender(handler func(struct{})) notify.Disposable
	OnResize(handler func(terminal.Size)) notify.Disposable
}

// Overlay is painted over the grid on every frame, before the screen is shown
type Overlay interface {
	Draw(screen tcell.Screen)
}

// Renderer draws the grid of a Source onto a tcell.Screen whenever the source
// reports a frame is ready. The source never sees the screen.
type Renderer struct {
	screen  tcell.Screen
	mutex   sync.Mutex
	source  Source
	subs    notify.Group
	overlay Overlay
	frames  int
}

// NewRenderer creates a renderer drawing onto screen
func NewRenderer(screen tcell.Screen) (*Renderer, error) {
	if screen == nil {
		return nil, fmt.Errorf("screen cannot be nil")
	}
	return &Renderer{screen: screen}, nil
}

// Attach subscribes to the render-ready and geometry-changed notifications
// of source. A renderer follows one source at a time.
func (r *Renderer) Attach(source Source) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.source != nil {
		return fmt.Errorf("renderer is already attached")
	}

	r.source = source
	r.subs = notify.Group{
		source.OnRender(func(struct{}) { r.Render() }),
		source.OnResize(func(terminal.Size) { r.invalidate() }),
	}
	return nil
}

// Detach drops the subscriptions taken by Attach
func (r *Renderer) Detach() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.subs.Dispose()
	r.subs = nil
	r.source = nil
}

// SetOverlay sets what is painted over the grid. nil removes it.
func (r *Renderer) SetOverlay(overlay Overlay) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.overlay = overlay
}

// Frames returns how many frames have been drawn
func (r *Renderer) Frames() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.frames
}

// Render draws the current snapshot of the attached source
func (r *Renderer) Render() {
	r.mutex.Lock()
	source := r.source
	r.mutex.Unlock()

	if source == nil {
		return
	}
	r.Draw(source.Snapshot())
}

// Draw paints snap and shows it
func (r *Renderer) Draw(snap terminal.Snapshot) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	width, height := r.screen.Size()
	cursorCol := -1

	for y := 0; y < snap.Rows && y < height; y++ {
		// Wide glyphs take two screen columns, so the screen column runs
		// ahead of the grid column
		col := 0
		for x := 0; x < snap.Cols && col < width; x++ {
			if y == snap.CursorY && x == snap.CursorX {
				cursorCol = col
			}

			cell := snap.Cell(x, y)
			style := attributesToStyle(cell.Attributes)
			ch := cell.Char
			w := runewidth.RuneWidth(ch)
			if w == 0 {
				// Nothing sensible to draw for combining marks and the like
				ch, w = ' ', 1
			}
			if col+w > width {
				r.screen.SetContent(col, y, ' ', nil, style)
				col = width
				break
			}

			r.screen.SetContent(col, y, ch, nil, style)
			col += w
		}

		// Blank what a previous frame with wider glyphs left behind
		for ; col < width; col++ {
			r.screen.SetContent(col, y, ' ', nil, tcell.StyleDefault)
		}
	}

	if cursorCol >= 0 {
		r.screen.ShowCursor(cursorCol, snap.CursorY)
	} else {
		r.screen.HideCursor()
	}

	if r.overlay != nil {
		r.overlay.Draw(r.screen)
	}

	r.screen.Show()
	r.frames++
}

// invalidate clears the screen so stale cells outside a shrunken grid vanish
func (r *Renderer) invalidate() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.screen.Clear()
}

// attributesToStyle converts cell attributes to a tcell.Style
func attributesToStyle(attrs grid.Attributes) tcell.Style {
	style := tcell.StyleDefault.
		Foreground(colorToTcell(attrs.Foreground)).
		Background(colorToTcell(attrs.Background))

	if attrs.Bold {
		style = style.Bold(true)
	}
	if attrs.Italic {
		style = style.Italic(true)
	}
	if attrs.Underline {
		style = style.Underline(true)
	}

	return style
}

// colorToTcell converts a palette index to a tcell.Color
func colorToTcell(color grid.Color) tcell.Color {
	switch color {
	case grid.ColorBlack:
		return tcell.ColorBlack
	case grid.ColorRed:
		return tcell.ColorMaroon
	case grid.ColorGreen:
		return tcell.ColorGreen
	case grid.ColorYellow:
		return tcell.ColorOlive
	case grid.ColorBlue:
		return tcell.ColorNavy
	case grid.ColorMagenta:
		return tcell.ColorPurple
	case grid.ColorCyan:
		return tcell.ColorTeal
	case grid.ColorWhite:
		return tcell.ColorSilver
	case grid.ColorBrightBlack:
		return tcell.ColorGray
	case grid.ColorBrightRed:
		return tcell.ColorRed
	case grid.ColorBrightGreen:
		return tcell.ColorLime
	case grid.ColorBrightYellow:
		return tcell.ColorYellow
	case grid.ColorBrightBlue:
		return tcell.ColorBlue
	case grid.ColorBrightMagenta:
		return tcell.ColorFuchsia
	case grid.ColorBrightCyan:
		return tcell.ColorAqua
	case grid.ColorBrightWhite:
		return tcell.ColorWhite
	}

	if color >= 16 && color <= 255 {
		return tcell.PaletteColor(int(color))
	}
	return tcell.ColorDefault
}
