// Package terminal provides the screen-buffer model of a text terminal
package terminal

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"termgrid/pkg/grid"
	"termgrid/pkg/notify"
)

// Default geometry used when Options leaves a field at zero
const (
	DefaultCols       = 80
	DefaultRows       = 24
	DefaultScrollback = 1000
)

// Logger interface for debug logging
type Logger interface {
	Debugf(format string, args ...interface{})
}

// Size is the payload of geometry-changed notifications
type Size struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// Options configures a Terminal. Zero Cols, Rows and Scrollback take the
// defaults; a nil Scheduler means renders only happen on Flush.
type Options struct {
	Cols       int       `json:"cols"`
	Rows       int       `json:"rows"`
	Scrollback int       `json:"scrollback"`
	Scheduler  Scheduler `json:"-"`
	Logger     Logger    `json:"-"`
}

// DefaultOptions returns an 80x24 terminal with 1000 lines of scrollback
func DefaultOptions() Options {
	return Options{
		Cols:       DefaultCols,
		Rows:       DefaultRows,
		Scrollback: DefaultScrollback,
	}
}

// Validate checks if the options are valid
func (o Options) Validate() error {
	if o.Cols < 0 || o.Rows < 0 {
		return fmt.Errorf("%w: %dx%d", grid.ErrInvalidDimension, o.Cols, o.Rows)
	}
	if o.Scrollback < 0 {
		return fmt.Errorf("scrollback cannot be negative, got: %d", o.Scrollback)
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.Cols == 0 {
		o.Cols = DefaultCols
	}
	if o.Rows == 0 {
		o.Rows = DefaultRows
	}
	if o.Scrollback == 0 {
		o.Scrollback = DefaultScrollback
	}
	return o
}

// State is a point-in-time summary of the terminal
type State struct {
	CursorX         int             `json:"cursor_x"`
	CursorY         int             `json:"cursor_y"`
	Cols            int             `json:"cols"`
	Rows            int             `json:"rows"`
	ScrollbackLines int             `json:"scrollback_lines"`
	Pen             grid.Attributes `json:"pen"`
}

// Validate checks if the terminal state is consistent
func (s State) Validate() error {
	if s.Cols <= 0 {
		return fmt.Errorf("cols must be positive, got: %d", s.Cols)
	}

	if s.Rows <= 0 {
		return fmt.Errorf("rows must be positive, got: %d", s.Rows)
	}

	if s.CursorX < 0 || s.CursorX >= s.Cols {
		return fmt.Errorf("cursor X out of bounds: %d (cols: %d)", s.CursorX, s.Cols)
	}

	if s.CursorY < 0 || s.CursorY >= s.Rows {
		return fmt.Errorf("cursor Y out of bounds: %d (rows: %d)", s.CursorY, s.Rows)
	}

	if s.ScrollbackLines < 0 {
		return fmt.Errorf("scrollback lines cannot be negative, got: %d", s.ScrollbackLines)
	}

	return nil
}

// Snapshot is a consistent copy of the visible grid and cursor
type Snapshot struct {
	Size
	CursorX int
	CursorY int
	Lines   []grid.Row
}

// Cell returns the cell at (x, y), or a default cell when out of range
func (s Snapshot) Cell(x, y int) grid.Cell {
	if y < 0 || y >= len(s.Lines) || x < 0 || x >= len(s.Lines[y]) {
		return grid.DefaultCell()
	}
	return s.Lines[y][x]
}

// String returns the visible text, one line per row, trailing blanks trimmed
func (s Snapshot) String() string {
	lines := make([]string, len(s.Lines))
	for y, row := range s.Lines {
		lines[y] = strings.TrimRight(row.String(), " ")
	}
	return strings.Join(lines, "\n")
}

// Terminal consumes a character stream into a grid of cells. All methods are
// safe for concurrent use; mutations hold a single lock so the grid size and
// cursor bounds always agree.
type Terminal struct {
	mu      sync.Mutex
	grid    *grid.Grid
	cursorX int
	cursorY int
	pen     grid.Attributes
	carry   []byte // incomplete UTF-8 sequence from the last Write

	renderPending bool
	scheduler     Scheduler
	logger        Logger

	onRender notify.Emitter[struct{}]
	onResize notify.Emitter[Size]
}

// New creates a terminal with the given options
func New(opts Options) (*Terminal, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid terminal options: %w", err)
	}
	opts = opts.withDefaults()

	g, err := grid.New(opts.Cols, opts.Rows, opts.Scrollback)
	if err != nil {
		return nil, fmt.Errorf("failed to create grid: %w", err)
	}

	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = dropScheduler{}
	}

	return &Terminal{
		grid:      g,
		pen:       grid.DefaultAttributes(),
		scheduler: scheduler,
		logger:    opts.Logger,
	}, nil
}

type dropScheduler struct{}

func (dropScheduler) Schedule(func()) {}

// SetLogger sets the logger for debug output
func (t *Terminal) SetLogger(logger Logger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logger = logger
}

func (t *Terminal) logDebug(format string, args ...interface{}) {
	if t.logger != nil {
		t.logger.Debugf(format, args...)
	}
}

// OnRender registers a handler for render-ready notifications
func (t *Terminal) OnRender(handler func(struct{})) notify.Disposable {
	return t.onRender.Subscribe(handler)
}

// OnResize registers a handler for geometry-changed notifications
func (t *Terminal) OnResize(handler func(Size)) notify.Disposable {
	return t.onResize.Subscribe(handler)
}

// WriteString processes s one character at a time, in order
func (t *Terminal) WriteString(s string) {
	if s == "" {
		return
	}

	t.mu.Lock()
	for _, r := range s {
		t.put(r)
	}
	schedule := t.requestRenderLocked()
	t.mu.Unlock()

	t.schedule(schedule)
}

// Write implements io.Writer over a UTF-8 byte stream. A rune split across
// calls is held back until its remaining bytes arrive; invalid bytes are
// written as U+FFFD. It never fails.
func (t *Terminal) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	t.mu.Lock()
	data := p
	if len(t.carry) > 0 {
		data = append(t.carry, p...)
		t.carry = nil
	}

	processed := false
	for len(data) > 0 {
		if !utf8.FullRune(data) {
			t.carry = append([]byte(nil), data...)
			break
		}
		r, size := utf8.DecodeRune(data)
		t.put(r)
		processed = true
		data = data[size:]
	}

	schedule := false
	if processed {
		schedule = t.requestRenderLocked()
	}
	t.mu.Unlock()

	t.schedule(schedule)
	return len(p), nil
}

// put applies one character. Caller holds t.mu.
func (t *Terminal) put(r rune) {
	switch {
	case r == '\n':
		t.cursorX = 0
		t.nextLine()
	case r == '\r':
		t.cursorX = 0
	case r == '\b':
		if t.cursorX > 0 {
			t.cursorX--
		}
	case r < 0x20:
		t.logDebug("ignoring control code 0x%02X at (%d, %d)", r, t.cursorX, t.cursorY)
	default:
		t.grid.SetCell(t.cursorX, t.cursorY, grid.Cell{Char: r, Attributes: t.pen})
		t.cursorX++
		if t.cursorX >= t.grid.Cols() {
			t.cursorX = 0
			t.nextLine()
		}
	}
}

// nextLine moves the cursor down, scrolling when it leaves the bottom row
func (t *Terminal) nextLine() {
	t.cursorY++
	if t.cursorY >= t.grid.Rows() {
		t.grid.ScrollUp()
		t.cursorY = t.grid.Rows() - 1
	}
}

// Resize changes the grid to cols x rows, clamps the cursor and publishes a
// geometry-changed notification. Non-positive sizes are rejected and leave
// the terminal unchanged.
func (t *Terminal) Resize(cols, rows int) error {
	t.mu.Lock()
	if err := t.grid.Resize(cols, rows); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to resize terminal: %w", err)
	}

	t.cursorX = min(t.cursorX, cols-1)
	t.cursorY = min(t.cursorY, rows-1)
	t.logDebug("resized to %dx%d, cursor (%d, %d)", cols, rows, t.cursorX, t.cursorY)
	schedule := t.requestRenderLocked()
	t.mu.Unlock()

	t.onResize.Publish(Size{Cols: cols, Rows: rows})
	t.schedule(schedule)
	return nil
}

// Clear blanks the screen and homes the cursor. Scrollback is kept.
func (t *Terminal) Clear() {
	t.mu.Lock()
	t.clearLocked()
	schedule := t.requestRenderLocked()
	t.mu.Unlock()

	t.schedule(schedule)
}

// Reset clears the screen and restores the default pen
func (t *Terminal) Reset() {
	t.mu.Lock()
	t.clearLocked()
	t.pen = grid.DefaultAttributes()
	t.carry = nil
	schedule := t.requestRenderLocked()
	t.mu.Unlock()

	t.schedule(schedule)
}

func (t *Terminal) clearLocked() {
	t.grid.Clear()
	t.cursorX = 0
	t.cursorY = 0
}

// SetPen sets the attributes stored with subsequently printed characters
func (t *Terminal) SetPen(attrs grid.Attributes) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pen = attrs
}

// Pen returns the current pen attributes
func (t *Terminal) Pen() grid.Attributes {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pen
}

// Flush delivers a pending render notification immediately. It returns false
// when nothing was pending.
func (t *Terminal) Flush() bool {
	return t.render()
}

// RenderPending reports whether a render notification is outstanding
func (t *Terminal) RenderPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.renderPending
}

// requestRenderLocked marks a render as pending and reports whether the
// caller must schedule one. Caller holds t.mu.
func (t *Terminal) requestRenderLocked() bool {
	if t.renderPending {
		return false
	}
	t.renderPending = true
	return true
}

func (t *Terminal) schedule(needed bool) {
	if needed {
		t.scheduler.Schedule(func() { t.render() })
	}
}

func (t *Terminal) render() bool {
	t.mu.Lock()
	if !t.renderPending {
		t.mu.Unlock()
		return false
	}
	t.renderPending = false
	t.mu.Unlock()

	t.onRender.Publish(struct{}{})
	return true
}

// Cols returns the number of columns
func (t *Terminal) Cols() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.grid.Cols()
}

// Rows returns the number of rows
func (t *Terminal) Rows() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.grid.Rows()
}

// Size returns the current geometry
func (t *Terminal) Size() Size {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Size{Cols: t.grid.Cols(), Rows: t.grid.Rows()}
}

// Cursor returns the cursor position
func (t *Terminal) Cursor() (x, y int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursorX, t.cursorY
}

// CellAt returns the cell at (x, y) and whether the position is on screen
func (t *Terminal) CellAt(x, y int) (grid.Cell, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.grid.Contains(x, y) {
		return grid.Cell{}, false
	}
	return t.grid.Cell(x, y), true
}

// Snapshot returns a copy of the visible grid together with the cursor
func (t *Terminal) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Size:    Size{Cols: t.grid.Cols(), Rows: t.grid.Rows()},
		CursorX: t.cursorX,
		CursorY: t.cursorY,
		Lines:   t.grid.Lines(),
	}
}

// State returns a summary of the terminal state
func (t *Terminal) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{
		CursorX:         t.cursorX,
		CursorY:         t.cursorY,
		Cols:            t.grid.Cols(),
		Rows:            t.grid.Rows(),
		ScrollbackLines: t.grid.Scrollback().Len(),
		Pen:             t.pen,
	}
}

// ScrollbackLines returns copies of the rows scrolled off the top, oldest first
func (t *Terminal) ScrollbackLines() []grid.Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.grid.Scrollback().Lines()
}

// ClearScrollback drops all scrollback rows
func (t *Terminal) ClearScrollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.grid.Scrollback().Clear()
}

// SetScrollbackSize changes the scrollback capacity, keeping the newest rows
func (t *Terminal) SetScrollbackSize(size int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.grid.Scrollback().SetCapacity(size)
}

// GetScrollbackSize returns the scrollback capacity
func (t *Terminal) GetScrollbackSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.grid.Scrollback().Cap()
}
