package terminal

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"termgrid/pkg/grid"
)

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Debugf(format string, args ...interface{}) {
	l.lines = append(l.lines, format)
}

func newTestTerminal(t *testing.T, cols, rows int) (*Terminal, *ManualScheduler) {
	t.Helper()
	sched := NewManualScheduler()
	term, err := New(Options{Cols: cols, Rows: rows, Scrollback: 100, Scheduler: sched})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return term, sched
}

func assertCursor(t *testing.T, term *Terminal, wantX, wantY int) {
	t.Helper()
	if x, y := term.Cursor(); x != wantX || y != wantY {
		t.Errorf("Cursor() = (%d, %d), want (%d, %d)", x, y, wantX, wantY)
	}
}

func assertChar(t *testing.T, term *Terminal, x, y int, want rune) {
	t.Helper()
	cell, ok := term.CellAt(x, y)
	if !ok {
		t.Fatalf("CellAt(%d, %d) out of range", x, y)
	}
	if cell.Char != want {
		t.Errorf("CellAt(%d, %d) = %q, want %q", x, y, cell.Char, want)
	}
}

func TestState_Validate(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		wantErr bool
	}{
		{
			name:  "valid state",
			state: State{CursorX: 10, CursorY: 5, Cols: 80, Rows: 24},
		},
		{
			name:    "zero cols",
			state:   State{Cols: 0, Rows: 24},
			wantErr: true,
		},
		{
			name:    "zero rows",
			state:   State{Cols: 80, Rows: 0},
			wantErr: true,
		},
		{
			name:    "cursor X out of bounds",
			state:   State{CursorX: 80, Cols: 80, Rows: 24},
			wantErr: true,
		},
		{
			name:    "cursor Y out of bounds",
			state:   State{CursorY: 24, Cols: 80, Rows: 24},
			wantErr: true,
		},
		{
			name:    "negative cursor",
			state:   State{CursorX: -1, Cols: 80, Rows: 24},
			wantErr: true,
		},
		{
			name:    "negative scrollback",
			state:   State{Cols: 80, Rows: 24, ScrollbackLines: -2},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("State.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	term, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	state := term.State()
	if state.Cols != DefaultCols || state.Rows != DefaultRows {
		t.Errorf("size = %dx%d, want %dx%d", state.Cols, state.Rows, DefaultCols, DefaultRows)
	}
	if term.GetScrollbackSize() != DefaultScrollback {
		t.Errorf("GetScrollbackSize() = %d, want %d", term.GetScrollbackSize(), DefaultScrollback)
	}
	if state.Pen != grid.DefaultAttributes() {
		t.Errorf("Pen = %+v, want default", state.Pen)
	}
	if err := state.Validate(); err != nil {
		t.Errorf("initial state invalid: %v", err)
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantDim bool
	}{
		{name: "negative cols", opts: Options{Cols: -1, Rows: 24}, wantDim: true},
		{name: "negative rows", opts: Options{Cols: 80, Rows: -5}, wantDim: true},
		{name: "negative scrollback", opts: Options{Cols: 80, Rows: 24, Scrollback: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			if err == nil {
				t.Fatal("New() should fail")
			}
			if errors.Is(err, grid.ErrInvalidDimension) != tt.wantDim {
				t.Errorf("errors.Is(err, ErrInvalidDimension) = %v, want %v (err: %v)",
					!tt.wantDim, tt.wantDim, err)
			}
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Cols != 80 || opts.Rows != 24 || opts.Scrollback != 1000 {
		t.Errorf("DefaultOptions() = %+v, want 80x24 with 1000 scrollback", opts)
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("DefaultOptions() invalid: %v", err)
	}
}

func TestWrite_NewlineScenario(t *testing.T) {
	term, _ := newTestTerminal(t, 5, 2)

	term.WriteString("ab\n")
	assertCursor(t, term, 0, 1)

	term.WriteString("cd")
	assertChar(t, term, 0, 0, 'a')
	assertChar(t, term, 1, 0, 'b')
	assertChar(t, term, 0, 1, 'c')
	assertChar(t, term, 1, 1, 'd')
	assertCursor(t, term, 2, 1)
}

func TestWrite_WrapWithoutScroll(t *testing.T) {
	term, _ := newTestTerminal(t, 3, 2)

	term.WriteString("abcd")

	snap := term.Snapshot()
	if got := snap.Lines[0].String(); got != "abc" {
		t.Errorf("row 0 = %q, want %q", got, "abc")
	}
	if got := snap.Lines[1].String(); got != "d  " {
		t.Errorf("row 1 = %q, want %q", got, "d  ")
	}
	assertCursor(t, term, 1, 1)
	if n := len(term.ScrollbackLines()); n != 0 {
		t.Errorf("scrollback = %d lines, want 0", n)
	}
}

func TestWrite_WrapProperty(t *testing.T) {
	const cols, rows = 4, 3

	t.Run("wrap to next row", func(t *testing.T) {
		term, _ := newTestTerminal(t, cols, rows)
		term.WriteString(strings.Repeat("x", cols))
		assertCursor(t, term, 0, 1)
		if n := len(term.ScrollbackLines()); n != 0 {
			t.Errorf("scrollback = %d lines, want 0", n)
		}
	})

	t.Run("wrap on last row scrolls once", func(t *testing.T) {
		term, _ := newTestTerminal(t, cols, rows)
		term.WriteString("top\n\n")
		assertCursor(t, term, 0, rows-1)

		term.WriteString(strings.Repeat("y", cols))
		assertCursor(t, term, 0, rows-1)

		back := term.ScrollbackLines()
		if len(back) != 1 {
			t.Fatalf("scrollback = %d lines, want 1", len(back))
		}
		if back[0].String() != "top " {
			t.Errorf("scrollback line = %q, want %q", back[0].String(), "top ")
		}
		snap := term.Snapshot()
		if snap.Lines[rows-2].String() != "yyyy" || snap.Lines[rows-1].String() != "    " {
			t.Errorf("screen after scroll = %q", snap.String())
		}
	})
}

func TestWrite_ControlCharacters(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantX  int
		wantY  int
		wantR0 string
	}{
		{name: "carriage return", input: "abc\rX", wantX: 1, wantY: 0, wantR0: "Xbc   "},
		{name: "backspace", input: "abc\bZ", wantX: 3, wantY: 0, wantR0: "abZ   "},
		{name: "backspace at column zero", input: "\b\bq", wantX: 1, wantY: 0, wantR0: "q     "},
		{name: "backspace does not wrap", input: "abcdef\b", wantX: 0, wantY: 1, wantR0: "abcdef"},
		{name: "ignored controls", input: "a\x07\x1b\x00\tb", wantX: 2, wantY: 0, wantR0: "ab    "},
		{name: "newline resets column", input: "abc\n", wantX: 0, wantY: 1, wantR0: "abc   "},
		{name: "unicode passes through", input: "héllo", wantX: 5, wantY: 0, wantR0: "héllo "},
		{name: "empty input", input: "", wantX: 0, wantY: 0, wantR0: "      "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term, _ := newTestTerminal(t, 6, 3)
			term.WriteString(tt.input)
			assertCursor(t, term, tt.wantX, tt.wantY)
			if got := term.Snapshot().Lines[0].String(); got != tt.wantR0 {
				t.Errorf("row 0 = %q, want %q", got, tt.wantR0)
			}
		})
	}
}

func TestWrite_IgnoredControlIsLogged(t *testing.T) {
	logger := &recordingLogger{}
	term, err := New(Options{Cols: 4, Rows: 2, Logger: logger})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	term.WriteString("\x1b")
	if len(logger.lines) != 1 {
		t.Errorf("logged %d lines, want 1", len(logger.lines))
	}
}

func TestWrite_NewlineScrollsAtBottom(t *testing.T) {
	term, _ := newTestTerminal(t, 3, 2)
	term.WriteString("1\n2\n3\n4")

	snap := term.Snapshot()
	if snap.String() != "3\n4" {
		t.Errorf("screen = %q, want %q", snap.String(), "3\n4")
	}
	assertCursor(t, term, 1, 1)

	back := term.ScrollbackLines()
	if len(back) != 2 || back[0].String() != "1  " || back[1].String() != "2  " {
		t.Errorf("scrollback = %v, want [1 2]", back)
	}
}

func TestWrite_UsesPen(t *testing.T) {
	term, _ := newTestTerminal(t, 4, 1)
	pen := grid.Attributes{Foreground: grid.ColorGreen, Background: grid.ColorBlue, Bold: true, Underline: true}

	term.WriteString("a")
	term.SetPen(pen)
	term.WriteString("b")

	a, _ := term.CellAt(0, 0)
	b, _ := term.CellAt(1, 0)
	if a.Attributes != grid.DefaultAttributes() {
		t.Errorf("cell a attributes = %+v, want default", a.Attributes)
	}
	if b.Attributes != pen {
		t.Errorf("cell b attributes = %+v, want %+v", b.Attributes, pen)
	}
	if term.Pen() != pen {
		t.Errorf("Pen() = %+v, want %+v", term.Pen(), pen)
	}
}

func TestWriteBytes_SplitRune(t *testing.T) {
	term, _ := newTestTerminal(t, 8, 2)
	encoded := []byte("a€b") // € is three bytes

	for i := range encoded {
		n, err := term.Write(encoded[i : i+1])
		if n != 1 || err != nil {
			t.Fatalf("Write() = %d, %v, want 1, nil", n, err)
		}
	}

	if got := strings.TrimRight(term.Snapshot().Lines[0].String(), " "); got != "a€b" {
		t.Errorf("row 0 = %q, want %q", got, "a€b")
	}
	assertCursor(t, term, 3, 0)
}

func TestWriteBytes_InvalidUTF8(t *testing.T) {
	term, _ := newTestTerminal(t, 8, 2)

	term.Write([]byte{'a', 0xff, 'b'})
	assertChar(t, term, 1, 0, '�')
	assertChar(t, term, 2, 0, 'b')

	// Truncated sequence followed by ASCII
	term.Write([]byte{0xe2, 0x82})
	term.Write([]byte{'c'})
	assertChar(t, term, 3, 0, '�')
	assertChar(t, term, 5, 0, 'c')
}

func TestWriteBytes_PendingTailDoesNotRender(t *testing.T) {
	term, sched := newTestTerminal(t, 8, 2)

	term.Write([]byte{0xe2})
	if sched.Pending() != 0 {
		t.Errorf("incomplete rune scheduled %d renders, want 0", sched.Pending())
	}
	term.Write([]byte{0x82, 0xac})
	if sched.Pending() != 1 {
		t.Errorf("completed rune scheduled %d renders, want 1", sched.Pending())
	}
	assertChar(t, term, 0, 0, '€')
}

func TestResize_GrowPreservesContent(t *testing.T) {
	term, _ := newTestTerminal(t, 3, 2)
	term.WriteString("abcde")
	assertCursor(t, term, 2, 1)

	if err := term.Resize(10, 5); err != nil {
		t.Fatalf("Resize() error: %v", err)
	}

	snap := term.Snapshot()
	if snap.Cols != 10 || snap.Rows != 5 || len(snap.Lines) != 5 {
		t.Fatalf("size = %dx%d (%d lines), want 10x5", snap.Cols, snap.Rows, len(snap.Lines))
	}
	if snap.Lines[0].String() != "abc       " || snap.Lines[1].String() != "de        " {
		t.Errorf("content = %q", snap.String())
	}
	if c := snap.Cell(9, 4); c != grid.DefaultCell() {
		t.Errorf("new cell = %+v, want default", c)
	}
	assertCursor(t, term, 2, 1)
}

func TestResize_ClampsCursor(t *testing.T) {
	term, _ := newTestTerminal(t, 5, 3)
	term.WriteString("\n\nabcd")
	assertCursor(t, term, 4, 2)

	if err := term.Resize(2, 1); err != nil {
		t.Fatalf("Resize() error: %v", err)
	}
	assertCursor(t, term, 1, 0)
}

func TestResize_Invalid(t *testing.T) {
	term, sched := newTestTerminal(t, 5, 3)
	term.WriteString("hi")
	sched.Flush()

	resized := 0
	term.OnResize(func(Size) { resized++ })

	for _, dims := range [][2]int{{0, 3}, {5, 0}, {-4, 10}} {
		err := term.Resize(dims[0], dims[1])
		if !errors.Is(err, grid.ErrInvalidDimension) {
			t.Errorf("Resize(%d, %d) error = %v, want ErrInvalidDimension", dims[0], dims[1], err)
		}
	}

	if resized != 0 {
		t.Errorf("rejected resize fired %d events", resized)
	}
	if size := term.Size(); size != (Size{Cols: 5, Rows: 3}) {
		t.Errorf("Size() = %+v, want 5x3", size)
	}
	assertCursor(t, term, 2, 0)
	if sched.Pending() != 0 {
		t.Errorf("rejected resize scheduled %d renders", sched.Pending())
	}
}

func TestResize_PublishesGeometry(t *testing.T) {
	term, sched := newTestTerminal(t, 5, 3)

	var sizes []Size
	var order []string
	term.OnResize(func(s Size) {
		sizes = append(sizes, s)
		order = append(order, "resize")
	})
	term.OnRender(func(struct{}) { order = append(order, "render") })

	term.Resize(7, 4)
	term.Resize(2, 2)
	sched.Flush()

	if len(sizes) != 2 || sizes[0] != (Size{7, 4}) || sizes[1] != (Size{2, 2}) {
		t.Errorf("resize events = %v, want [{7 4} {2 2}]", sizes)
	}
	want := []string{"resize", "resize", "render"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("event order = %v, want %v", order, want)
	}
}

func TestResize_HandlerSeesNewGeometry(t *testing.T) {
	term, _ := newTestTerminal(t, 5, 3)

	var seen Size
	term.OnResize(func(Size) { seen = term.Size() })
	term.Resize(9, 6)

	if seen != (Size{Cols: 9, Rows: 6}) {
		t.Errorf("handler saw %+v, want 9x6", seen)
	}
}

func TestClear_Idempotent(t *testing.T) {
	term, _ := newTestTerminal(t, 4, 3)
	term.WriteString("ab\ncd\nef\ngh")

	term.Clear()
	first := term.Snapshot()
	term.Clear()
	second := term.Snapshot()

	for _, snap := range []Snapshot{first, second} {
		if snap.CursorX != 0 || snap.CursorY != 0 {
			t.Errorf("cursor = (%d, %d), want (0, 0)", snap.CursorX, snap.CursorY)
		}
		for y, row := range snap.Lines {
			for x, c := range row {
				if c != grid.DefaultCell() {
					t.Fatalf("cell (%d, %d) = %+v, want default", x, y, c)
				}
			}
		}
	}
	if first.String() != second.String() {
		t.Error("second Clear() changed the grid")
	}
	if n := len(term.ScrollbackLines()); n != 1 {
		t.Errorf("Clear() should keep scrollback, got %d lines", n)
	}
}

func TestReset_RestoresPen(t *testing.T) {
	term, _ := newTestTerminal(t, 4, 2)
	term.SetPen(grid.Attributes{Foreground: grid.ColorRed, Italic: true})
	term.WriteString("abc")

	term.Reset()

	assertCursor(t, term, 0, 0)
	if term.Pen() != grid.DefaultAttributes() {
		t.Errorf("Pen() after Reset() = %+v, want default", term.Pen())
	}
	if term.Snapshot().String() != "\n" {
		t.Errorf("screen after Reset() = %q, want blank", term.Snapshot().String())
	}
}

func TestRender_Coalesced(t *testing.T) {
	term, sched := newTestTerminal(t, 10, 3)

	renders := 0
	term.OnRender(func(struct{}) { renders++ })

	for i := 0; i < 5; i++ {
		term.WriteString("x")
	}
	term.Resize(12, 4)
	term.Clear()

	if sched.Pending() != 1 {
		t.Fatalf("scheduled %d callbacks, want 1", sched.Pending())
	}
	if !term.RenderPending() {
		t.Error("RenderPending() = false before flush")
	}

	sched.Flush()
	if renders != 1 {
		t.Errorf("render notifications = %d, want 1", renders)
	}
	if term.RenderPending() {
		t.Error("RenderPending() = true after flush")
	}

	term.WriteString("y")
	sched.Flush()
	if renders != 2 {
		t.Errorf("render notifications after next tick = %d, want 2", renders)
	}

	if sched.Flush() != 0 || renders != 2 {
		t.Errorf("idle flush produced a render, total = %d", renders)
	}
}

func TestRender_EmptyWriteIsNoop(t *testing.T) {
	term, sched := newTestTerminal(t, 10, 3)
	term.WriteString("")
	term.Write(nil)
	if sched.Pending() != 0 {
		t.Errorf("empty write scheduled %d renders", sched.Pending())
	}
}

func TestFlush_DeliversPendingRender(t *testing.T) {
	term, sched := newTestTerminal(t, 10, 3)

	renders := 0
	term.OnRender(func(struct{}) { renders++ })

	if term.Flush() {
		t.Error("Flush() with nothing pending = true")
	}

	term.WriteString("abc")
	if !term.Flush() {
		t.Error("Flush() with pending render = false")
	}

	// The already scheduled callback must not produce a second notification
	sched.Flush()
	if renders != 1 {
		t.Errorf("render notifications = %d, want 1", renders)
	}
}

func TestFlush_WithoutScheduler(t *testing.T) {
	term, err := New(Options{Cols: 4, Rows: 2})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	renders := 0
	term.OnRender(func(struct{}) { renders++ })
	term.WriteString("a")
	term.WriteString("b")

	if renders != 0 {
		t.Errorf("render fired without a scheduler tick: %d", renders)
	}
	term.Flush()
	if renders != 1 {
		t.Errorf("render notifications = %d, want 1", renders)
	}
}

func TestDisposeRenderSubscription(t *testing.T) {
	term, sched := newTestTerminal(t, 4, 2)

	renders := 0
	sub := term.OnRender(func(struct{}) { renders++ })
	sub.Dispose()
	sub.Dispose()

	term.WriteString("a")
	sched.Flush()
	if renders != 0 {
		t.Errorf("disposed handler ran %d times", renders)
	}
}

func TestInvariants_RandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	term, sched := newTestTerminal(t, 7, 4)
	alphabet := []rune("ab \n\r\b\x1bxyz€")

	for i := 0; i < 2000; i++ {
		switch rng.Intn(10) {
		case 0:
			cols, rows := rng.Intn(12)+1, rng.Intn(8)+1
			if err := term.Resize(cols, rows); err != nil {
				t.Fatalf("Resize(%d, %d) error: %v", cols, rows, err)
			}
		case 1:
			term.Clear()
		default:
			var b strings.Builder
			for n := rng.Intn(20); n >= 0; n-- {
				b.WriteRune(alphabet[rng.Intn(len(alphabet))])
			}
			term.WriteString(b.String())
		}

		state := term.State()
		if err := state.Validate(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		snap := term.Snapshot()
		if len(snap.Lines) != snap.Rows {
			t.Fatalf("step %d: %d lines, want %d", i, len(snap.Lines), snap.Rows)
		}
		for y, row := range snap.Lines {
			if len(row) != snap.Cols {
				t.Fatalf("step %d: row %d has %d cells, want %d", i, y, len(row), snap.Cols)
			}
		}
		if sched.Pending() > 1 {
			t.Fatalf("step %d: %d outstanding render requests", i, sched.Pending())
		}
	}
}

func TestScrollbackBounded(t *testing.T) {
	term, err := New(Options{Cols: 3, Rows: 2, Scrollback: 3})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	term.WriteString("1\n2\n3\n4\n5\n6")

	back := term.ScrollbackLines()
	var got []string
	for _, row := range back {
		got = append(got, strings.TrimSpace(row.String()))
	}
	if strings.Join(got, ",") != "2,3,4" {
		t.Errorf("scrollback = %v, want [2 3 4]", got)
	}
	if term.State().ScrollbackLines != 3 {
		t.Errorf("State().ScrollbackLines = %d, want 3", term.State().ScrollbackLines)
	}
}

func TestSetScrollbackSize(t *testing.T) {
	term, _ := newTestTerminal(t, 3, 1)
	term.WriteString("a\nb\nc\nd")

	if err := term.SetScrollbackSize(1); err != nil {
		t.Fatalf("SetScrollbackSize() error: %v", err)
	}
	back := term.ScrollbackLines()
	if len(back) != 1 || back[0].String() != "c  " {
		t.Errorf("scrollback = %v, want [c]", back)
	}
	if err := term.SetScrollbackSize(-1); err == nil {
		t.Error("SetScrollbackSize(-1) should fail")
	}

	term.ClearScrollback()
	if len(term.ScrollbackLines()) != 0 {
		t.Error("ClearScrollback() left rows behind")
	}
}

func TestCellAt_OutOfRange(t *testing.T) {
	term, _ := newTestTerminal(t, 3, 2)
	for _, pos := range [][2]int{{3, 0}, {0, 2}, {-1, 0}, {0, -1}} {
		if _, ok := term.CellAt(pos[0], pos[1]); ok {
			t.Errorf("CellAt(%d, %d) ok = true, want false", pos[0], pos[1])
		}
	}
}

func TestSnapshot_String(t *testing.T) {
	term, _ := newTestTerminal(t, 5, 3)
	term.WriteString("hi\n  x")

	want := "hi\n  x\n"
	if got := term.Snapshot().String(); got != want {
		t.Errorf("Snapshot().String() = %q, want %q", got, want)
	}
	if c := term.Snapshot().Cell(10, 10); c != grid.DefaultCell() {
		t.Errorf("Snapshot().Cell() out of range = %+v, want default", c)
	}
}

func TestClearScrollback(t *testing.T) {
	term, _ := newTestTerminal(t, 3, 1)
	term.WriteString("a\nb\nc")

	term.ClearScrollback()

	if n := len(term.ScrollbackLines()); n != 0 {
		t.Errorf("len(ScrollbackLines()) = %d, want 0", n)
	}
	if got := term.Snapshot().String(); got != "c" {
		t.Errorf("Snapshot().String() = %q, want %q", got, "c")
	}
}
