// Package app runs an interactive terminal viewer on a tcell screen
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"termgrid/pkg/history"
	"termgrid/pkg/menu"
	"termgrid/pkg/render"
	"termgrid/pkg/serial"
	"termgrid/pkg/terminal"
)

// pumpGrace bounds how long shutdown waits for a source read to return
var pumpGrace = 250 * time.Millisecond

// Config contains viewer configuration
type Config struct {
	// Terminal sizes the grid. Its Scheduler is replaced by the viewer.
	Terminal      terminal.Options
	FrameInterval time.Duration
	// FitScreen sizes the grid to the screen and follows screen resizes
	FitScreen  bool
	ExitOnEOF  bool
	Decoder    *serial.Decoder
	Transcript *history.Transcript
	Logger     terminal.Logger
}

// DefaultConfig returns default viewer configuration
func DefaultConfig() Config {
	return Config{
		Terminal:      terminal.DefaultOptions(),
		FrameInterval: terminal.DefaultFrameInterval,
		FitScreen:     true,
	}
}

// Session records what a viewer run received
type Session struct {
	Name      string
	StartTime time.Time
	EndTime   *time.Time
	BytesRecv int64
	IsActive  bool
	mu        sync.RWMutex
}

// NewSession creates a new session
func NewSession(name string) *Session {
	return &Session{
		Name:      name,
		StartTime: time.Now(),
		IsActive:  true,
	}
}

// End marks the session as ended
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsActive {
		return
	}
	now := time.Now()
	s.EndTime = &now
	s.IsActive = false
}

// AddReceived counts bytes taken from the source
func (s *Session) AddReceived(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BytesRecv += n
}

// Stats returns the byte count and how long the session ran
func (s *Session) Stats() (bytesRecv int64, duration time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	end := time.Now()
	if s.EndTime != nil {
		end = *s.EndTime
	}
	return s.BytesRecv, end.Sub(s.StartTime)
}

// countingReader counts the raw bytes taken from the source, before any
// charset decoding
type countingReader struct {
	r       io.Reader
	session *Session
}

func (c countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.session.AddReceived(int64(n))
	}
	return n, err
}

// Viewer shows a byte stream through a terminal grid on a screen
type Viewer struct {
	screen   tcell.Screen
	source   io.Reader
	config   Config
	term     *terminal.Terminal
	renderer *render.Renderer
	ticker   *terminal.TickerScheduler
	session  *Session
	menu     *menu.Menu

	mu      sync.Mutex
	running bool
	closed  bool

	// quitRequested is only touched from the event loop
	quitRequested bool
}

// NewViewer creates a viewer reading from source and drawing on screen. The
// screen must already be initialised; the caller keeps ownership of it. The
// frame ticker starts here and stops when Run returns; a viewer that is never
// run must be released with Close.
func NewViewer(screen tcell.Screen, source io.Reader, name string, config Config) (*Viewer, error) {
	if screen == nil {
		return nil, fmt.Errorf("screen cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}

	opts := config.Terminal
	if config.FitScreen {
		if w, h := screen.Size(); w > 0 && h > 0 {
			opts.Cols, opts.Rows = w, h
		}
	}

	ticker := terminal.NewTickerScheduler(context.Background(), config.FrameInterval)
	opts.Scheduler = ticker
	opts.Logger = config.Logger

	term, err := terminal.New(opts)
	if err != nil {
		ticker.Stop()
		return nil, fmt.Errorf("failed to create terminal: %w", err)
	}

	renderer, err := render.NewRenderer(screen)
	if err != nil {
		ticker.Stop()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	v := &Viewer{
		screen:   screen,
		source:   source,
		config:   config,
		term:     term,
		renderer: renderer,
		ticker:   ticker,
		session:  NewSession(name),
	}
	v.menu = v.buildMenu()
	return v, nil
}

// buildMenu creates the Ctrl+T command menu
func (v *Viewer) buildMenu() *menu.Menu {
	m := menu.NewMenu("termgrid")
	m.AddItem("Clear screen", "c", func() error {
		v.term.Clear()
		return nil
	})
	m.AddItem("Clear scrollback", "s", func() error {
		v.term.ClearScrollback()
		return nil
	})
	m.AddItem("Redraw", "r", func() error {
		v.screen.Sync()
		return nil
	})
	m.AddSeparator()
	m.AddItem("Quit", "q", func() error {
		v.quitRequested = true
		return nil
	})
	m.SetOnClose(func() {
		v.renderer.SetOverlay(nil)
		v.screen.Clear()
	})
	m.SetOnError(func(err error) {
		v.logDebug("viewer: menu action failed: %v", err)
	})
	return m
}

// Close stops the frame ticker of a viewer that will not be run. Run cannot
// be called afterwards. It is safe to call Close after Run has returned.
func (v *Viewer) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()

	v.ticker.Stop()
}

// Terminal returns the terminal the viewer feeds
func (v *Viewer) Terminal() *terminal.Terminal {
	return v.term
}

// Session returns the session statistics
func (v *Viewer) Session() *Session {
	return v.session
}

func (v *Viewer) logDebug(format string, args ...interface{}) {
	if v.config.Logger != nil {
		v.config.Logger.Debugf(format, args...)
	}
}

// Run shows the stream until the user quits, ctx is cancelled or, with
// ExitOnEOF, the source ends. It returns the source error, if any. A viewer
// runs once.
func (v *Viewer) Run(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return fmt.Errorf("viewer is closed")
	}
	if v.running {
		v.mu.Unlock()
		return fmt.Errorf("viewer has already run")
	}
	v.running = true
	v.mu.Unlock()

	if err := v.renderer.Attach(v.term); err != nil {
		v.ticker.Stop()
		return fmt.Errorf("failed to attach renderer: %w", err)
	}

	pumpCtx, cancelPump := context.WithCancel(ctx)
	defer cancelPump()

	var dst io.Writer = v.term
	if v.config.Transcript != nil {
		dst = io.MultiWriter(v.term, v.config.Transcript)
	}

	pumpDone := make(chan error, 1)
	go func() {
		_, err := serial.Pump(pumpCtx, countingReader{r: v.source, session: v.session}, dst, v.config.Decoder)
		pumpDone <- err
	}()

	events := make(chan tcell.Event)
	quit := make(chan struct{})
	go v.pollEvents(events, quit)

	v.logDebug("viewer %s started", v.session.Name)
	v.term.Flush()

	var sourceErr error
	sourceDone := false
loop:
	for {
		select {
		case <-ctx.Done():
			v.logDebug("viewer: context done")
			break loop
		case err := <-pumpDone:
			sourceDone = true
			pumpDone = nil
			if err != nil && !errors.Is(err, context.Canceled) {
				sourceErr = err
				v.logDebug("viewer: source failed: %v", err)
			} else {
				v.logDebug("viewer: source ended")
			}
			v.term.Flush()
			if v.config.ExitOnEOF || sourceErr != nil {
				break loop
			}
		case ev := <-events:
			if v.handleEvent(ev) {
				break loop
			}
		}
	}

	close(quit)
	v.screen.PostEvent(tcell.NewEventInterrupt(nil))
	cancelPump()

	if !sourceDone {
		select {
		case err := <-pumpDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				sourceErr = err
			}
		case <-time.After(pumpGrace):
			v.logDebug("viewer: source read still blocked after %v", pumpGrace)
		}
	}

	v.ticker.Stop()
	v.term.Flush()
	v.renderer.Detach()
	v.session.End()

	recv, duration := v.session.Stats()
	v.logDebug("viewer %s stopped after %v, %d bytes", v.session.Name, duration, recv)

	return sourceErr
}

// pollEvents forwards screen events until quit is closed
func (v *Viewer) pollEvents(events chan<- tcell.Event, quit <-chan struct{}) {
	for {
		ev := v.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case events <- ev:
		case <-quit:
			return
		}
	}
}

// handleEvent reacts to a screen event and reports whether to stop
func (v *Viewer) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		v.logDebug("Key: Key=%v, Rune=%q, Mods=%v", ev.Key(), ev.Rune(), ev.Modifiers())
		if v.menu.IsVisible() {
			v.menu.HandleKey(ev)
			v.renderer.Render()
			return v.quitRequested
		}
		switch ev.Key() {
		case tcell.KeyCtrlQ, tcell.KeyEscape:
			return true
		case tcell.KeyCtrlL:
			v.screen.Sync()
		case tcell.KeyCtrlT:
			v.menu.Show()
			v.renderer.SetOverlay(v.menu)
			v.renderer.Render()
		}
	case *tcell.EventResize:
		v.handleResize()
	}
	return false
}

// handleResize follows the screen size when FitScreen is set
func (v *Viewer) handleResize() {
	width, height := v.screen.Size()
	if v.config.FitScreen && width > 0 && height > 0 {
		if err := v.term.Resize(width, height); err != nil {
			v.logDebug("viewer: %v", err)
		}
	}
	v.screen.Clear()
	if !v.term.Flush() {
		v.renderer.Render()
	}
}
