package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
)

// newScreen is replaced in tests
var newScreen = func() (tcell.Screen, error) {
	return tcell.NewScreen()
}

// Runner owns the screen around one viewer session
type Runner struct {
	source io.Reader
	name   string
	config Config
	out    io.Writer
	viewer *Viewer
}

// NewRunner creates a runner for source. The summary is printed to out.
func NewRunner(source io.Reader, name string, config Config, out io.Writer) *Runner {
	if out == nil {
		out = os.Stdout
	}
	return &Runner{
		source: source,
		name:   name,
		config: config,
		out:    out,
	}
}

// Run opens the screen, runs the viewer until it stops or an interrupt
// signal arrives, restores the screen and prints a session summary
func (r *Runner) Run(ctx context.Context) error {
	screen, err := newScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}

	viewer, err := NewViewer(screen, r.source, r.name, r.config)
	if err != nil {
		screen.Fini()
		return fmt.Errorf("failed to create viewer: %w", err)
	}
	r.viewer = viewer

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := viewer.Run(ctx)
	screen.Fini()

	r.printSessionSummary()
	return runErr
}

// Viewer returns the viewer of the last Run
func (r *Runner) Viewer() *Viewer {
	return r.viewer
}

// printSessionSummary prints a summary of the session
func (r *Runner) printSessionSummary() {
	if r.viewer == nil {
		return
	}

	bytesRecv, duration := r.viewer.Session().Stats()
	size := r.viewer.Terminal().Size()

	fmt.Fprintf(r.out, "\n=== Session Summary ===\n")
	fmt.Fprintf(r.out, "Source: %s\n", r.name)
	fmt.Fprintf(r.out, "Duration: %v\n", duration)
	fmt.Fprintf(r.out, "Bytes Received: %d\n", bytesRecv)
	fmt.Fprintf(r.out, "Grid: %dx%d\n", size.Cols, size.Rows)
	fmt.Fprintf(r.out, "=====================\n")
}
