package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"termgrid/pkg/app"
	"termgrid/pkg/history"
	"termgrid/pkg/serial"
	"termgrid/pkg/terminal"
)

var (
	viewFlags     terminalFlags
	viewRecord    recordFlags
	viewExitOnEOF bool
	viewFrame     time.Duration
)

// newViewCmd builds the command that shows a stream in an interactive viewer
func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view [file|-]",
		Short: "Show a file or standard input in a live terminal grid",
		Long: `Feed a file or standard input into a terminal grid drawn on the screen.
The grid follows the screen size unless --cols or --rows is given.
Press Ctrl+Q or Esc to quit, Ctrl+T for the command menu.

Examples:
  # Watch a growing log
  tail -f build.log | termgrid view

  # Show a capture at a fixed size and leave when it ends
  termgrid view capture.bin --cols 80 --rows 24 --exit-on-eof`,
		Args: cobra.MaximumNArgs(1),
		RunE: runView,
	}

	viewFlags.register(cmd)
	viewRecord.register(cmd)
	cmd.Flags().BoolVar(&viewExitOnEOF, "exit-on-eof", false, "quit when the input ends")
	cmd.Flags().DurationVar(&viewFrame, "frame-interval", terminal.DefaultFrameInterval, "minimum time between redraws")
	return cmd
}

func runView(cmd *cobra.Command, args []string) error {
	opts, dec, _, err := viewFlags.resolve(cmd)
	if err != nil {
		return err
	}

	name := "-"
	if len(args) == 1 {
		name = args[0]
	}
	src, closeSrc, err := openInput(cmd.InOrStdin(), name)
	if err != nil {
		return err
	}
	defer closeSrc()

	return runViewer(cmd, src, name, opts, dec, &viewRecord, viewExitOnEOF, viewFrame)
}

// recordFlags control transcript recording for interactive sessions
type recordFlags struct {
	path   string
	format string
}

func (f *recordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "record", "", "record the session to this file")
	cmd.Flags().StringVar(&f.format, "record-format", "json", "record format (plain, timestamped, json)")
}

// runViewer runs an interactive viewer over src and saves the recording
func runViewer(cmd *cobra.Command, src io.Reader, name string, opts terminal.Options, dec *serial.Decoder,
	record *recordFlags, exitOnEOF bool, frame time.Duration) error {
	config := app.DefaultConfig()
	config.Terminal = opts
	config.FitScreen = opts.Cols == 0 && opts.Rows == 0
	config.ExitOnEOF = exitOnEOF
	config.FrameInterval = frame
	config.Decoder = dec
	config.Logger = logger()

	var format history.FileFormat
	if record.path != "" {
		var err error
		if format, err = history.ParseFormat(record.format); err != nil {
			return err
		}
		config.Transcript = history.NewTranscript(0)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runner := app.NewRunner(src, name, config, cmd.OutOrStdout())
	runErr := runner.Run(ctx)

	if config.Transcript != nil {
		if err := config.Transcript.SaveToFile(record.path, format); err != nil {
			return fmt.Errorf("failed to save recording: %w", err)
		}
		verbosef(cmd, "Recorded %d bytes to %s", config.Transcript.Size(), record.path)
	}

	return runErr
}
