package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"termgrid/pkg/history"
	"termgrid/pkg/serial"
	"termgrid/pkg/terminal"
)

var (
	replayFlags         terminalFlags
	replayTranscript    bool
	replayScrollbackOut bool
	replayFit           bool
	replaySave          string
	replaySaveFormat    string
)

// newReplayCmd builds the command that feeds a stream into a headless
// terminal and prints the grid
func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <file|->",
		Short: "Print the grid a byte stream leaves behind",
		Long: `Feed a file (or standard input with "-") into a terminal grid and print
the final screen. Carriage returns, backspaces and wrapping are applied the
way a terminal would, so progress bars collapse to their last state.

Examples:
  # Final screen of a build log at 120 columns
  termgrid replay build.log --cols 120

  # Include the lines that scrolled off
  termgrid replay build.log --scrollback-out

  # Replay a recorded session
  termgrid replay session.json --transcript`,
		Args:    cobra.ExactArgs(1),
		Aliases: []string{"render"},
		RunE:    runReplay,
	}

	replayFlags.register(cmd)
	cmd.Flags().BoolVar(&replayTranscript, "transcript", false, "input is a JSON transcript")
	cmd.Flags().BoolVar(&replayScrollbackOut, "scrollback-out", false, "print scrollback lines before the grid")
	cmd.Flags().BoolVar(&replayFit, "fit", false, "size the grid to the controlling terminal")
	cmd.Flags().StringVar(&replaySave, "save-transcript", "", "also record the input to this file")
	cmd.Flags().StringVar(&replaySaveFormat, "format", "json", "transcript format (plain, timestamped, json)")
	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	opts, dec, _, err := replayFlags.resolve(cmd)
	if err != nil {
		return err
	}

	if replayFit {
		cols, rows, err := controllingTerminalSize()
		if err != nil {
			return fmt.Errorf("--fit needs a terminal: %w", err)
		}
		if !cmd.Flags().Changed("cols") {
			opts.Cols = cols
		}
		if !cmd.Flags().Changed("rows") {
			opts.Rows = rows
		}
	}

	var format history.FileFormat
	if replaySave != "" {
		if format, err = history.ParseFormat(replaySaveFormat); err != nil {
			return err
		}
	}

	t, err := terminal.New(opts)
	if err != nil {
		return fmt.Errorf("failed to create terminal: %w", err)
	}

	var recorder *history.Transcript
	var dst io.Writer = t
	if replaySave != "" {
		recorder = history.NewTranscript(0)
		dst = io.MultiWriter(t, recorder)
	}

	n, err := feed(cmd.Context(), cmd.InOrStdin(), args[0], replayTranscript, dst, dec)
	if err != nil {
		return err
	}
	verbosef(cmd, "Replayed %d bytes into a %dx%d grid", n, t.Cols(), t.Rows())

	if recorder != nil {
		if err := recorder.SaveToFile(replaySave, format); err != nil {
			return fmt.Errorf("failed to save transcript: %w", err)
		}
	}

	t.Flush()
	printGrid(cmd.OutOrStdout(), t, replayScrollbackOut)
	return nil
}

// feed copies the named input into dst. Transcripts are replayed chunk by
// chunk; other inputs are decoded with dec.
func feed(ctx context.Context, stdin io.Reader, name string, transcript bool, dst io.Writer, dec *serial.Decoder) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if transcript {
		if name == "-" {
			return 0, fmt.Errorf("transcripts must be read from a file")
		}
		tr, err := history.LoadFile(name)
		if err != nil {
			return 0, err
		}
		return tr.Replay(dst)
	}

	src, closeSrc, err := openInput(stdin, name)
	if err != nil {
		return 0, err
	}
	defer closeSrc()

	return serial.Pump(ctx, src, dst, dec)
}

// openInput opens a file, or standard input for "-"
func openInput(stdin io.Reader, name string) (io.Reader, func(), error) {
	if name == "-" || name == "" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// controllingTerminalSize reports the size of the terminal on stdout
func controllingTerminalSize() (int, int, error) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0, 0, fmt.Errorf("stdout is not a terminal")
	}
	return term.GetSize(fd)
}

// printGrid writes the grid without trailing blanks or blank rows, optionally
// preceded by the scrollback
func printGrid(w io.Writer, t *terminal.Terminal, withScrollback bool) {
	if withScrollback {
		for _, row := range t.ScrollbackLines() {
			fmt.Fprintln(w, strings.TrimRight(row.String(), " "))
		}
	}
	if screen := strings.TrimRight(t.Snapshot().String(), "\n"); screen != "" {
		fmt.Fprintln(w, screen)
	}
}
