package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"termgrid/pkg/app"
	"termgrid/pkg/config"
	"termgrid/pkg/serial"
	"termgrid/pkg/terminal"
)

var (
	// Root command flags
	verbose   bool
	debugLog  string
	configDir string

	debugLogger *app.FileLogger

	// Root command
	rootCmd = newRootCmd()
)

// newRootCmd builds the command tree. Flags bind to the package variables, so
// building a tree also puts them back to their defaults.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "termgrid",
		Short: "A character-cell terminal grid for logs, files and serial ports",
		Long: `termgrid feeds a byte stream into a fixed-size character grid with
line wrapping, scrolling and scrollback, then prints or shows the result.`,
		Version:            "1.0.0",
		PersistentPreRunE:  openDebugLog,
		PersistentPostRunE: closeDebugLog,
		RunE:               runRoot,
		SilenceUsage:       true,
		DisableAutoGenTag:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	// Persistent flags (available to all subcommands)
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&debugLog, "debug-log", "", "write timestamped debug lines to this file")
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "profile directory (default: user config dir)")

	// Add subcommands
	cmd.AddCommand(newReplayCmd())
	cmd.AddCommand(newViewCmd())
	cmd.AddCommand(newConnectCmd())
	cmd.AddCommand(newPortsCmd())
	cmd.AddCommand(newProfileCmd())
	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runRoot shows help when no subcommand is given
func runRoot(cmd *cobra.Command, args []string) error {
	return cmd.Help()
}

func openDebugLog(cmd *cobra.Command, args []string) error {
	if debugLog == "" {
		return nil
	}
	logger, err := app.NewFileLogger(debugLog)
	if err != nil {
		return err
	}
	debugLogger = logger
	debugLogger.Debugf("termgrid %s %v", cmd.Name(), args)
	return nil
}

func closeDebugLog(cmd *cobra.Command, args []string) error {
	if debugLogger == nil {
		return nil
	}
	err := debugLogger.Close()
	debugLogger = nil
	return err
}

// logger returns the debug logger, or nil when none is configured
func logger() terminal.Logger {
	if debugLogger == nil {
		return nil
	}
	return debugLogger
}

// verbosef prints progress lines when --verbose is set
func verbosef(cmd *cobra.Command, format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
	}
}

// profileStore opens the store in --config-dir or the user config directory
func profileStore() (*config.FileProfileStore, error) {
	dir := configDir
	if dir == "" {
		var err error
		dir, err = config.DefaultDir()
		if err != nil {
			return nil, err
		}
	}
	return config.NewFileProfileStore(dir), nil
}

// terminalFlags are shared by the commands that build a terminal
type terminalFlags struct {
	cols       int
	rows       int
	scrollback int
	charset    string
	profile    string
}

func (f *terminalFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.cols, "cols", 0, "grid width (default 80, or the screen width)")
	cmd.Flags().IntVar(&f.rows, "rows", 0, "grid height (default 24, or the screen height)")
	cmd.Flags().IntVar(&f.scrollback, "scrollback", 0, "scrollback lines (default 1000)")
	cmd.Flags().StringVar(&f.charset, "charset", "", "source charset, e.g. latin1 or cp437 (default UTF-8)")
	cmd.Flags().StringVarP(&f.profile, "profile", "P", "", "start from a saved profile")
}

// resolve merges the --profile profile, if any, with explicitly set flags
func (f *terminalFlags) resolve(cmd *cobra.Command) (terminal.Options, *serial.Decoder, *config.Profile, error) {
	return f.resolveProfile(cmd, f.profile)
}

// resolveProfile merges the named profile with explicitly set flags. Explicit
// flags win.
func (f *terminalFlags) resolveProfile(cmd *cobra.Command, name string) (terminal.Options, *serial.Decoder, *config.Profile, error) {
	var p config.Profile
	var loaded *config.Profile

	if name != "" {
		store, err := profileStore()
		if err != nil {
			return terminal.Options{}, nil, nil, err
		}
		p, err = store.Load(name)
		if err != nil {
			return terminal.Options{}, nil, nil, err
		}
		loaded = &p
		verbosef(cmd, "Using profile '%s'", p.Name)
	}

	if cmd.Flags().Changed("cols") || loaded == nil {
		p.Cols = f.cols
	}
	if cmd.Flags().Changed("rows") || loaded == nil {
		p.Rows = f.rows
	}
	if cmd.Flags().Changed("scrollback") || loaded == nil {
		p.Scrollback = f.scrollback
	}
	if cmd.Flags().Changed("charset") || loaded == nil {
		p.Charset = f.charset
	}

	opts := p.Options()
	if err := opts.Validate(); err != nil {
		return terminal.Options{}, nil, nil, err
	}

	dec, err := serial.NewDecoder(p.Charset)
	if err != nil {
		return terminal.Options{}, nil, nil, err
	}

	opts.Logger = logger()
	return opts, dec, loaded, nil
}
