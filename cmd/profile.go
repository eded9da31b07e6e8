package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"termgrid/pkg/config"
	"termgrid/pkg/serial"
)

var (
	// Profile command flags
	profileCols        int
	profileRows        int
	profileScrollback  int
	profileCharset     string
	profileDescription string
	profilePort        string
	profileBaudRate    int
	profileDataBits    int
	profileStopBits    int
	profileParity      string
	profileTimeout     time.Duration
)

// newProfileCmd builds the profile command and its subcommands
func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage saved terminal profiles",
		Long: `Manage saved terminal profiles.

A profile names a grid size, scrollback depth, source charset and, for
serial devices, the port settings. Use it with --profile or as the target
of 'termgrid connect'.`,
		Aliases: []string{"profiles"},
	}

	cmd.AddCommand(newProfileSaveCmd())
	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Short:   "List all saved profiles",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE:    runProfileList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "delete <name>",
		Short:   "Delete a saved profile",
		Aliases: []string{"rm", "remove"},
		Args:    cobra.ExactArgs(1),
		RunE:    runProfileDelete,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Show details of a saved profile",
		Args:  cobra.ExactArgs(1),
		RunE:  runProfileShow,
	})
	return cmd
}

// newProfileSaveCmd builds the command that saves a profile
func newProfileSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save a terminal profile",
		Long: `Save a terminal profile with a given name.

Example:
  termgrid profile save wide --cols 160 --rows 50
  termgrid profile save mydevice --port /dev/ttyUSB0 -b 9600 --charset cp437`,
		Args: cobra.ExactArgs(1),
		RunE: runProfileSave,
	}

	defaults := serial.DefaultConfig()
	f := cmd.Flags()
	f.IntVar(&profileCols, "cols", 0, "grid width (0 follows the screen)")
	f.IntVar(&profileRows, "rows", 0, "grid height (0 follows the screen)")
	f.IntVar(&profileScrollback, "scrollback", 0, "scrollback lines (0 for the default)")
	f.StringVar(&profileCharset, "charset", "", "source charset")
	f.StringVar(&profileDescription, "description", "", "free text shown by 'profile show'")
	f.StringVarP(&profilePort, "port", "p", "", "serial port")
	f.IntVarP(&profileBaudRate, "baud", "b", defaults.BaudRate, "baud rate")
	f.IntVarP(&profileDataBits, "data", "d", defaults.DataBits, "data bits")
	f.IntVarP(&profileStopBits, "stop", "s", defaults.StopBits, "stop bits")
	f.StringVar(&profileParity, "parity", defaults.Parity, "parity")
	f.DurationVarP(&profileTimeout, "timeout", "t", defaults.Timeout, "read timeout")
	return cmd
}

func runProfileSave(cmd *cobra.Command, args []string) error {
	profile := config.Profile{
		Name:        args[0],
		Cols:        profileCols,
		Rows:        profileRows,
		Scrollback:  profileScrollback,
		Charset:     profileCharset,
		Description: profileDescription,
	}

	if profilePort != "" {
		profile.Serial = &serial.SerialConfig{
			Port:     profilePort,
			BaudRate: profileBaudRate,
			DataBits: profileDataBits,
			StopBits: profileStopBits,
			Parity:   profileParity,
			Timeout:  profileTimeout,
		}
	}

	store, err := profileStore()
	if err != nil {
		return err
	}
	if err := store.Save(profile); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Profile '%s' saved successfully.\n", profile.Name)
	fmt.Fprintf(out, "  Grid: %s\n", gridSize(profile))
	if profile.Serial != nil {
		fmt.Fprintf(out, "  Port: %s at %d baud\n", profile.Serial.Port, profile.Serial.BaudRate)
	}
	return nil
}

func runProfileList(cmd *cobra.Command, args []string) error {
	store, err := profileStore()
	if err != nil {
		return err
	}
	profiles, err := store.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(profiles) == 0 {
		fmt.Fprintln(out, "No saved profiles found.")
		fmt.Fprintln(out, "\nUse 'termgrid profile save <name>' to save a profile.")
		return nil
	}

	fmt.Fprintf(out, "Found %d saved profile(s):\n\n", len(profiles))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tGRID\tCHARSET\tPORT\tLAST USED")
	fmt.Fprintln(w, "----\t----\t-------\t----\t---------")

	for _, p := range profiles {
		port := "-"
		if p.Serial != nil {
			port = p.Serial.Port
		}
		charset := p.Charset
		if charset == "" {
			charset = "UTF-8"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.Name,
			gridSize(p),
			charset,
			port,
			p.LastUsedAt.Format("2006-01-02 15:04"))
	}

	return w.Flush()
}

func runProfileDelete(cmd *cobra.Command, args []string) error {
	store, err := profileStore()
	if err != nil {
		return err
	}
	if err := store.Delete(args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' deleted successfully.\n", args[0])
	return nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	store, err := profileStore()
	if err != nil {
		return err
	}
	p, err := store.Load(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Profile: %s\n", p.Name)
	fmt.Fprintln(out, strings.Repeat("=", len(p.Name)+9))
	if p.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", p.Description)
	}
	fmt.Fprintf(out, "Grid:        %s\n", gridSize(p))
	fmt.Fprintf(out, "Scrollback:  %s\n", orDefault(p.Scrollback))
	fmt.Fprintf(out, "Charset:     %s\n", orText(p.Charset, "UTF-8"))
	if p.Serial != nil {
		fmt.Fprintf(out, "Port:        %s\n", p.Serial.Port)
		fmt.Fprintf(out, "Settings:    %d %d-%s-%d\n", p.Serial.BaudRate, p.Serial.DataBits,
			strings.ToUpper(p.Serial.Parity[:1]), p.Serial.StopBits)
		fmt.Fprintf(out, "Timeout:     %v\n", p.Serial.Timeout)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Created:     %s\n", p.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Last Used:   %s\n", p.LastUsedAt.Format(time.RFC3339))
	return nil
}

// gridSize formats the profile grid, with "screen" for sizes that follow it
func gridSize(p config.Profile) string {
	if p.Cols == 0 && p.Rows == 0 {
		return "screen"
	}
	return fmt.Sprintf("%sx%s", orDefault(p.Cols), orDefault(p.Rows))
}

func orDefault(n int) string {
	if n == 0 {
		return "default"
	}
	return fmt.Sprint(n)
}

func orText(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
