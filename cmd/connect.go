package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"termgrid/pkg/config"
	"termgrid/pkg/serial"
	"termgrid/pkg/terminal"
)

var (
	connectFlags  terminalFlags
	connectRecord recordFlags
	baudRate      int
	dataBits      int
	stopBits      int
	parity        string
	timeout       time.Duration
	connectFrame  time.Duration
)

// newConnectCmd builds the connect command
func newConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect <port|profile>",
		Short: "Show a serial port in a live terminal grid",
		Long: `Open a serial port and show what the device sends in a terminal grid.

You can specify either:
  - A port name (e.g., COM3, /dev/ttyUSB0) with optional parameters
  - A saved profile that carries serial settings

Examples:
  # Connect to /dev/ttyUSB0 at 115200 8N1
  termgrid connect /dev/ttyUSB0

  # An old device speaking code page 437 at 9600 baud
  termgrid connect COM3 -b 9600 --charset cp437

  # Connect using a saved profile
  termgrid connect mydevice`,
		Args:    cobra.ExactArgs(1),
		Aliases: []string{"open"},
		RunE:    runConnect,
	}

	connectFlags.register(cmd)
	connectRecord.register(cmd)
	cmd.Flags().IntVarP(&baudRate, "baud", "b", 115200, "baud rate")
	cmd.Flags().IntVarP(&dataBits, "data", "d", 8, "data bits (5, 6, 7, or 8)")
	cmd.Flags().IntVarP(&stopBits, "stop", "s", 1, "stop bits (1 or 2)")
	cmd.Flags().StringVar(&parity, "parity", "none", "parity (none, odd, even, mark, space)")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", serial.DefaultConfig().Timeout, "read timeout")
	cmd.Flags().DurationVar(&connectFrame, "frame-interval", terminal.DefaultFrameInterval, "minimum time between redraws")
	return cmd
}

func runConnect(cmd *cobra.Command, args []string) error {
	target := args[0]

	var serialConfig serial.SerialConfig
	profileName := connectFlags.profile
	if isSerialPort(target) {
		serialConfig = serial.SerialConfig{
			Port:     target,
			BaudRate: baudRate,
			DataBits: dataBits,
			StopBits: stopBits,
			Parity:   parity,
			Timeout:  timeout,
		}
		if err := serialConfig.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	} else {
		if profileName == "" {
			profileName = target
		}
		profile, err := loadSerialProfile(target)
		if err != nil {
			printConnectHelp(cmd, target)
			return err
		}
		serialConfig = *profile.Serial
	}

	opts, dec, _, err := connectFlags.resolveProfile(cmd, profileName)
	if err != nil {
		return err
	}

	verbosef(cmd, "Connecting to port %s...", serialConfig.Port)
	verbosef(cmd, "  Settings: %d %d-%s-%d", serialConfig.BaudRate, serialConfig.DataBits,
		strings.ToUpper(serialConfig.Parity[:1]), serialConfig.StopBits)

	port, err := serial.Open(serialConfig)
	if err != nil {
		printOpenHints(cmd, err)
		return err
	}
	defer port.Close()

	return runViewer(cmd, port, serialConfig.Port, opts, dec, &connectRecord, false, connectFrame)
}

// loadSerialProfile loads a profile and checks it carries serial settings
func loadSerialProfile(name string) (config.Profile, error) {
	store, err := profileStore()
	if err != nil {
		return config.Profile{}, err
	}
	profile, err := store.Load(name)
	if err != nil {
		return config.Profile{}, fmt.Errorf("'%s' is neither a serial port nor a saved profile: %w", name, err)
	}
	if profile.Serial == nil {
		return config.Profile{}, fmt.Errorf("profile '%s' has no serial settings", name)
	}
	return profile, nil
}

func isSerialPort(name string) bool {
	lower := strings.ToLower(name)

	// Windows COM ports
	if strings.HasPrefix(lower, "com") {
		return true
	}

	// Unix-like serial devices
	if strings.HasPrefix(name, "/dev/") {
		return true
	}

	ports, err := serial.ListPorts()
	if err == nil {
		for _, port := range ports {
			if strings.EqualFold(port, name) {
				return true
			}
		}
	}

	return false
}

// printConnectHelp lists what could have been meant
func printConnectHelp(cmd *cobra.Command, target string) {
	w := cmd.ErrOrStderr()

	fmt.Fprintf(w, "\nAvailable ports:\n")
	ports, _ := serial.ListPorts()
	if len(ports) == 0 {
		fmt.Fprintf(w, "  No serial ports found.\n")
	}
	for _, p := range ports {
		fmt.Fprintf(w, "  - %s\n", p)
	}

	store, err := profileStore()
	if err != nil {
		return
	}
	profiles, _ := store.List()
	var withSerial []config.Profile
	for _, p := range profiles {
		if p.Serial != nil {
			withSerial = append(withSerial, p)
		}
	}
	if len(withSerial) > 0 {
		fmt.Fprintf(w, "\nProfiles with serial settings:\n")
		for _, p := range withSerial {
			fmt.Fprintf(w, "  - %s (port: %s)\n", p.Name, p.Serial.Port)
		}
	}
}

// printOpenHints explains common reasons a port does not open
func printOpenHints(cmd *cobra.Command, err error) {
	w := cmd.ErrOrStderr()
	errStr := strings.ToLower(err.Error())

	fmt.Fprintf(w, "\nPossible solutions:\n")
	if strings.Contains(errStr, "permission") || strings.Contains(errStr, "access") {
		fmt.Fprintf(w, "  - Check if you have permission to access the port\n")
		fmt.Fprintf(w, "  - On Linux: Add your user to the 'dialout' group: sudo usermod -a -G dialout $USER\n")
	}
	if strings.Contains(errStr, "busy") || strings.Contains(errStr, "use") {
		fmt.Fprintf(w, "  - The port may be in use by another application\n")
	}
	if strings.Contains(errStr, "not found") || strings.Contains(errStr, "no such") {
		fmt.Fprintf(w, "  - The specified port does not exist\n")
	}
	fmt.Fprintf(w, "  - Use 'termgrid ports' to see available ports\n")
}
