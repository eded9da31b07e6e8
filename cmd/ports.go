package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"termgrid/pkg/serial"
)

var (
	portsDetails bool
	portsFormat  string

	// listPorts is replaced in tests
	listPorts = serial.GetDetailedPortsList
)

// newPortsCmd builds the ports command
func newPortsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List available serial ports",
		Long: `List all available serial ports on the system.

On different platforms:
  - Windows: Lists COM ports
  - Linux: Lists /dev/tty* devices
  - macOS: Lists /dev/cu.* and /dev/tty.* devices`,
		Aliases: []string{"list", "ls"},
		Args:    cobra.NoArgs,
		RunE:    runPorts,
	}

	cmd.Flags().BoolVarP(&portsDetails, "details", "d", false, "show detailed port information")
	cmd.Flags().StringVarP(&portsFormat, "format", "f", "table", "output format (table, csv, json)")
	return cmd
}

func runPorts(cmd *cobra.Command, args []string) error {
	portInfos, err := listPorts()
	if err != nil {
		return fmt.Errorf("failed to list ports: %w", err)
	}

	out := cmd.OutOrStdout()
	switch portsFormat {
	case "csv":
		printPortsCSV(out, portInfos)
	case "json":
		return printPortsJSON(out, portInfos)
	case "table":
		printPortsTable(out, portInfos)
	default:
		return fmt.Errorf("unsupported format: %s", portsFormat)
	}
	return nil
}

func printPortsTable(w io.Writer, portInfos []serial.PortInfo) {
	if len(portInfos) == 0 {
		fmt.Fprintln(w, "No serial ports found.")
		return
	}

	fmt.Fprintf(w, "Found %d serial port(s):\n", len(portInfos))
	for _, portInfo := range portInfos {
		fmt.Fprintf(w, "  %s", portInfo.Name)

		if portsDetails && portInfo.IsUSB {
			fmt.Fprintf(w, " [USB]")
			if portInfo.VID != "" || portInfo.PID != "" {
				fmt.Fprintf(w, " VID:%s PID:%s", portInfo.VID, portInfo.PID)
			}
			if portInfo.Product != "" {
				fmt.Fprintf(w, " - %s", portInfo.Product)
			}
			if portInfo.SerialNumber != "" {
				fmt.Fprintf(w, " (SN: %s)", portInfo.SerialNumber)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "\nUse 'termgrid connect <port>' to connect.")
}

func printPortsCSV(w io.Writer, portInfos []serial.PortInfo) {
	if !portsDetails {
		fmt.Fprintln(w, "port")
		for _, portInfo := range portInfos {
			fmt.Fprintln(w, portInfo.Name)
		}
		return
	}

	fmt.Fprintln(w, "port,is_usb,vid,pid,product,serial_number")
	for _, portInfo := range portInfos {
		fmt.Fprintf(w, "%s,%t,%s,%s,%s,%s\n",
			portInfo.Name,
			portInfo.IsUSB,
			portInfo.VID,
			portInfo.PID,
			portInfo.Product,
			portInfo.SerialNumber)
	}
}

func printPortsJSON(w io.Writer, portInfos []serial.PortInfo) error {
	var v interface{} = portInfos
	if !portsDetails {
		names := make([]string, 0, len(portInfos))
		for _, portInfo := range portInfos {
			names = append(names, portInfo.Name)
		}
		v = names
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ports: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
