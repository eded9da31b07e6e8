// Package serial provides the byte sources that feed a terminal
package serial

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

var (
	validBaudRates = []int{9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600}
	validParity    = []string{"none", "odd", "even", "mark", "space"}
)

// SerialConfig defines the configuration for serial port communication
type SerialConfig struct {
	Port     string        `json:"port"`
	BaudRate int           `json:"baud_rate"`
	DataBits int           `json:"data_bits"`
	StopBits int           `json:"stop_bits"`
	Parity   string        `json:"parity"`
	Timeout  time.Duration `json:"timeout"`
}

// Validate checks if the serial configuration is valid
func (c SerialConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}

	if !slices.Contains(validBaudRates, c.BaudRate) {
		return fmt.Errorf("invalid baud rate: %d", c.BaudRate)
	}

	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("data bits must be between 5 and 8, got: %d", c.DataBits)
	}

	if c.StopBits < 1 || c.StopBits > 2 {
		return fmt.Errorf("stop bits must be 1 or 2, got: %d", c.StopBits)
	}

	if !slices.Contains(validParity, c.Parity) {
		return fmt.Errorf("invalid parity: %s", c.Parity)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	return nil
}

// DefaultConfig returns 115200 8N1 with a short read timeout so readers can
// notice cancellation
func DefaultConfig() SerialConfig {
	return SerialConfig{
		Port:     "",
		BaudRate: 115200,
		DataBits: 8,
		StopBits: 1,
		Parity:   "none",
		Timeout:  200 * time.Millisecond,
	}
}

// SerialError represents a serial port specific error
type SerialError struct {
	Operation string
	Port      string
	Cause     error
}

// Error implements the error interface
func (e *SerialError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("serial %s operation failed on port %s: %v", e.Operation, e.Port, e.Cause)
	}
	return fmt.Sprintf("serial %s operation failed on port %s", e.Operation, e.Port)
}

// Unwrap returns the underlying cause
func (e *SerialError) Unwrap() error {
	return e.Cause
}

// Port is an open serial port used as a terminal byte source
type Port struct {
	port   serial.Port
	config SerialConfig
	mu     sync.Mutex
	closed bool
}

// openPort is replaced in tests
var openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
	return serial.Open(name, mode)
}

// Open opens the serial port described by config
func Open(config SerialConfig) (*Port, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: config.DataBits,
		StopBits: convertStopBits(config.StopBits),
		Parity:   convertParity(config.Parity),
	}

	p, err := openPort(config.Port, mode)
	if err != nil {
		return nil, &SerialError{Operation: "open", Port: config.Port, Cause: err}
	}

	if config.Timeout > 0 {
		if err := p.SetReadTimeout(config.Timeout); err != nil {
			p.Close()
			return nil, &SerialError{Operation: "set read timeout", Port: config.Port, Cause: err}
		}
	}

	return &Port{port: p, config: config}, nil
}

// Read reads from the port. A read timeout yields (0, nil).
func (p *Port) Read(buffer []byte) (int, error) {
	n, err := p.port.Read(buffer)
	if err != nil {
		return n, &SerialError{Operation: "read", Port: p.config.Port, Cause: err}
	}
	return n, nil
}

// Close closes the port; later calls are no-ops
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.port.Close(); err != nil {
		return &SerialError{Operation: "close", Port: p.config.Port, Cause: err}
	}
	return nil
}

// Config returns the configuration the port was opened with
func (p *Port) Config() SerialConfig {
	return p.config
}

// convertStopBits converts our stop bits format to go.bug.st/serial format
func convertStopBits(stopBits int) serial.StopBits {
	switch stopBits {
	case 2:
		return serial.TwoStopBits
	default:
		return serial.OneStopBit
	}
}

// convertParity converts our parity format to go.bug.st/serial format
func convertParity(parity string) serial.Parity {
	switch parity {
	case "odd":
		return serial.OddParity
	case "even":
		return serial.EvenParity
	case "mark":
		return serial.MarkParity
	case "space":
		return serial.SpaceParity
	default:
		return serial.NoParity
	}
}

// ListPorts returns the names of the serial ports on the system
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get ports list: %w", err)
	}
	return ports, nil
}

// PortInfo describes a serial port found on the system
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// GetDetailedPortsList returns the serial ports with USB details where the
// platform reports them
func GetDetailedPortsList() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get detailed ports list: %w", err)
	}

	infos := make([]PortInfo, 0, len(details))
	for _, d := range details {
		infos = append(infos, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return infos, nil
}
