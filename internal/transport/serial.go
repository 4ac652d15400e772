// internal/transport/serial.go
package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/serial"
)

// SerialConfig is the UART setup of one RS-485 line.
type SerialConfig struct {
	Device      string
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      string // N, E or O
	ReadTimeout time.Duration
}

// Serial is a UART port whose reads return (0, nil) on timeout.
type Serial struct {
	port serial.Port
	name string
}

// OpenSerial opens the port described by cfg.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.Device == "" {
		return nil, errors.New("transport: serial device required")
	}

	p, err := serial.Open(&serial.Config{
		Address:  cfg.Device,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Device, err)
	}

	return &Serial{port: p, name: cfg.Device}, nil
}

func (s *Serial) Name() string { return s.name }

// Read reads whatever bytes arrived before the port timeout.
func (s *Serial) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if errors.Is(err, serial.ErrTimeout) {
		return n, nil
	}
	return n, err
}

// Write writes the whole of p or fails.
func (s *Serial) Write(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil {
		return n, err
	}
	if n != len(p) {
		return n, ErrShortWrite
	}
	return n, nil
}

func (s *Serial) Close() error {
	return s.port.Close()
}
