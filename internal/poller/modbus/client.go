// internal/poller/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/modbus2mqtt/internal/rtu"
)

// Client is a blocking Modbus RTU master for one-shot reads.
// It owns the serial port; do not run it on a line the poller is using.
type Client struct {
	mu      sync.Mutex
	handler *modbus.RTUClientHandler
	client  modbus.Client
}

// Config is minimal transport config.
type Config struct {
	Device   string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
	Slave    uint8
	Timeout  time.Duration
}

// New opens the serial line.
func New(cfg Config) (*Client, error) {
	if cfg.Device == "" {
		return nil, errors.New("modbus client: device required")
	}

	h := modbus.NewRTUClientHandler(cfg.Device)
	h.BaudRate = cfg.BaudRate
	h.DataBits = cfg.DataBits
	h.StopBits = cfg.StopBits
	h.Parity = cfg.Parity
	h.SlaveId = cfg.Slave
	h.Timeout = cfg.Timeout

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("modbus client: open %s: %w", cfg.Device, err)
	}

	return &Client{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

// Close closes the serial line.
func (c *Client) Close() error {
	if c == nil || c.handler == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// ReadRegisters reads qty registers with function code fc (0x03 or 0x04)
// and returns the raw register bytes.
func (c *Client) ReadRegisters(fc uint8, addr, qty uint16) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("modbus client: not connected")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		b   []byte
		err error
	)
	switch fc {
	case rtu.FuncReadHoldingRegisters:
		b, err = c.client.ReadHoldingRegisters(addr, qty)
	case rtu.FuncReadInputRegisters:
		b, err = c.client.ReadInputRegisters(addr, qty)
	default:
		return nil, fmt.Errorf("modbus client: unsupported fc %d", fc)
	}
	if err != nil {
		return nil, err
	}
	if len(b) != int(qty)*2 {
		return nil, fmt.Errorf("modbus client: got %d bytes, want %d", len(b), int(qty)*2)
	}
	return b, nil
}

// ReadValue reads one register pair as a Value.
func (c *Client) ReadValue(fc uint8, addr uint16) (rtu.Value, error) {
	b, err := c.ReadRegisters(fc, addr, 2)
	if err != nil {
		return rtu.Value{}, err
	}
	v := rtu.Value{Register: addr}
	copy(v.Raw[:], b)
	return v, nil
}
