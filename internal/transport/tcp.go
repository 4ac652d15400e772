// internal/transport/tcp.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// Transport errors. Either one means the session must reset and reconnect.
var (
	ErrClosed       = errors.New("transport: connection closed")
	ErrShortWrite   = errors.New("transport: short write")
	ErrNotConnected = errors.New("transport: not connected")
)

// TCPConfig holds the broker address and per-operation timeouts.
type TCPConfig struct {
	Address      string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// TCPClient is a reconnectable TCP stream.
// Send and Receive may be called from different goroutines.
type TCPClient struct {
	cfg TCPConfig

	mu   sync.Mutex
	conn net.Conn
}

func NewTCPClient(cfg TCPConfig) *TCPClient {
	return &TCPClient{cfg: cfg}
}

// Connect dials the broker. An existing connection is closed first.
func (c *TCPClient) Connect(ctx context.Context) error {
	_ = c.Close()

	d := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.cfg.Address)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", c.cfg.Address, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

func (c *TCPClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// LocalIP returns the local address of the current connection.
func (c *TCPClient) LocalIP() net.IP {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	if a, ok := c.conn.LocalAddr().(*net.TCPAddr); ok {
		return a.IP
	}
	return nil
}

// Send writes b in full. Any failure closes the connection.
func (c *TCPClient) Send(b []byte) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}

	if c.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}

	n, err := conn.Write(b)
	if err != nil {
		c.drop(conn)
		return fmt.Errorf("transport: send: %w", err)
	}
	if n != len(b) {
		c.drop(conn)
		return ErrShortWrite
	}
	return nil
}

// Receive reads into buf. It returns (0, nil) when the read timeout
// elapses with nothing received and ErrClosed when the peer closed.
func (c *TCPClient) Receive(buf []byte) (int, error) {
	conn := c.current()
	if conn == nil {
		return 0, ErrNotConnected
	}

	if c.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}

	n, err := conn.Read(buf)
	if n > 0 {
		return n, nil
	}
	if err == nil {
		return 0, nil
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 0, nil
	}

	c.drop(conn)
	if errors.Is(err, io.EOF) {
		return 0, ErrClosed
	}
	return 0, fmt.Errorf("transport: receive: %w", err)
}

// Close drops the current connection, if any.
func (c *TCPClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *TCPClient) current() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// drop closes conn only if it is still the current connection.
func (c *TCPClient) drop(conn net.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}
