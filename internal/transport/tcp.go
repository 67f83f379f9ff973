// internal/transport/tcp.go
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"instrument-service/internal/model"
)

// TCPConfig represents TCP connection configuration
type TCPConfig struct {
	Host         string        `json:"host" mapstructure:"host"`
	Port         int           `json:"port" mapstructure:"port"`
	KeepAlive    bool          `json:"keep_alive" mapstructure:"keep_alive"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
}

// TCPConnection implements Connection for socket-attached instruments
type TCPConnection struct {
	config *TCPConfig
	conn   net.Conn
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool
	stats  *Stats
}

// NewTCPConnection creates a new TCP connection
func NewTCPConnection(config *TCPConfig, logger *zap.Logger) Connection {
	return &TCPConnection{
		config: config,
		logger: logger.With(
			zap.String("transport", "tcp"),
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		),
		stats: &Stats{},
	}
}

// Open dials the instrument
func (tc *TCPConnection) Open(ctx context.Context) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if tc.isOpen {
		return nil
	}

	tc.logger.Info("Opening TCP connection")

	dialer := &net.Dialer{
		Timeout: tc.config.Timeout,
	}
	if tc.config.KeepAlive {
		dialer.KeepAlive = 30 * time.Second
	}

	addr := net.JoinHostPort(tc.config.Host, fmt.Sprintf("%d", tc.config.Port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		tc.logger.Error("Failed to open TCP connection", zap.Error(err))
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	tc.conn = conn
	tc.isOpen = true
	tc.stats.IsConnected = true
	tc.stats.LastActivity = time.Now()

	tc.logger.Info("TCP connection established")
	return nil
}

// Close closes the connection. A blocked Read on the peer side of this
// transport fails immediately, which is how stuck exchanges are aborted.
func (tc *TCPConnection) Close() error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.conn == nil {
		return nil
	}

	if err := tc.conn.Close(); err != nil {
		tc.logger.Error("Failed to close TCP connection", zap.Error(err))
		return fmt.Errorf("failed to close connection: %w", err)
	}

	tc.conn = nil
	tc.isOpen = false
	tc.stats.IsConnected = false

	tc.logger.Info("TCP connection closed")
	return nil
}

// IsOpen returns whether the connection is established
func (tc *TCPConnection) IsOpen() bool {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.isOpen && tc.conn != nil
}

// Write writes data to the socket
func (tc *TCPConnection) Write(ctx context.Context, data []byte) error {
	tc.mutex.RLock()
	conn := tc.conn
	open := tc.isOpen
	tc.mutex.RUnlock()

	if !open || conn == nil {
		return ErrClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if tc.config.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(tc.config.WriteTimeout))
	}

	n, err := conn.Write(data)
	if err != nil {
		tc.stats.ErrorCount++
		tc.logger.Error("TCP write failed", zap.Error(err))
		return fmt.Errorf("failed to write to connection: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	tc.stats.BytesWritten += int64(len(data))
	tc.stats.LastActivity = time.Now()

	tc.logger.Debug("TCP write completed", zap.Int("bytes", len(data)))
	return nil
}

// Read reads exactly n bytes from the socket
func (tc *TCPConnection) Read(ctx context.Context, n int) ([]byte, error) {
	tc.mutex.RLock()
	conn := tc.conn
	open := tc.isOpen
	tc.mutex.RUnlock()

	if !open || conn == nil {
		return nil, ErrClosed
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else if tc.config.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(tc.config.ReadTimeout))
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		tc.stats.ErrorCount++
		return nil, fmt.Errorf("failed to read from connection: %w", err)
	}

	tc.stats.BytesRead += int64(n)
	tc.stats.LastActivity = time.Now()
	return buf, nil
}

// ReadAvailable reads whatever the instrument has buffered, up to maxBytes.
// ASCII instruments reply with variable-length lines, so the text session
// uses this instead of the exact-length Read.
func (tc *TCPConnection) ReadAvailable(ctx context.Context, maxBytes int) ([]byte, error) {
	tc.mutex.RLock()
	conn := tc.conn
	open := tc.isOpen
	tc.mutex.RUnlock()

	if !open || conn == nil {
		return nil, ErrClosed
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else if tc.config.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(tc.config.ReadTimeout))
	}

	buf := make([]byte, maxBytes)
	n, err := conn.Read(buf)
	if err != nil {
		tc.stats.ErrorCount++
		return nil, fmt.Errorf("failed to read from connection: %w", err)
	}

	tc.stats.BytesRead += int64(n)
	tc.stats.LastActivity = time.Now()
	return buf[:n], nil
}

// GetConnectionType returns the transport type
func (tc *TCPConnection) GetConnectionType() model.ConnectionType {
	return model.ConnectionTypeTCP
}

// GetStats returns a copy of the transport statistics
func (tc *TCPConnection) GetStats() Stats {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return *tc.stats
}
