// internal/transport/transport.go
package transport

import (
	"context"
	"errors"
	"time"

	"instrument-service/internal/model"
)

// ErrClosed indicates that an operation was attempted on a closed connection.
// In-flight reads also fail when the connection is closed underneath them;
// closing the transport is the documented way to abort a stuck instrument
// exchange.
var ErrClosed = errors.New("connection closed")

// Connection is the byte-oriented collaborator instruments talk through.
// Read returns exactly n bytes or an error; a framed instrument protocol
// never wants a short read.
type Connection interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Data communication
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context, n int) ([]byte, error)

	// Transport information
	GetConnectionType() model.ConnectionType
}

// Stats provides transport-level statistics
type Stats struct {
	BytesWritten int64     `json:"bytes_written"`
	BytesRead    int64     `json:"bytes_read"`
	ErrorCount   int64     `json:"error_count"`
	LastActivity time.Time `json:"last_activity"`
	IsConnected  bool      `json:"is_connected"`
}
