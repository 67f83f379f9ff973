// internal/transport/text.go
package transport

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const defaultReplySize = 4096

// availableReader is implemented by connections that can return a
// variable-length reply in one read.
type availableReader interface {
	ReadAvailable(ctx context.Context, maxBytes int) ([]byte, error)
}

// TextSession is the text-oriented collaborator for ASCII command
// instruments. Replies are UTF-8 and newline-insensitive; a settling
// delay is imposed after every command because the instrument drops
// commands that arrive back to back.
type TextSession struct {
	conn        Connection
	settleDelay time.Duration
}

// NewTextSession creates a text session over an open connection
func NewTextSession(conn Connection, settleDelay time.Duration) *TextSession {
	if settleDelay <= 0 {
		settleDelay = 300 * time.Millisecond
	}
	return &TextSession{
		conn:        conn,
		settleDelay: settleDelay,
	}
}

// Send transmits a command that produces no reply
func (ts *TextSession) Send(ctx context.Context, cmd string) error {
	if err := ts.conn.Write(ctx, []byte(cmd)); err != nil {
		return err
	}
	return ts.settle(ctx)
}

// Query transmits a command and returns the instrument's reply with
// surrounding whitespace removed
func (ts *TextSession) Query(ctx context.Context, cmd string) (string, error) {
	if err := ts.conn.Write(ctx, []byte(cmd)); err != nil {
		return "", err
	}

	// Replies are variable length, so an exact-length Read would block
	// until the buffer fills. Only connections that can hand back what
	// is available qualify for queries.
	ar, ok := ts.conn.(availableReader)
	if !ok {
		return "", fmt.Errorf("query %q failed: connection does not support variable-length reads", cmd)
	}

	reply, err := ar.ReadAvailable(ctx, defaultReplySize)
	if err != nil {
		return "", fmt.Errorf("query %q failed: %w", cmd, err)
	}

	if err := ts.settle(ctx); err != nil {
		return "", err
	}
	return strings.TrimSpace(string(reply)), nil
}

func (ts *TextSession) settle(ctx context.Context) error {
	timer := time.NewTimer(ts.settleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
