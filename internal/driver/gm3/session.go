// internal/driver/gm3/session.go
package gm3

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"instrument-service/internal/transport"
)

// RetryPolicy bounds the acknowledge-retry loop. The zero value retries
// forever with no delay, which is what the instrument's protocol manual
// assumes; production configurations should set MaxAttempts so a dead
// link fails instead of hanging the session.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Session runs the gaussmeter's command/acknowledge exchange over a
// byte transport. A session is single-caller: the protocol has no frame
// sequence numbers, so concurrent exchanges would interleave reads.
type Session struct {
	conn   transport.Connection
	policy RetryPolicy
	logger *zap.Logger

	// errCount counts responses that arrived without the received
	// acknowledgment. Owned by the session, visible for diagnostics.
	errCount atomic.Uint64
}

// NewSession creates a protocol session over an open connection
func NewSession(conn transport.Connection, policy RetryPolicy, logger *zap.Logger) *Session {
	return &Session{
		conn:   conn,
		policy: policy,
		logger: logger.With(zap.String("protocol", "gm3")),
	}
}

// ErrorCount reports how many exchanges ended in a bad acknowledgment
// since the session was created.
func (s *Session) ErrorCount() uint64 {
	return s.errCount.Load()
}

// Execute sends a query command and returns its complete payload. The
// opcode is transmitted repeated into a 6-byte frame, then the fixed-length
// payload and a trailing acknowledgment byte are read. A bad acknowledgment
// restarts the exchange from scratch under the session's retry policy.
// Multi-part commands continue with 0x08 frames, appending payload chunks
// until the instrument acknowledges 0x07.
//
// Execute blocks until the instrument answers or ctx expires; a
// non-responding instrument with an unbounded policy hangs the caller,
// so bounded-latency callers must pass a deadline.
func (s *Session) Execute(ctx context.Context, cmd Command) ([]byte, error) {
	size, ok := responseLengths[cmd]
	if !ok {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, byte(cmd))
	}

	payload, err := s.requestUntilAck(ctx, cmd, size)
	if err != nil {
		return nil, err
	}

	if !multiPart[cmd] {
		return payload, nil
	}

	// Continuation phase: keep requesting until the final acknowledgment.
	for {
		chunk, ack, err := s.exchange(ctx, continueFrame, size)
		if err != nil {
			return nil, err
		}
		payload = append(payload, chunk...)
		if ack == AckDone {
			return payload, nil
		}
	}
}

// SendRaw fires a command frame without waiting for any response
func (s *Session) SendRaw(ctx context.Context, cmd Command) error {
	return s.conn.Write(ctx, cmd.frame())
}

// requestUntilAck repeats the request until the instrument acknowledges
// receipt or the retry policy gives up.
func (s *Session) requestUntilAck(ctx context.Context, cmd Command, size int) ([]byte, error) {
	attempts := 0
	for {
		attempts++

		payload, ack, err := s.exchange(ctx, cmd.frame(), size)
		if err != nil {
			return nil, err
		}
		if ack == AckReceived {
			return payload, nil
		}

		s.errCount.Add(1)
		s.logger.Warn("Command not acknowledged, retrying",
			zap.String("command", cmd.String()),
			zap.Uint8("ack", ack),
			zap.Int("attempt", attempts),
		)

		if s.policy.MaxAttempts > 0 && attempts >= s.policy.MaxAttempts {
			return nil, fmt.Errorf("%s: %w after %d attempts", cmd, ErrRetryExhausted, attempts)
		}
		if s.policy.Delay > 0 {
			timer := time.NewTimer(s.policy.Delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			}
		}
	}
}

// exchange writes one frame and reads the fixed-length payload plus the
// trailing acknowledgment byte.
func (s *Session) exchange(ctx context.Context, frame []byte, size int) ([]byte, byte, error) {
	if err := s.conn.Write(ctx, frame); err != nil {
		return nil, 0, s.wireErr(ctx, err)
	}

	payload, err := s.conn.Read(ctx, size)
	if err != nil {
		return nil, 0, s.wireErr(ctx, err)
	}

	ack, err := s.conn.Read(ctx, 1)
	if err != nil {
		return nil, 0, s.wireErr(ctx, err)
	}

	return payload, ack[0], nil
}

// wireErr maps context expiry onto the protocol timeout error so callers
// can tell an aborted exchange from a broken transport.
func (s *Session) wireErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
	return fmt.Errorf("transport failure: %w", err)
}
