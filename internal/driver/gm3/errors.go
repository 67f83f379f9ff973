// internal/driver/gm3/errors.go
package gm3

import "errors"

var (
	// ErrUnknownCommand indicates a command outside the instrument's
	// closed opcode set. No I/O is performed for such commands.
	ErrUnknownCommand = errors.New("unknown gaussmeter command")

	// ErrRetryExhausted indicates that the instrument never acknowledged
	// a request within the session's retry budget.
	ErrRetryExhausted = errors.New("retry attempts exhausted without acknowledgment")

	// ErrTimeout indicates that a protocol exchange was aborted by the
	// caller's deadline or cancellation.
	ErrTimeout = errors.New("gaussmeter exchange timed out")

	// ErrMisalignedPayload indicates a payload whose length is not a
	// multiple of the 6-byte sample section size.
	ErrMisalignedPayload = errors.New("payload length is not a multiple of 6")

	// ErrUnexpectedVectorLength indicates a streamed vector that does not
	// carry the five expected components.
	ErrUnexpectedVectorLength = errors.New("measurement vector does not have 5 components")
)
