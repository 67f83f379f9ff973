// internal/driver/spd3303x/errors.go
package spd3303x

import "errors"

var (
	// ErrAboveHardwareMax indicates a limit request beyond what the
	// supply can physically output, or a non-positive limit.
	ErrAboveHardwareMax = errors.New("limit not allowed by the power supply hardware")

	// ErrBelowLiveSetpoint indicates a limit request below the channel's
	// current live set-point; lowering it would strand the output.
	ErrBelowLiveSetpoint = errors.New("limit is below the channel's live set-point")

	// ErrAboveChannelLimit is the soft rejection of a set-point above the
	// channel's software ceiling. The supply has no built-in limit, so the
	// ceiling is enforced here; the request is dropped and prior state kept.
	ErrAboveChannelLimit = errors.New("set-point exceeds the channel limit")

	// ErrInvalidChannel indicates a channel number outside the supply
	ErrInvalidChannel = errors.New("channel not found")
)
