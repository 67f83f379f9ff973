// internal/driver/spd3303x/status.go
package spd3303x

import (
	"fmt"
	"strconv"
	"strings"
)

// SystemStatus is the supply's 10-bit status field, decoded from the hex
// string returned by system:status?. Bit meanings follow the SPD3303X
// manual; only the output-state bits are interpreted here.
type SystemStatus uint16

// Output-state bit positions, counted from the right
const (
	ch1OutputBit = 4 // 5th digit from the right
	ch2OutputBit = 5 // 6th digit from the right
)

// ParseSystemStatus decodes the instrument's hex status reply
func ParseSystemStatus(reply string) (SystemStatus, error) {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")

	value, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("malformed status reply %q: %w", reply, err)
	}
	return SystemStatus(value & 0x3FF), nil
}

// ChannelEnabled reports whether the channel's output is on
func (s SystemStatus) ChannelEnabled(channel int) (bool, error) {
	switch channel {
	case 1:
		return s&(1<<ch1OutputBit) != 0, nil
	case 2:
		return s&(1<<ch2OutputBit) != 0, nil
	default:
		return false, fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
}

// String renders the status as the manual's 10-digit binary form
func (s SystemStatus) String() string {
	return fmt.Sprintf("%010b", uint16(s))
}
