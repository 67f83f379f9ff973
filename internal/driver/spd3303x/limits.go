// internal/driver/spd3303x/limits.go
package spd3303x

import (
	"fmt"
	"sync"
)

// Reference hardware ceilings of the SPD3303X
const (
	MaxVoltageLimit = 32.0
	MaxCurrentLimit = 3.3
)

// ChannelLimits owns the per-channel software ceilings for set voltage
// and current. The supply has no built-in limit feature, so every
// set-point is checked here before it reaches the wire. Limit changes
// are validated both upward (never beyond the hardware maximum) and
// downward (never below the channel's live set-point).
type ChannelLimits struct {
	mutex      sync.RWMutex
	maxVoltage float64
	maxCurrent float64
	voltage    []float64
	current    []float64
}

// NewChannelLimits creates limits for the given number of channels.
// Missing per-channel values default to the hardware maximum.
func NewChannelLimits(maxVoltage, maxCurrent float64, voltage, current []float64, channels int) (*ChannelLimits, error) {
	if channels < 1 {
		return nil, fmt.Errorf("power supply needs at least one channel")
	}

	l := &ChannelLimits{
		maxVoltage: maxVoltage,
		maxCurrent: maxCurrent,
		voltage:    make([]float64, channels),
		current:    make([]float64, channels),
	}
	for i := 0; i < channels; i++ {
		l.voltage[i] = maxVoltage
		l.current[i] = maxCurrent
		if i < len(voltage) {
			l.voltage[i] = voltage[i]
		}
		if i < len(current) {
			l.current[i] = current[i]
		}
	}

	for i := 0; i < channels; i++ {
		if l.voltage[i] <= 0 || l.voltage[i] > maxVoltage {
			return nil, fmt.Errorf("channel %d voltage limit %.3f: %w", i+1, l.voltage[i], ErrAboveHardwareMax)
		}
		if l.current[i] <= 0 || l.current[i] > maxCurrent {
			return nil, fmt.Errorf("channel %d current limit %.3f: %w", i+1, l.current[i], ErrAboveHardwareMax)
		}
	}

	return l, nil
}

// Channels returns the number of configured channels
func (l *ChannelLimits) Channels() int {
	return len(l.voltage)
}

func (l *ChannelLimits) checkChannel(channel int) error {
	if channel < 1 || channel > len(l.voltage) {
		return fmt.Errorf("%w: %d, supply has %d channels", ErrInvalidChannel, channel, len(l.voltage))
	}
	return nil
}

// VoltageLimit returns the channel's voltage ceiling
func (l *ChannelLimits) VoltageLimit(channel int) (float64, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if err := l.checkChannel(channel); err != nil {
		return 0, err
	}
	return l.voltage[channel-1], nil
}

// CurrentLimit returns the channel's current ceiling
func (l *ChannelLimits) CurrentLimit(channel int) (float64, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if err := l.checkChannel(channel); err != nil {
		return 0, err
	}
	return l.current[channel-1], nil
}

// SetVoltageLimit updates the channel's voltage ceiling. liveSetpoint is
// the channel's current live set voltage; the ceiling must not drop
// below it, and must stay within (0, hardware maximum].
func (l *ChannelLimits) SetVoltageLimit(channel int, volts, liveSetpoint float64) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if err := l.checkChannel(channel); err != nil {
		return err
	}
	if volts > l.maxVoltage || volts <= 0 {
		return fmt.Errorf("voltage limit %.3f V: %w", volts, ErrAboveHardwareMax)
	}
	if volts < liveSetpoint {
		return fmt.Errorf("voltage limit %.3f V below live %.3f V: %w", volts, liveSetpoint, ErrBelowLiveSetpoint)
	}
	l.voltage[channel-1] = volts
	return nil
}

// SetCurrentLimit updates the channel's current ceiling, same rules as
// SetVoltageLimit.
func (l *ChannelLimits) SetCurrentLimit(channel int, amps, liveSetpoint float64) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if err := l.checkChannel(channel); err != nil {
		return err
	}
	if amps > l.maxCurrent || amps <= 0 {
		return fmt.Errorf("current limit %.3f A: %w", amps, ErrAboveHardwareMax)
	}
	if amps < liveSetpoint {
		return fmt.Errorf("current limit %.3f A below live %.3f A: %w", amps, liveSetpoint, ErrBelowLiveSetpoint)
	}
	l.current[channel-1] = amps
	return nil
}

// CheckSetVoltage validates a set-point against the channel ceiling
func (l *ChannelLimits) CheckSetVoltage(channel int, volts float64) error {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if err := l.checkChannel(channel); err != nil {
		return err
	}
	if volts > l.voltage[channel-1] {
		return fmt.Errorf("set voltage %.3f V over %.3f V ceiling: %w", volts, l.voltage[channel-1], ErrAboveChannelLimit)
	}
	return nil
}

// CheckSetCurrent validates a set-point against the channel ceiling
func (l *ChannelLimits) CheckSetCurrent(channel int, amps float64) error {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if err := l.checkChannel(channel); err != nil {
		return err
	}
	if amps > l.current[channel-1] {
		return fmt.Errorf("set current %.3f A over %.3f A ceiling: %w", amps, l.current[channel-1], ErrAboveChannelLimit)
	}
	return nil
}

// RestoreFullRange resets every channel ceiling to the hardware maximum
func (l *ChannelLimits) RestoreFullRange() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	for i := range l.voltage {
		l.voltage[i] = l.maxVoltage
		l.current[i] = l.maxCurrent
	}
}
