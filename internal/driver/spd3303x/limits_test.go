package spd3303x

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimits(t *testing.T) *ChannelLimits {
	t.Helper()
	limits, err := NewChannelLimits(MaxVoltageLimit, MaxCurrentLimit, nil, nil, 2)
	require.NoError(t, err)
	return limits
}

func TestChannelLimits_SetVoltageLimit(t *testing.T) {
	tests := []struct {
		description  string
		volts        float64
		liveSetpoint float64
		expectedErr  error
	}{
		{
			description: "above hardware maximum",
			volts:       40,
			expectedErr: ErrAboveHardwareMax,
		},
		{
			description: "zero is not a usable limit",
			volts:       0,
			expectedErr: ErrAboveHardwareMax,
		},
		{
			description: "negative limit",
			volts:       -3,
			expectedErr: ErrAboveHardwareMax,
		},
		{
			description:  "below the live set voltage",
			volts:        5,
			liveSetpoint: 10,
			expectedErr:  ErrBelowLiveSetpoint,
		},
		{
			description:  "valid lowering above the live set voltage",
			volts:        20,
			liveSetpoint: 10,
		},
		{
			description: "exactly the hardware maximum",
			volts:       32,
		},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			limits := newTestLimits(t)
			err := limits.SetVoltageLimit(1, tt.volts, tt.liveSetpoint)

			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				// Rejection keeps the prior ceiling.
				limit, lerr := limits.VoltageLimit(1)
				require.NoError(t, lerr)
				assert.Equal(t, MaxVoltageLimit, limit)
				return
			}

			require.NoError(t, err)
			limit, lerr := limits.VoltageLimit(1)
			require.NoError(t, lerr)
			assert.Equal(t, tt.volts, limit)
		})
	}
}

func TestChannelLimits_SetCurrentLimit(t *testing.T) {
	limits := newTestLimits(t)

	require.ErrorIs(t, limits.SetCurrentLimit(2, 5, 0), ErrAboveHardwareMax)
	require.ErrorIs(t, limits.SetCurrentLimit(2, 0.5, 1.0), ErrBelowLiveSetpoint)
	require.NoError(t, limits.SetCurrentLimit(2, 2.5, 1.0))

	limit, err := limits.CurrentLimit(2)
	require.NoError(t, err)
	assert.Equal(t, 2.5, limit)
}

func TestChannelLimits_CheckSetVoltage(t *testing.T) {
	limits := newTestLimits(t)
	require.NoError(t, limits.SetVoltageLimit(1, 12, 0))

	assert.NoError(t, limits.CheckSetVoltage(1, 12))
	require.ErrorIs(t, limits.CheckSetVoltage(1, 12.5), ErrAboveChannelLimit)

	// The other channel keeps its own independent ceiling.
	assert.NoError(t, limits.CheckSetVoltage(2, 30))
}

func TestChannelLimits_InvalidChannel(t *testing.T) {
	limits := newTestLimits(t)

	_, err := limits.VoltageLimit(0)
	require.ErrorIs(t, err, ErrInvalidChannel)
	_, err = limits.VoltageLimit(3)
	require.ErrorIs(t, err, ErrInvalidChannel)
	require.ErrorIs(t, limits.CheckSetCurrent(3, 1), ErrInvalidChannel)
}

func TestChannelLimits_RestoreFullRange(t *testing.T) {
	limits := newTestLimits(t)
	require.NoError(t, limits.SetVoltageLimit(1, 12, 0))
	require.NoError(t, limits.SetCurrentLimit(1, 1, 0))

	limits.RestoreFullRange()

	voltage, err := limits.VoltageLimit(1)
	require.NoError(t, err)
	current, err := limits.CurrentLimit(1)
	require.NoError(t, err)
	assert.Equal(t, MaxVoltageLimit, voltage)
	assert.Equal(t, MaxCurrentLimit, current)
}

func TestNewChannelLimits_RejectsBadConfig(t *testing.T) {
	_, err := NewChannelLimits(MaxVoltageLimit, MaxCurrentLimit, []float64{40, 32}, nil, 2)
	require.ErrorIs(t, err, ErrAboveHardwareMax)

	_, err = NewChannelLimits(MaxVoltageLimit, MaxCurrentLimit, nil, []float64{-1}, 2)
	require.ErrorIs(t, err, ErrAboveHardwareMax)
}
