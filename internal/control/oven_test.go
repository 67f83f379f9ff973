package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"instrument-service/pkg/driver"
)

// fakeCeiling reports a fixed channel voltage limit
type fakeCeiling struct{ limit float64 }

func (f *fakeCeiling) VoltageLimit(channel int) (float64, error) {
	return f.limit, nil
}

func testOven(t *testing.T, heater Heater, ceiling VoltageCeiling, temperature float64) (*OvenController, *[]float64) {
	t.Helper()
	written := &[]float64{}
	source := driver.TemperatureSourceFunc(func(ctx context.Context) (float64, error) {
		return temperature, nil
	})
	sink := driver.PowerSinkFunc(func(ctx context.Context, volts float64) error {
		*written = append(*written, volts)
		return nil
	})
	oven := NewOvenController(OvenConfig{
		InstrumentID:  "oven-test",
		SupplyChannel: 1,
		PID:           PIDConfig{Kp: 1, Ki: 0.03, SamplePeriod: 2 * time.Second},
		Heater:        heater,
	}, source, sink, ceiling, zap.NewNop())
	return oven, written
}

func TestOvenController_SetSetpoint_RejectsAboveHeaterMax(t *testing.T) {
	oven, _ := testOven(t, Heater{MaxTemperature: 200, MaxVolts: 12}, nil, 20)

	require.NoError(t, oven.SetSetpoint(150))
	err := oven.SetSetpoint(250)
	require.ErrorIs(t, err, ErrAboveHeaterMax)
	assert.Equal(t, 150.0, oven.Setpoint(), "rejected setpoint leaves the prior one in place")
}

func TestOvenController_Tick_NeverExceedsHeaterMax(t *testing.T) {
	oven, written := testOven(t, Heater{MaxTemperature: 200, MaxVolts: 12}, &fakeCeiling{limit: 32}, 20)
	require.NoError(t, oven.SetSetpoint(200))

	// sustained large error drives the PID well past the bound
	for i := 0; i < 10; i++ {
		tick, err := oven.Tick(context.Background())
		require.NoError(t, err)
		require.LessOrEqual(t, tick.OutputVolts, 12.0)
		time.Sleep(time.Millisecond)
	}
	for _, volts := range *written {
		require.LessOrEqual(t, volts, 12.0)
		require.GreaterOrEqual(t, volts, 0.0)
	}
}

func TestOvenController_Tick_ChannelLimitTightensClamp(t *testing.T) {
	// channel ceiling below the heater rating wins
	oven, written := testOven(t, Heater{MaxTemperature: 200, MaxVolts: 12}, &fakeCeiling{limit: 5}, 20)
	require.NoError(t, oven.SetSetpoint(200))

	tick, err := oven.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5.0, tick.OutputVolts)
	assert.True(t, tick.Clamped)
	assert.Equal(t, []float64{5}, *written)
}

func TestOvenController_Tick_RecordsLoopState(t *testing.T) {
	oven, _ := testOven(t, Heater{MaxTemperature: 200, MaxVolts: 12}, &fakeCeiling{limit: 32}, 23.5)
	require.NoError(t, oven.SetSetpoint(30))

	tick, err := oven.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "oven-test", tick.InstrumentID)
	assert.Equal(t, 30.0, tick.Setpoint)
	assert.Equal(t, 23.5, tick.Temperature)
	assert.NotEqual(t, tick.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, tick, oven.LastTick())
}

func TestOvenController_Tick_SourceFailurePropagates(t *testing.T) {
	boom := errors.New("daq offline")
	source := driver.TemperatureSourceFunc(func(ctx context.Context) (float64, error) {
		return 0, boom
	})
	sink := driver.PowerSinkFunc(func(ctx context.Context, volts float64) error {
		t.Fatal("no output may be written when the temperature read fails")
		return nil
	})
	oven := NewOvenController(OvenConfig{
		InstrumentID: "oven-test",
		PID:          PIDConfig{Kp: 1, SamplePeriod: time.Second},
		Heater:       Heater{MaxTemperature: 200, MaxVolts: 12},
	}, source, sink, nil, zap.NewNop())

	_, err := oven.Tick(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestOvenController_Shutdown_ZeroesOutput(t *testing.T) {
	oven, written := testOven(t, Heater{MaxTemperature: 200, MaxVolts: 12}, &fakeCeiling{limit: 32}, 20)
	require.NoError(t, oven.SetSetpoint(100))

	_, err := oven.Tick(context.Background())
	require.NoError(t, err)
	require.NoError(t, oven.Shutdown(context.Background()))
	assert.Equal(t, 0.0, (*written)[len(*written)-1])
}

func TestHeater_MaxPower(t *testing.T) {
	h := Heater{MaxVolts: 12, Resistance: 20}
	assert.InDelta(t, 7.2, h.MaxPower(), 1e-9)
	assert.Equal(t, 0.0, Heater{MaxVolts: 12}.MaxPower())
}
