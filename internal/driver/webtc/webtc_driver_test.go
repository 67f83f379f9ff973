package webtc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"instrument-service/internal/model"
)

// fakeGateway serves fixed per-channel readings
type fakeGateway struct {
	readings map[int]float64
	failing  map[int]error
	calls    []int
}

func (f *fakeGateway) ReadTemperature(ctx context.Context, board, channel int, units model.TemperatureUnit) (float64, error) {
	f.calls = append(f.calls, channel)
	if err, ok := f.failing[channel]; ok {
		return 0, err
	}
	return f.readings[channel], nil
}

func (f *fakeGateway) Close() error { return nil }

func TestDriver_CurrentTemperature_PinnedChannel(t *testing.T) {
	gw := &fakeGateway{readings: map[int]float64{3: 42.5}}
	d := NewDriver(Config{InstrumentID: "daq-test", Channel: 3}, gw, zap.NewNop())

	value, err := d.CurrentTemperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42.5, value)
	assert.Equal(t, []int{3}, gw.calls)
}

func TestDriver_ReadRange_ToleratesDeadChannels(t *testing.T) {
	gw := &fakeGateway{
		readings: map[int]float64{0: 20, 2: 22},
		failing:  map[int]error{1: errors.New("open thermocouple")},
	}
	d := NewDriver(Config{InstrumentID: "daq-test"}, gw, zap.NewNop())

	readings, err := d.ReadRange(context.Background(), 0, 2)
	require.NoError(t, err)
	require.Len(t, readings, 3)
	assert.Equal(t, 20.0, readings[0].Value)
	assert.Error(t, readings[1].Err)
	assert.Equal(t, 22.0, readings[2].Value)
}

func TestDriver_ReadRange_AllChannelsDead(t *testing.T) {
	boom := errors.New("open thermocouple")
	gw := &fakeGateway{failing: map[int]error{0: boom, 1: boom}}
	d := NewDriver(Config{InstrumentID: "daq-test"}, gw, zap.NewNop())

	_, err := d.ReadRange(context.Background(), 0, 1)
	require.ErrorIs(t, err, ErrNoChannels)
}

func TestDriver_Average_SkipsDeadChannels(t *testing.T) {
	gw := &fakeGateway{
		readings: map[int]float64{0: 10, 2: 30},
		failing:  map[int]error{1: errors.New("open thermocouple")},
	}
	d := NewDriver(Config{InstrumentID: "daq-test"}, gw, zap.NewNop())

	mean, err := d.Average(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 20.0, mean)
}

func TestDriver_ReadChannel_ErrorCountsAgainstStatus(t *testing.T) {
	gw := &fakeGateway{failing: map[int]error{0: errors.New("open thermocouple")}}
	d := NewDriver(Config{InstrumentID: "daq-test"}, gw, zap.NewNop())

	_, err := d.ReadChannel(context.Background(), 0)
	require.Error(t, err)

	status, err := d.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), status.ErrorCount)
	assert.Contains(t, status.LastError, "open thermocouple")
}

func TestSimulatedGateway_RelaxesTowardDrive(t *testing.T) {
	sim := NewSimulatedGateway(20)

	reading, err := sim.ReadTemperature(context.Background(), 0, 0, model.UnitCelsius)
	require.NoError(t, err)
	assert.InDelta(t, 20, reading, 0.01)

	require.NoError(t, sim.ApplyVolts(context.Background(), 5))
	sim.lastStep = time.Now().Add(-10 * time.Minute)

	reading, err = sim.ReadTemperature(context.Background(), 0, 0, model.UnitCelsius)
	require.NoError(t, err)
	// 20 ambient + 5 V * 8 deg/V = 60 steady state, reached after many
	// time constants.
	assert.InDelta(t, 60, reading, 0.5)
}

func TestSimulatedGateway_UnitConversion(t *testing.T) {
	sim := NewSimulatedGateway(25)

	kelvin, err := sim.ReadTemperature(context.Background(), 0, 0, model.UnitKelvin)
	require.NoError(t, err)
	assert.InDelta(t, 298.15, kelvin, 0.01)

	fahrenheit, err := sim.ReadTemperature(context.Background(), 0, 0, model.UnitFahrenheit)
	require.NoError(t, err)
	assert.InDelta(t, 77, fahrenheit, 0.01)
}
