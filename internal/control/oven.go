// internal/control/oven.go
package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"instrument-service/internal/model"
	"instrument-service/internal/utils"
	"instrument-service/pkg/driver"
)

// VoltageCeiling reports the software voltage ceiling of a supply
// channel. spd3303x.ChannelLimits implements it; the oven re-reads it
// every tick so limit changes take effect immediately.
type VoltageCeiling interface {
	VoltageLimit(channel int) (float64, error)
}

// OvenConfig carries oven controller construction parameters
type OvenConfig struct {
	InstrumentID  string
	SupplyChannel int
	PID           PIDConfig
	Heater        Heater
}

// OvenController closes a temperature loop across two independently
// addressed instruments: it reads a TemperatureSource, steps a PID loop
// and writes the result to a PowerSink, never above
// min(heater.MaxVolts, channel voltage ceiling). Tick is the single
// safety-critical path; callers serialize it.
type OvenController struct {
	instrumentID  string
	supplyChannel int
	source        driver.TemperatureSource
	sink          driver.PowerSink
	ceiling       VoltageCeiling
	heater        Heater
	pid           *PIDLoop
	logger        *utils.InstrumentLogger

	mutex    sync.RWMutex
	lastTick *model.ControlTick
}

// NewOvenController wires the loop over the given collaborators
func NewOvenController(cfg OvenConfig, source driver.TemperatureSource, sink driver.PowerSink, ceiling VoltageCeiling, logger *zap.Logger) *OvenController {
	pid := NewPIDLoop(cfg.PID, 0, cfg.Heater.MaxVolts)
	return &OvenController{
		instrumentID:  cfg.InstrumentID,
		supplyChannel: cfg.SupplyChannel,
		source:        source,
		sink:          sink,
		ceiling:       ceiling,
		heater:        cfg.Heater,
		pid:           pid,
		logger:        utils.NewInstrumentLogger(logger, cfg.InstrumentID, string(model.InstrumentTypeOven)),
	}
}

// SetSetpoint sets the loop target. Targets above the heater's rated
// maximum are rejected and the prior setpoint retained.
func (o *OvenController) SetSetpoint(setpoint float64) error {
	if setpoint > o.heater.MaxTemperature {
		return fmt.Errorf("%w: %.2f > %.2f", ErrAboveHeaterMax, setpoint, o.heater.MaxTemperature)
	}
	o.pid.SetSetpoint(setpoint)
	o.logger.Info("Oven setpoint changed", zap.Float64("setpoint", setpoint))
	return nil
}

// Setpoint returns the current loop target
func (o *OvenController) Setpoint() float64 {
	return o.pid.Setpoint()
}

// Heater returns the safety descriptor the controller was built with
func (o *OvenController) Heater() Heater {
	return o.heater
}

// SamplePeriod returns the loop's sample period, for external schedulers
func (o *OvenController) SamplePeriod() time.Duration {
	return o.pid.samplePeriod
}

// LastTick returns the most recent tick record, or nil before the first
func (o *OvenController) LastTick() *model.ControlTick {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.lastTick
}

// Tick runs one control step: read temperature, step the PID, clamp the
// output and write it to the power sink. The written voltage can never
// exceed min(heater.MaxVolts, channel voltage ceiling) no matter how
// saturated the PID is.
func (o *OvenController) Tick(ctx context.Context) (*model.ControlTick, error) {
	temperature, err := o.source.CurrentTemperature(ctx)
	if err != nil {
		return nil, fmt.Errorf("oven temperature read failed: %w", err)
	}

	upper, err := o.outputCeiling()
	if err != nil {
		return nil, err
	}
	o.pid.SetOutputBounds(0, upper)

	volts := o.pid.Step(temperature, time.Now())
	clamped := o.pid.Saturated()
	// last-resort clamp; the loop's own bounds already enforce this
	if volts > upper {
		volts = upper
		clamped = true
	}
	if volts < 0 {
		volts = 0
		clamped = true
	}

	if err := o.sink.SetOutputVoltage(ctx, volts); err != nil {
		return nil, fmt.Errorf("oven output write failed: %w", err)
	}

	tick := &model.ControlTick{
		ID:           uuid.New(),
		InstrumentID: o.instrumentID,
		Setpoint:     o.pid.Setpoint(),
		Temperature:  temperature,
		OutputVolts:  volts,
		Clamped:      clamped,
		RecordedAt:   time.Now(),
	}

	o.mutex.Lock()
	o.lastTick = tick
	o.mutex.Unlock()

	o.logger.Debug("Oven control tick",
		zap.Float64("setpoint", tick.Setpoint),
		zap.Float64("temperature", temperature),
		zap.Float64("output_volts", volts),
		zap.Bool("clamped", clamped),
	)
	return tick, nil
}

// Shutdown zeroes the heater drive and resets the loop state
func (o *OvenController) Shutdown(ctx context.Context) error {
	o.pid.Reset()
	if err := o.sink.SetOutputVoltage(ctx, 0); err != nil {
		return fmt.Errorf("oven shutdown failed: %w", err)
	}
	o.logger.Info("Oven output zeroed")
	return nil
}

// outputCeiling combines the heater rating with the live channel limit
func (o *OvenController) outputCeiling() (float64, error) {
	upper := o.heater.MaxVolts
	if o.ceiling == nil {
		return upper, nil
	}
	limit, err := o.ceiling.VoltageLimit(o.supplyChannel)
	if err != nil {
		return 0, fmt.Errorf("oven channel limit read failed: %w", err)
	}
	if limit < upper {
		upper = limit
	}
	return upper, nil
}
