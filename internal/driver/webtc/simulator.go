// internal/driver/webtc/simulator.go
package webtc

import (
	"context"
	"math"
	"sync"
	"time"

	"instrument-service/internal/model"
)

// SimulatedGateway is a first-order thermal model standing in for the
// vendor gateway on benches without hardware. Every channel shares one
// thermal mass that relaxes toward ambient plus the applied drive.
type SimulatedGateway struct {
	mutex        sync.Mutex
	ambient      float64
	temperature  float64
	driveVolts   float64
	gainPerVolt  float64
	timeConstant time.Duration
	lastStep     time.Time
}

// NewSimulatedGateway creates a simulator at ambient temperature
func NewSimulatedGateway(ambient float64) *SimulatedGateway {
	return &SimulatedGateway{
		ambient:      ambient,
		temperature:  ambient,
		gainPerVolt:  8.0,
		timeConstant: 90 * time.Second,
		lastStep:     time.Now(),
	}
}

// ApplyVolts sets the heater drive the model relaxes toward. The power
// sink side of a simulated bench calls this.
func (s *SimulatedGateway) ApplyVolts(ctx context.Context, volts float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.step(time.Now())
	s.driveVolts = volts
	return nil
}

// ReadTemperature advances the model and returns the channel reading.
// Board and channel are accepted but the model has a single mass.
func (s *SimulatedGateway) ReadTemperature(ctx context.Context, board, channel int, units model.TemperatureUnit) (float64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.step(time.Now())

	celsius := s.temperature
	switch units {
	case model.UnitFahrenheit:
		return celsius*9/5 + 32, nil
	case model.UnitKelvin:
		return celsius + 273.15, nil
	default:
		return celsius, nil
	}
}

// Close is a no-op for the simulator
func (s *SimulatedGateway) Close() error {
	return nil
}

// step relaxes the thermal mass toward its steady state. Caller holds
// the mutex.
func (s *SimulatedGateway) step(now time.Time) {
	elapsed := now.Sub(s.lastStep)
	s.lastStep = now
	if elapsed <= 0 {
		return
	}

	target := s.ambient + s.driveVolts*s.gainPerVolt
	decay := math.Exp(-elapsed.Seconds() / s.timeConstant.Seconds())
	s.temperature = target + (s.temperature-target)*decay
}
