// internal/control/pid.go
package control

import (
	"sync"
	"time"
)

// PIDConfig carries the loop gains and timing. Zero SamplePeriod means
// every Step advances the loop.
type PIDConfig struct {
	Kp           float64
	Ki           float64
	Kd           float64
	SamplePeriod time.Duration
}

// PIDLoop is a proportional-integral-derivative regulator with a
// clamped output and a fixed sample period. Calls arriving before the
// sample period has elapsed return the previous output unchanged, so
// over-frequent callers cannot wind up the integral term. Not safe for
// concurrent Step calls; the owning controller serializes them.
type PIDLoop struct {
	mutex sync.Mutex

	kp           float64
	ki           float64
	kd           float64
	samplePeriod time.Duration

	setpoint   float64
	outMin     float64
	outMax     float64
	integral   float64
	lastError  float64
	lastSample time.Time
	lastOutput float64
	saturated  bool
}

// NewPIDLoop creates a loop with zeroed state and the given bounds
func NewPIDLoop(cfg PIDConfig, outMin, outMax float64) *PIDLoop {
	return &PIDLoop{
		kp:           cfg.Kp,
		ki:           cfg.Ki,
		kd:           cfg.Kd,
		samplePeriod: cfg.SamplePeriod,
		outMin:       outMin,
		outMax:       outMax,
	}
}

// SetSetpoint changes the target the loop drives toward
func (p *PIDLoop) SetSetpoint(setpoint float64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.setpoint = setpoint
}

// Setpoint returns the current target
func (p *PIDLoop) Setpoint() float64 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.setpoint
}

// SetOutputBounds narrows or widens the output clamp
func (p *PIDLoop) SetOutputBounds(outMin, outMax float64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.outMin = outMin
	p.outMax = outMax
}

// Reset zeroes the accumulated state without touching gains or bounds
func (p *PIDLoop) Reset() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.integral = 0
	p.lastError = 0
	p.lastSample = time.Time{}
	p.lastOutput = 0
	p.saturated = false
}

// Saturated reports whether the last advanced step hit an output bound
func (p *PIDLoop) Saturated() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.saturated
}

// Step feeds one measurement into the loop and returns the clamped
// output. State advances only when a full sample period has elapsed
// since the last advance; earlier calls return the previous output.
func (p *PIDLoop) Step(measurement float64, now time.Time) float64 {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.lastSample.IsZero() && now.Sub(p.lastSample) < p.samplePeriod {
		return p.lastOutput
	}

	elapsed := p.samplePeriod.Seconds()
	if !p.lastSample.IsZero() && p.samplePeriod == 0 {
		elapsed = now.Sub(p.lastSample).Seconds()
	}
	if elapsed <= 0 {
		elapsed = 1
	}

	err := p.setpoint - measurement
	p.integral += err * elapsed
	derivative := (err - p.lastError) / elapsed

	output := p.kp*err + p.ki*p.integral + p.kd*derivative
	p.saturated = output > p.outMax || output < p.outMin
	if output > p.outMax {
		output = p.outMax
		// keep the integral from accumulating past the point where the
		// output can follow it
		p.integral -= err * elapsed
	} else if output < p.outMin {
		output = p.outMin
		p.integral -= err * elapsed
	}

	p.lastError = err
	p.lastSample = now
	p.lastOutput = output
	return output
}
