package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDLoop_ProportionalOnly(t *testing.T) {
	pid := NewPIDLoop(PIDConfig{Kp: 2, SamplePeriod: time.Second}, 0, 100)
	pid.SetSetpoint(50)

	now := time.Now()
	output := pid.Step(40, now)
	// error 10, Kp 2 -> 20 (Ki=0 so the integral term is inert)
	assert.InDelta(t, 20, output, 1e-9)
}

func TestPIDLoop_RateLimitedWithinSamplePeriod(t *testing.T) {
	pid := NewPIDLoop(PIDConfig{Kp: 1, Ki: 0.03, SamplePeriod: 2 * time.Second}, 0, 100)
	pid.SetSetpoint(100)

	now := time.Now()
	first := pid.Step(20, now)
	early := pid.Step(35, now.Add(500*time.Millisecond))
	assert.Equal(t, first, early, "calls inside the sample period return the previous output")

	later := pid.Step(35, now.Add(2*time.Second))
	assert.NotEqual(t, first, later, "a full sample period later the output advances")
}

func TestPIDLoop_OutputClampedUnderSaturation(t *testing.T) {
	pid := NewPIDLoop(PIDConfig{Kp: 10, Ki: 1, SamplePeriod: time.Second}, 0, 12)
	pid.SetSetpoint(500)

	now := time.Now()
	for i := 0; i < 20; i++ {
		output := pid.Step(20, now.Add(time.Duration(i)*time.Second))
		require.LessOrEqual(t, output, 12.0)
		require.GreaterOrEqual(t, output, 0.0)
	}
	assert.True(t, pid.Saturated())
}

func TestPIDLoop_IntegralDoesNotWindUpWhileSaturated(t *testing.T) {
	pid := NewPIDLoop(PIDConfig{Ki: 1, SamplePeriod: time.Second}, 0, 10)
	pid.SetSetpoint(1000)

	now := time.Now()
	for i := 0; i < 50; i++ {
		pid.Step(0, now.Add(time.Duration(i)*time.Second))
	}

	// flip to a large negative error; a wound-up integral would keep the
	// output pinned high for many steps
	pid.SetSetpoint(0)
	output := pid.Step(1000, now.Add(51*time.Second))
	assert.Equal(t, 0.0, output)
}

func TestPIDLoop_NegativeOutputClampedToLowerBound(t *testing.T) {
	pid := NewPIDLoop(PIDConfig{Kp: 1, SamplePeriod: time.Second}, 0, 12)
	pid.SetSetpoint(20)

	output := pid.Step(80, time.Now())
	assert.Equal(t, 0.0, output)
	assert.True(t, pid.Saturated())
}

func TestPIDLoop_Reset(t *testing.T) {
	pid := NewPIDLoop(PIDConfig{Kp: 1, Ki: 0.5, SamplePeriod: time.Second}, 0, 100)
	pid.SetSetpoint(50)

	now := time.Now()
	pid.Step(10, now)
	pid.Step(10, now.Add(time.Second))
	pid.Reset()

	fresh := pid.Step(10, now.Add(2*time.Second))
	restarted := NewPIDLoop(PIDConfig{Kp: 1, Ki: 0.5, SamplePeriod: time.Second}, 0, 100)
	restarted.SetSetpoint(50)
	assert.Equal(t, restarted.Step(10, now.Add(2*time.Second)), fresh)
}
