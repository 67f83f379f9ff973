// pkg/driver/types.go
package driver

import (
	"context"
	"time"

	"instrument-service/internal/model"
)

// InstrumentInfo describes a connected instrument
type InstrumentInfo struct {
	Brand          string               `json:"brand"`
	Model          string               `json:"model"`
	SerialNumber   string               `json:"serial_number,omitempty"`
	Identification string               `json:"identification,omitempty"`
	ConnectionType model.ConnectionType `json:"connection_type"`
	Manufacturer   string               `json:"manufacturer,omitempty"`
}

// InstrumentStatus is a point-in-time health snapshot of a driver
type InstrumentStatus struct {
	Status        model.InstrumentStatus `json:"status"`
	IsConnected   bool                   `json:"is_connected"`
	LastActivity  time.Time              `json:"last_activity"`
	ErrorCount    uint64                 `json:"error_count"`
	LastError     string                 `json:"last_error,omitempty"`
	ResponseTime  time.Duration          `json:"response_time"`
	OperationLoad int64                  `json:"operation_load"`
}

// TemperatureSourceFunc adapts a plain function to TemperatureSource
type TemperatureSourceFunc func(ctx context.Context) (float64, error)

// CurrentTemperature calls f
func (f TemperatureSourceFunc) CurrentTemperature(ctx context.Context) (float64, error) {
	return f(ctx)
}

// PowerSinkFunc adapts a plain function to PowerSink
type PowerSinkFunc func(ctx context.Context, volts float64) error

// SetOutputVoltage calls f
func (f PowerSinkFunc) SetOutputVoltage(ctx context.Context, volts float64) error {
	return f(ctx, volts)
}
