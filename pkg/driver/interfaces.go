// pkg/driver/interfaces.go
package driver

import (
	"context"

	"instrument-service/internal/model"
)

// InstrumentDriver is the interface all instrument drivers implement
type InstrumentDriver interface {
	// Connection management
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	// Instrument information
	GetInstrumentInfo() (*InstrumentInfo, error)
	GetStatus() (*InstrumentStatus, error)

	// Cleanup
	Close() error
}

// TemperatureSource supplies the current temperature of a single DAQ channel.
// The oven controller reads its process variable through this interface.
type TemperatureSource interface {
	CurrentTemperature(ctx context.Context) (float64, error)
}

// PowerSink accepts an output voltage. The oven controller writes its
// control output through this interface; implementations are expected to
// enforce their own channel limits on top of whatever the caller clamps.
type PowerSink interface {
	SetOutputVoltage(ctx context.Context, volts float64) error
}

// VendorGateway is the opaque vendor-SDK surface for MCC temperature DAQs.
// Channel enumeration and unit-string handling live behind it; the service
// never reimplements the vendor tables.
type VendorGateway interface {
	// ReadTemperature reads one channel in the given unit scale.
	ReadTemperature(ctx context.Context, board, channel int, units model.TemperatureUnit) (float64, error)
	Close() error
}

// EventHandler receives instrument lifecycle and measurement events
type EventHandler interface {
	OnInstrumentEvent(event *model.InstrumentEvent)
}
