// internal/model/measurement.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FieldComponent names the position of a sample inside a streamed field
// reading. The ordering is fixed by the gaussmeter wire format and only
// meaningful for stream/reset-time responses.
type FieldComponent string

const (
	ComponentTime      FieldComponent = "time"
	ComponentX         FieldComponent = "x"
	ComponentY         FieldComponent = "y"
	ComponentZ         FieldComponent = "z"
	ComponentMagnitude FieldComponent = "magnitude"
)

// StreamComponents lists the component order of a streamed measurement vector.
var StreamComponents = []FieldComponent{
	ComponentTime, ComponentX, ComponentY, ComponentZ, ComponentMagnitude,
}

// FieldReading is a persisted gaussmeter measurement vector. Values are
// stored as exact decimals, never as binary floats.
type FieldReading struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	InstrumentID string          `json:"instrument_id" db:"instrument_id"`
	TimeIndex    decimal.Decimal `json:"time_index" db:"time_index"`
	X            decimal.Decimal `json:"x" db:"x"`
	Y            decimal.Decimal `json:"y" db:"y"`
	Z            decimal.Decimal `json:"z" db:"z"`
	Magnitude    decimal.Decimal `json:"magnitude" db:"magnitude"`
	RecordedAt   time.Time       `json:"recorded_at" db:"recorded_at"`
}

// ControlTick is a persisted record of one oven control-loop step
type ControlTick struct {
	ID           uuid.UUID `json:"id" db:"id"`
	InstrumentID string    `json:"instrument_id" db:"instrument_id"`
	Setpoint     float64   `json:"setpoint" db:"setpoint"`
	Temperature  float64   `json:"temperature" db:"temperature"`
	OutputVolts  float64   `json:"output_volts" db:"output_volts"`
	Clamped      bool      `json:"clamped" db:"clamped"`
	RecordedAt   time.Time `json:"recorded_at" db:"recorded_at"`
}
