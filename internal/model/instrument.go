// internal/model/instrument.go
package model

import (
	"time"
)

// InstrumentType represents the kind of laboratory instrument
type InstrumentType string

const (
	InstrumentTypeGaussmeter     InstrumentType = "GAUSSMETER"
	InstrumentTypePowerSupply    InstrumentType = "POWER_SUPPLY"
	InstrumentTypeTemperatureDAQ InstrumentType = "TEMPERATURE_DAQ"
	InstrumentTypeOven           InstrumentType = "OVEN"
)

// InstrumentStatus represents the current status of an instrument
type InstrumentStatus string

const (
	InstrumentStatusOnline     InstrumentStatus = "ONLINE"
	InstrumentStatusOffline    InstrumentStatus = "OFFLINE"
	InstrumentStatusError      InstrumentStatus = "ERROR"
	InstrumentStatusConnecting InstrumentStatus = "CONNECTING"
)

// ConnectionType represents how the instrument is attached
type ConnectionType string

const (
	ConnectionTypeSerial ConnectionType = "SERIAL"
	ConnectionTypeTCP    ConnectionType = "TCP"
)

// TemperatureUnit selects the scale a DAQ channel is read in. The mapping
// of unit strings to vendor scale codes lives behind the vendor gateway.
type TemperatureUnit string

const (
	UnitCelsius    TemperatureUnit = "celsius"
	UnitFahrenheit TemperatureUnit = "fahrenheit"
	UnitKelvin     TemperatureUnit = "kelvin"
	UnitVolts      TemperatureUnit = "volts"
	UnitRaw        TemperatureUnit = "raw"
)

// Instrument is the service-level record of a configured instrument
type Instrument struct {
	InstrumentID   string           `json:"instrument_id"`
	InstrumentType InstrumentType   `json:"instrument_type"`
	Brand          string           `json:"brand"`
	Model          string           `json:"model"`
	ConnectionType ConnectionType   `json:"connection_type"`
	Status         InstrumentStatus `json:"status"`
	LastSeen       time.Time        `json:"last_seen"`
}

// InstrumentEvent is emitted on instrument lifecycle and data changes
type InstrumentEvent struct {
	InstrumentID string                 `json:"instrument_id"`
	EventType    string                 `json:"event_type"`
	Data         map[string]interface{} `json:"data,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

const (
	EventTypeConnected    = "instrument.connected"
	EventTypeDisconnected = "instrument.disconnected"
	EventTypeMeasurement  = "instrument.measurement"
	EventTypeControlTick  = "oven.control_tick"
	EventTypeLimitChange  = "power_supply.limit_change"
)
