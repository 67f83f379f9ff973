// internal/control/errors.go
package control

import "errors"

// ErrAboveHeaterMax indicates a requested setpoint exceeds the heater's
// rated maximum temperature. The prior setpoint is retained.
var ErrAboveHeaterMax = errors.New("setpoint above heater maximum temperature")
