// internal/control/heater.go
package control

// Heater is the static safety descriptor of the heating element wired
// to the supply channel. Immutable after construction; the oven
// controller derives its output bounds from it.
type Heater struct {
	// MaxTemperature is the element's rated maximum in the DAQ's units.
	MaxTemperature float64
	// MaxVolts caps the control output regardless of channel limits.
	MaxVolts float64
	// MaxCurrent is the element's rated current in amps.
	MaxCurrent float64
	// Resistance of the element in ohms, for power bookkeeping.
	Resistance float64
}

// MaxPower returns the element's dissipation at MaxVolts in watts
func (h Heater) MaxPower() float64 {
	if h.Resistance <= 0 {
		return 0
	}
	return h.MaxVolts * h.MaxVolts / h.Resistance
}
