// internal/driver/spd3303x/spd_driver.go
package spd3303x

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"instrument-service/internal/model"
	"instrument-service/internal/transport"
	"instrument-service/internal/utils"
	"instrument-service/pkg/driver"
)

// numberOfChannels of the SPD3303X's programmable outputs
const numberOfChannels = 2

// CommandSession is the text-oriented collaborator the driver talks
// through. transport.TextSession implements it; tests supply fakes.
type CommandSession interface {
	Send(ctx context.Context, cmd string) error
	Query(ctx context.Context, cmd string) (string, error)
}

// Driver drives a Siglent SPD3303X programmable power supply over its
// ASCII socket protocol. All voltages and currents are volts and amps.
// Channel limits are software-enforced: the instrument has none.
type Driver struct {
	instrumentID   string
	conn           transport.Connection
	session        CommandSession
	limits         *ChannelLimits
	resetOnStartup bool
	logger         *utils.InstrumentLogger

	mutex        sync.RWMutex
	isConnected  bool
	lastActivity time.Time
	lastError    string
	errorCount   uint64
}

// Config holds driver construction parameters
type Config struct {
	InstrumentID         string
	ChannelVoltageLimits []float64
	ChannelCurrentLimits []float64
	ResetOnStartup       bool
}

// NewDriver creates a power supply driver over the given transport and
// command session
func NewDriver(cfg Config, conn transport.Connection, session CommandSession, logger *zap.Logger) (*Driver, error) {
	limits, err := NewChannelLimits(
		MaxVoltageLimit, MaxCurrentLimit,
		cfg.ChannelVoltageLimits, cfg.ChannelCurrentLimits,
		numberOfChannels,
	)
	if err != nil {
		return nil, fmt.Errorf("invalid channel limits: %w", err)
	}

	return &Driver{
		instrumentID:   cfg.InstrumentID,
		conn:           conn,
		session:        session,
		limits:         limits,
		resetOnStartup: cfg.ResetOnStartup,
		logger:         utils.NewInstrumentLogger(logger, cfg.InstrumentID, string(model.InstrumentTypePowerSupply)),
	}, nil
}

// Limits exposes the channel ceilings, e.g. for the oven's output clamp
func (d *Driver) Limits() *ChannelLimits {
	return d.limits
}

// Connect opens the socket and, when configured, zeroes and disables
// both outputs so the supply starts in a known state.
func (d *Driver) Connect(ctx context.Context) error {
	d.mutex.Lock()
	if d.isConnected {
		d.mutex.Unlock()
		return nil
	}
	d.mutex.Unlock()

	if err := d.conn.Open(ctx); err != nil {
		d.noteError(err)
		d.logger.LogConnection("connect", err)
		return fmt.Errorf("power supply connect failed: %w", err)
	}

	d.mutex.Lock()
	d.isConnected = true
	d.lastActivity = time.Now()
	d.mutex.Unlock()
	d.logger.LogConnection("connect", nil)

	if d.resetOnStartup {
		if err := d.ResetChannels(ctx); err != nil {
			return fmt.Errorf("startup reset failed: %w", err)
		}
	}
	return nil
}

// Disconnect closes the socket
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.isConnected {
		return nil
	}

	err := d.conn.Close()
	d.isConnected = false
	d.logger.LogConnection("disconnect", err)
	if err != nil {
		return fmt.Errorf("power supply disconnect failed: %w", err)
	}
	return nil
}

// IsConnected reports whether the socket is open
func (d *Driver) IsConnected() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.isConnected && d.conn.IsOpen()
}

// Close releases the driver
func (d *Driver) Close() error {
	return d.Disconnect(context.Background())
}

// Identification queries *IDN?
func (d *Driver) Identification(ctx context.Context) (string, error) {
	return d.query(ctx, "*IDN?")
}

// IPAddress queries the supply's own notion of its IP address
func (d *Driver) IPAddress(ctx context.Context) (string, error) {
	return d.query(ctx, "IP?")
}

// SystemStatus queries and decodes the 10-bit status field
func (d *Driver) SystemStatus(ctx context.Context) (SystemStatus, error) {
	reply, err := d.query(ctx, "system:status?")
	if err != nil {
		return 0, err
	}
	status, err := ParseSystemStatus(reply)
	if err != nil {
		d.noteError(err)
		return 0, err
	}
	return status, nil
}

// ChannelEnabled reports whether a channel's output is on
func (d *Driver) ChannelEnabled(ctx context.Context, channel int) (bool, error) {
	status, err := d.SystemStatus(ctx)
	if err != nil {
		return false, err
	}
	return status.ChannelEnabled(channel)
}

// SetChannelState switches a channel's output on or off
func (d *Driver) SetChannelState(ctx context.Context, channel int, on bool) error {
	if err := d.checkChannel(channel); err != nil {
		return err
	}
	state := "OFF"
	if on {
		state = "ON"
	}
	return d.send(ctx, fmt.Sprintf("Output CH%d,%s", channel, state))
}

// SetVoltage programs a channel's set voltage. Requests above the
// channel's software ceiling are rejected without touching the
// instrument; the rejection is a distinguishable soft error, not a
// transport failure.
func (d *Driver) SetVoltage(ctx context.Context, channel int, volts float64) error {
	if err := d.limits.CheckSetVoltage(channel, volts); err != nil {
		d.logger.Warn("Set voltage rejected",
			zap.Int("channel", channel),
			zap.Float64("volts", volts),
			zap.Error(err),
		)
		return err
	}
	return d.send(ctx, fmt.Sprintf("CH%d:voltage %s", channel, formatValue(volts)))
}

// SetCurrent programs a channel's set current, same ceiling rule as
// SetVoltage.
func (d *Driver) SetCurrent(ctx context.Context, channel int, amps float64) error {
	if err := d.limits.CheckSetCurrent(channel, amps); err != nil {
		d.logger.Warn("Set current rejected",
			zap.Int("channel", channel),
			zap.Float64("amps", amps),
			zap.Error(err),
		)
		return err
	}
	return d.send(ctx, fmt.Sprintf("CH%d:current %s", channel, formatValue(amps)))
}

// SetVoltageQuery returns the channel's programmed set voltage
func (d *Driver) SetVoltageQuery(ctx context.Context, channel int) (float64, error) {
	if err := d.checkChannel(channel); err != nil {
		return 0, err
	}
	return d.queryFloat(ctx, fmt.Sprintf("CH%d:voltage?", channel))
}

// SetCurrentQuery returns the channel's programmed set current
func (d *Driver) SetCurrentQuery(ctx context.Context, channel int) (float64, error) {
	if err := d.checkChannel(channel); err != nil {
		return 0, err
	}
	return d.queryFloat(ctx, fmt.Sprintf("CH%d:current?", channel))
}

// MeasuredVoltage returns the channel's actual output voltage
func (d *Driver) MeasuredVoltage(ctx context.Context, channel int) (float64, error) {
	if err := d.checkChannel(channel); err != nil {
		return 0, err
	}
	return d.queryFloat(ctx, fmt.Sprintf("measure:voltage? CH%d", channel))
}

// MeasuredCurrent returns the channel's actual output current
func (d *Driver) MeasuredCurrent(ctx context.Context, channel int) (float64, error) {
	if err := d.checkChannel(channel); err != nil {
		return 0, err
	}
	return d.queryFloat(ctx, fmt.Sprintf("measure:current? CH%d", channel))
}

// SetVoltageLimit raises or lowers a channel's software voltage ceiling.
// The live set voltage is read first so the ceiling can never be pushed
// below it.
func (d *Driver) SetVoltageLimit(ctx context.Context, channel int, volts float64) error {
	live, err := d.SetVoltageQuery(ctx, channel)
	if err != nil {
		return err
	}
	return d.limits.SetVoltageLimit(channel, volts, live)
}

// SetCurrentLimit is the current-side counterpart of SetVoltageLimit
func (d *Driver) SetCurrentLimit(ctx context.Context, channel int, amps float64) error {
	live, err := d.SetCurrentQuery(ctx, channel)
	if err != nil {
		return err
	}
	return d.limits.SetCurrentLimit(channel, amps, live)
}

// ResetChannels turns both outputs off and zeroes the set voltages
func (d *Driver) ResetChannels(ctx context.Context) error {
	for channel := 1; channel <= numberOfChannels; channel++ {
		if err := d.SetChannelState(ctx, channel, false); err != nil {
			return err
		}
		if err := d.SetVoltage(ctx, channel, 0); err != nil {
			return err
		}
	}
	d.logger.Info("Both channels set to 0 and turned off")
	return nil
}

// ZeroAllChannels zeroes every set-point and restores the full-range
// limits so the supply is back at its maximum working envelope.
func (d *Driver) ZeroAllChannels(ctx context.Context) error {
	for channel := 1; channel <= numberOfChannels; channel++ {
		if err := d.SetVoltage(ctx, channel, 0); err != nil {
			return err
		}
		if err := d.SetCurrent(ctx, channel, 0); err != nil {
			return err
		}
	}
	d.limits.RestoreFullRange()
	return nil
}

// ChannelSink adapts one channel to the oven controller's power sink
func (d *Driver) ChannelSink(channel int) driver.PowerSink {
	return driver.PowerSinkFunc(func(ctx context.Context, volts float64) error {
		return d.SetVoltage(ctx, channel, volts)
	})
}

// GetInstrumentInfo describes the instrument
func (d *Driver) GetInstrumentInfo() (*driver.InstrumentInfo, error) {
	return &driver.InstrumentInfo{
		Brand:          "Siglent",
		Model:          "SPD3303X",
		ConnectionType: d.conn.GetConnectionType(),
		Manufacturer:   "Siglent Technologies",
	}, nil
}

// GetStatus returns a health snapshot
func (d *Driver) GetStatus() (*driver.InstrumentStatus, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	status := model.InstrumentStatusOffline
	if d.isConnected && d.conn.IsOpen() {
		status = model.InstrumentStatusOnline
	}

	return &driver.InstrumentStatus{
		Status:       status,
		IsConnected:  d.isConnected,
		LastActivity: d.lastActivity,
		ErrorCount:   d.errorCount,
		LastError:    d.lastError,
	}, nil
}

func (d *Driver) checkChannel(channel int) error {
	if channel < 1 || channel > numberOfChannels {
		return fmt.Errorf("%w: %d, supply has %d channels", ErrInvalidChannel, channel, numberOfChannels)
	}
	return nil
}

func (d *Driver) send(ctx context.Context, cmd string) error {
	if err := d.session.Send(ctx, cmd); err != nil {
		d.noteError(err)
		return fmt.Errorf("command %q failed: %w", cmd, err)
	}
	d.touch()
	return nil
}

func (d *Driver) query(ctx context.Context, cmd string) (string, error) {
	reply, err := d.session.Query(ctx, cmd)
	if err != nil {
		d.noteError(err)
		return "", err
	}
	d.touch()
	return reply, nil
}

func (d *Driver) queryFloat(ctx context.Context, cmd string) (float64, error) {
	reply, err := d.query(ctx, cmd)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		d.noteError(err)
		return 0, fmt.Errorf("malformed reply %q to %q: %w", reply, cmd, err)
	}
	return value, nil
}

func (d *Driver) touch() {
	d.mutex.Lock()
	d.lastActivity = time.Now()
	d.mutex.Unlock()
}

func (d *Driver) noteError(err error) {
	d.mutex.Lock()
	d.lastError = err.Error()
	d.errorCount++
	d.mutex.Unlock()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
