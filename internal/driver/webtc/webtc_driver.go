// internal/driver/webtc/webtc_driver.go
package webtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"instrument-service/internal/model"
	"instrument-service/internal/utils"
	"instrument-service/pkg/driver"
)

// ErrNoChannels indicates a scan over a channel range produced no usable
// readings at all.
var ErrNoChannels = errors.New("no readable channels in range")

// Config pins the driver to one board and one default channel/unit pair.
type Config struct {
	InstrumentID string
	Board        int
	Channel      int
	Units        model.TemperatureUnit
}

// Driver adapts an MCC Web-TC thermocouple DAQ to the service's
// temperature interfaces. All vendor-SDK specifics stay behind the
// gateway; the driver only pins a board, routes reads and tracks health.
type Driver struct {
	instrumentID string
	board        int
	channel      int
	units        model.TemperatureUnit
	gateway      driver.VendorGateway
	logger       *utils.InstrumentLogger

	mutex        sync.RWMutex
	isConnected  bool
	lastActivity time.Time
	lastError    string
	errorCount   uint64
}

// ChannelReading is one channel's result from a scan. Err is set for
// channels the hardware could not read; the scan itself still succeeds.
type ChannelReading struct {
	Channel int
	Value   float64
	Err     error
}

// NewDriver creates a DAQ driver over the given gateway
func NewDriver(cfg Config, gateway driver.VendorGateway, logger *zap.Logger) *Driver {
	units := cfg.Units
	if units == "" {
		units = model.UnitCelsius
	}
	return &Driver{
		instrumentID: cfg.InstrumentID,
		board:        cfg.Board,
		channel:      cfg.Channel,
		units:        units,
		gateway:      gateway,
		logger:       utils.NewInstrumentLogger(logger, cfg.InstrumentID, string(model.InstrumentTypeTemperatureDAQ)),
	}
}

// Connect marks the driver ready. The vendor gateway needs no session
// handshake, so this only records state.
func (d *Driver) Connect(ctx context.Context) error {
	d.mutex.Lock()
	d.isConnected = true
	d.lastActivity = time.Now()
	d.mutex.Unlock()
	d.logger.LogConnection("connect", nil)
	return nil
}

// Disconnect releases the gateway
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if !d.isConnected {
		return nil
	}
	err := d.gateway.Close()
	d.isConnected = false
	d.logger.LogConnection("disconnect", err)
	if err != nil {
		return fmt.Errorf("daq disconnect failed: %w", err)
	}
	return nil
}

// IsConnected reports whether the driver has been connected
func (d *Driver) IsConnected() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.isConnected
}

// Close releases the driver
func (d *Driver) Close() error {
	return d.Disconnect(context.Background())
}

// CurrentTemperature reads the pinned channel in the pinned units. This
// is the oven controller's process-variable input.
func (d *Driver) CurrentTemperature(ctx context.Context) (float64, error) {
	return d.ReadChannel(ctx, d.channel)
}

// ReadChannel reads one channel in the driver's configured units
func (d *Driver) ReadChannel(ctx context.Context, channel int) (float64, error) {
	start := time.Now()
	value, err := d.gateway.ReadTemperature(ctx, d.board, channel, d.units)
	d.logger.LogExchange(fmt.Sprintf("read channel %d", channel), time.Since(start), err)
	if err != nil {
		d.noteError(err)
		return 0, fmt.Errorf("daq read channel %d failed: %w", channel, err)
	}
	d.touch()
	return value, nil
}

// ReadRange scans channels [first, last] inclusive. Channels the
// hardware cannot read are reported with their error instead of
// aborting the scan; the call fails only when every channel fails.
func (d *Driver) ReadRange(ctx context.Context, first, last int) ([]ChannelReading, error) {
	if last < first {
		return nil, fmt.Errorf("invalid channel range %d..%d", first, last)
	}

	readings := make([]ChannelReading, 0, last-first+1)
	readable := 0
	for channel := first; channel <= last; channel++ {
		value, err := d.gateway.ReadTemperature(ctx, d.board, channel, d.units)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.logger.Debug("Channel unavailable during scan",
				zap.Int("channel", channel),
				zap.Error(err),
			)
			readings = append(readings, ChannelReading{Channel: channel, Err: err})
			continue
		}
		readings = append(readings, ChannelReading{Channel: channel, Value: value})
		readable++
	}

	if readable == 0 {
		d.noteError(ErrNoChannels)
		return readings, fmt.Errorf("scan %d..%d: %w", first, last, ErrNoChannels)
	}
	d.touch()
	return readings, nil
}

// Average reads channels [first, last] and returns the mean of the
// readable ones.
func (d *Driver) Average(ctx context.Context, first, last int) (float64, error) {
	readings, err := d.ReadRange(ctx, first, last)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	count := 0
	for _, r := range readings {
		if r.Err == nil {
			sum += r.Value
			count++
		}
	}
	return sum / float64(count), nil
}

// GetInstrumentInfo describes the instrument
func (d *Driver) GetInstrumentInfo() (*driver.InstrumentInfo, error) {
	return &driver.InstrumentInfo{
		Brand:          "Measurement Computing",
		Model:          "Web-TC",
		ConnectionType: model.ConnectionTypeTCP,
		Manufacturer:   "Measurement Computing Corporation",
	}, nil
}

// GetStatus returns a health snapshot
func (d *Driver) GetStatus() (*driver.InstrumentStatus, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	status := model.InstrumentStatusOffline
	if d.isConnected {
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

func (d *Driver) touch() {
	d.mutex.Lock()
	d.lastActivity = time.Now()
	d.mutex.Unlock()
}

func (d *Driver) noteError(err error) {
	d.mutex.Lock()
	d.errorCount++
	d.lastError = err.Error()
	d.mutex.Unlock()
}
