// internal/driver/gm3/gm3_driver.go
package gm3

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"instrument-service/internal/model"
	"instrument-service/internal/transport"
	"instrument-service/internal/utils"
	"instrument-service/pkg/driver"
)

// Driver drives an AlphaLab GM3 gaussmeter over its binary serial
// protocol. It composes the acknowledge-retry session with the
// fixed-point decoder to produce calibrated measurement vectors.
type Driver struct {
	instrumentID string
	conn         transport.Connection
	session      *Session
	logger       *utils.InstrumentLogger

	mutex        sync.RWMutex
	isConnected  bool
	lastActivity time.Time
	lastError    string
}

// NewDriver creates a gaussmeter driver over the given transport
func NewDriver(instrumentID string, conn transport.Connection, policy RetryPolicy, logger *zap.Logger) *Driver {
	instrumentLogger := utils.NewInstrumentLogger(logger, instrumentID, string(model.InstrumentTypeGaussmeter))
	return &Driver{
		instrumentID: instrumentID,
		conn:         conn,
		session:      NewSession(conn, policy, instrumentLogger.Logger),
		logger:       instrumentLogger,
	}
}

// Connect opens the serial transport
func (d *Driver) Connect(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.isConnected {
		return nil
	}

	if err := d.conn.Open(ctx); err != nil {
		d.lastError = err.Error()
		d.logger.LogConnection("connect", err)
		return fmt.Errorf("gaussmeter connect failed: %w", err)
	}

	d.isConnected = true
	d.lastActivity = time.Now()
	d.logger.LogConnection("connect", nil)
	return nil
}

// Disconnect closes the transport. Closing also aborts any in-flight
// exchange, which is the only way to unstick an unacknowledged session.
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
		return fmt.Errorf("gaussmeter disconnect failed: %w", err)
	}
	return nil
}

// IsConnected reports whether the transport is open
func (d *Driver) IsConnected() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.isConnected && d.conn.IsOpen()
}

// Close releases the driver
func (d *Driver) Close() error {
	return d.Disconnect(context.Background())
}

// StreamSample queries an instantaneous field reading. The returned
// vector holds time index, x, y, z and magnitude in gauss; the time
// points only index the data, they carry no wall-clock meaning.
func (d *Driver) StreamSample(ctx context.Context) (MeasurementVector, error) {
	return d.sampleWith(ctx, CmdStreamData)
}

// ResetAndSample resets the instrument's time coordinate and returns the
// first reading of the new epoch.
func (d *Driver) ResetAndSample(ctx context.Context) (MeasurementVector, error) {
	return d.sampleWith(ctx, CmdResetTime)
}

func (d *Driver) sampleWith(ctx context.Context, cmd Command) (MeasurementVector, error) {
	start := time.Now()
	payload, err := d.session.Execute(ctx, cmd)
	d.logger.LogExchange(cmd.String(), time.Since(start), err)
	if err != nil {
		d.noteError(err)
		return nil, err
	}

	vector, err := DecodeVector(payload)
	if err != nil {
		d.noteError(err)
		return nil, fmt.Errorf("%s response: %w", cmd, err)
	}

	d.touch()
	return vector, nil
}

// Properties returns the instrument's property report. The instrument
// separates entries with colons; they are presented one per line.
func (d *Driver) Properties(ctx context.Context) (string, error) {
	return d.identity(ctx, CmdIdentifyProperties)
}

// Settings returns the instrument's settings report, one entry per line
func (d *Driver) Settings(ctx context.Context) (string, error) {
	return d.identity(ctx, CmdIdentifySettings)
}

func (d *Driver) identity(ctx context.Context, cmd Command) (string, error) {
	start := time.Now()
	payload, err := d.session.Execute(ctx, cmd)
	d.logger.LogExchange(cmd.String(), time.Since(start), err)
	if err != nil {
		d.noteError(err)
		return "", err
	}

	d.touch()
	return strings.ReplaceAll(string(payload), ":", "\n"), nil
}

// KillAllProcesses tells the instrument to stop everything it is doing.
// Fire and forget: the instrument sends no acknowledgment, and transport
// failures are only logged. Callers cannot tell whether it worked.
func (d *Driver) KillAllProcesses(ctx context.Context) {
	if err := d.session.SendRaw(ctx, CmdKillAllProcesses); err != nil {
		d.logger.Warn("Kill command may not have reached the instrument", zap.Error(err))
		return
	}
	d.touch()
}

// FieldReading converts a streamed vector into a persistable record
func (d *Driver) FieldReading(vector MeasurementVector) (*model.FieldReading, error) {
	if len(vector) != len(model.StreamComponents) {
		return nil, fmt.Errorf("%w: got %d", ErrUnexpectedVectorLength, len(vector))
	}

	values := vector.Values()
	return &model.FieldReading{
		ID:           uuid.New(),
		InstrumentID: d.instrumentID,
		TimeIndex:    values[0],
		X:            values[1],
		Y:            values[2],
		Z:            values[3],
		Magnitude:    values[4],
		RecordedAt:   time.Now(),
	}, nil
}

// GetInstrumentInfo describes the instrument
func (d *Driver) GetInstrumentInfo() (*driver.InstrumentInfo, error) {
	return &driver.InstrumentInfo{
		Brand:          "AlphaLab",
		Model:          "GM3",
		ConnectionType: d.conn.GetConnectionType(),
		Manufacturer:   "AlphaLab Inc.",
	}, nil
}

// GetStatus returns a health snapshot including the protocol error counter
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
		ErrorCount:   d.session.ErrorCount(),
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
	d.lastError = err.Error()
	d.mutex.Unlock()
}
