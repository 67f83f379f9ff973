package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"instrument-service/internal/config"
	"instrument-service/internal/driver/gm3"
	"instrument-service/internal/model"
)

// scriptedConn replays gaussmeter exchanges: every Write is answered by
// the next scripted payload and ack on subsequent Reads.
type scriptedConn struct {
	mutex   sync.Mutex
	open    bool
	pending []byte
	payload []byte
	ack     byte
}

func newScriptedConn(payload []byte, ack byte) *scriptedConn {
	return &scriptedConn{payload: payload, ack: ack}
}

func (c *scriptedConn) Open(ctx context.Context) error { c.open = true; return nil }
func (c *scriptedConn) Close() error                   { c.open = false; return nil }
func (c *scriptedConn) IsOpen() bool                   { return c.open }

func (c *scriptedConn) Write(ctx context.Context, data []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.pending = append(append([]byte{}, c.payload...), c.ack)
	return nil
}

func (c *scriptedConn) Read(ctx context.Context, n int) ([]byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	out := c.pending[:n]
	c.pending = c.pending[n:]
	return out, nil
}

func (c *scriptedConn) GetConnectionType() model.ConnectionType {
	return model.ConnectionTypeSerial
}

// memMeasurementRepo records created readings in memory
type memMeasurementRepo struct {
	mutex     sync.Mutex
	created   []*model.FieldReading
	lastLimit int
}

func (r *memMeasurementRepo) Create(ctx context.Context, reading *model.FieldReading) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	// Behave like the real table: id is the primary key.
	if reading.ID == uuid.Nil {
		return fmt.Errorf("reading id is not set")
	}
	for _, existing := range r.created {
		if existing.ID == reading.ID {
			return fmt.Errorf("duplicate reading id %s", reading.ID)
		}
	}
	r.created = append(r.created, reading)
	return nil
}

func (r *memMeasurementRepo) ListByInstrument(ctx context.Context, instrumentID string, limit int) ([]*model.FieldReading, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.lastLimit = limit
	return r.created, nil
}

func (r *memMeasurementRepo) ListSince(ctx context.Context, instrumentID string, since time.Time) ([]*model.FieldReading, error) {
	return nil, nil
}

func (r *memMeasurementRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// memPublisher records published events
type memPublisher struct {
	mutex  sync.Mutex
	events []*model.InstrumentEvent
}

func (p *memPublisher) Publish(event *model.InstrumentEvent) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.events = append(p.events, event)
}

func (p *memPublisher) byType(eventType string) []*model.InstrumentEvent {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	matched := make([]*model.InstrumentEvent, 0)
	for _, event := range p.events {
		if event.EventType == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

// streamPayload builds a 30-byte all-zero measurement vector
func streamPayload() []byte {
	return make([]byte, 30)
}

func testInstrumentService(conn *scriptedConn) (*InstrumentService, *memMeasurementRepo, *memPublisher) {
	cfg := &config.Config{}
	cfg.Gaussmeter.InstrumentID = "gm3-test"
	cfg.Gaussmeter.PollInterval = 10 * time.Millisecond

	repo := &memMeasurementRepo{}
	publisher := &memPublisher{}
	gaussmeter := gm3.NewDriver("gm3-test", conn, gm3.RetryPolicy{MaxAttempts: 3}, zap.NewNop())
	svc := NewInstrumentService(cfg, repo, publisher, gaussmeter, nil, nil, zap.NewNop())
	return svc, repo, publisher
}

func TestInstrumentService_Sample_PersistsAndPublishes(t *testing.T) {
	conn := newScriptedConn(streamPayload(), 0x08)
	svc, repo, publisher := testInstrumentService(conn)
	require.NoError(t, svc.ConnectAll(context.Background()))

	reading, err := svc.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gm3-test", reading.InstrumentID)
	assert.True(t, reading.Magnitude.IsZero())

	require.Len(t, repo.created, 1)
	assert.Equal(t, reading, repo.created[0])

	measurements := publisher.byType(model.EventTypeMeasurement)
	require.Len(t, measurements, 1)
	assert.Equal(t, "0", measurements[0].Data["magnitude"])
}

func TestInstrumentService_ConnectAll_PublishesLifecycle(t *testing.T) {
	conn := newScriptedConn(streamPayload(), 0x08)
	svc, _, publisher := testInstrumentService(conn)

	require.NoError(t, svc.ConnectAll(context.Background()))
	require.Len(t, publisher.byType(model.EventTypeConnected), 1)

	require.NoError(t, svc.DisconnectAll(context.Background()))
	require.Len(t, publisher.byType(model.EventTypeDisconnected), 1)
}

func TestInstrumentService_Polling_CollectsReadings(t *testing.T) {
	conn := newScriptedConn(streamPayload(), 0x08)
	svc, repo, _ := testInstrumentService(conn)
	require.NoError(t, svc.ConnectAll(context.Background()))

	svc.StartPolling(context.Background())
	defer svc.StopPolling()

	require.Eventually(t, func() bool {
		repo.mutex.Lock()
		defer repo.mutex.Unlock()
		return len(repo.created) >= 2
	}, time.Second, 5*time.Millisecond)

	svc.StopPolling()
	// idempotent
	svc.StopPolling()
}

func TestInstrumentService_Readings_ClampsLimit(t *testing.T) {
	conn := newScriptedConn(streamPayload(), 0x08)
	svc, repo, _ := testInstrumentService(conn)

	_, err := svc.Readings(context.Background(), "gm3-test", 0)
	require.NoError(t, err)
	assert.Equal(t, 100, repo.lastLimit)

	_, err = svc.Readings(context.Background(), "gm3-test", 5000)
	require.NoError(t, err)
	assert.Equal(t, 100, repo.lastLimit)
}

func TestInstrumentService_Sample_WithoutGaussmeter(t *testing.T) {
	cfg := &config.Config{}
	svc := NewInstrumentService(cfg, &memMeasurementRepo{}, nil, nil, nil, nil, zap.NewNop())

	_, err := svc.Sample(context.Background())
	require.Error(t, err)
	assert.Empty(t, svc.Instruments())
}
