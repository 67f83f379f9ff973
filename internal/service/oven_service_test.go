package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"instrument-service/internal/config"
	"instrument-service/internal/control"
	"instrument-service/internal/driver/spd3303x"
	"instrument-service/internal/model"
	"instrument-service/pkg/driver"
)

// recordingSession captures every power supply command
type recordingSession struct {
	mutex sync.Mutex
	sent  []string
}

func (s *recordingSession) Send(ctx context.Context, cmd string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sent = append(s.sent, cmd)
	return nil
}

func (s *recordingSession) Query(ctx context.Context, cmd string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sent = append(s.sent, cmd)
	return "0", nil
}

func (s *recordingSession) commands() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]string{}, s.sent...)
}

type ovenSocket struct{ open bool }

func (f *ovenSocket) Open(ctx context.Context) error                { f.open = true; return nil }
func (f *ovenSocket) Close() error                                  { f.open = false; return nil }
func (f *ovenSocket) IsOpen() bool                                  { return f.open }
func (f *ovenSocket) Write(ctx context.Context, data []byte) error  { return nil }
func (f *ovenSocket) Read(ctx context.Context, n int) ([]byte, error) { return make([]byte, n), nil }
func (f *ovenSocket) GetConnectionType() model.ConnectionType       { return model.ConnectionTypeTCP }

// memControlRepo records control ticks in memory
type memControlRepo struct {
	mutex   sync.Mutex
	created []*model.ControlTick
}

func (r *memControlRepo) Create(ctx context.Context, tick *model.ControlTick) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.created = append(r.created, tick)
	return nil
}

func (r *memControlRepo) ListByInstrument(ctx context.Context, instrumentID string, limit int) ([]*model.ControlTick, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.created, nil
}

func (r *memControlRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (r *memControlRepo) count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.created)
}

func testOvenService(t *testing.T) (*OvenService, *recordingSession, *memControlRepo) {
	t.Helper()
	session := &recordingSession{}
	supply, err := spd3303x.NewDriver(spd3303x.Config{InstrumentID: "spd-test"}, &ovenSocket{}, session, zap.NewNop())
	require.NoError(t, err)

	cfg := &config.OvenConfig{
		InstrumentID:  "oven-test",
		SupplyChannel: 1,
		SamplePeriod:  10 * time.Millisecond,
	}
	source := driver.TemperatureSourceFunc(func(ctx context.Context) (float64, error) {
		return 25, nil
	})
	controller := control.NewOvenController(control.OvenConfig{
		InstrumentID:  cfg.InstrumentID,
		SupplyChannel: cfg.SupplyChannel,
		PID:           control.PIDConfig{Kp: 1, Ki: 0.03, SamplePeriod: cfg.SamplePeriod},
		Heater:        control.Heater{MaxTemperature: 200, MaxVolts: 12, MaxCurrent: 1, Resistance: 20},
	}, source, supply.ChannelSink(cfg.SupplyChannel), supply.Limits(), zap.NewNop())

	repo := &memControlRepo{}
	svc := NewOvenService(cfg, controller, supply, repo, &memPublisher{}, zap.NewNop())
	return svc, session, repo
}

func TestOvenService_StartStopLifecycle(t *testing.T) {
	svc, session, repo := testOvenService(t)
	require.NoError(t, svc.SetSetpoint(100))

	require.NoError(t, svc.Start(context.Background()))
	assert.True(t, svc.Running())
	require.Error(t, svc.Start(context.Background()), "double start is rejected")

	require.Eventually(t, func() bool { return repo.count() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, svc.Stop(context.Background()))
	assert.False(t, svc.Running())
	require.NoError(t, svc.Stop(context.Background()), "stop is idempotent")

	commands := session.commands()
	require.NotEmpty(t, commands)
	assert.Equal(t, "Output CH1,ON", commands[0])
	assert.Equal(t, "Output CH1,OFF", commands[len(commands)-1])
	assert.Equal(t, "CH1:voltage 0", commands[len(commands)-2], "heater drive is zeroed before the channel goes dark")
}

func TestOvenService_TicksStayInsideEnvelope(t *testing.T) {
	svc, _, repo := testOvenService(t)
	require.NoError(t, svc.SetSetpoint(200))

	require.NoError(t, svc.Start(context.Background()))
	require.Eventually(t, func() bool { return repo.count() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, svc.Stop(context.Background()))

	for _, tick := range repo.created {
		assert.LessOrEqual(t, tick.OutputVolts, 12.0)
		assert.GreaterOrEqual(t, tick.OutputVolts, 0.0)
		assert.Equal(t, "oven-test", tick.InstrumentID)
	}
	assert.NotNil(t, svc.LastTick())
}

func TestOvenService_SetSetpoint_ForwardsHeaterLimit(t *testing.T) {
	svc, _, _ := testOvenService(t)
	require.ErrorIs(t, svc.SetSetpoint(500), control.ErrAboveHeaterMax)
}
