package spd3303x

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"instrument-service/internal/model"
)

// fakeSession records commands and serves canned replies
type fakeSession struct {
	sent    []string
	replies map[string]string
}

func (f *fakeSession) Send(ctx context.Context, cmd string) error {
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeSession) Query(ctx context.Context, cmd string) (string, error) {
	f.sent = append(f.sent, cmd)
	return f.replies[cmd], nil
}

// fakeSocket satisfies transport.Connection for driver construction
type fakeSocket struct{ open bool }

func (f *fakeSocket) Open(ctx context.Context) error { f.open = true; return nil }
func (f *fakeSocket) Close() error                   { f.open = false; return nil }
func (f *fakeSocket) IsOpen() bool                   { return f.open }
func (f *fakeSocket) Write(ctx context.Context, data []byte) error {
	return nil
}
func (f *fakeSocket) Read(ctx context.Context, n int) ([]byte, error) {
	return make([]byte, n), nil
}
func (f *fakeSocket) GetConnectionType() model.ConnectionType {
	return model.ConnectionTypeTCP
}

func newTestDriver(t *testing.T, session *fakeSession) *Driver {
	t.Helper()
	d, err := NewDriver(Config{InstrumentID: "spd-test"}, &fakeSocket{}, session, zap.NewNop())
	require.NoError(t, err)
	return d
}

func TestDriver_SetVoltage_CommandFormat(t *testing.T) {
	session := &fakeSession{}
	d := newTestDriver(t, session)

	require.NoError(t, d.SetVoltage(context.Background(), 1, 3.5))
	require.Len(t, session.sent, 1)
	assert.Equal(t, "CH1:voltage 3.5", session.sent[0])
}

func TestDriver_SetVoltage_SoftRejectAboveLimit(t *testing.T) {
	session := &fakeSession{}
	d := newTestDriver(t, session)
	require.NoError(t, d.Limits().SetVoltageLimit(1, 12, 0))

	err := d.SetVoltage(context.Background(), 1, 15)
	require.ErrorIs(t, err, ErrAboveChannelLimit)
	assert.Empty(t, session.sent, "a rejected set-point must never reach the instrument")
}

func TestDriver_SetChannelState(t *testing.T) {
	session := &fakeSession{}
	d := newTestDriver(t, session)

	require.NoError(t, d.SetChannelState(context.Background(), 2, true))
	require.NoError(t, d.SetChannelState(context.Background(), 1, false))
	assert.Equal(t, []string{"Output CH2,ON", "Output CH1,OFF"}, session.sent)

	require.ErrorIs(t, d.SetChannelState(context.Background(), 3, true), ErrInvalidChannel)
}

func TestDriver_SystemStatus_ChannelBits(t *testing.T) {
	// Bit 4 (5th from the right) = CH1 output, bit 5 = CH2 output.
	session := &fakeSession{replies: map[string]string{"system:status?": "0x10"}}
	d := newTestDriver(t, session)

	on, err := d.ChannelEnabled(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, on)

	on, err = d.ChannelEnabled(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, on)

	session.replies["system:status?"] = "30"
	on, err = d.ChannelEnabled(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, on)
}

func TestDriver_SetVoltageLimit_ReadsLiveSetpoint(t *testing.T) {
	session := &fakeSession{replies: map[string]string{"CH1:voltage?": "10.000"}}
	d := newTestDriver(t, session)

	require.ErrorIs(t, d.SetVoltageLimit(context.Background(), 1, 5), ErrBelowLiveSetpoint)
	require.NoError(t, d.SetVoltageLimit(context.Background(), 1, 20))

	limit, err := d.Limits().VoltageLimit(1)
	require.NoError(t, err)
	assert.Equal(t, 20.0, limit)
}

func TestDriver_MeasuredQueries(t *testing.T) {
	session := &fakeSession{replies: map[string]string{
		"measure:voltage? CH1": "11.994",
		"measure:current? CH2": "0.512",
	}}
	d := newTestDriver(t, session)

	volts, err := d.MeasuredVoltage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 11.994, volts)

	amps, err := d.MeasuredCurrent(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 0.512, amps)
}

func TestDriver_ResetChannels(t *testing.T) {
	session := &fakeSession{}
	d := newTestDriver(t, session)

	require.NoError(t, d.ResetChannels(context.Background()))
	assert.Equal(t, []string{
		"Output CH1,OFF", "CH1:voltage 0",
		"Output CH2,OFF", "CH2:voltage 0",
	}, session.sent)
}

func TestDriver_ChannelSink_EnforcesLimit(t *testing.T) {
	session := &fakeSession{}
	d := newTestDriver(t, session)
	require.NoError(t, d.Limits().SetVoltageLimit(1, 12, 0))

	sink := d.ChannelSink(1)
	require.NoError(t, sink.SetOutputVoltage(context.Background(), 11))
	require.ErrorIs(t, sink.SetOutputVoltage(context.Background(), 13), ErrAboveChannelLimit)
	assert.Equal(t, []string{"CH1:voltage 11"}, session.sent)
}

func TestParseSystemStatus_Malformed(t *testing.T) {
	_, err := ParseSystemStatus("not-hex")
	require.Error(t, err)
}
