package gm3

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDriver(conn *fakeConn) *Driver {
	return NewDriver("gm3-test", conn, RetryPolicy{MaxAttempts: 4}, zap.NewNop())
}

func TestDriver_StreamSample(t *testing.T) {
	conn := &fakeConn{}
	payload := make([]byte, 0, 30)
	for i, digits := range []uint32{3, 1200, 2500, 0, 2800} {
		exp := uint8(0)
		if i > 0 {
			exp = 3
		}
		payload = append(payload, encodeSection(Sample{Sign: 1, Digits: digits, Exponent: exp})...)
	}
	conn.respond(payload, AckReceived)

	d := newTestDriver(conn)
	vector, err := d.StreamSample(context.Background())
	require.NoError(t, err)
	require.Len(t, vector, 5)

	values := vector.Values()
	assert.True(t, values[0].Equal(decimal.RequireFromString("3")))
	assert.True(t, values[1].Equal(decimal.RequireFromString("1.2")))
	assert.True(t, values[4].Equal(decimal.RequireFromString("2.8")))
}

func TestDriver_Properties_ColonSeparators(t *testing.T) {
	conn := &fakeConn{}
	conn.respond([]byte("model:GM3:fw:2.01:sn"), AckReceived)
	conn.respond([]byte(":0042:cal:2022-04-07"), AckDone)

	d := newTestDriver(conn)
	report, err := d.Properties(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "model\nGM3\nfw\n2.01\nsn\n0042\ncal\n2022-04-07", report)
}

func TestDriver_FieldReading(t *testing.T) {
	d := newTestDriver(&fakeConn{})

	vector := MeasurementVector{
		{Sign: 1, Digits: 7, Exponent: 0},
		{Sign: 1, Digits: 105, Exponent: 2},
		{Sign: -1, Digits: 230, Exponent: 2},
		{Sign: 1, Digits: 0, Exponent: 0},
		{Sign: 1, Digits: 253, Exponent: 2},
	}

	reading, err := d.FieldReading(vector)
	require.NoError(t, err)
	assert.Equal(t, "gm3-test", reading.InstrumentID)
	assert.True(t, reading.TimeIndex.Equal(decimal.RequireFromString("7")))
	assert.True(t, reading.X.Equal(decimal.RequireFromString("1.05")))
	assert.True(t, reading.Y.Equal(decimal.RequireFromString("-2.3")))
	assert.True(t, reading.Z.Equal(decimal.Zero))
	assert.True(t, reading.Magnitude.Equal(decimal.RequireFromString("2.53")))

	_, err = d.FieldReading(vector[:4])
	require.ErrorIs(t, err, ErrUnexpectedVectorLength)
}

func TestDriver_FieldReading_AssignsDistinctIDs(t *testing.T) {
	d := newTestDriver(&fakeConn{})

	vector := MeasurementVector{
		{Sign: 1, Digits: 1, Exponent: 0},
		{Sign: 1, Digits: 2, Exponent: 0},
		{Sign: 1, Digits: 3, Exponent: 0},
		{Sign: 1, Digits: 4, Exponent: 0},
		{Sign: 1, Digits: 5, Exponent: 0},
	}

	first, err := d.FieldReading(vector)
	require.NoError(t, err)
	second, err := d.FieldReading(vector)
	require.NoError(t, err)

	// The store keys rows by this ID; a zero or repeated value would
	// collide on the second insert.
	require.NotEqual(t, uuid.Nil, first.ID)
	require.NotEqual(t, uuid.Nil, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestDriver_KillAllProcesses_NoError(t *testing.T) {
	conn := &fakeConn{}
	d := newTestDriver(conn)

	// Fire-and-forget: nothing queued to read, nothing returned.
	d.KillAllProcesses(context.Background())
	require.Len(t, conn.writes, 1)
	assert.Equal(t, byte(0xFF), conn.writes[0][0])
}
