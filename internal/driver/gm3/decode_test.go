package gm3

import (
	"encoding/binary"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeSection(s Sample) []byte {
	section := make([]byte, sectionSize)
	section[1] = s.Exponent & 0x07
	if s.Sign < 0 {
		section[1] |= 0x08
	}
	binary.BigEndian.PutUint32(section[2:6], s.Digits)
	return section
}

func TestDecodeVector_Sections(t *testing.T) {
	tests := []struct {
		description string
		section     []byte
		expected    string
	}{
		{
			description: "positive, exponent 0",
			section:     []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x64},
			expected:    "100",
		},
		{
			description: "negative, exponent 0",
			section:     []byte{0x02, 0x08, 0x00, 0x00, 0x00, 0x64},
			expected:    "-100",
		},
		{
			description: "positive, exponent 2",
			section:     []byte{0x00, 0x02, 0x00, 0x00, 0x00, 0x64},
			expected:    "1",
		},
		{
			description: "negative, exponent 3",
			section:     []byte{0x00, 0x0B, 0x00, 0x00, 0x03, 0xE8},
			expected:    "-1",
		},
		{
			description: "max exponent 7",
			section:     []byte{0x00, 0x07, 0x00, 0xBC, 0x61, 0x4E},
			expected:    "1.2345678",
		},
		{
			description: "zero digits",
			section:     []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected:    "0",
		},
		{
			description: "max digits",
			section:     []byte{0x00, 0x0F, 0xFF, 0xFF, 0xFF, 0xFF},
			expected:    "-429.4967295",
		},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			vector, err := DecodeVector(tt.section)
			require.NoError(t, err)
			require.Len(t, vector, 1)

			expected := decimal.RequireFromString(tt.expected)
			assert.True(t, vector[0].Value().Equal(expected),
				"got %s, want %s", vector[0].Value(), expected)
		})
	}
}

func TestDecodeVector_SampleCount(t *testing.T) {
	payload := make([]byte, 0, 30)
	for i := 0; i < 5; i++ {
		payload = append(payload, encodeSection(Sample{Sign: 1, Digits: uint32(i), Exponent: 1})...)
	}

	vector, err := DecodeVector(payload)
	require.NoError(t, err)
	require.Len(t, vector, 5)

	for i, sample := range vector {
		assert.Equal(t, uint32(i), sample.Digits)
		assert.Equal(t, uint8(1), sample.Exponent)
	}
}

func TestDecodeVector_MisalignedPayload(t *testing.T) {
	for _, length := range []int{1, 7, 11, 61} {
		_, err := DecodeVector(make([]byte, length))
		require.ErrorIs(t, err, ErrMisalignedPayload, "length %d", length)
	}
}

func TestDecodeVector_EmptyPayload(t *testing.T) {
	vector, err := DecodeVector(nil)
	require.NoError(t, err)
	assert.Empty(t, vector)
}

func TestSample_RoundTrip(t *testing.T) {
	samples := []Sample{
		{Sign: 1, Digits: 100, Exponent: 0},
		{Sign: -1, Digits: 100, Exponent: 0},
		{Sign: 1, Digits: 12345, Exponent: 7},
		{Sign: -1, Digits: 4294967295, Exponent: 7},
		{Sign: 1, Digits: 0, Exponent: 3},
	}

	for _, sample := range samples {
		vector, err := DecodeVector(encodeSection(sample))
		require.NoError(t, err)
		require.Len(t, vector, 1)

		assert.True(t, vector[0].Value().Equal(sample.Value()),
			"round trip changed value: %s != %s", vector[0].Value(), sample.Value())
	}
}

func TestMeasurementVector_Values(t *testing.T) {
	vector := MeasurementVector{
		{Sign: 1, Digits: 15, Exponent: 1},
		{Sign: -1, Digits: 250, Exponent: 2},
	}

	values := vector.Values()
	require.Len(t, values, 2)
	assert.True(t, values[0].Equal(decimal.RequireFromString("1.5")))
	assert.True(t, values[1].Equal(decimal.RequireFromString("-2.5")))
}
