// internal/driver/gm3/decode.go
package gm3

import (
	"encoding/binary"
	"fmt"

	"github.com/shopspring/decimal"
)

// sectionSize is the wire size of one encoded sample
const sectionSize = 6

// Sample is one decoded sign-magnitude fixed-point measurement.
// Byte 1 of a section carries the sign in bit 3 and the decimal exponent
// in bits 0-2 (a negative power of ten, 0-7); bytes 2-5 carry the
// unsigned digit magnitude big-endian.
type Sample struct {
	Sign     int    `json:"sign"`
	Digits   uint32 `json:"digits"`
	Exponent uint8  `json:"exponent"`
}

// Value reconstructs the measurement exactly: sign × digits × 10^(−exponent).
// Integer digits with a power-of-ten scale, so no float drift even at the
// maximum exponent of 7.
func (s Sample) Value() decimal.Decimal {
	d := decimal.New(int64(s.Digits), -int32(s.Exponent))
	if s.Sign < 0 {
		return d.Neg()
	}
	return d
}

// MeasurementVector is an ordered sequence of decoded samples. For
// streamed data the positions are time, x, y, z, magnitude; for other
// commands the order carries no meaning.
type MeasurementVector []Sample

// Values returns the exact decimal value of every sample in order
func (v MeasurementVector) Values() []decimal.Decimal {
	out := make([]decimal.Decimal, len(v))
	for i, s := range v {
		out[i] = s.Value()
	}
	return out
}

// DecodeVector partitions payload into 6-byte sections and decodes one
// sample per section.
func DecodeVector(payload []byte) (MeasurementVector, error) {
	if len(payload)%sectionSize != 0 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrMisalignedPayload, len(payload))
	}

	vector := make(MeasurementVector, 0, len(payload)/sectionSize)
	for i := 0; i < len(payload); i += sectionSize {
		vector = append(vector, decodeSection(payload[i:i+sectionSize]))
	}
	return vector, nil
}

func decodeSection(section []byte) Sample {
	sign := 1
	if section[1]&0x08 != 0 {
		sign = -1
	}
	return Sample{
		Sign:     sign,
		Digits:   binary.BigEndian.Uint32(section[2:6]),
		Exponent: section[1] & 0x07,
	}
}
