package audio

import "math"

var ulawTable [256]int16

func init() {
	for i := range 256 {
		ulawTable[i] = decodeUlawSample(byte(i))
	}
}

func decodeUlawSample(b byte) int16 {
	b = ^b
	sign := int16(1)
	if b&0x80 != 0 {
		sign = -1
		b &= 0x7F
	}
	exponent := int16((b >> 4) & 0x07)
	mantissa := int16(b & 0x0F)
	sample := (mantissa<<3 + 0x84) << exponent
	sample -= 0x84
	return sign * sample
}

const (
	ulawBias = 0x84
	ulawClip = 32635
)

func encodeUlawSample(sample int16) byte {
	s := int32(sample)
	sign := int32(0)
	if s < 0 {
		sign = 0x80
		s = -s
	}
	if s > ulawClip {
		s = ulawClip
	}
	s += ulawBias

	exponent := int32(7)
	for mask := int32(0x4000); exponent > 0 && s&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := (s >> (exponent + 3)) & 0x0F

	return ^byte(sign | exponent<<4 | mantissa)
}

// DecodeUlaw converts G.711 μ-law bytes to float32 PCM samples in [-1, 1].
func DecodeUlaw(data []byte) []float32 {
	samples := make([]float32, len(data))
	for i, b := range data {
		samples[i] = float32(ulawTable[b]) / math.MaxInt16
	}
	return samples
}

// EncodeUlaw converts float32 PCM samples in [-1, 1] to G.711 μ-law bytes.
func EncodeUlaw(samples []float32) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		clamped := max(float32(-1.0), min(float32(1.0), s))
		out[i] = encodeUlawSample(int16(clamped * math.MaxInt16))
	}
	return out
}
