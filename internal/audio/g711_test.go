package audio

import (
	"math"
	"testing"
)

func TestUlawRoundTrip(t *testing.T) {
	// A μ-law encode/decode cycle keeps a full-scale sine wave close to
	// the original; the codec is log-quantized, not lossless.
	n := 160
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.5 * float32(math.Sin(2*math.Pi*float64(i)/float64(n)))
	}

	decoded := DecodeUlaw(EncodeUlaw(samples))
	if len(decoded) != n {
		t.Fatalf("len = %d, want %d", len(decoded), n)
	}
	for i := range samples {
		if diff := math.Abs(float64(samples[i] - decoded[i])); diff > 0.02 {
			t.Fatalf("sample %d: %f vs %f (diff %f)", i, samples[i], decoded[i], diff)
		}
	}
}

func TestUlawSilence(t *testing.T) {
	decoded := DecodeUlaw(EncodeUlaw(make([]float32, 8)))
	for i, s := range decoded {
		if math.Abs(float64(s)) > 0.001 {
			t.Fatalf("sample %d of silence decoded to %f", i, s)
		}
	}
}

func TestEncodeUlawClips(t *testing.T) {
	out := EncodeUlaw([]float32{2.0, -2.0})
	back := DecodeUlaw(out)
	if back[0] < 0.9 || back[1] > -0.9 {
		t.Fatalf("clipped extremes decoded to %v", back)
	}
}
