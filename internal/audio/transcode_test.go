package audio

import (
	"math"
	"testing"
)

func sine(n int, freq float64, rate int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = 0.4 * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestToTransportPassesThroughUlaw(t *testing.T) {
	payload := []byte{0xff, 0x7f, 0x00}
	got, err := ToTransport(payload, FormatULaw8000)
	if err != nil {
		t.Fatalf("ToTransport: %v", err)
	}
	if &got[0] != &payload[0] {
		t.Fatal("ulaw payload was copied instead of passed through")
	}
}

func TestToTransportTranscodesWAV(t *testing.T) {
	// 24 kHz source, as the synthesis API produces, down to the 8 kHz
	// transport rate.
	const srcRate = 24000
	samples := sine(srcRate/10, 440, srcRate)
	wav := SamplesToWAV(samples, srcRate)

	got, err := ToTransport(wav, FormatWAV)
	if err != nil {
		t.Fatalf("ToTransport: %v", err)
	}

	want := len(samples) * TransportRate / srcRate
	if got == nil || abs(len(got)-want) > 2 {
		t.Fatalf("transcoded length = %d, want ~%d", len(got), want)
	}
}

func TestToTransportRejectsUnknownFormat(t *testing.T) {
	if _, err := ToTransport([]byte{1}, Format("mp3")); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	samples := sine(800, 200, 8000)
	data := SamplesToWAV(samples, 8000)

	got, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 8000 {
		t.Fatalf("rate = %d", rate)
	}
	if len(got) != len(samples) {
		t.Fatalf("len = %d, want %d", len(got), len(samples))
	}
	for i := range samples {
		if diff := math.Abs(float64(samples[i] - got[i])); diff > 0.001 {
			t.Fatalf("sample %d: %f vs %f", i, samples[i], got[i])
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
