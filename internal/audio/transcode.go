package audio

import "fmt"

// TransportRate is the sample rate the telephony transport expects.
const TransportRate = 8000

// Format identifies the encoding of a synthesized audio payload.
type Format string

const (
	// FormatULaw8000 is transport-ready G.711 μ-law at 8 kHz.
	FormatULaw8000 Format = "ulaw_8000"
	// FormatWAV is a RIFF/WAV container at whatever rate the backend produced.
	FormatWAV Format = "wav"
)

// ToTransport converts a synthesized payload to transport-ready 8 kHz μ-law.
// μ-law input passes through untouched; WAV input is decoded, resampled to the
// transport rate, and μ-law encoded.
func ToTransport(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatULaw8000:
		return data, nil
	case FormatWAV:
		samples, rate, err := DecodeWAV(data)
		if err != nil {
			return nil, fmt.Errorf("transcode: %w", err)
		}
		return EncodeUlaw(Resample(samples, rate, TransportRate)), nil
	default:
		return nil, fmt.Errorf("transcode: unsupported format %q", format)
	}
}
