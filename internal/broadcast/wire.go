package broadcast

import (
	"encoding/json"

	"github.com/antoszy/eeg/internal/eeg"
)

// message is the outbound wire representation of one analysis frame. All
// channel-keyed maps contain exactly the active-channel names; the shared
// frequency vector appears once, under the "freqs" key of the fft map.
type message struct {
	Timestamp     float64                       `json:"timestamp"`
	Raw           map[string][]float64          `json:"raw"`
	FFT           map[string][]float64          `json:"fft"`
	BandPowers    map[string]map[string]float64 `json:"band_powers"`
	SignalQuality map[string]float64            `json:"signal_quality"`
}

// EncodeFrame marshals a frame once per tick; the same payload bytes are
// then queued to every subscriber.
func EncodeFrame(f *eeg.Frame) ([]byte, error) {
	m := message{
		Timestamp:     f.Timestamp,
		Raw:           make(map[string][]float64, len(f.Channels)),
		FFT:           make(map[string][]float64, len(f.Channels)+1),
		BandPowers:    make(map[string]map[string]float64, len(f.Channels)),
		SignalQuality: make(map[string]float64, len(f.Channels)),
	}
	m.FFT["freqs"] = f.Freqs
	for name, ch := range f.Channels {
		m.Raw[name] = ch.Raw
		m.FFT[name] = ch.PSD
		m.BandPowers[name] = ch.BandPowers
		m.SignalQuality[name] = ch.Quality
	}
	return json.Marshal(m)
}
