package broadcast

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/antoszy/eeg/internal/eeg"
)

func TestEncodeFrame(t *testing.T) {
	frame := &eeg.Frame{
		Timestamp: 1723456789.25,
		Freqs:     []float64{0, 1, 2},
		Channels: map[string]eeg.ChannelAnalysis{
			"TP9": {
				Raw:        []float64{1.5, -2.25},
				PSD:        []float64{0.1, 0.2, 0.3},
				BandPowers: map[string]float64{"alpha": 4.5, "beta": 0.25},
				Quality:    0.8,
			},
			"AF7": {
				Raw:        []float64{},
				PSD:        []float64{0, 0, 0},
				BandPowers: map[string]float64{"alpha": 0, "beta": 0},
				Quality:    0,
			},
		},
	}

	payload, err := EncodeFrame(frame)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &decoded))
	for _, key := range []string{"timestamp", "raw", "fft", "band_powers", "signal_quality"} {
		require.Contains(t, decoded, key)
	}

	var msg struct {
		Timestamp     float64                       `json:"timestamp"`
		Raw           map[string][]float64          `json:"raw"`
		FFT           map[string][]float64          `json:"fft"`
		BandPowers    map[string]map[string]float64 `json:"band_powers"`
		SignalQuality map[string]float64            `json:"signal_quality"`
	}
	require.NoError(t, json.Unmarshal(payload, &msg))

	require.Equal(t, frame.Timestamp, msg.Timestamp)

	if diff := cmp.Diff(frame.Freqs, msg.FFT["freqs"]); diff != "" {
		t.Errorf("freqs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(frame.Channels["TP9"].PSD, msg.FFT["TP9"]); diff != "" {
		t.Errorf("TP9 spectrum mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(frame.Channels["TP9"].BandPowers, msg.BandPowers["TP9"]); diff != "" {
		t.Errorf("TP9 band powers mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, msg.Raw, 2)
	require.Len(t, msg.SignalQuality, 2)
	require.Equal(t, 0.8, msg.SignalQuality["TP9"])
	require.Equal(t, 0.0, msg.SignalQuality["AF7"])
}
