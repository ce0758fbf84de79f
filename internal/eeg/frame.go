// Package eeg holds the channel analysis domain model and the pipeline that
// turns a raw multichannel sample snapshot into a complete analysis frame.
package eeg

import "github.com/antoszy/eeg/internal/dsp"

// ChannelAnalysis is the per-channel slice of an analysis frame.
type ChannelAnalysis struct {
	// Raw holds the most recent raw samples for incremental display.
	Raw []float64

	// PSD holds the channel's power spectral density amplitudes, aligned
	// index-for-index with the frame's shared Freqs vector.
	PSD []float64

	// BandPowers maps every catalogue band name to its integrated power.
	BandPowers map[string]float64

	// Quality is the heuristic signal quality score in [0, 1].
	Quality float64
}

// Frame is the complete analysis result for one tick, covering all active
// channels. A frame is assembled once, never mutated afterwards, and
// discarded after delivery attempts complete.
type Frame struct {
	// Timestamp is wall-clock seconds at frame assembly start.
	Timestamp float64

	// Freqs is the frequency bin vector shared by every channel's PSD.
	// It is computed once per frame, not per channel.
	Freqs []float64

	// Channels maps active channel names to their analysis.
	Channels map[string]ChannelAnalysis
}

// degenerateChannel returns the well-formed "insufficient data" placeholder:
// empty vectors, zeroed catalogue band powers, quality 0. Consumers treat it
// as "not enough data yet", never as an error.
func degenerateChannel() ChannelAnalysis {
	powers := make(map[string]float64, len(dsp.Bands))
	for _, b := range dsp.Bands {
		powers[b.Name] = 0.0
	}
	return ChannelAnalysis{
		Raw:        []float64{},
		PSD:        []float64{},
		BandPowers: powers,
		Quality:    0.0,
	}
}
