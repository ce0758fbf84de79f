package eeg

import (
	"log"

	"github.com/antoszy/eeg/internal/dsp"
	"github.com/antoszy/eeg/internal/timeutil"
)

// Pipeline applies spectral analysis to every active channel of a sample
// snapshot and assembles a single Frame. It holds no per-frame state and is
// safe for concurrent use.
type Pipeline struct {
	analyzer *dsp.Analyzer
	rawTail  int
	clock    timeutil.Clock
	logger   *log.Logger
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	// Analyzer performs the per-channel spectral work. Required.
	Analyzer *dsp.Analyzer

	// RawTail is the number of most-recent raw samples included per channel.
	// 0 means the whole row.
	RawTail int

	// Clock supplies frame timestamps. Defaults to timeutil.RealClock.
	Clock timeutil.Clock

	// Logger is optional; if nil, uses log.Default().
	Logger *log.Logger
}

// NewPipeline creates a Pipeline from cfg.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		analyzer: cfg.Analyzer,
		rawTail:  cfg.RawTail,
		clock:    clock,
		logger:   logger,
	}
}

// Process analyses one snapshot. data is row-major by physical channel index
// (channelCount x sampleCount) and is treated as immutable: each analysed
// row is copied before use. indices and names pair by position; an index out
// of range for the snapshot skips that channel without aborting the rest.
//
// Snapshots shorter than dsp.MinWindow samples yield a frame where every
// named channel carries the degenerate placeholder, so the broadcast path
// always emits a well-formed frame even before the source buffer has filled.
func (p *Pipeline) Process(data [][]float64, indices []int, names []string, rate int) *Frame {
	frame := &Frame{
		Timestamp: float64(p.clock.Now().UnixNano()) / 1e9,
		Freqs:     []float64{},
		Channels:  make(map[string]ChannelAnalysis, len(names)),
	}

	numSamples := 0
	if len(data) > 0 {
		numSamples = len(data[0])
	}
	if numSamples < dsp.MinWindow {
		for _, name := range names {
			frame.Channels[name] = degenerateChannel()
		}
		return frame
	}

	freqsSet := false
	for i, idx := range indices {
		if i >= len(names) {
			break
		}
		name := names[i]
		if idx < 0 || idx >= len(data) {
			p.logger.Printf("pipeline: channel %q index %d out of range for %d-row snapshot, skipping", name, idx, len(data))
			continue
		}

		row := make([]float64, len(data[idx]))
		copy(row, data[idx])

		raw := row
		if p.rawTail > 0 && len(row) > p.rawTail {
			raw = row[len(row)-p.rawTail:]
		}

		freqs, psd := p.analyzer.PSD(row, rate)
		if !freqsSet {
			frame.Freqs = freqs
			freqsSet = true
		} else if len(psd) != len(frame.Freqs) {
			// A channel whose truncation disagrees with the frame's shared
			// bin vector cannot be aligned after the fact. Fold it to the
			// degenerate placeholder rather than ship misaligned amplitudes.
			p.logger.Printf("pipeline: channel %q PSD length %d does not match shared freqs length %d, degrading", name, len(psd), len(frame.Freqs))
			frame.Channels[name] = degenerateChannel()
			continue
		}

		frame.Channels[name] = ChannelAnalysis{
			Raw:        raw,
			PSD:        psd,
			BandPowers: p.analyzer.BandPowers(row, rate),
			Quality:    p.analyzer.QualityScore(row, rate),
		}
	}

	return frame
}
