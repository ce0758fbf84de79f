package eeg

import (
	"bytes"
	"log"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoszy/eeg/internal/dsp"
	"github.com/antoszy/eeg/internal/timeutil"
)

// sineSnapshot builds a row-major snapshot with numRows rows and n samples
// per row. Rows listed in active carry a 10 Hz sinusoid, others stay zero.
func sineSnapshot(numRows, n, rate int, active []int) [][]float64 {
	data := make([][]float64, numRows)
	for r := range data {
		data[r] = make([]float64, n)
	}
	for _, row := range active {
		for i := 0; i < n; i++ {
			t := float64(i) / float64(rate)
			data[row][i] = 35 * math.Sin(2*math.Pi*10*t)
		}
	}
	return data
}

func newTestPipeline(rawTail int) (*Pipeline, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewPipeline(PipelineConfig{
		Analyzer: dsp.NewAnalyzer(dsp.Config{}),
		RawTail:  rawTail,
		Clock:    timeutil.NewMockClock(time.Unix(1700000000, 500000000)),
		Logger:   log.New(&buf, "", 0),
	}), &buf
}

func TestProcess_FrameShape(t *testing.T) {
	const rate = 256
	p, _ := newTestPipeline(64)
	data := sineSnapshot(6, 4*rate, rate, []int{1, 2, 3, 4})

	frame := p.Process(data, []int{1, 2, 3, 4}, []string{"TP9", "AF7", "AF8", "TP10"}, rate)

	assert.InDelta(t, 1700000000.5, frame.Timestamp, 1e-9)
	require.Len(t, frame.Channels, 4)
	require.NotEmpty(t, frame.Freqs)

	for name, ch := range frame.Channels {
		assert.Len(t, ch.PSD, len(frame.Freqs), "channel %s PSD must align with the shared freqs", name)
		assert.Len(t, ch.Raw, 64, "channel %s raw tail", name)
		assert.GreaterOrEqual(t, ch.Quality, 0.0)
		assert.LessOrEqual(t, ch.Quality, 1.0)
		for _, band := range dsp.BandNames() {
			assert.Contains(t, ch.BandPowers, band)
		}
	}

	// The sinusoid sits in alpha, so alpha must dominate on every channel.
	for name, ch := range frame.Channels {
		for _, band := range []string{"delta", "theta", "beta", "gamma"} {
			assert.Greater(t, ch.BandPowers["alpha"], ch.BandPowers[band],
				"channel %s: alpha should dominate %s", name, band)
		}
	}
}

func TestProcess_ShortSnapshotYieldsDegenerateFrame(t *testing.T) {
	const rate = 256
	p, _ := newTestPipeline(0)
	data := sineSnapshot(6, dsp.MinWindow-1, rate, []int{1, 2})

	names := []string{"TP9", "AF7", "AF8", "TP10"}
	frame := p.Process(data, []int{1, 2, 3, 4}, names, rate)

	require.Len(t, frame.Channels, len(names), "every named channel gets a placeholder")
	for _, name := range names {
		ch, ok := frame.Channels[name]
		require.True(t, ok)
		assert.Empty(t, ch.Raw)
		assert.Empty(t, ch.PSD)
		assert.Equal(t, 0.0, ch.Quality)
		for _, band := range dsp.BandNames() {
			assert.Equal(t, 0.0, ch.BandPowers[band])
		}
	}
	assert.Empty(t, frame.Freqs)
}

func TestProcess_EmptySnapshot(t *testing.T) {
	p, _ := newTestPipeline(0)
	frame := p.Process(nil, []int{1}, []string{"TP9"}, 256)
	require.Len(t, frame.Channels, 1)
	assert.Empty(t, frame.Channels["TP9"].PSD)
}

func TestProcess_OutOfRangeIndexIsSkipped(t *testing.T) {
	const rate = 256
	p, logs := newTestPipeline(0)
	data := sineSnapshot(3, 4*rate, rate, []int{1, 2})

	frame := p.Process(data, []int{1, 9}, []string{"TP9", "AF7"}, rate)

	require.Len(t, frame.Channels, 1)
	assert.Contains(t, frame.Channels, "TP9")
	assert.NotContains(t, frame.Channels, "AF7")
	assert.Contains(t, logs.String(), "out of range")
}

func TestProcess_NegativeIndexIsSkipped(t *testing.T) {
	const rate = 256
	p, _ := newTestPipeline(0)
	data := sineSnapshot(3, 4*rate, rate, []int{1})

	frame := p.Process(data, []int{-1, 1}, []string{"bad", "TP9"}, rate)
	require.Len(t, frame.Channels, 1)
	assert.Contains(t, frame.Channels, "TP9")
}

func TestProcess_RaggedRowDegradesToPlaceholder(t *testing.T) {
	const rate = 256
	p, logs := newTestPipeline(0)

	// Rows of unequal length analyse at different FFT sizes, so the second
	// channel's PSD cannot share the first channel's bin vector.
	data := [][]float64{
		make([]float64, 4*rate),
		make([]float64, rate),
	}
	for i := range data[0] {
		data[0][i] = 35 * math.Sin(2*math.Pi*10*float64(i)/float64(rate))
	}
	for i := range data[1] {
		data[1][i] = 35 * math.Sin(2*math.Pi*10*float64(i)/float64(rate))
	}

	frame := p.Process(data, []int{0, 1}, []string{"TP9", "AF7"}, rate)

	require.NotEmpty(t, frame.Freqs)
	assert.Len(t, frame.Channels["TP9"].PSD, len(frame.Freqs))

	short, ok := frame.Channels["AF7"]
	require.True(t, ok)
	assert.Empty(t, short.PSD)
	assert.Equal(t, 0.0, short.Quality)
	for _, band := range dsp.BandNames() {
		assert.Equal(t, 0.0, short.BandPowers[band])
	}
	assert.Contains(t, logs.String(), "does not match shared freqs")
}

func TestProcess_InputRowsAreNotMutated(t *testing.T) {
	const rate = 256
	p, _ := newTestPipeline(0)
	data := sineSnapshot(2, 4*rate, rate, []int{0, 1})

	before := make([]float64, len(data[1]))
	copy(before, data[1])

	p.Process(data, []int{0, 1}, []string{"a", "b"}, rate)

	assert.Equal(t, before, data[1], "analysis must not write through to the snapshot")
}

func TestProcess_RawTailZeroKeepsWholeRow(t *testing.T) {
	const rate = 256
	p, _ := newTestPipeline(0)
	data := sineSnapshot(2, 4*rate, rate, []int{1})

	frame := p.Process(data, []int{1}, []string{"TP9"}, rate)
	assert.Len(t, frame.Channels["TP9"].Raw, 4*rate)
}
