package db

import (
	"sync"
	"time"

	"github.com/antoszy/eeg/internal/eeg"
	"github.com/antoszy/eeg/internal/timeutil"
)

// DefaultRollupInterval is how often accumulated frames are flushed to a
// band_rollups row per channel and band.
const DefaultRollupInterval = 5 * time.Second

// Recorder aggregates delivered frames and periodically writes band-power
// rollups for one session. It implements the broadcast scheduler's
// FrameRecorder interface; RecordFrame is called from the tick path, so it
// only touches sqlite once per rollup interval.
type Recorder struct {
	db        *DB
	sessionID int64
	clock     timeutil.Clock
	interval  time.Duration

	mu         sync.Mutex
	lastFlush  time.Time
	frames     int64
	powerSums  map[string]map[string]float64 // channel -> band -> sum
	qualitySum map[string]float64            // channel -> sum
}

// NewRecorder creates a Recorder flushing to db under sessionID. A zero
// interval uses DefaultRollupInterval; a nil clock uses the real one.
func NewRecorder(database *DB, sessionID int64, clock timeutil.Clock, interval time.Duration) *Recorder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if interval <= 0 {
		interval = DefaultRollupInterval
	}
	return &Recorder{
		db:         database,
		sessionID:  sessionID,
		clock:      clock,
		interval:   interval,
		lastFlush:  clock.Now(),
		powerSums:  make(map[string]map[string]float64),
		qualitySum: make(map[string]float64),
	}
}

// RecordFrame accumulates one frame and flushes when the rollup interval
// has elapsed. Channels carrying no band data still accumulate quality.
func (r *Recorder) RecordFrame(f *eeg.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, ch := range f.Channels {
		sums, ok := r.powerSums[name]
		if !ok {
			sums = make(map[string]float64, len(ch.BandPowers))
			r.powerSums[name] = sums
		}
		for band, power := range ch.BandPowers {
			sums[band] += power
		}
		r.qualitySum[name] += ch.Quality
	}
	r.frames++

	if r.clock.Now().Sub(r.lastFlush) < r.interval {
		return nil
	}
	return r.flushLocked()
}

// Flush writes any pending accumulation immediately. Called on shutdown so
// the tail of a session is not lost.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *Recorder) flushLocked() error {
	defer func() {
		r.frames = 0
		r.powerSums = make(map[string]map[string]float64)
		r.qualitySum = make(map[string]float64)
		r.lastFlush = r.clock.Now()
	}()

	if r.frames == 0 {
		return nil
	}

	n := float64(r.frames)
	for channel, sums := range r.powerSums {
		avgQuality := r.qualitySum[channel] / n
		for band, sum := range sums {
			err := r.db.RecordRollup(BandRollup{
				SessionID:  r.sessionID,
				Channel:    channel,
				Band:       band,
				AvgPower:   sum / n,
				AvgQuality: avgQuality,
				Frames:     r.frames,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
