package acquisition

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/antoszy/eeg/internal/monitoring"
)

// Default synthetic board geometry: four EEG rows at the Muse electrode
// positions, preceded by a package-counter row and followed by aux rows,
// mirroring how acquisition boards interleave non-EEG channels.
var (
	DefaultChannelNames   = []string{"TP9", "AF7", "AF8", "TP10"}
	DefaultChannelIndices = []int{1, 2, 3, 4}
)

// SyntheticConfig configures a SyntheticSource. Zero values fall back to
// defaults matching a Muse-class headset.
type SyntheticConfig struct {
	// SampleRate in Hz. Default 256.
	SampleRate int

	// Rows is the total physical channel count. Default 6
	// (counter + 4 EEG + timestamp).
	Rows int

	// Indices and Names identify the EEG rows. Defaults above.
	Indices []int
	Names   []string

	// BufferSeconds is the ring capacity. Default 10.
	BufferSeconds int

	// Seed for the noise generator. 0 uses a time-based seed.
	Seed int64
}

// SyntheticSource is an in-process Source backed by a generator goroutine
// that fills a ring buffer with band-limited sinusoid mixtures plus noise.
// It stands in for the hardware acquisition layer during development.
type SyntheticSource struct {
	rate    int
	indices []int
	names   []string

	mu     sync.Mutex
	rows   [][]float64 // per-channel rings
	cap    int
	head   int // next write position
	filled int
	count  uint64 // total samples generated, drives phase

	rng    *rand.Rand
	stopCh chan struct{}
	doneCh chan struct{}
	runMu  sync.Mutex
	run    bool
}

// NewSyntheticSource creates a stopped SyntheticSource.
func NewSyntheticSource(cfg SyntheticConfig) *SyntheticSource {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 256
	}
	if cfg.Rows <= 0 {
		cfg.Rows = 6
	}
	if len(cfg.Indices) == 0 {
		cfg.Indices = DefaultChannelIndices
	}
	if len(cfg.Names) == 0 {
		cfg.Names = DefaultChannelNames
	}
	if cfg.BufferSeconds <= 0 {
		cfg.BufferSeconds = 10
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	capacity := cfg.SampleRate * cfg.BufferSeconds
	rows := make([][]float64, cfg.Rows)
	for i := range rows {
		rows[i] = make([]float64, capacity)
	}
	return &SyntheticSource{
		rate:    cfg.SampleRate,
		indices: append([]int(nil), cfg.Indices...),
		names:   append([]string(nil), cfg.Names...),
		rows:    rows,
		cap:     capacity,
		rng:     rand.New(rand.NewSource(seed)),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

func (s *SyntheticSource) SampleRate() int        { return s.rate }
func (s *SyntheticSource) ChannelIndices() []int  { return append([]int(nil), s.indices...) }
func (s *SyntheticSource) ChannelNames() []string { return append([]string(nil), s.names...) }

// Start launches the generator goroutine. Safe to call once per source.
func (s *SyntheticSource) Start() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.run {
		return
	}
	s.run = true
	go s.generate()
	monitoring.Logf("synthetic source started: rate=%d Hz, rows=%d, eeg=%v", s.rate, len(s.rows), s.names)
}

// Stop halts generation and waits for the goroutine to exit. The ring
// contents remain readable after Stop.
func (s *SyntheticSource) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.run {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.run = false
	monitoring.Logf("synthetic source stopped")
}

func (s *SyntheticSource) generate() {
	defer close(s.doneCh)

	// Write in chunks every 20ms to approximate hardware batching.
	const chunkInterval = 20 * time.Millisecond
	chunk := s.rate / 50
	if chunk < 1 {
		chunk = 1
	}

	ticker := time.NewTicker(chunkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.appendChunk(chunk)
		}
	}
}

// appendChunk generates n new samples for every row. EEG rows receive a
// mixture of alpha and theta sinusoids with per-channel phase offsets plus
// gaussian noise; row 0 carries a package counter and the remaining aux
// rows a wall-clock ramp.
func (s *SyntheticSource) appendChunk(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eeg := make(map[int]int, len(s.indices)) // row -> channel position
	for pos, idx := range s.indices {
		if idx >= 0 && idx < len(s.rows) {
			eeg[idx] = pos
		}
	}

	for i := 0; i < n; i++ {
		t := float64(s.count) / float64(s.rate)
		for row := range s.rows {
			var v float64
			if pos, ok := eeg[row]; ok {
				phase := float64(pos) * math.Pi / 4
				v = 30*math.Sin(2*math.Pi*10*t+phase) +
					12*math.Sin(2*math.Pi*6*t+phase/2) +
					s.rng.NormFloat64()*8
			} else if row == 0 {
				v = float64(s.count % 256) // package counter
			} else {
				v = t
			}
			s.rows[row][s.head] = v
		}
		s.head = (s.head + 1) % s.cap
		if s.filled < s.cap {
			s.filled++
		}
		s.count++
	}
}

// ReadLatest returns copies of the most recent numSamples columns for every
// row. While the ring is filling it returns however many samples exist.
func (s *SyntheticSource) ReadLatest(numSamples int) [][]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if numSamples < 0 {
		numSamples = 0
	}
	m := numSamples
	if m > s.filled {
		m = s.filled
	}

	out := make([][]float64, len(s.rows))
	start := (s.head - m + s.cap) % s.cap
	for r, ring := range s.rows {
		row := make([]float64, m)
		for i := 0; i < m; i++ {
			row[i] = ring[(start+i)%s.cap]
		}
		out[r] = row
	}
	return out
}
