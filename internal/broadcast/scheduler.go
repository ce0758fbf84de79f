package broadcast

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/antoszy/eeg/internal/acquisition"
	"github.com/antoszy/eeg/internal/eeg"
	"github.com/antoszy/eeg/internal/monitoring"
	"github.com/antoszy/eeg/internal/timeutil"
)

// FrameRecorder receives each delivered frame for out-of-band persistence.
// Recorder errors are logged and never affect the stream.
type FrameRecorder interface {
	RecordFrame(f *eeg.Frame) error
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Source supplies sample snapshots. Required.
	Source acquisition.Source

	// Registry tracks the subscribers to fan out to. Required.
	Registry *Registry

	// Pipeline turns a snapshot into an analysis frame. Required.
	Pipeline *eeg.Pipeline

	// Clock drives the cadence. Defaults to timeutil.RealClock.
	Clock timeutil.Clock

	// UpdateHz is the tick cadence. Default 12.
	UpdateHz float64

	// WindowSeconds is the analysis window fetched per tick. Default 4.
	WindowSeconds float64

	// Recorder is optional frame persistence.
	Recorder FrameRecorder

	// Logger is optional; if nil, uses log.Default().
	Logger *log.Logger
}

// Scheduler runs the fixed-cadence broadcast loop: fetch the latest window,
// analyse it off the timing path, fan the frame out, prune failed
// subscribers. With no subscribers the tick does nothing — no fetch, no
// analysis. A failed tick is logged and the loop continues; only external
// cancellation stops it.
type Scheduler struct {
	source   acquisition.Source
	registry *Registry
	pipeline *eeg.Pipeline
	clock    timeutil.Clock
	recorder FrameRecorder
	logger   *log.Logger

	interval      time.Duration
	windowSeconds float64

	// Analysis worker plumbing. The worker goroutine owns the pipeline
	// call so CPU-bound transform work never delays the next tick deadline
	// or subscriber acceptance.
	jobCh chan [][]float64
	resCh chan *eeg.Frame

	lastMu    sync.Mutex
	lastFrame *eeg.Frame

	statsMu     sync.Mutex
	framesSent  uint64
	pruned      uint64
	lastStatsAt time.Time

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a Scheduler from cfg.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	hz := cfg.UpdateHz
	if hz <= 0 {
		hz = 12
	}
	window := cfg.WindowSeconds
	if window <= 0 {
		window = 4
	}
	return &Scheduler{
		source:        cfg.Source,
		registry:      cfg.Registry,
		pipeline:      cfg.Pipeline,
		clock:         clock,
		recorder:      cfg.Recorder,
		logger:        logger,
		interval:      time.Duration(float64(time.Second) / hz),
		windowSeconds: window,
		jobCh:         make(chan [][]float64),
		resCh:         make(chan *eeg.Frame, 1),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Interval returns the tick interval derived from the configured cadence.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Run starts the broadcast loop and blocks until ctx is cancelled or Stop
// is called. Returns nil on clean shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return nil // already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.runMu.Unlock()

	defer func() {
		close(s.doneCh)
		s.runMu.Lock()
		s.running = false
		s.runMu.Unlock()
	}()

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	go s.analysisWorker(workerCtx)

	s.logger.Printf("broadcast loop started: interval=%v window=%.1fs", s.interval, s.windowSeconds)

	for {
		start := s.clock.Now()
		s.tick(ctx)

		sleep := s.interval - s.clock.Since(start)
		if sleep < 0 {
			sleep = 0
		}
		timer := s.clock.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Printf("broadcast loop stopping: context cancelled")
			return nil
		case <-s.stopCh:
			timer.Stop()
			s.logger.Printf("broadcast loop stopping: Stop() called")
			return nil
		case <-timer.C():
		}
	}
}

// Stop requests the loop to exit and waits for it. Safe to call multiple
// times and before Run.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	done := s.doneCh
	s.runMu.Unlock()
	<-done
}

// LastFrame returns the most recently delivered frame, or nil before the
// first delivery. Monitor endpoints read this cache so they never touch the
// tick path.
func (s *Scheduler) LastFrame() *eeg.Frame {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastFrame
}

// tick performs one scheduling iteration. Every failure mode inside a tick
// is contained here; the loop itself only ever sees a returning tick.
func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("tick recovered: %v", r)
		}
	}()

	if !s.registry.HasAny() {
		return // idle: no fetch, no analysis
	}

	numSamples := int(float64(s.source.SampleRate()) * s.windowSeconds)
	data := s.source.ReadLatest(numSamples)
	if len(data) == 0 || len(data[0]) == 0 {
		monitoring.Debugf("tick: empty snapshot, skipping fan-out")
		return
	}

	frame, ok := s.analyze(ctx, data)
	if !ok {
		return // cancelled mid-analysis
	}
	if frame == nil {
		return // analysis failed; already logged by the worker
	}

	s.lastMu.Lock()
	s.lastFrame = frame
	s.lastMu.Unlock()

	payload, err := EncodeFrame(frame)
	if err != nil {
		s.logger.Printf("tick: frame encode failed: %v", err)
		return
	}

	s.fanout(payload)

	if s.recorder != nil {
		if err := s.recorder.RecordFrame(frame); err != nil {
			s.logger.Printf("tick: frame record failed: %v", err)
		}
	}

	s.logPeriodicStats()
}

// analyze hands the snapshot to the worker goroutine and waits for the
// frame, honouring cancellation in both directions.
func (s *Scheduler) analyze(ctx context.Context, data [][]float64) (*eeg.Frame, bool) {
	select {
	case s.jobCh <- data:
	case <-ctx.Done():
		return nil, false
	case <-s.stopCh:
		return nil, false
	}
	select {
	case frame := <-s.resCh:
		return frame, true
	case <-ctx.Done():
		return nil, false
	case <-s.stopCh:
		return nil, false
	}
}

func (s *Scheduler) analysisWorker(ctx context.Context) {
	indices := s.source.ChannelIndices()
	names := s.source.ChannelNames()
	rate := s.source.SampleRate()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-s.jobCh:
			s.resCh <- s.runAnalysis(data, indices, names, rate)
		}
	}
}

// runAnalysis contains analysis failures on the worker goroutine, which the
// tick-level recover cannot reach. A panicking transform yields a nil frame
// and the tick is dropped; the loop and the worker both keep running.
func (s *Scheduler) runAnalysis(data [][]float64, indices []int, names []string, rate int) (frame *eeg.Frame) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("analysis recovered: %v", r)
			frame = nil
		}
	}()
	return s.pipeline.Process(data, indices, names, rate)
}

// fanout queues the payload to every subscriber in the current snapshot.
// A subscriber whose send fails is pruned and closed; the rest still get
// the frame.
func (s *Scheduler) fanout(payload []byte) {
	for _, sub := range s.registry.Snapshot() {
		if err := sub.Send(payload); err != nil {
			s.registry.Remove(sub.ID())
			sub.Close()
			s.statsMu.Lock()
			s.pruned++
			s.statsMu.Unlock()
			s.logger.Printf("subscriber %s pruned: %v (remaining: %d)", sub.ID(), err, s.registry.Count())
			continue
		}
		s.statsMu.Lock()
		s.framesSent++
		s.statsMu.Unlock()
	}
}

// logPeriodicStats logs delivery stats at most every 5 seconds.
func (s *Scheduler) logPeriodicStats() {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	now := s.clock.Now()
	if s.lastStatsAt.IsZero() {
		s.lastStatsAt = now
		return
	}
	if elapsed := now.Sub(s.lastStatsAt); elapsed >= 5*time.Second {
		s.logger.Printf("broadcast stats: sends=%d pruned=%d subscribers=%d over %v",
			s.framesSent, s.pruned, s.registry.Count(), elapsed.Round(time.Millisecond))
		s.framesSent = 0
		s.pruned = 0
		s.lastStatsAt = now
	}
}
