package main

import (
	"context"
	"embed"
	"flag"
	"io/fs"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/antoszy/eeg/internal/acquisition"
	"github.com/antoszy/eeg/internal/api"
	"github.com/antoszy/eeg/internal/broadcast"
	"github.com/antoszy/eeg/internal/config"
	"github.com/antoszy/eeg/internal/db"
	"github.com/antoszy/eeg/internal/dsp"
	"github.com/antoszy/eeg/internal/eeg"
	"github.com/antoszy/eeg/internal/monitoring"
	"github.com/antoszy/eeg/internal/version"
)

var (
	//go:embed static/*
	staticFiles embed.FS

	listen        = flag.String("listen", ":8080", "Listen address")
	dbFile        = flag.String("db", "eeg_sessions.db", "Session database path (empty disables persistence)")
	configPath    = flag.String("config", "", "Optional stream config JSON path")
	updateHz      = flag.Float64("update-hz", 0, "Broadcast cadence override (updates per second)")
	windowSeconds = flag.Float64("window-seconds", 0, "Analysis window override (seconds)")
	verbose       = flag.Bool("v", false, "Verbose debug logging")
)

// Main
func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	monitoring.Verbose = *verbose
	log.Printf("eeg streaming server %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	cfg := config.EmptyStreamConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadStreamConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	hz := cfg.GetUpdateHz()
	if *updateHz > 0 {
		hz = *updateHz
	}
	window := cfg.GetWindowSeconds()
	if *windowSeconds > 0 {
		window = *windowSeconds
	}

	source := acquisition.NewSyntheticSource(acquisition.SyntheticConfig{
		SampleRate:    cfg.GetSampleRate(),
		BufferSeconds: cfg.GetBufferSeconds(),
	})
	source.Start()
	defer source.Stop()

	analyzer := dsp.NewAnalyzer(dsp.Config{
		MaxFreqHz:         cfg.GetMaxFreqHz(),
		RMSMin:            cfg.GetRMSMin(),
		RMSMax:            cfg.GetRMSMax(),
		FlatlineStd:       cfg.GetFlatlineStd(),
		LineNoiseRatioMax: cfg.GetLineNoiseRatioMax(),
	})
	pipeline := eeg.NewPipeline(eeg.PipelineConfig{
		Analyzer: analyzer,
		RawTail:  cfg.GetRawTailSamples(),
	})
	registry := broadcast.NewRegistry()

	// Optional session persistence; the stream works without it.
	var (
		database  *db.DB
		recorder  *db.Recorder
		sessionID int64
	)
	if *dbFile != "" {
		var err error
		database, err = db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		sessionID, err = database.StartSession(source.SampleRate(), hz, window, source.ChannelNames())
		if err != nil {
			log.Fatalf("Failed to start session: %v", err)
		}
		recorder = db.NewRecorder(database, sessionID, nil, 0)
	}

	schedulerCfg := broadcast.SchedulerConfig{
		Source:        source,
		Registry:      registry,
		Pipeline:      pipeline,
		UpdateHz:      hz,
		WindowSeconds: window,
	}
	if recorder != nil {
		schedulerCfg.Recorder = recorder
	}
	scheduler := broadcast.NewScheduler(schedulerCfg)

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("failed to mount static assets: %v", err)
	}
	server := api.NewServer(api.ServerConfig{
		Address:   *listen,
		Registry:  registry,
		Scheduler: scheduler,
		Source:    source,
		Synthetic: true,
		DB:        database,
		SessionID: sessionID,
		Static:    static,
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// broadcast loop goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := scheduler.Run(ctx); err != nil {
			log.Printf("broadcast loop error: %v", err)
		}
		log.Print("broadcast routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(ctx); err != nil {
			log.Printf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Print("shutting down...")

	// Stop the broadcast loop before the source so no tick reads a dead
	// ring buffer.
	scheduler.Stop()
	wg.Wait()

	if recorder != nil {
		if err := recorder.Flush(); err != nil {
			log.Printf("failed to flush final rollups: %v", err)
		}
		if err := database.EndSession(sessionID); err != nil {
			log.Printf("failed to end session: %v", err)
		}
	}
}
