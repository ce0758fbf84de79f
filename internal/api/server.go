// Package api exposes the HTTP interface: the embedded dashboard, the
// websocket stream, board info, and the monitor views that read the
// scheduler's last-frame cache.
package api

import (
	"context"
	"encoding/json"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antoszy/eeg/internal/acquisition"
	"github.com/antoszy/eeg/internal/broadcast"
	"github.com/antoszy/eeg/internal/db"
	"github.com/antoszy/eeg/internal/version"
)

// ANSI escape codes for request log coloring
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// ServerConfig contains configuration options for the web server
type ServerConfig struct {
	Address   string
	Registry  *broadcast.Registry
	Scheduler *broadcast.Scheduler
	Source    acquisition.Source
	Synthetic bool

	// DB and SessionID are optional; without them the rollups endpoint
	// reports not found.
	DB        *db.DB
	SessionID int64

	// Static is the embedded dashboard filesystem. Nil serves a plain
	// greeting at the root instead.
	Static fs.FS

	Logger *log.Logger
}

// Server handles the HTTP interface for the streaming service.
type Server struct {
	address   string
	registry  *broadcast.Registry
	scheduler *broadcast.Scheduler
	source    acquisition.Source
	synthetic bool
	db        *db.DB
	sessionID int64
	static    fs.FS
	logger    *log.Logger

	upgrader websocket.Upgrader
	server   *http.Server
}

// NewServer creates a new web server with the provided configuration
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		address:   cfg.Address,
		registry:  cfg.Registry,
		scheduler: cfg.Scheduler,
		source:    cfg.Source,
		synthetic: cfg.Synthetic,
		db:        cfg.DB,
		sessionID: cfg.SessionID,
		static:    cfg.Static,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.server = &http.Server{
		Addr:    s.address,
		Handler: LoggingMiddleware(s.ServeMux()),
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The websocket upgrade hijacks the connection; wrapping the
		// writer would hide the Hijacker interface from gorilla.
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux configures the HTTP routes and handlers
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/info", s.handleInfo)
	mux.HandleFunc("/api/rollups", s.handleRollups)
	mux.HandleFunc("/api/spectrum.png", s.handleSpectrumPNG)
	mux.HandleFunc("/monitor", s.handleMonitor)

	if s.static != nil {
		mux.Handle("/", http.FileServer(http.FS(s.static)))
	} else {
		mux.HandleFunc("/", s.handleHome)
	}

	return mux
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown
func (s *Server) Start(ctx context.Context) error {
	go func() {
		s.logger.Printf("Starting HTTP server on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	s.logger.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Printf("HTTP server shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			s.logger.Printf("HTTP server force close error: %v", err)
		}
	}

	s.logger.Printf("HTTP server routine stopped")
	return nil
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Write([]byte("EEG streaming server. Connect a websocket client to /ws."))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// handleInfo reports the board geometry and current client count.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	info := map[string]interface{}{
		"sample_rate":     s.source.SampleRate(),
		"channels":        s.source.ChannelNames(),
		"synthetic":       s.synthetic,
		"clients":         s.registry.Count(),
		"update_interval": s.scheduler.Interval().Seconds(),
		"version":         version.Version,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(info); err != nil {
		s.logger.Printf("failed to encode board info: %v", err)
	}
}

// handleWS upgrades the connection, registers it for frame delivery, and
// drains the client side until it disconnects. Clients send no application
// messages; the read loop only exists to detect closure.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	sub := broadcast.NewWSSubscriber(conn)
	s.registry.Add(sub)
	s.logger.Printf("client %s connected (%d total)", sub.ID(), s.registry.Count())

	go func() {
		defer func() {
			s.registry.Remove(sub.ID())
			sub.Close()
			s.logger.Printf("client %s disconnected (%d total)", sub.ID(), s.registry.Count())
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// handleRollups returns the newest band-power rollups for the active
// session.
func (s *Server) handleRollups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusNotFound, "persistence disabled")
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	rollups, err := s.db.RecentRollups(s.sessionID, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "failed to query rollups")
		s.logger.Printf("rollup query failed: %v", err)
		return
	}
	if rollups == nil {
		rollups = []db.BandRollup{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rollups); err != nil {
		s.logger.Printf("failed to encode rollups: %v", err)
	}
}
