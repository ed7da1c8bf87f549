// SPDX-License-Identifier: MIT
/*
Package server exposes the engine's detection state over HTTP: a small
JSON API for polling clients and a WebSocket endpoint that pushes state
snapshots at a fixed interval.
*/
package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	applog "tempo/internal/log"
	"tempo/internal/tempo"
)

// StateSource supplies the latest detection snapshot.
type StateSource interface {
	GetState() tempo.DetectionState
}

// statePayload is the wire form of a detection snapshot.
type statePayload struct {
	BPM         float64      `json:"bpm"`
	Confidence  float64      `json:"confidence"`
	SignalLevel float64      `json:"signal_level"`
	Status      tempo.Status `json:"status"`
	Timestamp   uint64       `json:"timestamp"`
}

func toPayload(state tempo.DetectionState) statePayload {
	return statePayload{
		BPM:         state.BPM,
		Confidence:  state.Confidence,
		SignalLevel: state.SignalLevel,
		Status:      state.Status,
		Timestamp:   state.TimestampMs,
	}
}

// settingsPayload mirrors the detector parameters for /api/settings.
type settingsPayload struct {
	SampleRate         float64 `json:"sample_rate"`
	FFTSize            int     `json:"fft_size"`
	MinBPM             float64 `json:"min_bpm"`
	MaxBPM             float64 `json:"max_bpm"`
	DetectionThreshold float64 `json:"detection_threshold"`
	Window             string  `json:"window"`
	OverlapRatio       float64 `json:"overlap_ratio"`
	BassMin            float64 `json:"bass_min"`
	BassMax            float64 `json:"bass_max"`
}

// Server serves the status API and WebSocket push feed.
type Server struct {
	addr         string
	pushInterval time.Duration
	source       StateSource
	settings     settingsPayload
	started      time.Time

	mux        *http.ServeMux
	httpServer *http.Server
	upgrader   websocket.Upgrader

	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex

	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Server for the given engine configuration. Call Start to
// begin serving.
func New(addr string, pushInterval time.Duration, source StateSource, cfg tempo.Config) *Server {
	if pushInterval <= 0 {
		pushInterval = 100 * time.Millisecond
	}
	s := &Server{
		addr:         addr,
		pushInterval: pushInterval,
		source:       source,
		settings: settingsPayload{
			SampleRate:         cfg.SampleRate,
			FFTSize:            cfg.FFTSize,
			MinBPM:             cfg.MinBPM,
			MaxBPM:             cfg.MaxBPM,
			DetectionThreshold: cfg.DetectionThreshold,
			Window:             cfg.WindowType.String(),
			OverlapRatio:       cfg.OverlapRatio,
			BassMin:            cfg.BassMin,
			BassMax:            cfg.BassMax,
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Status data is not sensitive; browser dashboards connect
			// from arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:  make(map[*websocket.Conn]bool),
		doneChan: make(chan struct{}),
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/api/bpm", s.handleBPM)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	return s
}

// Start begins listening and launches the WebSocket push loop.
func (s *Server) Start() {
	s.started = time.Now()
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.mux}

	go func() {
		applog.Infof("Server: Listening on %s", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			applog.Errorf("Server: %v", err)
		}
	}()

	s.wg.Add(1)
	go s.pushLoop()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.Debugf("Server: Error encoding response: %v", err)
	}
}

func (s *Server) handleBPM(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, toPayload(s.source.GetState()))
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.settings)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "ok",
		"uptime_ms": time.Since(s.started).Milliseconds(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("Server: WebSocket upgrade error: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	total := len(s.clients)
	s.clientsMu.Unlock()
	applog.Infof("Server: WebSocket client connected, total: %d", total)

	// Reader goroutine exists only to notice the disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.dropClient(conn)
				return
			}
		}
	}()
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		conn.Close()
		applog.Infof("Server: WebSocket client disconnected, total: %d", len(s.clients))
	}
	s.clientsMu.Unlock()
}

// pushLoop broadcasts the current state to every WebSocket client at the
// configured interval.
func (s *Server) pushLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.broadcast(toPayload(s.source.GetState()))
		case <-s.doneChan:
			return
		}
	}
}

func (s *Server) broadcast(payload statePayload) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteJSON(payload); err != nil {
			applog.Debugf("Server: Error sending to client: %v", err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

// Close stops the push loop, disconnects all clients, and shuts the HTTP
// server down.
func (s *Server) Close() error {
	s.stopOnce.Do(func() {
		close(s.doneChan)
	})
	s.wg.Wait()

	s.clientsMu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.clientsMu.Unlock()

	if s.httpServer != nil {
		applog.Infof("Server: Shutting down")
		return s.httpServer.Close()
	}
	return nil
}

var _ interface{ Close() error } = (*Server)(nil)
