// SPDX-License-Identifier: MIT
package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tempo/internal/tempo"
)

type fixedState struct{ state tempo.DetectionState }

func (f fixedState) GetState() tempo.DetectionState { return f.state }

func newTestServer() (*Server, *httptest.Server) {
	source := fixedState{state: tempo.DetectionState{
		BPM:         124.2,
		Confidence:  0.82,
		SignalLevel: 0.4,
		Status:      tempo.StatusDetecting,
		TimestampMs: 90000,
	}}
	s := New(":0", 5*time.Millisecond, source, tempo.DefaultConfig())
	s.started = time.Now()
	return s, httptest.NewServer(s.mux)
}

func TestBPMEndpoint(t *testing.T) {
	_, ts := newTestServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/bpm")
	if err != nil {
		t.Fatalf("GET /api/bpm: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["bpm"] != 124.2 {
		t.Errorf("bpm = %v, want 124.2", payload["bpm"])
	}
	if payload["status"] != "detecting" {
		t.Errorf("status = %v, want detecting", payload["status"])
	}
	if payload["confidence"] != 0.82 {
		t.Errorf("confidence = %v, want 0.82", payload["confidence"])
	}
	if payload["signal_level"] != 0.4 {
		t.Errorf("signal_level = %v, want 0.4", payload["signal_level"])
	}
	if payload["timestamp"] != float64(90000) {
		t.Errorf("timestamp = %v, want 90000", payload["timestamp"])
	}
}

func TestSettingsEndpoint(t *testing.T) {
	_, ts := newTestServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/settings")
	if err != nil {
		t.Fatalf("GET /api/settings: %v", err)
	}
	defer resp.Body.Close()

	var payload settingsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}

	want := tempo.DefaultConfig()
	if payload.SampleRate != want.SampleRate {
		t.Errorf("sample_rate = %v, want %v", payload.SampleRate, want.SampleRate)
	}
	if payload.FFTSize != want.FFTSize {
		t.Errorf("fft_size = %v, want %v", payload.FFTSize, want.FFTSize)
	}
	if payload.MinBPM != want.MinBPM || payload.MaxBPM != want.MaxBPM {
		t.Errorf("bpm range = [%v, %v], want [%v, %v]",
			payload.MinBPM, payload.MaxBPM, want.MinBPM, want.MaxBPM)
	}
	if payload.Window != "hamming" {
		t.Errorf("window = %q, want %q", payload.Window, "hamming")
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["status"] != "ok" {
		t.Errorf("status = %v, want ok", payload["status"])
	}
	if _, ok := payload["uptime_ms"]; !ok {
		t.Error("health payload missing uptime_ms")
	}
}

func TestWebSocketPush(t *testing.T) {
	s, ts := newTestServer()
	defer ts.Close()

	// Run the push loop the way Start would.
	s.wg.Add(1)
	go s.pushLoop()
	defer s.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var payload statePayload
	if err := conn.ReadJSON(&payload); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if payload.BPM != 124.2 {
		t.Errorf("pushed bpm = %v, want 124.2", payload.BPM)
	}

	// Pushes keep coming at the configured interval.
	if err := conn.ReadJSON(&payload); err != nil {
		t.Fatalf("second ReadJSON: %v", err)
	}
}

func TestCloseDisconnectsClients(t *testing.T) {
	s, ts := newTestServer()
	defer ts.Close()

	s.wg.Add(1)
	go s.pushLoop()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return // Connection torn down as expected.
		}
	}
}
