package control_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/application"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/domain"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/infra/control"
)

type mockController struct {
	mu    sync.Mutex
	calls []string
	snap  application.Snapshot
}

func (m *mockController) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockController) Start() { m.record("start") }
func (m *mockController) Stop()  { m.record("stop") }
func (m *mockController) Play()  { m.record("play") }
func (m *mockController) Pause() { m.record("pause") }

func (m *mockController) Snapshot() application.Snapshot {
	return m.snap
}

func (m *mockController) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServer_CommandsReachController(t *testing.T) {
	ctrl := &mockController{}
	handler := control.NewServer(":0", "", ctrl, nil, testLogger()).Handler()

	for _, path := range []string{"/start", "/stop", "/play", "/pause"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Errorf("%s: status got %d, want %d", path, rec.Code, http.StatusAccepted)
		}
	}

	got := strings.Join(ctrl.recorded(), ",")
	if got != "start,stop,play,pause" {
		t.Errorf("calls: got %s", got)
	}
}

func TestServer_CommandsRequirePost(t *testing.T) {
	ctrl := &mockController{}
	handler := control.NewServer(":0", "", ctrl, nil, testLogger()).Handler()

	req := httptest.NewRequest(http.MethodGet, "/start", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
	if len(ctrl.recorded()) != 0 {
		t.Error("controller should not be called")
	}
}

func TestServer_AuthToken(t *testing.T) {
	ctrl := &mockController{}
	handler := control.NewServer(":0", "secret", ctrl, nil, testLogger()).Handler()

	tests := []struct {
		name     string
		header   string
		query    string
		wantCode int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"wrong token", "nope", "", http.StatusUnauthorized},
		{"header token", "secret", "", http.StatusAccepted},
		{"query token", "", "?token=secret", http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/start"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("X-Auth-Token", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}

	if n := len(ctrl.recorded()); n != 2 {
		t.Errorf("authorized calls: got %d, want 2", n)
	}
}

func TestServer_Status(t *testing.T) {
	ctrl := &mockController{snap: application.Snapshot{
		SessionID:    "abc",
		Status:       domain.StatusReady,
		HasReply:     true,
		Playing:      true,
		Position:     1500 * time.Millisecond,
		Duration:     4 * time.Second,
		AutoRelisten: true,
	}}
	handler := control.NewServer(":0", "", ctrl, nil, testLogger()).Handler()

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code: got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if body["status"] != "ready" || body["session_id"] != "abc" {
		t.Errorf("unexpected body: %v", body)
	}
	if body["position_seconds"] != 1.5 || body["duration_seconds"] != 4.0 {
		t.Errorf("unexpected progress: %v", body)
	}
	if body["playing"] != true || body["has_reply"] != true {
		t.Errorf("unexpected flags: %v", body)
	}
	if _, ok := body["error"]; ok {
		t.Errorf("error should be omitted: %v", body)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "voicechat_up 1\n")
	})
	handler := control.NewServer(":0", "", &mockController{}, metrics, testLogger()).Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "voicechat_up") {
		t.Errorf("metrics not served: %q", rec.Body.String())
	}
}

func TestServer_RunServesHealthUntilCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctrl := &mockController{snap: application.Snapshot{Status: domain.StatusIdle}}
	server := control.NewServer(addr, "", ctrl, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Run(ctx) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/health")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status: got %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "ok" || body["session"] != "idle" {
		t.Errorf("unexpected health body: %v", body)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_HealthBeforeRun(t *testing.T) {
	handler := control.NewServer(":0", "", &mockController{}, nil, testLogger()).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
