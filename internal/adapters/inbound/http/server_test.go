package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/archon-research/stl/pyth-keeper/internal/testutil"
)

type mockHealthChecker struct {
	ready   bool
	healthy bool
}

func (m *mockHealthChecker) IsReady() bool   { return m.ready }
func (m *mockHealthChecker) IsHealthy() bool { return m.healthy }

func TestServer_Probes(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		ready        bool
		healthy      bool
		shuttingDown bool
		wantStatus   int
		wantBody     string
	}{
		{name: "ready", path: "/health/ready", ready: true, healthy: true, wantStatus: http.StatusOK, wantBody: "ready"},
		{name: "not ready", path: "/health/ready", healthy: true, wantStatus: http.StatusServiceUnavailable, wantBody: "not_ready"},
		{name: "ready while shutting down", path: "/health/ready", ready: true, healthy: true, shuttingDown: true, wantStatus: http.StatusServiceUnavailable, wantBody: "shutting_down"},
		{name: "live", path: "/health/live", ready: true, healthy: true, wantStatus: http.StatusOK, wantBody: "healthy"},
		{name: "not live", path: "/health/live", ready: true, wantStatus: http.StatusServiceUnavailable, wantBody: "unhealthy"},
		{name: "live while shutting down", path: "/health/live", healthy: true, shuttingDown: true, wantStatus: http.StatusServiceUnavailable, wantBody: "shutting_down"},
		{name: "combined ok", path: "/health", ready: true, healthy: true, wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "combined not ready", path: "/health", healthy: true, wantStatus: http.StatusServiceUnavailable, wantBody: "degraded"},
		{name: "combined unhealthy", path: "/health", ready: true, wantStatus: http.StatusServiceUnavailable, wantBody: "degraded"},
		{name: "combined shutting down", path: "/health", ready: true, healthy: true, shuttingDown: true, wantStatus: http.StatusServiceUnavailable, wantBody: "shutting_down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var shuttingDown atomic.Bool
			shuttingDown.Store(tt.shuttingDown)
			srv := NewServer(ServerConfig{Addr: ":0", Logger: testutil.DiscardLogger()},
				&mockHealthChecker{ready: tt.ready, healthy: tt.healthy}, &shuttingDown, nil)

			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type = %q", ct)
			}
			var resp map[string]any
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp["status"] != tt.wantBody {
				t.Errorf("status field = %v, want %q", resp["status"], tt.wantBody)
			}
			if tt.path == "/health" && !tt.shuttingDown {
				if resp["ready"] != tt.ready || resp["healthy"] != tt.healthy {
					t.Errorf("ready/healthy = %v/%v", resp["ready"], resp["healthy"])
				}
			}
		})
	}
}

func TestServer_NoInvocationRoutesWithoutHandler(t *testing.T) {
	srv := NewServer(ServerConfig{Logger: testutil.DiscardLogger()}, &mockHealthChecker{ready: true, healthy: true}, nil, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/run", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestServerConfigDefaults(t *testing.T) {
	srv := NewServer(ServerConfig{}, &mockHealthChecker{}, nil, nil)
	d := ServerConfigDefaults()
	if srv.server.Addr != d.Addr || srv.server.WriteTimeout != d.WriteTimeout || srv.server.ReadTimeout != d.ReadTimeout {
		t.Errorf("defaults not applied: addr=%s read=%s write=%s", srv.server.Addr, srv.server.ReadTimeout, srv.server.WriteTimeout)
	}
}
