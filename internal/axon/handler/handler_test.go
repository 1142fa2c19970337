package handler

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Alwanly/axon-agent/internal/axon/agent"
	"github.com/Alwanly/axon-agent/internal/models"
	authentication "github.com/Alwanly/axon-agent/pkg/auth"
	"github.com/Alwanly/axon-agent/pkg/deps"
	"github.com/Alwanly/axon-agent/pkg/logger"
	"github.com/Alwanly/axon-agent/pkg/metrics"
	"github.com/Alwanly/axon-agent/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeAgent struct {
	mu       sync.Mutex
	state    agent.State
	payload  []byte
	queued   []models.Command
	queueErr error
}

func (f *fakeAgent) State() agent.State { return f.state }

func (f *fakeAgent) Snapshot() agent.Snapshot {
	return agent.Snapshot{ServiceID: "memory-sidecar-go", State: f.state.String()}
}

func (f *fakeAgent) LastPayload() []byte { return f.payload }

func (f *fakeAgent) Enqueue(cmd models.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queueErr != nil {
		return f.queueErr
	}
	f.queued = append(f.queued, cmd)
	return nil
}

func newTestApp(t *testing.T, svc AgentService) *fiber.App {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Published(string(models.StatusOnline))

	log := logger.NewNop()
	app := NewApp(log)
	NewHandler(deps.App{
		Fiber:  app,
		Logger: log,
		Middleware: middleware.NewAuthMiddleware(middleware.SetBasicAuth(&authentication.BasicAuthTConfig{
			Username: "admin",
			Password: "s3cret",
		})),
		Gatherer: reg,
	}, svc)
	return app
}

func basic(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestHealth_StatusCodeFollowsState(t *testing.T) {
	tests := []struct {
		state agent.State
		want  int
	}{
		{agent.StateConnected, http.StatusOK},
		{agent.StateConnecting, http.StatusAccepted},
		{agent.StateDisconnected, http.StatusServiceUnavailable},
		{agent.StateShuttingDown, http.StatusServiceUnavailable},
		{agent.StateClosed, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			app := newTestApp(t, &fakeAgent{state: tt.state})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}

			var snap agent.Snapshot
			if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if snap.State != tt.state.String() {
				t.Fatalf("expected state %q, got %q", tt.state.String(), snap.State)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	app := newTestApp(t, &fakeAgent{state: agent.StateConnected})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/status", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before first publish, got %d", resp.StatusCode)
	}

	raw := []byte(`{"id":"memory-sidecar-go","status":"online"}`)
	app = newTestApp(t, &fakeAgent{state: agent.StateConnected, payload: raw})
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/status", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != string(raw) {
		t.Fatalf("expected last payload verbatim, got %s", body)
	}
}

func TestMetrics(t *testing.T) {
	app := newTestApp(t, &fakeAgent{state: agent.StateConnected})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `axon_publish_total{status="online"} 1`) {
		t.Fatalf("expected publish counter in exposition, got:\n%s", body)
	}
}

func TestSwagger(t *testing.T) {
	app := newTestApp(t, &fakeAgent{state: agent.StateConnected})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var doc struct {
		Info  map[string]any            `json:"info"`
		Paths map[string]map[string]any `json:"paths"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("doc.json is not valid JSON: %v", err)
	}
	if doc.Info["title"] != SwaggerInfo.Title {
		t.Fatalf("expected title %q, got %v", SwaggerInfo.Title, doc.Info["title"])
	}
	for _, route := range []struct{ path, method string }{
		{"/health", "get"},
		{"/status", "get"},
		{"/metrics", "get"},
		{"/actions/{action_id}", "post"},
	} {
		if _, ok := doc.Paths[route.path][route.method]; !ok {
			t.Fatalf("expected %s %s in document", route.method, route.path)
		}
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected swagger ui index, got %d", resp.StatusCode)
	}
}

func TestTriggerAction(t *testing.T) {
	tests := []struct {
		name     string
		auth     string
		queueErr error
		want     int
		queued   int
	}{
		{"no credentials", "", nil, http.StatusUnauthorized, 0},
		{"wrong password", basic("admin", "nope"), nil, http.StatusUnauthorized, 0},
		{"accepted", basic("admin", "s3cret"), nil, http.StatusAccepted, 1},
		{"commands disabled", basic("admin", "s3cret"), agent.ErrCommandsDisabled, http.StatusConflict, 0},
		{"queue full", basic("admin", "s3cret"), agent.ErrQueueFull, http.StatusTooManyRequests, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAgent{state: agent.StateConnected, queueErr: tt.queueErr}
			app := newTestApp(t, svc)

			req := httptest.NewRequest(http.MethodPost, "/actions/drop_cache", nil)
			if tt.auth != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.auth)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
			if len(svc.queued) != tt.queued {
				t.Fatalf("expected %d queued commands, got %d", tt.queued, len(svc.queued))
			}
			if tt.queued == 1 {
				cmd := svc.queued[0]
				if cmd.ActionID != "drop_cache" || cmd.IssuedBy != IssuedByAdmin || cmd.Timestamp == "" {
					t.Fatalf("unexpected command %+v", cmd)
				}
			}
		})
	}
}
