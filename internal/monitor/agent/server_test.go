package agent

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hyperwatch/internal/logging"
	"hyperwatch/internal/monitor"
	"hyperwatch/internal/monitor/alerts"
	"hyperwatch/internal/monitor/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newTestAgent(t *testing.T) *Agent {
	t.Helper()
	gin.SetMode(gin.TestMode)

	a, err := NewAgent(monitor.DefaultConfig(), alerts.CreateDefaultConfig(), logging.NewDiscardLogger(),
		WithStore(storage.NewMemoryStore()), WithCollectors())
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	t.Cleanup(func() { a.hub.Close() })
	return a
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func criticalNode() monitor.Snapshot {
	return monitor.Snapshot{Kind: monitor.EntityNode, Name: "pve1", CPU: 95, Mem: 10, MaxMem: 100}
}

func TestHealth(t *testing.T) {
	a := newTestAgent(t)
	w := doJSON(t, a.server.Handler(), http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]interface{}
	decode(t, w, &body)
	if body["status"] != "healthy" {
		t.Fatalf("expected healthy, got %v", body["status"])
	}
}

func TestStatusListsContainers(t *testing.T) {
	a := newTestAgent(t)
	w := doJSON(t, a.server.Handler(), http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), alerts.NodeContainer) {
		t.Fatalf("status does not list %s: %s", alerts.NodeContainer, w.Body.String())
	}
}

func TestGetThresholdsDefaults(t *testing.T) {
	a := newTestAgent(t)
	w := doJSON(t, a.server.Handler(), http.MethodGet, "/api/v1/settings/resource_thresholds", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp settingsResponse
	decode(t, w, &resp)
	if resp.Thresholds != alerts.DefaultThresholds() {
		t.Fatalf("expected defaults, got %+v", resp.Thresholds)
	}
	if !resp.AlertsEnabled {
		t.Fatal("alerts should start enabled")
	}
}

func TestPatchThresholds(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCPU    alerts.Threshold
	}{
		{
			name:       "partial update",
			body:       `{"cpu":{"warning":60}}`,
			wantStatus: http.StatusOK,
			wantCPU:    alerts.Threshold{Warning: 60, Critical: 90, Enabled: true},
		},
		{
			name:       "disable kind",
			body:       `{"cpu":{"enabled":false}}`,
			wantStatus: http.StatusOK,
			wantCPU:    alerts.Threshold{Warning: 75, Critical: 90, Enabled: false},
		},
		{
			name:       "out of range",
			body:       `{"cpu":{"warning":150}}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "critical below warning",
			body:       `{"cpu":{"warning":95,"critical":50}}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty patch",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed",
			body:       `{"cpu":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAgent(t)
			w := doJSON(t, a.server.Handler(), http.MethodPatch, "/api/v1/settings/resource_thresholds", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				if got := a.engine.Store.Thresholds(); got != alerts.DefaultThresholds() {
					t.Fatalf("rejected update changed thresholds: %+v", got)
				}
				return
			}

			var resp settingsResponse
			decode(t, w, &resp)
			if resp.Thresholds.CPU != tt.wantCPU {
				t.Fatalf("expected cpu %+v, got %+v", tt.wantCPU, resp.Thresholds.CPU)
			}
			if resp.Thresholds.Memory != alerts.DefaultThresholds().Memory {
				t.Fatalf("memory should be untouched, got %+v", resp.Thresholds.Memory)
			}
		})
	}
}

func TestPatchThresholdsPersists(t *testing.T) {
	a := newTestAgent(t)
	w := doJSON(t, a.server.Handler(), http.MethodPatch, "/api/v1/settings/resource_thresholds", `{"storage":{"critical":99}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	raw, err := a.store.Get(t.Context(), alerts.ThresholdsKey)
	if err != nil {
		t.Fatalf("thresholds not persisted: %v", err)
	}
	var saved alerts.ThresholdSet
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		t.Fatalf("decode saved: %v", err)
	}
	if saved.Storage.Critical != 99 {
		t.Fatalf("expected persisted storage critical 99, got %v", saved.Storage.Critical)
	}
}

func TestToggleAlerts(t *testing.T) {
	a := newTestAgent(t)
	h := a.server.Handler()

	if w := doJSON(t, h, http.MethodPut, "/api/v1/settings/resource_alerts_enabled", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing enabled should be rejected, got %d", w.Code)
	}

	w := doJSON(t, h, http.MethodPut, "/api/v1/settings/resource_alerts_enabled", map[string]bool{"enabled": false})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if a.engine.Store.AlertsEnabled() {
		t.Fatal("alerts should be disabled")
	}
	if v, _ := a.store.Get(t.Context(), alerts.AlertsEnabledKey); v != "false" {
		t.Fatalf("expected persisted flag false, got %q", v)
	}

	w = doJSON(t, h, http.MethodPost, "/api/v1/snapshots", criticalNode())
	var resp snapshotResponse
	decode(t, w, &resp)
	if len(resp.Events) != 0 || len(resp.Notifications) != 0 {
		t.Fatalf("disabled alerts produced %+v", resp)
	}
}

func TestPostSnapshot(t *testing.T) {
	a := newTestAgent(t)
	h := a.server.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/v1/snapshots", criticalNode())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp snapshotResponse
	decode(t, w, &resp)
	if len(resp.Events) != 1 {
		t.Fatalf("expected 1 event, got %+v", resp.Events)
	}
	if ev := resp.Events[0]; ev.Severity != alerts.SeverityCritical || ev.Subject != "Node pve1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if len(resp.Notifications) != 1 || resp.Notifications[0].Container != alerts.NodeContainer {
		t.Fatalf("expected one notification on %s, got %+v", alerts.NodeContainer, resp.Notifications)
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/notifications?container="+alerts.NodeContainer, nil)
	var list struct {
		Notifications []alerts.Notification `json:"notifications"`
	}
	decode(t, w, &list)
	if len(list.Notifications) != 1 {
		t.Fatalf("expected 1 active notification, got %d", len(list.Notifications))
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/notifications?container="+alerts.DefaultContainer, nil)
	decode(t, w, &list)
	if len(list.Notifications) != 0 {
		t.Fatalf("default container should be empty, got %d", len(list.Notifications))
	}

	if got := a.GetSnapshotsEvaluated(); got != 1 {
		t.Fatalf("expected 1 snapshot evaluated, got %d", got)
	}
}

func TestPostSnapshotValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown kind", `{"kind":"pod","name":"x","cpu":1}`},
		{"missing name", `{"kind":"node","cpu":1}`},
		{"negative cpu", `{"kind":"node","name":"x","cpu":-1}`},
		{"empty disk id", `{"kind":"node","name":"x","disks":{"":{"usage":1,"total":2}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAgent(t)
			w := doJSON(t, a.server.Handler(), http.MethodPost, "/api/v1/snapshots", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestAgent(t)
	doJSON(t, a.server.Handler(), http.MethodGet, "/api/v1/health", nil)

	w := doJSON(t, a.server.Handler(), http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "hyperwatch_http_requests_total") {
		t.Fatal("request counter not exported")
	}
}

func dialStream(t *testing.T, srv *httptest.Server, container string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/notifications/ws?container=" + container
	return websocket.DefaultDialer.Dial(url, nil)
}

func waitForClients(t *testing.T, hub *Hub, container string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount(container) != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients on %s, got %d", n, container, hub.ClientCount(container))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) StreamMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg StreamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read stream: %v", err)
	}
	return msg
}

func TestNotificationStream(t *testing.T) {
	a := newTestAgent(t)
	srv := httptest.NewServer(a.server.Handler())
	defer srv.Close()

	conn, _, err := dialStream(t, srv, alerts.NodeContainer)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForClients(t, a.hub, alerts.NodeContainer, 1)

	w := doJSON(t, a.server.Handler(), http.MethodPost, "/api/v1/snapshots", criticalNode())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	msg := readMessage(t, conn)
	if msg.Type != MessageNotification || msg.Notification == nil {
		t.Fatalf("expected notification frame, got %+v", msg)
	}
	if msg.Notification.Class != "danger" {
		t.Fatalf("expected danger class, got %q", msg.Notification.Class)
	}

	msg = readMessage(t, conn)
	if msg.Type != MessageSound || msg.Asset != alerts.DefaultSoundAsset {
		t.Fatalf("expected sound frame, got %+v", msg)
	}
}

func TestNotificationStreamBacklog(t *testing.T) {
	a := newTestAgent(t)
	srv := httptest.NewServer(a.server.Handler())
	defer srv.Close()

	doJSON(t, a.server.Handler(), http.MethodPost, "/api/v1/snapshots", criticalNode())

	conn, _, err := dialStream(t, srv, alerts.NodeContainer)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg := readMessage(t, conn)
	if msg.Type != MessageNotification || msg.Notification.Event.Subject != "Node pve1" {
		t.Fatalf("expected backlog notification, got %+v", msg)
	}
}

func TestNotificationStreamUnknownContainer(t *testing.T) {
	a := newTestAgent(t)
	srv := httptest.NewServer(a.server.Handler())
	defer srv.Close()

	_, resp, err := dialStream(t, srv, "nope")
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 response, got %v", resp)
	}
}

func TestPlayWithoutListeners(t *testing.T) {
	hub := NewHub(logging.NewDiscardLogger())
	if err := hub.Play(alerts.NodeContainer, alerts.DefaultSoundAsset); err != ErrNoListeners {
		t.Fatalf("expected ErrNoListeners, got %v", err)
	}
}
