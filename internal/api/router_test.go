package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"lane-clash/internal/config"
	"lane-clash/internal/game"

	"github.com/gorilla/websocket"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// MockEngine implements EngineInterface for testing
type MockEngine struct {
	mu     sync.Mutex
	snap   *game.GameSnapshot
	events []game.Event
	resets int
}

func NewMockEngine() *MockEngine {
	return &MockEngine{
		snap: &game.GameSnapshot{
			Sequence:   7,
			TickNumber: 120,
			MapWidth:   1000,
			MapHeight:  1000,
			Bases: []game.EntitySnapshot{
				{ID: "base-1", Kind: "base", Team: "team1", X: 100, Y: 850, HP: 5000, MaxHP: 5000, Alive: true},
				{ID: "base-2", Kind: "base", Team: "team2", X: 900, Y: 150, HP: 4990, MaxHP: 5000, Alive: true},
			},
			Minions: []game.EntitySnapshot{
				{ID: "minion-0", Kind: "minion", Team: "team1", X: 300, Y: 600, HP: 100, MaxHP: 100, Alive: true},
			},
			Teams: []game.TeamSnapshot{
				{Team: "team1", Gold: 20, Kills: 2, Minions: 1, BaseHP: 5000},
				{Team: "team2", Gold: 10, Kills: 1, BaseHP: 4990},
			},
			GoldTotal:  30,
			HeroHealth: 100,
		},
		events: []game.Event{
			game.NewEvent(game.EventTypeSpawn, "minion-0", game.SpawnPayload{Team: "team1"}),
			game.NewEvent(game.EventTypeDamage, "base-2", game.DamagePayload{Damage: 10}),
		},
	}
}

func (m *MockEngine) GetSnapshot() *game.GameSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *MockEngine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.snap = &game.GameSnapshot{MapWidth: 1000, MapHeight: 1000}
}

func (m *MockEngine) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

func (m *MockEngine) RecentEvents(n int) []game.Event {
	if n > len(m.events) {
		n = len(m.events)
	}
	return m.events[len(m.events)-n:]
}

func (m *MockEngine) GetEventLogStats() map[string]interface{} {
	return map[string]interface{}{
		"total":   uint64(len(m.events)),
		"dropped": uint64(0),
		"running": true,
	}
}

func testRouterConfig(engine EngineInterface) RouterConfig {
	return RouterConfig{
		Engine:         engine,
		DisableLogging: true,
	}
}

// ============================================================================
// Route Tests
// ============================================================================

func TestAPIGetState(t *testing.T) {
	engine := NewMockEngine()
	ts := httptest.NewServer(NewRouter(testRouterConfig(engine)))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var snap game.GameSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if snap.TickNumber != 120 || len(snap.Bases) != 2 || len(snap.Minions) != 1 {
		t.Errorf("unexpected snapshot: tick=%d bases=%d minions=%d", snap.TickNumber, len(snap.Bases), len(snap.Minions))
	}
	if snap.HeroHealth != 100 || snap.GoldTotal != 30 {
		t.Errorf("hero=%d gold=%d", snap.HeroHealth, snap.GoldTotal)
	}
}

func TestAPIGetStats(t *testing.T) {
	ts := httptest.NewServer(NewRouter(testRouterConfig(NewMockEngine())))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var stats struct {
		Tick        uint64              `json:"tick"`
		MinionCount int                 `json:"minionCount"`
		GoldTotal   int                 `json:"goldTotal"`
		Teams       []game.TeamSnapshot `json:"teams"`
		Over        bool                `json:"over"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Tick != 120 || stats.MinionCount != 1 || stats.GoldTotal != 30 || len(stats.Teams) != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestAPIGetEvents(t *testing.T) {
	ts := httptest.NewServer(NewRouter(testRouterConfig(NewMockEngine())))
	defer ts.Close()

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{"default", "", http.StatusOK, 2},
		{"limited", "?n=1", http.StatusOK, 1},
		{"zero", "?n=0", http.StatusBadRequest, 0},
		{"garbage", "?n=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/api/events" + tt.query)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var events []struct {
				Type     string `json:"type"`
				EntityID string `json:"entityId"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
				t.Fatal(err)
			}
			if len(events) != tt.wantCount {
				t.Errorf("got %d events, want %d", len(events), tt.wantCount)
			}
			if len(events) > 0 && events[len(events)-1].Type != "damage" {
				t.Errorf("last event type = %q, want damage", events[len(events)-1].Type)
			}
		})
	}
}

func TestAPIGetEventStats(t *testing.T) {
	ts := httptest.NewServer(NewRouter(testRouterConfig(NewMockEngine())))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var stats map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&stats)
	if stats["total"] != float64(2) || stats["running"] != true {
		t.Errorf("unexpected stats %v", stats)
	}
}

func TestAPIMatchReset(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		header     string
		wantStatus int
		wantResets int
	}{
		{"no token configured", "", "", http.StatusOK, 1},
		{"valid token", "s3cret", "Bearer s3cret", http.StatusOK, 1},
		{"lowercase scheme", "s3cret", "bearer s3cret", http.StatusOK, 1},
		{"wrong token", "s3cret", "Bearer nope", http.StatusUnauthorized, 0},
		{"missing header", "s3cret", "", http.StatusUnauthorized, 0},
		{"basic scheme", "s3cret", "Basic s3cret", http.StatusUnauthorized, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewMockEngine()
			cfg := testRouterConfig(engine)
			cfg.AdminToken = tt.token
			ts := httptest.NewServer(NewRouter(cfg))
			defer ts.Close()

			req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/match/reset", bytes.NewReader(nil))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got := engine.Resets(); got != tt.wantResets {
				t.Errorf("resets = %d, want %d", got, tt.wantResets)
			}
		})
	}
}

func TestAPIMatchResetRequiresPost(t *testing.T) {
	ts := httptest.NewServer(NewRouter(testRouterConfig(NewMockEngine())))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/match/reset")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET reset status = %d, want 405", resp.StatusCode)
	}
}

// TestAPIMatchResetResumesFinishedMatch resets a real engine whose match
// already ended and checks the new match plays on.
func TestAPIMatchResetResumesFinishedMatch(t *testing.T) {
	appCfg := config.Default()
	appCfg.Sim.SpawnInterval = 20 * time.Millisecond
	engine := game.NewEngine(game.EngineConfigFrom(appCfg))
	engine.Start()
	defer engine.Stop()

	engine.WithState(func(s *game.State) { s.Base(game.Team2).HP = 0 })
	deadline := time.Now().Add(2 * time.Second)
	for engine.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !engine.IsOver() {
		t.Fatal("setup: match did not end")
	}

	ts := httptest.NewServer(NewRouter(testRouterConfig(engine)))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/match/reset", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d", resp.StatusCode)
	}

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := engine.GetSnapshot()
		if !snap.Over && snap.TickNumber > 0 && len(snap.Minions) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	snap := engine.GetSnapshot()
	t.Errorf("match frozen after reset: over=%v tick=%d minions=%d", snap.Over, snap.TickNumber, len(snap.Minions))
}

func TestAPIGetFrame(t *testing.T) {
	cfg := testRouterConfig(NewMockEngine())
	cfg.FrameWidth, cfg.FrameHeight = 160, 90
	ts := httptest.NewServer(NewRouter(cfg))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/frame.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type = %q", ct)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("invalid PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 160 || b.Dy() != 90 {
		t.Errorf("frame = %dx%d, want 160x90", b.Dx(), b.Dy())
	}
}

func TestAPIRateLimit(t *testing.T) {
	cfg := testRouterConfig(NewMockEngine())
	cfg.Traffic = config.TrafficLimits{PollRate: 1, PollBurst: 2}
	ts := httptest.NewServer(NewRouter(cfg))
	defer ts.Close()

	var limited bool
	for i := 0; i < 5; i++ {
		resp, err := http.Get(ts.URL + "/api/stats")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			if resp.Header.Get("Retry-After") == "" {
				t.Error("429 without Retry-After")
			}
		}
	}
	if !limited {
		t.Error("burst of 5 requests was never rate limited")
	}
}

// TestAPIFrameBudgetIsSeparate exhausts the frame budget and checks state
// polling from the same client is unaffected.
func TestAPIFrameBudgetIsSeparate(t *testing.T) {
	cfg := testRouterConfig(NewMockEngine())
	cfg.FrameWidth, cfg.FrameHeight = 32, 32
	cfg.Traffic = config.TrafficLimits{PollRate: 100, PollBurst: 100, FrameRate: 0.2, FrameBurst: 1}
	ts := httptest.NewServer(NewRouter(cfg))
	defer ts.Close()

	get := func(path string) *http.Response {
		t.Helper()
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return resp
	}

	if resp := get("/api/frame.png"); resp.StatusCode != http.StatusOK {
		t.Fatalf("first frame status = %d", resp.StatusCode)
	}
	resp := get("/api/frame.png")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second frame status = %d, want 429", resp.StatusCode)
	}
	if got := resp.Header.Get("Retry-After"); got != "5" {
		t.Errorf("Retry-After = %q, want 5 at 0.2 frames/s", got)
	}

	for i := 0; i < 10; i++ {
		if resp := get("/api/state"); resp.StatusCode != http.StatusOK {
			t.Fatalf("state poll %d status = %d after frame budget ran out", i, resp.StatusCode)
		}
	}
}

func TestIsAllowedOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", false},
		{"http://localhost", true},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:3000", true},
		{"http://localhost.evil.com", false},
		{"https://example.com", false},
	}
	for _, tt := range tests {
		if got := IsAllowedOrigin(tt.origin); got != tt.want {
			t.Errorf("IsAllowedOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

// ============================================================================
// WebSocket Tests
// ============================================================================

func TestWebSocketReceivesStateAndEvents(t *testing.T) {
	engine := NewMockEngine()
	hub := NewWebSocketHub(config.DefaultTraffic())
	go hub.Run()
	defer hub.Stop()
	hub.StartBroadcastLoop(engine, 10*time.Millisecond)

	router := NewRouter(testRouterConfig(engine))
	router.Get("/ws", hub.HandleWebSocket)
	ts := httptest.NewServer(router)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	hub.ForwardEvents([]game.Event{
		game.NewEvent(game.EventTypeDestroyed, "minion-3", game.DestroyedPayload{EntityID: "minion-3", Kind: "minion"}),
		game.NewEvent(game.EventTypeMatchOver, "base-2", game.MatchOverPayload{Winner: "team1", Loser: "team2"}),
	})

	seen := map[string]bool{}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for !(seen[EventMatchState] && seen[EventEntityRemove] && seen[EventMatchOver]) {
		var msg struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v (seen %v)", err, seen)
		}
		seen[msg.Event] = true
	}
}

func TestWebSocketConnectionCaps(t *testing.T) {
	tests := []struct {
		name       string
		limits     config.TrafficLimits
		accepted   int
		wantStatus int
	}{
		{"per-client cap", config.TrafficLimits{WSPerIP: 3, WSTotal: 100}, 3, http.StatusTooManyRequests},
		{"total cap", config.TrafficLimits{WSPerIP: 10, WSTotal: 2}, 2, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewWebSocketHub(tt.limits)
			go hub.Run()
			defer hub.Stop()

			ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
			defer ts.Close()
			wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

			var conns []*websocket.Conn
			defer func() {
				for _, c := range conns {
					c.Close()
				}
			}()
			for i := 0; i < tt.accepted; i++ {
				c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
				if err != nil {
					t.Fatalf("dial %d: %v", i, err)
				}
				conns = append(conns, c)
			}

			_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err == nil {
				t.Fatal("connection beyond the cap was accepted")
			}
			if resp == nil || resp.StatusCode != tt.wantStatus {
				t.Errorf("rejection response = %v, want %d", resp, tt.wantStatus)
			}
		})
	}
}

// ============================================================================
// Debug Server Tests
// ============================================================================

func TestDebugMuxHealth(t *testing.T) {
	tests := []struct {
		name       string
		health     func() error
		wantStatus int
	}{
		{"no probe", nil, http.StatusOK},
		{"healthy", func() error { return nil }, http.StatusOK},
		{"unhealthy", func() error { return errTest }, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := NewDebugMux(ObservabilityConfig{Health: tt.health})
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestDebugMuxMetrics(t *testing.T) {
	// Generate at least one request sample first
	router := NewRouter(testRouterConfig(NewMockEngine()))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	rec := httptest.NewRecorder()
	NewDebugMux(ObservabilityConfig{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `http_requests_total{endpoint="/api/stats"`) {
		t.Error("request metrics missing the chi route pattern")
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:6060", true},
		{"localhost:9000", true},
		{"[::1]:6060", true},
		{"0.0.0.0:6060", false},
		{":6060", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := isLoopbackAddr(tt.addr); got != tt.want {
			t.Errorf("isLoopbackAddr(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

var errTest = &testError{"probe failed"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
