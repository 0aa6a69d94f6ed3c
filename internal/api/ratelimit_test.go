package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"lane-clash/internal/config"
)

func TestRouteLimiterReserve(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRouteLimiter(config.TrafficLimits{PollRate: 1, PollBurst: 2, ControlRate: 0.2, ControlBurst: 1})

	tests := []struct {
		name      string
		class     RouteClass
		ip        string
		at        time.Duration
		wantOK    bool
		wantRetry int
	}{
		{"poll burst 1", RoutePoll, "10.0.0.1", 0, true, 0},
		{"poll burst 2", RoutePoll, "10.0.0.1", 0, true, 0},
		{"poll exhausted", RoutePoll, "10.0.0.1", 0, false, 1},
		{"other client has its own bucket", RoutePoll, "10.0.0.2", 0, true, 0},
		{"poll refilled after 1s", RoutePoll, "10.0.0.1", time.Second, true, 0},
		{"frame is unlimited", RouteFrame, "10.0.0.1", time.Second, true, 0},
		{"control first", RouteControl, "10.0.0.1", time.Second, true, 0},
		{"control waits 5s", RouteControl, "10.0.0.1", time.Second, false, 5},
	}

	for _, tt := range tests {
		ok, wait := rl.reserve(tt.class, tt.ip, now.Add(tt.at))
		if ok != tt.wantOK {
			t.Errorf("%s: ok = %v, want %v", tt.name, ok, tt.wantOK)
			continue
		}
		if !ok {
			if got := retrySeconds(wait); got != tt.wantRetry {
				t.Errorf("%s: retry = %ds (%v), want %ds", tt.name, got, wait, tt.wantRetry)
			}
		}
	}
}

func TestRouteLimiterSweep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRouteLimiter(config.TrafficLimits{PollRate: 5, PollBurst: 5})

	rl.reserve(RoutePoll, "10.0.0.1", now)
	rl.reserve(RoutePoll, "10.0.0.2", now.Add(visitorIdleTTL))
	if n := rl.Tracked(); n != 2 {
		t.Fatalf("tracked = %d, want 2", n)
	}

	if removed := rl.Sweep(now.Add(visitorIdleTTL + time.Minute)); removed != 1 {
		t.Errorf("swept %d buckets, want 1", removed)
	}
	if n := rl.Tracked(); n != 1 {
		t.Errorf("tracked after sweep = %d, want 1", n)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		xff        string
		xri        string
		trustProxy bool
		want       string
	}{
		{"remote addr", "192.0.2.7:5555", "", "", false, "192.0.2.7"},
		{"forwarded header ignored", "192.0.2.7:5555", "203.0.113.9", "", false, "192.0.2.7"},
		{"forwarded first hop", "192.0.2.7:5555", "203.0.113.9, 10.0.0.1", "", true, "203.0.113.9"},
		{"real ip", "192.0.2.7:5555", "", " 203.0.113.4 ", true, "203.0.113.4"},
		{"trusted but no headers", "192.0.2.7:5555", "", "", true, "192.0.2.7"},
		{"remote without port", "192.0.2.7", "", "", false, "192.0.2.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/state", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnLimiter(t *testing.T) {
	cl := NewConnLimiter(2, 3)

	if err := cl.Acquire("a"); err != nil {
		t.Fatal(err)
	}
	if err := cl.Acquire("a"); err != nil {
		t.Fatal(err)
	}
	if err := cl.Acquire("a"); err != errWSIPLimit {
		t.Errorf("third from a = %v, want per-client limit", err)
	}
	if err := cl.Acquire("b"); err != nil {
		t.Fatal(err)
	}
	if err := cl.Acquire("c"); err != errWSTotalLimit {
		t.Errorf("fourth overall = %v, want total limit", err)
	}

	cl.Release("a")
	cl.Release("a")
	cl.Release("a") // extra release is ignored
	if n := cl.Count("a"); n != 0 {
		t.Errorf("count(a) = %d after release", n)
	}
	if n := cl.Total(); n != 1 {
		t.Errorf("total = %d, want 1", n)
	}
	if err := cl.Acquire("c"); err != nil {
		t.Errorf("acquire after release: %v", err)
	}
}
