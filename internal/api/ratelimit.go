package api

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"lane-clash/internal/config"

	"golang.org/x/time/rate"
)

// RouteClass names a group of routes that share one per-client budget.
type RouteClass string

const (
	RoutePoll    RouteClass = "poll"    // state, stats, events
	RouteFrame   RouteClass = "frame"   // PNG rendering
	RouteControl RouteClass = "control" // match reset
)

// visitorIdleTTL is how long an unused client bucket is kept around
const visitorIdleTTL = 10 * time.Minute

type visitorKey struct {
	class RouteClass
	ip    string
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type budget struct {
	limit rate.Limit
	burst int
}

// RouteLimiter keeps one token bucket per client and route class, so a viewer
// polling /api/state never spends the budget for /api/frame.png and the other
// way round. Classes with a zero rate are not limited.
type RouteLimiter struct {
	budgets    map[RouteClass]budget
	trustProxy bool

	mu        sync.Mutex
	visitors  map[visitorKey]*visitor
	lastSweep time.Time
}

// NewRouteLimiter builds a limiter from the configured traffic budgets.
func NewRouteLimiter(cfg config.TrafficLimits) *RouteLimiter {
	rl := &RouteLimiter{
		budgets:    make(map[RouteClass]budget),
		trustProxy: cfg.TrustProxy,
		visitors:   make(map[visitorKey]*visitor),
		lastSweep:  time.Now(),
	}
	rl.setBudget(RoutePoll, cfg.PollRate, cfg.PollBurst)
	rl.setBudget(RouteFrame, cfg.FrameRate, cfg.FrameBurst)
	rl.setBudget(RouteControl, cfg.ControlRate, cfg.ControlBurst)
	return rl
}

func (rl *RouteLimiter) setBudget(class RouteClass, perSecond float64, burst int) {
	if perSecond <= 0 {
		return
	}
	if burst < 1 {
		burst = 1
	}
	rl.budgets[class] = budget{limit: rate.Limit(perSecond), burst: burst}
}

// Limit returns middleware charging one token from the client's class bucket.
// Rejected requests get 429 with Retry-After set to the wait for the next token.
func (rl *RouteLimiter) Limit(class RouteClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := rl.reserve(class, rl.ClientIP(r), time.Now())
			if !ok {
				RecordConnectionRejected("rate_limit")
				w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(wait)))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// reserve takes a token for ip in class at now. When none is available it
// reports how long until one is.
func (rl *RouteLimiter) reserve(class RouteClass, ip string, now time.Time) (bool, time.Duration) {
	b, limited := rl.budgets[class]
	if !limited {
		return true, 0
	}

	key := visitorKey{class: class, ip: ip}
	rl.mu.Lock()
	if now.Sub(rl.lastSweep) > visitorIdleTTL {
		rl.sweepLocked(now)
	}
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(b.limit, b.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	lim := v.limiter
	rl.mu.Unlock()

	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Sweep drops buckets idle for longer than the TTL and returns how many went.
func (rl *RouteLimiter) Sweep(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.sweepLocked(now)
}

func (rl *RouteLimiter) sweepLocked(now time.Time) int {
	removed := 0
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > visitorIdleTTL {
			delete(rl.visitors, key)
			removed++
		}
	}
	rl.lastSweep = now
	return removed
}

// Tracked returns the number of live client buckets
func (rl *RouteLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// ClientIP returns the address requests are accounted to.
func (rl *RouteLimiter) ClientIP(r *http.Request) string {
	return clientIP(r, rl.trustProxy)
}

func retrySeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

// clientIP extracts the client address. Proxy headers are only honoured when
// trustProxy is set, since any client can send them.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

var (
	errWSTotalLimit = errors.New("websocket connection limit reached")
	errWSIPLimit    = errors.New("websocket per-client limit reached")
)

// ConnLimiter caps concurrent WebSocket connections per client and overall.
// A non-positive cap disables that check.
type ConnLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

// NewConnLimiter creates a connection limiter
func NewConnLimiter(maxPerIP, maxTotal int) *ConnLimiter {
	return &ConnLimiter{
		perIP:    make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// Acquire reserves a slot for ip. Every successful Acquire must be paired
// with a Release.
func (cl *ConnLimiter) Acquire(ip string) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.maxTotal > 0 && cl.total >= cl.maxTotal {
		return errWSTotalLimit
	}
	if cl.maxPerIP > 0 && cl.perIP[ip] >= cl.maxPerIP {
		return errWSIPLimit
	}
	cl.perIP[ip]++
	cl.total++
	return nil
}

// Release frees a slot taken by Acquire
func (cl *ConnLimiter) Release(ip string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	n, ok := cl.perIP[ip]
	if !ok {
		return
	}
	if n <= 1 {
		delete(cl.perIP, ip)
	} else {
		cl.perIP[ip] = n - 1
	}
	cl.total--
}

// Count returns the open connections for ip
func (cl *ConnLimiter) Count(ip string) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.perIP[ip]
}

// Total returns the open connections across all clients
func (cl *ConnLimiter) Total() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.total
}
