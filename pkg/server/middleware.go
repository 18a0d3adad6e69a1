package server

import (
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/config"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/metrics"
)

const (
	// limiterIdleTTL is how long a client's bucket survives without requests
	limiterIdleTTL = 10 * time.Minute
	// limiterSweepInterval bounds how often idle buckets are swept
	limiterSweepInterval = time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter manages per-IP token bucket limiters. Buckets idle for
// longer than limiterIdleTTL are evicted.
type IPRateLimiter struct {
	limiters  map[string]*limiterEntry
	mu        sync.Mutex
	rate      rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewIPRateLimiter creates a limiter allowing requestsPerMinute per IP with
// the given burst. A non-positive burst uses requestsPerMinute.
func NewIPRateLimiter(requestsPerMinute, burst int) *IPRateLimiter {
	if burst <= 0 {
		burst = requestsPerMinute
	}
	r := rate.Limit(float64(requestsPerMinute) / 60.0)

	// an evicted bucket must already have refilled to a full burst
	idleTTL := limiterIdleTTL
	if r > 0 {
		if refill := time.Duration(float64(burst) / float64(r) * float64(time.Second)); refill > idleTTL {
			idleTTL = refill
		}
	}

	return &IPRateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     r,
		burst:    burst,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// GetLimiter returns the rate limiter for a given IP
func (ipl *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()

	now := ipl.now()
	if now.Sub(ipl.lastSweep) >= limiterSweepInterval {
		ipl.sweep(now)
	}

	entry, exists := ipl.limiters[ip]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(ipl.rate, ipl.burst)}
		ipl.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// sweep drops buckets idle since before now - idleTTL. Callers hold mu.
func (ipl *IPRateLimiter) sweep(now time.Time) {
	for ip, entry := range ipl.limiters {
		if now.Sub(entry.lastSeen) > ipl.idleTTL {
			delete(ipl.limiters, ip)
		}
	}
	ipl.lastSweep = now
}

// Len returns the number of tracked clients
func (ipl *IPRateLimiter) Len() int {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()
	return len(ipl.limiters)
}

func rateLimitMiddleware(limiter *IPRateLimiter, proxies *trustedProxies, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := limiter.GetLimiter(proxies.clientIP(r))
		if !l.Allow() {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bodySizeLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodDelete) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// instrumentMiddleware counts requests by route pattern so unknown paths
// do not create new label values
func instrumentMiddleware(mux *http.ServeMux, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		_, pattern := mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.RecordHTTPRequest(r.Method, pattern, strconv.Itoa(rec.status))
	})
}

// trustedProxies holds the networks allowed to report a client address
// through forwarding headers
type trustedProxies struct {
	networks []*net.IPNet
}

func newTrustedProxies(proxies []string) (*trustedProxies, error) {
	tp := &trustedProxies{}
	for _, p := range proxies {
		network, err := config.ParseTrustedProxy(p)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", p, err)
		}
		tp.networks = append(tp.networks, network)
	}
	return tp, nil
}

func (tp *trustedProxies) contains(ip string) bool {
	if tp == nil {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range tp.networks {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// clientIP returns the address of the peer. Forwarding headers are read
// only when the peer is a trusted proxy; X-Forwarded-For is walked from the
// right and the first hop that is not a trusted proxy is the client.
func (tp *trustedProxies) clientIP(r *http.Request) string {
	remote := remoteIP(r)
	if !tp.contains(remote) {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				break
			}
			if !tp.contains(hop) {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return remote
}

func remoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

var bearerRegexp = regexp.MustCompile(`^(?:B|b)earer (\S+$)`)

// requireAdmin checks the bearer token on routes that mutate the trust list
// or the ledger, answering 401 or 403 itself on failure. The routes are
// refused while no admin token is configured.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if s.adminToken == "" {
		http.Error(w, "Admin endpoints are disabled", http.StatusForbidden)
		return false
	}

	matches := bearerRegexp.FindStringSubmatch(r.Header.Get("Authorization"))
	if len(matches) != 2 {
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "This endpoint requires a valid Bearer token", http.StatusUnauthorized)
		return false
	}
	if subtle.ConstantTimeCompare([]byte(matches[1]), []byte(s.adminToken)) != 1 {
		s.logger.Sugar().Warnw("Rejected admin request", "method", r.Method, "path", r.URL.Path, "client", remoteIP(r))
		http.Error(w, "Invalid admin token", http.StatusForbidden)
		return false
	}
	return true
}
