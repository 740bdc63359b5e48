package router

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterStore keeps one token bucket per client IP. Idle buckets are
// dropped after ttl.
type limiterStore struct {
	mu          sync.Mutex
	limiters    map[string]*clientLimiter
	r           rate.Limit
	b           int
	ttl         time.Duration
	lastCleanup time.Time
}

type clientLimiter struct {
	lim     *rate.Limiter
	lastHit time.Time
}

func newLimiterStore(r rate.Limit, burst int, ttl time.Duration) *limiterStore {
	return &limiterStore{
		limiters: make(map[string]*clientLimiter),
		r:        r,
		b:        burst,
		ttl:      ttl,
	}
}

func (s *limiterStore) allow(ip string) bool {
	if ip == "" {
		ip = "unknown"
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastCleanup) > s.ttl {
		for k, v := range s.limiters {
			if now.Sub(v.lastHit) > s.ttl {
				delete(s.limiters, k)
			}
		}
		s.lastCleanup = now
	}

	cl, ok := s.limiters[ip]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(s.r, s.b)}
		s.limiters[ip] = cl
	}
	cl.lastHit = now
	return cl.lim.AllowN(now, 1)
}

// clientIP uses RemoteAddr only; forwarded headers are spoofable.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
