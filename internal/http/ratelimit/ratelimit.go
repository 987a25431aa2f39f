// Package ratelimit provides per-client-IP token bucket rate limiting for
// the public feed and API endpoints.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const maxEntries = 10000

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu             sync.Mutex
	limiters       map[string]*limiterEntry
	rate           rate.Limit
	burst          int
	idleTTL        time.Duration
	trustedProxies []*net.IPNet
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewIPRateLimiter creates a limiter allowing r requests per second with the
// given burst. Entries idle longer than idleTTL are evicted periodically.
// trustedProxies lists CIDR ranges (or single IPs) of reverse proxies whose
// X-Forwarded-For headers may be believed; when empty, forwarding headers
// are trusted from any peer.
func NewIPRateLimiter(r rate.Limit, burst int, idleTTL time.Duration, trustedProxies []string) *IPRateLimiter {
	l := &IPRateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     r,
		burst:    burst,
		idleTTL:  idleTTL,
	}
	for _, entry := range trustedProxies {
		if ipnet := parseCIDROrIP(entry); ipnet != nil {
			l.trustedProxies = append(l.trustedProxies, ipnet)
		}
	}
	go l.evictLoop()
	return l
}

// Middleware rejects requests over the limit with 429.
func (l *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(l.clientIP(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *IPRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	entry, ok := l.limiters[ip]
	if !ok {
		if len(l.limiters) >= maxEntries {
			l.evictOldestLocked()
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastAccess = time.Now()
	l.mu.Unlock()

	return entry.limiter.Allow()
}

func (l *IPRateLimiter) evictOldestLocked() {
	var oldestIP string
	var oldest time.Time
	for ip, entry := range l.limiters {
		if oldestIP == "" || entry.lastAccess.Before(oldest) {
			oldestIP, oldest = ip, entry.lastAccess
		}
	}
	delete(l.limiters, oldestIP)
}

func (l *IPRateLimiter) evictLoop() {
	ticker := time.NewTicker(l.idleTTL)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-2 * l.idleTTL)
		l.mu.Lock()
		for ip, entry := range l.limiters {
			if entry.lastAccess.Before(cutoff) {
				delete(l.limiters, ip)
			}
		}
		l.mu.Unlock()
	}
}

// clientIP resolves the client address, honoring X-Forwarded-For/X-Real-IP
// only when the direct peer is a trusted proxy.
func (l *IPRateLimiter) clientIP(r *http.Request) string {
	remote := parseIP(r.RemoteAddr)

	if len(l.trustedProxies) > 0 && !l.isTrusted(remote) {
		return remote.String()
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// leftmost entry is the original client
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip.String()
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String()
		}
	}
	return remote.String()
}

func (l *IPRateLimiter) isTrusted(ip net.IP) bool {
	for _, ipnet := range l.trustedProxies {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}

func parseCIDROrIP(s string) *net.IPNet {
	if _, ipnet, err := net.ParseCIDR(s); err == nil {
		return ipnet
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil
	}
	suffix := "/32"
	if ip.To4() == nil {
		suffix = "/128"
	}
	_, ipnet, _ := net.ParseCIDR(s + suffix)
	return ipnet
}

func parseIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}
