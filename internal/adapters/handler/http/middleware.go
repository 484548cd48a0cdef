package http

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

type contextKey string

// AdminIdentityKey holds the caller identity asserted by the eligibility
// gate fronting this service. The core never reads ambient session state;
// every call receives the identity explicitly through this context value.
const AdminIdentityKey contextKey = "adminIdentity"

const identityHeader = "X-Admin-Identity"

// EligibilityGate trusts the fronting gate's identity header. Requests
// without it never reach the core.
func EligibilityGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := strings.TrimSpace(r.Header.Get(identityHeader))
		if identity == "" {
			http.Error(w, "missing administrator identity", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), AdminIdentityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerIdentity(r *http.Request) (string, bool) {
	identity, ok := r.Context().Value(AdminIdentityKey).(string)
	return identity, ok
}

// identityRateLimiter keeps one token bucket per administrator identity.
// Tens of concurrent callers are expected, so the map is never pruned.
type identityRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newIdentityRateLimiter(limit rate.Limit, burst int) *identityRateLimiter {
	return &identityRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (l *identityRateLimiter) limiter(identity string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[identity]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[identity] = lim
	}
	return lim
}

// RateLimit rejects callers that exceed their per-identity budget. Applied
// to the token and vote endpoints only; reads are unmetered.
func (l *identityRateLimiter) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := callerIdentity(r)
		if !ok {
			http.Error(w, "missing administrator identity", http.StatusUnauthorized)
			return
		}
		if !l.limiter(identity).Allow() {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
