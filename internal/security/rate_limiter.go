// Package security holds the per-client rate limiter applied to
// application routes.
package security

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/leslieo2/go-probe/internal/config"
	"github.com/leslieo2/go-probe/internal/constants"
)

// RateLimiter keeps one token bucket per client IP. Probe routes bypass it
// so an orchestrator is never throttled.
type RateLimiter struct {
	limiters  *cache.Cache
	config    config.RateLimitConfig
	skipPaths map[string]bool
	maxSize   int
	stop      chan struct{}
	stopOnce  sync.Once
}

// RateLimitStatus describes the bucket of one client.
type RateLimitStatus struct {
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// NewRateLimiter creates a limiter. Requests to skipPaths are never limited.
func NewRateLimiter(cfg config.RateLimitConfig, skipPaths ...string) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = constants.RateLimitCleanupInterval
	}

	// Bound the number of tracked clients
	maxSize := cfg.MaxCacheSize
	if maxSize == 0 {
		maxSize = constants.RateLimitMaxCacheSize
	}

	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}

	rl := &RateLimiter{
		limiters:  cache.New(cfg.CleanupInterval, cfg.CleanupInterval*2),
		config:    cfg,
		skipPaths: skip,
		maxSize:   maxSize,
		stop:      make(chan struct{}),
	}

	if cfg.Enabled {
		go rl.periodicCleanup()
	}

	return rl
}

// Stop ends the background cleanup.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stop)
	})
}

// periodicCleanup evicts clients when the cache grows past its bound
func (rl *RateLimiter) periodicCleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.enforceMaxSize()
		}
	}
}

func (rl *RateLimiter) enforceMaxSize() {
	currentSize := rl.limiters.ItemCount()
	if currentSize <= rl.maxSize {
		return
	}

	// Remove an extra 10% to avoid cleaning up on every tick. go-cache
	// exposes no access times and map iteration order is random, so the
	// evicted clients are arbitrary.
	toRemove := currentSize - rl.maxSize + rl.maxSize/10
	for key := range rl.limiters.Items() {
		if toRemove <= 0 {
			break
		}
		rl.limiters.Delete(key)
		toRemove--
	}
}

func (rl *RateLimiter) limiter(identifier string) *rate.Limiter {
	if item, found := rl.limiters.Get(identifier); found {
		return item.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize)
	if err := rl.limiters.Add(identifier, limiter, cache.DefaultExpiration); err != nil {
		// another request created it first
		if item, found := rl.limiters.Get(identifier); found {
			return item.(*rate.Limiter)
		}
	}
	return limiter
}

// Allow consumes one token for identifier.
func (rl *RateLimiter) Allow(identifier string) bool {
	if !rl.config.Enabled {
		return true
	}
	return rl.limiter(identifier).Allow()
}

// Status reports the bucket of identifier without consuming a token.
func (rl *RateLimiter) Status(identifier string) RateLimitStatus {
	status := RateLimitStatus{Limit: rl.config.BurstSize, Remaining: rl.config.BurstSize}
	if !rl.config.Enabled {
		return status
	}

	tokens := rl.limiter(identifier).Tokens()
	status.Remaining = int(math.Max(0, math.Floor(tokens)))
	if tokens < 1 && rl.config.RequestsPerSecond > 0 {
		missing := 1 - tokens
		status.RetryAfter = time.Duration(missing / float64(rl.config.RequestsPerSecond) * float64(time.Second))
	}
	return status
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.config.Enabled || rl.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		identifier := "ip:" + ClientIP(r)

		if !rl.Allow(identifier) {
			status := rl.Status(identifier)
			retryAfter := int(math.Ceil(status.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}

			w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
			w.Header().Set(constants.HeaderXRateLimitLimit, strconv.Itoa(status.Limit))
			w.Header().Set(constants.HeaderXRateLimitRemaining, "0")
			w.Header().Set(constants.HeaderRetryAfter, strconv.Itoa(retryAfter))
			w.WriteHeader(http.StatusTooManyRequests)

			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error":       constants.ErrorCodeRateLimitExceeded,
				"message":     fmt.Sprintf("Rate limit exceeded. Try again in %ds", retryAfter),
				"retry_after": retryAfter,
			})
			return
		}

		status := rl.Status(identifier)
		w.Header().Set(constants.HeaderXRateLimitLimit, strconv.Itoa(status.Limit))
		w.Header().Set(constants.HeaderXRateLimitRemaining, strconv.Itoa(status.Remaining))

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the originating client address, preferring proxy
// headers over the connection address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get(constants.HeaderXForwardedFor); xff != "" {
		ips := strings.Split(xff, ",")
		if ip := strings.TrimSpace(ips[0]); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get(constants.HeaderXRealIP); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
