// Package middleware provides HTTP middleware components for the ripple-engine API.
package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	contentTypeProblemJSON = "application/problem+json"

	burstCapacityMultiplier    int     = 2
	maxProcesses               int     = 100
	defaultGlobalRPS           int     = 100
	defaultProcessRPS          int     = 50
	defaultAnonymousRPS        int     = 10
	thresholdMultiplier        float64 = 0.8
	thresholdPercentage        int     = 80
	rateLimiterCleanupInterval         = 5 * time.Minute
	rateLimiterIdleTimeout             = 1 * time.Hour
)

type (
	// RateLimiter provides rate limiting for incoming requests.
	//
	// Implementations may use in-memory token buckets (MVP single-node deployment)
	// or distributed stores like Redis (multi-node deployment — out of scope for
	// this single-host worker pool, but the interface leaves room for it).
	RateLimiter interface {
		// Allow checks if a request should be allowed based on rate limits.
		// processName identifies the target process (empty string for routes
		// that aren't scoped to a process, e.g. /jobs, /ping).
		Allow(processName string) bool
	}

	// InMemoryRateLimiter implements RateLimiter using golang.org/x/time/rate.
	//
	// Three-tier limiting:
	//  1. Global limit, applied to every request.
	//  2. Per-process limit, applied to POST /processes/{name}/execution so a
	//     burst of one expensive process (e.g. run_known_wse) cannot starve
	//     enqueue throughput for the rest of the registry.
	//  3. Anonymous limit, shared by every request not scoped to a process.
	//
	// Idle per-process limiters are swept periodically to bound memory.
	InMemoryRateLimiter struct {
		global        *rate.Limiter
		perProcess    map[string]*processLimiter
		anonymous     *rate.Limiter
		mu            sync.RWMutex
		cleanupTicker *time.Ticker
		done          chan struct{}

		processRPS      int
		processBurst    int
		cleanupInterval time.Duration
		idleTimeout     time.Duration
		maxProcesses    int
	}

	// processLimiter tracks rate limit state for a single process name.
	processLimiter struct {
		limiter    *rate.Limiter
		lastAccess time.Time
		mu         sync.Mutex
	}
)

// NewInMemoryRateLimiter creates a new in-memory rate limiter with three-tier limits.
//
// Burst capacity is computed automatically as 2 × rate unless overridden in config.
func NewInMemoryRateLimiter(config *Config) *InMemoryRateLimiter {
	globalBurst := computeBurstCapacity(config.GlobalRPS, config.GlobalBurst)
	processBurst := computeBurstCapacity(config.ProcessRPS, config.ProcessBurst)
	anonBurst := computeBurstCapacity(config.AnonymousRPS, config.AnonymousBurst)

	rl := &InMemoryRateLimiter{
		global:          rate.NewLimiter(rate.Limit(config.GlobalRPS), globalBurst),
		perProcess:      make(map[string]*processLimiter),
		anonymous:       rate.NewLimiter(rate.Limit(config.AnonymousRPS), anonBurst),
		done:            make(chan struct{}),
		processRPS:      config.ProcessRPS,
		processBurst:    processBurst,
		cleanupInterval: config.CleanupInterval,
		idleTimeout:     config.IdleTimeout,
		maxProcesses:    config.MaxProcesses,
	}

	rl.startCleanup()

	return rl
}

// computeBurstCapacity computes the burst capacity based on the rate and optional override.
func computeBurstCapacity(rate, burstOverride int) int {
	if burstOverride > 0 {
		return burstOverride
	}

	return rate * burstCapacityMultiplier
}

// Allow checks if a request should be allowed based on rate limits.
// Implements the RateLimiter interface.
func (rl *InMemoryRateLimiter) Allow(processName string) bool {
	if !rl.global.Allow() {
		return false
	}

	if processName == "" {
		return rl.anonymous.Allow()
	}

	rl.mu.RLock()
	pl, ok := rl.perProcess[processName]
	rl.mu.RUnlock()

	if !ok {
		rl.mu.Lock()
		if pl, ok = rl.perProcess[processName]; !ok {
			pl = &processLimiter{
				limiter:    rate.NewLimiter(rate.Limit(rl.processRPS), rl.processBurst),
				lastAccess: time.Now(),
			}

			rl.perProcess[processName] = pl

			currentCount := len(rl.perProcess)
			threshold := int(float64(rl.maxProcesses) * thresholdMultiplier)

			if currentCount >= threshold {
				slog.Warn("rate limiter approaching max tracked processes",
					"current_processes", currentCount,
					"max_processes", rl.maxProcesses,
					"threshold_percent", thresholdPercentage)
			}
		}

		rl.mu.Unlock()
	}

	pl.mu.Lock()
	pl.lastAccess = time.Now()
	pl.mu.Unlock()

	return pl.limiter.Allow()
}

// Close stops the cleanup goroutine and releases resources.
func (rl *InMemoryRateLimiter) Close() {
	if rl.cleanupTicker != nil {
		rl.cleanupTicker.Stop()
	}

	close(rl.done)
}

// startCleanup starts a background goroutine that periodically removes
// stale per-process limiters to prevent memory leaks from process-name churn.
func (rl *InMemoryRateLimiter) startCleanup() {
	cleanupInterval := rl.cleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = rateLimiterCleanupInterval
	}

	rl.cleanupTicker = time.NewTicker(cleanupInterval)

	go func() {
		for {
			select {
			case <-rl.cleanupTicker.C:
				rl.cleanup()
			case <-rl.done:
				return
			}
		}
	}()
}

func (rl *InMemoryRateLimiter) cleanup() {
	idleTimeout := rl.idleTimeout
	if idleTimeout == 0 {
		idleTimeout = rateLimiterIdleTimeout
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for name, pl := range rl.perProcess {
		pl.mu.Lock()
		lastAccess := pl.lastAccess
		pl.mu.Unlock()

		if now.Sub(lastAccess) > idleTimeout {
			delete(rl.perProcess, name)
		}
	}
}

// processNameFromPath extracts the process name from "/processes/{name}/execution".
// Returns "" for any other path (anonymous tier).
func processNameFromPath(path string) string {
	const prefix = "/processes/"

	if !strings.HasPrefix(path, prefix) {
		return ""
	}

	rest := strings.TrimPrefix(path, prefix)

	if idx := strings.Index(rest, "/"); idx > 0 {
		return rest[:idx]
	}

	return ""
}

// RateLimit returns a middleware that enforces rate limits on incoming requests.
//
// When a request exceeds the rate limit, the middleware returns a 429 (Too Many
// Requests) response in RFC 7807 format.
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			processName := processNameFromPath(r.URL.Path)

			if !limiter.Allow(processName) {
				correlationID := GetCorrelationID(r.Context())

				detail := "Rate limit exceeded. Please retry after some time."
				if err := writeRFC7807Error(w, r, http.StatusTooManyRequests, detail, correlationID); err != nil {
					logger.Error("failed to write rate limit error response",
						slog.String("correlation_id", correlationID),
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)

					http.Error(w, detail, http.StatusTooManyRequests)
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeRFC7807Error writes an RFC 7807 compliant error response without importing the api package.
func writeRFC7807Error(w http.ResponseWriter, r *http.Request, statusCode int, detail, correlationID string) error {
	var title string

	switch statusCode {
	case http.StatusTooManyRequests:
		title = "Too Many Requests"
	default:
		title = "Request Failed"
	}

	problem := map[string]any{
		"type":          fmt.Sprintf("https://ripple-engine.dev/problems/%d", statusCode),
		"title":         title,
		"status":        statusCode,
		"detail":        detail,
		"instance":      r.URL.Path,
		"correlationId": correlationID,
	}

	w.Header().Set("Content-Type", contentTypeProblemJSON)
	w.WriteHeader(statusCode)

	return json.NewEncoder(w).Encode(problem)
}
