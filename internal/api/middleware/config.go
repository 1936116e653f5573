// Package middleware provides HTTP middleware components for the ripple-engine API.
package middleware

import (
	"time"

	"github.com/floodlib/ripple-engine/internal/config"
)

// Config holds rate limiter configuration.
//
// Rate limits specify requests per second (RPS) for three tiers:
//   - Global: Applied to all requests
//   - Per-process: Applied to POST /processes/{name}/execution, keyed by process name
//   - Anonymous: Applied to requests not scoped to a process (e.g. /jobs, /ping)
//
// Burst capacity allows temporary bursts above sustained rate.
// If burst fields are 0, they are computed automatically as 2 × rate.
type Config struct {
	// Rate limits (requests per second)
	GlobalRPS    int // Default: 100
	ProcessRPS   int // Default: 50
	AnonymousRPS int // Default: 10

	// Optional burst capacity overrides (0 = compute automatically as 2 × rate) using computeBurstCapacity()
	GlobalBurst    int // Default: 0 (computed as 2 × GlobalRPS = 200)
	ProcessBurst   int // Default: 0 (computed as 2 × ProcessRPS = 100)
	AnonymousBurst int // Default: 0 (computed as 2 × AnonymousRPS = 20)

	// Memory cleanup configuration
	CleanupInterval time.Duration // Default: 5 minutes
	IdleTimeout     time.Duration // Default: 1 hour
	MaxProcesses    int           // Default: 100
}

// LoadConfig loads middleware config from environment variables with fallback to defaults.
//
// Default burst capacity: 2 × rate (allows 2-second burst)
// Default cleanup: every 5 minutes, removes process limiters idle >1 hour
// Default max tracked processes: 100 (the registry is small and static; this bounds
// memory growth if a client probes nonexistent process names).
func LoadConfig() *Config {
	return &Config{
		// Rate limits
		GlobalRPS:    config.GetEnvInt("RIPPLE_GLOBAL_RPS", defaultGlobalRPS),
		ProcessRPS:   config.GetEnvInt("RIPPLE_PROCESS_RPS", defaultProcessRPS),
		AnonymousRPS: config.GetEnvInt("RIPPLE_ANONYMOUS_RPS", defaultAnonymousRPS),

		// Burst overrides (0 = auto-compute)
		GlobalBurst:    config.GetEnvInt("RIPPLE_GLOBAL_BURST", 0),
		ProcessBurst:   config.GetEnvInt("RIPPLE_PROCESS_BURST", 0),
		AnonymousBurst: config.GetEnvInt("RIPPLE_ANONYMOUS_BURST", 0),

		// Cleanup configuration
		CleanupInterval: config.GetEnvDuration(
			"RIPPLE_RATE_LIMIT_CLEANUP_INTERVAL", rateLimiterCleanupInterval,
		),
		IdleTimeout:  config.GetEnvDuration("RIPPLE_RATE_LIMIT_IDLE_TIMEOUT", rateLimiterIdleTimeout),
		MaxProcesses: config.GetEnvInt("RIPPLE_RATE_LIMIT_MAX_PROCESSES", maxProcesses),
	}
}
