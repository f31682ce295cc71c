package resilience

import (
	"time"

	"github.com/sells-group/transition-cli/internal/config"
)

// FromGraphConfig builds the retry policy for graph batch writes.
func FromGraphConfig(cfg config.GraphConfig) RetryConfig {
	rc := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoffMs > 0 {
		rc.InitialBackoff = time.Duration(cfg.InitialBackoffMs) * time.Millisecond
	}
	if cfg.MaxBackoffMs > 0 {
		rc.MaxBackoff = time.Duration(cfg.MaxBackoffMs) * time.Millisecond
	}
	return rc
}

// BreakerFromGraphConfig builds the breaker guarding the graph store.
func BreakerFromGraphConfig(cfg config.GraphConfig) *Breaker {
	return NewBreaker(cfg.BreakerThreshold, time.Duration(cfg.BreakerCooldownS)*time.Second)
}
