package resilience

import (
	"time"

	"github.com/joselpq/arqcashflow/internal/config"
)

// ForModelCalls builds the retry policy for one kind of reasoning-service
// call. Only throttling is retried; zero knobs keep the defaults.
func ForModelCalls(cfg config.ImportConfig, operation string) RetryConfig {
	rc := DefaultRetryConfig()
	if cfg.RetryAttempts > 0 {
		rc.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryInitialBackoffMs > 0 {
		rc.InitialBackoff = time.Duration(cfg.RetryInitialBackoffMs) * time.Millisecond
	}
	if cfg.RetryMaxBackoffMs > 0 {
		rc.MaxBackoff = time.Duration(cfg.RetryMaxBackoffMs) * time.Millisecond
	}
	rc.OnRetry = RetryLogger("anthropic", operation)
	return RateLimitedOnly(rc)
}

// RateLimitedOnly returns cfg restricted to retrying throttling errors.
func RateLimitedOnly(cfg RetryConfig) RetryConfig {
	cfg.ShouldRetry = IsRateLimited
	return cfg
}
