package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joselpq/arqcashflow/internal/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoVal_SuccessOnFirstAttempt(t *testing.T) {
	calls := 0
	v, err := DoVal(context.Background(), DefaultRetryConfig(), func(_ context.Context) (int, error) {
		calls++
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, calls)
}

func TestDoVal_SuccessAfterRetry(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetry(), func(_ context.Context) (struct{}, error) {
		calls++
		if calls < 3 {
			return struct{}{}, NewTransientError(errors.New("temporary"), 503)
		}
		return struct{}{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoVal_ExhaustsRetries(t *testing.T) {
	calls := 0
	v, err := DoVal(context.Background(), fastRetry(), func(_ context.Context) (string, error) {
		calls++
		return "partial", NewTransientError(errors.New("always fails"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, "always fails", err.Error())
	assert.Empty(t, v, "no value on failure")
	assert.Equal(t, 3, calls)
}

func TestDoVal_NonTransientError_NoRetry(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetry(), func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ContextCancelled_StopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetry()
	cfg.InitialBackoff = time.Second
	cfg.MaxBackoff = time.Second

	calls := 0
	start := time.Now()
	_, err := DoVal(ctx, cfg, func(_ context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("busy"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDoVal_RateLimitedOnly(t *testing.T) {
	cfg := RateLimitedOnly(fastRetry())

	calls := 0
	v, err := DoVal(context.Background(), cfg, func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(errors.New("rate limited"), 429)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)

	calls = 0
	_, err = DoVal(context.Background(), cfg, func(_ context.Context) (string, error) {
		calls++
		return "", NewTransientError(errors.New("bad gateway"), 502)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-throttling errors are not retried")
}

func TestDoVal_HonorsRetryAfter(t *testing.T) {
	cfg := fastRetry()
	cfg.MaxAttempts = 2
	var waits []time.Duration
	cfg.OnRetry = func(_ int, wait time.Duration, _ error) {
		waits = append(waits, wait)
	}

	calls := 0
	start := time.Now()
	_, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, NewTransientError(errors.New("slow down"), 429).WithRetryAfter(50 * time.Millisecond)
		}
		return 1, nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, []time.Duration{50 * time.Millisecond}, waits)
}

func TestDoVal_OnRetryCallback(t *testing.T) {
	cfg := fastRetry()
	var attempts []int
	cfg.OnRetry = func(attempt int, _ time.Duration, _ error) {
		attempts = append(attempts, attempt)
	}

	_, _ = DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 0, NewTransientError(errors.New("fail"), 503)
	})
	assert.Equal(t, []int{1, 2}, attempts, "no wait after the last attempt")
}

func TestWithDefaults(t *testing.T) {
	cfg := RetryConfig{JitterFraction: -1}.withDefaults()
	assert.Equal(t, 2, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 2.0, cfg.Multiplier)
	assert.Equal(t, 0.0, cfg.JitterFraction)
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, cfg.backoff(1))
	assert.Equal(t, 200*time.Millisecond, cfg.backoff(2))
	assert.Equal(t, 400*time.Millisecond, cfg.backoff(3))
	assert.Equal(t, time.Second, cfg.backoff(11), "capped at max")

	cfg.JitterFraction = 0.5
	for range 50 {
		d := cfg.backoff(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestForModelCalls_DefaultsToTwoAttempts(t *testing.T) {
	rc := ForModelCalls(config.ImportConfig{RetryInitialBackoffMs: 1, RetryMaxBackoffMs: 1}, "classify")
	assert.Equal(t, 2, rc.MaxAttempts)

	calls := 0
	_, err := DoVal(context.Background(), rc, func(_ context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("throttled"), 429)
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestForModelCalls(t *testing.T) {
	rc := ForModelCalls(config.ImportConfig{RetryAttempts: 5, RetryInitialBackoffMs: 200}, "classify")
	assert.Equal(t, 5, rc.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, rc.InitialBackoff)
	assert.Equal(t, 30*time.Second, rc.MaxBackoff)
	assert.Equal(t, 0.25, rc.JitterFraction)
	require.NotNil(t, rc.OnRetry)
	require.NotNil(t, rc.ShouldRetry)

	assert.True(t, rc.ShouldRetry(NewTransientError(errors.New("throttled"), 429)))
	assert.True(t, rc.ShouldRetry(NewTransientError(errors.New("overloaded"), StatusOverloaded)))
	assert.False(t, rc.ShouldRetry(NewTransientError(errors.New("bad gateway"), 502)))
}

func TestRetryLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		RetryLogger("anthropic", "classify")(1, time.Second, errors.New("boom"))
	})
}
