package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("invalid input: missing field")))

	assert.True(t, IsTransient(NewTransientError(errors.New("busy"), 503)))
	assert.True(t, IsTransient(eris.Wrap(NewTransientError(errors.New("busy"), 503), "classify")))
	assert.True(t, IsTransient(fmt.Errorf("write tcp: %w", syscall.ECONNRESET)))
	assert.True(t, IsTransient(fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)))
	assert.True(t, IsTransient(&net.DNSError{IsTimeout: true, Err: "timeout"}))

	for _, p := range []string{"connection reset by peer", "broken pipe", "TLS handshake timeout", "i/o timeout"} {
		assert.True(t, IsTransient(errors.New(p)), p)
	}
}

func TestIsRateLimited(t *testing.T) {
	assert.False(t, IsRateLimited(nil))
	assert.True(t, IsRateLimited(NewTransientError(errors.New("slow down"), 429)))
	assert.True(t, IsRateLimited(eris.Wrap(NewTransientError(errors.New("busy"), StatusOverloaded), "vision")))
	assert.True(t, IsRateLimited(errors.New(`429 Too Many Requests {"type":"rate_limit_error"}`)))
	assert.True(t, IsRateLimited(errors.New("Overloaded")))

	assert.False(t, IsRateLimited(NewTransientError(errors.New("bad gateway"), 502)), "other transient errors are not throttling")
	assert.False(t, IsRateLimited(errors.New("invalid request")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504, 529} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 413, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestTransientError(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, 429).WithRetryAfter(3 * time.Second)

	assert.ErrorIs(t, te, inner)
	assert.Equal(t, "root cause", te.Error())
	assert.Equal(t, 429, te.StatusCode)
	assert.Equal(t, 3*time.Second, retryAfter(eris.Wrap(te, "wrapped")))
	assert.Equal(t, time.Duration(0), retryAfter(inner))
}
