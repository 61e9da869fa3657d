package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLimiter struct {
	ctx     context.Context
	key     string
	allowed bool
	err     error
}

func (l *recordingLimiter) Allow(ctx context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.ctx = ctx
	l.key = key
	return l.allowed, l.err
}

func serveRateLimited(t *testing.T, limiter *recordingLimiter, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	handler := RateLimit(limiter, 10, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	return rec
}

func TestRateLimitUsesRequestContext(t *testing.T) {
	type ctxKey struct{}
	limiter := &recordingLimiter{allowed: true}

	r := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
	r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, "marker"))

	rec := serveRateLimited(t, limiter, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, limiter.ctx)
	assert.Equal(t, "marker", limiter.ctx.Value(ctxKey{}),
		"limiter must see the request context, not a detached one")
}

func TestRateLimitRejectsWhenExceeded(t *testing.T) {
	limiter := &recordingLimiter{allowed: false}

	r := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
	r.RemoteAddr = "10.0.0.1:4321"

	rec := serveRateLimited(t, limiter, r)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "api:10.0.0.1", limiter.key)
}

func TestRateLimitFailsOpenOnLimiterError(t *testing.T) {
	limiter := &recordingLimiter{err: context.DeadlineExceeded}

	rec := serveRateLimited(t, limiter, httptest.NewRequest(http.MethodGet, "/api/portfolio", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
