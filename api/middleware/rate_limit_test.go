package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type counterStore struct {
	counts map[string]int64
	ttls   map[string]time.Duration
	err    error
}

func newCounterStore() *counterStore {
	return &counterStore{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (c *counterStore) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.counts[key]++
	if c.counts[key] == 1 {
		c.ttls[key] = ttl
	}
	return c.counts[key], nil
}

func (c *counterStore) RateLimitKey(policy, scope, id string) string {
	return "rl:" + policy + ":" + scope + ":" + id
}

func payRequest(userID, ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/1/payment", nil)
	req.RemoteAddr = ip + ":5555"
	return req.WithContext(WithIdentity(req.Context(), auth.Identity{UserID: userID, Role: enums.RoleCustomer}))
}

func TestRateLimitBlocksPerUser(t *testing.T) {
	store := newCounterStore()
	policy := NewRateLimitPolicy("Payment", 90*time.Second, 2, 0)
	handler := RateLimit(policy, store, nil)(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, payRequest("cust-1", "10.0.0.1"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, payRequest("cust-1", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
	assert.Equal(t, 90*time.Second, store.ttls["rl:payment:user:cust-1"])

	// another caller has its own budget
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, payRequest("cust-2", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitBlocksPerIP(t *testing.T) {
	store := newCounterStore()
	handler := RateLimit(NewRateLimitPolicy("payment", time.Minute, 0, 1), store, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, payRequest("cust-1", "10.0.0.1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, payRequest("cust-2", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	store := newCounterStore()
	store.err = errors.New("redis down")
	handler := RateLimit(NewRateLimitPolicy("payment", time.Minute, 1, 1), store, nil)(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, payRequest("cust-1", "10.0.0.1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	store := newCounterStore()
	handler := RateLimit(NewRateLimitPolicy("payment", 0, 1, 1), store, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, payRequest("cust-1", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.counts)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:1234"
	assert.Equal(t, "192.0.2.10", clientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.5 , 10.0.0.1")
	assert.Equal(t, "203.0.113.5", clientIP(req))
}
