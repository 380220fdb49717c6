package restapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomlapa/paris-transit-dashboard/internal/clock"
)

func serveLimited(rl *RateLimitMiddleware, remoteAddr string) int {
	handler := rl.Handler()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	r := httptest.NewRequest(http.MethodGet, "/api/departures", nil)
	r.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w.Code
}

func TestRateLimitAllowsWithinBudget(t *testing.T) {
	rl := NewRateLimitMiddleware(5, nil, clock.RealClock{})
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serveLimited(rl, "10.0.0.1:1234"))
	}
}

func TestRateLimitBlocksBeyondBurst(t *testing.T) {
	rl := NewRateLimitMiddleware(2, nil, clock.RealClock{})
	defer rl.Stop()

	assert.Equal(t, http.StatusOK, serveLimited(rl, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, serveLimited(rl, "10.0.0.1:1234"))

	code := serveLimited(rl, "10.0.0.1:1234")
	require.Equal(t, http.StatusTooManyRequests, code)

	// Another client has its own budget.
	assert.Equal(t, http.StatusOK, serveLimited(rl, "10.0.0.2:1234"))
}

func TestRateLimitExemptAddresses(t *testing.T) {
	rl := NewRateLimitMiddleware(1, []string{"10.0.0.9"}, clock.RealClock{})
	defer rl.Stop()

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, serveLimited(rl, "10.0.0.9:1234"))
	}
}

func TestRateLimitNegativeRateDisablesLimiting(t *testing.T) {
	rl := NewRateLimitMiddleware(-1, nil, clock.RealClock{})
	defer rl.Stop()

	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusOK, serveLimited(rl, "10.0.0.1:1234"))
	}
}

func TestRateLimitCleanupEvictsIdleClients(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	rl := NewRateLimitMiddleware(2, nil, clk)
	defer rl.Stop()

	serveLimited(rl, "10.0.0.1:1234")
	require.Len(t, rl.limiters, 1)

	clk.Advance(11 * time.Minute)
	rl.cleanupOnce()
	assert.Empty(t, rl.limiters)
}

func TestClientAddressPrefersForwardedHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "127.0.0.1:9999"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	assert.Equal(t, "203.0.113.7", clientAddress(r))
}
