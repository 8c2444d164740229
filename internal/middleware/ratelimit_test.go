package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapshift/parcel-service/internal/config"
)

func testRateLimitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled: true,
		API:     config.Bucket{Capacity: 3, RefillTokens: 1, RefillInterval: time.Hour},
		Payment: config.Bucket{Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour},
		PaymentPaths: map[string]bool{
			"/create-checkout-session": true,
			"/payment-success":         true,
		},
		TTL:         2 * time.Hour,
		KeyStrategy: "ip",
		Prefix:      "rl-test",
	}
}

func rateLimitedEcho(cfg config.RateLimitConfig, mw echo.MiddlewareFunc) *echo.Echo {
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	e := echo.New()
	e.Use(mw)
	e.GET("/parcels", ok)
	e.GET("/parcels/:id", ok)
	e.POST("/create-checkout-session", ok)
	e.PATCH("/payment-success", ok)
	return e
}

func TestRateLimiterBlocksWhenEmpty(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testRateLimitConfig()
	e := rateLimitedEcho(cfg, NewRateLimiter(cfg, rdb))

	first := serve(e, http.MethodGet, "/parcels")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "3", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/parcels/abc").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/parcels").Code)

	blocked := serve(e, http.MethodGet, "/parcels/abc")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "3600", blocked.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"too_many_requests","message":"rate limit exceeded","retry_after":3600}`, blocked.Body.String())
}

func TestRateLimiterSeparatesPaymentBucket(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testRateLimitConfig()
	e := rateLimitedEcho(cfg, NewRateLimiter(cfg, rdb))

	// payment routes share the smaller bucket
	checkout := serve(e, http.MethodPost, "/create-checkout-session")
	assert.Equal(t, http.StatusOK, checkout.Code)
	assert.Equal(t, "1", checkout.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, http.StatusTooManyRequests, serve(e, http.MethodPatch, "/payment-success").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(e, http.MethodPost, "/create-checkout-session").Code)

	// an exhausted payment bucket leaves parcel reads untouched
	for i := 0; i < 3; i++ {
		res := serve(e, http.MethodGet, "/parcels")
		require.Equal(t, http.StatusOK, res.Code, "read %d", i)
		assert.Equal(t, "3", res.Header().Get("X-RateLimit-Limit"))
	}
	assert.Equal(t, http.StatusTooManyRequests, serve(e, http.MethodGet, "/parcels").Code)
}

func TestRateLimiterReadsDoNotDrainPayments(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testRateLimitConfig()
	e := rateLimitedEcho(cfg, NewRateLimiter(cfg, rdb))

	for i := 0; i < 4; i++ {
		serve(e, http.MethodGet, "/parcels")
	}
	assert.Equal(t, http.StatusTooManyRequests, serve(e, http.MethodGet, "/parcels").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/create-checkout-session").Code)
}

func TestRateLimiterRefills(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testRateLimitConfig()
	cfg.Payment.RefillInterval = 50 * time.Millisecond
	e := rateLimitedEcho(cfg, NewRateLimiter(cfg, rdb))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/create-checkout-session").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(e, http.MethodPost, "/create-checkout-session").Code)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/create-checkout-session").Code)
}

func TestRateLimiterFailsOpenWithoutRedis(t *testing.T) {
	mr, rdb := newTestRedis(t)
	cfg := testRateLimitConfig()
	e := rateLimitedEcho(cfg, NewRateLimiter(cfg, rdb))
	mr.Close()

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/create-checkout-session").Code)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testRateLimitConfig()
	cfg.Enabled = false
	e := rateLimitedEcho(cfg, NewRateLimiter(cfg, rdb))

	for i := 0; i < 3; i++ {
		res := serve(e, http.MethodPost, "/create-checkout-session")
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Empty(t, res.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimiterKeys(t *testing.T) {
	e := echo.New()
	req, rec := newReq(http.MethodGet, "/parcels/1"), newRec()
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, rec)
	c.SetPath("/parcels/:id")
	c.Set(ctxSubject, "ops@zapshift.io")

	cases := map[string]string{
		"ip":       "rl:api:ip:10.0.0.9",
		"user":     "rl:api:user:ops@zapshift.io",
		"route":    "rl:api:route:GET /parcels/:id",
		"ip_route": "rl:api:ip:10.0.0.9:route:GET /parcels/:id",
		"ip_user":  "rl:api:ip:10.0.0.9:user:ops@zapshift.io",
		"bogus":    "rl:api:ip:10.0.0.9",
	}
	for strategy, want := range cases {
		l := &rateLimiter{cfg: config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}}
		assert.Equal(t, want, l.key(classAPI, c), strategy)
	}

	l := &rateLimiter{cfg: testRateLimitConfig()}
	class, bucket := l.classify("/payment-success")
	assert.Equal(t, classPayment, class)
	assert.Equal(t, 1, bucket.Capacity)
	class, _ = l.classify("/parcels/:id")
	assert.Equal(t, classAPI, class)
}
