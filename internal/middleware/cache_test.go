package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapshift/parcel-service/internal/config"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "test-cache",
		MaxBodyBytes: 1 << 10,
	}
}

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestCacheServesHitsUntilInvalidated(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testCacheConfig()

	calls := 0
	e := echo.New()
	e.GET("/parcels", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"calls": calls})
	}, NewRedisCache(cfg, rdb))
	e.POST("/parcels", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"acknowledged": true})
	}, InvalidateCache(cfg, rdb))

	first := serve(e, http.MethodGet, "/parcels?email=a@x.com")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := serve(e, http.MethodGet, "/parcels?email=a@x.com")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, echo.MIMEApplicationJSON, second.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, calls)

	other := serve(e, http.MethodGet, "/parcels?email=b@x.com")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	require.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/parcels").Code)

	third := serve(e, http.MethodGet, "/parcels?email=a@x.com")
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestCacheSkipsErrorsAndLargeBodies(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testCacheConfig()
	cfg.MaxBodyBytes = 16

	calls := 0
	e := echo.New()
	e.GET("/missing", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusNotFound, echo.Map{"error": "parcel not found"})
	}, NewRedisCache(cfg, rdb))
	e.GET("/big", func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "this body is longer than sixteen bytes")
	}, NewRedisCache(cfg, rdb))

	serve(e, http.MethodGet, "/missing")
	serve(e, http.MethodGet, "/missing")
	serve(e, http.MethodGet, "/big")
	rec := serve(e, http.MethodGet, "/big")

	assert.Equal(t, 4, calls)
	assert.Equal(t, "this body is longer than sixteen bytes", rec.Body.String())
}

func TestInvalidateSkipsFailedWrites(t *testing.T) {
	mr, rdb := newTestRedis(t)
	cfg := testCacheConfig()

	e := echo.New()
	e.DELETE("/parcels/:id", func(c echo.Context) error {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid parcel id"})
	}, InvalidateCache(cfg, rdb))

	serve(e, http.MethodDelete, "/parcels/nope")
	assert.False(t, mr.Exists(generationKey(cfg.Prefix)))
}

func TestCacheDisabledPassesThrough(t *testing.T) {
	cfg := testCacheConfig()
	cfg.Enabled = false

	calls := 0
	e := echo.New()
	e.GET("/parcels", func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "ok")
	}, NewRedisCache(cfg, nil))

	serve(e, http.MethodGet, "/parcels")
	rec := serve(e, http.MethodGet, "/parcels")
	assert.Equal(t, 2, calls)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestPayloadCodec(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload(bs[:6])
	assert.False(t, ok)
}
