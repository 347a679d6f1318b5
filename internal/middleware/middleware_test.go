package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/turf-reservation/internal/config"
	"github.com/iliyamo/turf-reservation/internal/queue"
	"github.com/iliyamo/turf-reservation/internal/utils"
)

const secret = "test-secret"

func bearer(t *testing.T, uid uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, uid, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func whoami(c echo.Context) error {
	uid, ok := UserID(c)
	if !ok {
		return c.String(http.StatusOK, "guest")
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": uid, "role": Role(c)})
}

func serve(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRole(t *testing.T) {
	e := echo.New()
	g := e.Group("/v1", JWTAuth(secret))
	g.GET("/me", whoami)
	g.GET("/owner", whoami, RequireRole(RoleOwner))

	rec := serve(e, http.MethodGet, "/v1/me", bearer(t, 42, RoleCustomer))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":42,"role":"CUSTOMER"}`, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/v1/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/v1/me", "Bearer nope").Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/v1/owner", bearer(t, 42, RoleCustomer)).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/v1/owner", bearer(t, 7, RoleOwner)).Code)

	other, err := utils.NewAccessToken("another-secret", 42, RoleOwner, 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/v1/me", "Bearer "+other.Token).Code)
}

func TestJWTAuthRejectsNonNumericSubject(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice", "role": RoleOwner, "exp": time.Now().Add(time.Minute).Unix(),
	})
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", "Bearer "+signed).Code)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Minute,
		TTL: 10 * time.Minute, KeyStrategy: "ip", Prefix: "rl",
	}
	e := echo.New()
	e.GET("/ping", whoami, NewTokenBucket(cfg, rdb))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping", "").Code)
	rec := serve(e, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serve(e, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucketDisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.GET("/ping", whoami, NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping", "").Code)
	}
}

func TestRedisCacheHitAndPurge(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute,
		KeyStrategy: "route_query", Prefix: "cache", MaxBodyBytes: 1 << 20,
	}
	calls := 0
	e := echo.New()
	e.GET("/v1/units/:id/slots", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"calls": calls})
	}, NewRedisCache(cfg, rdb))

	first := serve(e, http.MethodGet, "/v1/units/3/slots?date=2026-11-02", "")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := serve(e, http.MethodGet, "/v1/units/3/slots?date=2026-11-02", "")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	other := serve(e, http.MethodGet, "/v1/units/3/slots?date=2026-11-03", "")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))

	NewCachePurger(cfg, rdb).Notify(context.Background(), queue.ReservationEvent{UnitID: 3})
	again := serve(e, http.MethodGet, "/v1/units/3/slots?date=2026-11-02", "")
	assert.Equal(t, "MISS", again.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestRedisCacheSkipsWriteWhenPurgedDuringRequest(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute,
		KeyStrategy: "route_query", Prefix: "cache", MaxBodyBytes: 1 << 20,
	}
	purger := NewCachePurger(cfg, rdb)
	calls := 0
	e := echo.New()
	e.GET("/v1/units/:id/slots", func(c echo.Context) error {
		calls++
		if calls == 1 {
			// a booking commits while this grid is being rendered
			require.NoError(t, purger.Purge(c.Request().Context(), 3))
		}
		return c.JSON(http.StatusOK, echo.Map{"calls": calls})
	}, NewRedisCache(cfg, rdb))

	stale := serve(e, http.MethodGet, "/v1/units/3/slots?date=2026-11-02", "")
	assert.Equal(t, "MISS", stale.Header().Get("X-Cache"))
	assert.Equal(t, "1", mustGet(t, mr, "cache:gen:3"))

	fresh := serve(e, http.MethodGet, "/v1/units/3/slots?date=2026-11-02", "")
	assert.Equal(t, "MISS", fresh.Header().Get("X-Cache"))
	hit := serve(e, http.MethodGet, "/v1/units/3/slots?date=2026-11-02", "")
	assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))
	assert.Equal(t, fresh.Body.String(), hit.Body.String())
	assert.Equal(t, 2, calls)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
