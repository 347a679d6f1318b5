package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/turf-reservation/internal/config"
	"github.com/iliyamo/turf-reservation/internal/queue"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 {
		cw.buf.Write(b)
	} else if remain := cw.limit - cw.size; remain > 0 {
		if int64(len(b)) <= remain {
			cw.buf.Write(b)
		} else {
			cw.buf.Write(b[:remain])
		}
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// setIfGenScript stores the payload only while the unit's generation still
// matches the one read before the handler ran.
var setIfGenScript = redis.NewScript(`
	local gen = redis.call('GET', KEYS[2]) or '0'
	if gen ~= ARGV[1] then
		return 0
	end
	if tonumber(ARGV[3]) > 0 then
		redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
	else
		redis.call('SET', KEYS[1], ARGV[2])
	end
	return 1
`)

func unitSegment(c echo.Context) string {
	if unit := c.Param("id"); unit != "" {
		return unit
	}
	return "-"
}

// genKey is bumped by every purge of unit.  It never matches the
// "<prefix>:<unit>:*" pattern Purge scans.
func genKey(prefix, unit string) string {
	return prefix + ":gen:" + unit
}

// cacheKeyFrom builds "<prefix>:<unit>:<sha1>".  The unit segment is the
// :id path parameter so all cached grids of a unit can be purged together.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	var parts []string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
		parts = []string{"route", r.URL.Path}
	case "method_route_query":
		parts = []string{"method", r.Method, "route", r.URL.Path, "q", r.URL.RawQuery}
	default: // "route_query"
		parts = []string{"route", r.URL.Path, "q", r.URL.RawQuery}
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("%s:%s:%x", cfg.Prefix, unitSegment(c), sum[:])
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}

// NewRedisCache caches successful responses of the wrapped routes in Redis,
// headers included.  It is mounted on the public slot grid, which is an
// advisory read; the ledger rechecks availability on every create.
//
// A miss records the unit's purge generation before running the handler
// and stores the response only if no purge happened meanwhile, so a grid
// rendered before a booking committed is never cached after its purge.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	maxBody := int64(cfg.MaxBodyBytes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKeyFrom(cfg, c)

			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, "Content-Length") {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, err := c.Response().Write(body)
					return err
				}
			}

			gk := genKey(cfg.Prefix, unitSegment(c))
			gen, err := rdb.Get(ctx, gk).Result()
			switch {
			case errors.Is(err, redis.Nil):
				gen = "0"
			case err != nil:
				log.Warnf("cache: read generation %s: %v", gk, err)
				c.Response().Header().Set("X-Cache", "MISS")
				return next(c)
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || (maxBody > 0 && cw.size > maxBody) {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
				keys := []string{key, gk}
				_ = setIfGenScript.Run(context.WithoutCancel(ctx), rdb, keys, gen, payload, cfg.TTL.Milliseconds()).Err()
			}
			return nil
		}
	}
}

// CachePurger drops the cached slot grids of a unit whenever one of its
// reservations changes.
type CachePurger struct {
	rdb    *redis.Client
	prefix string
}

func NewCachePurger(cfg config.CacheConfig, rdb *redis.Client) *CachePurger {
	return &CachePurger{rdb: rdb, prefix: cfg.Prefix}
}

// Notify implements service.Notifier.
func (p *CachePurger) Notify(ctx context.Context, ev queue.ReservationEvent) {
	if err := p.Purge(ctx, ev.UnitID); err != nil {
		log.Warnf("cache: purge unit %d: %v", ev.UnitID, err)
	}
}

// Purge bumps the generation of unitID, then deletes every cached response
// of it.  Misses already in flight see the new generation and skip their
// write.
func (p *CachePurger) Purge(ctx context.Context, unitID uint64) error {
	unit := strconv.FormatUint(unitID, 10)
	if err := p.rdb.Incr(ctx, genKey(p.prefix, unit)).Err(); err != nil {
		return err
	}
	match := p.prefix + ":" + unit + ":*"
	var cursor uint64
	for {
		keys, next, err := p.rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := p.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
