package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// IPThrottle provides per-IP sliding-window limiting backed by Redis sorted
// sets. It guards unauthenticated routes such as user registration; metered
// routes are limited per user by the admission pipeline instead.
type IPThrottle struct {
	client    redis.Cmdable
	prefix    string
	maxReqs   int
	windowSec int
}

// NewIPThrottle allows maxReqs per windowSec seconds for each client IP.
// Keys are namespaced as "<prefix>:<ip>".
func NewIPThrottle(client redis.Cmdable, prefix string, maxReqs, windowSec int) *IPThrottle {
	return &IPThrottle{client: client, prefix: prefix, maxReqs: maxReqs, windowSec: windowSec}
}

// Middleware enforces the limit. On Redis errors it fails open.
func (t *IPThrottle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		key := t.prefix + ":" + ip

		allowed, err := t.allow(r.Context(), key)
		if err != nil {
			slog.Warn("ip throttle: redis error, failing open", "error", err, "ip", ip)
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(t.windowSec))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (t *IPThrottle) allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	window := time.Duration(t.windowSec) * time.Second
	windowStart := now.Add(-window).UnixMilli()

	pipe := t.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: fmt.Sprintf("%d", now.UnixNano())})
	pipe.Expire(ctx, key, window+time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return countCmd.Val() < int64(t.maxReqs), nil
}

func clientIP(r *http.Request) string {
	// X-Forwarded-For is trusted: the gateway is expected behind a reverse proxy.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
