package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/thiagocrux/simcasi/internal"
	"github.com/thiagocrux/simcasi/pkg/logger"
)

// LoginThrottle counts login attempts per client IP in Redis so the limit is
// shared by every server instance. X-Forwarded-For is only read when the
// socket peer is a trusted proxy.
type LoginThrottle struct {
	redis       *redis.Client
	maxAttempts int
	window      time.Duration
	prefix      string
	proxies     []*net.IPNet
}

// NewLoginThrottle trusts no proxy when cfg.TrustedProxies does not parse;
// Config.Validate reports that case at startup.
func NewLoginThrottle(client *redis.Client, cfg internal.ThrottleConfig) *LoginThrottle {
	proxies, err := cfg.ProxyNetworks()
	if err != nil {
		proxies = nil
	}
	return &LoginThrottle{
		redis:       client,
		maxAttempts: cfg.MaxAttempts,
		window:      cfg.Window,
		prefix:      "throttle:login",
		proxies:     proxies,
	}
}

// Allow records one attempt for key. The window starts at the first attempt
// and is not extended by later ones.
func (t *LoginThrottle) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := fmt.Sprintf("%s:%s", t.prefix, key)

	pipe := t.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, fmt.Errorf("redis error: %w", err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		if err := t.redis.Expire(ctx, redisKey, t.window).Err(); err != nil {
			return true, 0, fmt.Errorf("redis error: %w", err)
		}
		remaining = t.window
	}

	return incr.Val() <= int64(t.maxAttempts), remaining, nil
}

func (t *LoginThrottle) Reset(ctx context.Context, key string) error {
	return t.redis.Del(ctx, fmt.Sprintf("%s:%s", t.prefix, key)).Err()
}

// Handler rejects a client over the limit with TOO_MANY_ATTEMPTS. Redis
// failures let the request through.
func (t *LoginThrottle) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := t.clientIP(r)

		allowed, retryAfter, err := t.Allow(ctx, "ip:"+ip)
		if err != nil {
			logger.From(ctx).WarnContext(ctx, "login throttle unavailable, allowing request", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		logger.From(ctx).WarnContext(ctx, "login throttled", "ip_address", ip)

		status, body := internal.ErrTooManyAttempts.ToHTTPResponse()
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int64(math.Ceil(retryAfter.Seconds()))))
		writeJSON(w, status, body)
	})
}

// clientIP is the socket peer unless that peer is a trusted proxy. Behind
// proxies it walks X-Forwarded-For from the right and stops at the first hop
// no trusted proxy vouches for, so hops the client prepends are never used.
func (t *LoginThrottle) clientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	if !t.trusted(net.ParseIP(peer)) {
		return peer
	}

	var hops []string
	for _, value := range r.Header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(value, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}

	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		ip := net.ParseIP(hops[i])
		if ip == nil {
			break
		}
		client = ip.String()
		if !t.trusted(ip) {
			break
		}
	}
	return client
}

func (t *LoginThrottle) trusted(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, network := range t.proxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
