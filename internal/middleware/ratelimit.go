package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/flowride/flow/internal/errors"
	"github.com/flowride/flow/pkg/utils"
)

// RateLimiter is a fixed-window counter per client IP, shared across
// instances through Redis. Redis being down never blocks traffic.
type RateLimiter struct {
	redis    *redis.Client
	requests int
	window   time.Duration
}

func NewRateLimiter(redisClient *redis.Client, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:    redisClient,
		requests: requests,
		window:   window,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := r.RemoteAddr
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			clientIP = forwarded
		}

		count, err := rl.take(r.Context(), "ratelimit:"+clientIP)
		if err != nil {
			// Fail open on Redis errors.
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.requests - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > rl.requests {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
			utils.Error(w, apperrors.NewAPIError("rate_limit_exceeded",
				"too many requests, please try again later", http.StatusTooManyRequests))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// take increments the window counter and returns the new count. The TTL is
// set only when the key is fresh so the window does not slide.
func (rl *RateLimiter) take(ctx context.Context, key string) (int, error) {
	count, err := rl.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		rl.redis.Expire(ctx, key, rl.window)
	}
	return int(count), nil
}
