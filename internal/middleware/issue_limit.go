package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const issueLimitPrefix = "issue_limit"

// IssueLimiter caps how many issues one user can report per window. Counts
// live in Redis so every replica shares them.
type IssueLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	log    *logrus.Entry
}

func NewIssueLimiter(client *redis.Client, limit int, window time.Duration) *IssueLimiter {
	return &IssueLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		log:    logrus.WithField("component", "issue_limiter"),
	}
}

// NewRedisClient connects to redisURL (redis://...) and pings it.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// Allow counts one more report for userID. It returns the time left in the
// window when the limit is exceeded. Redis failures let the request through.
func (l *IssueLimiter) Allow(ctx context.Context, userID string) (bool, time.Duration) {
	key := issueLimitPrefix + ":" + userID

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.log.WithError(err).Warn("Issue limiter unavailable, allowing request")
		return true, 0
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			l.log.WithError(err).Warn("Failed to set issue limit TTL")
		}
	}

	if count <= l.limit {
		return true, 0
	}

	retryAfter, err := l.client.TTL(ctx, key).Result()
	if err != nil || retryAfter < 0 {
		retryAfter = l.window
	}
	return false, retryAfter
}

func (l *IssueLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			abortUnauthorized(c, "User not authenticated")
			return
		}

		allowed, retryAfter := l.Allow(c.Request.Context(), actor.ID.Hex())
		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limited",
				"message":     "Daily issue limit reached",
				"retry_after": retryAfter.Seconds(),
			})
			return
		}

		c.Next()
	}
}
