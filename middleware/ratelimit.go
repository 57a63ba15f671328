package middleware

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/saiset-co/sai-router/types"
	"github.com/saiset-co/sai-router/utils"
)

const (
	rateLimitCleanupInterval = time.Minute
	rateLimitIdleTimeout     = 3 * time.Minute
)

type RateLimitMiddleware struct {
	logger          types.Logger
	metrics         types.MetricsManager
	rateLimitConfig *RateLimitConfig
	clients         map[string]*clientLimiter
	mu              sync.Mutex
	retryAfter      string
	now             func() time.Time
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewRateLimitMiddleware keeps one token bucket per client address. Idle
// buckets are dropped by a worker that lives as long as ctx.
func NewRateLimitMiddleware(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) *RateLimitMiddleware {
	var rateLimitConfig = &RateLimitConfig{
		RequestsPerSecond: 50,
		Burst:             100,
	}

	decodeParams(config.GetConfig().Middlewares.RateLimit, rateLimitConfig, logger, "RateLimit")

	if rateLimitConfig.RequestsPerSecond <= 0 {
		logger.Warn("Invalid rate limit, using default", zap.Float64("requests_per_second", rateLimitConfig.RequestsPerSecond))
		rateLimitConfig.RequestsPerSecond = 50
	}
	if rateLimitConfig.Burst < 1 {
		rateLimitConfig.Burst = 1
	}

	rl := &RateLimitMiddleware{
		logger:          logger,
		metrics:         metrics,
		rateLimitConfig: rateLimitConfig,
		clients:         make(map[string]*clientLimiter, 256),
		retryAfter:      strconv.Itoa(int(math.Max(1, math.Ceil(1/rateLimitConfig.RequestsPerSecond)))),
		now:             time.Now,
	}

	go rl.cleanupWorker(ctx)

	return rl
}

func (rl *RateLimitMiddleware) Handle(ctx *types.RequestCtx, next types.Next) error {
	clientIP := remoteAddr(ctx)

	if !rl.allow(clientIP) {
		rl.logger.Debug("Rate limit exceeded", zap.String("client", clientIP), zap.String("path", ctx.RawPath()))

		if rl.metrics != nil {
			rl.metrics.Counter("rate_limited_total", nil).Inc()
		}

		utils.CreateErrorResponse(ctx, fasthttp.StatusTooManyRequests, "Too Many Requests", types.ErrRateLimitExceeded.Error())
		ctx.Response.Header.Set("Retry-After", rl.retryAfter)
		return nil
	}

	return next()
}

func (rl *RateLimitMiddleware) allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	entry, exists := rl.clients[client]
	if !exists {
		entry = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(rl.rateLimitConfig.RequestsPerSecond), rl.rateLimitConfig.Burst),
		}
		rl.clients[client] = entry
	}

	entry.lastAccess = now
	return entry.limiter.AllowN(now, 1)
}

func (rl *RateLimitMiddleware) cleanupWorker(ctx context.Context) {
	ticker := time.NewTicker(rateLimitCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

func (rl *RateLimitMiddleware) evictIdle() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rateLimitIdleTimeout)
	evicted := 0

	for client, entry := range rl.clients {
		if entry.lastAccess.Before(cutoff) {
			delete(rl.clients, client)
			evicted++
		}
	}

	return evicted
}
