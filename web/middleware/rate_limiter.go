package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	MessagesPerMinute int           // Max chat messages per user per minute
	FilesPerHour      int           // Max file uploads per user per hour
	BurstSize         int           // Allow burst of N requests
	CleanupInterval   time.Duration // How often to clean up old entries
}

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket
func NewTokenBucket(maxTokens float64, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request can proceed and consumes a token if so
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()

	// Refill tokens based on elapsed time
	tb.tokens = min(tb.maxTokens, tb.tokens+(elapsed*tb.refillRate))
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// Remaining returns the number of tokens remaining
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tokens := min(tb.maxTokens, tb.tokens+(elapsed*tb.refillRate))
	return int(tokens)
}

// UserRateLimiter manages rate limits per user
type UserRateLimiter struct {
	config        RateLimiterConfig
	messageLimits map[uuid.UUID]*TokenBucket
	fileLimits    map[uuid.UUID]*TokenBucket
	mu            sync.RWMutex
	logger        *zap.Logger
	stopCleanup   chan struct{}
}

// NewUserRateLimiter creates a new user-based rate limiter
func NewUserRateLimiter(config RateLimiterConfig, logger *zap.Logger) *UserRateLimiter {
	limiter := &UserRateLimiter{
		config:        config,
		messageLimits: make(map[uuid.UUID]*TokenBucket),
		fileLimits:    make(map[uuid.UUID]*TokenBucket),
		logger:        logger,
		stopCleanup:   make(chan struct{}),
	}

	// Start cleanup goroutine
	go limiter.cleanupRoutine()

	return limiter
}

// cleanupRoutine periodically removes stale entries
func (url *UserRateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(url.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			url.cleanup()
		case <-url.stopCleanup:
			return
		}
	}
}

// cleanup drops all buckets once the maps grow past a threshold. Buckets
// rebuild full on next use, so a reset only ever favors the caller.
func (url *UserRateLimiter) cleanup() {
	url.mu.Lock()
	defer url.mu.Unlock()

	if len(url.messageLimits) > 1000 {
		url.logger.Info("Cleaning up rate limiter cache", zap.Int("message_limiters", len(url.messageLimits)))
		url.messageLimits = make(map[uuid.UUID]*TokenBucket)
		url.fileLimits = make(map[uuid.UUID]*TokenBucket)
	}
}

// Stop stops the cleanup routine
func (url *UserRateLimiter) Stop() {
	close(url.stopCleanup)
}

// AllowMessage checks if a chat message can be sent by the given user
func (url *UserRateLimiter) AllowMessage(userID uuid.UUID) bool {
	url.mu.Lock()
	bucket, exists := url.messageLimits[userID]
	if !exists {
		// Create new bucket: burst-sized, refilling at MessagesPerMinute/60 per second
		refillRate := float64(url.config.MessagesPerMinute) / 60.0
		bucket = NewTokenBucket(float64(url.config.BurstSize), refillRate)
		url.messageLimits[userID] = bucket
	}
	url.mu.Unlock()

	return bucket.Allow()
}

// AllowFile checks if a file upload can proceed for the given user
func (url *UserRateLimiter) AllowFile(userID uuid.UUID) bool {
	url.mu.Lock()
	bucket, exists := url.fileLimits[userID]
	if !exists {
		// Create new bucket: FilesPerHour tokens, refill at rate/3600 per second
		refillRate := float64(url.config.FilesPerHour) / 3600.0
		bucket = NewTokenBucket(float64(url.config.FilesPerHour), refillRate)
		url.fileLimits[userID] = bucket
	}
	url.mu.Unlock()

	return bucket.Allow()
}

// GetMessageLimit returns remaining message tokens for a user
func (url *UserRateLimiter) GetMessageLimit(userID uuid.UUID) (remaining int, limit int) {
	url.mu.RLock()
	bucket, exists := url.messageLimits[userID]
	url.mu.RUnlock()

	if !exists {
		return url.config.BurstSize, url.config.BurstSize
	}
	return bucket.Remaining(), url.config.BurstSize
}

// RateLimitMiddleware creates a Gin middleware enforcing the named limit,
// either "message" or "file". AuthMiddleware must run first.
func RateLimitMiddleware(limiter *UserRateLimiter, limitType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user not resolved"})
			return
		}

		var allowed bool
		var remaining, limit int

		switch limitType {
		case "message":
			allowed = limiter.AllowMessage(userID)
			remaining, limit = limiter.GetMessageLimit(userID)
		case "file":
			allowed = limiter.AllowFile(userID)
			// For files, we don't expose remaining (too complex with hourly buckets)
			remaining, limit = limiter.config.FilesPerHour, limiter.config.FilesPerHour
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown limit type"})
			return
		}

		// Add rate limit headers
		c.Header("X-RateLimit-Limit", formatInt(limit))
		c.Header("X-RateLimit-Remaining", formatInt(remaining))

		if !allowed {
			// Get logger from context
			logger, _ := c.Get("logger")
			zapLogger, _ := logger.(*zap.Logger)
			if zapLogger != nil {
				zapLogger.Warn("Rate limit exceeded",
					zap.String("user_id", userID.String()),
					zap.String("limit_type", limitType),
					zap.Int("limit", limit))
			}

			c.Header("Retry-After", "60") // Suggest retry after 60 seconds
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"limit":       limit,
				"remaining":   remaining,
				"retry_after": 60,
			})
			return
		}

		c.Next()
	}
}

// formatInt converts int to string for headers
func formatInt(n int) string {
	return strconv.Itoa(n)
}
