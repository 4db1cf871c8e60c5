package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func testLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		MessagesPerMinute: 60,
		FilesPerHour:      1,
		BurstSize:         2,
		CleanupInterval:   time.Hour,
	}
}

func TestTokenBucketExhaustion(t *testing.T) {
	// Zero refill rate so the test never races the clock.
	bucket := NewTokenBucket(2, 0)

	if !bucket.Allow() {
		t.Fatal("first Allow() = false, want true")
	}
	if !bucket.Allow() {
		t.Fatal("second Allow() = false, want true")
	}
	if bucket.Allow() {
		t.Fatal("third Allow() = true, want false")
	}
	if got := bucket.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}
}

func TestTokenBucketRefill(t *testing.T) {
	// 1000 tokens/sec refills a drained single-token bucket within 10ms.
	bucket := NewTokenBucket(1, 1000)

	if !bucket.Allow() {
		t.Fatal("first Allow() = false, want true")
	}
	time.Sleep(10 * time.Millisecond)
	if !bucket.Allow() {
		t.Error("Allow() after refill window = false, want true")
	}
}

func TestUserRateLimiterIsolatesUsers(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	limiter := NewUserRateLimiter(testLimiterConfig(), logger)
	defer limiter.Stop()

	alice := uuid.New()
	bob := uuid.New()

	// Drain alice's burst.
	for i := 0; i < 2; i++ {
		if !limiter.AllowMessage(alice) {
			t.Fatalf("AllowMessage(alice) #%d = false, want true", i+1)
		}
	}
	if limiter.AllowMessage(alice) {
		t.Error("AllowMessage(alice) after burst = true, want false")
	}

	// A second user gets a separate bucket.
	if !limiter.AllowMessage(bob) {
		t.Error("AllowMessage(bob) = false, want true")
	}
}

func TestUserRateLimiterFileBucket(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	limiter := NewUserRateLimiter(testLimiterConfig(), logger)
	defer limiter.Stop()

	userID := uuid.New()

	if !limiter.AllowFile(userID) {
		t.Fatal("first AllowFile() = false, want true")
	}
	if limiter.AllowFile(userID) {
		t.Error("second AllowFile() = true, want false")
	}
	// The message bucket is untouched by file uploads.
	if !limiter.AllowMessage(userID) {
		t.Error("AllowMessage() after file uploads = false, want true")
	}
}

func newRateLimitRouter(t *testing.T, limiter *UserRateLimiter, limitType string, userID uuid.UUID) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID != uuid.Nil {
			c.Set(UserIDKey, userID)
		}
		c.Next()
	})
	router.Use(RateLimitMiddleware(limiter, limitType))
	router.POST("/send", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func TestRateLimitMiddleware(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	config := testLimiterConfig()
	config.BurstSize = 1
	limiter := NewUserRateLimiter(config, logger)
	defer limiter.Stop()

	router := newRateLimitRouter(t, limiter, "message", uuid.New())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/send", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Errorf("X-RateLimit-Limit = %q, want %q", got, "1")
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/send", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want %q", got, "60")
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["error"] != "rate limit exceeded" {
		t.Errorf("error = %v, want %q", body["error"], "rate limit exceeded")
	}
	if body["retry_after"] != float64(60) {
		t.Errorf("retry_after = %v, want 60", body["retry_after"])
	}
}

func TestRateLimitMiddlewareWithoutUser(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	limiter := NewUserRateLimiter(testLimiterConfig(), logger)
	defer limiter.Stop()

	router := newRateLimitRouter(t, limiter, "message", uuid.Nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/send", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
