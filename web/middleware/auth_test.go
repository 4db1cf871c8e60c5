package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"filechat/config"
	apperrors "filechat/errors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{JWTSecret: testSecret, LoginURL: "https://auth.example.com/login"}

	router := gin.New()
	router.Use(AuthMiddleware(cfg))
	router.GET("/whoami", func(c *gin.Context) {
		id, ok := UserID(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no user id in context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": id.String()})
	})
	return router
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()

	validClaims := jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{
			name:       "valid_token",
			authHeader: "Bearer " + signToken(t, testSecret, validClaims),
			wantStatus: http.StatusOK,
		},
		{
			name:       "lowercase_bearer",
			authHeader: "bearer " + signToken(t, testSecret, validClaims),
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing_header",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not_bearer_scheme",
			authHeader: "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "garbage_token",
			authHeader: "Bearer not.a.jwt",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "expired_token",
			authHeader: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"sub": userID.String(),
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong_secret",
			authHeader: "Bearer " + signToken(t, "some-other-secret", validClaims),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unsigned_token_rejected",
			authHeader: "Bearer " + noneToken,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "subject_not_a_uuid",
			authHeader: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"sub": "alice",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "missing_subject",
			authHeader: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
	}

	router := newAuthRouter(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}

			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}

			if tt.wantStatus == http.StatusOK {
				if body["user_id"] != userID.String() {
					t.Errorf("user_id = %v, want %v", body["user_id"], userID)
				}
				return
			}
			if body["kind"] != apperrors.KindAuthExpired {
				t.Errorf("kind = %v, want %v", body["kind"], apperrors.KindAuthExpired)
			}
			if body["login_url"] != "https://auth.example.com/login" {
				t.Errorf("login_url = %v, want the configured login url", body["login_url"])
			}
		})
	}
}

func TestUserIDWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if id, ok := UserID(c); ok || id != uuid.Nil {
		t.Errorf("UserID() = (%v, %v), want (uuid.Nil, false)", id, ok)
	}
}
