package middleware

import (
	"net/http"
	"strings"

	"filechat/config"
	apperrors "filechat/errors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const UserIDKey = "userID"

// AuthMiddleware validates the Bearer token on every request and stores the
// caller's user id in the request context. Anything without a valid,
// unexpired token gets a 401 carrying the login redirect target.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := userIDFromRequest(c, cfg.JWTSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "authentication expired",
				"kind":      apperrors.KindAuthExpired,
				"login_url": cfg.LoginURL,
			})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

func userIDFromRequest(c *gin.Context, secret string) (uuid.UUID, error) {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return uuid.Nil, apperrors.WrapError(apperrors.ErrAuthExpired, "missing authorization header")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return uuid.Nil, apperrors.WrapError(apperrors.ErrAuthExpired, "malformed authorization header")
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, apperrors.WrapError(apperrors.ErrAuthExpired, "invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, apperrors.WrapError(apperrors.ErrAuthExpired, "unexpected claims type")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, apperrors.WrapError(apperrors.ErrAuthExpired, "missing subject claim")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, apperrors.WrapError(apperrors.ErrAuthExpired, "subject is not a user id")
	}
	return userID, nil
}

// UserID returns the authenticated user's id set by AuthMiddleware.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}
