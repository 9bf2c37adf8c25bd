package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/examsaathi/backend/internal/response"
)

// LoginSessionChecker confirms a token id is the phone's active login.
type LoginSessionChecker interface {
	ValidateLoginSession(ctx context.Context, phone, jti string) error
}

// CheckSingleDeviceSession validates the JWT's JTI against the active login
// in Redis. Signing in elsewhere replaces it and older tokens are rejected.
func CheckSingleDeviceSession(checker LoginSessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if err := checker.ValidateLoginSession(c.Request.Context(), claims.Phone, claims.ID); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Next()
	}
}
