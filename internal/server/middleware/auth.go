package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	ErrMissingToken = errors.New("Authorization header is required")
	ErrInvalidToken = errors.New("invalid admin token")
)

// ExtractBearerToken returns the token of an "Authorization: Bearer <token>" header.
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingToken
	}

	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", errors.New("Authorization header must be in format: Bearer <token>")
	}

	return strings.TrimSpace(token), nil
}

// WithAdminToken protects the admin routes with a static bearer token. An empty token disables the check.
func WithAdminToken(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" {
			c.Next()
			return
		}

		token, err := ExtractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, http.StatusUnauthorized, err)
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
			AbortWithError(c, http.StatusUnauthorized, ErrInvalidToken)
			return
		}

		c.Next()
	}
}
