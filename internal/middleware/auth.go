package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bp-tracker/internal/auth"
)

const sessionIDContextKey = "sessionID"

func SessionIDFromContext(c *gin.Context) (string, bool) {
	sid, ok := c.Get(sessionIDContextKey)
	if !ok {
		return "", false
	}
	value, ok := sid.(string)
	return value, ok && value != ""
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuth rejects requests without a valid bearer token. With
// allowQuery a "token" query parameter is accepted too, for browser
// websocket clients that cannot set headers.
func RequireAuth(cfg auth.TokenConfig, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.Request)
		if token == "" && allowQuery {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			return
		}

		claims, err := auth.VerifyToken(token, cfg)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			return
		}

		c.Set(sessionIDContextKey, claims.SessionID())
		c.Next()
	}
}
