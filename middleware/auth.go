package middleware

import (
	"net/http"
	"strings"

	"github.com/cutekitten000/backlog/backlog"
	"github.com/cutekitten000/backlog/identity"
	"github.com/gin-gonic/gin"
)

const (
	SessionKey = "session"
	UserIDKey  = "user_id"
)

// bearerToken reads "Authorization: Bearer <jwt>". Browsers cannot set
// headers on websocket upgrades, so a token query parameter is accepted too.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.Query("token")
}

// AuthRequired resolves the bearer token to a live session.
func AuthRequired(tokens *identity.Tokens, sessions *backlog.Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		entry, err := sessions.Get(claims.SessionID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired, please sign in again"})
			return
		}

		c.Set(SessionKey, entry)
		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// Session returns the entry stored by AuthRequired.
func Session(c *gin.Context) *backlog.Entry {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil
	}
	entry, _ := v.(*backlog.Entry)
	return entry
}
