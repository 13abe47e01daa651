package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/cutekitten000/backlog/backlog"
	"github.com/cutekitten000/backlog/catalog"
	"github.com/cutekitten000/backlog/identity"
	"github.com/cutekitten000/backlog/middleware"
	"github.com/cutekitten000/backlog/store"
	"github.com/gin-gonic/gin"
)

// API holds what the HTTP handlers need.
type API struct {
	Provider       *identity.Provider
	Tokens         *identity.Tokens
	Sessions       *backlog.Sessions
	Catalog        *catalog.Client
	SearchDebounce time.Duration
	// AllowedOrigins limits websocket upgrades; empty allows any origin.
	AllowedOrigins []string
}

func (a *API) backlogOf(c *gin.Context) *backlog.Backlog {
	return middleware.Session(c).Backlog
}

// respondError maps backlog and store errors to HTTP statuses. Anything
// unexpected is attached to the context for ErrorLogger and answered as 500.
func respondError(c *gin.Context, action string, err error) {
	switch {
	case errors.Is(err, backlog.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
	case errors.Is(err, backlog.ErrMissingID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing id"})
	case errors.Is(err, backlog.ErrInvalidFilter):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
	}
}

// Health - GET /health
func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": a.Sessions.Len(),
		"catalog":  a.Catalog != nil,
	})
}
