package handlers

import (
	"net/http"
	"strconv"

	"github.com/cutekitten000/backlog/backlog"
	"github.com/gin-gonic/gin"
)

// GetBacklog - GET /backlog
func (a *API) GetBacklog(c *gin.Context) {
	b := a.backlogOf(c)
	games := b.View()
	c.JSON(http.StatusOK, gin.H{
		"filter":     b.Filter(),
		"searchTerm": b.SearchTerm(),
		"games":      games,
		"count":      len(games),
	})
}

// SetView - PUT /backlog/filter
// Either field may be omitted to keep its current value.
func (a *API) SetView(c *gin.Context) {
	var input struct {
		Filter     *backlog.Filter `json:"filter"`
		SearchTerm *string         `json:"searchTerm"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b := a.backlogOf(c)
	if input.Filter != nil {
		if err := b.SetFilter(*input.Filter); err != nil {
			respondError(c, "set filter", err)
			return
		}
	}
	if input.SearchTerm != nil {
		b.SetSearchTerm(*input.SearchTerm)
	}
	a.GetBacklog(c)
}

// GetFilters - GET /backlog/filters
func (a *API) GetFilters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"filters": backlog.FilterOptions,
		"default": backlog.DefaultFilter,
	})
}

// Contains - GET /backlog/contains/:apiGameId
func (a *API) Contains(c *gin.Context) {
	apiGameID, err := strconv.ParseInt(c.Param("apiGameId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid catalog game ID"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"apiGameId": apiGameID,
		"inBacklog": a.backlogOf(c).IsGameInBacklog(apiGameID),
	})
}

// GetStats - GET /backlog/stats
func (a *API) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, a.backlogOf(c).Stats())
}
