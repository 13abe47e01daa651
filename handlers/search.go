package handlers

import (
	"net/http"
	"strconv"

	"github.com/cutekitten000/backlog/catalog"
	"github.com/gin-gonic/gin"
)

// SearchCatalog - GET /catalog/search?q=&platforms=
// Relay failures come back as an empty list.
func (a *API) SearchCatalog(c *gin.Context) {
	query := c.Query("q")
	results := []catalog.Entry{}
	if a.Catalog != nil {
		results = a.Catalog.Search(c.Request.Context(), query, c.Query("platforms"))
	}
	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"results": results,
	})
}

// CatalogDlcs - GET /catalog/games/:apiGameId/dlcs
func (a *API) CatalogDlcs(c *gin.Context) {
	apiGameID, err := strconv.ParseInt(c.Param("apiGameId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid catalog game ID"})
		return
	}
	results := []catalog.Entry{}
	if a.Catalog != nil {
		results = a.Catalog.Expansions(c.Request.Context(), apiGameID)
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
