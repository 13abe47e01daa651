package handlers

import (
	"net/http"

	"github.com/cutekitten000/backlog/catalog"
	"github.com/cutekitten000/backlog/models"
	"github.com/cutekitten000/backlog/utils"
	"github.com/gin-gonic/gin"
)

// ListDlcs - GET /games/:id/dlcs
func (a *API) ListDlcs(c *gin.Context) {
	dlcs, err := a.backlogOf(c).Dlcs(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "load DLCs", err)
		return
	}
	c.JSON(http.StatusOK, dlcs)
}

// CreateDlc - POST /games/:id/dlcs
func (a *API) CreateDlc(c *gin.Context) {
	var input models.NewDlcInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateStruct(input); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	id, err := a.backlogOf(c).AddDlc(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		respondError(c, "add DLC", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// CreateDlcs - POST /games/:id/dlcs/batch
// Adds the expansions picked from the catalog in one request. A partly saved
// batch is still 201; nothing saved is an error.
func (a *API) CreateDlcs(c *gin.Context) {
	var input struct {
		Dlcs []models.NewDlcInput `json:"dlcs" validate:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateStruct(input); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	ids, err := a.backlogOf(c).AddDlcs(c.Request.Context(), c.Param("id"), input.Dlcs)
	if ids == nil {
		respondError(c, "add DLCs", err)
		return
	}
	saved := 0
	for _, id := range ids {
		if id != "" {
			saved++
		}
	}
	if err != nil && saved == 0 {
		respondError(c, "add DLCs", err)
		return
	}
	if err != nil {
		c.Error(err)
	}
	c.JSON(http.StatusCreated, gin.H{
		"ids":    ids,
		"saved":  saved,
		"failed": len(ids) - saved,
	})
}

// AvailableDlcs - GET /games/:id/dlcs/available
// Catalog expansions of the game that are not tracked yet.
func (a *API) AvailableDlcs(c *gin.Context) {
	b := a.backlogOf(c)
	gameID := c.Param("id")

	existing, err := b.Dlcs(c.Request.Context(), gameID)
	if err != nil {
		respondError(c, "load DLCs", err)
		return
	}

	var apiGameID int64
	for _, g := range b.Snapshot() {
		if g.ID == gameID {
			apiGameID = g.APIGameID
			break
		}
	}
	if apiGameID == 0 || a.Catalog == nil {
		c.JSON(http.StatusOK, []catalog.Entry{})
		return
	}

	titles := make([]string, len(existing))
	for i, d := range existing {
		titles[i] = d.Title
	}
	c.JSON(http.StatusOK, a.Catalog.ExpansionsAvailable(c.Request.Context(), apiGameID, titles))
}

// UpdateDlc - PUT /games/:id/dlcs/:dlcId
func (a *API) UpdateDlc(c *gin.Context) {
	var input models.UpdateDlcInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateStruct(input); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	if err := a.backlogOf(c).UpdateDlc(c.Request.Context(), c.Param("id"), c.Param("dlcId"), input); err != nil {
		respondError(c, "update DLC", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "DLC updated"})
}

// DeleteDlc - DELETE /games/:id/dlcs/:dlcId
func (a *API) DeleteDlc(c *gin.Context) {
	if err := a.backlogOf(c).DeleteDlc(c.Request.Context(), c.Param("id"), c.Param("dlcId")); err != nil {
		respondError(c, "delete DLC", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "DLC deleted"})
}
