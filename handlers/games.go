package handlers

import (
	"net/http"

	"github.com/cutekitten000/backlog/models"
	"github.com/cutekitten000/backlog/utils"
	"github.com/gin-gonic/gin"
)

// CreateGame - POST /games
// DLCs listed in the body are created right after the game.
func (a *API) CreateGame(c *gin.Context) {
	var input models.NewGameInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateStruct(input); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	b := a.backlogOf(c)
	if b.IsGameInBacklog(input.APIGameID) {
		c.JSON(http.StatusConflict, gin.H{"error": "Game is already in the backlog"})
		return
	}

	id, err := b.AddGameWithDlcs(c.Request.Context(), input, input.Dlcs)
	if id == "" {
		respondError(c, "add game", err)
		return
	}
	if err != nil {
		utils.LogWarn("Game saved without all of its DLCs", map[string]interface{}{
			"game_id": id,
			"error":   err.Error(),
		})
		c.JSON(http.StatusCreated, gin.H{"id": id, "warning": "Game saved but some DLCs were not"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// UpdateGame - PUT /games/:id
func (a *API) UpdateGame(c *gin.Context) {
	var input models.UpdateGameInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateStruct(input); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	if err := a.backlogOf(c).UpdateGame(c.Request.Context(), c.Param("id"), input); err != nil {
		respondError(c, "update game", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Game updated"})
}

// DeleteGame - DELETE /games/:id[?cascade=true]
func (a *API) DeleteGame(c *gin.Context) {
	b := a.backlogOf(c)
	id := c.Param("id")

	var err error
	if c.Query("cascade") == "true" {
		err = b.DeleteGameCascade(c.Request.Context(), id)
	} else {
		err = b.DeleteGame(c.Request.Context(), id)
	}
	if err != nil {
		respondError(c, "delete game", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Game deleted"})
}
