package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/cutekitten000/backlog/identity"
	"github.com/cutekitten000/backlog/middleware"
	"github.com/cutekitten000/backlog/models"
	"github.com/cutekitten000/backlog/monitoring"
	"github.com/cutekitten000/backlog/utils"
	"github.com/gin-gonic/gin"
)

// Register - POST /users
func (a *API) Register(c *gin.Context) {
	var input models.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateStruct(input); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	user, err := a.Provider.Register(c.Request.Context(), input)
	if errors.Is(err, identity.ErrEmailTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already exists"})
		return
	}
	if err != nil {
		respondError(c, "create user", err)
		return
	}

	utils.LogInfo("User registered", map[string]interface{}{"user_id": user.ID})
	c.JSON(http.StatusCreated, user)
}

// Login - POST /login. Opens a session with its own live backlog and
// returns a bearer token bound to it.
func (a *API) Login(c *gin.Context) {
	var input models.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateStruct(input); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	entry, err := a.Sessions.SignIn(c.Request.Context(), input.Email, input.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		monitoring.AuthenticationAttempts.WithLabelValues("failure").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if err != nil {
		respondError(c, "sign in", err)
		return
	}
	monitoring.AuthenticationAttempts.WithLabelValues("success").Inc()

	user := entry.Identity.CurrentUser()
	token, err := a.Tokens.Issue(entry.ID, user.ID, time.Now())
	if err != nil {
		a.Sessions.Close(entry.ID)
		respondError(c, "issue token", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(a.Tokens.TTL().Seconds()),
		"user":       user,
	})
}

// Logout - POST /logout
func (a *API) Logout(c *gin.Context) {
	entry := middleware.Session(c)
	a.Sessions.Close(entry.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// Me - GET /me
// Reads the user record again so profile changes show up without a new login.
func (a *API) Me(c *gin.Context) {
	current := middleware.Session(c).Identity.CurrentUser()
	if current == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	user, err := a.Provider.UserByID(c.Request.Context(), current.ID)
	if errors.Is(err, identity.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		respondError(c, "load user", err)
		return
	}
	c.JSON(http.StatusOK, user)
}
