package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const sessionUserKey = "user"

// AuthHandler implements the single staff sign-in gate. Whether the gate is
// enforced at all is configuration, not an alternate code path.
type AuthHandler struct {
	username     string
	passwordHash string
	required     bool
}

func NewAuthHandler(username, passwordHash string, required bool) *AuthHandler {
	return &AuthHandler{username: username, passwordHash: passwordHash, required: required}
}

// SignIn checks the staff credentials against the configured bcrypt hash and
// opens a session.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if req.Username != h.username ||
		bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid username or password"})
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserKey, req.Username)
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}

	log.Info().Str("user", req.Username).Msg("staff signed in")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "You are now signed in"})
}

// Logout drops the session.
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Signed out"})
}

// RequireAuth gates a route group on an open staff session.
func (h *AuthHandler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.required {
			c.Next()
			return
		}
		if sessions.Default(c).Get(sessionUserKey) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Please sign in to access this page."})
			return
		}
		c.Next()
	}
}
