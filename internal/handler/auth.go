package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bp-tracker/internal/auth"
	"bp-tracker/internal/common"
	"bp-tracker/internal/logging"
)

type AuthHandler struct {
	Verifier    auth.CodeVerifier
	TokenConfig auth.TokenConfig
	Log         logging.Logger
}

type loginBody struct {
	Code string `json:"code"`
}

// Login exchanges the shared access code for a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, h.Log, bindingError(err))
		return
	}
	if body.Code == "" {
		respondError(c, h.Log, common.NewValidationError("code", "is required"))
		return
	}

	if !h.Verifier.Verify(body.Code) {
		h.Log.Warn(c.Request.Context(), "login rejected", "client_ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid code"})
		return
	}

	sessionID := auth.NewSessionID()
	token, err := auth.CreateToken(sessionID, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token creation failed"})
		return
	}

	h.Log.Info(c.Request.Context(), "login", "session_id", sessionID)
	c.JSON(http.StatusOK, gin.H{"token": token})
}
