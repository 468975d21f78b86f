package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bp-tracker/internal/directory"
	"bp-tracker/internal/logging"
)

type UsersHandler struct {
	Directory *directory.Directory
	Log       logging.Logger
}

func (h *UsersHandler) List(c *gin.Context) {
	names, err := h.Directory.Users(c.Request.Context())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, names)
}
