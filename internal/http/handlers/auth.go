package handlers

import (
	"net/http"

	"reflexduel/internal/service"

	"github.com/gin-gonic/gin"
)

type GuestRequest struct {
	Name string `json:"name" binding:"required"`
}

// Guest creates a guest account and returns its token.
func (h *Handler) Guest(c *gin.Context) {
	var req GuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	acc, err := h.Engine.RegisterGuest(c.Request.Context(), req.Name)
	if !applied(c, err) {
		return
	}

	token, err := service.GenerateJWT(acc.ID, acc.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":     token,
		"player_id": acc.ID,
		"name":      acc.Name,
	})
}
