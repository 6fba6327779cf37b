package handlers

import (
	"net/http"

	"reflexduel/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// Enqueue pairs the player with a waiting opponent or parks them in the queue.
func (h *Handler) Enqueue(c *gin.Context) {
	playerID, ok := getPlayerID(c)
	if !ok {
		return
	}

	matchID, err := h.Engine.TryMatch(c.Request.Context(), playerID)
	if !applied(c, err) {
		return
	}
	if matchID == "" {
		c.JSON(http.StatusAccepted, gin.H{"queued": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queued": false, "match_id": matchID})
}

func (h *Handler) Withdraw(c *gin.Context) {
	playerID, ok := getPlayerID(c)
	if !ok {
		return
	}
	if err := h.Engine.Withdraw(c.Request.Context(), playerID); !applied(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"queued": false})
}

type InviteRequest struct {
	To string `json:"to" binding:"required"`
}

func (h *Handler) SendInvite(c *gin.Context) {
	playerID, ok := getPlayerID(c)
	if !ok {
		return
	}
	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to is required"})
		return
	}

	inv, err := h.Engine.SendInvite(c.Request.Context(), playerID, req.To)
	if !applied(c, err) {
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// Invites lists invites addressed to the caller's display name.
func (h *Handler) Invites(c *gin.Context) {
	if _, ok := getPlayerID(c); !ok {
		return
	}
	name := middleware.PlayerName(c)
	c.JSON(http.StatusOK, gin.H{"invites": h.Engine.PendingInvites(name)})
}

func (h *Handler) AcceptInvite(c *gin.Context) {
	playerID, ok := getPlayerID(c)
	if !ok {
		return
	}

	matchID, err := h.Engine.AcceptInvite(c.Request.Context(), c.Param("id"), playerID)
	if !applied(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"match_id": matchID})
}
