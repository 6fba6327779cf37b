package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetLeaderboard ranks players by match wins over the last ?days=N.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	if h.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history database not configured"})
		return
	}
	since, ok := sinceParam(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	top, err := h.History.Leaderboard(c.Request.Context(), since, limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}

	names := make(map[string]string, len(top))
	for _, row := range top {
		if acc, ok := h.Engine.Account(row.PlayerID); ok {
			names[row.PlayerID] = acc.Name
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard": top,
		"names":       names,
		"since":       since,
	})
}
