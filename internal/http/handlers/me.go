package handlers

import (
	"net/http"
	"strconv"
	"time"

	"reflexduel/internal/engine"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Me(c *gin.Context) {
	playerID, ok := getPlayerID(c)
	if !ok {
		return
	}
	acc, _ := h.Engine.Account(playerID)
	matchID, _ := h.Engine.MatchFor(playerID)

	c.JSON(http.StatusOK, gin.H{
		"player_id": playerID,
		"name":      acc.Name,
		"match_id":  matchID,
		"queued":    h.Engine.Queued(playerID),
	})
}

// MyLogs returns the caller's most recent round log entries (?limit=N).
func (h *Handler) MyLogs(c *gin.Context) {
	playerID, ok := getPlayerID(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(engine.DefaultLogLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": h.Engine.Logs(playerID, limit)})
}

func (h *Handler) MyArchives(c *gin.Context) {
	playerID, ok := getPlayerID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"archives": h.Engine.Archives(playerID)})
}

// MyStats aggregates the caller's record over the last ?days=N (default 30).
func (h *Handler) MyStats(c *gin.Context) {
	playerID, ok := getPlayerID(c)
	if !ok {
		return
	}
	if h.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history database not configured"})
		return
	}
	since, ok := sinceParam(c)
	if !ok {
		return
	}

	stats, err := h.History.Stats(c.Request.Context(), playerID, since)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func sinceParam(c *gin.Context) (time.Time, bool) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
		return time.Time{}, false
	}
	return time.Now().AddDate(0, 0, -days), true
}

// MyHistory reads the caller's rounds from the database mirror, newest first.
func (h *Handler) MyHistory(c *gin.Context) {
	playerID, ok := getPlayerID(c)
	if !ok {
		return
	}
	if h.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history database not configured"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	rounds, err := h.History.RecentRounds(c.Request.Context(), playerID, limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rounds": rounds})
}
