package handlers

import (
	"net/http"

	"reflexduel/internal/domain"
	"reflexduel/internal/game"

	"github.com/gin-gonic/gin"
)

// CurrentMatch returns the view of the caller's live match, if any.
func (h *Handler) CurrentMatch(c *gin.Context) {
	playerID, ok := getPlayerID(c)
	if !ok {
		return
	}

	matchID, ok := h.Engine.MatchFor(playerID)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"match": nil, "queued": h.Engine.Queued(playerID)})
		return
	}
	v, err := h.Engine.View(matchID, playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": v})
}

func (h *Handler) GetMatch(c *gin.Context) {
	playerID, ok := getPlayerID(c)
	if !ok {
		return
	}
	v, err := h.Engine.View(c.Param("id"), playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Poll advances the match (deadline, then forfeit) and returns the new view.
func (h *Handler) Poll(c *gin.Context) {
	playerID, ok := getPlayerID(c)
	if !ok {
		return
	}
	matchID := c.Param("id")

	res, err := h.Engine.ResolveDueOrForfeit(c.Request.Context(), matchID)
	if !applied(c, err) {
		return
	}
	v, err := h.Engine.View(matchID, playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"poll": res, "match": v})
}

type AnswerRequest struct {
	Value string `json:"value" binding:"required"`
}

func (h *Handler) Answer(c *gin.Context) {
	playerID, ok := getPlayerID(c)
	if !ok {
		return
	}
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}
	choice, ok := game.ParseSymbol(req.Value)
	if !ok {
		respondError(c, domain.ErrInvalidChoice)
		return
	}

	matchID := c.Param("id")
	res, err := h.Engine.SubmitAnswer(c.Request.Context(), matchID, playerID, choice)
	if !applied(c, err) {
		return
	}
	v, err := h.Engine.View(matchID, playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res, "match": v})
}

func (h *Handler) GiveUp(c *gin.Context) {
	playerID, ok := getPlayerID(c)
	if !ok {
		return
	}
	matchID := c.Param("id")
	if err := h.Engine.GiveUp(c.Request.Context(), matchID, playerID); !applied(c, err) {
		return
	}
	v, err := h.Engine.View(matchID, playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type HeartbeatRequest struct {
	View    string `json:"view" binding:"required,oneof=lobby match stats"`
	MatchID string `json:"match_id"`
}

func (h *Handler) Heartbeat(c *gin.Context) {
	playerID, ok := getPlayerID(c)
	if !ok {
		return
	}
	var req HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "view must be lobby, match or stats"})
		return
	}
	rec := h.Engine.Heartbeat(playerID, req.View, req.MatchID)
	c.JSON(http.StatusOK, rec)
}
