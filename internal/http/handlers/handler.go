package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"reflexduel/internal/domain"
	"reflexduel/internal/engine"
	"reflexduel/internal/http/middleware"
	"reflexduel/internal/repository"

	"github.com/gin-gonic/gin"
)

// HistoryReader is the read side of the Postgres mirror.
type HistoryReader interface {
	Stats(ctx context.Context, playerID string, since time.Time) (*repository.PlayerStats, error)
	Leaderboard(ctx context.Context, since time.Time, limit int) ([]repository.LeaderboardRow, error)
	RecentRounds(ctx context.Context, playerID string, limit int) ([]domain.LogEntry, error)
}

type Handler struct {
	Engine *engine.Engine
	// History is nil when no database is configured.
	History HistoryReader
}

func NewHandler(e *engine.Engine, history HistoryReader) *Handler {
	return &Handler{Engine: e, History: history}
}

func getPlayerID(c *gin.Context) (string, bool) {
	id, ok := middleware.PlayerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return id, ok
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidChoice),
		errors.Is(err, domain.ErrInvalidUsername),
		errors.Is(err, domain.ErrSelfInvite):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotAParticipant),
		errors.Is(err, domain.ErrNotInvitee):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrMatchNotFound),
		errors.Is(err, domain.ErrInviteNotFound),
		errors.Is(err, domain.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMatchFinished),
		errors.Is(err, domain.ErrAlreadyInMatch),
		errors.Is(err, domain.ErrUsernameTaken):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// applied reports whether a mutating engine call took effect. A change that
// is live but failed to reach the state store still counts; the response is
// marked with "X-State-Durable: false" and the cause goes to the request log.
// Otherwise the error is written and false is returned.
func applied(c *gin.Context, err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, domain.ErrNotDurable) {
		_ = c.Error(err)
		c.Header("X-State-Durable", "false")
		return true
	}
	respondError(c, err)
	return false
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}
