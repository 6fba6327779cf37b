package http

import (
	"time"

	"reflexduel/internal/engine"
	"reflexduel/internal/http/handlers"
	"reflexduel/internal/http/middleware"
	"reflexduel/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Engine  *engine.Engine
	Hub     *ws.Hub
	Health  *handlers.HealthHandler
	History handlers.HistoryReader // nil without a database

	AllowedOrigin    string
	APIRateLimit     int
	APIRateWindow    time.Duration
	AnswerRateLimit  int
	AnswerRateWindow time.Duration
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	h := handlers.NewHandler(d.Engine, d.History)

	r.Use(middleware.Metrics())

	// Health checks (no rate limiting)
	r.GET("/health", d.Health.Health)
	r.GET("/healthz", d.Health.Liveness)
	r.GET("/readyz", d.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(d.APIRateLimit, d.APIRateWindow))

	v1.POST("/guest", h.Guest)
	v1.GET("/leaderboard", h.GetLeaderboard)

	auth := v1.Group("")
	auth.Use(middleware.JWT())
	{
		auth.GET("/me", h.Me)
		auth.GET("/me/logs", h.MyLogs)
		auth.GET("/me/archives", h.MyArchives)
		auth.GET("/me/stats", h.MyStats)
		auth.GET("/me/history", h.MyHistory)

		auth.POST("/queue", h.Enqueue)
		auth.DELETE("/queue", h.Withdraw)

		auth.POST("/invites", h.SendInvite)
		auth.GET("/invites", h.Invites)
		auth.POST("/invites/:id/accept", h.AcceptInvite)

		auth.POST("/heartbeat", h.Heartbeat)

		auth.GET("/matches/current", h.CurrentMatch)
		auth.GET("/matches/:id", h.GetMatch)
		auth.POST("/matches/:id/poll", h.Poll)
		auth.POST("/matches/:id/answer", middleware.PlayerRateLimit(d.AnswerRateLimit, d.AnswerRateWindow), h.Answer)
		auth.POST("/matches/:id/give-up", h.GiveUp)
	}

	if d.Hub != nil {
		r.GET("/ws", ws.HandleWS(d.Hub, d.AllowedOrigin))
	}
}
