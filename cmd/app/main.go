package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reflexduel/internal/clock"
	"reflexduel/internal/config"
	"reflexduel/internal/db"
	"reflexduel/internal/engine"
	httpServer "reflexduel/internal/http"
	"reflexduel/internal/http/handlers"
	"reflexduel/internal/http/middleware"
	"reflexduel/internal/logger"
	"reflexduel/internal/repository"
	"reflexduel/internal/service"
	"reflexduel/internal/store"
	"reflexduel/internal/ws"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	service.InitJWT(cfg.JWTSecret)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		var err error
		rdb, err = db.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			if cfg.StoreBackend == "redis" {
				logger.Fatal("redis required by state store", "error", err)
			}
			logger.Warn("redis unavailable, rate limits are per process", "error", err)
		}
	}
	middleware.UseRedis(rdb)

	st, err := openStore(ctx, cfg, rdb)
	if err != nil {
		logger.Fatal("open state store", "backend", cfg.StoreBackend, "error", err)
	}
	defer st.Close()

	eng := engine.New(clock.New(nil), st, engine.Options{
		AnswerWindow:   cfg.AnswerWindow,
		WinMargin:      cfg.WinMargin,
		PresenceWindow: cfg.PresenceWindow(),
	})

	var (
		history handlers.HistoryReader
		dbPing  handlers.Pinger
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn("history database unavailable, running without it", "error", err)
		} else {
			defer pool.Close()
			repo := repository.NewHistoryRepository(pool)
			eng.WithHistory(repo)
			history = repo
			dbPing = pool
		}
	}

	if err := eng.Restore(ctx); err != nil {
		logger.Fatal("restore state", "error", err)
	}

	if cfg.SweepInterval > 0 {
		stopSweep, err := eng.StartSweeper(cfg.SweepInterval)
		if err != nil {
			logger.Fatal("start sweeper", "error", err)
		}
		defer func() { _ = stopSweep() }()
	}

	hub := ws.NewHub(eng)
	stopPoll, err := hub.StartPoller(cfg.HeartbeatInterval)
	if err != nil {
		logger.Fatal("start ws poller", "error", err)
	}
	defer func() { _ = stopPoll() }()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), middleware.CORS(cfg.AllowedOrigin))

	httpServer.RegisterRoutes(r, httpServer.Deps{
		Engine:           eng,
		Hub:              hub,
		Health:           handlers.NewHealthHandler(st, dbPing, eng.LiveCount, version),
		History:          history,
		AllowedOrigin:    cfg.AllowedOrigin,
		APIRateLimit:     cfg.APIRateLimit,
		APIRateWindow:    cfg.APIRateWindow,
		AnswerRateLimit:  cfg.AnswerRateLimit,
		AnswerRateWindow: cfg.AnswerRateWindow,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "store", cfg.StoreBackend, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server exited")
}

func openStore(ctx context.Context, cfg *config.Config, rdb *redis.Client) (store.Store, error) {
	switch cfg.StoreBackend {
	case "redis":
		return store.NewRedisStore(rdb, cfg.StateKey), nil
	case "s3":
		return store.NewS3Store(ctx, store.S3Options{
			Bucket:          cfg.S3Bucket,
			Key:             cfg.StateKey,
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	default:
		return store.NewFileStore(cfg.StorePath)
	}
}
