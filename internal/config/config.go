package config

import (
	"os"
	"strconv"
	"time"

	"reflexduel/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	JWTSecret     string
	AllowedOrigin string
	LogLevel      string
	LogFormat     string

	// State document
	StoreBackend string // file | redis | s3
	StorePath    string
	StateKey     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Bucket          string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// Optional read-side mirror
	DatabaseURL string

	// Game rules
	AnswerWindow      time.Duration
	WinMargin         int
	HeartbeatInterval time.Duration
	SweepInterval     time.Duration

	APIRateLimit     int
	APIRateWindow    time.Duration
	AnswerRateLimit  int
	AnswerRateWindow time.Duration
}

// PresenceWindow is how long a player may stay silent before being
// treated as gone: three missed heartbeats.
func (c *Config) PresenceWindow() time.Duration {
	return 3 * c.HeartbeatInterval
}

// Load reads the configuration from the environment (and .env if present).
func Load() *Config {
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	cfg := &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		JWTSecret:     jwtSecret,
		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),

		StoreBackend: getEnv("STORE_BACKEND", "file"),
		StorePath:    getEnv("STORE_PATH", "data/state.json"),
		StateKey:     getEnv("STATE_KEY", "reflexduel:state"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3Region:          os.Getenv("S3_REGION"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		AnswerWindow:      getEnvMillis("ANSWER_WINDOW_MS", 3*time.Second),
		WinMargin:         getEnvInt("WIN_MARGIN", 5),
		HeartbeatInterval: getEnvMillis("HEARTBEAT_INTERVAL_MS", time.Second),
		SweepInterval:     getEnvMillis("SWEEP_INTERVAL_MS", 500*time.Millisecond),

		APIRateLimit:  getEnvInt("API_RATE_LIMIT", 120),
		APIRateWindow: time.Duration(getEnvInt("API_RATE_WINDOW_SECONDS", 60)) * time.Second,

		AnswerRateLimit:  getEnvInt("ANSWER_RATE_LIMIT", 20),
		AnswerRateWindow: time.Duration(getEnvInt("ANSWER_RATE_WINDOW_SECONDS", 10)) * time.Second,
	}

	switch cfg.StoreBackend {
	case "file", "redis", "s3":
	default:
		logger.Fatal("unknown STORE_BACKEND", "backend", cfg.StoreBackend)
	}
	if cfg.StoreBackend == "redis" && cfg.RedisAddr == "" {
		logger.Fatal("STORE_BACKEND=redis requires REDIS_ADDR")
	}
	if cfg.StoreBackend == "s3" && cfg.S3Bucket == "" {
		logger.Fatal("STORE_BACKEND=s3 requires S3_BUCKET")
	}
	if cfg.WinMargin <= 0 {
		cfg.WinMargin = 5
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = time.Second
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func getEnvMillis(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return def
}
