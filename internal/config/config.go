// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"warmdelights/internal/logger"
)

// Defaults mirror the values the public site shipped with.
const (
	DefaultBackendURL      = "https://warm-delights-backend-production.up.railway.app"
	DefaultWhatsAppNumber  = "918847306427"
	DefaultGalleryTTL      = 15 * time.Minute
	DefaultAdminGalleryTTL = 10 * time.Minute
	DefaultRefreshInterval = 30 * time.Minute
	DefaultSessionIdle     = 2 * time.Hour
	DefaultEventRetention  = 90 * 24 * time.Hour
)

// Config is the fully resolved runtime configuration.
type Config struct {
	Environment string

	ServerHost string
	ServerPort string

	BackendURL     string
	BackendTimeout time.Duration
	AdminToken     string

	WhatsAppNumber      string
	ClearCartOnCheckout bool

	DataDirectory string
	CatalogFile   string

	SessionStore  string // memory or redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionIdle   time.Duration

	GalleryTTL             time.Duration
	AdminGalleryTTL        time.Duration
	GalleryRefreshInterval time.Duration
	EventRetention         time.Duration

	AllowedOrigin  string
	RateLimitRPS   int
	RateLimitBurst int

	Logger logger.Config
}

//
// --- Utility Helpers ---
//

// Environment returns ENVIRONMENT, defaulting to dev.
func Environment() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	return env
}

// GetEnvBasedSetting reads <base>_<ENVIRONMENT> first and falls back to <base>.
func GetEnvBasedSetting(base string) string {
	if v := os.Getenv(fmt.Sprintf("%s_%s", base, strings.ToUpper(Environment()))); v != "" {
		return v
	}
	return os.Getenv(base)
}

func settingOr(base, def string) string {
	if v := GetEnvBasedSetting(base); v != "" {
		return v
	}
	return def
}

func durationOr(base string, def time.Duration) time.Duration {
	raw := GetEnvBasedSetting(base)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		logger.LogWarn("Invalid %s: %q, using default %v", base, raw, def)
		return def
	}
	return d
}

func intOr(base string, def int) int {
	raw := GetEnvBasedSetting(base)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		logger.LogWarn("Invalid %s: %q, using default %d", base, raw, def)
		return def
	}
	return n
}

// LogCurrentEnvironment reports which environment is running.
func LogCurrentEnvironment(cfg Config) {
	if cfg.Environment == "dev" {
		logger.LogInfo("Running in development environment")
	} else {
		logger.LogInfo("Running in %s environment", cfg.Environment)
	}
	logger.LogInfo("Backend collaborator: %s (timeout %v)", cfg.BackendURL, cfg.BackendTimeout)
	logger.LogInfo("Visitor session store: %s", cfg.SessionStore)
}

//
// --- Loaders ---
//

// LoadEnv reads the .env file when present.
func LoadEnv() {
	wd, err := os.Getwd()
	if err != nil {
		log.Printf("Could not determine working directory: %v", err)
	}

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file found in %s. Using system environment variables.", wd)
	} else {
		log.Printf("Loaded environment variables from .env file in %s", wd)
	}
}

// LoggerConfig returns a logger.Config populated from the environment.
func LoggerConfig() logger.Config {
	return logger.Config{
		LogsDirectory: settingOr("LOGS_DIRECTORY", "./logs"),
		LogFileFormat: settingOr("LOG_FILE_FORMAT", "warmdelights_%s.log"),
		TimeZone:      settingOr("TIME_ZONE", "Asia/Kolkata"),
	}
}

// Load resolves the whole configuration from the environment.
func Load() (Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg := Config{
		Environment:            Environment(),
		ServerHost:             settingOr("SERVER_HOST", "127.0.0.1"),
		ServerPort:             settingOr("SERVER_PORT", "5051"),
		BackendURL:             strings.TrimRight(settingOr("BACKEND_URL", DefaultBackendURL), "/"),
		BackendTimeout:         durationOr("BACKEND_TIMEOUT", 10*time.Second),
		AdminToken:             GetEnvBasedSetting("ADMIN_TOKEN"),
		WhatsAppNumber:         settingOr("WHATSAPP_NUMBER", DefaultWhatsAppNumber),
		ClearCartOnCheckout:    GetEnvBasedSetting("CLEAR_CART_ON_CHECKOUT") == "true",
		DataDirectory:          settingOr("DATA_DIRECTORY", filepath.Join(wd, "data")),
		CatalogFile:            GetEnvBasedSetting("CATALOG_FILE"),
		SessionStore:           strings.ToLower(settingOr("SESSION_STORE", "memory")),
		RedisAddr:              settingOr("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:          GetEnvBasedSetting("REDIS_PASSWORD"),
		RedisDB:                intOr("REDIS_DB", 0),
		SessionIdle:            durationOr("SESSION_IDLE", DefaultSessionIdle),
		GalleryTTL:             durationOr("GALLERY_CACHE_TTL", DefaultGalleryTTL),
		AdminGalleryTTL:        durationOr("ADMIN_GALLERY_CACHE_TTL", DefaultAdminGalleryTTL),
		GalleryRefreshInterval: durationOr("GALLERY_REFRESH_INTERVAL", DefaultRefreshInterval),
		EventRetention:         durationOr("EVENT_RETENTION", DefaultEventRetention),
		AllowedOrigin:          GetEnvBasedSetting("ALLOWED_ORIGIN"),
		RateLimitRPS:           intOr("RATE_LIMIT_RPS", 10),
		RateLimitBurst:         intOr("RATE_LIMIT_BURST", 20),
		Logger:                 LoggerConfig(),
	}

	if cfg.SessionStore != "memory" && cfg.SessionStore != "redis" {
		return Config{}, fmt.Errorf("unsupported SESSION_STORE %q", cfg.SessionStore)
	}
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
		logger.LogWarn("ALLOWED_ORIGIN not set, using '*' (allow all origins)")
	}
	return cfg, nil
}

// SecureCookies reports whether cookies should be HTTPS-only.
func (c Config) SecureCookies() bool {
	return c.Environment == "prod" || c.Environment == "production"
}

// Address is the listen address of the HTTP server.
func (c Config) Address() string {
	return c.ServerHost + ":" + c.ServerPort
}

// DatabasePath is the SQLite file backing the persistent store.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDirectory, "warmdelights.db")
}
