package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMySQL = "mysql"
	BackendMongo = "mongo"
	BackendRedis = "redis"
)

type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	JWTSecret string
	TokenTTL  time.Duration

	MySQLDSN    string
	MongoURI    string
	MongoDBName string
	RedisAddr   string
	RedisPass   string

	SessionBackend       string
	SessionCookieName    string
	SessionLifetime      time.Duration
	SessionSweepInterval time.Duration

	WSAllowedOrigins []string
}

func (c Config) Production() bool {
	return c.Env == "production"
}

// Load reads the env file named by START (.env-local, .env.docker, ...) or
// ./.env when START is unset, then validates the process environment.
func Load() (Config, error) {
	if file := os.Getenv("START"); file != "" {
		if err := godotenv.Load(file); err != nil {
			return Config{}, fmt.Errorf("env file %s: %w", file, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("env file .env: %w", err)
	}

	cfg := Config{
		Env:               getenv("APP_ENV", "development"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8082"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		MySQLDSN:          os.Getenv("MYSQL_DSN"),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDBName:       os.Getenv("MONGO_DB_NAME"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPass:         os.Getenv("REDIS_PASSWORD"),
		SessionBackend:    getenv("SESSION_BACKEND", BackendMySQL),
		SessionCookieName: getenv("SESSION_COOKIE_NAME", "workshop_sid"),
	}

	var err error
	if cfg.TokenTTL, err = duration("TOKEN_TTL", 12*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SessionLifetime, err = duration("SESSION_LIFETIME", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SessionSweepInterval, err = duration("SESSION_SWEEP_INTERVAL", 10*time.Minute); err != nil {
		return Config{}, err
	}

	for _, o := range strings.Split(os.Getenv("WS_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.WSAllowedOrigins = append(cfg.WSAllowedOrigins, o)
		}
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is not set in environment")
	}
	if cfg.MySQLDSN == "" {
		return Config{}, errors.New("MYSQL_DSN is not set in environment")
	}

	switch cfg.SessionBackend {
	case BackendMySQL:
	case BackendMongo:
		if cfg.MongoURI == "" {
			return Config{}, errors.New("MONGO_URI is not set in environment")
		}
		if cfg.MongoDBName == "" {
			return Config{}, errors.New("MONGO_DB_NAME is not set in environment")
		}
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return Config{}, errors.New("REDIS_ADDR is not set in environment")
		}
	default:
		return Config{}, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.SessionBackend)
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
