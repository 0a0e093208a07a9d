package app

import (
	"strings"
	"time"

	"github.com/taskventure/taskventure-backend/internal/platform/envutil"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

type Config struct {
	Port            string
	AllowedOrigins  []string
	JWTSecretKey    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	WorldFile string

	RedisAddr     string
	RedisPassword string

	CreditRetryInterval time.Duration
	CreditMaxAttempts   int
}

func LoadConfig(log *logger.Logger) Config {
	origins := envutil.String("ALLOWED_ORIGINS", "")
	var allowed []string
	if origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				allowed = append(allowed, o)
			}
		}
	}

	cfg := Config{
		Port:                envutil.String("PORT", "8080"),
		AllowedOrigins:      allowed,
		JWTSecretKey:        envutil.String("JWT_SECRET_KEY", "defaultsecret"),
		AccessTokenTTL:      time.Duration(envutil.Int("ACCESS_TOKEN_TTL", 3600)) * time.Second,
		RefreshTokenTTL:     time.Duration(envutil.Int("REFRESH_TOKEN_TTL", 86400)) * time.Second,
		WorldFile:           envutil.String("WORLD_FILE", ""),
		RedisAddr:           envutil.String("REDIS_ADDR", ""),
		RedisPassword:       envutil.String("REDIS_PASSWORD", ""),
		CreditRetryInterval: envutil.Duration("CREDIT_RETRY_INTERVAL", 30*time.Second),
		CreditMaxAttempts:   envutil.Int("CREDIT_MAX_ATTEMPTS", 5),
	}
	if cfg.JWTSecretKey == "defaultsecret" {
		log.Warn("JWT_SECRET_KEY not set, using insecure default")
	}
	return cfg
}
