package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Database
		Auth
		Maintenance
		Global
	}

	HTTP struct {
		Port int32
		Host string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret       string        // HS256 signing secret; auto-generated when empty
		AccessTokenTTL  time.Duration // lifetime of issued access tokens
		RefreshTokenTTL time.Duration // lifetime of issued refresh tokens
		BcryptCost      int
	}
	Maintenance struct {
		Enabled            bool
		Schedule           string // Cron format: "0 * * * *" = hourly
		AuditRetentionDays int    // Days to keep audit events (default: 30)
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Auth defaults
	v.SetDefault("auth_jwt_secret", "") // Auto-generated if empty
	v.SetDefault("auth_access_token_ttl", "15m")
	v.SetDefault("auth_refresh_token_ttl", "168h") // 7 days
	v.SetDefault("auth_bcrypt_cost", 12)

	// Maintenance defaults
	v.SetDefault("maintenance_enabled", true)
	v.SetDefault("maintenance_schedule", "0 * * * *") // Hourly at :00
	v.SetDefault("audit_retention_days", 30)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Auth: Auth{
			JWTSecret:       v.GetString("AUTH_JWT_SECRET"),
			AccessTokenTTL:  v.GetDuration("AUTH_ACCESS_TOKEN_TTL"),
			RefreshTokenTTL: v.GetDuration("AUTH_REFRESH_TOKEN_TTL"),
			BcryptCost:      v.GetInt("AUTH_BCRYPT_COST"),
		},
		Maintenance: Maintenance{
			Enabled:            v.GetBool("MAINTENANCE_ENABLED"),
			Schedule:           v.GetString("MAINTENANCE_SCHEDULE"),
			AuditRetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
	}
}
