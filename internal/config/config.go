package config

import (
	"time"

	"github.com/spf13/viper"
)

type Backend string

const (
	BackendSQLite Backend = "sqlite" // embedded relational store (default)
	BackendMongo  Backend = "mongo"  // document store
)

const DefaultDatabasePath = "./tempo.db"

type (
	Config struct {
		HTTP
		Storage
		Mongo
		Auth
		Maintenance
		Migration
		Global
	}

	HTTP struct {
		Port int32
		Host string
	}
	Storage struct {
		Backend       Backend
		Path          string        // snapshot file for the sqlite backend
		FlushInterval time.Duration // batched persistence tick
	}
	Mongo struct {
		URI      string
		Database string
	}
	Auth struct {
		BcryptCost      int
		RefreshTokenTTL time.Duration
		ResetTokenTTL   time.Duration
	}
	Maintenance struct {
		Enabled  bool
		Schedule string // Cron format: "0 * * * *" = hourly
	}
	Migration struct {
		// Run the one-time backend migration instead of serving. Source
		// and Target name backends ("sqlite" or "mongo").
		Run    bool
		Source Backend
		Target Backend
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8190)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)

	v.SetDefault("backend", string(BackendSQLite))
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("flush_interval", "5s")

	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_database", "tempo")

	// Auth defaults
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_refresh_token_ttl", "720h") // 30 days
	v.SetDefault("auth_reset_token_ttl", "1h")

	// Maintenance defaults
	v.SetDefault("maintenance_enabled", true)
	v.SetDefault("maintenance_schedule", "0 * * * *") // Hourly at :00

	// Migration defaults (out-of-band, not part of the live request path)
	v.SetDefault("run_migration", false)
	v.SetDefault("migration_source", string(BackendSQLite))
	v.SetDefault("migration_target", string(BackendMongo))

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Storage: Storage{
			Backend:       Backend(v.GetString("BACKEND")),
			Path:          v.GetString("DATABASE_PATH"),
			FlushInterval: v.GetDuration("FLUSH_INTERVAL"),
		},
		Mongo: Mongo{
			URI:      v.GetString("MONGO_URI"),
			Database: v.GetString("MONGO_DATABASE"),
		},
		Auth: Auth{
			BcryptCost:      v.GetInt("AUTH_BCRYPT_COST"),
			RefreshTokenTTL: v.GetDuration("AUTH_REFRESH_TOKEN_TTL"),
			ResetTokenTTL:   v.GetDuration("AUTH_RESET_TOKEN_TTL"),
		},
		Maintenance: Maintenance{
			Enabled:  v.GetBool("MAINTENANCE_ENABLED"),
			Schedule: v.GetString("MAINTENANCE_SCHEDULE"),
		},
		Migration: Migration{
			Run:    v.GetBool("RUN_MIGRATION"),
			Source: Backend(v.GetString("MIGRATION_SOURCE")),
			Target: Backend(v.GetString("MIGRATION_TARGET")),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
	}
}
