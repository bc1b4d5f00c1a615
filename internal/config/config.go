// Package config reads runtime settings from the environment.
package config

import "time"

const (
	envPort        = "PORT"
	envGRPCPort    = "GRPC_PORT"
	envEnvironment = "ENVIRONMENT"
	envDBDriver    = "DB_DRIVER"
	envSQLiteFile  = "SQLITE_FILE"
	envDatabaseURL = "DATABASE_URL"
	envNATSURL     = "NATS_URL"
	envNATSSubject = "NATS_SUBJECT"
	envCHAddr      = "CLICKHOUSE_ADDR"
	envCHDB        = "CLICKHOUSE_DB"
	envCHUser      = "CLICKHOUSE_USER"
	envCHPassword  = "CLICKHOUSE_PASSWORD"
	envAKBaseURL   = "AUTHENTIK_BASE_URL"
	envAKClientID  = "AUTHENTIK_CLIENT_ID"
	envAKSecret    = "AUTHENTIK_CLIENT_SECRET"
	envAKRedirect  = "AUTHENTIK_REDIRECT_URL"
	envStaticDir   = "STATIC_DIR"
	envBackupDir   = "BACKUP_DIR"
	envOutboxBuf   = "OUTBOX_BUFFER"
	envOutboxTries = "OUTBOX_RETRIES"
	envOutboxDelay = "OUTBOX_BACKOFF"
	envStoreTO     = "STORE_TIMEOUT"

	defaultPort        = "3000"
	defaultGRPCPort    = "50051"
	defaultEnvironment = "development"
	defaultDBDriver    = "memory"
	defaultSQLiteFile  = "dev.sqlite"
	defaultNATSURL     = "nats://localhost:4222"
	defaultNATSSubject = "basket.events"
	defaultCHAddr      = "localhost:9000"
	defaultCHDB        = "default"
	defaultCHUser      = "default"
	defaultAKRedirect  = "http://localhost:3000/auth/callback"
	defaultStaticDir   = "static"
	defaultBackupDir   = "backups"
	defaultOutboxBuf   = 256
	defaultOutboxTries = 3
	defaultOutboxDelay = 200 * time.Millisecond
	defaultStoreTO     = 5 * time.Second
)

// Config holds runtime configuration for the server
type Config struct {
	Port        string
	GRPCPort    string
	Environment string
	Database    DatabaseConfig
	NATS        NATSConfig
	ClickHouse  ClickHouseConfig
	Authentik   AuthentikConfig
	StaticDir   string
	BackupDir   string
	Outbox      OutboxConfig
}

type DatabaseConfig struct {
	Driver     string
	SQLiteFile string
	URL        string
}

type NATSConfig struct {
	URL     string
	Subject string
}

type ClickHouseConfig struct {
	Addr     string
	Database string
	User     string
	Password string
}

type AuthentikConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Configured reports whether enough is set to talk to Authentik
func (a AuthentikConfig) Configured() bool {
	return a.BaseURL != "" && a.ClientID != "" && a.ClientSecret != ""
}

type OutboxConfig struct {
	Buffer       int
	Retries      int
	Backoff      time.Duration
	StoreTimeout time.Duration
}

// Load reads configuration from environment variables with defaults
func Load() Config {
	return Config{
		Port:        envOrDefault(envPort, defaultPort),
		GRPCPort:    envOrDefault(envGRPCPort, defaultGRPCPort),
		Environment: envOrDefault(envEnvironment, defaultEnvironment),
		Database: DatabaseConfig{
			Driver:     envOrDefault(envDBDriver, defaultDBDriver),
			SQLiteFile: envOrDefault(envSQLiteFile, defaultSQLiteFile),
			URL:        envOrDefault(envDatabaseURL, ""),
		},
		NATS: NATSConfig{
			URL:     envOrDefault(envNATSURL, defaultNATSURL),
			Subject: envOrDefault(envNATSSubject, defaultNATSSubject),
		},
		ClickHouse: ClickHouseConfig{
			Addr:     envOrDefault(envCHAddr, defaultCHAddr),
			Database: envOrDefault(envCHDB, defaultCHDB),
			User:     envOrDefault(envCHUser, defaultCHUser),
			Password: envOrDefault(envCHPassword, ""),
		},
		Authentik: AuthentikConfig{
			BaseURL:      envOrDefault(envAKBaseURL, ""),
			ClientID:     envOrDefault(envAKClientID, ""),
			ClientSecret: envOrDefault(envAKSecret, ""),
			RedirectURL:  envOrDefault(envAKRedirect, defaultAKRedirect),
		},
		StaticDir: envOrDefault(envStaticDir, defaultStaticDir),
		BackupDir: envOrDefault(envBackupDir, defaultBackupDir),
		Outbox: OutboxConfig{
			Buffer:       intEnvOrDefault(envOutboxBuf, defaultOutboxBuf),
			Retries:      intEnvOrDefault(envOutboxTries, defaultOutboxTries),
			Backoff:      durationEnvOrDefault(envOutboxDelay, defaultOutboxDelay),
			StoreTimeout: durationEnvOrDefault(envStoreTO, defaultStoreTO),
		},
	}
}

// Development is true for the local profile: embedded NATS, mock auth, no ClickHouse
func (c Config) Development() bool {
	return c.Environment == "" || c.Environment == defaultEnvironment
}
