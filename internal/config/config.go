// SPDX-License-Identifier: Apache-2.0

package config

import (
	"time"
)

// Config is the top-level configuration container for the orchestrator.
// It aggregates all sub-configurations and is populated by merging values
// from an optional .env file and the process environment.
//
// Struct tags:
//   - env — direct environment variable name for scalar fields.
type Config struct {
	// App holds application-level settings such as the credential
	// encryption key and JWT token parameters.
	App App

	// Server holds network address and timeout settings for the HTTP server.
	Server Server

	// Storage holds configuration for the persistence backends: Postgres
	// (required) and Redis (optional).
	Storage Storage

	// Telegram holds client lifecycle timeouts and send-code budgets.
	Telegram Telegram

	// Supervisor holds container-runtime settings for the worker fleet.
	Supervisor Supervisor

	// DotenvPath is the optional path to a .env file loaded before the
	// environment is parsed. Populated via the DOTENV variable.
	DotenvPath string `env:"DOTENV"`
}

// App holds application-level configuration values that control security and
// token lifecycle.
type App struct {
	// EncryptionKey is the base64-encoded 32-byte key used by the
	// credential store to wrap api_hash values and session blobs.
	// Must be kept confidential.
	// Env: ENCRYPTION_KEY
	EncryptionKey string `env:"ENCRYPTION_KEY"`

	// JWTSecretKey is the secret key used to sign and verify JWT tokens.
	// Env: JWT_SECRET_KEY
	JWTSecretKey string `env:"JWT_SECRET_KEY"`

	// TokenIssuer is the "iss" claim embedded in every issued JWT.
	// Env: TOKEN_ISSUER
	TokenIssuer string `env:"TOKEN_ISSUER" envDefault:"solanagram"`

	// SessionTimeout specifies how long a JWT remains valid after issuance,
	// in seconds.
	// Env: SESSION_TIMEOUT
	SessionTimeout int `env:"SESSION_TIMEOUT" envDefault:"86400"`
}

// TokenDuration returns the configured session timeout as a duration.
func (a App) TokenDuration() time.Duration {
	return time.Duration(a.SessionTimeout) * time.Second
}

// Server holds network and timeout settings for the inbound HTTP transport.
type Server struct {
	// Address is the TCP address on which the HTTP server listens,
	// in "host:port" format.
	// Env: SERVER_ADDRESS
	Address string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0:8000"`

	// RequestTimeout is the maximum duration allowed for a single inbound
	// request before the server cancels it.
	// Env: SERVER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"60s"`
}

// Storage groups the configuration for all persistence backends.
type Storage struct {
	// DatabaseURL is the PostgreSQL Data Source Name used to open the
	// database connection.
	// Env: DATABASE_URL
	DatabaseURL string `env:"DATABASE_URL"`

	// RedisHost enables the optional Redis cache when non-empty.
	// The orchestrator operates without Redis: pending codes and SMS
	// counters then live in process memory.
	// Env: REDIS_HOST
	RedisHost string `env:"REDIS_HOST"`

	// RedisPort is the Redis TCP port.
	// Env: REDIS_PORT
	RedisPort int `env:"REDIS_PORT" envDefault:"6379"`

	// RedisDB selects the Redis logical database.
	// Env: REDIS_DB
	RedisDB int `env:"REDIS_DB" envDefault:"0"`
}

// RedisEnabled reports whether the optional Redis cache is configured.
func (s Storage) RedisEnabled() bool {
	return s.RedisHost != ""
}

// Telegram holds client lifecycle timeouts and send-code budgets.
type Telegram struct {
	// DefaultAPIID / DefaultAPIHash are optional platform-wide api
	// credentials, used as a fallback for accounts that have not stored
	// their own pair.
	// Env: TELEGRAM_API_ID / TELEGRAM_API_HASH
	DefaultAPIID   int    `env:"TELEGRAM_API_ID"`
	DefaultAPIHash string `env:"TELEGRAM_API_HASH"`

	// ConnectionTimeout bounds a single client connect, in seconds.
	// Env: TELEGRAM_CONNECTION_TIMEOUT
	ConnectionTimeout int `env:"TELEGRAM_CONNECTION_TIMEOUT" envDefault:"8"`

	// RequestTimeout bounds a single Telegram request, in seconds.
	// Env: TELEGRAM_REQUEST_TIMEOUT
	RequestTimeout int `env:"TELEGRAM_REQUEST_TIMEOUT" envDefault:"8"`

	// ClientCacheTTL is how long a cached client handle stays valid,
	// in seconds.
	// Env: CLIENT_CACHE_TTL
	ClientCacheTTL int `env:"CLIENT_CACHE_TTL" envDefault:"300"`

	// SMSCodeLimit is the per-phone send-code budget inside one reset
	// window.
	// Env: SMS_CODE_LIMIT
	SMSCodeLimit int `env:"SMS_CODE_LIMIT" envDefault:"5"`

	// SMSCodeResetHours is the counter reset window, in hours.
	// Env: SMS_CODE_RESET_HOURS
	SMSCodeResetHours int `env:"SMS_CODE_RESET_HOURS" envDefault:"24"`
}

// ConnectTimeout returns the connect bound as a duration.
func (t Telegram) ConnectTimeout() time.Duration {
	return time.Duration(t.ConnectionTimeout) * time.Second
}

// CallTimeout returns the request bound as a duration.
func (t Telegram) CallTimeout() time.Duration {
	return time.Duration(t.RequestTimeout) * time.Second
}

// CacheTTL returns the client cache TTL as a duration.
func (t Telegram) CacheTTL() time.Duration {
	return time.Duration(t.ClientCacheTTL) * time.Second
}

// Supervisor holds container-runtime settings for the worker fleet.
type Supervisor struct {
	// DockerHost overrides the container runtime endpoint. Empty means
	// the runtime default (unix socket / DOCKER_HOST convention).
	// Env: DOCKER_HOST
	DockerHost string `env:"DOCKER_HOST"`

	// ProjectName labels every worker container and prefixes networks.
	// Env: FORWARDER_PROJECT_NAME
	ProjectName string `env:"FORWARDER_PROJECT_NAME" envDefault:"solanagram"`

	// ConfigsPath is the host directory under which per-worker bundle
	// directories are materialized and bind-mounted.
	// Env: SOLANAGRAM_CONFIGS_PATH
	ConfigsPath string `env:"SOLANAGRAM_CONFIGS_PATH" envDefault:"/srv/solanagram/configs"`

	// LoggerImage and ListenerImage are the worker container images.
	// Env: LOGGER_IMAGE / LISTENER_IMAGE
	LoggerImage   string `env:"LOGGER_IMAGE" envDefault:"solanagram-logger:latest"`
	ListenerImage string `env:"LISTENER_IMAGE" envDefault:"solanagram-listener:latest"`

	// WebhookURL, when set, is passed to listener workers so they can
	// notify extracted signals. Empty disables notifications.
	// Env: WEBHOOK_URL
	WebhookURL string `env:"WEBHOOK_URL"`

	// MessageLogRetention, when positive, enables periodic purge of
	// message_logs older than the given number of days. Zero (the
	// default) keeps message logs forever; only saved_messages have a
	// built-in retention.
	// Env: MESSAGE_LOG_RETENTION
	MessageLogRetention int `env:"MESSAGE_LOG_RETENTION" envDefault:"0"`
}

// GetConfig loads, merges, and validates the orchestrator configuration:
//  1. optional .env file (path from DOTENV, default ".env" when present)
//  2. process environment
//
// Returns a fully populated *Config or an error if any source fails to load
// or the final config fails validation.
func GetConfig() (*Config, error) {
	return newConfigBuilder().
		withDotenv().
		withEnv().
		build()
}
