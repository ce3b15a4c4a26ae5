package config

import "errors"

// Validation errors returned by Config.validate. Matched with [errors.Is].
var (
	// ErrNoDatabaseURL is returned when DATABASE_URL is not provided by any
	// configuration source.
	ErrNoDatabaseURL = errors.New("DATABASE_URL is not set")

	// ErrNoEncryptionKey is returned when the credential-store key is
	// missing. The orchestrator refuses to start rather than persist
	// plaintext credentials.
	ErrNoEncryptionKey = errors.New("ENCRYPTION_KEY is not set")

	// ErrNoJWTSecret is returned when JWT_SECRET_KEY is missing.
	ErrNoJWTSecret = errors.New("JWT_SECRET_KEY is not set")

	// ErrInvalidClientCacheTTL is returned when CLIENT_CACHE_TTL is zero or
	// negative.
	ErrInvalidClientCacheTTL = errors.New("CLIENT_CACHE_TTL must be positive")
)
