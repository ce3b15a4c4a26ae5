package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/solanagram/solanagram/internal/config"
	"github.com/solanagram/solanagram/internal/logger"
)

// Storages aggregates every repository over the shared database handle,
// plus the optional Redis client.
type Storages struct {
	Users           UserRepository
	LoggingSessions LoggingSessionRepository
	MessageLogs     MessageLogRepository
	Listeners       ListenerRepository
	SavedMessages   SavedMessageRepository

	// Redis is nil when REDIS_HOST is not configured; callers fall back to
	// in-memory caches.
	Redis *redis.Client

	db *DB
}

// NewStorages connects to Postgres (and Redis when configured) and wires all
// repositories.
func NewStorages(ctx context.Context, cfg config.Storage, log *logger.Logger) (*Storages, error) {
	db, err := NewConnectPostgres(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("error creating postgres connection: %w", err)
	}

	s := &Storages{
		Users:           NewUserRepository(db, log),
		LoggingSessions: NewLoggingSessionRepository(db, log),
		MessageLogs:     NewMessageLogRepository(db, log),
		Listeners:       NewListenerRepository(db, log),
		SavedMessages:   NewSavedMessageRepository(db, log),
		db:              db,
	}

	if cfg.RedisEnabled() {
		client := redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
			DB:   cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			// Redis is an optional cache: log and continue without it.
			log.Warn().Err(err).Msg("redis unavailable, falling back to in-memory caches")
		} else {
			s.Redis = client
			log.Info().Str("host", cfg.RedisHost).Msg("redis cache connected")
		}
	}

	return s, nil
}

// DB exposes the raw handle for migrations.
func (s *Storages) DB() *DB {
	return s.db
}

// Close releases the database and cache connections.
func (s *Storages) Close() error {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	return s.db.Close()
}
