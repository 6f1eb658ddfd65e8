package dbconn

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unimak/dftrack/internal/config"
	"github.com/unimak/dftrack/internal/slogging"
)

// RedisDB represents a Redis database connection
type RedisDB struct {
	client *redis.Client
	addr   string
}

// SessionKey builds the key a login session is stored under
func SessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// NewRedisDB creates a new Redis connection and pings it
func NewRedisDB(cfg config.RedisConfig) (*RedisDB, error) {
	logger := slogging.Get()
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	logger.Debug("Initializing Redis connection to %s DB=%d", addr, cfg.DB)

	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        10,
		MinIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to ping Redis: %v", err)
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	logger.Info("Redis connection established (%s)", addr)

	return &RedisDB{client: client, addr: addr}, nil
}

// Close closes the Redis connection
func (db *RedisDB) Close() error {
	if db.client == nil {
		return nil
	}
	if err := db.client.Close(); err != nil {
		slogging.Get().Error("Error closing Redis connection to %s: %v", db.addr, err)
		return err
	}
	return nil
}

// GetClient returns the Redis client
func (db *RedisDB) GetClient() *redis.Client {
	return db.client
}

// Ping checks if the Redis connection is alive
func (db *RedisDB) Ping(ctx context.Context) error {
	return db.client.Ping(ctx).Err()
}
