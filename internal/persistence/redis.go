package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/guayoyo/loyalty-service/internal/config"
)

const (
	redisDialTimeout        = 3 * time.Second
	redisIOTimeout          = 2 * time.Second
	redisStartupPingTimeout = 2 * time.Second
)

// Redis wraps the go-redis client. It holds session snapshots in both
// modes and the account hash when no remote backend is configured.
type Redis struct {
	Client *redis.Client
	addr   string
}

// NewRedis builds the client and pings it once. An unreachable server is
// logged, not fatal; callers see errors per command and the readiness check
// reports it.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisIOTimeout,
		WriteTimeout: redisIOTimeout,
	})
	r := &Redis{Client: client, addr: cfg.Addr}

	ctx, cancel := context.WithTimeout(context.Background(), redisStartupPingTimeout)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		logger.Warn("redis unreachable at startup", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB), zap.Error(err))
	} else {
		logger.Info("redis ready", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	}
	return r
}

// Addr reports the configured server address.
func (r *Redis) Addr() string {
	if r == nil {
		return ""
	}
	return r.addr
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
