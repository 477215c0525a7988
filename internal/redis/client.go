package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/neuro-rehab-portal/internal/events"
)

// AuditOptions configures the Redis audit stream.
type AuditOptions struct {
	Addr     string
	Username string
	Password string
	Stream   string
	MaxLen   int64
	// WriteTimeout caps socket reads and writes so a wedged server fails an
	// XADD instead of holding it.
	WriteTimeout time.Duration
}

func clientOptions(opts AuditOptions) *redis.Options {
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &redis.Options{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		ClientName:   "neuro-rehab-portal",
		DB:           0,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		PoolSize:     4,
		MinIdleConns: 1,
		MaxRetries:   1,
	}
}

// OpenAuditStream connects, pings once and returns the client together with
// the sink that appends to opts.Stream.
func OpenAuditStream(ctx context.Context, opts AuditOptions) (*redis.Client, *events.RedisSink, error) {
	if opts.Stream == "" {
		return nil, nil, fmt.Errorf("redis audit stream name is empty")
	}

	rdb := redis.NewClient(clientOptions(opts))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, events.NewRedisSink(rdb, opts.Stream, opts.MaxLen), nil
}
