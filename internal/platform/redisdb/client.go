package redisdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mindfold/mindfold-backend/internal/platform/envutil"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// Client wraps the go-redis client used for telemetry pub/sub.
type Client struct {
	rdb *goredis.Client
	log *logger.Logger
}

// NewFromEnv connects using REDIS_ADDR. Redis is optional infrastructure;
// callers treat a nil client as "telemetry disabled" rather than an error.
func NewFromEnv(log *logger.Logger) (*Client, error) {
	addr := strings.TrimSpace(envutil.GetEnv("REDIS_ADDR", "", log))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    envutil.GetEnv("REDIS_PASSWORD", "", nil),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{rdb: rdb, log: log.With("client", "Redis")}, nil
}

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	if c == nil || c.rdb == nil {
		return fmt.Errorf("redis client not initialized")
	}
	return c.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe starts a forwarder goroutine that hands each raw payload to onMsg
// until ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context, channel string, onMsg func(payload string)) error {
	if c == nil || c.rdb == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	sub := c.rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				onMsg(m.Payload)
			}
		}
	}()
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
