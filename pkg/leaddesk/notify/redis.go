package notify

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/mikepea/leaddesk/pkg/leaddesk/config"
)

// RedisPublisher publishes each notification on the channel <prefix>:<user_id>.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher connects to redis and checks the connection.
func NewRedisPublisher(ctx context.Context, cfg config.RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Address, err)
	}
	return &RedisPublisher{client: client, prefix: cfg.ChannelPrefix}, nil
}

// Channel returns the channel a user's notifications are published on.
func (p *RedisPublisher) Channel(userID uint) string {
	return fmt.Sprintf("%s:%d", p.prefix, userID)
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, userID uint, payload []byte) error {
	return p.client.Publish(ctx, p.Channel(userID), payload).Err()
}

// Close closes the redis client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
