package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"postureguard/internal/config"
	"postureguard/internal/model"
)

// Publisher pushes session snapshots to an external sink.
type Publisher interface {
	Publish(ctx context.Context, snap model.SessionSnapshot) error
	Close() error
}

// RedisPublisher writes each snapshot as a JSON value under
// <key_prefix><session_id>, with an optional TTL so stale sessions age out.
type RedisPublisher struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedisPublisher(cfg config.RedisConfig) *RedisPublisher {
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
	}
}

func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Publish(ctx context.Context, snap model.SessionSnapshot) error {
	if snap.SessionID == "" {
		return nil
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	key := p.keyPrefix + snap.SessionID
	if err := p.client.Set(ctx, key, payload, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
