package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/redisx"
	"github.com/redis/go-redis/v9"
)

type RedisBackend struct {
	handle *redisx.Handle
}

func NewRedisBackend(h *redisx.Handle) *RedisBackend { return &RedisBackend{handle: h} }

func (b *RedisBackend) Get(ctx context.Context, sid string) (*Session, error) {
	client, err := b.handle.Client(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := client.Get(ctx, redisx.Sessions.Key(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		b.handle.Report(client, err)
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (b *RedisBackend) Set(ctx context.Context, sid string, s *Session, ttl time.Duration) error {
	client, err := b.handle.Client(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	err = client.Set(ctx, redisx.Sessions.Key(sid), raw, ttl).Err()
	b.handle.Report(client, err)
	return err
}

func (b *RedisBackend) Touch(ctx context.Context, sid string, s *Session, ttl time.Duration) error {
	client, err := b.handle.Client(ctx)
	if err != nil {
		return err
	}
	ok, err := client.Expire(ctx, redisx.Sessions.Key(sid), ttl).Result()
	if err != nil {
		b.handle.Report(client, err)
		return err
	}
	if !ok {
		return b.Set(ctx, sid, s, ttl)
	}
	return nil
}

func (b *RedisBackend) Destroy(ctx context.Context, sid string) error {
	client, err := b.handle.Client(ctx)
	if err != nil {
		return err
	}
	err = client.Del(ctx, redisx.Sessions.Key(sid)).Err()
	b.handle.Report(client, err)
	return err
}
