package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/config"
	"go.uber.org/zap"
)

const migrateTimeout = 2 * time.Second

// Tiered prefers the remote backend and falls back to the durable one.
// Sessions found only in the durable backend are copied to the remote one in
// the background on read.
type Tiered struct {
	remote  Backend // nil when running durable-only
	durable Backend
	ttl     time.Duration

	migrations   sync.WaitGroup
	fallbackOnce sync.Once
}

// NewTiered builds the store for the configured mode. remote may be nil, in
// which case the store is durable-only regardless of mode.
func NewTiered(mode string, remote, durable Backend, defaultTTL time.Duration) *Tiered {
	t := &Tiered{durable: durable, ttl: defaultTTL}
	if mode != config.SessionStorePostgres && remote != nil {
		t.remote = remote
	}
	return t
}

func (t *Tiered) ttlFor(s *Session) time.Duration {
	if s != nil && s.MaxAge > 0 {
		return time.Duration(s.MaxAge) * time.Second
	}
	return t.ttl
}

func (t *Tiered) Get(ctx context.Context, sid string) (*Session, error) {
	if t.remote != nil {
		s, err := t.remote.Get(ctx, sid)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrNotFound) {
			t.fallback("get", err)
		}
	}

	s, err := t.durable.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if t.remote != nil {
		t.migrate(sid, s)
	}
	return s, nil
}

func (t *Tiered) migrate(sid string, s *Session) {
	t.migrations.Add(1)
	go func() {
		defer t.migrations.Done()
		ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
		defer cancel()
		if err := t.remote.Set(ctx, sid, s, t.ttlFor(s)); err != nil {
			zap.L().Debug("session migration failed", zap.Error(err))
		}
	}()
}

func (t *Tiered) Set(ctx context.Context, sid string, s *Session) error {
	ttl := t.ttlFor(s)
	if t.remote != nil {
		err := t.remote.Set(ctx, sid, s, ttl)
		if err == nil {
			return nil
		}
		t.fallback("set", err)
	}
	return t.durable.Set(ctx, sid, s, ttl)
}

func (t *Tiered) Touch(ctx context.Context, sid string, s *Session) error {
	ttl := t.ttlFor(s)
	if t.remote != nil {
		err := t.remote.Touch(ctx, sid, s, ttl)
		if err == nil {
			return nil
		}
		t.fallback("touch", err)
	}
	return t.durable.Touch(ctx, sid, s, ttl)
}

// Destroy removes sid from both backends and succeeds if either deletion did.
func (t *Tiered) Destroy(ctx context.Context, sid string) error {
	derr := t.durable.Destroy(ctx, sid)
	if t.remote == nil {
		return derr
	}
	rerr := t.remote.Destroy(ctx, sid)
	if rerr == nil || derr == nil {
		return nil
	}
	return errors.Join(rerr, derr)
}

// Close waits for in-flight migrations.
func (t *Tiered) Close() { t.migrations.Wait() }

func (t *Tiered) fallback(op string, err error) {
	t.fallbackOnce.Do(func() {
		zap.L().Info("session store using durable fallback", zap.String("op", op), zap.Error(err))
	})
}
