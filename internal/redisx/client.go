package redisx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/apperr"
	"github.com/ariefcatur/marketplace-core/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Handle owns the process-wide redis connection. It connects lazily on first
// use and, after a connection failure, refuses to reconnect until the
// cooldown has elapsed. A Handle built without options is permanently
// disabled and every call reports apperr.ErrBackendUnavailable.
type Handle struct {
	opts     *redis.Options
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	client   *redis.Client
	failedAt time.Time
}

func New(cfg config.RedisConfig) (*Handle, error) {
	if !cfg.Enabled() {
		return Disabled(), nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	opts.MaxRetries = -1
	return NewWithOptions(opts, cfg.Cooldown), nil
}

func NewWithOptions(opts *redis.Options, cooldown time.Duration) *Handle {
	return &Handle{opts: opts, cooldown: cooldown, now: time.Now}
}

func Disabled() *Handle { return &Handle{now: time.Now} }

func (h *Handle) Enabled() bool { return h.opts != nil }

// Client returns a connected client or an error wrapping
// apperr.ErrBackendUnavailable.
func (h *Handle) Client(ctx context.Context) (*redis.Client, error) {
	if h.opts == nil {
		return nil, fmt.Errorf("%w: redis disabled", apperr.ErrBackendUnavailable)
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client != nil {
		return h.client, nil
	}
	if !h.failedAt.IsZero() && h.now().Sub(h.failedAt) < h.cooldown {
		return nil, fmt.Errorf("%w: redis cooling down", apperr.ErrBackendUnavailable)
	}

	c := redis.NewClient(h.opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		h.failedAt = h.now()
		zap.L().Warn("redis connect failed", zap.String("addr", h.opts.Addr), zap.Duration("cooldown", h.cooldown), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", apperr.ErrBackendUnavailable, err)
	}
	h.client = c
	h.failedAt = time.Time{}
	return c, nil
}

// Report inspects the result of a command issued on c. Connection-level
// failures drop the client and start the cooldown; redis.Nil and server
// replies (redis.Error) do not.
func (h *Handle) Report(c *redis.Client, err error) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	var reply redis.Error
	if errors.As(err, &reply) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client != c {
		return
	}
	h.client = nil
	h.failedAt = h.now()
	go func() { _ = c.Close() }()
	zap.L().Warn("redis command failed, entering cooldown", zap.Duration("cooldown", h.cooldown), zap.Error(err))
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return nil
	}
	err := h.client.Close()
	h.client = nil
	return err
}
