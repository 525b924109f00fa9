package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ariefcatur/marketplace-core/internal/events"
	"github.com/ariefcatur/marketplace-core/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProcessExpiredBookings moves every pending booking past its expiry to
// expired, in concurrent batches. A booking is notified only by the run that
// actually transitioned it, so repeated or overlapping runs never notify
// twice. Failures are collected and the remaining batches still run.
func (e *Engine) ProcessExpiredBookings(ctx context.Context) (int, error) {
	rows, err := e.db.Query(ctx, `
		SELECT id FROM bookings
		WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at, id`, e.now())
	if err != nil {
		return 0, fmt.Errorf("find expired bookings: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, fmt.Errorf("find expired bookings: %w", err)
	}

	var (
		mu      sync.Mutex
		expired int
		errs    []error
	)
	for start := 0; start < len(ids); start += e.batch {
		end := min(start+e.batch, len(ids))
		var g errgroup.Group
		for _, id := range ids[start:end] {
			id := id
			g.Go(func() error {
				ok, err := e.expireOne(ctx, id)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, fmt.Errorf("expire booking %s: %w", id, err))
				} else if ok {
					expired++
				}
				return nil
			})
		}
		_ = g.Wait()
	}
	return expired, errors.Join(errs...)
}

func (e *Engine) expireOne(ctx context.Context, id string) (bool, error) {
	var (
		b              Booking
		providerUserID string
		transitioned   bool
	)
	err := postgres.WithTx(ctx, e.db, func(tx pgx.Tx) error {
		var err error
		b, err = scanBooking(tx.QueryRow(ctx, `
			UPDATE bookings
			SET status = 'expired', expires_at = NULL, updated_at = now()
			WHERE id = $1 AND status = 'pending'
			RETURNING `+bookingColumns, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		transitioned = true
		if err := tx.QueryRow(ctx, `
			SELECT pr.user_id FROM services sv
			JOIN providers pr ON pr.id = sv.provider_id
			WHERE sv.id = $1`, b.ServiceID).Scan(&providerUserID); err != nil {
			return err
		}
		return appendHistory(ctx, tx, b.ID, StatusExpired, "system", "no response before expiry")
	})
	if err != nil || !transitioned {
		return false, err
	}
	e.notify(ctx, events.EventBookingExpired, b, providerUserID, b.CustomerID, providerUserID)
	return true, nil
}

// RegisterSweeper schedules ProcessExpiredBookings on c.
func (e *Engine) RegisterSweeper(c *cron.Cron, schedule string) error {
	_, err := c.AddFunc(schedule, func() {
		defer func() {
			if err := recover(); err != nil {
				zap.S().Error(err)
			}
		}()
		n, err := e.ProcessExpiredBookings(context.Background())
		if err != nil {
			zap.L().Error("expired booking sweep", zap.Int("expired", n), zap.Error(err))
			return
		}
		if n > 0 {
			zap.L().Info("expired booking sweep", zap.Int("expired", n))
		}
	})
	return err
}
