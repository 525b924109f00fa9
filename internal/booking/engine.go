// Package booking enforces per-day and per-slot service capacity and drives
// the booking lifecycle.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/apperr"
	"github.com/ariefcatur/marketplace-core/internal/cache"
	"github.com/ariefcatur/marketplace-core/internal/events"
	"github.com/ariefcatur/marketplace-core/internal/postgres"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validate = validator.New()

type Options struct {
	// Location is used for services whose provider has no time zone.
	Location   *time.Location
	PendingTTL time.Duration
	SweepBatch int
}

type Engine struct {
	db         *pgxpool.Pool
	cache      *cache.Tiered
	events     events.Emitter
	loc        *time.Location
	pendingTTL time.Duration
	batch      int
	now        func() time.Time
}

func New(db *pgxpool.Pool, c *cache.Tiered, em events.Emitter, opts Options) *Engine {
	e := &Engine{
		db:         db,
		cache:      c,
		events:     em,
		loc:        opts.Location,
		pendingTTL: opts.PendingTTL,
		batch:      opts.SweepBatch,
		now:        time.Now,
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.pendingTTL <= 0 {
		e.pendingTTL = 24 * time.Hour
	}
	if e.batch <= 0 {
		e.batch = 10
	}
	return e
}

// CheckAvailability reports whether a booking for serviceID on date (and
// slot, when non-empty) would currently be accepted.
func (e *Engine) CheckAvailability(ctx context.Context, serviceID string, date time.Time, slot string, requireNow bool) (Availability, error) {
	r, err := loadRules(ctx, e.db, serviceID)
	if err != nil {
		return Availability{}, err
	}
	err = e.evaluate(ctx, e.db, r, date, slot, requireNow, "")
	switch {
	case err == nil:
		return Availability{Available: true}, nil
	case errors.Is(err, apperr.ErrCapacityExceeded):
		return Availability{Reason: err.Error()}, nil
	default:
		return Availability{}, fmt.Errorf("check availability: %w", err)
	}
}

// lockDay serializes capacity decisions for one service and civil day until
// the transaction ends.
func (e *Engine) lockDay(ctx context.Context, tx pgx.Tx, r rules, date time.Time) error {
	start, _ := dayBounds(date, e.location(r))
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		"booking:"+r.ServiceID+":"+start.Format(time.DateOnly))
	return err
}

func (e *Engine) CreateBooking(ctx context.Context, nb NewBooking) (Booking, error) {
	if err := validate.Struct(nb); err != nil {
		return Booking{}, apperr.Validation("booking: %v", err)
	}

	var (
		b Booking
		r rules
	)
	err := postgres.WithTx(ctx, e.db, func(tx pgx.Tx) error {
		var err error
		if r, err = loadRules(ctx, tx, nb.ServiceID); err != nil {
			return err
		}
		if err := e.lockDay(ctx, tx, r, nb.BookingDate); err != nil {
			return err
		}
		if err := e.evaluate(ctx, tx, r, nb.BookingDate, nb.TimeSlotLabel, nb.RequireAvailableNow, ""); err != nil {
			return err
		}

		var label *string
		if nb.TimeSlotLabel != "" {
			label = &nb.TimeSlotLabel
		}
		expires := e.now().Add(e.pendingTTL)
		b, err = scanBooking(tx.QueryRow(ctx, `
			INSERT INTO bookings (id, customer_id, service_id, booking_date, time_slot_label, status, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+bookingColumns,
			uuid.NewString(), nb.CustomerID, nb.ServiceID, nb.BookingDate, label, StatusPending, expires))
		if err != nil {
			return err
		}
		return appendHistory(ctx, tx, b.ID, StatusPending, nb.CustomerID, "booking requested")
	})
	if err != nil {
		return Booking{}, fmt.Errorf("create booking: %w", err)
	}

	e.notify(ctx, events.EventBookingRequested, b, r.ProviderUserID, r.ProviderUserID)
	return b, nil
}

func (e *Engine) UpdateStatus(ctx context.Context, ch StatusChange) (Booking, error) {
	if err := validate.Struct(ch); err != nil {
		return Booking{}, apperr.Validation("status change: %v", err)
	}
	if ch.Status == StatusRescheduled && ch.NewDate == nil {
		return Booking{}, apperr.Validation("status change: rescheduling requires a new date")
	}

	var (
		b Booking
		r rules
	)
	err := postgres.WithTx(ctx, e.db, func(tx pgx.Tx) error {
		cur, err := scanBooking(tx.QueryRow(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, ch.BookingID))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("booking", ch.BookingID)
		}
		if err != nil {
			return err
		}
		if !CanTransition(cur.Status, ch.Status) {
			return apperr.Validation("booking %s cannot move from %s to %s", cur.ID, cur.Status, ch.Status)
		}
		if r, err = loadRules(ctx, tx, cur.ServiceID); err != nil {
			return err
		}

		date := cur.BookingDate
		if ch.Status == StatusRescheduled {
			date = *ch.NewDate
			if err := e.lockDay(ctx, tx, r, date); err != nil {
				return err
			}
			var slot string
			if cur.TimeSlotLabel != nil {
				slot = *cur.TimeSlotLabel
			}
			if err := e.evaluate(ctx, tx, r, date, slot, false, cur.ID); err != nil {
				return err
			}
		}

		b, err = scanBooking(tx.QueryRow(ctx, `
			UPDATE bookings
			SET status = $2, booking_date = $3, expires_at = NULL, updated_at = now()
			WHERE id = $1
			RETURNING `+bookingColumns, cur.ID, ch.Status, date))
		if err != nil {
			return err
		}
		return appendHistory(ctx, tx, b.ID, ch.Status, ch.ActorID, ch.Comment)
	})
	if err != nil {
		return Booking{}, fmt.Errorf("update booking status: %w", err)
	}

	e.notify(ctx, events.EventBookingStatusChanged, b, r.ProviderUserID, b.CustomerID, r.ProviderUserID)
	return b, nil
}

func (e *Engine) Get(ctx context.Context, id string) (Booking, error) {
	b, err := scanBooking(e.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return b, apperr.NotFound("booking", id)
	}
	return b, err
}

func (e *Engine) History(ctx context.Context, bookingID string) ([]HistoryEntry, error) {
	if _, err := e.Get(ctx, bookingID); err != nil {
		return nil, err
	}
	rows, err := e.db.Query(ctx, `
		SELECT status, changed_by, comment, created_at
		FROM booking_history WHERE booking_id = $1
		ORDER BY created_at, id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []HistoryEntry{}
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.Status, &h.ChangedBy, &h.Comment, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (e *Engine) notify(ctx context.Context, typ string, b Booking, providerUserID string, recipients ...string) {
	e.events.Emit(ctx, events.Event{
		Topic:         events.TopicBookingChanged,
		Type:          typ,
		CorrelationID: b.ID,
		Recipients:    recipients,
		Payload: events.BookingChangedPayload{
			BookingID:   b.ID,
			ServiceID:   b.ServiceID,
			CustomerID:  b.CustomerID,
			ProviderID:  providerUserID,
			Status:      string(b.Status),
			BookingDate: b.BookingDate,
		},
	})
}

const bookingColumns = `id, customer_id, service_id, booking_date, time_slot_label, status, expires_at, created_at, updated_at`

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.CustomerID, &b.ServiceID, &b.BookingDate, &b.TimeSlotLabel,
		&b.Status, &b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func appendHistory(ctx context.Context, q postgres.Querier, bookingID string, s Status, by, comment string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO booking_history (booking_id, status, changed_by, comment)
		VALUES ($1, $2, $3, $4)`, bookingID, s, by, comment)
	return err
}
