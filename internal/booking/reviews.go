package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/apperr"
	"github.com/ariefcatur/marketplace-core/internal/cache"
	"github.com/ariefcatur/marketplace-core/internal/postgres"
	"github.com/ariefcatur/marketplace-core/internal/redisx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Review struct {
	ID         string    `json:"id"`
	ServiceID  string    `json:"service_id"`
	BookingID  string    `json:"booking_id"`
	CustomerID string    `json:"customer_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

type NewReview struct {
	BookingID  string `json:"booking_id" validate:"required"`
	CustomerID string `json:"customer_id" validate:"required"`
	Rating     int    `json:"rating" validate:"min=1,max=5"`
	Comment    string `json:"comment" validate:"max=2000"`
}

// CreateReview records the customer's review of a completed booking. One
// review per booking.
func (e *Engine) CreateReview(ctx context.Context, nr NewReview) (Review, error) {
	if err := validate.Struct(nr); err != nil {
		return Review{}, apperr.Validation("review: %v", err)
	}

	var rv Review
	err := postgres.WithTx(ctx, e.db, func(tx pgx.Tx) error {
		var (
			customerID, serviceID string
			status                Status
		)
		err := tx.QueryRow(ctx, `SELECT customer_id, service_id, status FROM bookings WHERE id = $1 FOR SHARE`, nr.BookingID).
			Scan(&customerID, &serviceID, &status)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("booking", nr.BookingID)
		}
		if err != nil {
			return err
		}
		if customerID != nr.CustomerID {
			return apperr.Validation("booking %s does not belong to customer %s", nr.BookingID, nr.CustomerID)
		}
		if status != StatusCompleted {
			return apperr.Validation("booking %s is %s, only completed bookings can be reviewed", nr.BookingID, status)
		}

		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reviews WHERE booking_id = $1)`, nr.BookingID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return apperr.Duplicate("review for booking %s", nr.BookingID)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO reviews (id, service_id, booking_id, customer_id, rating, comment)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, service_id, booking_id, customer_id, rating, comment, created_at`,
			uuid.NewString(), serviceID, nr.BookingID, nr.CustomerID, nr.Rating, nr.Comment).
			Scan(&rv.ID, &rv.ServiceID, &rv.BookingID, &rv.CustomerID, &rv.Rating, &rv.Comment, &rv.CreatedAt)
		if postgres.IsUniqueViolation(err) {
			return apperr.Duplicate("review for booking %s", nr.BookingID)
		}
		return err
	})
	if err != nil {
		return Review{}, fmt.Errorf("create review: %w", err)
	}

	e.cache.Invalidate(ctx, redisx.ServiceReviews.Exact(rv.ServiceID))
	return rv, nil
}

func (e *Engine) ListServiceReviews(ctx context.Context, serviceID string) ([]Review, error) {
	key := redisx.ServiceReviews.Key(serviceID)
	return cache.Remember(ctx, e.cache, key, redisx.TTLServiceReviews, func(ctx context.Context) ([]Review, error) {
		rows, err := e.db.Query(ctx, `
			SELECT id, service_id, booking_id, customer_id, rating, comment, created_at
			FROM reviews WHERE service_id = $1
			ORDER BY created_at DESC, id`, serviceID)
		if err != nil {
			return nil, fmt.Errorf("list reviews: %w", err)
		}
		defer rows.Close()
		out := []Review{}
		for rows.Next() {
			var rv Review
			if err := rows.Scan(&rv.ID, &rv.ServiceID, &rv.BookingID, &rv.CustomerID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
				return nil, fmt.Errorf("list reviews: %w", err)
			}
			out = append(out, rv)
		}
		return out, rows.Err()
	})
}
