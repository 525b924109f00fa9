package booking

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/apperr"
	"github.com/ariefcatur/marketplace-core/internal/postgres"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// rules is the slice of a service (and its provider) that availability
// depends on.
type rules struct {
	ServiceID      string
	ProviderUserID string
	MaxDaily       *int
	AllowedSlots   []string
	IsAvailable    bool
	IsAvailableNow bool
	IsDeleted      bool
	TimeZone       string
}

func (r rules) maxDaily() int {
	if r.MaxDaily == nil || *r.MaxDaily <= 0 {
		return DefaultMaxDailyBookings
	}
	return *r.MaxDaily
}

func (r rules) slots() []string {
	if len(r.AllowedSlots) == 0 {
		return DefaultSlots
	}
	return r.AllowedSlots
}

func (r rules) slotAllowed(label string) bool {
	for _, s := range r.slots() {
		if s == label {
			return true
		}
	}
	return false
}

// slotCapacity splits the daily capacity across slots, rounding up.
func slotCapacity(maxDaily, slotCount int) int {
	if slotCount <= 0 {
		slotCount = len(DefaultSlots)
	}
	return (maxDaily + slotCount - 1) / slotCount
}

// dayBounds returns the [start, end) instants of the civil day containing t
// in loc.
func dayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := t.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func (e *Engine) location(r rules) *time.Location {
	if r.TimeZone == "" {
		return e.loc
	}
	loc, err := time.LoadLocation(r.TimeZone)
	if err != nil {
		zap.L().Warn("unknown provider time zone", zap.String("service_id", r.ServiceID), zap.String("tz", r.TimeZone))
		return e.loc
	}
	return loc
}

func loadRules(ctx context.Context, q postgres.Querier, serviceID string) (rules, error) {
	r := rules{ServiceID: serviceID}
	err := q.QueryRow(ctx, `
		SELECT pr.user_id, sv.max_daily_bookings, sv.allowed_slots,
		       sv.is_available, sv.is_available_now, sv.is_deleted, pr.time_zone
		FROM services sv
		JOIN providers pr ON pr.id = sv.provider_id
		WHERE sv.id = $1`, serviceID).
		Scan(&r.ProviderUserID, &r.MaxDaily, &r.AllowedSlots,
			&r.IsAvailable, &r.IsAvailableNow, &r.IsDeleted, &r.TimeZone)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, apperr.NotFound("service", serviceID)
	}
	return r, err
}

// evaluate returns a capacity error when a booking for date/slot would be
// refused. excludeID leaves one booking out of the counts, for reschedules.
func (e *Engine) evaluate(ctx context.Context, q postgres.Querier, r rules, date time.Time, slot string, requireNow bool, excludeID string) error {
	if !r.IsAvailable || r.IsDeleted {
		return apperr.Capacity("service %s is not available", r.ServiceID)
	}
	if requireNow && !r.IsAvailableNow {
		return apperr.Capacity("service %s is not taking bookings now", r.ServiceID)
	}
	if slot != "" && !r.slotAllowed(slot) {
		return apperr.Capacity("slot %s is not offered", slot)
	}

	start, end := dayBounds(date, e.location(r))

	var blocked bool
	if err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM blocked_time_slots
			WHERE service_id = $1 AND starts_at < $3 AND ends_at > $2
		)`, r.ServiceID, start, end).Scan(&blocked); err != nil {
		return err
	}
	if blocked {
		return apperr.Capacity("service %s is blocked on %s", r.ServiceID, start.Format(time.DateOnly))
	}

	var day, inSlot int
	if err := q.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE time_slot_label = $4 OR time_slot_label IS NULL)
		FROM bookings
		WHERE service_id = $1
		  AND booking_date >= $2 AND booking_date < $3
		  AND status NOT IN ('cancelled', 'rejected', 'expired')
		  AND id <> $5`, r.ServiceID, start, end, slot, excludeID).Scan(&day, &inSlot); err != nil {
		return err
	}

	limit := r.maxDaily()
	if day >= limit {
		return apperr.Capacity("service %s is fully booked on %s", r.ServiceID, start.Format(time.DateOnly))
	}
	if slot != "" && inSlot >= slotCapacity(limit, len(r.slots())) {
		return apperr.Capacity("slot %s is fully booked on %s", slot, start.Format(time.DateOnly))
	}
	return nil
}
