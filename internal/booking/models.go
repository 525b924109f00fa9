package booking

import "time"

type Status string

const (
	StatusPending     Status = "pending"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
	StatusRescheduled Status = "rescheduled"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusExpired     Status = "expired"
)

// transitions lists the statuses reachable by an explicit status change.
// Expiry is applied only by the sweeper.
var transitions = map[Status][]Status{
	StatusPending:     {StatusAccepted, StatusRejected, StatusRescheduled, StatusCancelled},
	StatusAccepted:    {StatusRescheduled, StatusCompleted, StatusCancelled},
	StatusRescheduled: {StatusAccepted, StatusRejected, StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Active reports whether a booking in this status holds capacity.
func (s Status) Active() bool {
	switch s {
	case StatusCancelled, StatusRejected, StatusExpired:
		return false
	}
	return true
}

const (
	SlotMorning   = "morning"
	SlotAfternoon = "afternoon"
	SlotEvening   = "evening"
)

var DefaultSlots = []string{SlotMorning, SlotAfternoon, SlotEvening}

const DefaultMaxDailyBookings = 5

type Booking struct {
	ID            string     `json:"id"`
	CustomerID    string     `json:"customer_id"`
	ServiceID     string     `json:"service_id"`
	BookingDate   time.Time  `json:"booking_date"`
	TimeSlotLabel *string    `json:"time_slot_label,omitempty"`
	Status        Status     `json:"status"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type HistoryEntry struct {
	Status    Status    `json:"status"`
	ChangedBy string    `json:"changed_by"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type NewBooking struct {
	CustomerID    string    `json:"customer_id" validate:"required,max=64"`
	ServiceID     string    `json:"service_id" validate:"required,max=64"`
	BookingDate   time.Time `json:"booking_date" validate:"required"`
	TimeSlotLabel string    `json:"time_slot_label" validate:"omitempty,oneof=morning afternoon evening"`
	// RequireAvailableNow refuses services not currently taking bookings.
	RequireAvailableNow bool `json:"require_available_now"`
}

type StatusChange struct {
	BookingID string     `json:"booking_id" validate:"required"`
	ActorID   string     `json:"actor_id" validate:"required"`
	Status    Status     `json:"status" validate:"required"`
	Comment   string     `json:"comment" validate:"max=500"`
	NewDate   *time.Time `json:"new_date,omitempty"`
}

// Availability is the outcome of an availability check. Reason is set when
// the request would be refused.
type Availability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}
