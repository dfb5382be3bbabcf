package models

import "time"

// Booking statuses.
const (
	StatusBooked = "Booked"
	StatusDone   = "Done"
	StatusCancel = "Cancel"
)

// Status transition actions accepted by the lifecycle service.
const (
	ActionBook   = "book"
	ActionDone   = "done"
	ActionCancel = "cancel"
)

// DoneFee is the fee assigned when a booking is marked Done with no fee set.
const DoneFee int64 = 1000

// DefaultMinutes is the session length used when the client does not pick one.
const DefaultMinutes = 30

// Booking represents a single studio session reservation.
type Booking struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Minutes   int       `json:"minutes"`
	Status    string    `json:"status"`
	Fee       *int64    `json:"fee"` // nil until the session is marked Done
	Memo      string    `json:"memo,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsActive reports whether the booking still occupies its slot.
// Cancelled bookings release the slot and are ignored by conflict checks.
func (b *Booking) IsActive() bool {
	return b.Status != StatusCancel
}

// Overlaps reports whether this booking's interval overlaps another's.
func (b *Booking) Overlaps(other *Booking) bool {
	return Overlaps(b.StartAt, b.EndAt, other.StartAt, other.EndAt)
}

// Overlaps reports whether two half-open intervals [s1,e1) and [s2,e2)
// overlap. Back-to-back intervals (e1 == s2) do not overlap; the end
// boundary is exclusive.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	// overlap iff NOT (e1 <= s2 OR e2 <= s1)
	return e1.After(s2) && e2.After(s1)
}

// ValidStatus reports whether s is a known booking status.
func ValidStatus(s string) bool {
	switch s {
	case StatusBooked, StatusDone, StatusCancel:
		return true
	}
	return false
}

// Feedback is a free-text note left through the dashboard. Append-only.
type Feedback struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// MonthlyStats summarizes completed sessions for one calendar month.
type MonthlyStats struct {
	DoneCount int   `json:"done_count"`
	TotalFee  int64 `json:"total_fee"`
}
