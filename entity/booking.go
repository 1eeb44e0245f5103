package entity

import "time"

// BookingRecord is the projection of a booking visible to the rest of the
// platform. The saga writes it as a side effect but does not own its schema.
type BookingRecord struct {
	BookingID   string    `json:"booking_id" db:"booking_id"`
	Status      string    `json:"status" db:"status"`
	TotalAmount int64     `json:"total_amount" db:"total_amount"`
	Currency    string    `json:"currency" db:"currency"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

const (
	BookingRecordPending   = "pending"
	BookingRecordConfirmed = "confirmed"
	BookingRecordCancelled = "cancelled"
)
