package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the single source of truth for how far a booking transaction
// has progressed. Transitions are only valid along allowedTransitions.
type Status string

const (
	StatusPending           Status = "pending"
	StatusPaymentProcessing Status = "payment_processing"
	StatusPaymentConfirmed  Status = "payment_confirmed"
	StatusBookingConfirmed  Status = "booking_confirmed"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusCancelled         Status = "cancelled"
)

var allowedTransitions = map[Status][]Status{
	StatusPending:           {StatusPaymentProcessing, StatusFailed, StatusCancelled},
	StatusPaymentProcessing: {StatusPaymentConfirmed, StatusFailed, StatusCancelled},
	StatusPaymentConfirmed:  {StatusBookingConfirmed, StatusFailed, StatusCancelled},
	StatusBookingConfirmed:  {StatusCompleted, StatusFailed, StatusCancelled},
}

// statusRank orders states along the happy path; failure states carry no rank.
var statusRank = map[Status]int{
	StatusPending:           0,
	StatusPaymentProcessing: 1,
	StatusPaymentConfirmed:  2,
	StatusBookingConfirmed:  3,
	StatusCompleted:         4,
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ReachedPaymentConfirmed reports whether payment capture has (or may have)
// happened, which decides whether a rollback must attempt a refund.
func (s Status) ReachedPaymentConfirmed() bool {
	rank, ok := statusRank[s]
	return ok && rank >= statusRank[StatusPaymentConfirmed]
}

// BookingTransaction is the saga's unit of state, one per booking attempt.
// It is never reused across attempts and never deleted by the saga.
type BookingTransaction struct {
	BookingID         string         `json:"booking_id"`
	Status            Status         `json:"status"`
	PaymentIntentID   string         `json:"payment_intent_id,omitempty"`
	ProviderBookingID string         `json:"provider_booking_id,omitempty"`
	TotalAmount       int64          `json:"total_amount"`
	Currency          string         `json:"currency"`
	BookingData       map[string]any `json:"booking_data,omitempty"`
	FailureReason     string         `json:"failure_reason,omitempty"`
	RollbackRequired  bool           `json:"rollback_required"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func NewBookingTransaction(totalAmount int64, currency string, bookingData map[string]any) (BookingTransaction, error) {
	if totalAmount <= 0 {
		return BookingTransaction{}, fmt.Errorf("%w: total amount must be greater than 0", ErrValidation)
	}
	if currency == "" {
		return BookingTransaction{}, fmt.Errorf("%w: currency must be set", ErrValidation)
	}

	now := time.Now().UTC()

	return BookingTransaction{
		BookingID:   uuid.NewString(),
		Status:      StatusPending,
		TotalAmount: totalAmount,
		Currency:    currency,
		BookingData: bookingData,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Transition moves the transaction to the next status, or fails with
// ErrInvalidStateTransition. This is the only place status is mutated.
func (t *BookingTransaction) Transition(next Status) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, t.Status, next)
	}

	t.Status = next
	t.UpdatedAt = time.Now().UTC()

	return nil
}

// PaymentIdempotencyKey is derived from the booking ID so that retried
// payment initiations after a crash or timeout reuse the same gateway intent.
func (t BookingTransaction) PaymentIdempotencyKey() string {
	return fmt.Sprintf("booking-%s-payment", t.BookingID)
}

// RefundIdempotencyKey makes retried rollbacks refund at most once.
func (t BookingTransaction) RefundIdempotencyKey() string {
	return fmt.Sprintf("booking-%s-refund", t.BookingID)
}
