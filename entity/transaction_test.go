package entity_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookings/entity"
)

func TestNewBookingTransaction(t *testing.T) {
	transaction, err := entity.NewBookingTransaction(500, "USD", map[string]any{"type": "hotel"})
	require.NoError(t, err)

	assert.NotEmpty(t, transaction.BookingID)
	assert.Equal(t, entity.StatusPending, transaction.Status)
	assert.Empty(t, transaction.PaymentIntentID)
	assert.Empty(t, transaction.ProviderBookingID)
	assert.False(t, transaction.RollbackRequired)
	assert.False(t, transaction.CreatedAt.IsZero())
}

func TestNewBookingTransaction_Validation(t *testing.T) {
	_, err := entity.NewBookingTransaction(0, "USD", nil)
	assert.ErrorIs(t, err, entity.ErrValidation)

	_, err = entity.NewBookingTransaction(500, "", nil)
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestTransition_HappyPath(t *testing.T) {
	transaction, err := entity.NewBookingTransaction(500, "USD", nil)
	require.NoError(t, err)

	for _, next := range []entity.Status{
		entity.StatusPaymentProcessing,
		entity.StatusPaymentConfirmed,
		entity.StatusBookingConfirmed,
		entity.StatusCompleted,
	} {
		require.NoError(t, transaction.Transition(next))
		assert.Equal(t, next, transaction.Status)
	}

	assert.True(t, transaction.Status.IsTerminal())
}

func TestTransition_RejectsBackwardsAndIllegal(t *testing.T) {
	testCases := []struct {
		from entity.Status
		to   entity.Status
	}{
		{entity.StatusPaymentProcessing, entity.StatusPending},
		{entity.StatusPaymentConfirmed, entity.StatusPaymentProcessing},
		{entity.StatusBookingConfirmed, entity.StatusPaymentProcessing},
		{entity.StatusPending, entity.StatusPaymentConfirmed},
		{entity.StatusPending, entity.StatusBookingConfirmed},
		{entity.StatusPending, entity.StatusCompleted},
		{entity.StatusCompleted, entity.StatusFailed},
		{entity.StatusFailed, entity.StatusPending},
		{entity.StatusCancelled, entity.StatusPaymentProcessing},
	}

	for _, tc := range testCases {
		transaction := entity.BookingTransaction{Status: tc.from}

		err := transaction.Transition(tc.to)
		assert.True(t, errors.Is(err, entity.ErrInvalidStateTransition), "%s -> %s should be rejected", tc.from, tc.to)
		assert.Equal(t, tc.from, transaction.Status)
	}
}

func TestTransition_FailureExitsFromNonTerminalStates(t *testing.T) {
	for _, from := range []entity.Status{
		entity.StatusPending,
		entity.StatusPaymentProcessing,
		entity.StatusPaymentConfirmed,
		entity.StatusBookingConfirmed,
	} {
		transaction := entity.BookingTransaction{Status: from}
		assert.NoError(t, transaction.Transition(entity.StatusFailed), "from %s", from)

		transaction = entity.BookingTransaction{Status: from}
		assert.NoError(t, transaction.Transition(entity.StatusCancelled), "from %s", from)
	}
}

func TestReachedPaymentConfirmed(t *testing.T) {
	assert.False(t, entity.StatusPending.ReachedPaymentConfirmed())
	assert.False(t, entity.StatusPaymentProcessing.ReachedPaymentConfirmed())
	assert.True(t, entity.StatusPaymentConfirmed.ReachedPaymentConfirmed())
	assert.True(t, entity.StatusBookingConfirmed.ReachedPaymentConfirmed())
	assert.True(t, entity.StatusCompleted.ReachedPaymentConfirmed())
	assert.False(t, entity.StatusFailed.ReachedPaymentConfirmed())
}

func TestIdempotencyKeys(t *testing.T) {
	transaction := entity.BookingTransaction{BookingID: "b-1"}

	assert.Equal(t, "booking-b-1-payment", transaction.PaymentIdempotencyKey())
	assert.Equal(t, "booking-b-1-refund", transaction.RefundIdempotencyKey())
}
