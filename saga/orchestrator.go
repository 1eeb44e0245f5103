package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"bookings/entity"
	"bookings/gateway"
	"bookings/metrics"
)

type TransactionRepository interface {
	Upsert(ctx context.Context, transaction entity.BookingTransaction) error
	Get(ctx context.Context, bookingID string) (entity.BookingTransaction, error)

	// UpdateStatus applies updateFn conditional on the stored transaction
	// still being in the expected status; a lost race returns
	// entity.ErrConflict.
	UpdateStatus(
		ctx context.Context,
		bookingID string,
		expected entity.Status,
		updateFn func(transaction entity.BookingTransaction) (entity.BookingTransaction, error),
	) (entity.BookingTransaction, error)
}

type BookingRecordRepository interface {
	Upsert(ctx context.Context, record entity.BookingRecord) error
}

type PaymentGateway interface {
	CreateIntent(ctx context.Context, request gateway.CreateIntentRequest) (gateway.PaymentIntent, error)
	RetrieveIntent(ctx context.Context, paymentIntentID string) (gateway.PaymentIntent, error)
	Refund(ctx context.Context, request gateway.RefundRequest) error
}

type InventoryProvider interface {
	ConfirmBooking(ctx context.Context, request gateway.ConfirmBookingRequest) (gateway.ProviderConfirmation, error)
}

type AlertSink interface {
	Emit(ctx context.Context, alert entity.Alert) error
}

// Orchestrator drives the booking transaction state machine:
//
//	pending -> payment_processing -> payment_confirmed -> booking_confirmed -> completed
//
// with failure exits to failed and an operator exit to cancelled. Every
// operation re-reads persisted state before acting and persists every
// transition, so retried and concurrent calls converge instead of diverging.
type Orchestrator struct {
	transactions TransactionRepository
	records      BookingRecordRepository
	payments     PaymentGateway
	provider     InventoryProvider
	alerts       AlertSink
}

func NewOrchestrator(
	transactions TransactionRepository,
	records BookingRecordRepository,
	payments PaymentGateway,
	provider InventoryProvider,
	alerts AlertSink,
) *Orchestrator {
	if transactions == nil {
		panic("transactions repository must be set")
	}

	return &Orchestrator{
		transactions: transactions,
		records:      records,
		payments:     payments,
		provider:     provider,
		alerts:       alerts,
	}
}

type CreateBookingRequest struct {
	TotalAmount int64          `json:"total_amount"`
	Currency    string         `json:"currency"`
	BookingData map[string]any `json:"booking_data"`
}

// CreateBooking persists a new transaction in pending. No external side
// effects happen yet; a validation failure persists nothing.
func (o *Orchestrator) CreateBooking(ctx context.Context, request CreateBookingRequest) (entity.BookingTransaction, error) {
	transaction, err := entity.NewBookingTransaction(request.TotalAmount, request.Currency, request.BookingData)
	if err != nil {
		return entity.BookingTransaction{}, err
	}

	if err := o.transactions.Upsert(ctx, transaction); err != nil {
		return entity.BookingTransaction{}, fmt.Errorf("could not persist transaction: %w", err)
	}

	o.upsertRecord(ctx, transaction, entity.BookingRecordPending)

	logrus.WithField("booking_id", transaction.BookingID).Info("booking transaction created")

	return transaction, nil
}

// ProcessPayment initiates payment for a pending transaction. The gateway
// call carries an idempotency key derived from the booking ID, so a retry
// after a crash or timeout returns the same intent instead of charging twice.
func (o *Orchestrator) ProcessPayment(ctx context.Context, bookingID string) (gateway.PaymentIntent, entity.BookingTransaction, error) {
	transaction, err := o.transactions.Get(ctx, bookingID)
	if err != nil {
		return gateway.PaymentIntent{}, entity.BookingTransaction{}, err
	}

	if transaction.Status != entity.StatusPending {
		return gateway.PaymentIntent{}, transaction, fmt.Errorf(
			"%w: cannot process payment from %s", entity.ErrInvalidStateTransition, transaction.Status,
		)
	}

	intent, err := o.payments.CreateIntent(ctx, gateway.CreateIntentRequest{
		BookingID:      transaction.BookingID,
		Amount:         transaction.TotalAmount,
		Currency:       transaction.Currency,
		IdempotencyKey: transaction.PaymentIdempotencyKey(),
	})
	if err != nil {
		// Pre-capture failure: no money moved, so no refund and no alert.
		transaction = o.markFailed(ctx, transaction, fmt.Sprintf("payment initiation failed: %s", err))
		metrics.OperationFailures.WithLabelValues("process_payment").Inc()

		return gateway.PaymentIntent{}, transaction, fmt.Errorf("could not create payment intent: %w", err)
	}

	transaction, err = o.transition(ctx, bookingID, entity.StatusPending, func(t entity.BookingTransaction) (entity.BookingTransaction, error) {
		t.PaymentIntentID = intent.ID
		return t, t.Transition(entity.StatusPaymentProcessing)
	})
	if err != nil {
		return gateway.PaymentIntent{}, transaction, err
	}

	logrus.WithFields(logrus.Fields{
		"booking_id":        bookingID,
		"payment_intent_id": intent.ID,
	}).Info("payment initiated")

	return intent, transaction, nil
}

// ConfirmPayment verifies with the gateway that the intent was actually
// captured; it never trusts a caller-supplied success flag.
func (o *Orchestrator) ConfirmPayment(ctx context.Context, bookingID, paymentIntentID string) (entity.BookingTransaction, error) {
	transaction, err := o.transactions.Get(ctx, bookingID)
	if err != nil {
		return entity.BookingTransaction{}, err
	}

	if transaction.Status != entity.StatusPaymentProcessing {
		return transaction, fmt.Errorf(
			"%w: cannot confirm payment from %s", entity.ErrInvalidStateTransition, transaction.Status,
		)
	}

	if transaction.PaymentIntentID != paymentIntentID {
		return transaction, fmt.Errorf(
			"%w: supplied %s, persisted %s", entity.ErrPaymentIntentMismatch, paymentIntentID, transaction.PaymentIntentID,
		)
	}

	intent, err := o.payments.RetrieveIntent(ctx, paymentIntentID)
	if err != nil {
		// Unknown gateway state: the capture may have happened. Refund by
		// idempotency key so a retry cannot double-refund, and escalate.
		transaction = o.markFailed(ctx, transaction, fmt.Sprintf("payment verification failed: %s", err))
		o.refund(ctx, transaction, "payment verification failed")
		o.emitAlert(ctx, entity.Alert{
			BookingID:            bookingID,
			AlertType:            entity.AlertTypePaymentCaptureSuspect,
			Message:              fmt.Sprintf("could not verify payment intent %s: %s", paymentIntentID, err),
			Severity:             entity.AlertSeverityWarning,
			RequiresManualAction: true,
		})
		metrics.OperationFailures.WithLabelValues("confirm_payment").Inc()

		return transaction, fmt.Errorf("could not verify payment intent: %w", err)
	}

	if intent.Status != gateway.PaymentIntentSucceeded {
		transaction = o.markFailed(ctx, transaction, fmt.Sprintf("payment not captured, gateway reports %q", intent.Status))
		o.emitAlert(ctx, entity.Alert{
			BookingID:            bookingID,
			AlertType:            entity.AlertTypePaymentCaptureSuspect,
			Message:              fmt.Sprintf("payment intent %s is %q, expected %q", paymentIntentID, intent.Status, gateway.PaymentIntentSucceeded),
			Severity:             entity.AlertSeverityWarning,
			RequiresManualAction: false,
		})
		metrics.OperationFailures.WithLabelValues("confirm_payment").Inc()

		return transaction, fmt.Errorf("payment intent %s not captured: gateway reports %q", paymentIntentID, intent.Status)
	}

	transaction, err = o.transition(ctx, bookingID, entity.StatusPaymentProcessing, func(t entity.BookingTransaction) (entity.BookingTransaction, error) {
		return t, t.Transition(entity.StatusPaymentConfirmed)
	})
	if err != nil {
		return transaction, err
	}

	logrus.WithField("booking_id", bookingID).Info("payment confirmed")

	return transaction, nil
}

// ConfirmWithProvider records the inventory provider's confirmation. When
// confirmation is nil the orchestrator calls the provider itself. This is
// the critical-failure boundary of the saga: any failure past this point
// means money has been captured with no service rendered, so it always
// refunds and raises a critical alert.
func (o *Orchestrator) ConfirmWithProvider(ctx context.Context, bookingID string, confirmation *gateway.ProviderConfirmation) (entity.BookingTransaction, error) {
	transaction, err := o.transactions.Get(ctx, bookingID)
	if err != nil {
		return entity.BookingTransaction{}, err
	}

	if transaction.Status != entity.StatusPaymentConfirmed {
		return transaction, fmt.Errorf(
			"%w: cannot confirm with provider from %s", entity.ErrInvalidStateTransition, transaction.Status,
		)
	}

	if confirmation == nil {
		providerConfirmation, err := o.provider.ConfirmBooking(ctx, gateway.ConfirmBookingRequest{
			BookingID:       transaction.BookingID,
			PaymentIntentID: transaction.PaymentIntentID,
			BookingData:     transaction.BookingData,
		})
		if err != nil {
			transaction = o.compensateCapturedPayment(ctx, transaction, fmt.Sprintf("provider confirmation failed: %s", err))
			metrics.OperationFailures.WithLabelValues("confirm_with_provider").Inc()

			return transaction, fmt.Errorf("could not confirm booking with provider: %w", err)
		}
		confirmation = &providerConfirmation
	}

	updated, err := o.transition(ctx, bookingID, entity.StatusPaymentConfirmed, func(t entity.BookingTransaction) (entity.BookingTransaction, error) {
		t.ProviderBookingID = confirmation.ConfirmationID
		return t, t.Transition(entity.StatusBookingConfirmed)
	})
	if err != nil {
		// A retried call may have lost the race to a call that already
		// recorded this confirmation; that is convergence, not failure.
		if current, getErr := o.transactions.Get(ctx, bookingID); getErr == nil &&
			current.Status == entity.StatusBookingConfirmed &&
			current.ProviderBookingID == confirmation.ConfirmationID {
			return current, nil
		}

		// The provider holds a confirmed booking we failed to record. This
		// must never pass silently.
		transaction = o.compensateCapturedPayment(ctx, transaction, fmt.Sprintf("could not record provider confirmation %s: %s", confirmation.ConfirmationID, err))
		metrics.OperationFailures.WithLabelValues("confirm_with_provider").Inc()

		return transaction, fmt.Errorf("could not record provider confirmation: %w", err)
	}
	transaction = updated

	o.upsertRecord(ctx, transaction, entity.BookingRecordConfirmed)

	logrus.WithFields(logrus.Fields{
		"booking_id":          bookingID,
		"provider_booking_id": confirmation.ConfirmationID,
	}).Info("booking confirmed with provider")

	return transaction, nil
}

// CompleteBooking finalizes a provider-confirmed booking.
func (o *Orchestrator) CompleteBooking(ctx context.Context, bookingID string) (entity.BookingTransaction, error) {
	transaction, err := o.transition(ctx, bookingID, entity.StatusBookingConfirmed, func(t entity.BookingTransaction) (entity.BookingTransaction, error) {
		return t, t.Transition(entity.StatusCompleted)
	})
	if err != nil {
		return transaction, err
	}

	logrus.WithField("booking_id", bookingID).Info("booking completed")

	return transaction, nil
}

// RollbackTransaction cancels a booking from any non-terminal state,
// refunding captured payment and escalating anything that needs a human.
// It is idempotent: rolling back an already cancelled transaction only
// re-emits the provider-cancellation alert.
func (o *Orchestrator) RollbackTransaction(ctx context.Context, bookingID, reason string) (entity.BookingTransaction, error) {
	transaction, err := o.transactions.Get(ctx, bookingID)
	if err != nil {
		return entity.BookingTransaction{}, err
	}

	if transaction.Status == entity.StatusCancelled {
		o.requestProviderCancellation(ctx, transaction)
		return transaction, nil
	}

	if transaction.Status.IsTerminal() {
		return transaction, fmt.Errorf(
			"%w: cannot roll back from %s", entity.ErrInvalidStateTransition, transaction.Status,
		)
	}

	// Refund before the final transition: the manual-action alert raised on
	// a refund failure is the fallback of last resort and must not be lost
	// to a partially applied rollback.
	if transaction.PaymentIntentID != "" && transaction.Status.ReachedPaymentConfirmed() {
		o.refund(ctx, transaction, reason)
	}

	o.requestProviderCancellation(ctx, transaction)

	from := transaction.Status
	transaction, err = o.transition(ctx, bookingID, from, func(t entity.BookingTransaction) (entity.BookingTransaction, error) {
		t.FailureReason = reason
		return t, t.Transition(entity.StatusCancelled)
	})
	if err != nil {
		if errors.Is(err, entity.ErrInvalidStateTransition) {
			// A concurrent rollback won the race.
			if current, getErr := o.transactions.Get(ctx, bookingID); getErr == nil && current.Status == entity.StatusCancelled {
				return current, nil
			}
		}
		return transaction, fmt.Errorf("could not cancel transaction: %w", err)
	}

	o.upsertRecord(ctx, transaction, entity.BookingRecordCancelled)

	logrus.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"reason":     reason,
	}).Info("booking transaction rolled back")

	return transaction, nil
}

// transition runs the conditional status update and maps a lost race to
// ErrInvalidStateTransition, which is what the second of two concurrent
// writers should observe.
func (o *Orchestrator) transition(
	ctx context.Context,
	bookingID string,
	expected entity.Status,
	updateFn func(transaction entity.BookingTransaction) (entity.BookingTransaction, error),
) (entity.BookingTransaction, error) {
	transaction, err := o.transactions.UpdateStatus(ctx, bookingID, expected, updateFn)
	if err != nil {
		if errors.Is(err, entity.ErrConflict) {
			return transaction, fmt.Errorf("%w: %s", entity.ErrInvalidStateTransition, err)
		}
		return transaction, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(expected), string(transaction.Status)).Inc()

	return transaction, nil
}

// markFailed force-writes the terminal failure state. It deliberately does
// not use the conditional update: recording the failure is more important
// than losing a race with a writer that is itself about to fail.
func (o *Orchestrator) markFailed(ctx context.Context, transaction entity.BookingTransaction, reason string) entity.BookingTransaction {
	from := transaction.Status

	transaction.FailureReason = reason
	transaction.RollbackRequired = true
	transaction.Status = entity.StatusFailed
	transaction.UpdatedAt = time.Now().UTC()

	bestEffort(ctx, transaction.BookingID, "persist_failure", func(ctx context.Context) error {
		return o.transactions.Upsert(ctx, transaction)
	})

	metrics.TransitionsTotal.WithLabelValues(string(from), string(entity.StatusFailed)).Inc()

	logrus.WithFields(logrus.Fields{
		"booking_id": transaction.BookingID,
		"reason":     reason,
	}).Error("booking transaction failed")

	return transaction
}

// compensateCapturedPayment handles the captured-money-without-service case:
// mark failed, raise a critical alert unconditionally, attempt the refund.
func (o *Orchestrator) compensateCapturedPayment(ctx context.Context, transaction entity.BookingTransaction, reason string) entity.BookingTransaction {
	transaction = o.markFailed(ctx, transaction, reason)

	o.emitAlert(ctx, entity.Alert{
		BookingID:            transaction.BookingID,
		AlertType:            entity.AlertTypeProviderConfirmationFailed,
		Message:              reason,
		Severity:             entity.AlertSeverityCritical,
		RequiresManualAction: true,
	})

	o.refund(ctx, transaction, reason)

	return transaction
}

// refund issues a best-effort refund keyed by the booking's refund
// idempotency key. A refund failure raises a manual-action alert instead of
// propagating.
func (o *Orchestrator) refund(ctx context.Context, transaction entity.BookingTransaction, reason string) {
	if transaction.PaymentIntentID == "" {
		return
	}

	metrics.RefundAttempts.Inc()

	err := o.payments.Refund(ctx, gateway.RefundRequest{
		PaymentIntentID: transaction.PaymentIntentID,
		Reason:          reason,
		IdempotencyKey:  transaction.RefundIdempotencyKey(),
	})
	if err == nil {
		logrus.WithFields(logrus.Fields{
			"booking_id":        transaction.BookingID,
			"payment_intent_id": transaction.PaymentIntentID,
		}).Info("refund issued")
		return
	}

	logrus.WithField("booking_id", transaction.BookingID).WithError(err).Error("refund failed")

	o.emitAlert(ctx, entity.Alert{
		BookingID:            transaction.BookingID,
		AlertType:            entity.AlertTypeRefundFailed,
		Message:              fmt.Sprintf("refund of %s failed: %s", transaction.PaymentIntentID, err),
		Severity:             entity.AlertSeverityCritical,
		RequiresManualAction: true,
	})
}

// requestProviderCancellation escalates provider-side cancellation to a
// human. There is no provider cancellation API to automate.
func (o *Orchestrator) requestProviderCancellation(ctx context.Context, transaction entity.BookingTransaction) {
	if transaction.ProviderBookingID == "" {
		return
	}

	o.emitAlert(ctx, entity.Alert{
		BookingID:            transaction.BookingID,
		AlertType:            entity.AlertTypeProviderCancellationNeeded,
		Message:              fmt.Sprintf("provider booking %s requires manual cancellation", transaction.ProviderBookingID),
		Severity:             entity.AlertSeverityCritical,
		RequiresManualAction: true,
	})
}

func (o *Orchestrator) emitAlert(ctx context.Context, alert entity.Alert) {
	metrics.AlertsEmitted.WithLabelValues(string(alert.Severity)).Inc()

	bestEffort(ctx, alert.BookingID, "emit_alert", func(ctx context.Context) error {
		return o.alerts.Emit(ctx, alert)
	})
}

func (o *Orchestrator) upsertRecord(ctx context.Context, transaction entity.BookingTransaction, status string) {
	if o.records == nil {
		return
	}

	bestEffort(ctx, transaction.BookingID, "upsert_booking_record", func(ctx context.Context) error {
		return o.records.Upsert(ctx, entity.BookingRecord{
			BookingID:   transaction.BookingID,
			Status:      status,
			TotalAmount: transaction.TotalAmount,
			Currency:    transaction.Currency,
			UpdatedAt:   time.Now().UTC(),
		})
	})
}
