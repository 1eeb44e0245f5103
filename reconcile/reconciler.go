package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"

	"bookings/entity"
	"bookings/gateway"
)

type TransactionRepository interface {
	ListNonTerminalOlderThan(ctx context.Context, cutoff time.Time) ([]entity.BookingTransaction, error)
}

type PaymentGateway interface {
	RetrieveIntent(ctx context.Context, paymentIntentID string) (gateway.PaymentIntent, error)
}

type Orchestrator interface {
	ConfirmPayment(ctx context.Context, bookingID, paymentIntentID string) (entity.BookingTransaction, error)
	CompleteBooking(ctx context.Context, bookingID string) (entity.BookingTransaction, error)
	RollbackTransaction(ctx context.Context, bookingID, reason string) (entity.BookingTransaction, error)
}

type AlertSink interface {
	Emit(ctx context.Context, alert entity.Alert) error
}

// Reconciler is the crash-recovery sweep: a process that dies between a
// gateway call and the corresponding state write leaves a transaction stuck
// in a non-terminal state. The sweep re-queries the gateway for the
// persisted intent and rolls the transaction forward or back through the
// ordinary orchestrator operations, so recovery inherits their idempotency.
type Reconciler struct {
	transactions TransactionRepository
	payments     PaymentGateway
	orchestrator Orchestrator
	alerts       AlertSink

	interval   time.Duration
	stuckAfter time.Duration
}

func New(
	transactions TransactionRepository,
	payments PaymentGateway,
	orchestrator Orchestrator,
	alerts AlertSink,
	interval time.Duration,
	stuckAfter time.Duration,
) *Reconciler {
	return &Reconciler{
		transactions: transactions,
		payments:     payments,
		orchestrator: orchestrator,
		alerts:       alerts,
		interval:     interval,
		stuckAfter:   stuckAfter,
	}
}

func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				logrus.WithError(err).Error("reconciliation sweep failed")
			}
		}
	}
}

func (r *Reconciler) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.stuckAfter)

	stuck, err := r.transactions.ListNonTerminalOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("could not list stuck transactions: %w", err)
	}

	for _, transaction := range stuck {
		r.reconcile(ctx, transaction)
	}

	return nil
}

func (r *Reconciler) reconcile(ctx context.Context, transaction entity.BookingTransaction) {
	logger := logrus.WithFields(logrus.Fields{
		"booking_id": transaction.BookingID,
		"status":     transaction.Status,
	})
	logger.Warn("reconciling stuck transaction")

	if err := r.alerts.Emit(ctx, entity.Alert{
		BookingID:            transaction.BookingID,
		AlertType:            entity.AlertTypeTransactionStuck,
		Message:              fmt.Sprintf("transaction stuck in %s since %s", transaction.Status, transaction.UpdatedAt.Format(time.RFC3339)),
		Severity:             entity.AlertSeverityWarning,
		RequiresManualAction: false,
	}); err != nil {
		logger.WithError(err).Error("could not emit stuck-transaction alert")
	}

	switch transaction.Status {
	case entity.StatusPending:
		// No external side effect has happened yet.
		r.rollback(ctx, transaction, "stuck in pending past reconciliation deadline")

	case entity.StatusPaymentProcessing:
		intent, err := retry.DoWithData(
			func() (gateway.PaymentIntent, error) {
				return r.payments.RetrieveIntent(ctx, transaction.PaymentIntentID)
			},
			retry.Context(ctx),
			retry.Attempts(3),
			retry.Delay(time.Second),
		)
		if err != nil {
			r.rollback(ctx, transaction, fmt.Sprintf("could not verify stuck payment: %s", err))
			return
		}

		if intent.Status == gateway.PaymentIntentSucceeded {
			if _, err := r.orchestrator.ConfirmPayment(ctx, transaction.BookingID, transaction.PaymentIntentID); err != nil {
				logger.WithError(err).Error("could not roll stuck transaction forward")
			}
			return
		}

		r.rollback(ctx, transaction, fmt.Sprintf("stuck payment is %q at the gateway", intent.Status))

	case entity.StatusPaymentConfirmed:
		// Money captured, no provider confirmation recorded: compensate.
		r.rollback(ctx, transaction, "payment captured but provider confirmation never recorded")

	case entity.StatusBookingConfirmed:
		if _, err := r.orchestrator.CompleteBooking(ctx, transaction.BookingID); err != nil {
			logger.WithError(err).Error("could not finalize stuck transaction")
		}
	}
}

func (r *Reconciler) rollback(ctx context.Context, transaction entity.BookingTransaction, reason string) {
	if _, err := r.orchestrator.RollbackTransaction(ctx, transaction.BookingID, reason); err != nil {
		logrus.WithField("booking_id", transaction.BookingID).WithError(err).Error("could not roll back stuck transaction")
	}
}
