package entity

import "time"

type AlertSeverity string

const (
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

const (
	AlertTypeProviderConfirmationFailed = "provider_confirmation_failed"
	AlertTypeRefundFailed               = "refund_failed"
	AlertTypeProviderCancellationNeeded = "provider_cancellation_needed"
	AlertTypePaymentCaptureSuspect      = "payment_capture_suspect"
	AlertTypeTransactionStuck           = "transaction_stuck"
)

// Alert is append-only: emitted once, never mutated by the saga.
type Alert struct {
	BookingID            string        `json:"booking_id"`
	AlertType            string        `json:"alert_type"`
	Message              string        `json:"message"`
	Severity             AlertSeverity `json:"severity"`
	RequiresManualAction bool          `json:"requires_manual_action"`
	EmittedAt            time.Time     `json:"emitted_at"`
}
