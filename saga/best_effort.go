package saga

import (
	"context"

	"github.com/sirupsen/logrus"

	"bookings/metrics"
)

// bestEffort runs a side effect that must not be able to abort the saga
// (alert emission, projection writes, compensation refunds). Failures are
// logged and counted, never returned.
func bestEffort(ctx context.Context, bookingID, operation string, fn func(ctx context.Context) error) {
	if err := fn(ctx); err != nil {
		logrus.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"operation":  operation,
		}).WithError(err).Error("best-effort side effect failed")

		metrics.BestEffortFailures.WithLabelValues(operation).Inc()
	}
}
