package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"bookings/entity"
)

// Topic is the stream ops tooling consumes for conditions that need a human.
const Topic = "booking-alerts"

// Emitter publishes alerts to the alert stream. Alerts are append-only and
// best-effort: callers must not let an emit failure abort the saga.
type Emitter struct {
	publisher message.Publisher
}

func NewEmitter(publisher message.Publisher) Emitter {
	return Emitter{publisher: publisher}
}

func (e Emitter) Emit(ctx context.Context, alert entity.Alert) error {
	if alert.EmittedAt.IsZero() {
		alert.EmittedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("could not marshal alert: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("booking_id", alert.BookingID)
	msg.Metadata.Set("severity", string(alert.Severity))

	if err := e.publisher.Publish(Topic, msg); err != nil {
		return fmt.Errorf("could not publish alert: %w", err)
	}

	return nil
}
