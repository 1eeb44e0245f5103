package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// PaymentMock mimics the gateway's idempotency semantics: the same
// Idempotency-Key always yields the same intent, and refunds are
// deduplicated by key.
type PaymentMock struct {
	mock sync.Mutex

	IntentsByKey   map[string]PaymentIntent
	IntentStatuses map[string]string
	RefundsByKey   map[string]RefundRequest

	FailCreateIntent   bool
	FailRetrieveIntent bool
	FailRefund         bool
}

func (c *PaymentMock) CreateIntent(ctx context.Context, request CreateIntentRequest) (PaymentIntent, error) {
	c.mock.Lock()
	defer c.mock.Unlock()

	if c.FailCreateIntent {
		return PaymentIntent{}, fmt.Errorf("payment gateway unavailable")
	}

	if c.IntentsByKey == nil {
		c.IntentsByKey = make(map[string]PaymentIntent)
	}

	if intent, ok := c.IntentsByKey[request.IdempotencyKey]; ok {
		return intent, nil
	}

	intent := PaymentIntent{
		ID:       "pi_" + uuid.NewString(),
		Status:   PaymentIntentProcessing,
		Amount:   request.Amount,
		Currency: request.Currency,
	}
	c.IntentsByKey[request.IdempotencyKey] = intent

	return intent, nil
}

func (c *PaymentMock) RetrieveIntent(ctx context.Context, paymentIntentID string) (PaymentIntent, error) {
	c.mock.Lock()
	defer c.mock.Unlock()

	if c.FailRetrieveIntent {
		return PaymentIntent{}, fmt.Errorf("payment gateway unavailable")
	}

	for _, intent := range c.IntentsByKey {
		if intent.ID != paymentIntentID {
			continue
		}

		if status, ok := c.IntentStatuses[paymentIntentID]; ok {
			intent.Status = status
		}

		return intent, nil
	}

	return PaymentIntent{}, fmt.Errorf("payment intent %s not found", paymentIntentID)
}

func (c *PaymentMock) Refund(ctx context.Context, request RefundRequest) error {
	c.mock.Lock()
	defer c.mock.Unlock()

	if c.FailRefund {
		return fmt.Errorf("refund rejected")
	}

	if c.RefundsByKey == nil {
		c.RefundsByKey = make(map[string]RefundRequest)
	}

	c.RefundsByKey[request.IdempotencyKey] = request

	return nil
}

// SetIntentStatus overrides the status returned by RetrieveIntent, so tests
// can simulate captures and gateway-side failures.
func (c *PaymentMock) SetIntentStatus(paymentIntentID, status string) {
	c.mock.Lock()
	defer c.mock.Unlock()

	if c.IntentStatuses == nil {
		c.IntentStatuses = make(map[string]string)
	}
	c.IntentStatuses[paymentIntentID] = status
}

func (c *PaymentMock) RefundCount() int {
	c.mock.Lock()
	defer c.mock.Unlock()

	return len(c.RefundsByKey)
}
