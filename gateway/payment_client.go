package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	PaymentIntentSucceeded  = "succeeded"
	PaymentIntentProcessing = "processing"
	PaymentIntentFailed     = "failed"
)

type PaymentIntent struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type CreateIntentRequest struct {
	BookingID      string
	Amount         int64
	Currency       string
	IdempotencyKey string
}

type RefundRequest struct {
	PaymentIntentID string
	Reason          string
	IdempotencyKey  string
}

// PaymentClient talks to the payment gateway's REST API. All mutating calls
// carry an Idempotency-Key header, so retries (both the client's own and the
// caller's) cannot double-charge or double-refund.
type PaymentClient struct {
	client    *retryablehttp.Client
	baseURL   string
	secretKey string
}

func NewPaymentClient(baseURL, secretKey string, timeout time.Duration) PaymentClient {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.HTTPClient.Timeout = timeout

	return PaymentClient{
		client:    client,
		baseURL:   baseURL,
		secretKey: secretKey,
	}
}

func (c PaymentClient) CreateIntent(ctx context.Context, request CreateIntentRequest) (PaymentIntent, error) {
	body := map[string]any{
		"amount":   request.Amount,
		"currency": request.Currency,
		"metadata": map[string]string{"booking_id": request.BookingID},
	}

	var intent PaymentIntent
	err := c.do(ctx, http.MethodPost, "/v1/payment_intents", request.IdempotencyKey, body, &intent)
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("could not create payment intent: %w", err)
	}

	return intent, nil
}

func (c PaymentClient) RetrieveIntent(ctx context.Context, paymentIntentID string) (PaymentIntent, error) {
	var intent PaymentIntent
	err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+paymentIntentID, "", nil, &intent)
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("could not retrieve payment intent: %w", err)
	}

	return intent, nil
}

func (c PaymentClient) Refund(ctx context.Context, request RefundRequest) error {
	body := map[string]any{
		"payment_intent": request.PaymentIntentID,
		"reason":         request.Reason,
	}

	err := c.do(ctx, http.MethodPost, "/v1/refunds", request.IdempotencyKey, body, nil)
	if err != nil {
		return fmt.Errorf("could not refund payment intent %s: %w", request.PaymentIntentID, err)
	}

	return nil
}

func (c PaymentClient) do(ctx context.Context, method, path, idempotencyKey string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not marshal request body: %w", err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not decode response: %w", err)
	}

	return nil
}
