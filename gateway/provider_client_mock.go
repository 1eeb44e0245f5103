package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/lithammer/shortuuid/v3"
)

type ProviderMock struct {
	mock sync.Mutex

	Confirmations map[string]ProviderConfirmation

	FailConfirm bool
}

func (c *ProviderMock) ConfirmBooking(ctx context.Context, request ConfirmBookingRequest) (ProviderConfirmation, error) {
	c.mock.Lock()
	defer c.mock.Unlock()

	if c.FailConfirm {
		return ProviderConfirmation{}, fmt.Errorf("provider rejected booking")
	}

	if c.Confirmations == nil {
		c.Confirmations = make(map[string]ProviderConfirmation)
	}

	if confirmation, ok := c.Confirmations[request.BookingID]; ok {
		return confirmation, nil
	}

	confirmation := ProviderConfirmation{ConfirmationID: "prov_" + shortuuid.New()}
	c.Confirmations[request.BookingID] = confirmation

	return confirmation, nil
}
