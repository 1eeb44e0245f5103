package alerts

import (
	"context"
	"fmt"
	"sync"

	"bookings/entity"
)

type EmitterMock struct {
	mock sync.Mutex

	Alerts []entity.Alert

	FailEmit bool
}

func (e *EmitterMock) Emit(ctx context.Context, alert entity.Alert) error {
	e.mock.Lock()
	defer e.mock.Unlock()

	if e.FailEmit {
		return fmt.Errorf("alert sink unavailable")
	}

	e.Alerts = append(e.Alerts, alert)

	return nil
}

func (e *EmitterMock) BySeverity(severity entity.AlertSeverity) []entity.Alert {
	e.mock.Lock()
	defer e.mock.Unlock()

	var out []entity.Alert
	for _, alert := range e.Alerts {
		if alert.Severity == severity {
			out = append(out, alert)
		}
	}

	return out
}

func (e *EmitterMock) ByType(alertType string) []entity.Alert {
	e.mock.Lock()
	defer e.mock.Unlock()

	var out []entity.Alert
	for _, alert := range e.Alerts {
		if alert.AlertType == alertType {
			out = append(out, alert)
		}
	}

	return out
}
