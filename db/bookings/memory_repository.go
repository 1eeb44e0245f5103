package bookings

import (
	"context"
	"sync"

	"bookings/entity"
)

type InMemoryRepository struct {
	lock    sync.Mutex
	records map[string]entity.BookingRecord
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{records: make(map[string]entity.BookingRecord)}
}

func (r *InMemoryRepository) Upsert(ctx context.Context, record entity.BookingRecord) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.records[record.BookingID] = record

	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, bookingID string) (entity.BookingRecord, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	record, ok := r.records[bookingID]
	if !ok {
		return entity.BookingRecord{}, entity.ErrNotFound
	}

	return record, nil
}
