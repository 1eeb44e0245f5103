package transactions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"bookings/entity"
)

// InMemoryRepository implements the same contract as PostgresRepository,
// for tests and local runs without Postgres.
type InMemoryRepository struct {
	lock         sync.Mutex
	transactions map[string]entity.BookingTransaction
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		transactions: make(map[string]entity.BookingTransaction),
	}
}

func (r *InMemoryRepository) Upsert(ctx context.Context, transaction entity.BookingTransaction) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if existing, ok := r.transactions[transaction.BookingID]; ok && existing.UpdatedAt.After(transaction.UpdatedAt) {
		return nil
	}

	r.transactions[transaction.BookingID] = clone(transaction)

	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, bookingID string) (entity.BookingTransaction, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	transaction, ok := r.transactions[bookingID]
	if !ok {
		return entity.BookingTransaction{}, entity.ErrNotFound
	}

	return clone(transaction), nil
}

func (r *InMemoryRepository) UpdateStatus(
	ctx context.Context,
	bookingID string,
	expected entity.Status,
	updateFn func(transaction entity.BookingTransaction) (entity.BookingTransaction, error),
) (entity.BookingTransaction, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	transaction, ok := r.transactions[bookingID]
	if !ok {
		return entity.BookingTransaction{}, entity.ErrNotFound
	}

	if transaction.Status != expected {
		return entity.BookingTransaction{}, fmt.Errorf("%w: transaction is %s, expected %s", entity.ErrConflict, transaction.Status, expected)
	}

	updated, err := updateFn(clone(transaction))
	if err != nil {
		return entity.BookingTransaction{}, err
	}

	r.transactions[bookingID] = clone(updated)

	return updated, nil
}

func (r *InMemoryRepository) ListNonTerminalOlderThan(ctx context.Context, cutoff time.Time) ([]entity.BookingTransaction, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var transactions []entity.BookingTransaction
	for _, transaction := range r.transactions {
		if transaction.Status.IsTerminal() {
			continue
		}
		if !transaction.UpdatedAt.Before(cutoff) {
			continue
		}

		transactions = append(transactions, clone(transaction))
	}

	return transactions, nil
}

// clone deep-copies through JSON so callers cannot mutate stored state via
// the shared BookingData map.
func clone(transaction entity.BookingTransaction) entity.BookingTransaction {
	payload, err := json.Marshal(transaction)
	if err != nil {
		panic(err)
	}

	var copied entity.BookingTransaction
	if err := json.Unmarshal(payload, &copied); err != nil {
		panic(err)
	}

	return copied
}
