package bookings_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookings/db"
	"bookings/db/bookings"
	"bookings/entity"
)

type repository interface {
	Upsert(ctx context.Context, record entity.BookingRecord) error
	Get(ctx context.Context, bookingID string) (entity.BookingRecord, error)
}

func TestRepository(t *testing.T) {
	repositories := map[string]repository{
		"memory": bookings.NewInMemoryRepository(),
	}
	if testDb := db.GetDbOrNil(t); testDb != nil {
		repositories["postgres"] = bookings.NewPostgresRepository(testDb)
	}

	for name, repo := range repositories {
		repo := repo

		t.Run(name, func(t *testing.T) {
			record := entity.BookingRecord{
				BookingID:   uuid.NewString(),
				Status:      entity.BookingRecordPending,
				TotalAmount: 500,
				Currency:    "USD",
				UpdatedAt:   time.Now().UTC().Truncate(time.Microsecond),
			}
			require.NoError(t, repo.Upsert(context.Background(), record))

			got, err := repo.Get(context.Background(), record.BookingID)
			require.NoError(t, err)
			assert.Equal(t, entity.BookingRecordPending, got.Status)
			assert.EqualValues(t, 500, got.TotalAmount)

			record.Status = entity.BookingRecordConfirmed
			record.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
			require.NoError(t, repo.Upsert(context.Background(), record))

			got, err = repo.Get(context.Background(), record.BookingID)
			require.NoError(t, err)
			assert.Equal(t, entity.BookingRecordConfirmed, got.Status)

			_, err = repo.Get(context.Background(), uuid.NewString())
			assert.ErrorIs(t, err, entity.ErrNotFound)
		})
	}
}
