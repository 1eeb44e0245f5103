package bookings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"bookings/entity"
)

// PostgresRepository stores the externally visible booking projection.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, record entity.BookingRecord) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO bookings (booking_id, status, total_amount, currency, updated_at)
		VALUES (:booking_id, :status, :total_amount, :currency, :updated_at)
		ON CONFLICT (booking_id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`, record)
	if err != nil {
		return fmt.Errorf("could not upsert booking record: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, bookingID string) (entity.BookingRecord, error) {
	var record entity.BookingRecord
	err := r.db.GetContext(ctx, &record, `
		SELECT booking_id, status, total_amount, currency, updated_at
		FROM bookings
		WHERE booking_id = $1
	`, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.BookingRecord{}, entity.ErrNotFound
		}
		return entity.BookingRecord{}, fmt.Errorf("could not get booking record: %w", err)
	}

	return record, nil
}
