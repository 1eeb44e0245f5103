package transactions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"bookings/db"
	"bookings/entity"
)

// PostgresRepository is the durable transaction store. Rows hold the full
// transaction as a JSON payload next to indexed status/updated_at columns,
// so the reconciler can query stuck transactions without unmarshalling
// everything.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	if db == nil {
		panic("db must be set")
	}

	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, transaction entity.BookingTransaction) error {
	payload, err := json.Marshal(transaction)
	if err != nil {
		return fmt.Errorf("could not marshal transaction: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO booking_transactions (booking_id, status, updated_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (booking_id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at, payload = EXCLUDED.payload
		WHERE booking_transactions.updated_at <= EXCLUDED.updated_at
	`, transaction.BookingID, transaction.Status, transaction.UpdatedAt, payload)
	if err != nil {
		return fmt.Errorf("could not upsert transaction: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, bookingID string) (entity.BookingTransaction, error) {
	return r.transactionByID(ctx, bookingID, r.db)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (r *PostgresRepository) transactionByID(ctx context.Context, bookingID string, q queryer) (entity.BookingTransaction, error) {
	var payload []byte
	err := q.QueryRowContext(ctx, `
		SELECT payload FROM booking_transactions WHERE booking_id = $1
	`, bookingID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.BookingTransaction{}, entity.ErrNotFound
		}
		return entity.BookingTransaction{}, fmt.Errorf("could not get transaction: %w", err)
	}

	var transaction entity.BookingTransaction
	if err := json.Unmarshal(payload, &transaction); err != nil {
		return entity.BookingTransaction{}, fmt.Errorf("could not unmarshal transaction: %w", err)
	}

	return transaction, nil
}

// UpdateStatus applies updateFn to the stored transaction, conditional on the
// row still being in the expected status. A lost race surfaces as
// entity.ErrConflict, which closes the check-then-write window between two
// concurrent calls for the same booking.
func (r *PostgresRepository) UpdateStatus(
	ctx context.Context,
	bookingID string,
	expected entity.Status,
	updateFn func(transaction entity.BookingTransaction) (entity.BookingTransaction, error),
) (entity.BookingTransaction, error) {
	var updated entity.BookingTransaction

	err := db.UpdateInTx(ctx, r.db, sql.LevelRepeatableRead, func(ctx context.Context, tx *sqlx.Tx) error {
		transaction, err := r.transactionByID(ctx, bookingID, tx)
		if err != nil {
			return err
		}

		if transaction.Status != expected {
			return fmt.Errorf("%w: transaction is %s, expected %s", entity.ErrConflict, transaction.Status, expected)
		}

		updated, err = updateFn(transaction)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("could not marshal transaction: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE booking_transactions
			SET status = $1, updated_at = $2, payload = $3
			WHERE booking_id = $4 AND status = $5
		`, updated.Status, updated.UpdatedAt, payload, bookingID, expected)
		if err != nil {
			return fmt.Errorf("could not update transaction: %w", err)
		}

		rowsAffected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return fmt.Errorf("%w: transaction %s changed concurrently", entity.ErrConflict, bookingID)
		}

		return nil
	})
	if err != nil {
		return entity.BookingTransaction{}, err
	}

	return updated, nil
}

func (r *PostgresRepository) ListNonTerminalOlderThan(ctx context.Context, cutoff time.Time) ([]entity.BookingTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT payload FROM booking_transactions
		WHERE status NOT IN ($1, $2, $3) AND updated_at < $4
		ORDER BY updated_at
	`, entity.StatusCompleted, entity.StatusFailed, entity.StatusCancelled, cutoff)
	if err != nil {
		return nil, fmt.Errorf("could not list stuck transactions: %w", err)
	}
	defer rows.Close()

	var transactions []entity.BookingTransaction
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var transaction entity.BookingTransaction
		if err := json.Unmarshal(payload, &transaction); err != nil {
			return nil, fmt.Errorf("could not unmarshal transaction: %w", err)
		}

		transactions = append(transactions, transaction)
	}

	return transactions, rows.Err()
}
