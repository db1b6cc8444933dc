package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxDB is the subset of pgxpool.Pool the store needs. Tests substitute a
// pgxmock pool.
type pgxDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore keeps the reservation set in a single table. Save replaces
// the full set inside one transaction, preserving the same all-or-nothing
// discipline as the file store.
type PostgresStore struct {
	db pgxDB
}

// NewPostgresStore creates a Postgres-backed reservation store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("ledger: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

// newPostgresStoreWithDB allows injecting mocks for tests.
func newPostgresStoreWithDB(db pgxDB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectReservations = `SELECT booking_id, confirmation_code, appointment_type, date, start_time, end_time,
	patient_name, patient_email, patient_phone, reason, status, reschedule_history,
	created_at, cancelled_at, cancel_reason
FROM reservations ORDER BY booking_id`

const insertReservation = `INSERT INTO reservations (booking_id, confirmation_code, appointment_type, date, start_time, end_time,
	patient_name, patient_email, patient_phone, reason, status, reschedule_history,
	created_at, cancelled_at, cancel_reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

// Load reads the full reservation set.
func (s *PostgresStore) Load(ctx context.Context) ([]Reservation, error) {
	rows, err := s.db.Query(ctx, selectReservations)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to query reservations: %w", err)
	}
	defer rows.Close()

	out := []Reservation{}
	for rows.Next() {
		var (
			r           Reservation
			history     []byte
			cancelledAt *time.Time
		)
		if err := rows.Scan(
			&r.BookingID, &r.ConfirmationCode, &r.AppointmentType, &r.Date, &r.StartTime, &r.EndTime,
			&r.Patient.Name, &r.Patient.Email, &r.Patient.Phone, &r.Reason, &r.Status, &history,
			&r.CreatedAt, &cancelledAt, &r.CancelReason,
		); err != nil {
			return nil, fmt.Errorf("ledger: failed to scan reservation: %w", err)
		}
		if len(history) > 0 {
			if err := json.Unmarshal(history, &r.RescheduleHistory); err != nil {
				return nil, fmt.Errorf("ledger: bad reschedule history for %s: %w", r.BookingID, err)
			}
		}
		r.CancelledAt = cancelledAt
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: reservation rows failed: %w", err)
	}
	return out, nil
}

// Save atomically replaces the full reservation set.
func (s *PostgresStore) Save(ctx context.Context, reservations []Reservation) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ledger: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DELETE FROM reservations"); err != nil {
		return fmt.Errorf("ledger: failed to clear reservations: %w", err)
	}

	for i := range reservations {
		r := &reservations[i]
		history, err := json.Marshal(r.RescheduleHistory)
		if err != nil {
			return fmt.Errorf("ledger: failed to encode history for %s: %w", r.BookingID, err)
		}
		if _, err := tx.Exec(ctx, insertReservation,
			r.BookingID, r.ConfirmationCode, string(r.AppointmentType), r.Date, r.StartTime, r.EndTime,
			r.Patient.Name, r.Patient.Email, r.Patient.Phone, r.Reason, string(r.Status), history,
			r.CreatedAt, r.CancelledAt, r.CancelReason,
		); err != nil {
			return fmt.Errorf("ledger: failed to insert %s: %w", r.BookingID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledger: failed to commit reservations: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
