// Package repository persists appointments and the weekly availability
// template. A partial unique index on the scheduled instant is the
// double-booking guard; violation surfaces as a conflict error.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic_engage_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no appointment matches the query.
var ErrNotFound = errors.New("appointment not found")

// Status is the appointment lifecycle.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// Appointment is a booked session.
type Appointment struct {
	ID          uuid.UUID
	ContactID   uuid.UUID
	ScheduledAt time.Time
	Timezone    string
	Status      Status
	CancelToken uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Window is one wall-clock availability window, minutes from local midnight.
type Window struct {
	StartMinutes int
	EndMinutes   int
}

// WeeklyTemplate maps a weekday to its availability windows.
type WeeklyTemplate map[time.Weekday][]Window

const appointmentColumns = `id, contact_id, scheduled_at, timezone, status, cancel_token, created_at, updated_at`

// Repository provides appointment persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a scheduling repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.ContactID, &a.ScheduledAt, &a.Timezone, &a.Status,
		&a.CancelToken, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan appointment: %w", err)
	}
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create books an appointment. The slot unique index turns a concurrent
// booking of the same instant into a conflict instead of a double booking.
func (r *Repository) Create(ctx context.Context, a Appointment) (*Appointment, error) {
	query := `
		INSERT INTO appointments (id, contact_id, scheduled_at, timezone, status, cancel_token)
		VALUES ($1, $2, $3, $4, 'SCHEDULED', $5)
		RETURNING ` + appointmentColumns

	saved, err := scanAppointment(r.pool.QueryRow(ctx, query,
		a.ID, a.ContactID, a.ScheduledAt, a.Timezone, a.CancelToken))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("slot is no longer available")
		}
		return nil, err
	}
	return saved, nil
}

// GetByID returns a single appointment.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	return scanAppointment(r.pool.QueryRow(ctx, query, id))
}

// GetScheduledByContact returns the contact's current scheduled appointment.
func (r *Repository) GetScheduledByContact(ctx context.Context, contactID uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE contact_id = $1 AND status = 'SCHEDULED'
		ORDER BY scheduled_at ASC
		LIMIT 1`
	return scanAppointment(r.pool.QueryRow(ctx, query, contactID))
}

// Move changes a scheduled appointment's instant; the slot index still guards
// against landing on a taken slot.
func (r *Repository) Move(ctx context.Context, id uuid.UUID, newAt time.Time) (*Appointment, error) {
	query := `
		UPDATE appointments
		SET scheduled_at = $2, updated_at = now()
		WHERE id = $1 AND status = 'SCHEDULED'
		RETURNING ` + appointmentColumns

	saved, err := scanAppointment(r.pool.QueryRow(ctx, query, id, newAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("slot is no longer available")
		}
		return nil, err
	}
	return saved, nil
}

// SetStatus moves an appointment to a terminal status.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE appointments SET status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBookedBetween returns the scheduled instants of all non-cancelled
// appointments in [from, to).
func (r *Repository) ListBookedBetween(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT scheduled_at FROM appointments
		WHERE status != 'CANCELLED' AND scheduled_at >= $1 AND scheduled_at < $2
		ORDER BY scheduled_at ASC`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list booked slots: %w", err)
	}
	defer rows.Close()

	var instants []time.Time
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, fmt.Errorf("failed to scan booked slot: %w", err)
		}
		instants = append(instants, at)
	}
	return instants, rows.Err()
}

// LoadWeeklyTemplate reads the clinic's recurring availability windows.
func (r *Repository) LoadWeeklyTemplate(ctx context.Context) (WeeklyTemplate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT weekday, start_minutes, end_minutes FROM availability_rules ORDER BY weekday, start_minutes`)
	if err != nil {
		return nil, fmt.Errorf("failed to load availability template: %w", err)
	}
	defer rows.Close()

	template := make(WeeklyTemplate)
	for rows.Next() {
		var weekday, start, end int
		if err := rows.Scan(&weekday, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan availability rule: %w", err)
		}
		day := time.Weekday(weekday)
		template[day] = append(template[day], Window{StartMinutes: start, EndMinutes: end})
	}
	return template, rows.Err()
}

// BlockedDate is a date-specific override closing the calendar for one day.
type BlockedDate struct {
	Day       time.Time `json:"day"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListBlockedDates returns all upcoming blocked dates.
func (r *Repository) ListBlockedDates(ctx context.Context, from time.Time) ([]BlockedDate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT day, reason, created_at FROM blocked_dates
		WHERE day >= $1
		ORDER BY day ASC`,
		from)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocked dates: %w", err)
	}
	defer rows.Close()

	var dates []BlockedDate
	for rows.Next() {
		var d BlockedDate
		if err := rows.Scan(&d.Day, &d.Reason, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan blocked date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// IsDateBlocked reports whether a date-specific override closes the given day.
func (r *Repository) IsDateBlocked(ctx context.Context, day time.Time) (bool, error) {
	var blocked bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blocked_dates WHERE day = $1)`, day).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("failed to check blocked date: %w", err)
	}
	return blocked, nil
}

// BlockDate closes a day. Blocking an already-blocked day updates the reason.
func (r *Repository) BlockDate(ctx context.Context, day time.Time, reason string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO blocked_dates (day, reason)
		VALUES ($1, $2)
		ON CONFLICT (day) DO UPDATE SET reason = EXCLUDED.reason`,
		day, reason)
	if err != nil {
		return fmt.Errorf("failed to block date: %w", err)
	}
	return nil
}

// UnblockDate reopens a previously blocked day.
func (r *Repository) UnblockDate(ctx context.Context, day time.Time) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blocked_dates WHERE day = $1`, day)
	if err != nil {
		return fmt.Errorf("failed to unblock date: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceWeeklyTemplate swaps the availability template atomically.
func (r *Repository) ReplaceWeeklyTemplate(ctx context.Context, template WeeklyTemplate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM availability_rules`); err != nil {
		return fmt.Errorf("failed to clear availability template: %w", err)
	}
	for day, windows := range template {
		for _, w := range windows {
			_, err := tx.Exec(ctx,
				`INSERT INTO availability_rules (weekday, start_minutes, end_minutes) VALUES ($1, $2, $3)`,
				int(day), w.StartMinutes, w.EndMinutes)
			if err != nil {
				return fmt.Errorf("failed to insert availability rule: %w", err)
			}
		}
	}
	return tx.Commit(ctx)
}
