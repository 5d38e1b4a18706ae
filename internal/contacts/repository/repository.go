// Package repository provides data access for contacts.
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

// ErrNotFound is returned when a contact does not exist.
var ErrNotFound = errors.New("contact not found")

// Status is the lifecycle status of a contact.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusProspect Status = "PROSPECT"
	StatusClient   Status = "CLIENT"
)

// AppointmentStatus tracks the contact's single non-terminal appointment reference.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "SCHEDULED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
)

// Contact is a person the clinic communicates with over SMS.
type Contact struct {
	ID                uuid.UUID
	Phone             string
	Name              string
	Email             *string
	Status            Status
	AppointmentStatus *AppointmentStatus
	AppointmentAt     *time.Time
	MessageCount      int
	LastMessageAt     *time.Time
	Tags              []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const contactColumns = `id, phone, name, email, status, appointment_status, appointment_at,
	message_count, last_message_at, tags, created_at, updated_at`

// Repository provides contact persistence over pgx.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a contact repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanContact(row pgx.Row) (*Contact, error) {
	var c Contact
	err := row.Scan(
		&c.ID,
		&c.Phone,
		&c.Name,
		&c.Email,
		&c.Status,
		&c.AppointmentStatus,
		&c.AppointmentAt,
		&c.MessageCount,
		&c.LastMessageAt,
		&c.Tags,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan contact: %w", err)
	}
	return &c, nil
}

// Create inserts a new contact. The phone column carries a unique constraint;
// a duplicate surfaces as a conflict error.
func (r *Repository) Create(ctx context.Context, contact Contact) (*Contact, error) {
	query := `
		INSERT INTO contacts (id, phone, name, email, status, tags)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + contactColumns

	saved, err := scanContact(r.pool.QueryRow(ctx, query,
		contact.ID,
		contact.Phone,
		contact.Name,
		contact.Email,
		contact.Status,
		contact.Tags,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperr.Conflict("contact with this phone number already exists")
		}
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	return saved, nil
}

// GetByID returns a contact by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	return scanContact(r.pool.QueryRow(ctx, query, id))
}

// GetByPhone returns a contact by its E.164 phone number.
func (r *Repository) GetByPhone(ctx context.Context, phone string) (*Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE phone = $1`
	return scanContact(r.pool.QueryRow(ctx, query, phone))
}

// List returns contacts ordered by most recent message activity.
func (r *Repository) List(ctx context.Context, status *Status, limit, offset int) ([]Contact, error) {
	baseQuery := `SELECT ` + contactColumns + ` FROM contacts`
	args := []interface{}{}
	if status != nil {
		baseQuery += ` WHERE status = $1`
		args = append(args, *status)
	}
	baseQuery += fmt.Sprintf(` ORDER BY last_message_at DESC NULLS LAST, created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, baseQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	items := make([]Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}
	return items, nil
}

// UpdateStatus changes the contact lifecycle status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE contacts SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update contact status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddTag appends a tag if not already present.
func (r *Repository) AddTag(ctx context.Context, id uuid.UUID, tag string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE contacts
		SET tags = array_append(tags, $2), updated_at = now()
		WHERE id = $1 AND NOT ($2 = ANY(tags))
	`, id, tag)
	if err != nil {
		return fmt.Errorf("failed to add contact tag: %w", err)
	}
	return nil
}

// RecordMessageActivity bumps the message counter and last-message timestamp.
func (r *Repository) RecordMessageActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contacts
		SET message_count = message_count + 1,
		    last_message_at = GREATEST(COALESCE(last_message_at, $2), $2),
		    updated_at = now()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("failed to record message activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAppointment overwrites the contact's appointment reference. A new booking
// replaces the previous scheduled timestamp and status; they never coexist.
func (r *Repository) SetAppointment(ctx context.Context, id uuid.UUID, at *time.Time, status *AppointmentStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contacts
		SET appointment_at = $2, appointment_status = $3, updated_at = now()
		WHERE id = $1
	`, id, at, status)
	if err != nil {
		return fmt.Errorf("failed to set contact appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
