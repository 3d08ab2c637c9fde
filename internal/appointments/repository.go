package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the appointment or type does not exist.
	ErrNotFound = errors.New("appointments: not found")
	// ErrInvalidTransition indicates a status change from a terminal status.
	ErrInvalidTransition = errors.New("appointments: invalid status transition")
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it for tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists appointments and their types.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("appointments: db required")
	}
	return &Repository{db: db}
}

const apptColumns = `id, business_id, lead_id, assistant_id, type_id, starts_at, subject, modality, status, created_at, updated_at`

// Create inserts a new PENDING appointment and its first history row in one
// transaction.
func (r *Repository) Create(ctx context.Context, appt *Appointment) (*Appointment, error) {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	appt.Status = StatusPending

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin create: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		INSERT INTO appointments (id, business_id, lead_id, assistant_id, type_id, starts_at, subject, modality, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	if err := tx.QueryRow(ctx, query,
		appt.ID,
		appt.BusinessID,
		appt.LeadID,
		appt.AssistantID,
		appt.TypeID,
		appt.StartsAt,
		appt.Subject,
		appt.Modality,
		appt.Status,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt); err != nil {
		return nil, fmt.Errorf("appointments: insert failed: %w", err)
	}

	if err := appendHistory(ctx, tx, appt.ID, "", StatusPending); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit create: %w", err)
	}
	return appt, nil
}

// GetByID loads one appointment.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE id = $1`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return appt, nil
}

// ListFutureByLead returns the lead's upcoming PENDING appointments ordered
// by start instant.
func (r *Repository) ListFutureByLead(ctx context.Context, businessID, leadID uuid.UUID, after time.Time) ([]Appointment, error) {
	query := `
		SELECT ` + apptColumns + `
		FROM appointments
		WHERE business_id = $1 AND lead_id = $2 AND status = $3 AND starts_at > $4
		ORDER BY starts_at
	`
	rows, err := r.db.Query(ctx, query, businessID, leadID, StatusPending, after)
	if err != nil {
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, *appt)
	}
	return out, rows.Err()
}

// UpdateStatus applies one monotonic status transition and records it.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, next Status) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointments: begin status update: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var current Status
	if err := tx.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1 FOR UPDATE`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("appointments: load status: %w", err)
	}
	if !current.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}

	if _, err := tx.Exec(ctx, `UPDATE appointments SET status = $2, updated_at = now() WHERE id = $1`, id, next); err != nil {
		return fmt.Errorf("appointments: update status: %w", err)
	}
	if err := appendHistory(ctx, tx, id, current, next); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointments: commit status update: %w", err)
	}
	return nil
}

// Reschedule atomically marks the original RESCHEDULED and creates its
// PENDING replacement at the new instant, preserving lead, type, subject
// and modality. Single multi-row commit.
func (r *Repository) Reschedule(ctx context.Context, originalID uuid.UUID, newStart time.Time) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin reschedule: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, originalID)
	original, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: load original: %w", err)
	}
	if !original.Status.CanTransitionTo(StatusRescheduled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, original.Status, StatusRescheduled)
	}

	if _, err := tx.Exec(ctx, `UPDATE appointments SET status = $2, updated_at = now() WHERE id = $1`, originalID, StatusRescheduled); err != nil {
		return nil, fmt.Errorf("appointments: mark rescheduled: %w", err)
	}
	if err := appendHistory(ctx, tx, originalID, original.Status, StatusRescheduled); err != nil {
		return nil, err
	}

	replacement := &Appointment{
		ID:          uuid.New(),
		BusinessID:  original.BusinessID,
		LeadID:      original.LeadID,
		AssistantID: original.AssistantID,
		TypeID:      original.TypeID,
		StartsAt:    newStart,
		Subject:     original.Subject,
		Modality:    original.Modality,
		Status:      StatusPending,
	}
	insert := `
		INSERT INTO appointments (id, business_id, lead_id, assistant_id, type_id, starts_at, subject, modality, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	if err := tx.QueryRow(ctx, insert,
		replacement.ID,
		replacement.BusinessID,
		replacement.LeadID,
		replacement.AssistantID,
		replacement.TypeID,
		replacement.StartsAt,
		replacement.Subject,
		replacement.Modality,
		replacement.Status,
	).Scan(&replacement.CreatedAt, &replacement.UpdatedAt); err != nil {
		return nil, fmt.Errorf("appointments: insert replacement: %w", err)
	}
	if err := appendHistory(ctx, tx, replacement.ID, "", StatusPending); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit reschedule: %w", err)
	}
	return replacement, nil
}

// HasDuplicate reports whether the lead already holds a PENDING appointment
// of the same type at the exact instant.
func (r *Repository) HasDuplicate(ctx context.Context, businessID, leadID, typeID uuid.UUID, startsAt time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE business_id = $1 AND lead_id = $2 AND type_id = $3
			  AND starts_at = $4 AND status = $5
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, businessID, leadID, typeID, startsAt, StatusPending).Scan(&exists); err != nil {
		return false, fmt.Errorf("appointments: duplicate check: %w", err)
	}
	return exists, nil
}

// CountOverlapping counts PENDING same-type appointments whose interval
// overlaps [start, end). excludeID may be uuid.Nil; a nil uuid never
// matches a stored row.
func (r *Repository) CountOverlapping(ctx context.Context, businessID, typeID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM appointments a
		JOIN appointment_types t ON t.id = a.type_id
		WHERE a.business_id = $1 AND a.type_id = $2 AND a.status = $3
		  AND a.id <> $4
		  AND a.starts_at < $6
		  AND a.starts_at + make_interval(mins => t.duration_minutes) > $5
	`
	var count int
	if err := r.db.QueryRow(ctx, query, businessID, typeID, StatusPending, excludeID, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("appointments: overlap count: %w", err)
	}
	return count, nil
}

// GetType loads one appointment type.
func (r *Repository) GetType(ctx context.Context, id uuid.UUID) (*AppointmentType, error) {
	query := `
		SELECT id, business_id, name, duration_minutes, concurrency_limit, active, virtual, in_person
		FROM appointment_types WHERE id = $1
	`
	var t AppointmentType
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.BusinessID, &t.Name, &t.DurationMinutes, &t.ConcurrencyLimit, &t.Active, &t.Virtual, &t.InPerson,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: select type: %w", err)
	}
	return &t, nil
}

// ListActiveTypes returns the bookable services for a business.
func (r *Repository) ListActiveTypes(ctx context.Context, businessID uuid.UUID) ([]AppointmentType, error) {
	query := `
		SELECT id, business_id, name, duration_minutes, concurrency_limit, active, virtual, in_person
		FROM appointment_types
		WHERE business_id = $1 AND active
		ORDER BY name
	`
	rows, err := r.db.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("appointments: list types: %w", err)
	}
	defer rows.Close()

	var out []AppointmentType
	for rows.Next() {
		var t AppointmentType
		if err := rows.Scan(&t.ID, &t.BusinessID, &t.Name, &t.DurationMinutes, &t.ConcurrencyLimit, &t.Active, &t.Virtual, &t.InPerson); err != nil {
			return nil, fmt.Errorf("appointments: scan type: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func appendHistory(ctx context.Context, tx pgx.Tx, apptID uuid.UUID, from, to Status) error {
	query := `
		INSERT INTO appointment_status_history (id, appointment_id, old_status, new_status)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(ctx, query, uuid.New(), apptID, string(from), string(to)); err != nil {
		return fmt.Errorf("appointments: append history: %w", err)
	}
	return nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var appt Appointment
	if err := row.Scan(
		&appt.ID,
		&appt.BusinessID,
		&appt.LeadID,
		&appt.AssistantID,
		&appt.TypeID,
		&appt.StartsAt,
		&appt.Subject,
		&appt.Modality,
		&appt.Status,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &appt, nil
}
