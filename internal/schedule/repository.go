package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads the business schedule configuration.
type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	if db == nil {
		panic("schedule: db required")
	}
	return &Repository{db: db}
}

// WeeklyHours returns the recurring window for one weekday, or nil when the
// business is closed that day.
func (r *Repository) WeeklyHours(ctx context.Context, businessID uuid.UUID, weekday time.Weekday) (*BusinessHours, error) {
	query := `
		SELECT business_id, weekday, open_minute, close_minute
		FROM business_hours
		WHERE business_id = $1 AND weekday = $2
	`
	var h BusinessHours
	var wd int
	if err := r.db.QueryRow(ctx, query, businessID, int(weekday)).Scan(&h.BusinessID, &wd, &h.OpenMinute, &h.CloseMinute); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("schedule: select weekly hours: %w", err)
	}
	h.Weekday = time.Weekday(wd)
	return &h, nil
}

// ExceptionFor returns the date-specific override, or nil when none exists.
func (r *Repository) ExceptionFor(ctx context.Context, businessID uuid.UUID, date time.Time) (*Exception, error) {
	// Closed-day rows carry NULL windows; coalesce so the scan into plain
	// ints never fails. The engine ignores the window when closed is set.
	query := `
		SELECT business_id, date, closed, COALESCE(open_minute, 0), COALESCE(close_minute, 0)
		FROM schedule_exceptions
		WHERE business_id = $1 AND date = $2
	`
	var e Exception
	if err := r.db.QueryRow(ctx, query, businessID, date).Scan(&e.BusinessID, &e.Date, &e.Closed, &e.OpenMinute, &e.CloseMinute); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("schedule: select exception: %w", err)
	}
	return &e, nil
}
