package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"studieplan/backend/internal/domain"
)

// TimeblockRepository is the sole authority over timeblock rows and their
// status transitions.
type TimeblockRepository interface {
	// CreateBatch persists candidates as new available timeblocks, one row
	// at a time. It returns the slots actually created; err reports the
	// first per-slot failure. Already-created slots are never rolled back,
	// so callers may receive both a non-empty slice and a non-nil error.
	CreateBatch(ctx context.Context, blocks []domain.Timeblock) ([]domain.Timeblock, error)

	GetByID(ctx context.Context, id uuid.UUID) (domain.Timeblock, error)
	ListByTeacher(ctx context.Context, teacherID string, windowStart, windowEnd time.Time) ([]domain.Timeblock, error)
	ListByClasses(ctx context.Context, classIDs []uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Timeblock, error)

	// FindOverlapping returns the teacher's non-cancelled timeblocks that
	// intersect [start, end) under half-open semantics.
	FindOverlapping(ctx context.Context, teacherID string, start, end time.Time) ([]domain.Timeblock, error)

	// Transition conditionally moves a timeblock from one status to
	// another. It returns ErrConflict when the row's current status is not
	// `from`, which is the single serialization point for reservations.
	Transition(ctx context.Context, id uuid.UUID, from, to domain.TimeblockStatus) error

	Update(ctx context.Context, tb domain.Timeblock) (domain.Timeblock, error)
	SetOutlookEventID(ctx context.Context, id uuid.UUID, eventID string) error

	// CanDelete reports whether the timeblock has neither a reservation nor
	// a retained summary. Deletion of a timeblock that fails this predicate
	// is refused with ErrConflict.
	CanDelete(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, teacherID string, id uuid.UUID) error

	// PurgeExpired removes timeblocks whose end time has passed and which
	// have no reservation and no summary. Safe to run repeatedly.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type ReservationRepository interface {
	Create(ctx context.Context, res domain.Reservation) (domain.Reservation, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	GetByTimeblock(ctx context.Context, timeblockID uuid.UUID) (domain.Reservation, error)
	ListByStudent(ctx context.Context, studentID string) ([]domain.Reservation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
