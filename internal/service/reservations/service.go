package reservations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"studieplan/backend/internal/calendar"
	"studieplan/backend/internal/domain"
	"studieplan/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

type reservationMirror interface {
	SlotReserved(ctx context.Context, tb domain.Timeblock, className, teacherName, studentID, studentName, studentEmail string) calendar.SyncResult
	SlotReleased(ctx context.Context, tb domain.Timeblock, className string) calendar.SyncResult
}

type Service struct {
	blocks store.TimeblockRepository
	repo   store.ReservationRepository
	mirror reservationMirror
	log    *slog.Logger
	now    func() time.Time
}

func NewService(blocks store.TimeblockRepository, repo store.ReservationRepository, mirror reservationMirror, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		blocks: blocks,
		repo:   repo,
		mirror: mirror,
		log:    log.With(slog.String("component", "reservations")),
		now:    time.Now,
	}
}

type ReserveInput struct {
	TimeblockID uuid.UUID
	StudentID   string

	// Display fields for the mirrored calendar events, resolved by the
	// caller from its user and class records.
	StudentName  string
	StudentEmail string
	TeacherName  string
	ClassName    string
}

type ReserveResult struct {
	Reservation domain.Reservation
	Timeblock   domain.Timeblock
	Synced      bool
}

// Reserve atomically claims an available timeblock for a student. The
// conditional status transition is the single serialization point: of two
// concurrent calls exactly one succeeds, the other observes a conflict.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (ReserveResult, error) {
	if in.TimeblockID == uuid.Nil {
		return ReserveResult{}, validationError("timeblock_id is required")
	}
	if in.StudentID == "" {
		return ReserveResult{}, validationError("student_id is required")
	}

	tb, err := s.blocks.GetByID(ctx, in.TimeblockID)
	if err != nil {
		return ReserveResult{}, err
	}
	if tb.Status != domain.TimeblockAvailable {
		return ReserveResult{}, fmt.Errorf("timeblock is not available: %w", store.ErrConflict)
	}
	if tb.EndTime.Before(s.now().UTC()) {
		return ReserveResult{}, fmt.Errorf("timeblock is in the past: %w", store.ErrConflict)
	}

	// Defense in depth beyond the status flag: a stray reservation row with
	// the status already reverted would otherwise allow a double claim.
	if _, err := s.repo.GetByTimeblock(ctx, in.TimeblockID); err == nil {
		return ReserveResult{}, fmt.Errorf("timeblock already reserved: %w", store.ErrConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		return ReserveResult{}, err
	}

	if err := s.blocks.Transition(ctx, in.TimeblockID, domain.TimeblockAvailable, domain.TimeblockReserved); err != nil {
		return ReserveResult{}, err
	}

	res, err := s.repo.Create(ctx, domain.Reservation{
		TimeblockID: in.TimeblockID,
		StudentID:   in.StudentID,
		Status:      domain.ReservationConfirmed,
	})
	if err != nil {
		// Compensate: never leave a reserved slot without a reservation.
		if revertErr := s.blocks.Transition(ctx, in.TimeblockID, domain.TimeblockReserved, domain.TimeblockAvailable); revertErr != nil {
			s.log.Error("failed to revert timeblock after reservation insert failure",
				slog.String("timeblock_id", in.TimeblockID.String()),
				slog.Any("err", revertErr))
		}
		return ReserveResult{}, err
	}

	tb.Status = domain.TimeblockReserved
	sync := s.mirror.SlotReserved(ctx, tb, in.ClassName, in.TeacherName, in.StudentID, in.StudentName, in.StudentEmail)

	s.log.Info("timeblock reserved",
		slog.String("timeblock_id", in.TimeblockID.String()),
		slog.String("student_id", in.StudentID))

	return ReserveResult{
		Reservation: res,
		Timeblock:   tb,
		Synced:      sync.Synced == sync.Requested,
	}, nil
}

type CancelInput struct {
	ReservationID uuid.UUID
	ClassName     string
}

// Cancel releases a reservation and returns the timeblock to the available
// pool. A timeblock that already left `reserved` by some other path is
// tolerated: the reservation row is removed regardless.
func (s *Service) Cancel(ctx context.Context, in CancelInput) error {
	if in.ReservationID == uuid.Nil {
		return validationError("reservation_id is required")
	}

	res, err := s.repo.GetByID(ctx, in.ReservationID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, in.ReservationID); err != nil {
		return err
	}

	if err := s.blocks.Transition(ctx, res.TimeblockID, domain.TimeblockReserved, domain.TimeblockAvailable); err != nil {
		s.log.Warn("timeblock not in reserved state on cancel",
			slog.String("timeblock_id", res.TimeblockID.String()),
			slog.Any("err", err))
	}

	tb, err := s.blocks.GetByID(ctx, res.TimeblockID)
	if err == nil {
		s.mirror.SlotReleased(ctx, tb, in.ClassName)
	}

	s.log.Info("reservation cancelled",
		slog.String("reservation_id", in.ReservationID.String()),
		slog.String("timeblock_id", res.TimeblockID.String()))
	return nil
}

func (s *Service) ListForStudent(ctx context.Context, studentID string) ([]domain.Reservation, error) {
	if studentID == "" {
		return nil, validationError("student_id is required")
	}
	return s.repo.ListByStudent(ctx, studentID)
}
