package timeblocks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
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

type slotMirror interface {
	SlotsCreated(ctx context.Context, teacherID, className string, blocks []domain.Timeblock) calendar.SyncResult
	SlotUpdated(ctx context.Context, tb domain.Timeblock) calendar.SyncResult
	SlotDeleted(ctx context.Context, teacherID, eventID string) calendar.SyncResult
}

type Service struct {
	repo   store.TimeblockRepository
	mirror slotMirror
	log    *slog.Logger
	now    func() time.Time
}

func NewService(repo store.TimeblockRepository, mirror slotMirror, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:   repo,
		mirror: mirror,
		log:    log.With(slog.String("component", "timeblocks")),
		now:    time.Now,
	}
}

type CreateSlotsInput struct {
	TeacherID       string
	ClassID         uuid.UUID
	ClassName       string
	WindowStart     time.Time
	WindowEnd       time.Time
	DurationMinutes int
	Location        string
}

// CreateSlotsResult reports the local and mirror outcomes separately: slots
// can be created without being synced, and both counts matter to the caller.
type CreateSlotsResult struct {
	Timeblocks []domain.Timeblock
	Created    int
	Synced     int
	SyncState  calendar.SyncState
}

// CreateSlots partitions the requested window into fixed-duration slots,
// rejects the request when any part of the window collides with the teacher's
// existing schedule, persists the candidates and mirrors them best-effort.
func (s *Service) CreateSlots(ctx context.Context, in CreateSlotsInput) (CreateSlotsResult, error) {
	if in.TeacherID == "" {
		return CreateSlotsResult{}, validationError("teacher_id is required")
	}
	if in.ClassID == uuid.Nil {
		return CreateSlotsResult{}, validationError("class_id is required")
	}

	location := strings.TrimSpace(in.Location)
	if location == "" {
		return CreateSlotsResult{}, validationError("location is required")
	}
	if len(location) > 255 {
		return CreateSlotsResult{}, validationError("location too long")
	}

	duration := time.Duration(in.DurationMinutes) * time.Minute
	if duration < domain.MinSlotDuration || duration > domain.MaxSlotDuration {
		return CreateSlotsResult{}, validationError("duration must be between 5 and 120 minutes")
	}

	start := in.WindowStart.UTC()
	end := in.WindowEnd.UTC()
	if !start.Before(end) {
		return CreateSlotsResult{}, validationError("end_time must be after start_time")
	}
	if start.Before(s.now().UTC()) {
		return CreateSlotsResult{}, validationError("start_time must be in the future")
	}

	// One overlap check against the whole requested window: the generated
	// sub-slots are mutually overlap-free by construction.
	existing, err := s.repo.FindOverlapping(ctx, in.TeacherID, start, end)
	if err != nil {
		return CreateSlotsResult{}, err
	}
	if len(existing) > 0 {
		return CreateSlotsResult{}, fmt.Errorf("window overlaps existing timeblock: %w", store.ErrConflict)
	}

	candidates := domain.PartitionWindow(start, end, duration)
	if len(candidates) == 0 {
		return CreateSlotsResult{}, validationError("duration too long for the selected time range")
	}

	blocks := make([]domain.Timeblock, 0, len(candidates))
	for _, c := range candidates {
		blocks = append(blocks, domain.Timeblock{
			TeacherID: in.TeacherID,
			ClassID:   in.ClassID,
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
			Location:  location,
			Status:    domain.TimeblockAvailable,
		})
	}

	created, createErr := s.repo.CreateBatch(ctx, blocks)
	if len(created) == 0 {
		if createErr != nil {
			return CreateSlotsResult{}, createErr
		}
		return CreateSlotsResult{}, validationError("duration too long for the selected time range")
	}
	if createErr != nil {
		s.log.Warn("partial slot creation",
			slog.String("teacher_id", in.TeacherID),
			slog.Int("requested", len(blocks)),
			slog.Int("created", len(created)),
			slog.Any("err", createErr))
	}

	sync := s.mirror.SlotsCreated(ctx, in.TeacherID, in.ClassName, created)

	return CreateSlotsResult{
		Timeblocks: created,
		Created:    len(created),
		Synced:     sync.Synced,
		SyncState:  sync.State(),
	}, nil
}

func (s *Service) ListForTeacher(ctx context.Context, teacherID string, windowStart, windowEnd time.Time) ([]domain.Timeblock, error) {
	if teacherID == "" {
		return nil, validationError("teacher_id is required")
	}
	start := windowStart.UTC()
	end := windowEnd.UTC()
	if !start.Before(end) {
		return nil, validationError("window_end must be after window_start")
	}
	return s.repo.ListByTeacher(ctx, teacherID, start, end)
}

func (s *Service) ListForStudent(ctx context.Context, classIDs []uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Timeblock, error) {
	start := windowStart.UTC()
	end := windowEnd.UTC()
	if !start.Before(end) {
		return nil, validationError("window_end must be after window_start")
	}
	return s.repo.ListByClasses(ctx, classIDs, start, end)
}

type UpdateSlotInput struct {
	TimeblockID uuid.UUID
	TeacherID   string
	ClassID     uuid.UUID
	StartTime   time.Time
	EndTime     time.Time
	Location    string
	Status      domain.TimeblockStatus
}

type UpdateSlotResult struct {
	Timeblock domain.Timeblock
	Synced    bool
}

// UpdateSlot edits a slot in place and pushes the change to the remote event
// when one exists.
func (s *Service) UpdateSlot(ctx context.Context, in UpdateSlotInput) (UpdateSlotResult, error) {
	if in.TimeblockID == uuid.Nil {
		return UpdateSlotResult{}, validationError("timeblock_id is required")
	}
	if in.TeacherID == "" {
		return UpdateSlotResult{}, validationError("teacher_id is required")
	}
	if in.ClassID == uuid.Nil {
		return UpdateSlotResult{}, validationError("class_id is required")
	}

	location := strings.TrimSpace(in.Location)
	if location == "" {
		return UpdateSlotResult{}, validationError("location is required")
	}

	start := in.StartTime.UTC()
	end := in.EndTime.UTC()
	if !start.Before(end) {
		return UpdateSlotResult{}, validationError("end_time must be after start_time")
	}

	status := in.Status
	if status == "" {
		status = domain.TimeblockAvailable
	}
	if !status.Valid() {
		return UpdateSlotResult{}, validationError("invalid status")
	}

	current, err := s.repo.GetByID(ctx, in.TimeblockID)
	if err != nil {
		return UpdateSlotResult{}, err
	}

	current.ClassID = in.ClassID
	current.StartTime = start
	current.EndTime = end
	current.Location = location
	current.Status = status

	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		return UpdateSlotResult{}, err
	}

	sync := s.mirror.SlotUpdated(ctx, updated)
	return UpdateSlotResult{Timeblock: updated, Synced: sync.Synced == sync.Requested}, nil
}

// DeleteSlot removes a slot that has neither a reservation nor a retained
// summary, then deletes its remote event best-effort.
func (s *Service) DeleteSlot(ctx context.Context, teacherID string, timeblockID uuid.UUID) error {
	if teacherID == "" {
		return validationError("teacher_id is required")
	}
	if timeblockID == uuid.Nil {
		return validationError("timeblock_id is required")
	}

	tb, err := s.repo.GetByID(ctx, timeblockID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, teacherID, timeblockID); err != nil {
		return err
	}

	s.mirror.SlotDeleted(ctx, teacherID, tb.OutlookEventID)
	return nil
}

// CanDelete exposes the retention predicate consulted by collaborators
// before offering slot deletion.
func (s *Service) CanDelete(ctx context.Context, timeblockID uuid.UUID) (bool, error) {
	if timeblockID == uuid.Nil {
		return false, validationError("timeblock_id is required")
	}
	return s.repo.CanDelete(ctx, timeblockID)
}

// PurgeExpired removes past slots that hold no reservation and no summary.
// It is idempotent and scheduled periodically from main.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	deleted, err := s.repo.PurgeExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Info("expired timeblocks purged", slog.Int64("deleted", deleted))
	}
	return deleted, nil
}
