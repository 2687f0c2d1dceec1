package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"studieplan/backend/internal/calendar"
	"studieplan/backend/internal/domain"
	"studieplan/backend/internal/service/timeblocks"
)

type timeblocksService interface {
	CreateSlots(ctx context.Context, in timeblocks.CreateSlotsInput) (timeblocks.CreateSlotsResult, error)
	ListForTeacher(ctx context.Context, teacherID string, windowStart, windowEnd time.Time) ([]domain.Timeblock, error)
	ListForStudent(ctx context.Context, classIDs []uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Timeblock, error)
	UpdateSlot(ctx context.Context, in timeblocks.UpdateSlotInput) (timeblocks.UpdateSlotResult, error)
	DeleteSlot(ctx context.Context, teacherID string, timeblockID uuid.UUID) error
	CanDelete(ctx context.Context, timeblockID uuid.UUID) (bool, error)
}

type TimeblocksHandler struct {
	svc timeblocksService
	log *slog.Logger
}

func NewTimeblocksHandler(svc timeblocksService, log *slog.Logger) *TimeblocksHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TimeblocksHandler{
		svc: svc,
		log: log.With(slog.String("component", "http.timeblocks")),
	}
}

type createSlotsRequest struct {
	TeacherID       string    `json:"teacher_id"`
	ClassID         uuid.UUID `json:"class_id"`
	ClassName       string    `json:"class_name"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	DurationMinutes int       `json:"duration_minutes"`
	Location        string    `json:"location"`
}

type timeblockView struct {
	ID             uuid.UUID `json:"id"`
	TeacherID      string    `json:"teacher_id"`
	ClassID        uuid.UUID `json:"class_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Location       string    `json:"location"`
	Status         string    `json:"status"`
	OutlookEventID string    `json:"outlook_event_id,omitempty"`
}

func toTimeblockView(tb domain.Timeblock, now time.Time) timeblockView {
	return timeblockView{
		ID:             tb.ID,
		TeacherID:      tb.TeacherID,
		ClassID:        tb.ClassID,
		StartTime:      tb.StartTime,
		EndTime:        tb.EndTime,
		Location:       tb.Location,
		Status:         string(tb.EffectiveStatus(now)),
		OutlookEventID: tb.OutlookEventID,
	}
}

type createSlotsResponse struct {
	Created    int                `json:"created"`
	Synced     int                `json:"synced"`
	SyncState  calendar.SyncState `json:"sync_state"`
	Timeblocks []timeblockView    `json:"timeblocks"`
}

func (h *TimeblocksHandler) Create(c echo.Context) error {
	var req createSlotsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	result, err := h.svc.CreateSlots(c.Request().Context(), timeblocks.CreateSlotsInput{
		TeacherID:       req.TeacherID,
		ClassID:         req.ClassID,
		ClassName:       req.ClassName,
		WindowStart:     req.WindowStart,
		WindowEnd:       req.WindowEnd,
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}

	now := time.Now().UTC()
	views := make([]timeblockView, 0, len(result.Timeblocks))
	for _, tb := range result.Timeblocks {
		views = append(views, toTimeblockView(tb, now))
	}

	return c.JSON(http.StatusCreated, createSlotsResponse{
		Created:    result.Created,
		Synced:     result.Synced,
		SyncState:  result.SyncState,
		Timeblocks: views,
	})
}

func (h *TimeblocksHandler) List(c echo.Context) error {
	windowStart, err := time.Parse(time.RFC3339, c.QueryParam("from"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be RFC 3339"})
	}
	windowEnd, err := time.Parse(time.RFC3339, c.QueryParam("to"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be RFC 3339"})
	}

	var rows []domain.Timeblock
	if teacherID := c.QueryParam("teacher_id"); teacherID != "" {
		rows, err = h.svc.ListForTeacher(c.Request().Context(), teacherID, windowStart, windowEnd)
	} else {
		var classIDs []uuid.UUID
		for _, raw := range c.QueryParams()["class_id"] {
			id, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid class_id"})
			}
			classIDs = append(classIDs, id)
		}
		rows, err = h.svc.ListForStudent(c.Request().Context(), classIDs, windowStart, windowEnd)
	}
	if err != nil {
		return writeError(c, h.log, err)
	}

	now := time.Now().UTC()
	views := make([]timeblockView, 0, len(rows))
	for _, tb := range rows {
		views = append(views, toTimeblockView(tb, now))
	}
	return c.JSON(http.StatusOK, echo.Map{"timeblocks": views})
}

type updateSlotRequest struct {
	TeacherID string    `json:"teacher_id"`
	ClassID   uuid.UUID `json:"class_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Location  string    `json:"location"`
	Status    string    `json:"status"`
}

func (h *TimeblocksHandler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid timeblock id"})
	}

	var req updateSlotRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	result, err := h.svc.UpdateSlot(c.Request().Context(), timeblocks.UpdateSlotInput{
		TimeblockID: id,
		TeacherID:   req.TeacherID,
		ClassID:     req.ClassID,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Location:    req.Location,
		Status:      domain.TimeblockStatus(req.Status),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"timeblock": toTimeblockView(result.Timeblock, time.Now().UTC()),
		"synced":    result.Synced,
	})
}

func (h *TimeblocksHandler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid timeblock id"})
	}
	teacherID := c.QueryParam("teacher_id")

	if err := h.svc.DeleteSlot(c.Request().Context(), teacherID, id); err != nil {
		return writeError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TimeblocksHandler) Deletable(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid timeblock id"})
	}

	ok, err := h.svc.CanDelete(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deletable": ok})
}
