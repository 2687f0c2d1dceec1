package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"studieplan/backend/internal/domain"
	"studieplan/backend/internal/service/reservations"
)

type reservationsService interface {
	Reserve(ctx context.Context, in reservations.ReserveInput) (reservations.ReserveResult, error)
	Cancel(ctx context.Context, in reservations.CancelInput) error
	ListForStudent(ctx context.Context, studentID string) ([]domain.Reservation, error)
}

type ReservationsHandler struct {
	svc reservationsService
	log *slog.Logger
}

func NewReservationsHandler(svc reservationsService, log *slog.Logger) *ReservationsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ReservationsHandler{
		svc: svc,
		log: log.With(slog.String("component", "http.reservations")),
	}
}

type reserveRequest struct {
	TimeblockID  uuid.UUID `json:"timeblock_id"`
	StudentID    string    `json:"student_id"`
	StudentName  string    `json:"student_name"`
	StudentEmail string    `json:"student_email"`
	TeacherName  string    `json:"teacher_name"`
	ClassName    string    `json:"class_name"`
}

type reservationView struct {
	ID          uuid.UUID `json:"id"`
	TimeblockID uuid.UUID `json:"timeblock_id"`
	StudentID   string    `json:"student_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func toReservationView(res domain.Reservation) reservationView {
	return reservationView{
		ID:          res.ID,
		TimeblockID: res.TimeblockID,
		StudentID:   res.StudentID,
		Status:      string(res.Status),
		CreatedAt:   res.CreatedAt,
	}
}

func (h *ReservationsHandler) Create(c echo.Context) error {
	var req reserveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	result, err := h.svc.Reserve(c.Request().Context(), reservations.ReserveInput{
		TimeblockID:  req.TimeblockID,
		StudentID:    req.StudentID,
		StudentName:  req.StudentName,
		StudentEmail: req.StudentEmail,
		TeacherName:  req.TeacherName,
		ClassName:    req.ClassName,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"reservation": toReservationView(result.Reservation),
		"timeblock":   toTimeblockView(result.Timeblock, time.Now().UTC()),
		"synced":      result.Synced,
	})
}

func (h *ReservationsHandler) List(c echo.Context) error {
	studentID := c.QueryParam("student_id")

	rows, err := h.svc.ListForStudent(c.Request().Context(), studentID)
	if err != nil {
		return writeError(c, h.log, err)
	}

	views := make([]reservationView, 0, len(rows))
	for _, res := range rows {
		views = append(views, toReservationView(res))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": views})
}

func (h *ReservationsHandler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	err = h.svc.Cancel(c.Request().Context(), reservations.CancelInput{
		ReservationID: id,
		ClassName:     c.QueryParam("class_name"),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
