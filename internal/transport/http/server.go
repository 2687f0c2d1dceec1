package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"studieplan/backend/internal/service/reservations"
	"studieplan/backend/internal/service/timeblocks"
	"studieplan/backend/internal/store"
)

// NewServer wires all routes onto a fresh echo instance.
func NewServer(tb *TimeblocksHandler, res *ReservationsHandler, creds *CredentialsHandler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	v1 := e.Group("/v1")
	v1.POST("/timeblocks", tb.Create)
	v1.GET("/timeblocks", tb.List)
	v1.PATCH("/timeblocks/:id", tb.Update)
	v1.DELETE("/timeblocks/:id", tb.Delete)
	v1.GET("/timeblocks/:id/deletable", tb.Deletable)

	v1.POST("/reservations", res.Create)
	v1.GET("/reservations", res.List)
	v1.DELETE("/reservations/:id", res.Cancel)

	v1.PUT("/credentials/:user_id", creds.Put)
	v1.DELETE("/credentials/:user_id", creds.Delete)

	return e
}

// writeError maps service and store errors onto HTTP status codes.
// Validation problems are caller-correctable (422); conflicts mean the
// caller should pick another slot (409).
func writeError(c echo.Context, log *slog.Logger, err error) error {
	var tbValidation *timeblocks.ValidationError
	var resValidation *reservations.ValidationError

	switch {
	case errors.As(err, &tbValidation), errors.As(err, &resValidation):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	default:
		log.Error("request failed", slog.Any("err", err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
