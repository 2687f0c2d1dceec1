package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"studieplan/backend/internal/domain"
	"studieplan/backend/internal/store"
)

// CredentialsHandler lets the identity collaborator store a token pair after
// external-account linking and clear it on disconnect. The OAuth handshake
// itself happens outside this service.
type CredentialsHandler struct {
	repo store.CredentialRepository
	log  *slog.Logger
}

func NewCredentialsHandler(repo store.CredentialRepository, log *slog.Logger) *CredentialsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CredentialsHandler{
		repo: repo,
		log:  log.With(slog.String("component", "http.credentials")),
	}
}

type putCredentialRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func (h *CredentialsHandler) Put(c echo.Context) error {
	userID := c.Param("user_id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id is required"})
	}

	var req putCredentialRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.AccessToken == "" {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "access_token is required"})
	}

	expiresIn := req.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}

	err := h.repo.Put(c.Request().Context(), domain.Credential{
		UserID:       userID,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(expiresIn) * time.Second),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}

	h.log.Info("calendar credential stored", slog.String("user_id", userID))
	return c.NoContent(http.StatusNoContent)
}

func (h *CredentialsHandler) Delete(c echo.Context) error {
	userID := c.Param("user_id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id is required"})
	}

	if err := h.repo.Delete(c.Request().Context(), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.NoContent(http.StatusNoContent)
		}
		return writeError(c, h.log, err)
	}

	h.log.Info("calendar credential cleared", slog.String("user_id", userID))
	return c.NoContent(http.StatusNoContent)
}
