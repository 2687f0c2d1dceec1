package calendar

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"studieplan/backend/internal/domain"
	"studieplan/backend/internal/store"
)

// ErrUnavailable means no usable credential exists for the user. Mirror
// callers treat it exactly like any other sync failure: skip and move on.
var ErrUnavailable = errors.New("calendar credential unavailable")

// TokenManager decides whether a stored credential is usable before a mirror
// call, refreshing it proactively when expired.
type TokenManager struct {
	creds     store.CredentialRepository
	exchanger TokenExchanger
	log       *slog.Logger
	now       func() time.Time
}

func NewTokenManager(creds store.CredentialRepository, exchanger TokenExchanger, log *slog.Logger) *TokenManager {
	if log == nil {
		log = slog.Default()
	}
	return &TokenManager{
		creds:     creds,
		exchanger: exchanger,
		log:       log.With(slog.String("component", "calendar.tokens")),
		now:       time.Now,
	}
}

// EnsureValid returns a usable access token for the user, exchanging the
// refresh token first when the stored one has expired. A failed or impossible
// exchange yields ErrUnavailable; no other error escapes this boundary.
func (m *TokenManager) EnsureValid(ctx context.Context, userID string) (string, error) {
	cred, err := m.creds.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.log.Warn("credential lookup failed", slog.String("user_id", userID), slog.Any("err", err))
		}
		return "", ErrUnavailable
	}

	now := m.now().UTC()
	if !cred.Expired(now) {
		return cred.AccessToken, nil
	}
	if cred.RefreshToken == "" {
		return "", ErrUnavailable
	}

	grant, err := m.exchanger.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		m.log.Warn("token refresh failed", slog.String("user_id", userID), slog.Any("err", err))
		return "", ErrUnavailable
	}

	expiresIn := grant.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}

	updated := domain.Credential{
		UserID:       userID,
		AccessToken:  grant.AccessToken,
		RefreshToken: cred.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(expiresIn) * time.Second),
	}
	if grant.RefreshToken != "" {
		updated.RefreshToken = grant.RefreshToken
	}

	// Last-writer-wins: a concurrent refresh losing this write merely
	// triggers one extra refresh later.
	if err := m.creds.Put(ctx, updated); err != nil {
		m.log.Warn("refreshed credential persist failed", slog.String("user_id", userID), slog.Any("err", err))
	} else {
		m.log.Info("credential refreshed", slog.String("user_id", userID))
	}

	return grant.AccessToken, nil
}
