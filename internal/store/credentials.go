package store

import (
	"context"

	"studieplan/backend/internal/domain"
)

// CredentialRepository persists external-calendar token pairs. Tokens are
// encrypted at rest; implementations decrypt on Get and encrypt on Put, so
// callers only ever see plaintext tokens. Last-writer-wins is acceptable for
// concurrent refreshes of the same user.
type CredentialRepository interface {
	Get(ctx context.Context, userID string) (domain.Credential, error)
	Put(ctx context.Context, cred domain.Credential) error
	Delete(ctx context.Context, userID string) error
}
