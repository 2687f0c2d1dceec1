package domain

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Credential holds a user's external-calendar token pair. AccessToken and
// RefreshToken are stored encrypted; the credential store is responsible for
// transparent encryption and decryption.
type Credential struct {
	bun.BaseModel `bun:"table:calendar_credentials"`

	UserID       string    `bun:"user_id,pk"`
	AccessToken  string    `bun:"access_token,notnull"`
	RefreshToken string    `bun:"refresh_token,nullzero"`
	ExpiresAt    time.Time `bun:"expires_at,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

func (c *Credential) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		c.UpdatedAt = now
	}
	return nil
}

// Expired reports whether the access token can no longer be used.
func (c *Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
