package postgres

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"studieplan/backend/internal/domain"
	"studieplan/backend/internal/store"
)

// CredentialRepo stores external-calendar token pairs with the token columns
// encrypted using AES-GCM. Callers only see plaintext tokens.
type CredentialRepo struct {
	db   *bun.DB
	aead cipher.AEAD
}

// NewCredentialRepo requires a 16, 24 or 32 byte encryption key.
func NewCredentialRepo(db *bun.DB, key []byte) (*CredentialRepo, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("credential encryption key: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &CredentialRepo{db: db, aead: aead}, nil
}

func (r *CredentialRepo) Get(ctx context.Context, userID string) (domain.Credential, error) {
	var cred domain.Credential
	err := r.db.NewSelect().
		Model(&cred).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Credential{}, store.ErrNotFound
		}
		return domain.Credential{}, err
	}

	if cred.AccessToken, err = r.open(cred.AccessToken); err != nil {
		return domain.Credential{}, fmt.Errorf("decrypt access token: %w", err)
	}
	if cred.RefreshToken != "" {
		if cred.RefreshToken, err = r.open(cred.RefreshToken); err != nil {
			return domain.Credential{}, fmt.Errorf("decrypt refresh token: %w", err)
		}
	}
	return cred, nil
}

func (r *CredentialRepo) Put(ctx context.Context, cred domain.Credential) error {
	m := cred
	var err error
	if m.AccessToken, err = r.seal(m.AccessToken); err != nil {
		return err
	}
	if m.RefreshToken != "" {
		if m.RefreshToken, err = r.seal(m.RefreshToken); err != nil {
			return err
		}
	}

	_, err = r.db.NewInsert().
		Model(&m).
		On("CONFLICT (user_id) DO UPDATE").
		Set("access_token = EXCLUDED.access_token").
		Set("refresh_token = EXCLUDED.refresh_token").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (r *CredentialRepo) Delete(ctx context.Context, userID string) error {
	res, err := r.db.NewDelete().
		Model((*domain.Credential)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *CredentialRepo) seal(plaintext string) (string, error) {
	nonce := make([]byte, r.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := r.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (r *CredentialRepo) open(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(raw) < r.aead.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := raw[:r.aead.NonceSize()], raw[r.aead.NonceSize():]
	plaintext, err := r.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
