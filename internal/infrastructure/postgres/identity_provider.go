package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LeL010/project2-spork-bootcamp/internal/domain/identity"
	"github.com/LeL010/project2-spork-bootcamp/pkg/helpers"
)

// LocalProvider is the identity backend for accounts with the Local auth
// provider tag: an email/bcrypt-hash pair in the credentials table.
type LocalProvider struct {
	pool *pgxpool.Pool
}

func NewLocalProvider(pool *pgxpool.Pool) *LocalProvider {
	return &LocalProvider{pool: pool}
}

func (p *LocalProvider) VerifyCredential(ctx context.Context, email, password string) (identity.VerifiedSession, error) {
	var userID, hash string
	row := p.pool.QueryRow(ctx, `
		SELECT user_id, password_hash
		FROM credentials
		WHERE email = $1
	`, email)
	if err := row.Scan(&userID, &hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.VerifiedSession{}, identity.ErrInvalidCredential
		}
		return identity.VerifiedSession{}, fmt.Errorf("%w: %v", identity.ErrUnavailable, err)
	}
	if !helpers.CompareHashAndPassword(hash, password) {
		return identity.VerifiedSession{}, identity.ErrInvalidCredential
	}
	return identity.VerifiedSession{UserID: userID, Email: email, VerifiedAt: time.Now()}, nil
}

func (p *LocalProvider) ChangeEmail(ctx context.Context, session identity.VerifiedSession, newEmail string) error {
	res, err := p.pool.Exec(ctx, `
		UPDATE credentials
		SET email = $1, updated_at = now()
		WHERE user_id = $2
	`, newEmail, session.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", identity.ErrUnavailable, err)
	}
	if res.RowsAffected() == 0 {
		return identity.ErrInvalidCredential
	}
	return nil
}

func (p *LocalProvider) ChangePassword(ctx context.Context, session identity.VerifiedSession, newPassword string) error {
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return err
	}
	res, err := p.pool.Exec(ctx, `
		UPDATE credentials
		SET password_hash = $1, updated_at = now()
		WHERE user_id = $2
	`, hash, session.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", identity.ErrUnavailable, err)
	}
	if res.RowsAffected() == 0 {
		return identity.ErrInvalidCredential
	}
	return nil
}

// CreateCredential inserts the credential row for a new account. Used by the
// seeder; registration itself lives outside this service.
func (p *LocalProvider) CreateCredential(ctx context.Context, userID, email, password string) error {
	hash, err := helpers.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO credentials (user_id, email, password_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET email = EXCLUDED.email, password_hash = EXCLUDED.password_hash, updated_at = now()
	`, userID, email, hash)
	return err
}

var _ identity.Provider = (*LocalProvider)(nil)
