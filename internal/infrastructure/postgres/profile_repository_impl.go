package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LeL010/project2-spork-bootcamp/internal/domain/entity"
	"github.com/LeL010/project2-spork-bootcamp/internal/domain/repository"
)

var errNotFound = errors.New("not found")

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func (r *ProfileRepository) Create(p *entity.AccountProfile) error {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO profiles (display_name, email, avatar_url, auth_provider)
		VALUES ($1, $2, $3, $4)
		RETURNING user_id, created_at, updated_at
	`, p.DisplayName, p.Email, p.AvatarURL, p.AuthProvider)

	return row.Scan(&p.UserID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *ProfileRepository) GetByID(userID string) (*entity.AccountProfile, error) {
	ctx := context.Background()
	p := &entity.AccountProfile{}

	row := r.pool.QueryRow(ctx, `
		SELECT user_id, display_name, email, avatar_url, auth_provider, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`, userID)

	if err := row.Scan(&p.UserID, &p.DisplayName, &p.Email, &p.AvatarURL,
		&p.AuthProvider, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errNotFound
		}
		return nil, err
	}

	return p, nil
}

func (r *ProfileRepository) GetByEmail(email string) (*entity.AccountProfile, error) {
	ctx := context.Background()
	p := &entity.AccountProfile{}

	row := r.pool.QueryRow(ctx, `
		SELECT user_id, display_name, email, avatar_url, auth_provider, created_at, updated_at
		FROM profiles
		WHERE email = $1
	`, email)

	if err := row.Scan(&p.UserID, &p.DisplayName, &p.Email, &p.AvatarURL,
		&p.AuthProvider, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errNotFound
		}
		return nil, err
	}

	return p, nil
}

// Write overwrites the full profile record. No optimistic-concurrency check
// is performed; concurrent submissions are last-write-wins.
func (r *ProfileRepository) Write(p *entity.AccountProfile) error {
	ctx := context.Background()
	p.UpdatedAt = time.Now()

	res, err := r.pool.Exec(ctx, `
		UPDATE profiles
		SET display_name = $1, email = $2, avatar_url = $3, auth_provider = $4, updated_at = $5
		WHERE user_id = $6
	`, p.DisplayName, p.Email, p.AvatarURL, p.AuthProvider, p.UpdatedAt, p.UserID)
	if err != nil {
		return err
	}

	if res.RowsAffected() == 0 {
		return errNotFound
	}

	return nil
}

var _ repository.ProfileRepository = (*ProfileRepository)(nil)
