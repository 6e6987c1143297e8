package repository

import "github.com/LeL010/project2-spork-bootcamp/internal/domain/entity"

// ProfileRepository defines the interface for account-profile persistence.
// Write is a full-record overwrite; there are no partial-patch semantics,
// so concurrent writers are last-write-wins.
type ProfileRepository interface {
	Create(p *entity.AccountProfile) error
	GetByID(userID string) (*entity.AccountProfile, error)
	GetByEmail(email string) (*entity.AccountProfile, error)
	Write(p *entity.AccountProfile) error
}
