package application

import "github.com/LeL010/project2-spork-bootcamp/internal/domain/entity"

// Stage identifies which part of an account update failed.
// StageNone marks outcomes that never reached a provider (local validation).
type Stage int

const (
	StageNone Stage = iota
	StageReauthentication
	StageEmailUpdate
	StagePasswordUpdate
	StageProfileWrite
)

func (s Stage) String() string {
	switch s {
	case StageReauthentication:
		return "reauthentication"
	case StageEmailUpdate:
		return "email_update"
	case StagePasswordUpdate:
		return "password_update"
	case StageProfileWrite:
		return "profile_write"
	default:
		return "none"
	}
}

// UpdateOutcome is the single aggregate result of one update submission.
// Exactly one is produced per submission; the HTTP layer maps it to the
// user-visible banner and redirect.
type UpdateOutcome struct {
	Succeeded   bool
	FailedStage Stage
	Message     string
	Profile     *entity.AccountProfile // set when Succeeded
}

func failure(stage Stage, msg string) UpdateOutcome {
	return UpdateOutcome{Succeeded: false, FailedStage: stage, Message: msg}
}
