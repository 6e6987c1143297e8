package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LeL010/project2-spork-bootcamp/internal/domain/entity"
	"github.com/LeL010/project2-spork-bootcamp/internal/domain/identity"
)

// User-visible messages for the account form banners.
const (
	MsgUpdated           = "Account settings updated."
	MsgWrongPassword     = "Current password is incorrect."
	MsgPasswordMismatch  = "Passwords do not match."
	MsgUpdateFailed      = "Failed to update account."
	MsgUploadFailed      = "Failed to upload image."
	MsgUpdateInFlight    = "An update is already in progress."
	MsgProviderDown      = "Account service is temporarily unavailable."
	inflightLockTTL      = time.Minute
	uploadProgressKeyTTL = 5 * time.Minute
)

// UpdateRequest is the set of candidate changes collected from the account
// form. Empty Email/DisplayName mean "unchanged"; Asset is nil when no file
// was selected.
type UpdateRequest struct {
	DisplayName             string
	Email                   string
	CurrentPassword         string
	NewPassword             string
	NewPasswordConfirmation string
	Asset                   *Asset
}

func inflightKey(userID string) string {
	return "account:update:inflight:" + userID
}

func uploadProgressKey(userID string) string {
	return "account:upload:" + userID
}

// UpdateAccount runs one account-update submission end to end. The
// submission moves through gating, then validation plus the optional upload
// (both must be terminal), then applying, and finally maps everything to a
// single outcome. Nothing is retried; every failure requires a fresh
// submission.
func (s *Service) UpdateAccount(ctx context.Context, userID string, req UpdateRequest) UpdateOutcome {
	if !s.acquireInflight(ctx, userID) {
		return failure(StageNone, MsgUpdateInFlight)
	}
	defer s.releaseInflight(ctx, userID)

	current, err := s.Repo.GetByID(userID)
	if err != nil || current == nil {
		return failure(StageReauthentication, MsgWrongPassword)
	}

	// Credential Gate: no mutation may be attempted past this point unless
	// the provider confirms the caller still controls the account.
	verified, err := s.reauthenticate(ctx, current.Email, req.CurrentPassword)
	if err != nil {
		if errors.Is(err, identity.ErrUnavailable) {
			return failure(StageReauthentication, MsgProviderDown)
		}
		return failure(StageReauthentication, MsgWrongPassword)
	}

	// Local validation short-circuits before any provider call, and before
	// a single byte of the asset is sent.
	if req.NewPassword != req.NewPasswordConfirmation {
		return failure(StageNone, MsgPasswordMismatch)
	}

	avatarRef := ""
	if req.Asset != nil {
		session := s.StartUpload(ctx, req.Asset)
		go s.mirrorUploadProgress(ctx, userID, session)
		ref, uErr := session.Wait(ctx)
		if uErr != nil {
			if s.Logger != nil {
				s.Logger.WithError(uErr).WithField("user_id", userID).Warn("avatar upload failed")
			}
			return failure(StageNone, MsgUploadFailed)
		}
		avatarRef = ref
	}

	out := s.applyFieldUpdates(ctx, req, verified, current, avatarRef)
	if out.Succeeded {
		s.refreshSessionCache(ctx, out.Profile)
		_ = s.indexProfile(ctx, out.Profile)
		s.notifyProfileUpdated(ctx, out.Profile)
	}
	return out
}

// reauthenticate presents the known email plus the supplied password to the
// identity provider and returns the short-lived proof on success. The
// credential exists only for the duration of this call.
func (s *Service) reauthenticate(ctx context.Context, email, currentPassword string) (identity.VerifiedSession, error) {
	if currentPassword == "" {
		return identity.VerifiedSession{}, identity.ErrInvalidCredential
	}
	return s.Identity.VerifyCredential(ctx, email, currentPassword)
}

// applyFieldUpdates is the field update coordinator. It dispatches the
// required mutations concurrently, waits for all of them (a sibling failure
// cancels nothing), and reports the first failure in dispatch order:
// email, password, profile write.
func (s *Service) applyFieldUpdates(ctx context.Context, req UpdateRequest, verified identity.VerifiedSession, current *entity.AccountProfile, avatarRef string) UpdateOutcome {
	newEmail := req.Email
	if newEmail == "" {
		newEmail = verified.Email
	}

	next := *current
	if req.DisplayName != "" {
		next.DisplayName = req.DisplayName
	}
	next.Email = newEmail
	if avatarRef != "" {
		next.AvatarURL = avatarRef
	}
	next.AuthProvider = entity.AuthProviderLocal

	type task struct {
		stage Stage
		run   func() error
	}
	var tasks []task
	if newEmail != verified.Email {
		tasks = append(tasks, task{StageEmailUpdate, func() error {
			return s.Identity.ChangeEmail(ctx, verified, newEmail)
		}})
	}
	if req.NewPassword != "" {
		tasks = append(tasks, task{StagePasswordUpdate, func() error {
			return s.Identity.ChangePassword(ctx, verified, req.NewPassword)
		}})
	}
	tasks = append(tasks, task{StageProfileWrite, func() error {
		return s.Repo.Write(&next)
	}})

	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	for i := range tasks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = tasks[i].run()
		}(i)
	}
	wg.Wait()

	for i := range tasks {
		if errs[i] == nil {
			continue
		}
		if s.Logger != nil {
			s.Logger.WithError(errs[i]).
				WithField("user_id", verified.UserID).
				WithField("stage", tasks[i].stage.String()).
				Error("account update task failed")
		}
	}
	for i := range tasks {
		if errs[i] != nil {
			return failure(tasks[i].stage, MsgUpdateFailed)
		}
	}
	return UpdateOutcome{Succeeded: true, Message: MsgUpdated, Profile: &next}
}

// acquireInflight takes a short-lived per-user lock so a second submission
// while one is running is rejected, mirroring the disabled submit button.
// Redis absent means the lock is a no-op.
func (s *Service) acquireInflight(ctx context.Context, userID string) bool {
	if s.Redis == nil {
		return true
	}
	ok, err := s.Redis.SetNX(ctx, inflightKey(userID), "1", inflightLockTTL).Result()
	if err != nil {
		// fail open on redis errors
		return true
	}
	return ok
}

func (s *Service) releaseInflight(ctx context.Context, userID string) {
	if s.Redis == nil {
		return
	}
	_ = s.Redis.Del(ctx, inflightKey(userID)).Err()
}

// mirrorUploadProgress drains the session's event stream into a Redis hash
// so the web client's progress bar can poll it.
func (s *Service) mirrorUploadProgress(ctx context.Context, userID string, session *UploadSession) {
	if s.Redis == nil {
		for range session.Events() {
		}
		return
	}
	key := uploadProgressKey(userID)
	for ev := range session.Events() {
		fields := map[string]any{
			"percent": ev.Percent,
			"state":   int(ev.State),
		}
		if ev.Reference != "" {
			fields["reference"] = ev.Reference
		}
		if ev.Err != nil {
			fields["error"] = ev.Err.Error()
		}
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, uploadProgressKeyTTL)
		_, _ = pipe.Exec(ctx)
	}
}

// UploadProgress reads the mirrored progress hash for the polling endpoint.
func (s *Service) UploadProgress(ctx context.Context, userID string) (map[string]string, error) {
	if s.Redis == nil {
		return nil, errors.New("progress tracking unavailable")
	}
	return s.Redis.HGetAll(ctx, uploadProgressKey(userID)).Result()
}
