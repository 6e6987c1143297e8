package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/LeL010/project2-spork-bootcamp/internal/domain/entity"
	"github.com/LeL010/project2-spork-bootcamp/internal/domain/identity"
	"github.com/LeL010/project2-spork-bootcamp/internal/domain/objectstore"
)

// MockProfileRepository is a mock implementation of repository.ProfileRepository.
type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) Create(p *entity.AccountProfile) error {
	args := m.Called(p)
	return args.Error(0)
}

func (m *MockProfileRepository) GetByID(userID string) (*entity.AccountProfile, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.AccountProfile), args.Error(1)
}

func (m *MockProfileRepository) GetByEmail(email string) (*entity.AccountProfile, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.AccountProfile), args.Error(1)
}

func (m *MockProfileRepository) Write(p *entity.AccountProfile) error {
	args := m.Called(p)
	return args.Error(0)
}

// MockIdentityProvider is a mock implementation of identity.Provider.
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyCredential(ctx context.Context, email, password string) (identity.VerifiedSession, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(identity.VerifiedSession), args.Error(1)
}

func (m *MockIdentityProvider) ChangeEmail(ctx context.Context, session identity.VerifiedSession, newEmail string) error {
	args := m.Called(ctx, session, newEmail)
	return args.Error(0)
}

func (m *MockIdentityProvider) ChangePassword(ctx context.Context, session identity.VerifiedSession, newPassword string) error {
	args := m.Called(ctx, session, newPassword)
	return args.Error(0)
}

// fakeObjectStore streams uploads chunk by chunk so progress reporting is
// exercised for real.
type fakeObjectStore struct {
	mu           sync.Mutex
	uploadedKeys []string
	uploadErr    error
	resolveErr   error
}

func (f *fakeObjectStore) Upload(_ context.Context, key, _ string, r io.Reader, size int64, progress objectstore.ProgressFunc) error {
	f.mu.Lock()
	f.uploadedKeys = append(f.uploadedKeys, key)
	f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	buf := make([]byte, 3)
	var transferred int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			transferred += int64(n)
			if progress != nil {
				progress(transferred, size)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (f *fakeObjectStore) ResolveURL(_ context.Context, key string) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return "https://cdn.test/" + key, nil
}

func (f *fakeObjectStore) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploadedKeys...)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testAsset(name, content string) *Asset {
	return &Asset{
		Filename:    name,
		ContentType: "image/png",
		Size:        int64(len(content)),
		Content:     strings.NewReader(content),
	}
}

type UpdateAccountTestSuite struct {
	suite.Suite
	repo     *MockProfileRepository
	provider *MockIdentityProvider
	store    *fakeObjectStore
	svc      *Service
	current  *entity.AccountProfile
	verified identity.VerifiedSession
}

func (s *UpdateAccountTestSuite) SetupTest() {
	s.repo = new(MockProfileRepository)
	s.provider = new(MockIdentityProvider)
	s.store = &fakeObjectStore{}
	s.svc = NewService(s.repo, s.provider, s.store, nil, nil, quietLogger(), nil, "", nil)
	s.current = &entity.AccountProfile{
		UserID:       "u1",
		DisplayName:  "Ada",
		Email:        "a@x.com",
		AvatarURL:    "https://cdn.test/images/old.png",
		AuthProvider: entity.AuthProviderLocal,
	}
	s.verified = identity.VerifiedSession{UserID: "u1", Email: "a@x.com"}
}

func (s *UpdateAccountTestSuite) expectGatePass() {
	s.repo.On("GetByID", "u1").Return(s.current, nil)
	s.provider.On("VerifyCredential", mock.Anything, "a@x.com", "hunter22").Return(s.verified, nil)
}

func (s *UpdateAccountTestSuite) TestWrongCurrentPasswordShortCircuits() {
	s.repo.On("GetByID", "u1").Return(s.current, nil)
	s.provider.On("VerifyCredential", mock.Anything, "a@x.com", "wrong").
		Return(identity.VerifiedSession{}, identity.ErrInvalidCredential)

	out := s.svc.UpdateAccount(context.Background(), "u1", UpdateRequest{
		CurrentPassword: "wrong",
		DisplayName:     "Ada B.",
	})

	s.False(out.Succeeded)
	s.Equal(StageReauthentication, out.FailedStage)
	s.Equal(MsgWrongPassword, out.Message)
	s.repo.AssertNotCalled(s.T(), "Write", mock.Anything)
	s.provider.AssertNotCalled(s.T(), "ChangeEmail", mock.Anything, mock.Anything, mock.Anything)
	s.provider.AssertNotCalled(s.T(), "ChangePassword", mock.Anything, mock.Anything, mock.Anything)
}

func (s *UpdateAccountTestSuite) TestEmptyCurrentPasswordNeverReachesProvider() {
	s.repo.On("GetByID", "u1").Return(s.current, nil)

	out := s.svc.UpdateAccount(context.Background(), "u1", UpdateRequest{DisplayName: "Ada B."})

	s.False(out.Succeeded)
	s.Equal(StageReauthentication, out.FailedStage)
	s.provider.AssertNotCalled(s.T(), "VerifyCredential", mock.Anything, mock.Anything, mock.Anything)
}

func (s *UpdateAccountTestSuite) TestProviderUnavailable() {
	s.repo.On("GetByID", "u1").Return(s.current, nil)
	s.provider.On("VerifyCredential", mock.Anything, "a@x.com", "hunter22").
		Return(identity.VerifiedSession{}, fmt.Errorf("%w: connection refused", identity.ErrUnavailable))

	out := s.svc.UpdateAccount(context.Background(), "u1", UpdateRequest{CurrentPassword: "hunter22"})

	s.False(out.Succeeded)
	s.Equal(StageReauthentication, out.FailedStage)
	s.Equal(MsgProviderDown, out.Message)
	s.repo.AssertNotCalled(s.T(), "Write", mock.Anything)
}

func (s *UpdateAccountTestSuite) TestPasswordMismatchMakesNoProviderCalls() {
	s.expectGatePass()

	out := s.svc.UpdateAccount(context.Background(), "u1", UpdateRequest{
		CurrentPassword:         "hunter22",
		NewPassword:             "abc123456",
		NewPasswordConfirmation: "abc123457",
		Asset:                   testAsset("pic.png", "pngbytes"),
	})

	s.False(out.Succeeded)
	s.Equal(StageNone, out.FailedStage)
	s.Equal(MsgPasswordMismatch, out.Message)
	s.provider.AssertNotCalled(s.T(), "ChangeEmail", mock.Anything, mock.Anything, mock.Anything)
	s.provider.AssertNotCalled(s.T(), "ChangePassword", mock.Anything, mock.Anything, mock.Anything)
	s.repo.AssertNotCalled(s.T(), "Write", mock.Anything)
	s.Empty(s.store.keys(), "no bytes may be sent before validation passes")
}

func (s *UpdateAccountTestSuite) TestDisplayNameOnly() {
	s.expectGatePass()
	var written *entity.AccountProfile
	s.repo.On("Write", mock.Anything).Run(func(args mock.Arguments) {
		written = args.Get(0).(*entity.AccountProfile)
	}).Return(nil)

	out := s.svc.UpdateAccount(context.Background(), "u1", UpdateRequest{
		CurrentPassword: "hunter22",
		DisplayName:     "Ada B.",
	})

	s.True(out.Succeeded)
	s.Equal(MsgUpdated, out.Message)
	s.Require().NotNil(written)
	s.Equal("Ada B.", written.DisplayName)
	s.Equal("a@x.com", written.Email)
	s.Equal(s.current.AvatarURL, written.AvatarURL, "avatar unchanged when no asset selected")
	s.provider.AssertNotCalled(s.T(), "ChangeEmail", mock.Anything, mock.Anything, mock.Anything)
	s.provider.AssertNotCalled(s.T(), "ChangePassword", mock.Anything, mock.Anything, mock.Anything)
}

func (s *UpdateAccountTestSuite) TestEmailChangeDispatchesProviderAndProfile() {
	s.expectGatePass()
	s.provider.On("ChangeEmail", mock.Anything, s.verified, "b@x.com").Return(nil)
	var written *entity.AccountProfile
	s.repo.On("Write", mock.Anything).Run(func(args mock.Arguments) {
		written = args.Get(0).(*entity.AccountProfile)
	}).Return(nil)

	out := s.svc.UpdateAccount(context.Background(), "u1", UpdateRequest{
		CurrentPassword: "hunter22",
		Email:           "b@x.com",
	})

	s.True(out.Succeeded)
	s.Require().NotNil(written)
	s.Equal("b@x.com", written.Email)
	s.provider.AssertCalled(s.T(), "ChangeEmail", mock.Anything, s.verified, "b@x.com")
	s.provider.AssertNotCalled(s.T(), "ChangePassword", mock.Anything, mock.Anything, mock.Anything)
}

func (s *UpdateAccountTestSuite) TestAvatarUploadReferenceUsedByProfileWrite() {
	s.expectGatePass()
	var written *entity.AccountProfile
	s.repo.On("Write", mock.Anything).Run(func(args mock.Arguments) {
		written = args.Get(0).(*entity.AccountProfile)
	}).Return(nil)

	out := s.svc.UpdateAccount(context.Background(), "u1", UpdateRequest{
		CurrentPassword: "hunter22",
		Asset:           testAsset("pic.png", "some png bytes"),
	})

	s.True(out.Succeeded)
	s.Require().NotNil(written)
	s.Equal("https://cdn.test/images/pic.png", written.AvatarURL)
	s.Equal([]string{"images/pic.png"}, s.store.keys())
}

func (s *UpdateAccountTestSuite) TestUploadFailureLeavesProfileUntouched() {
	s.expectGatePass()
	s.store.uploadErr = errors.New("bucket rejected transfer")

	out := s.svc.UpdateAccount(context.Background(), "u1", UpdateRequest{
		CurrentPassword: "hunter22",
		Asset:           testAsset("pic.png", "some png bytes"),
	})

	s.False(out.Succeeded)
	s.Equal(StageNone, out.FailedStage)
	s.Equal(MsgUploadFailed, out.Message)
	s.repo.AssertNotCalled(s.T(), "Write", mock.Anything)
}

func (s *UpdateAccountTestSuite) TestFirstFailureInDispatchOrderWins() {
	s.expectGatePass()
	s.provider.On("ChangeEmail", mock.Anything, s.verified, "b@x.com").Return(errors.New("email taken"))
	s.provider.On("ChangePassword", mock.Anything, s.verified, "newpass123").Return(nil)
	s.repo.On("Write", mock.Anything).Return(errors.New("db down"))

	out := s.svc.UpdateAccount(context.Background(), "u1", UpdateRequest{
		CurrentPassword:         "hunter22",
		Email:                   "b@x.com",
		NewPassword:             "newpass123",
		NewPasswordConfirmation: "newpass123",
	})

	s.False(out.Succeeded)
	s.Equal(StageEmailUpdate, out.FailedStage)
	// Siblings keep running even when one fails.
	s.provider.AssertCalled(s.T(), "ChangePassword", mock.Anything, s.verified, "newpass123")
	s.repo.AssertCalled(s.T(), "Write", mock.Anything)
}

func (s *UpdateAccountTestSuite) TestProfileWriteFailure() {
	s.expectGatePass()
	s.repo.On("Write", mock.Anything).Return(errors.New("db down"))

	out := s.svc.UpdateAccount(context.Background(), "u1", UpdateRequest{
		CurrentPassword: "hunter22",
		DisplayName:     "Ada B.",
	})

	s.False(out.Succeeded)
	s.Equal(StageProfileWrite, out.FailedStage)
	s.Equal(MsgUpdateFailed, out.Message)
}

func (s *UpdateAccountTestSuite) TestUnchangedResubmissionIsIdempotent() {
	s.expectGatePass()
	var writes []entity.AccountProfile
	s.repo.On("Write", mock.Anything).Run(func(args mock.Arguments) {
		writes = append(writes, *args.Get(0).(*entity.AccountProfile))
	}).Return(nil)

	req := UpdateRequest{CurrentPassword: "hunter22", DisplayName: "Ada"}
	first := s.svc.UpdateAccount(context.Background(), "u1", req)
	second := s.svc.UpdateAccount(context.Background(), "u1", req)

	s.True(first.Succeeded)
	s.True(second.Succeeded)
	s.Require().Len(writes, 2)
	s.Equal(writes[0].DisplayName, writes[1].DisplayName)
	s.Equal(writes[0].Email, writes[1].Email)
	s.Equal(writes[0].AvatarURL, writes[1].AvatarURL)
	s.provider.AssertNotCalled(s.T(), "ChangeEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateAccountTestSuite(t *testing.T) {
	suite.Run(t, new(UpdateAccountTestSuite))
}
