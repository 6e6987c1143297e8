package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeL010/project2-spork-bootcamp/internal/application"
	"github.com/LeL010/project2-spork-bootcamp/internal/domain/entity"
	"github.com/LeL010/project2-spork-bootcamp/internal/domain/identity"
	"github.com/LeL010/project2-spork-bootcamp/internal/domain/objectstore"
	"github.com/LeL010/project2-spork-bootcamp/pkg/validation"
)

type stubRepo struct {
	profile  *entity.AccountProfile
	writeErr error
	written  *entity.AccountProfile
}

func (r *stubRepo) Create(*entity.AccountProfile) error { return nil }

func (r *stubRepo) GetByID(string) (*entity.AccountProfile, error) {
	if r.profile == nil {
		return nil, errors.New("not found")
	}
	return r.profile, nil
}

func (r *stubRepo) GetByEmail(string) (*entity.AccountProfile, error) {
	return r.GetByID("")
}

func (r *stubRepo) Write(p *entity.AccountProfile) error {
	r.written = p
	return r.writeErr
}

type stubProvider struct {
	verifyErr error
}

func (p *stubProvider) VerifyCredential(_ context.Context, email, _ string) (identity.VerifiedSession, error) {
	if p.verifyErr != nil {
		return identity.VerifiedSession{}, p.verifyErr
	}
	return identity.VerifiedSession{UserID: "u1", Email: email}, nil
}

func (p *stubProvider) ChangeEmail(context.Context, identity.VerifiedSession, string) error {
	return nil
}

func (p *stubProvider) ChangePassword(context.Context, identity.VerifiedSession, string) error {
	return nil
}

type stubStore struct{}

func (stubStore) Upload(_ context.Context, _, _ string, r io.Reader, _ int64, _ objectstore.ProgressFunc) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

func (stubStore) ResolveURL(_ context.Context, key string) (string, error) {
	return "https://cdn.test/" + key, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func accountRouter(repo *stubRepo, provider *stubProvider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validation.Init()

	svc := application.NewService(repo, provider, stubStore{}, nil, nil, quietLogger(), nil, "", nil)
	h := &AccountHandler{Svc: svc, Logger: quietLogger()}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "u1")
	})
	r.PUT("/api/account", h.UpdateAccount)
	return r
}

func demoProfile() *entity.AccountProfile {
	return &entity.AccountProfile{
		UserID:       "u1",
		DisplayName:  "Ada",
		Email:        "a@x.com",
		AvatarURL:    "https://cdn.test/images/old.png",
		AuthProvider: entity.AuthProviderLocal,
	}
}

type envelope struct {
	Status  int               `json:"status"`
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    map[string]any    `json:"data"`
	Meta    map[string]any    `json:"meta"`
	Error   map[string]string `json:"error"`
}

func doForm(t *testing.T, r *gin.Engine, form url.Values) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/api/account", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestUpdateAccountRequiresCurrentPassword(t *testing.T) {
	r := accountRouter(&stubRepo{profile: demoProfile()}, &stubProvider{})

	w, env := doForm(t, r, url.Values{"display_name": {"Ada B."}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "is required", env.Error["current_password"])
}

func TestUpdateAccountWrongPassword(t *testing.T) {
	r := accountRouter(&stubRepo{profile: demoProfile()}, &stubProvider{verifyErr: identity.ErrInvalidCredential})

	w, env := doForm(t, r, url.Values{
		"display_name":     {"Ada B."},
		"current_password": {"wrong-password"},
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, application.MsgWrongPassword, env.Message)
	assert.Equal(t, "reauthentication", env.Error["failed_stage"])
}

func TestUpdateAccountSuccessCarriesRedirect(t *testing.T) {
	repo := &stubRepo{profile: demoProfile()}
	r := accountRouter(repo, &stubProvider{})

	w, env := doForm(t, r, url.Values{
		"display_name":     {"Ada B."},
		"current_password": {"hunter22"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, application.MsgUpdated, env.Message)
	assert.Equal(t, "/", env.Meta["redirect"])
	assert.EqualValues(t, 3, env.Meta["redirect_after_seconds"])
	assert.Equal(t, "Ada B.", env.Data["display_name"])
	require.NotNil(t, repo.written)
	assert.Equal(t, "Ada B.", repo.written.DisplayName)
}

func TestUpdateAccountPasswordMismatch(t *testing.T) {
	r := accountRouter(&stubRepo{profile: demoProfile()}, &stubProvider{})

	w, env := doForm(t, r, url.Values{
		"current_password": {"hunter22"},
		"new_password":     {"newpass123"},
		"confirm_password": {"newpass124"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, application.MsgPasswordMismatch, env.Message)
	assert.Equal(t, "none", env.Error["failed_stage"])
}

func TestUpdateAccountMultipartAvatar(t *testing.T) {
	repo := &stubRepo{profile: demoProfile()}
	r := accountRouter(repo, &stubProvider{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("current_password", "hunter22"))
	part, err := mw.CreateFormFile("avatar", "pic.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("some png bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/account", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://cdn.test/images/pic.png", env.Data["avatar_url"])
	require.NotNil(t, repo.written)
	assert.Equal(t, "https://cdn.test/images/pic.png", repo.written.AvatarURL)
}

func TestUpdateAccountProviderDown(t *testing.T) {
	r := accountRouter(&stubRepo{profile: demoProfile()}, &stubProvider{
		verifyErr: fmt.Errorf("%w: connection refused", identity.ErrUnavailable),
	})

	w, env := doForm(t, r, url.Values{"current_password": {"hunter22"}})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, application.MsgProviderDown, env.Message)
}
