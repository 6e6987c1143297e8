package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/LeL010/project2-spork-bootcamp/internal/application"
	"github.com/LeL010/project2-spork-bootcamp/internal/domain/entity"
	"github.com/LeL010/project2-spork-bootcamp/pkg/helpers"
	"github.com/LeL010/project2-spork-bootcamp/pkg/response"
	"github.com/LeL010/project2-spork-bootcamp/pkg/validation"
)

// redirectDelaySeconds is how long the client shows the success banner
// before navigating back to the home view.
const redirectDelaySeconds = 3

type AccountHandler struct {
	Svc     *application.Service
	JWT     *helpers.JWTManager
	Logger  *logrus.Logger
	Cookies *helpers.Manager
}

func NewAccountHandler(svc *application.Service, jwt *helpers.JWTManager, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *AccountHandler {
	return &AccountHandler{Svc: svc, JWT: jwt, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
}

// updateAccountRequest is the multipart account form. Empty optional fields
// mean "unchanged". The avatar file rides alongside as form file "avatar".
type updateAccountRequest struct {
	DisplayName     string `form:"display_name"`
	Email           string `form:"email" binding:"omitempty,email"`
	CurrentPassword string `form:"current_password" binding:"required"`
	NewPassword     string `form:"new_password" binding:"omitempty,pwd"`
	ConfirmPassword string `form:"confirm_password"`
}

func (h *AccountHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, pair, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, res, "login successful", map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

func (h *AccountHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie("refresh_token")
	if err != nil || refresh == "" {
		response.Error[any](c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	pair, _, err := h.Svc.Refresh(c.Request.Context(), refresh)
	if err != nil {
		response.Error[any](c, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success[any](c, http.StatusOK, map[string]any{"refreshed": true}, "token refreshed", map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

func (h *AccountHandler) Logout(c *gin.Context) {
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, map[string]any{"logged_out": true}, "logged out", nil)
}

func (h *AccountHandler) GetProfile(c *gin.Context) {
	uid := c.GetString("userID")
	p, err := h.Svc.GetProfile(uid)
	if err != nil {
		response.Error[any](c, http.StatusNotFound, "user not found", nil)
		return
	}
	response.Success(c, http.StatusOK, profilePayload(p), "profile", nil)
}

// UpdateAccount handles the account form submission: display name, email,
// password change, and avatar upload in one request. The current password
// is required so the submit precondition is enforced server-side too.
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	uid := c.GetString("userID")

	var req updateAccountRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	update := application.UpdateRequest{
		DisplayName:             req.DisplayName,
		Email:                   req.Email,
		CurrentPassword:         req.CurrentPassword,
		NewPassword:             req.NewPassword,
		NewPasswordConfirmation: req.ConfirmPassword,
	}

	if fh, err := c.FormFile("avatar"); err == nil && fh != nil {
		f, oErr := fh.Open()
		if oErr != nil {
			response.Error[any](c, http.StatusBadRequest, "could not read uploaded file", nil)
			return
		}
		defer func() { _ = f.Close() }()
		update.Asset = &application.Asset{
			Filename:    filepath.Base(fh.Filename),
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Content:     f,
		}
	}

	out := h.Svc.UpdateAccount(c.Request.Context(), uid, update)
	if !out.Succeeded {
		response.Error[any](c, statusForOutcome(out), out.Message, map[string]any{"failed_stage": out.FailedStage.String()})
		return
	}
	response.Success(c, http.StatusOK, profilePayload(out.Profile), out.Message, map[string]any{
		"redirect":               "/",
		"redirect_after_seconds": redirectDelaySeconds,
	})
}

// UploadProgress reports the mirrored avatar-upload progress for the
// in-flight submission, for the client's progress bar.
func (h *AccountHandler) UploadProgress(c *gin.Context) {
	uid := c.GetString("userID")
	data, err := h.Svc.UploadProgress(c.Request.Context(), uid)
	if err != nil {
		response.Error[any](c, http.StatusServiceUnavailable, "progress unavailable", nil)
		return
	}
	response.Success(c, http.StatusOK, data, "upload progress", nil)
}

func statusForOutcome(out application.UpdateOutcome) int {
	switch {
	case out.FailedStage == application.StageReauthentication && out.Message == application.MsgProviderDown:
		return http.StatusServiceUnavailable
	case out.FailedStage == application.StageReauthentication:
		return http.StatusUnauthorized
	case out.FailedStage == application.StageNone && out.Message == application.MsgUploadFailed:
		return http.StatusBadGateway
	case out.FailedStage == application.StageNone && out.Message == application.MsgUpdateInFlight:
		return http.StatusConflict
	case out.FailedStage == application.StageNone:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func profilePayload(p *entity.AccountProfile) gin.H {
	return gin.H{
		"user_id":       p.UserID,
		"display_name":  p.DisplayName,
		"email":         p.Email,
		"avatar_url":    p.AvatarURL,
		"auth_provider": p.AuthProvider,
		"created_at":    p.CreatedAt,
		"updated_at":    p.UpdatedAt,
	}
}
