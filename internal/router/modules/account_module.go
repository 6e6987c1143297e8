package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LeL010/project2-spork-bootcamp/internal/container"
	handlers "github.com/LeL010/project2-spork-bootcamp/internal/interface/http"
	"github.com/LeL010/project2-spork-bootcamp/internal/interface/middleware"
	"github.com/LeL010/project2-spork-bootcamp/pkg/helpers"
)

// AccountModule wires the account handlers and JWT middleware into routes.
// Public: POST /api/login, POST /api/refresh
// Protected: POST /api/logout, GET /api/account, PUT /api/account,
// GET /api/account/upload-progress

type AccountModule struct {
	Handler *handlers.AccountHandler
	JWT     *helpers.JWTManager
}

func NewAccountModule(h *handlers.AccountHandler, jwt *helpers.JWTManager) *AccountModule {
	return &AccountModule{Handler: h, JWT: jwt}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	// Public with rate limiting
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)
	refreshLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), nil)

	rg.POST("/login", loginLimiter, m.Handler.Login)
	rg.POST("/refresh", refreshLimiter, m.Handler.Refresh)

	// Protected
	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	auth.Use(
		middleware.RateLimit(container.GetRedis(), 300, time.Minute, middleware.KeyByIP(), middleware.AllowPrivateIP()),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.GET("/account", m.Handler.GetProfile)
		auth.PUT("/account", m.Handler.UpdateAccount)
		auth.GET("/account/upload-progress", m.Handler.UploadProgress)
	}
}
