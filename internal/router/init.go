package router

import (
	"github.com/LeL010/project2-spork-bootcamp/internal/application"
	"github.com/LeL010/project2-spork-bootcamp/internal/container"
	"github.com/LeL010/project2-spork-bootcamp/internal/infrastructure/gcs"
	pginfra "github.com/LeL010/project2-spork-bootcamp/internal/infrastructure/postgres"
	handlers "github.com/LeL010/project2-spork-bootcamp/internal/interface/http"
	"github.com/LeL010/project2-spork-bootcamp/internal/router/modules"
)

func buildAccountHandler() *handlers.AccountHandler {
	cfg := container.GetConfig()
	pool := container.GetPGPool()

	repo := pginfra.NewProfileRepository(pool)
	provider := pginfra.NewLocalProvider(pool)
	objects := gcs.NewStore(container.GetGCS(), cfg.GCSBucket)

	var pub = container.GetRabbitPub()
	if !cfg.MailSendEnabled {
		pub = nil
	}

	service := application.NewService(
		repo,
		provider,
		objects,
		container.GetJWT(),
		container.GetRedis(),
		container.GetLogger(),
		container.GetES(),
		cfg.ESProfilesIndex,
		pub,
	)

	return handlers.NewAccountHandler(
		service,
		container.GetJWT(),
		container.GetLogger(),
		cfg.CookieDomain,
		cfg.CookieSecure,
	)
}

// InitModules initializes all application modules and registers them with
// the router registry. Called once during startup.
func InitModules(r *Registry) {
	r.Add(modules.NewAccountModule(buildAccountHandler(), container.GetJWT()))
	if cfg := container.GetConfig(); cfg != nil && cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
