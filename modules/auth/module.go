package auth

import (
	"syncup-api/core/cache"
	"syncup-api/core/config"
	"syncup-api/core/database"
	"syncup-api/core/logger"
	"syncup-api/core/middleware"
	"syncup-api/modules/auth/controller"
	"syncup-api/modules/auth/repository"
	"syncup-api/modules/auth/router"
	"syncup-api/modules/auth/service"

	"github.com/labstack/echo/v4"
)

// NewService builds the auth service used by the HTTP module and the worker.
func NewService(db database.Database, redis cache.Cache, cfg *config.Config) *service.AuthService {
	repo := repository.NewAuthRepository(db)
	providers := service.NewProviders(cfg)
	if len(providers) == 0 {
		logger.Warn("Auth:Init:NoProviders", "reason", "no OAuth credentials configured")
	}
	return service.NewAuthService(repo, redis, providers, cfg.JWT)
}

// Init registers auth routes and returns the middleware other modules guard their routes with.
func Init(e *echo.Echo, db database.Database, redis cache.Cache, cfg *config.Config) *middleware.Middleware {
	authService := NewService(db, redis, cfg)
	mw := middleware.NewMiddleware(authService, cfg.Session.CookieName)

	ctrl := controller.NewAuthController(authService, controller.SessionCookie{
		Name:   cfg.Session.CookieName,
		Secure: cfg.IsProduction(),
		TTL:    cfg.JWT.AccessTokenTTL,
	}, cfg.Frontend.URL)
	router.NewAuthRouter(ctrl).Setup(e, mw)

	return mw
}
