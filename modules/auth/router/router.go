package router

import (
	"syncup-api/core/middleware"
	"syncup-api/modules/auth/controller"

	"github.com/labstack/echo/v4"
)

type AuthRouter struct {
	AuthController *controller.AuthController
}

func NewAuthRouter(authController *controller.AuthController) *AuthRouter {
	return &AuthRouter{AuthController: authController}
}

// Setup registers auth routes
func (r *AuthRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	publicRoutes := v1.Group("/public/auth")
	publicRoutes.GET("/providers", r.AuthController.Providers)
	publicRoutes.GET("/:provider", r.AuthController.Login)
	publicRoutes.GET("/:provider/callback", r.AuthController.Callback)

	privateRoutes := v1.Group("/private/auth", mw.AuthMiddleware())
	privateRoutes.GET("/me", r.AuthController.Me)
	privateRoutes.POST("/logout", r.AuthController.Logout)
}
