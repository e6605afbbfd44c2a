package controller

import (
	"net/http"
	"net/url"
	"strings"
	"syncup-api/core/controller"
	"syncup-api/core/logger"
	"syncup-api/core/utils"
	"syncup-api/modules/auth/dto"
	"syncup-api/modules/auth/service"
	"time"

	"github.com/labstack/echo/v4"
)

// SessionCookie configures the cookie that carries the session token.
type SessionCookie struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

type AuthController struct {
	controller.BaseController
	AuthService service.AuthServiceInterface
	cookie      SessionCookie
	frontendURL string
}

func NewAuthController(authService service.AuthServiceInterface, cookie SessionCookie, frontendURL string) *AuthController {
	return &AuthController{
		BaseController: controller.NewBaseController(),
		AuthService:    authService,
		cookie:         cookie,
		frontendURL:    strings.TrimRight(frontendURL, "/"),
	}
}

// Providers handles GET /public/auth/providers
func (controller *AuthController) Providers(c echo.Context) error {
	return controller.SuccessResponse(c, dto.ProvidersResponse{Providers: controller.AuthService.Providers()}, "OAuth providers")
}

// Login handles GET /public/auth/:provider and redirects to the provider's consent page.
func (controller *AuthController) Login(c echo.Context) error {
	authURL, appErr := controller.AuthService.GetAuthURL(c.Request().Context(), c.Param("provider"), c.QueryParam("return_to"))
	if appErr != nil {
		return controller.AppErrorResponse(appErr)
	}
	return c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// Callback handles GET /public/auth/:provider/callback. On success the session
// cookie is set and the browser goes back to the frontend.
func (controller *AuthController) Callback(c echo.Context) error {
	if errorParam := c.QueryParam("error"); errorParam != "" {
		logger.Warn("AuthController:Callback:ProviderError",
			"provider", c.Param("provider"),
			"error", errorParam,
			"description", c.QueryParam("error_description"),
		)
		return c.Redirect(http.StatusFound, controller.frontendURL+"/?auth_error="+url.QueryEscape(errorParam))
	}

	result, appErr := controller.AuthService.HandleCallback(c.Request().Context(),
		c.Param("provider"), c.QueryParam("code"), c.QueryParam("state"))
	if appErr != nil {
		return controller.AppErrorResponse(appErr)
	}

	c.SetCookie(controller.sessionCookie(result.Token, int(controller.cookie.TTL.Seconds())))
	return c.Redirect(http.StatusFound, controller.frontendURL+result.ReturnTo)
}

// Me handles GET /private/auth/me
func (controller *AuthController) Me(c echo.Context) error {
	me, appErr := controller.AuthService.GetMe(c.Request().Context(), utils.GetClaims(c))
	if appErr != nil {
		return controller.AppErrorResponse(appErr)
	}
	return controller.SuccessResponse(c, me, "Get me successfully")
}

// Logout handles POST /private/auth/logout
func (controller *AuthController) Logout(c echo.Context) error {
	if appErr := controller.AuthService.Logout(c.Request().Context(), utils.GetRawToken(c)); appErr != nil {
		return controller.AppErrorResponse(appErr)
	}

	c.SetCookie(controller.sessionCookie("", -1))
	return controller.SuccessResponse(c, nil, "Logout success")
}

func (controller *AuthController) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     controller.cookie.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   controller.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
