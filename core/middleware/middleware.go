package middleware

import (
	"context"
	"syncup-api/core/constants"
	"syncup-api/core/controller"
	"syncup-api/core/errors"
	"syncup-api/core/utils"

	"github.com/labstack/echo/v4"
)

// TokenValidator verifies a session token, including the revocation check.
type TokenValidator interface {
	ValidateSessionToken(ctx context.Context, token string) (*utils.TokenClaims, *errors.AppError)
}

type Middleware struct {
	controller.BaseController
	validator  TokenValidator
	cookieName string
}

func NewMiddleware(validator TokenValidator, cookieName string) *Middleware {
	if cookieName == "" {
		cookieName = constants.DefaultSessionCookieName
	}
	return &Middleware{
		BaseController: controller.NewBaseController(),
		validator:      validator,
		cookieName:     cookieName,
	}
}

// AuthMiddleware rejects requests without a valid session token.
func (m *Middleware) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := utils.GetTokenFromRequest(c, m.cookieName)
			if token == "" {
				return m.Unauthorized(errors.ErrMissingAuthorizationHeader, "Missing session token")
			}

			claims, appErr := m.validator.ValidateSessionToken(c.Request().Context(), token)
			if appErr != nil {
				return m.AppErrorResponse(appErr)
			}

			c.Set(constants.ContextTokenData, claims)
			c.Set(constants.ContextTokenRaw, token)
			return next(c)
		}
	}
}

// OptionalAuthMiddleware attaches claims when a valid token is present and
// otherwise lets the request through anonymously.
func (m *Middleware) OptionalAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := utils.GetTokenFromRequest(c, m.cookieName)
			if token == "" {
				return next(c)
			}

			claims, appErr := m.validator.ValidateSessionToken(c.Request().Context(), token)
			if appErr == nil {
				c.Set(constants.ContextTokenData, claims)
				c.Set(constants.ContextTokenRaw, token)
			}
			return next(c)
		}
	}
}
