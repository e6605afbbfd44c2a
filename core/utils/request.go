package utils

import (
	"strings"
	"syncup-api/core/constants"

	"github.com/labstack/echo/v4"
)

// GetTokenFromHeader returns the bearer token from the Authorization header.
func GetTokenFromHeader(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// GetTokenFromRequest prefers the Authorization header and falls back to the session cookie.
func GetTokenFromRequest(c echo.Context, cookieName string) string {
	if token := GetTokenFromHeader(c); token != "" {
		return token
	}
	if cookieName == "" {
		return ""
	}
	cookie, err := c.Cookie(cookieName)
	if err != nil || cookie == nil {
		return ""
	}
	return cookie.Value
}

// GetClaims returns the token claims stored by the auth middleware, or nil.
func GetClaims(c echo.Context) *TokenClaims {
	claims, ok := c.Get(constants.ContextTokenData).(*TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// GetRawToken returns the token string stored by the auth middleware.
func GetRawToken(c echo.Context) string {
	raw, _ := c.Get(constants.ContextTokenRaw).(string)
	return raw
}
