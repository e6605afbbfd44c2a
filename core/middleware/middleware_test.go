package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"syncup-api/core/errors"
	"syncup-api/core/utils"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct {
	valid map[string]*utils.TokenClaims
}

func (f *fakeValidator) ValidateSessionToken(_ context.Context, token string) (*utils.TokenClaims, *errors.AppError) {
	if claims, ok := f.valid[token]; ok {
		return claims, nil
	}
	return nil, errors.NewAppError(errors.ErrUnauthorized, "invalid token", nil)
}

func newTestMiddleware() *Middleware {
	return NewMiddleware(&fakeValidator{valid: map[string]*utils.TokenClaims{
		"good": {Username: "alice"},
	}}, "syncup_session")
}

func run(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, *utils.TokenClaims, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen *utils.TokenClaims
	err := mw(func(c echo.Context) error {
		seen = utils.GetClaims(c)
		return c.NoContent(http.StatusNoContent)
	})(c)
	return rec, seen, err
}

func TestAuthMiddleware(t *testing.T) {
	m := newTestMiddleware()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, _, err := run(t, m.AuthMiddleware(), req)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer bad")
	_, _, err = run(t, m.AuthMiddleware(), req)
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "syncup_session", Value: "good"})
	rec, claims, err := run(t, m.AuthMiddleware(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "alice", claims.Username)
}

func TestOptionalAuthMiddleware(t *testing.T) {
	m := newTestMiddleware()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer bad")
	rec, claims, err := run(t, m.OptionalAuthMiddleware(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, claims)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer good")
	_, claims, err = run(t, m.OptionalAuthMiddleware(), req)
	require.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, "alice", claims.Username)
}

type memCounter struct {
	hits map[string]int64
}

func (m *memCounter) IncrementWindow(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.hits[key]++
	return m.hits[key], nil
}

func TestRateLimit(t *testing.T) {
	m := newTestMiddleware()
	limiter := m.RateLimit(&memCounter{hits: map[string]int64{}}, "test", 2, time.Minute)

	for i := 0; i < 2; i++ {
		_, _, err := run(t, limiter, httptest.NewRequest(http.MethodPost, "/", nil))
		require.NoError(t, err)
	}

	_, _, err := run(t, limiter, httptest.NewRequest(http.MethodPost, "/", nil))
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Code)
}
