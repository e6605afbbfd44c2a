package middleware

import (
	"context"
	"net/http"
	"syncup-api/core/logger"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// RequestLogger logs one line per request through core/logger.
func RequestLogger() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				args = append(args, "error", v.Error)
				logger.Warn("HTTP:Request", args...)
				return nil
			}
			logger.Info("HTTP:Request", args...)
			return nil
		},
	})
}

// CORS allows the frontend origin to call the API with credentials (the session cookie).
func CORS(frontendURL string) echo.MiddlewareFunc {
	origins := []string{"*"}
	if frontendURL != "" {
		origins = []string{frontendURL}
	}
	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: frontendURL != "",
	})
}

// WindowCounter counts hits in a fixed window.
type WindowCounter interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimit is a fixed-window limiter keyed by client IP. When the counter
// fails the request is let through.
func (m *Middleware) RateLimit(counter WindowCounter, prefix string, limit int, window time.Duration) echo.MiddlewareFunc {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if counter == nil {
				return next(c)
			}
			key := prefix + ":" + c.RealIP()
			count, err := counter.IncrementWindow(c.Request().Context(), key, window)
			if err != nil {
				logger.Warn("Middleware:RateLimit:CounterFailed", "key", key, "error", err)
				return next(c)
			}
			if count > int64(limit) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
