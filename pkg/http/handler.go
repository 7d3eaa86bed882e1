package http

import (
	"context"

	"github.com/labstack/echo/v4"
)

// Handler defines HTTP route registration interface.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// HealthCheck reports readiness. A non-nil error answers /healthz with 503.
type HealthCheck func(ctx context.Context) error
