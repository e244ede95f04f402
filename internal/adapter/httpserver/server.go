// Package httpserver exposes the console runtime over a JSON API and a
// WebSocket notification stream.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	adaptermetrics "github.com/pscheid92/faredesk/internal/adapter/metrics"
	"github.com/pscheid92/faredesk/internal/app"
	"github.com/pscheid92/faredesk/internal/platform/config"
	apperrors "github.com/pscheid92/faredesk/internal/platform/errors"
)

// ConsoleProvider hands out the console runtime currently serving requests.
// Current returns nil while a reload is swapping runtimes.
type ConsoleProvider interface {
	Current() *app.Console
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	consoles     ConsoleProvider
	healthChecks []HealthCheck
	startTime    time.Time

	registry    *prometheus.Registry
	httpMetrics *adaptermetrics.HTTPMetrics
	upgrader    websocket.Upgrader
}

func NewServer(cfg *config.Config, consoles ConsoleProvider, registry *prometheus.Registry, healthChecks []HealthCheck, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		clock:        clock,
		consoles:     consoles,
		healthChecks: healthChecks,
		startTime:    clock.Now(),
		registry:     registry,
		httpMetrics:  adaptermetrics.NewHTTPMetrics(registry),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     sameOrigin,
		},
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// console returns the live runtime or an unavailable error during a reload.
func (s *Server) console() (*app.Console, error) {
	c := s.consoles.Current()
	if c == nil {
		return nil, apperrors.UnavailableError("console is reloading", nil)
	}
	return c, nil
}

func writeJSON(c echo.Context, status int, body any) error {
	if err := c.JSON(status, body); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
