package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/faredesk/internal/domain"
	apperrors "github.com/pscheid92/faredesk/internal/platform/errors"
)

func (s *Server) registerNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", s.handleListNotifications)
	g.GET("/notifications/stream", s.handleNotificationStream)
	g.DELETE("/notifications/:id", s.handleDismissNotification)
}

func (s *Server) handleListNotifications(c echo.Context) error {
	console, err := s.console()
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, console.Notifications.List())
}

func (s *Server) handleDismissNotification(c echo.Context) error {
	console, err := s.console()
	if err != nil {
		return err
	}

	id := c.Param("id")
	if err := console.Notifications.Dismiss(id); err != nil {
		if errors.Is(err, domain.ErrNotificationGone) {
			return apperrors.NotFoundError("notification not found").WithField("id", id)
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
