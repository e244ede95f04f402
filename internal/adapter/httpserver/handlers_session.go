package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/faredesk/internal/domain"
	apperrors "github.com/pscheid92/faredesk/internal/platform/errors"
	"github.com/pscheid92/faredesk/internal/session"
)

func (s *Server) registerSessionRoutes(g *echo.Group) {
	g.GET("/session", s.handleGetSession)
	g.POST("/session/initialize", s.handleInitializeSession)
	g.POST("/session/refresh", s.handleRefreshSession)
	g.POST("/session/clear", s.handleClearSession)
	g.POST("/session/activity", s.handleRecordActivity)
	g.GET("/session/access/:feature", s.handleCanAccess)
}

// sessionView is the session as shown to the browser. The handle itself
// never leaves the server.
type sessionView struct {
	State        session.State       `json:"state"`
	HasSession   bool                `json:"hasSession"`
	IsActive     bool                `json:"isActive"`
	LastActivity time.Time           `json:"lastActivity"`
	AgencyCode   string              `json:"agencyCode,omitempty"`
	Agency       *domain.Agency      `json:"agency"`
	Permissions  *domain.Permissions `json:"permissions"`
	DisplayName  string              `json:"displayName"`
	AgencyLevel  string              `json:"agencyLevel"`
}

func newSessionView(m *session.Manager) sessionView {
	rec := m.Record()
	return sessionView{
		State:        m.State(),
		HasSession:   rec.SessionID != "",
		IsActive:     rec.IsActive,
		LastActivity: rec.LastActivity,
		AgencyCode:   rec.AgencyCode,
		Agency:       rec.Agency,
		Permissions:  rec.Permissions,
		DisplayName:  m.DisplayName(),
		AgencyLevel:  m.AgencyLevel(),
	}
}

func (s *Server) handleGetSession(c echo.Context) error {
	console, err := s.console()
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, newSessionView(console.Session))
}

// handleInitializeSession acquires a handle when none is held, typically
// after a clear. It does nothing while a session is established.
func (s *Server) handleInitializeSession(c echo.Context) error {
	console, err := s.console()
	if err != nil {
		return err
	}
	console.Session.Initialize(c.Request().Context())
	return writeJSON(c, http.StatusOK, newSessionView(console.Session))
}

// handleRefreshSession renews the handle and answers with the state after the
// authority call. Failures are reported through notifications and the state.
func (s *Server) handleRefreshSession(c echo.Context) error {
	console, err := s.console()
	if err != nil {
		return err
	}
	console.Session.Refresh(c.Request().Context())
	return writeJSON(c, http.StatusOK, newSessionView(console.Session))
}

func (s *Server) handleClearSession(c echo.Context) error {
	console, err := s.console()
	if err != nil {
		return err
	}
	console.Session.Clear(c.Request().Context())
	return writeJSON(c, http.StatusOK, newSessionView(console.Session))
}

type activityRequest struct {
	Signal domain.ActivitySignal `json:"signal"`
}

func (s *Server) handleRecordActivity(c echo.Context) error {
	console, err := s.console()
	if err != nil {
		return err
	}

	var req activityRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if err := console.Session.RecordActivity(req.Signal); err != nil {
		return apperrors.ValidationError(err.Error()).WithField("signal", string(req.Signal))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleCanAccess(c echo.Context) error {
	console, err := s.console()
	if err != nil {
		return err
	}

	feature := domain.Feature(c.Param("feature"))
	if !feature.Valid() {
		return apperrors.ValidationError(domain.ErrUnknownFeature.Error()).WithField("feature", string(feature))
	}
	return writeJSON(c, http.StatusOK, map[string]any{
		"feature": feature,
		"allowed": console.Session.CanAccess(feature),
	})
}
