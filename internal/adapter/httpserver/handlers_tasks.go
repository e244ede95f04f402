package httpserver

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/faredesk/internal/domain"
	apperrors "github.com/pscheid92/faredesk/internal/platform/errors"
)

const maxPayloadBytes = 1 << 20

func (s *Server) registerTaskRoutes(g *echo.Group) {
	g.GET("/tasks", s.handleListTasks)
	g.POST("/tasks/stop-all", s.handleStopAllMonitors)
	g.POST("/tasks/force-stop", s.handleForceStop)
	g.DELETE("/tasks/completed", s.handleClearCompleted)
	g.POST("/tasks/:type", s.handleRunTask)
}

type tasksView struct {
	Current  *domain.BackgroundTask  `json:"current"`
	Tasks    []domain.BackgroundTask `json:"tasks"`
	Monitors int                     `json:"monitors"`
}

func (s *Server) handleListTasks(c echo.Context) error {
	console, err := s.console()
	if err != nil {
		return err
	}

	view := tasksView{
		Tasks:    console.Tasks.GetAllTasks(),
		Monitors: console.Orchestrator.MonitorCount(),
	}
	if cur, ok := console.Tasks.CurrentTask(); ok {
		view.Current = &cur
	}
	return writeJSON(c, http.StatusOK, view)
}

// handleRunTask starts a task; the request body, if any, is its JSON payload.
// The response is sent as soon as the task is registered.
func (s *Server) handleRunTask(c echo.Context) error {
	console, err := s.console()
	if err != nil {
		return err
	}

	taskType := domain.TaskType(c.Param("type"))
	if !taskType.Valid() {
		return apperrors.ValidationError(domain.ErrUnknownTaskType.Error()).WithField("type", string(taskType))
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPayloadBytes+1))
	if err != nil {
		return apperrors.ValidationError("failed to read request body")
	}
	if len(body) > maxPayloadBytes {
		return apperrors.ValidationError("payload too large")
	}
	var payload json.RawMessage
	if len(body) > 0 {
		if !json.Valid(body) {
			return apperrors.ValidationError("payload must be JSON")
		}
		payload = body
	}

	task, err := console.Orchestrator.Run(c.Request().Context(), taskType, payload)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusAccepted, task)
}

func (s *Server) handleClearCompleted(c echo.Context) error {
	console, err := s.console()
	if err != nil {
		return err
	}
	console.Tasks.ClearCompletedTasks()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleStopAllMonitors(c echo.Context) error {
	console, err := s.console()
	if err != nil {
		return err
	}
	stopped := console.Orchestrator.MonitorCount()
	console.Orchestrator.StopAll()
	return writeJSON(c, http.StatusOK, map[string]int{"stopped": stopped})
}

func (s *Server) handleForceStop(c echo.Context) error {
	console, err := s.console()
	if err != nil {
		return err
	}
	if err := console.Orchestrator.ForceStop(c.Request().Context()); err != nil {
		return apperrors.InternalError("failed to record force stop", err)
	}
	return c.NoContent(http.StatusAccepted)
}
