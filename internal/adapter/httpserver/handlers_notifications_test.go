package httpserver

import (
	"net/http"
	"testing"

	"github.com/pscheid92/faredesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListNotifications(t *testing.T) {
	env := newTestEnv(t)
	env.console.Notifications.Notify("Settlement completed", domain.NotifySuccess, 0)

	rec := env.do(t, http.MethodGet, "/api/notifications", "")

	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]domain.Notification](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Settlement completed", list[0].Message)
	assert.Equal(t, domain.NotifySuccess, list[0].Kind)
}

func TestDismissNotification(t *testing.T) {
	env := newTestEnv(t)
	id := env.console.Notifications.Notify("Heads up", domain.NotifyInfo, 0)

	rec := env.do(t, http.MethodDelete, "/api/notifications/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.console.Notifications.List())

	rec = env.do(t, http.MethodDelete, "/api/notifications/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
