package httpserver

import (
	"net/http"
	"testing"
	"time"

	apperrors "github.com/pscheid92/faredesk/internal/platform/errors"
	"github.com/pscheid92/faredesk/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSession_BeforeInitialize(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/session", "")

	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[sessionView](t, rec)
	assert.Equal(t, session.StateUninitialized, view.State)
	assert.False(t, view.HasSession)
	assert.Equal(t, "Unverified agency", view.DisplayName)
	assert.Equal(t, "UNKNOWN", view.AgencyLevel)
	assert.Nil(t, view.Permissions)
}

func TestGetSession_ActiveHidesHandle(t *testing.T) {
	env := newTestEnv(t)
	env.startSession(t)

	rec := env.do(t, http.MethodGet, "/api/session", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "S1")
	view := decode[sessionView](t, rec)
	assert.True(t, view.HasSession)
	assert.True(t, view.IsActive)
	assert.Equal(t, "OPER_KR", view.AgencyCode)
	assert.Equal(t, "National Transit Operator", view.DisplayName)
	assert.Equal(t, "SERVICE", view.AgencyLevel)
	require.NotNil(t, view.Permissions)
	assert.True(t, view.Permissions.Settlement)
	assert.False(t, view.Permissions.MockSettlement)
}

func TestRefreshSession(t *testing.T) {
	env := newTestEnv(t)
	env.startSession(t)

	rec := env.do(t, http.MethodPost, "/api/session/refresh", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.StateActive, decode[sessionView](t, rec).State)
}

func TestClearSession(t *testing.T) {
	env := newTestEnv(t)
	env.startSession(t)

	rec := env.do(t, http.MethodPost, "/api/session/clear", "")

	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[sessionView](t, rec)
	assert.False(t, view.HasSession)
	assert.Equal(t, session.StateUninitialized, view.State)
}

func TestInitializeSession_AfterClear(t *testing.T) {
	env := newTestEnv(t)
	env.startSession(t)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/session/clear", "").Code)

	rec := env.do(t, http.MethodPost, "/api/session/initialize", "")

	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[sessionView](t, rec)
	assert.True(t, view.HasSession)
	assert.True(t, view.IsActive)
	assert.Equal(t, session.StateActive, view.State)
	assert.Equal(t, "OPER_KR", view.AgencyCode)
}

func TestInitializeSession_NoopWhenEstablished(t *testing.T) {
	env := newTestEnv(t)
	env.startSession(t)

	rec := env.do(t, http.MethodPost, "/api/session/initialize", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.StateActive, decode[sessionView](t, rec).State)
}

func TestRecordActivity(t *testing.T) {
	env := newTestEnv(t)
	env.startSession(t)
	before := env.console.Session.Record().LastActivity

	env.clock.Advance(90 * time.Second)
	rec := env.do(t, http.MethodPost, "/api/session/activity", `{"signal":"pointer"}`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, env.console.Session.Record().LastActivity.After(before))
}

func TestRecordActivity_UnknownSignal(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/session/activity", `{"signal":"blink"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[apperrors.ErrorResponse](t, rec)
	assert.Equal(t, apperrors.TypeValidation, resp.Type)
}

func TestCanAccess(t *testing.T) {
	env := newTestEnv(t)
	env.startSession(t)

	tests := []struct {
		feature    string
		wantStatus int
		wantBody   string
	}{
		{"settlement", http.StatusOK, `{"feature":"settlement","allowed":true}`},
		{"administration", http.StatusOK, `{"feature":"administration","allowed":false}`},
		{"teleport", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.feature, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/session/access/"+tt.feature, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestSessionRoutes_UnavailableDuringReload(t *testing.T) {
	env := newTestEnv(t)
	env.holder.current.Store(nil)

	rec := env.do(t, http.MethodGet, "/api/session", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, apperrors.TypeUnavailable, decode[apperrors.ErrorResponse](t, rec).Type)
}
