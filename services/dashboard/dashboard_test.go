// Copyright (C) 2025 MetaMorph AI
// Tests for dashboard service wiring.

package dashboard

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metamorphhq/metamorph/pkg/eventlog"
	"github.com/metamorphhq/metamorph/services/dashboard/healing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNew_AppliesDefaults(t *testing.T) {
	svc, err := New(Config{GinMode: gin.TestMode})
	require.NoError(t, err)
	require.NotNil(t, svc.Router())

	impl, ok := svc.(*service)
	require.True(t, ok)
	assert.Equal(t, 3000, impl.config.Port)
	assert.Equal(t, healing.DefaultAgentTimeout, impl.config.AgentTimeout)
	assert.Equal(t, eventlog.DefaultCapacity, impl.config.EventCapacity)
	assert.Contains(t, impl.config.OAuthEndpoint.AuthURL, "github.com")
}

func TestService_HealthRoute(t *testing.T) {
	svc, err := New(Config{GinMode: gin.TestMode})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	svc.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestService_EventRoutesWired(t *testing.T) {
	svc, err := New(Config{GinMode: gin.TestMode})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/events",
		strings.NewReader(`{"message":"wired"}`))
	req.Header.Set("Content-Type", "application/json")
	svc.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/events", nil)
	svc.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wired")
}

func TestService_ReposRequiresSession(t *testing.T) {
	svc, err := New(Config{GinMode: gin.TestMode})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/repos", nil)
	svc.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "auth_error")
}

func TestService_MetricsRouteWhenEnabled(t *testing.T) {
	svc, err := New(Config{GinMode: gin.TestMode, EnableMetrics: true})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	svc.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestService_MetricsRouteAbsentWhenDisabled(t *testing.T) {
	svc, err := New(Config{GinMode: gin.TestMode})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	svc.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
