// Copyright (C) 2025 MetaMorph AI
// Tests for relay service wiring.

package relay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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
	assert.Equal(t, 3001, impl.config.Port)
	assert.Equal(t, "10s", impl.config.Timeout.String())
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

func TestService_WebhookRouteRegistered(t *testing.T) {
	svc, err := New(Config{GinMode: gin.TestMode})
	require.NoError(t, err)

	// Unresolvable request exercises the route without any outbound call.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/webhook", strings.NewReader(`{}`))
	svc.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_error")
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
