// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/VA7DBI/transcribeQueue/config"
	"github.com/VA7DBI/transcribeQueue/docs"
	"github.com/VA7DBI/transcribeQueue/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMainSetup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := testConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"

	service := newTestService(t, cfg, &stubRunner{})
	setupRouter(r, cfg, service, passAuth)

	routeMap := make(map[string]bool)
	for _, route := range r.Routes() {
		routeMap[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"POST /jobs",
		"GET /jobs",
		"DELETE /jobs",
		"GET /jobs/:id",
		"DELETE /jobs/:id",
		"GET /events",
		"GET /health",
		"GET /swagger/*any",
		"GET /metrics",
	} {
		assert.True(t, routeMap[want], "Missing %s endpoint", want)
	}
}

func TestMetricsDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	setupRouter(r, cfg, newTestService(t, cfg, &stubRunner{}), passAuth)

	for _, route := range r.Routes() {
		assert.NotEqual(t, "/metrics", route.Path)
	}
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", healthCheck)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestJobRoutesRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := testConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.Tokens = []string{"secret"}
	auth, err := middleware.NewAuthMiddleware(cfg, nil)
	require.NoError(t, err)

	setupRouter(r, cfg, newTestService(t, cfg, &stubRunner{}), auth.Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code, "health stays public")
}

func TestSwaggerDocRegistered(t *testing.T) {
	doc := docs.SwaggerInfo.ReadDoc()
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(doc), &parsed), "swagger template must render valid JSON")
	paths, ok := parsed["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/jobs")
	assert.Contains(t, paths, "/jobs/{id}")
	assert.Contains(t, paths, "/events")
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Port = 8080
	cfg.Server.Host = "localhost"
	cfg.Audio.SampleRate = 16000
	cfg.Audio.MaxFileSize = 1
	cfg.Queue.Concurrency = 2
	return cfg
}
