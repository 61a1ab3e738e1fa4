package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

func TestHealthCheck_Success(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")

	assert.Equal(t, http.StatusOK, resp.Code)

	var healthResp HealthResponse
	err := json.Unmarshal(resp.Body.Bytes(), &healthResp)
	require.NoError(t, err)

	assert.Equal(t, "healthy", healthResp.Status)
	require.Len(t, healthResp.Components, 3)
	assert.Equal(t, "0 stored backups", healthResp.Components["snapshots"].Message)
	assert.Equal(t, "0 indexed titles", healthResp.Components["search"].Message)
	assert.Equal(t, "healthy", healthResp.Components["database"].Status)
}

func TestHealthCheck_Degraded(t *testing.T) {
	ts := setupTestServer(t, func(o *Options) {
		o.Database = nil
		o.Index = nil
	})

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var healthResp HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &healthResp))
	assert.Equal(t, "degraded", healthResp.Status)
	assert.Equal(t, "database not configured", healthResp.Components["database"].Message)
	assert.Equal(t, "healthy", healthResp.Components["snapshots"].Status)
}

func TestHealthCheck_Unhealthy(t *testing.T) {
	ts := setupTestServer(t, func(o *Options) { o.Database = failingPinger{} })

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var healthResp HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &healthResp))
	assert.Equal(t, "unhealthy", healthResp.Status)
	assert.Equal(t, "database ping failed", healthResp.Components["database"].Message)
}

func TestOverallStatus(t *testing.T) {
	assert.Equal(t, "healthy", overallStatus(map[string]ComponentHealth{"a": {Status: "healthy"}}))
	assert.Equal(t, "degraded", overallStatus(map[string]ComponentHealth{
		"a": {Status: "healthy"},
		"b": {Status: "degraded"},
	}))
	assert.Equal(t, "unhealthy", overallStatus(map[string]ComponentHealth{
		"a": {Status: "degraded"},
		"b": {Status: "unhealthy"},
	}))
}
