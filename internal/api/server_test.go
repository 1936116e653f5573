package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodlib/ripple-engine/internal/jobstore"
	"github.com/floodlib/ripple-engine/internal/pipeline"
	"github.com/floodlib/ripple-engine/internal/registry"
)

func newTestServer(t *testing.T) (*Server, jobstore.Store) {
	t.Helper()

	store := jobstore.NewMemoryStore()

	reg := registry.New()
	reg.RegisterAll(pipeline.Descriptors())

	cfg := LoadServerConfig()

	return NewServer(&cfg, store, reg, nil, nil, nil), store
}

func (s *Server) handler() http.Handler {
	return s.httpServer.Handler
}

func TestServer_Ping(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()

	server.handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body PingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
}

func TestServer_EnqueueUnknownProcess(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/processes/does_not_exist/execution", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	server.handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_EnqueueInvalidInput(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/processes/ras_to_gpkg/execution", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	server.handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_EnqueueGetListDismiss(t *testing.T) {
	server, _ := newTestServer(t)

	enqueueBody := []byte(`{"source_dir":"/data/models/sample"}`)
	req := httptest.NewRequest(http.MethodPost, "/processes/ras_to_gpkg/execution", bytes.NewReader(enqueueBody))
	rec := httptest.NewRecorder()

	server.handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var enqueueResp EnqueueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &enqueueResp))
	require.NotEmpty(t, enqueueResp.JobID)

	// GET /jobs/{id}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/jobs/"+enqueueResp.JobID, nil)
	server.handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var jobResp JobStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobResp))
	assert.Equal(t, "ras_to_gpkg", jobResp.ProcessID)
	assert.Equal(t, string(jobstore.StatusAccepted), jobResp.Status)

	// GET /jobs
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/jobs", nil)
	server.handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var jobList []JobStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobList))
	assert.Len(t, jobList, 1)

	// GET /jobs/{id}/results before completion: 409
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/jobs/"+enqueueResp.JobID+"/results", nil)
	server.handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)

	// DELETE /jobs/{id}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/jobs/"+enqueueResp.JobID, nil)
	server.handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	// GET /jobs/{id} now reflects dismissal
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/jobs/"+enqueueResp.JobID, nil)
	server.handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobResp))
	assert.Equal(t, string(jobstore.StatusDismissed), jobResp.Status)
}

func TestServer_GetJobNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/3f333333-3333-4333-8333-333333333333", nil)
	rec := httptest.NewRecorder()

	server.handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_GetJobInvalidID(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/not-a-uuid", nil)
	rec := httptest.NewRecorder()

	server.handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_MetricsDisabledWithoutRegistry(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	server.handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
