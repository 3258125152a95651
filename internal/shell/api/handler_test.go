package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stokerbuild/stoker/internal/core/domain"
	"github.com/stokerbuild/stoker/internal/shell/builder"
	"github.com/stokerbuild/stoker/internal/shell/docker"
	"github.com/stokerbuild/stoker/internal/shell/store"
)

// =============================================================================
// Fake Docker Client
// =============================================================================

type fakeDocker struct{}

func (f *fakeDocker) BuildImage(spec docker.BuildSpec) (string, error) {
	if spec.Context != nil {
		io.Copy(io.Discard, spec.Context)
	}
	return "sha256:built", nil
}

func (f *fakeDocker) PullImage(image string, opts docker.PullOptions) error { return nil }
func (f *fakeDocker) ImageExists(image string) (bool, error)                { return true, nil }

func (f *fakeDocker) InspectImage(image string) (*docker.ImageInfo, error) {
	return &docker.ImageInfo{
		ID:           "sha256:built",
		ExposedPorts: []string{"80/tcp"},
		Cmd:          []string{"python", "main.py"},
	}, nil
}

func (f *fakeDocker) CreateContainer(spec docker.ContainerSpec) (string, error) {
	return "ctr_123", nil
}
func (f *fakeDocker) StartContainer(containerID string) error { return nil }
func (f *fakeDocker) StopContainer(containerID string, timeout *time.Duration) error {
	return nil
}
func (f *fakeDocker) RemoveContainer(containerID string, opts docker.RemoveOptions) error {
	return nil
}
func (f *fakeDocker) InspectContainer(containerID string) (*docker.ContainerInfo, error) {
	return nil, docker.ErrContainerNotFound
}
func (f *fakeDocker) ListContainers(opts docker.ListOptions) ([]docker.ContainerInfo, error) {
	return nil, nil
}
func (f *fakeDocker) ContainerLogs(containerID string, opts docker.LogOptions) (io.ReadCloser, error) {
	return nil, docker.ErrContainerNotFound
}
func (f *fakeDocker) Ping() error  { return nil }
func (f *fakeDocker) Close() error { return nil }

// =============================================================================
// Test Setup
// =============================================================================

func newTestHandler(t *testing.T) (*Handler, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	b := builder.New(&fakeDocker{}, s, nil, builder.Options{})
	return NewHandler(s, b, nil, "."), s
}

// writeSourceDir lays out a minimal buildable source tree.
func writeSourceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("print('hi')\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("flask==2.0.1\n"), 0644))
	return dir
}

const testRecipeYAML = `
name: web-app
base:
  image: python
  tag: "3.9-alpine"
port: 80
command: ["python", "main.py"]
`

func doRequest(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHandler_Health(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestHandler_OpenAPI(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/openapi.json", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
	assert.Contains(t, doc, "paths")
}

// =============================================================================
// Create Build Tests
// =============================================================================

func TestHandler_CreateBuild_Success(t *testing.T) {
	h, _ := newTestHandler(t)
	dir := writeSourceDir(t)

	body, err := json.Marshal(CreateBuildRequest{Recipe: testRecipeYAML, BaseDir: dir})
	require.NoError(t, err)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/builds", string(body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp BuildResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.ID, "bld_"))
	assert.Equal(t, "web-app", resp.RecipeName)
	assert.Equal(t, string(domain.BuildSucceeded), resp.Status)
	assert.Equal(t, "web-app:"+resp.ID, resp.ImageRef)
	assert.NotNil(t, resp.FinishedAt)
}

func TestHandler_CreateBuild_InvalidBody(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/builds", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_body", resp.Code)
}

func TestHandler_CreateBuild_InvalidRecipe(t *testing.T) {
	h, _ := newTestHandler(t)

	body, err := json.Marshal(CreateBuildRequest{Recipe: `
name: web-app
base:
  image: python
  tag: latest
port: 80
command: ["python", "main.py"]
`})
	require.NoError(t, err)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/builds", string(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_recipe", resp.Code)
}

func TestHandler_CreateBuild_MissingManifest(t *testing.T) {
	h, _ := newTestHandler(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("print('hi')\n"), 0644))

	body, err := json.Marshal(CreateBuildRequest{Recipe: testRecipeYAML, BaseDir: dir})
	require.NoError(t, err)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/builds", string(body))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// The failed ledger record comes back, not a bare error.
	var resp BuildResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.BuildFailed), resp.Status)
	assert.Contains(t, resp.Error, "requirements.txt")
}

// =============================================================================
// Get / List Tests
// =============================================================================

func TestHandler_GetBuild(t *testing.T) {
	h, s := newTestHandler(t)

	b, err := domain.NewBuild("web-app", "sha256:r", "sha256:s")
	require.NoError(t, err)
	require.NoError(t, s.CreateBuild(context.Background(), b))

	rec := doRequest(t, h, http.MethodGet, "/api/v1/builds/"+b.ReferenceID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BuildResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, b.ReferenceID, resp.ID)
}

func TestHandler_GetBuild_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/builds/bld_missing1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "build_not_found", resp.Code)
}

func TestHandler_ListBuilds(t *testing.T) {
	h, s := newTestHandler(t)

	for i := 0; i < 3; i++ {
		b, err := domain.NewBuild("web-app", "sha256:r", "sha256:s")
		require.NoError(t, err)
		require.NoError(t, s.CreateBuild(context.Background(), b))
	}

	rec := doRequest(t, h, http.MethodGet, "/api/v1/builds?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListBuildsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Builds, 2)
	assert.Equal(t, 2, resp.Limit)
}

func TestHandler_ListBuilds_Empty(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/builds", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListBuildsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Builds)
}
