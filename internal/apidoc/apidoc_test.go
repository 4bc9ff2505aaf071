package apidoc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	doc, err := Load("2.3.4", "")
	require.NoError(t, err)

	var decoded struct {
		OpenAPI string `json:"openapi"`
		Info    struct {
			Version string `json:"version"`
		} `json:"info"`
	}
	require.NoError(t, json.Unmarshal(doc.JSON(), &decoded))
	assert.Equal(t, "3.0.3", decoded.OpenAPI)
	assert.Equal(t, "2.3.4", decoded.Info.Version)
}

func TestRoutes(t *testing.T) {
	doc, err := Load("", "")
	require.NoError(t, err)

	var paths []string
	for _, r := range doc.Routes() {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.NotEmpty(t, r.OperationID)
		paths = append(paths, r.Path)
	}
	assert.Equal(t, []string{"/", "/api/info", "/health", "/metrics", "/openapi.json", "/ready"}, paths)
}

func TestHandler(t *testing.T) {
	doc, err := Load("1.0.0", "")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	doc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, string(doc.JSON()), rec.Body.String())
}

func TestValidateResponse(t *testing.T) {
	doc, err := Load("", "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		status  int
		body    string
		wantErr bool
	}{
		{
			name:   "ready with no checks",
			path:   "/ready",
			status: http.StatusOK,
			body:   `{"status":"ready","checks":[]}`,
		},
		{
			name:   "not ready",
			path:   "/ready",
			status: http.StatusServiceUnavailable,
			body:   `{"status":"not-ready","checks":[{"name":"db","status":"failing","message":"refused"}],"failing":["db"]}`,
		},
		{
			name:    "bad check status",
			path:    "/ready",
			status:  http.StatusOK,
			body:    `{"status":"ready","checks":[{"name":"db","status":"fine"}]}`,
			wantErr: true,
		},
		{
			name:   "liveness",
			path:   "/health",
			status: http.StatusOK,
			body:   `{"status":"alive","uptimeSeconds":1.5,"timestamp":"2024-01-01T00:00:00Z"}`,
		},
		{
			name:    "liveness missing uptime",
			path:    "/health",
			status:  http.StatusOK,
			body:    `{"status":"alive","timestamp":"2024-01-01T00:00:00Z"}`,
			wantErr: true,
		},
		{
			name:   "structured metrics",
			path:   "/metrics",
			status: http.StatusOK,
			body:   `{"samples":[{"name":"a","kind":"counter","value":1}],"skipped":0}`,
		},
		{
			name:    "undocumented status",
			path:    "/health",
			status:  http.StatusTeapot,
			body:    `{}`,
			wantErr: true,
		},
		{
			name:    "undocumented path",
			path:    "/nope",
			status:  http.StatusOK,
			body:    `{}`,
			wantErr: true,
		},
		{
			name:    "not json",
			path:    "/health",
			status:  http.StatusOK,
			body:    `alive`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := doc.ValidateResponse(http.MethodGet, tt.path, tt.status, []byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateResponse_Undocumented(t *testing.T) {
	doc, err := Load("", "")
	require.NoError(t, err)

	err = doc.ValidateResponse(http.MethodPost, "/health", http.StatusOK, []byte(`{}`))
	assert.ErrorIs(t, err, ErrUndocumented)
}

func TestLoad_MetricsPath(t *testing.T) {
	doc, err := Load("", "/internal/scrape")
	require.NoError(t, err)

	var paths []string
	for _, r := range doc.Routes() {
		paths = append(paths, r.Path)
	}
	assert.Contains(t, paths, "/internal/scrape")
	assert.NotContains(t, paths, "/metrics")

	var decoded struct {
		Paths map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(doc.JSON(), &decoded))
	assert.Contains(t, decoded.Paths, "/internal/scrape")
	assert.NotContains(t, decoded.Paths, "/metrics")

	assert.NoError(t, doc.ValidateResponse(http.MethodGet, "/internal/scrape", http.StatusOK,
		[]byte(`{"samples":[],"skipped":0}`)))
}

func TestLoad_MetricsPathCollision(t *testing.T) {
	_, err := Load("", "/health")
	assert.Error(t, err)

	_, err = Load("", "scrape")
	assert.Error(t, err)
}
