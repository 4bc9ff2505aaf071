package server

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/leslieo2/go-probe/internal/constants"
	"github.com/leslieo2/go-probe/internal/probe"
	"github.com/leslieo2/go-probe/internal/runtimeinfo"
	"go.uber.org/zap"
)

// LivenessResponse is the body of GET /health
type LivenessResponse struct {
	Status        probe.LivenessStatus `json:"status"`
	Reason        string               `json:"reason,omitempty"`
	UptimeSeconds float64              `json:"uptimeSeconds"`
	Timestamp     time.Time            `json:"timestamp"`
}

// CheckResponse is one dependency check in a readiness body
type CheckResponse struct {
	Name      string            `json:"name"`
	Status    probe.CheckStatus `json:"status"`
	Message   string            `json:"message,omitempty"`
	UpdatedAt *time.Time        `json:"updatedAt,omitempty"`
}

// ReadinessResponse is the body of GET /ready. Failing lists the checks
// that are not ok.
type ReadinessResponse struct {
	Status  probe.ReadinessStatus `json:"status"`
	Checks  []CheckResponse       `json:"checks"`
	Failing []string              `json:"failing,omitempty"`
}

// SampleValue encodes non-finite floats as null since JSON has no NaN
type SampleValue float64

func (v SampleValue) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// SampleResponse is one metric sample in the structured scrape
type SampleResponse struct {
	Name   string            `json:"name"`
	Help   string            `json:"help,omitempty"`
	Kind   probe.Kind        `json:"kind"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  SampleValue       `json:"value"`
}

// MetricsResponse is the structured form of GET /metrics
type MetricsResponse struct {
	Samples []SampleResponse `json:"samples"`
	Skipped int              `json:"skipped"`
}

// RootResponse is the body of GET /
type RootResponse struct {
	Message     string    `json:"message"`
	Version     string    `json:"version"`
	Environment string    `json:"environment"`
	Timestamp   time.Time `json:"timestamp"`
}

// MemoryResponse reports heap figures in megabytes
type MemoryResponse struct {
	HeapAllocMB float64 `json:"heapAllocMB"`
	HeapSysMB   float64 `json:"heapSysMB"`
}

// InfoResponse is the body of GET /api/info
type InfoResponse struct {
	Application   string         `json:"application"`
	Version       string         `json:"version"`
	GoVersion     string         `json:"goVersion"`
	Platform      string         `json:"platform"`
	Architecture  string         `json:"architecture"`
	CPUs          int            `json:"cpus"`
	Goroutines    int            `json:"goroutines"`
	UptimeSeconds float64        `json:"uptimeSeconds"`
	Memory        MemoryResponse `json:"memory"`
}

// ErrorResponse is the body of every error answer
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Path    string `json:"path,omitempty"`
}

func newLivenessResponse(state probe.LivenessState, now time.Time) LivenessResponse {
	return LivenessResponse{
		Status:        state.Status,
		Reason:        state.Reason,
		UptimeSeconds: state.Uptime.Seconds(),
		Timestamp:     now.UTC(),
	}
}

func newReadinessResponse(state probe.ReadinessState) ReadinessResponse {
	resp := ReadinessResponse{
		Status:  state.Status,
		Checks:  make([]CheckResponse, 0, len(state.Checks)),
		Failing: state.Failing(),
	}
	for _, c := range state.Checks {
		check := CheckResponse{
			Name:    c.Name,
			Status:  c.Status,
			Message: c.Message,
		}
		if !c.UpdatedAt.IsZero() {
			updated := c.UpdatedAt.UTC()
			check.UpdatedAt = &updated
		}
		resp.Checks = append(resp.Checks, check)
	}
	return resp
}

func newMetricsResponse(scrape probe.Scrape) MetricsResponse {
	resp := MetricsResponse{
		Samples: make([]SampleResponse, 0, len(scrape.Samples)),
		Skipped: scrape.Skipped,
	}
	for _, s := range scrape.Samples {
		resp.Samples = append(resp.Samples, SampleResponse{
			Name:   s.Name,
			Help:   s.Help,
			Kind:   s.Kind,
			Labels: s.Labels,
			Value:  SampleValue(s.Value),
		})
	}
	return resp
}

func newInfoResponse(snap runtimeinfo.Snapshot) InfoResponse {
	return InfoResponse{
		Application:   snap.Application,
		Version:       snap.Version,
		GoVersion:     snap.GoVersion,
		Platform:      snap.Platform,
		Architecture:  snap.Architecture,
		CPUs:          snap.CPUs,
		Goroutines:    snap.Goroutines,
		UptimeSeconds: snap.Uptime.Seconds(),
		Memory: MemoryResponse{
			HeapAllocMB: snap.HeapAllocMB(),
			HeapSysMB:   snap.HeapSysMB(),
		},
	}
}

// sendJSONResponse encodes body before touching the response so an
// encoding failure can still become a clean 500
func (s *Server) sendJSONResponse(w http.ResponseWriter, statusCode int, body interface{}) {
	buf, err := json.Marshal(body)
	if err != nil {
		s.logger.Logger.Error("Failed to serialize response", zap.Error(err))
		s.sendErrorResponse(w, http.StatusInternalServerError, "Internal Server Error", "failed to serialize response", "")
		return
	}
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf)
}

// sendErrorResponse sends a JSON error response
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errText, message, path string) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errText,
		Message: message,
		Path:    path,
	})
}
