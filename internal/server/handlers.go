package server

import (
	"bytes"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/leslieo2/go-probe/internal/constants"
	"github.com/leslieo2/go-probe/internal/probe"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// rootHandler identifies the service
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	_, span := s.tracer.StartSpan(r.Context(), "root")
	defer span.End()

	s.sendJSONResponse(w, http.StatusOK, RootResponse{
		Message:     s.config.App.Name + " is running",
		Version:     s.runtime.Version(),
		Environment: s.runtime.Environment(),
		Timestamp:   time.Now().UTC(),
	})
}

// healthHandler answers the liveness probe. It is always 200; a degraded
// status is informational.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	_, span := s.tracer.StartSpan(r.Context(), "health_check")
	defer span.End()

	state := s.probes.QueryLiveness()
	span.SetAttributes(attribute.String("probe.status", string(state.Status)))

	s.sendJSONResponse(w, http.StatusOK, newLivenessResponse(state, time.Now()))
}

// readinessHandler answers the readiness probe from the cached check
// results. It never runs a check.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	_, span := s.tracer.StartSpan(r.Context(), "readiness_check")
	defer span.End()

	resp := newReadinessResponse(s.probes.QueryReadiness())
	ready := resp.Status == probe.StatusReady
	span.SetAttributes(attribute.Bool("probe.ready", ready))

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
		s.logger.Logger.Debug("Readiness check failed",
			zap.Strings("failing", resp.Failing),
		)
	}
	s.sendJSONResponse(w, status, resp)
}

// metricsHandler serves a scrape as text exposition or structured JSON
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	_, span := s.tracer.StartSpan(r.Context(), "metrics_scrape")
	defer span.End()

	format, err := metricsFormat(r)
	if err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Bad Request", err.Error(), "")
		return
	}

	scrape := s.probes.QueryMetrics()
	span.SetAttributes(
		attribute.String("metrics.format", string(format)),
		attribute.Int("metrics.samples", len(scrape.Samples)),
		attribute.Int("metrics.skipped", scrape.Skipped),
	)
	w.Header().Set(constants.HeaderMetricsSkip, strconv.Itoa(scrape.Skipped))

	if format == probe.FormatJSON {
		s.sendJSONResponse(w, http.StatusOK, newMetricsResponse(scrape))
		return
	}

	var buf bytes.Buffer
	if err := probe.WriteText(&buf, scrape); err != nil {
		s.logger.Logger.Error("Failed to encode metrics", zap.Error(err))
		s.sendErrorResponse(w, http.StatusInternalServerError, "Internal Server Error", "failed to encode metrics", "")
		return
	}
	w.Header().Set(constants.HeaderContentType, probe.TextContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// metricsFormat picks the scrape format. An explicit format query parameter
// wins over the Accept header.
func metricsFormat(r *http.Request) (probe.Format, error) {
	if q := r.URL.Query(); q.Has(constants.QueryParamFormat) {
		return probe.ParseFormat(q.Get(constants.QueryParamFormat))
	}
	for _, part := range strings.Split(r.Header.Get(constants.HeaderAccept), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mediaType == constants.ContentTypeJSON {
			return probe.FormatJSON, nil
		}
	}
	return probe.FormatText, nil
}

// infoHandler reports runtime details
func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	_, span := s.tracer.StartSpan(r.Context(), "runtime_info")
	defer span.End()

	s.sendJSONResponse(w, http.StatusOK, newInfoResponse(s.runtime.Snapshot()))
}

// notFoundHandler answers every unmatched path
func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.sendErrorResponse(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
}
