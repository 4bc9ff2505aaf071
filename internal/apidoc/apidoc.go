// Package apidoc serves and enforces the OpenAPI description of the probe
// service.
package apidoc

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var specYAML []byte

var ErrUndocumented = errors.New("undocumented response")

// Route is a documented method and path pair.
type Route struct {
	Method      string
	Path        string
	OperationID string
}

// Document is a loaded and validated OpenAPI description.
type Document struct {
	doc  *openapi3.T
	json []byte
}

// DefaultMetricsPath is where the description documents the metrics scrape.
const DefaultMetricsPath = "/metrics"

// Load parses the embedded description and overrides its version. A
// non-empty metricsPath moves the metrics operation to that path.
func Load(version, metricsPath string) (*Document, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(specYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}

	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("OpenAPI document validation failed: %w", err)
	}

	if version != "" {
		doc.Info.Version = version
	}
	if metricsPath != "" && metricsPath != DefaultMetricsPath {
		if err := movePath(doc, DefaultMetricsPath, metricsPath); err != nil {
			return nil, err
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode OpenAPI document: %w", err)
	}

	return &Document{doc: doc, json: data}, nil
}

func movePath(doc *openapi3.T, from, to string) error {
	if !strings.HasPrefix(to, "/") {
		return fmt.Errorf("path %q must start with /", to)
	}
	if doc.Paths.Value(to) != nil {
		return fmt.Errorf("path %s is already documented", to)
	}
	if doc.Paths.Value(from) == nil {
		return fmt.Errorf("path %s is not documented", from)
	}

	paths := openapi3.NewPaths()
	paths.Extensions = doc.Paths.Extensions
	for key, item := range doc.Paths.Map() {
		if key == from {
			key = to
		}
		paths.Set(key, item)
	}
	doc.Paths = paths
	return nil
}

// Routes lists the documented operations sorted by path then method.
func (d *Document) Routes() []Route {
	var routes []Route
	for path, item := range d.doc.Paths.Map() {
		for method, op := range item.Operations() {
			routes = append(routes, Route{Method: method, Path: path, OperationID: op.OperationID})
		}
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	return routes
}

// JSON returns the document encoded as JSON.
func (d *Document) JSON() []byte {
	return d.json
}

// Handler serves the document as JSON.
func (d *Document) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(d.json)
	})
}

// ValidateResponse checks a JSON response body against the schema
// documented for method, path and status.
func (d *Document) ValidateResponse(method, path string, status int, body []byte) error {
	item := d.doc.Paths.Find(path)
	if item == nil {
		return fmt.Errorf("%w: path %s", ErrUndocumented, path)
	}
	op := item.GetOperation(strings.ToUpper(method))
	if op == nil {
		return fmt.Errorf("%w: %s %s", ErrUndocumented, method, path)
	}
	resp := op.Responses.Status(status)
	if resp == nil || resp.Value == nil {
		return fmt.Errorf("%w: %s %s %s", ErrUndocumented, method, path, strconv.Itoa(status))
	}
	media := resp.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return fmt.Errorf("%w: %s %s %d has no JSON schema", ErrUndocumented, method, path, status)
	}

	var value interface{}
	if err := json.Unmarshal(body, &value); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	if err := media.Schema.Value.VisitJSON(value); err != nil {
		return fmt.Errorf("%s %s %d: %w", method, path, status, err)
	}
	return nil
}
