package probe

import (
	"fmt"
	"io"
	"sort"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Format selects how a scrape is serialised.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// TextContentType is the content type of the text exposition format.
const TextContentType = "text/plain; version=0.0.4; charset=utf-8"

// ParseFormat maps a format selector to a Format. An empty selector means
// text; anything unrecognised is an error.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "prometheus":
		return FormatText, nil
	case "json", "structured":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported metrics format %q", s)
}

// WriteText writes the scrape in the Prometheus text exposition format.
// Samples sharing a name are grouped into one family at the position of
// the first sample with that name, keeping registration order otherwise.
func WriteText(w io.Writer, scrape Scrape) error {
	for _, mf := range metricFamilies(scrape.Samples) {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func metricFamilies(samples []Sample) []*dto.MetricFamily {
	var (
		families []*dto.MetricFamily
		byName   = make(map[string]*dto.MetricFamily)
	)
	for _, s := range samples {
		mf, ok := byName[s.Name]
		if !ok {
			mf = &dto.MetricFamily{
				Name: ptr(s.Name),
				Type: metricType(s.Kind),
			}
			if s.Help != "" {
				mf.Help = ptr(s.Help)
			}
			byName[s.Name] = mf
			families = append(families, mf)
		}
		mf.Metric = append(mf.Metric, toMetric(s, mf.GetType()))
	}
	return families
}

func toMetric(s Sample, typ dto.MetricType) *dto.Metric {
	m := &dto.Metric{Label: labelPairs(s.Labels)}
	if typ == dto.MetricType_COUNTER {
		m.Counter = &dto.Counter{Value: ptr(s.Value)}
	} else {
		m.Gauge = &dto.Gauge{Value: ptr(s.Value)}
	}
	return m
}

func metricType(k Kind) *dto.MetricType {
	if k == KindCounter {
		return dto.MetricType_COUNTER.Enum()
	}
	return dto.MetricType_GAUGE.Enum()
}

func labelPairs(labels Labels) []*dto.LabelPair {
	if len(labels) == 0 {
		return nil
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]*dto.LabelPair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, &dto.LabelPair{Name: ptr(k), Value: ptr(labels[k])})
	}
	return pairs
}

func ptr[T any](v T) *T {
	return &v
}
