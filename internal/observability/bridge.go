package observability

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/leslieo2/go-probe/internal/probe"
)

// GathererCollector exposes a prometheus Gatherer as a probe collector so
// client_golang instruments appear in the probe scrape. Histograms and
// summaries are flattened into their _count and _sum series.
func GathererCollector(g prometheus.Gatherer) probe.Collector {
	return probe.CollectorFunc(func() ([]probe.Sample, error) {
		if g == nil {
			return nil, errors.New("gatherer is nil")
		}
		families, err := g.Gather()
		if err != nil {
			return nil, fmt.Errorf("gather failed: %w", err)
		}

		var samples []probe.Sample
		for _, mf := range families {
			samples = append(samples, familySamples(mf)...)
		}
		return samples, nil
	})
}

func familySamples(mf *dto.MetricFamily) []probe.Sample {
	name := mf.GetName()
	help := mf.GetHelp()

	var samples []probe.Sample
	for _, m := range mf.GetMetric() {
		labels := labelsOf(m)
		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			samples = append(samples, probe.Sample{Name: name, Help: help, Kind: probe.KindCounter, Labels: labels, Value: m.GetCounter().GetValue()})
		case dto.MetricType_GAUGE:
			samples = append(samples, probe.Sample{Name: name, Help: help, Kind: probe.KindGauge, Labels: labels, Value: m.GetGauge().GetValue()})
		case dto.MetricType_UNTYPED:
			samples = append(samples, probe.Sample{Name: name, Help: help, Kind: probe.KindGauge, Labels: labels, Value: m.GetUntyped().GetValue()})
		case dto.MetricType_HISTOGRAM:
			h := m.GetHistogram()
			samples = append(samples,
				probe.Sample{Name: name + "_count", Help: help, Kind: probe.KindCounter, Labels: labels, Value: float64(h.GetSampleCount())},
				probe.Sample{Name: name + "_sum", Help: help, Kind: probe.KindGauge, Labels: labels, Value: h.GetSampleSum()},
			)
		case dto.MetricType_SUMMARY:
			s := m.GetSummary()
			samples = append(samples,
				probe.Sample{Name: name + "_count", Help: help, Kind: probe.KindCounter, Labels: labels, Value: float64(s.GetSampleCount())},
				probe.Sample{Name: name + "_sum", Help: help, Kind: probe.KindGauge, Labels: labels, Value: s.GetSampleSum()},
			)
		}
	}
	return samples
}

func labelsOf(m *dto.Metric) probe.Labels {
	pairs := m.GetLabel()
	if len(pairs) == 0 {
		return nil
	}
	labels := make(probe.Labels, len(pairs))
	for _, lp := range pairs {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}
