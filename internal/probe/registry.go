package probe

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/prometheus/common/model"
)

// Kind tags a metric sample as a counter or a gauge.
type Kind string

const (
	KindCounter Kind = "counter"
	KindGauge   Kind = "gauge"
)

// Labels maps label keys to values. Map keys are unique by construction.
type Labels map[string]string

// Sample is a single named numeric observation.
type Sample struct {
	Name   string
	Help   string
	Kind   Kind
	Labels Labels
	Value  float64
}

// SampleFunc computes the current value of a single-sample producer.
type SampleFunc func() (float64, error)

// Collector produces any number of samples in one call.
type Collector interface {
	Collect() ([]Sample, error)
}

// CollectorFunc adapts a function to the Collector interface.
type CollectorFunc func() ([]Sample, error)

func (f CollectorFunc) Collect() ([]Sample, error) {
	return f()
}

var (
	ErrDuplicateProducer = errors.New("producer already registered")
	ErrInvalidProducer   = errors.New("invalid producer")
	ErrInvalidCounter    = errors.New("counter value must be a non-negative number")
	ErrInvalidSample     = errors.New("invalid sample")
	ErrConflictingSample = errors.New("sample conflicts with an earlier series")
)

// ProducerFault describes a producer that was skipped during a scrape.
type ProducerFault struct {
	Producer string
	Err      error
}

// Scrape is the result of one read of every registered producer.
type Scrape struct {
	Samples []Sample
	Skipped int
	Faults  []ProducerFault
}

// ProducerOption customises a single-sample producer.
type ProducerOption func(*producer)

// WithHelp sets the help text emitted alongside the sample.
func WithHelp(help string) ProducerOption {
	return func(p *producer) {
		p.help = help
	}
}

type producer struct {
	name      string
	help      string
	kind      Kind
	labels    Labels
	sample    SampleFunc
	collector Collector
}

// Registry is an ordered set of metric producers. The scrape order is the
// registration order. Registration and removal copy the producer list, so
// a scrape in flight keeps the list it started with.
type Registry struct {
	mu        sync.Mutex
	producers atomic.Pointer[[]*producer]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	empty := make([]*producer, 0)
	r.producers.Store(&empty)
	return r
}

// Register adds a single-sample producer. The name is both the producer
// identity and the sample name.
func (r *Registry) Register(name string, kind Kind, labels Labels, fn SampleFunc, opts ...ProducerOption) error {
	if name == "" || fn == nil {
		return fmt.Errorf("%w: name and sample function are required", ErrInvalidProducer)
	}
	if kind != KindCounter && kind != KindGauge {
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidProducer, name, kind)
	}
	if err := validateNames(name, labels); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProducer, err)
	}

	p := &producer{
		name:   name,
		kind:   kind,
		labels: copyLabels(labels),
		sample: fn,
	}
	for _, opt := range opts {
		opt(p)
	}
	return r.add(p)
}

// RegisterCollector adds a multi-sample producer under the given name.
func (r *Registry) RegisterCollector(name string, c Collector) error {
	if name == "" || c == nil {
		return fmt.Errorf("%w: name and collector are required", ErrInvalidProducer)
	}
	return r.add(&producer{name: name, collector: c})
}

// Deregister removes the named producer. It returns false if it was unknown.
func (r *Registry) Deregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.list()
	for i, p := range cur {
		if p.name != name {
			continue
		}
		next := make([]*producer, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		next = append(next, cur[i+1:]...)
		r.producers.Store(&next)
		return true
	}
	return false
}

// Names returns the producer names in registration order.
func (r *Registry) Names() []string {
	cur := r.list()
	names := make([]string, len(cur))
	for i, p := range cur {
		names[i] = p.name
	}
	return names
}

// Gather samples every producer in registration order. A producer that
// returns an error, panics, yields an invalid sample or repeats a series
// an earlier producer already exposed is skipped and reported in the
// result; the other producers are unaffected.
func (r *Registry) Gather() Scrape {
	var scrape Scrape
	if r == nil {
		return scrape
	}
	seen := newSeriesIndex()
	for _, p := range r.list() {
		samples, err := p.collect()
		if err == nil {
			err = seen.admit(samples)
		}
		if err != nil {
			scrape.Skipped++
			scrape.Faults = append(scrape.Faults, ProducerFault{Producer: p.name, Err: err})
			continue
		}
		scrape.Samples = append(scrape.Samples, samples...)
	}
	return scrape
}

func (r *Registry) add(p *producer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.list()
	for _, existing := range cur {
		if existing.name == p.name {
			return fmt.Errorf("%w: %s", ErrDuplicateProducer, p.name)
		}
	}
	next := make([]*producer, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, p)
	r.producers.Store(&next)
	return nil
}

func (r *Registry) list() []*producer {
	if ptr := r.producers.Load(); ptr != nil {
		return *ptr
	}
	return nil
}

func (p *producer) collect() (samples []Sample, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			samples = nil
			err = fmt.Errorf("producer %s panicked: %v", p.name, rec)
		}
	}()

	if p.collector != nil {
		samples, err = p.collector.Collect()
		if err != nil {
			return nil, err
		}
		for _, s := range samples {
			if err := validateSample(s); err != nil {
				return nil, err
			}
		}
		return samples, nil
	}

	value, err := p.sample()
	if err != nil {
		return nil, err
	}
	s := Sample{
		Name:   p.name,
		Help:   p.help,
		Kind:   p.kind,
		Labels: copyLabels(p.labels),
		Value:  value,
	}
	if err := validateSample(s); err != nil {
		return nil, err
	}
	return []Sample{s}, nil
}

func validateSample(s Sample) error {
	if s.Name == "" {
		return fmt.Errorf("%w: sample without a name", ErrInvalidProducer)
	}
	if err := validateNames(s.Name, s.Labels); err != nil {
		return err
	}
	switch s.Kind {
	case KindCounter:
		if math.IsNaN(s.Value) || s.Value < 0 {
			return fmt.Errorf("%w: %s = %v", ErrInvalidCounter, s.Name, s.Value)
		}
	case KindGauge:
	default:
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidProducer, s.Name, s.Kind)
	}
	return nil
}

// validateNames accepts only names the 0.0.4 text format can carry
// unquoted.
func validateNames(name string, labels Labels) error {
	if !model.IsValidLegacyMetricName(name) {
		return fmt.Errorf("%w: metric name %q", ErrInvalidSample, name)
	}
	for k, v := range labels {
		ln := model.LabelName(k)
		if !ln.IsValidLegacy() || strings.HasPrefix(k, model.ReservedLabelPrefix) {
			return fmt.Errorf("%w: %s has label name %q", ErrInvalidSample, name, k)
		}
		if !model.LabelValue(v).IsValid() {
			return fmt.Errorf("%w: %s has label %s with a non UTF-8 value", ErrInvalidSample, name, k)
		}
	}
	return nil
}

// seriesIndex tracks the families and series already admitted to a scrape.
type seriesIndex struct {
	kinds  map[string]Kind
	series map[model.Fingerprint]struct{}
}

func newSeriesIndex() *seriesIndex {
	return &seriesIndex{
		kinds:  make(map[string]Kind),
		series: make(map[model.Fingerprint]struct{}),
	}
}

// admit accepts all of samples or none of them. A name already exposed
// with another kind, or a label set already exposed under that name, is
// rejected.
func (x *seriesIndex) admit(samples []Sample) error {
	kinds := make(map[string]Kind)
	series := make(map[model.Fingerprint]struct{}, len(samples))
	for _, s := range samples {
		kind, ok := x.kinds[s.Name]
		if !ok {
			kind, ok = kinds[s.Name]
		}
		if ok && kind != s.Kind {
			return fmt.Errorf("%w: %s is a %s but was already exposed as a %s", ErrConflictingSample, s.Name, s.Kind, kind)
		}
		kinds[s.Name] = s.Kind

		fp := seriesFingerprint(s)
		_, dup := x.series[fp]
		if _, pending := series[fp]; dup || pending {
			return fmt.Errorf("%w: duplicate series %s", ErrConflictingSample, seriesString(s))
		}
		series[fp] = struct{}{}
	}

	for name, kind := range kinds {
		x.kinds[name] = kind
	}
	for fp := range series {
		x.series[fp] = struct{}{}
	}
	return nil
}

func seriesLabelSet(s Sample) model.LabelSet {
	ls := make(model.LabelSet, len(s.Labels)+1)
	for k, v := range s.Labels {
		ls[model.LabelName(k)] = model.LabelValue(v)
	}
	ls[model.MetricNameLabel] = model.LabelValue(s.Name)
	return ls
}

func seriesFingerprint(s Sample) model.Fingerprint {
	return seriesLabelSet(s).Fingerprint()
}

func seriesString(s Sample) string {
	return seriesLabelSet(s).String()
}

func copyLabels(in Labels) Labels {
	if len(in) == 0 {
		return nil
	}
	out := make(Labels, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
