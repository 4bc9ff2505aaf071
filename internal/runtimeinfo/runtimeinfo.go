// Package runtimeinfo reports process and Go runtime facts for the info
// endpoint and the metrics scrape.
package runtimeinfo

import (
	"runtime"
	"time"

	"github.com/leslieo2/go-probe/internal/probe"
)

const bytesPerMB = 1024 * 1024

// Snapshot is a point-in-time view of the process.
type Snapshot struct {
	Application  string
	Version      string
	Environment  string
	GoVersion    string
	Platform     string
	Architecture string
	CPUs         int
	Goroutines   int
	HeapAlloc    uint64
	HeapSys      uint64
	Uptime       time.Duration
}

// HeapAllocMB returns the allocated heap in megabytes.
func (s Snapshot) HeapAllocMB() float64 {
	return float64(s.HeapAlloc) / bytesPerMB
}

// HeapSysMB returns the heap obtained from the OS in megabytes.
func (s Snapshot) HeapSysMB() float64 {
	return float64(s.HeapSys) / bytesPerMB
}

// Provider answers runtime queries for one application.
type Provider struct {
	name        string
	version     string
	environment string
	liveness    *probe.Liveness
}

// NewProvider creates a provider. Uptime is read from liveness so both
// endpoints agree on it.
func NewProvider(name, version, environment string, liveness *probe.Liveness) *Provider {
	return &Provider{
		name:        name,
		version:     version,
		environment: environment,
		liveness:    liveness,
	}
}

func (p *Provider) Version() string {
	return p.version
}

func (p *Provider) Environment() string {
	return p.environment
}

// Snapshot reads the current runtime state.
func (p *Provider) Snapshot() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := Snapshot{
		Application:  p.name,
		Version:      p.version,
		Environment:  p.environment,
		GoVersion:    runtime.Version(),
		Platform:     runtime.GOOS,
		Architecture: runtime.GOARCH,
		CPUs:         runtime.NumCPU(),
		Goroutines:   runtime.NumGoroutine(),
		HeapAlloc:    mem.HeapAlloc,
		HeapSys:      mem.HeapSys,
	}
	s.Uptime = p.uptime()
	return s
}

func (p *Provider) uptime() time.Duration {
	if p.liveness == nil {
		return 0
	}
	return p.liveness.Snapshot().Uptime
}

// RegisterProducers adds the runtime gauges to r.
func (p *Provider) RegisterProducers(r *probe.Registry) error {
	producers := []struct {
		name string
		help string
		fn   probe.SampleFunc
	}{
		{
			name: "process_uptime_seconds",
			help: "Seconds since the process started",
			fn: func() (float64, error) {
				return p.uptime().Seconds(), nil
			},
		},
		{
			name: "go_goroutines",
			help: "Number of goroutines that currently exist",
			fn: func() (float64, error) {
				return float64(runtime.NumGoroutine()), nil
			},
		},
		{
			name: "go_memstats_heap_alloc_bytes",
			help: "Number of heap bytes allocated and still in use",
			fn: func() (float64, error) {
				var mem runtime.MemStats
				runtime.ReadMemStats(&mem)
				return float64(mem.HeapAlloc), nil
			},
		},
		{
			name: "go_memstats_heap_sys_bytes",
			help: "Number of heap bytes obtained from the system",
			fn: func() (float64, error) {
				var mem runtime.MemStats
				runtime.ReadMemStats(&mem)
				return float64(mem.HeapSys), nil
			},
		},
	}

	for _, prod := range producers {
		if err := r.Register(prod.name, probe.KindGauge, nil, prod.fn, probe.WithHelp(prod.help)); err != nil {
			return err
		}
	}
	return nil
}
