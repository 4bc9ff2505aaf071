package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/leslieo2/go-probe/internal/constants"
)

// ChecksConfig describes the dependency checks that feed readiness
type ChecksConfig struct {
	Interval     time.Duration `json:"interval" yaml:"interval"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	Breaker      BreakerConfig `json:"breaker" yaml:"breaker"`
	Dependencies []CheckConfig `json:"dependencies" yaml:"dependencies"`
}

// BreakerConfig configures the circuit breaker wrapped around each check
type BreakerConfig struct {
	Failures    uint32        `json:"failures" yaml:"failures"`
	OpenTimeout time.Duration `json:"open_timeout" yaml:"open_timeout"`
}

// CheckConfig describes a single dependency check. Interval and Timeout
// fall back to the ChecksConfig values when zero.
type CheckConfig struct {
	Name         string        `json:"name" yaml:"name"`
	Type         string        `json:"type" yaml:"type"`
	Target       string        `json:"target" yaml:"target"`
	Interval     time.Duration `json:"interval" yaml:"interval"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	ExpectStatus int           `json:"expect_status" yaml:"expect_status"`
	Service      string        `json:"service" yaml:"service"`
}

// DefaultChecksConfig returns the default check settings with no dependencies
func DefaultChecksConfig() ChecksConfig {
	return ChecksConfig{
		Interval: constants.CheckDefaultInterval,
		Timeout:  constants.CheckDefaultTimeout,
		Breaker: BreakerConfig{
			Failures:    constants.CheckBreakerFailures,
			OpenTimeout: constants.CheckBreakerTimeout,
		},
	}
}

var validCheckTypes = map[string]bool{
	constants.CheckTypeHTTP:     true,
	constants.CheckTypeTCP:      true,
	constants.CheckTypeRedis:    true,
	constants.CheckTypePostgres: true,
	constants.CheckTypeMongo:    true,
	constants.CheckTypeAMQP:     true,
	constants.CheckTypeGRPC:     true,
}

// Validate validates the dependency check configuration
func (c *ChecksConfig) Validate() error {
	var errs []error

	if c.Interval <= 0 {
		errs = append(errs, errors.New("interval must be positive"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.Breaker.Failures == 0 {
		errs = append(errs, errors.New("breaker.failures must be positive"))
	}

	seen := make(map[string]bool, len(c.Dependencies))
	for i, dep := range c.Dependencies {
		if dep.Name == "" {
			errs = append(errs, fmt.Errorf("dependencies[%d]: name cannot be empty", i))
			continue
		}
		if dep.Name == constants.ShutdownCheckName {
			errs = append(errs, fmt.Errorf("dependencies[%d]: name %q is reserved", i, dep.Name))
		}
		if seen[dep.Name] {
			errs = append(errs, fmt.Errorf("dependencies[%d]: duplicate name %q", i, dep.Name))
		}
		seen[dep.Name] = true
		if !validCheckTypes[dep.Type] {
			errs = append(errs, fmt.Errorf("dependencies[%d] %s: unsupported type %q", i, dep.Name, dep.Type))
		}
		if dep.Target == "" {
			errs = append(errs, fmt.Errorf("dependencies[%d] %s: target cannot be empty", i, dep.Name))
		}
		if dep.Interval < 0 || dep.Timeout < 0 {
			errs = append(errs, fmt.Errorf("dependencies[%d] %s: interval and timeout must be non-negative", i, dep.Name))
		}
	}

	return errors.Join(errs...)
}

// Resolved returns the dependency with interval and timeout defaults applied
func (c *ChecksConfig) Resolved(dep CheckConfig) CheckConfig {
	if dep.Interval == 0 {
		dep.Interval = c.Interval
	}
	if dep.Timeout == 0 {
		dep.Timeout = c.Timeout
	}
	return dep
}
