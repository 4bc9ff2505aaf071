package config

import (
	"errors"
	"fmt"
)

// Config represents the unified configuration structure
type Config struct {
	App           AppConfig           `json:"app" yaml:"app"`
	Server        ServerConfig        `json:"server" yaml:"server"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
	Security      SecurityConfig      `json:"security" yaml:"security"`
	HotReload     HotReloadConfig     `json:"hot_reload" yaml:"hot_reload"`
	TLS           TLSConfig           `json:"tls" yaml:"tls"`
	Checks        ChecksConfig        `json:"checks" yaml:"checks"`
}

// AppConfig describes the service the probes report on
type AppConfig struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Environment string `json:"environment" yaml:"environment"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		App:           DefaultAppConfig(),
		Server:        DefaultServerConfig(),
		Observability: DefaultObservabilityConfig(),
		Security:      DefaultSecurityConfig(),
		HotReload:     DefaultHotReloadConfig(),
		TLS:           DefaultTLSConfig(),
		Checks:        DefaultChecksConfig(),
	}
}

// DefaultAppConfig returns default application metadata
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Name:        "go-probe",
		Version:     "1.0.0",
		Environment: "development",
	}
}

// Validate validates the entire configuration and reports every problem found
func (c *Config) Validate() error {
	var errs []error

	if c.App.Name == "" {
		errs = append(errs, errors.New("app.name cannot be empty"))
	}
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := c.Observability.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("observability: %w", err))
	}
	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("security: %w", err))
	}
	if err := c.HotReload.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("hot_reload: %w", err))
	}
	if err := c.TLS.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tls: %w", err))
	}
	if err := c.Checks.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("checks: %w", err))
	}

	return errors.Join(errs...)
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
