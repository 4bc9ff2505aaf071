package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/leslieo2/go-probe/internal/constants"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration with precedence:
// 1. Explicitly set CLI flags (highest priority)
// 2. Environment variables
// 3. Configuration file values
// 4. Default configuration values (lowest priority)
func LoadConfig(configFile string, cliFlags *CLIFlags) (*Config, error) {
	config := DefaultConfig()

	if configFile != "" {
		if err := loadFromFile(configFile, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	loadFromEnv(config)

	if cliFlags != nil {
		overrideWithCLI(config, cliFlags)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// CLIFlags contains CLI flag values that can override configuration.
// When Set is nil every non-nil field counts as explicitly set; otherwise
// only flags marked as changed on Set override other sources.
type CLIFlags struct {
	Set *pflag.FlagSet

	ConfigFile      *string
	Host            *string
	Port            *string
	ReadTimeout     *time.Duration
	WriteTimeout    *time.Duration
	IdleTimeout     *time.Duration
	MaxRequestSize  *int64
	ShutdownTimeout *time.Duration
	LogLevel        *string
	LogFormat       *string
	HotReload       *bool
	TLSEnabled      *bool
	TLSCertFile     *string
	TLSKeyFile      *string
}

// RegisterFlags defines the command line flags on fs
func RegisterFlags(fs *pflag.FlagSet) *CLIFlags {
	d := DefaultConfig()
	return &CLIFlags{
		Set:             fs,
		ConfigFile:      fs.String("config", "", "Path to configuration file (YAML or JSON)"),
		Host:            fs.String("host", d.Server.Host, "Host to listen on"),
		Port:            fs.String("port", d.Server.Port, "Port to listen on"),
		ReadTimeout:     fs.Duration("read-timeout", d.Server.ReadTimeout, "HTTP server read timeout"),
		WriteTimeout:    fs.Duration("write-timeout", d.Server.WriteTimeout, "HTTP server write timeout"),
		IdleTimeout:     fs.Duration("idle-timeout", d.Server.IdleTimeout, "HTTP server idle timeout"),
		MaxRequestSize:  fs.Int64("max-request-size", d.Server.MaxRequestSize, "Maximum request size in bytes"),
		ShutdownTimeout: fs.Duration("shutdown-timeout", d.Server.ShutdownTimeout, "Graceful shutdown timeout"),
		LogLevel:        fs.String("log-level", d.Observability.Logging.Level, "Log level: debug, info, warn, error"),
		LogFormat:       fs.String("log-format", d.Observability.Logging.Format, "Log format: json, console"),
		HotReload:       fs.Bool("hot-reload", d.HotReload.Enabled, "Reload dependency checks when the config file changes"),
		TLSEnabled:      fs.Bool("tls-enabled", d.TLS.Enabled, "Serve over TLS"),
		TLSCertFile:     fs.String("tls-cert-file", "", "TLS certificate file"),
		TLSKeyFile:      fs.String("tls-key-file", "", "TLS key file"),
	}
}

// changed reports whether the named flag should override other sources
func (f *CLIFlags) changed(name string) bool {
	if f.Set == nil {
		return true
	}
	return f.Set.Changed(name)
}

// loadFromFile decodes a YAML or JSON file on top of config
func loadFromFile(filePath string, config *Config) error {
	if !filepath.IsAbs(filePath) {
		absPath, err := filepath.Abs(filePath)
		if err != nil {
			return fmt.Errorf("failed to get absolute path for %s: %w", filePath, err)
		}
		filePath = absPath
	}

	data, err := os.ReadFile(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	ext := filepath.Ext(filePath)
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".json":
		err = json.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(config *Config) {
	if val := os.Getenv(constants.EnvHost); val != "" {
		config.Server.Host = val
	}
	if val := os.Getenv(constants.EnvPort); val != "" {
		config.Server.Port = val
	}
	if val := os.Getenv(constants.EnvReadTimeout); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.Server.ReadTimeout = duration
		}
	}
	if val := os.Getenv(constants.EnvWriteTimeout); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.Server.WriteTimeout = duration
		}
	}
	if val := os.Getenv(constants.EnvIdleTimeout); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.Server.IdleTimeout = duration
		}
	}
	if val := os.Getenv(constants.EnvMaxRequestSize); val != "" {
		if size, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.Server.MaxRequestSize = size
		}
	}
	if val := os.Getenv(constants.EnvShutdownTimeout); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.Server.ShutdownTimeout = duration
		}
	}
	if val := os.Getenv(constants.EnvAppName); val != "" {
		config.App.Name = val
	}
	if val := os.Getenv(constants.EnvAppVersion); val != "" {
		config.App.Version = val
	}
	if val := os.Getenv(constants.EnvAppEnvironment); val != "" {
		config.App.Environment = val
	}
	if val := os.Getenv(constants.EnvLogLevel); val != "" {
		config.Observability.Logging.Level = val
	}
	if val := os.Getenv(constants.EnvLogFormat); val != "" {
		config.Observability.Logging.Format = val
	}
	if val := os.Getenv(constants.EnvHotReload); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			config.HotReload.Enabled = enabled
		}
	}
	if val := os.Getenv(constants.EnvTLSEnabled); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			config.TLS.Enabled = enabled
		}
	}
	if val := os.Getenv(constants.EnvTLSCertFile); val != "" {
		config.TLS.CertFile = val
	}
	if val := os.Getenv(constants.EnvTLSKeyFile); val != "" {
		config.TLS.KeyFile = val
	}
}

// overrideWithCLI overrides configuration with CLI flag values.
// Only explicitly set CLI flags override other configuration sources.
func overrideWithCLI(config *Config, flags *CLIFlags) {
	if flags.Host != nil && flags.changed("host") {
		config.Server.Host = *flags.Host
	}
	if flags.Port != nil && flags.changed("port") {
		config.Server.Port = *flags.Port
	}
	if flags.ReadTimeout != nil && flags.changed("read-timeout") {
		config.Server.ReadTimeout = *flags.ReadTimeout
	}
	if flags.WriteTimeout != nil && flags.changed("write-timeout") {
		config.Server.WriteTimeout = *flags.WriteTimeout
	}
	if flags.IdleTimeout != nil && flags.changed("idle-timeout") {
		config.Server.IdleTimeout = *flags.IdleTimeout
	}
	if flags.MaxRequestSize != nil && flags.changed("max-request-size") {
		config.Server.MaxRequestSize = *flags.MaxRequestSize
	}
	if flags.ShutdownTimeout != nil && flags.changed("shutdown-timeout") {
		config.Server.ShutdownTimeout = *flags.ShutdownTimeout
	}
	if flags.LogLevel != nil && flags.changed("log-level") {
		config.Observability.Logging.Level = *flags.LogLevel
	}
	if flags.LogFormat != nil && flags.changed("log-format") {
		config.Observability.Logging.Format = *flags.LogFormat
	}
	if flags.HotReload != nil && flags.changed("hot-reload") {
		config.HotReload.Enabled = *flags.HotReload
	}
	if flags.TLSEnabled != nil && flags.changed("tls-enabled") {
		config.TLS.Enabled = *flags.TLSEnabled
	}
	if flags.TLSCertFile != nil && flags.changed("tls-cert-file") {
		config.TLS.CertFile = *flags.TLSCertFile
	}
	if flags.TLSKeyFile != nil && flags.changed("tls-key-file") {
		config.TLS.KeyFile = *flags.TLSKeyFile
	}
}
