package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper functions for pointers
func stringPtr(s string) *string { return &s }
func boolPtr(b bool) *bool       { return &b }

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name        string
		fileName    string
		fileContent string
		configFile  string
		envVars     map[string]string
		cliFlags    *CLIFlags
		wantPort    string
		wantErr     bool
	}{
		{
			name:     "Default Config Only",
			wantPort: "8080",
		},
		{
			name:        "Load from YAML file",
			fileName:    "config.yaml",
			fileContent: `server: {port: "8081"}`,
			wantPort:    "8081",
		},
		{
			name:        "Load from JSON file",
			fileName:    "config.json",
			fileContent: `{"server": {"port": "8082"}}`,
			wantPort:    "8082",
		},
		{
			name:       "File not found",
			configFile: "nonexistent.yaml",
			wantErr:    true,
		},
		{
			name:        "Unsupported extension",
			fileName:    "config.toml",
			fileContent: `port = 1`,
			wantErr:     true,
		},
		{
			name:        "Invalid file content",
			fileName:    "config.yaml",
			fileContent: `server: {port: "8081"`,
			wantErr:     true,
		},
		{
			name:     "Load from Environment Variables",
			envVars:  map[string]string{"GO_PROBE_PORT": "8083"},
			wantPort: "8083",
		},
		{
			name:     "Override with CLI Flags",
			cliFlags: &CLIFlags{Port: stringPtr("8084")},
			wantPort: "8084",
		},
		{
			name:        "Precedence: CLI > Env > File > Default",
			fileName:    "config.yaml",
			fileContent: `server: {port: "8085"}`,
			envVars:     map[string]string{"GO_PROBE_PORT": "8086"},
			cliFlags:    &CLIFlags{Port: stringPtr("8087")},
			wantPort:    "8087",
		},
		{
			name:     "Validation Error from CLI",
			cliFlags: &CLIFlags{Port: stringPtr("invalid-port")},
			wantErr:  true,
		},
		{
			name:        "Validation Error from File",
			fileName:    "config.yaml",
			fileContent: `server: {port: "70000"}`,
			wantErr:     true,
		},
		{
			name:    "Validation Error from Env",
			envVars: map[string]string{"GO_PROBE_PORT": "invalid-port"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			configFile := tt.configFile
			if tt.fileContent != "" {
				configFile = writeConfig(t, tt.fileName, tt.fileContent)
			}

			cfg, err := LoadConfig(configFile, tt.cliFlags)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPort, cfg.Server.Port)
		})
	}
}

func TestLoadConfig_FileKeepsUnsetDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
app:
  name: orders
server:
  shutdown_timeout: 5s
checks:
  interval: 3s
  dependencies:
    - name: db
      type: postgres
      target: postgres://localhost/orders?sslmode=disable
    - name: upstream
      type: http
      target: http://localhost:9000/health
      interval: 1s
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "orders", cfg.App.Name)
	assert.Equal(t, "1.0.0", cfg.App.Version)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 3*time.Second, cfg.Checks.Interval)
	require.Len(t, cfg.Checks.Dependencies, 2)

	db := cfg.Checks.Resolved(cfg.Checks.Dependencies[0])
	assert.Equal(t, 3*time.Second, db.Interval)
	assert.Equal(t, 2*time.Second, db.Timeout)

	upstream := cfg.Checks.Resolved(cfg.Checks.Dependencies[1])
	assert.Equal(t, time.Second, upstream.Interval)
}

func TestLoadConfig_OnlyChangedFlagsOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", `server: {port: "9001", host: "127.0.0.1"}`)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--log-level", "debug", "--hot-reload=false"}))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "9001", cfg.Server.Port, "unchanged flag default must not override the file")
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
	assert.False(t, cfg.HotReload.Enabled)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GO_PROBE_APP_NAME", "billing")
	t.Setenv("GO_PROBE_APP_ENV", "production")
	t.Setenv("GO_PROBE_SHUTDOWN_TIMEOUT", "7s")
	t.Setenv("GO_PROBE_HOT_RELOAD", "false")
	t.Setenv("GO_PROBE_READ_TIMEOUT", "not-a-duration")

	cfg, err := LoadConfig("", &CLIFlags{HotReload: boolPtr(true)})
	require.NoError(t, err)

	assert.Equal(t, "billing", cfg.App.Name)
	assert.Equal(t, "production", cfg.App.Environment)
	assert.Equal(t, 7*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "malformed env values are ignored")
	assert.True(t, cfg.HotReload.Enabled, "CLI wins over env")
}
