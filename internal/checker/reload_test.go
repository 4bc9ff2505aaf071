package checker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leslieo2/go-probe/internal/config"
	"github.com/leslieo2/go-probe/internal/constants"
	"github.com/leslieo2/go-probe/internal/probe"
)

func TestReloader(t *testing.T) {
	readiness := probe.NewReadiness(nil)
	s := NewScheduler(readiness)
	defer s.Stop()

	require.NoError(t, s.Add(definition("legacy", okCheck)))

	cfg := config.DefaultConfig()
	cfg.Checks.Dependencies = []config.CheckConfig{
		{Name: "socket", Type: constants.CheckTypeTCP, Target: "127.0.0.1:1"},
	}

	r := NewReloader(func() (*config.Config, error) { return cfg, nil }, s, nil)
	assert.Equal(t, "dependency-checks", r.Name())
	require.NoError(t, r.Reload(context.Background()))

	assert.Equal(t, []string{"socket"}, s.Names())
	names := make([]string, 0)
	for _, c := range readiness.Snapshot().Checks {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"socket"}, names)
}

func TestReloader_InvalidConfigKeepsChecks(t *testing.T) {
	s := NewScheduler(probe.NewReadiness(nil))
	defer s.Stop()
	require.NoError(t, s.Add(definition("db", okCheck)))

	r := NewReloader(func() (*config.Config, error) { return nil, errors.New("bad yaml") }, s, nil)
	assert.ErrorContains(t, r.Reload(context.Background()), "bad yaml")
	assert.Equal(t, []string{"db"}, s.Names())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Reload(ctx), context.Canceled)
}
