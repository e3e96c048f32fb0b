package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"routeopt/internal/opt"
)

func TestDefaultsAreValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	require.Equal(t, opt.Hybrid, c.Options().Algorithm)
	require.Equal(t, 30.0, c.Options().TimeLimit)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
routing:
  url: http://osrm:5000
  timeout: 3s
cache:
  ttl: 24h
optimizer:
  algorithm: genetic
  populationSize: 40
`), 0o600))
	t.Setenv("PORT", "7070")
	t.Setenv("RATE_RPS", "2.5")
	t.Setenv("OPTIMIZER_MAX_LOCATIONS", "120")

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "7070", c.Port)
	require.Equal(t, "http://osrm:5000", c.Routing.URL)
	require.Equal(t, 3*time.Second, c.Routing.Timeout)
	require.Equal(t, 24*time.Hour, c.Cache.TTL)
	require.Equal(t, 2.5, c.Rate.RPS)
	require.Equal(t, opt.Genetic, c.Options().Algorithm)
	require.Equal(t, 40, c.Options().PopulationSize)
	require.Equal(t, 120, c.Optimizer.MaxLocations)
	// untouched defaults survive
	require.Equal(t, "@every 30m", c.Cache.ClearSchedule)
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	c := Default()
	env := map[string]string{"RATE_BURST": "lots", "ROUTING_RPS": "fast"}
	err := c.applyEnv(func(k string) string { return env[k] })
	require.ErrorContains(t, err, "RATE_BURST")
	require.ErrorContains(t, err, "ROUTING_RPS")
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Optimizer.Algorithm = "ant_colony"
	require.Error(t, c.Validate())

	c = Default()
	c.Optimizer.MaxLocations = 1
	require.ErrorContains(t, c.Validate(), "maxLocations")

	c = Default()
	c.LogLevel = "chatty"
	require.Error(t, c.Validate())
	require.Equal(t, "info", Default().Level().String())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
