package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/suggest"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, filepath.Join("./data", "organizer.db"), cfg.Database.Path)
	assert.True(t, cfg.Apply.DryRun)
	assert.Equal(t, 2, cfg.Suggest.MinGroupSize)
	assert.Equal(t, 20, cfg.Suggest.TopStudios)
	assert.True(t, cfg.Suggest.EnableMood)
	assert.Equal(t, 60, cfg.Jellyfin.Timeout)
	assert.Equal(t, 365, cfg.Apply.HistoryRetentionDays)
	assert.Empty(t, cfg.Scan.Schedule)
	assert.ErrorIs(t, cfg.RequireJellyfin(), ErrJellyfinURLMissing)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
data_dir: /srv/organizer
server:
  port: 9000
jellyfin:
  url: "http://jellyfin:8096/"
  api_key: from-file
suggest:
  min_group_size: 0
apply:
  history_retention_days: -5
`)

	t.Setenv("ORGANIZER_JELLYFIN_API_KEY", "from-env")
	t.Setenv("DRY_RUN", "false")
	t.Setenv("ENABLE_MOOD", "0")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "http://jellyfin:8096", cfg.Jellyfin.URL)
	assert.Equal(t, "from-env", cfg.Jellyfin.APIKey)
	assert.False(t, cfg.Apply.DryRun)
	assert.False(t, cfg.Suggest.EnableMood)
	assert.Equal(t, 1, cfg.Suggest.MinGroupSize)
	assert.Equal(t, 0, cfg.Apply.HistoryRetentionDays)
	assert.Equal(t, filepath.Join("/srv/organizer", "organizer.db"), cfg.Database.Path)
	assert.NoError(t, cfg.RequireJellyfin())
}

func TestLoad_PrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("ORGANIZER_JELLYFIN_URL", "http://new:8096")
	t.Setenv("JELLYFIN_URL", "http://old:8096")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://new:8096", cfg.Jellyfin.URL)
}

func TestLoad_InvalidPort(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  port: 70000\n"))
	assert.Error(t, err)
}

func TestEngineOptions(t *testing.T) {
	rulesFile := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rulesFile, []byte("Alien:\n  - alien\nRocky: [rocky, creed]\n"), 0o600))

	c := Default().Suggest
	c.FranchiseRulesJSON = `{"Rocky": ["rocky"], "Harry Potter": ["harry potter"]}`
	c.FranchiseRulesFile = rulesFile
	c.StudioAllowlistJSON = `["Pixar"]`

	opts := c.EngineOptions(zerolog.Nop())

	assert.Equal(t, []suggest.FranchiseRule{
		{Name: "Rocky", Keywords: []string{"rocky", "creed"}},
		{Name: "Harry Potter", Keywords: []string{"harry potter"}},
		{Name: "Alien", Keywords: []string{"alien"}},
	}, opts.FranchiseRules)
	assert.Equal(t, []string{"pixar"}, opts.StudioAllowlist)
	assert.Equal(t, 2, opts.MinGroupSize)
	assert.True(t, opts.EnableFranchise)
}

func TestEngineOptions_MalformedInputsAreEmpty(t *testing.T) {
	c := Default().Suggest
	c.FranchiseRulesJSON = `{"broken": [`
	c.StudioAllowlistJSON = `not json`
	c.FranchiseRulesFile = filepath.Join(t.TempDir(), "missing.yaml")

	opts := c.EngineOptions(zerolog.Nop())

	assert.Empty(t, opts.FranchiseRules)
	assert.Empty(t, opts.StudioAllowlist)
}
