//go:build !integration

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/adscout/internal/config"
	"github.com/sells-group/adscout/internal/model"
)

func TestCommandMetadata(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
		assert.NotEmpty(t, c.Short, "command %s has no short help", c.Name())
	}

	for _, want := range []string{
		"fetch", "search", "detail", "run", "assets",
		"export", "serve", "status", "migrate", "cookies", "config",
	} {
		assert.True(t, names[want], "command %s not registered", want)
	}
}

func TestFetchCmd_Flags(t *testing.T) {
	require.NotNil(t, fetchCmd.Flags().Lookup("out"))
	require.NotNil(t, fetchCmd.Flags().Lookup("render"))
}

func TestFormatAdRefs(t *testing.T) {
	refs := []model.AdRef{
		{ID: "123456", DetailURL: "https://www.linkedin.com/ad-library/detail/123456"},
		{ID: "789012", DetailURL: "https://www.linkedin.com/ad-library/detail/789012"},
	}

	var buf bytes.Buffer
	formatAdRefs(&buf, refs)

	out := buf.String()
	assert.Contains(t, out, "AD ID")
	assert.Contains(t, out, "123456")
	assert.Contains(t, out, "https://www.linkedin.com/ad-library/detail/789012")
}

func TestFormatRuns(t *testing.T) {
	started := time.Date(2026, 3, 10, 9, 15, 0, 0, time.UTC)
	runs := []model.ScrapeRun{
		{
			ID:          "run-1",
			Advertiser:  "Acme",
			Status:      "completed",
			AdsFound:    12,
			AssetsSaved: 30,
			StartedAt:   started,
		},
		{
			ID:         "run-2",
			Advertiser: "Globex",
			Status:     "failed",
			StartedAt:  started,
			Error:      "pipeline: run run-2: 5 consecutive detail failures, something long enough to truncate",
		},
	}

	var buf bytes.Buffer
	formatRuns(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "RUN ID")
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "2026-03-10 09:15")
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, "long enough to truncate")
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "oracle"}}

	_, err := openStore(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestOpenStore_PostgresRequiresURL(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "postgres"}}

	_, err := openStore(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")
}

func TestCookiesFileIfPresent(t *testing.T) {
	cfg = &config.Config{}
	assert.Empty(t, cookiesFileIfPresent())

	cfg.Fetch.CookiesFile = filepath.Join(t.TempDir(), "missing.json")
	assert.Empty(t, cookiesFileIfPresent())

	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))
	cfg.Fetch.CookiesFile = path
	assert.Equal(t, path, cookiesFileIfPresent())
}

func TestConfigInit_WritesYAML(t *testing.T) {
	var err error
	cfg, err = config.Load()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, configInitCmd.Flags().Set("out", path))
	defer func() { _ = configInitCmd.Flags().Set("out", "config.yaml") }()

	require.NoError(t, configInitCmd.RunE(configInitCmd, nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var round config.Config
	require.NoError(t, yaml.Unmarshal(raw, &round))
	assert.Equal(t, cfg.Fetch.BaseURL, round.Fetch.BaseURL)
	assert.Equal(t, cfg.Store.Driver, round.Store.Driver)

	// Without --force a second init refuses to clobber the file.
	err = configInitCmd.RunE(configInitCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}
