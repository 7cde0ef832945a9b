package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adscout/internal/adlib"
	"github.com/sells-group/adscout/internal/fetch"
	"github.com/sells-group/adscout/internal/resilience"
	"github.com/sells-group/adscout/internal/store"
)

// newFetchClient builds the portal HTTP client from config.
func newFetchClient() (*fetch.Client, error) {
	retry := resilience.DefaultRetryConfig()
	if cfg.Fetch.Retries > 0 {
		retry.MaxAttempts = cfg.Fetch.Retries
	}

	return fetch.New(fetch.Options{
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		Retry:        retry,
		UserAgents:   cfg.Fetch.UserAgents,
		CookiesFile:  cookiesFileIfPresent(),
		SiteURL:      cfg.Fetch.BaseURL,
		Proxies:      cfg.Fetch.Proxies,
		PerHostRPS:   cfg.Fetch.PerHostRPS,
		Burst:        cfg.Fetch.Burst,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	})
}

// cookiesFileIfPresent returns the configured cookies file only when it
// exists, so anonymous fetches work before the cookie bootstrap.
func cookiesFileIfPresent() string {
	path := cfg.Fetch.CookiesFile
	if path == "" {
		return ""
	}
	if !fileExists(path) {
		return ""
	}
	return path
}

func newSearchClient(c *fetch.Client) *adlib.SearchClient {
	return adlib.NewSearchClient(c, adlib.SearchOptions{
		BaseURL:   cfg.Fetch.BaseURL,
		PageDelay: time.Duration(cfg.Search.PageDelaySecs) * time.Second,
		MaxPages:  cfg.Search.MaxPages,
	})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// openStore opens the configured persistence backend.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for the postgres driver")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
