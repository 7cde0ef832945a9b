package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adscout/internal/adlib"
	"github.com/sells-group/adscout/internal/assets"
	"github.com/sells-group/adscout/internal/fetch"
	"github.com/sells-group/adscout/internal/model"
	"github.com/sells-group/adscout/internal/resilience"
	"github.com/sells-group/adscout/internal/store"
)

func fastClient(t *testing.T) *fetch.Client {
	t.Helper()
	c, err := fetch.New(fetch.Options{
		Timeout:    5 * time.Second,
		PerHostRPS: 1000,
		Burst:      1000,
		Retry: resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			Multiplier:     2.0,
		},
	})
	require.NoError(t, err)
	return c
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "adscout.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newPipeline(t *testing.T, base string, st store.Store, assetsDir string) *Pipeline {
	t.Helper()
	c := fastClient(t)
	search := adlib.NewSearchClient(c, adlib.SearchOptions{BaseURL: base, PageDelay: time.Millisecond})
	detail := adlib.NewDetailClient(c, base)

	var dl *assets.Downloader
	if assetsDir != "" {
		var err error
		dl, err = assets.NewDownloader(c, assets.Options{Dir: assetsDir})
		require.NoError(t, err)
	}

	return New(search, detail, dl, st, Options{
		DetailDelay:    time.Millisecond,
		DownloadAssets: assetsDir != "",
	})
}

func TestRun_FullWorkflow(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/ad-library/searchPaginationFragment", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"html":%q,"paginationToken":""}`,
			`<a href="/ad-library/detail/111">a</a><a href="/ad-library/detail/222">b</a>`)
	})
	mux.HandleFunc("/ad-library/detail/111", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><h1>Acme</h1>
			<p class="commentary__content">Fresh creative copy for the season launch.</p>
			<img src="%s/media/creative-111.jpg"></body></html>`, srv.URL)
	})
	mux.HandleFunc("/ad-library/detail/222", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/media/creative-111.jpg", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpeg-bytes"))
	})

	st := newTestStore(t)
	assetsDir := t.TempDir()
	p := newPipeline(t, srv.URL, st, assetsDir)

	run, err := p.Run(context.Background(), "Acme")
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.AdsFound, "the 404 detail page is skipped")
	assert.Equal(t, 1, run.AssetsSaved)
	require.NotNil(t, run.CompletedAt)

	ads, err := st.ListAds(context.Background(), store.AdFilter{RunID: run.ID})
	require.NoError(t, err)
	require.Len(t, ads, 1)
	assert.Equal(t, "111", ads[0].ID)
	assert.Equal(t, "Acme", ads[0].Creative.Advertiser)

	recorded, err := st.ListAssets(context.Background(), "111")
	require.NoError(t, err)
	require.Len(t, recorded, 1)

	raw, err := os.ReadFile(recorded[0].LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(raw))
	assert.True(t, strings.HasPrefix(recorded[0].LocalPath, assetsDir))
}

func TestRun_BreakerStopsAfterConsecutiveFailures(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var links strings.Builder
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&links, `<a href="/ad-library/detail/9%02d">x</a>`, i)
	}
	mux.HandleFunc("/ad-library/searchPaginationFragment", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"html":%q,"paginationToken":""}`, links.String())
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	st := newTestStore(t)
	p := newPipeline(t, srv.URL, st, "")
	p.opts.BreakerThreshold = 3

	_, err := p.Run(context.Background(), "Acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consecutive detail failures")

	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "consecutive detail failures")
}

func TestRun_NoAdsFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"html":"<div>nothing</div>","paginationToken":""}`)
	}))
	defer srv.Close()

	st := newTestStore(t)
	p := newPipeline(t, srv.URL, st, "")

	run, err := p.Run(context.Background(), "Ghost Brand")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Zero(t, run.AdsFound)
}
