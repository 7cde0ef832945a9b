package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adscout/internal/resilience"
)

func fastOpts() Options {
	return Options{
		Timeout:    5 * time.Second,
		PerHostRPS: 1000,
		Burst:      1000,
		Retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			Multiplier:     2.0,
		},
	}
}

func TestFetch_OKRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(200)
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	c, err := New(fastOpts())
	require.NoError(t, err)

	resp, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "<html></html>", string(resp.Body))
	assert.NotEmpty(t, resp.Body)
	assert.False(t, resp.FetchedAt.IsZero())
}

func TestFetch_UserAgentSentMatchesRecorded(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, err := New(fastOpts())
	require.NoError(t, err)

	resp, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.NotEmpty(t, resp.UserAgent)
	assert.Equal(t, resp.UserAgent, got.Load().(string), "outbound User-Agent must equal the recorded one")
	assert.Contains(t, resp.UserAgent, "Mozilla/5.0")
}

func TestFetch_CustomAgentPool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ScoutTest/2.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	opts := fastOpts()
	opts.UserAgents = []string{"ScoutTest/2.0"}
	c, err := New(opts)
	require.NoError(t, err)

	resp, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ScoutTest/2.0", resp.UserAgent)
}

func TestFetch_UnreachableHostIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(fastOpts())
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), url)
	require.Error(t, err)
	assert.True(t, resilience.IsNetworkError(err), "expected network classification, got: %v", err)
}

func TestFetch_RetriesOn503(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(503)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	c, err := New(fastOpts())
	require.NoError(t, err)

	resp, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(resp.Body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_404IsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		_, _ = w.Write([]byte("gone"))
	}))
	defer srv.Close()

	c, err := New(fastOpts())
	require.NoError(t, err)

	resp, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "gone", string(resp.Body))
}

func TestFetchFragment_SendsXHRHeadersAndCSRF(t *testing.T) {
	dir := t.TempDir()
	cookiesPath := filepath.Join(dir, "cookies.json")
	cookieJSON := `[
		{"name":"JSESSIONID","value":"\"ajax:123456\"","domain":"127.0.0.1","path":"/"},
		{"name":"lang","value":"en","domain":"127.0.0.1","path":"/"}
	]`
	require.NoError(t, os.WriteFile(cookiesPath, []byte(cookieJSON), 0o600))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ajax:123456", r.Header.Get("Csrf-Token"))
		assert.Equal(t, "2.0.0", r.Header.Get("X-Restli-Protocol-Version"))
		assert.Equal(t, "empty", r.Header.Get("Sec-Fetch-Dest"))
		if c, err := r.Cookie("lang"); assert.NoError(t, err) {
			assert.Equal(t, "en", c.Value)
		}
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	opts := fastOpts()
	opts.CookiesFile = cookiesPath
	opts.SiteURL = srv.URL
	c, err := New(opts)
	require.NoError(t, err)

	_, err = c.FetchFragment(context.Background(), srv.URL+"/fragment")
	require.NoError(t, err)
}

func TestFetch_DocumentProfileHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "document", r.Header.Get("Sec-Fetch-Dest"))
		assert.Equal(t, "navigate", r.Header.Get("Sec-Fetch-Mode"))
		assert.Contains(t, r.Header.Get("Accept"), "text/html")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, err := New(fastOpts())
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
}

func TestDownload_RequiresOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(404)
			return
		}
		_, _ = w.Write([]byte("binarydata"))
	}))
	defer srv.Close()

	c, err := New(fastOpts())
	require.NoError(t, err)

	body, err := c.Download(context.Background(), srv.URL+"/asset.jpg")
	require.NoError(t, err)
	defer func() { _ = body.Close() }()

	_, err = c.Download(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "www.example.com", hostOf("https://www.example.com/a/b?c=d"))
	assert.Equal(t, "example.com:8080", hostOf("http://example.com:8080"))
	assert.Equal(t, "example.com", hostOf("example.com/path"))
}
