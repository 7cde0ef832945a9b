package adlib

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailFixture = `<!DOCTYPE html>
<html>
<body>
  <h1>Acme Running Co</h1>
  <a href="https://www.linkedin.com/company/acme-running">
    <img alt="Acme Running Co logo" src="https://media.example.com/company/logo-acme.png">
  </a>
  <p class="commentary__content">Lace up for the 2026 season. Our lightest trail shoe yet, built for long miles and bad weather.</p>
  <span>Video Ad</span>
  <p>Paid for by: Acme Running Co. All rights reserved.</p>
  <a class="cta-button" href="https://acme.example.com/shop">Shop Now</a>
  <img src="https://media.example.com/ads/creative-hero.jpg">
  <img data-delayed-url="https://media.example.com/ads/creative-alt.jpg">
  <video data-poster-url="https://media.example.com/ads/poster-1.jpg"
         data-sources='[{"src":"https://media.example.com/vid/mp4-720p-30fp-crf28/clip.mp4"},{"src":"https://media.example.com/vid/mp4-1080p-30fp-crf28/clip.mp4"}]'>
  </video>
</body>
</html>`

func TestParseDetail_FullCreative(t *testing.T) {
	c, err := ParseDetail([]byte(detailFixture))
	require.NoError(t, err)

	assert.Equal(t, "Acme Running Co", c.Advertiser)
	assert.Contains(t, c.Body, "Lace up for the 2026 season")
	assert.Equal(t, "Video Ad", c.AdType)
	assert.Equal(t, "Acme Running Co", c.PaidForBy)

	require.NotEmpty(t, c.CTAs)
	assert.Equal(t, "Shop Now", c.CTAs[0].Text)
	assert.Equal(t, "https://acme.example.com/shop", c.CTAs[0].Link)

	assert.Equal(t, "https://media.example.com/company/logo-acme.png", c.LogoURL)
	assert.ElementsMatch(t, []string{
		"https://media.example.com/ads/creative-hero.jpg",
		"https://media.example.com/ads/creative-alt.jpg",
	}, c.ImageURLs)

	require.Len(t, c.VideoURLs, 1, "quality rungs of one clip must collapse to one URL")
	assert.Equal(t, "https://media.example.com/vid/mp4-1080p-30fp-crf28/clip.mp4", c.VideoURLs[0])
	assert.Equal(t, []string{"https://media.example.com/ads/poster-1.jpg"}, c.PosterURLs)
}

func TestParseDetail_EmptyPage(t *testing.T) {
	c, err := ParseDetail([]byte("<html><body></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, c.Advertiser)
	assert.Empty(t, c.VideoURLs)
	assert.Empty(t, c.ImageURLs)
}

func TestDetailClient_Scrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, detailPath+"/555", r.URL.Path)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(detailFixture))
	}))
	defer srv.Close()

	dc := NewDetailClient(testFetcher(t), srv.URL)
	ad, err := dc.Scrape(context.Background(), "555")
	require.NoError(t, err)

	assert.Equal(t, "555", ad.ID)
	assert.Equal(t, srv.URL+"/ad-library/detail/555", ad.DetailURL)
	assert.Equal(t, "Acme Running Co", ad.Creative.Advertiser)
	assert.False(t, ad.ScrapedAt.IsZero())
}

func TestDetailClient_Scrape_BlockedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><meta content="https://www.linkedin.com/authwall?x=1"></html>`))
	}))
	defer srv.Close()

	dc := NewDetailClient(testFetcher(t), srv.URL)
	_, err := dc.Scrape(context.Background(), "555")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestVideoBasePath(t *testing.T) {
	base := VideoBasePath("https://media.example.com/vid/mp4-720p-30fp-crf28/clip.mp4")
	assert.Equal(t, "https://media.example.com/vid/clip.mp4", base)

	assert.Equal(t, base, VideoBasePath("https://media.example.com/vid/mp4-1080p-30fp-crf28/clip.mp4"))
	assert.Equal(t, "https://media.example.com/vid/clip.mp4",
		VideoBasePath("https://media.example.com/vid/mp4-480p/clip.mp4"))

	// Non-video URLs pass through untouched.
	assert.Equal(t, "https://media.example.com/img/a.jpg",
		VideoBasePath("https://media.example.com/img/a.jpg"))
}

func TestBestQuality(t *testing.T) {
	urls := []string{
		"https://m.example.com/vid/mp4-480p-30fp/clip.mp4",
		"https://m.example.com/vid/mp4-1080p-30fp/clip.mp4",
		"https://m.example.com/vid/mp4-720p-30fp/clip.mp4",
	}
	assert.Equal(t, urls[1], bestQuality(urls))

	// A lone URL without quality markers still wins its own group.
	assert.Equal(t, "https://m.example.com/vid/clip.mp4",
		bestQuality([]string{"https://m.example.com/vid/clip.mp4"}))
}

func TestParseDataSources(t *testing.T) {
	urls := parseDataSources(`[{"src":"https://m.example.com/a.mp4"},{"src":"https://m.example.com/b.mp4"}]`)
	assert.Equal(t, []string{"https://m.example.com/a.mp4", "https://m.example.com/b.mp4"}, urls)

	assert.Nil(t, parseDataSources(""))
	assert.Nil(t, parseDataSources("not json"))
}
