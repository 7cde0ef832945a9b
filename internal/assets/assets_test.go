package assets

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adscout/internal/model"
)

type fakeFetcher struct {
	content map[string]string
}

func (f *fakeFetcher) Download(_ context.Context, rawURL string) (io.ReadCloser, error) {
	body, ok := f.content[rawURL]
	if !ok {
		return nil, errors.New("unexpected status 404")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func testAd() *model.Ad {
	return &model.Ad{
		ID: "777",
		Creative: model.Creative{
			LogoURL:    "https://m.example.com/company/logo.png",
			ImageURLs:  []string{"https://m.example.com/ads/hero.jpg?sig=abc"},
			VideoURLs:  []string{"https://m.example.com/vid/mp4-1080p-30fp-crf28/clip.mp4"},
			PosterURLs: []string{"https://m.example.com/ads/poster.jpg"},
		},
	}
}

func TestDownloadAll_SavesEveryKind(t *testing.T) {
	ad := testAd()
	ff := &fakeFetcher{content: map[string]string{
		ad.Creative.LogoURL:      "logo-bytes",
		ad.Creative.ImageURLs[0]: "image-bytes",
		ad.Creative.VideoURLs[0]: "video-bytes-somewhat-longer",
		ad.Creative.PosterURLs[0]: "poster-bytes",
	}}

	d, err := NewDownloader(ff, Options{Dir: t.TempDir(), Concurrency: 2})
	require.NoError(t, err)

	res, err := d.DownloadAll(context.Background(), ad)
	require.NoError(t, err)
	require.Len(t, res.Saved, 4)
	assert.Zero(t, res.Skipped)
	assert.Zero(t, res.Failed)

	kinds := map[model.AssetKind]bool{}
	for _, a := range res.Saved {
		kinds[a.Kind] = true
		assert.Equal(t, "777", a.AdID)
		assert.Positive(t, a.Bytes)

		raw, err := os.ReadFile(a.LocalPath)
		require.NoError(t, err)
		assert.Equal(t, ff.content[a.SourceURL], string(raw))
	}
	assert.Len(t, kinds, 4)
}

func TestDownloadAll_DedupsAcrossAds(t *testing.T) {
	logo := "https://m.example.com/company/logo.png"
	ff := &fakeFetcher{content: map[string]string{logo: "logo-bytes"}}

	d, err := NewDownloader(ff, Options{Dir: t.TempDir()})
	require.NoError(t, err)

	ad1 := &model.Ad{ID: "1", Creative: model.Creative{LogoURL: logo}}
	ad2 := &model.Ad{ID: "2", Creative: model.Creative{LogoURL: logo + "?cachebust=9"}}

	res1, err := d.DownloadAll(context.Background(), ad1)
	require.NoError(t, err)
	assert.Len(t, res1.Saved, 1)

	// Same file behind a different query string: skipped, not refetched.
	res2, err := d.DownloadAll(context.Background(), ad2)
	require.NoError(t, err)
	assert.Empty(t, res2.Saved)
	assert.Equal(t, 1, res2.Skipped)
}

func TestDownloadAll_VideoRenditionsShareAKey(t *testing.T) {
	v1 := "https://m.example.com/vid/mp4-720p-30fp-crf28/clip.mp4"
	v2 := "https://m.example.com/vid/mp4-1080p-30fp-crf28/clip.mp4"
	ff := &fakeFetcher{content: map[string]string{v1: "sd", v2: "hd"}}

	d, err := NewDownloader(ff, Options{Dir: t.TempDir()})
	require.NoError(t, err)

	res1, err := d.DownloadAll(context.Background(), &model.Ad{ID: "1", Creative: model.Creative{VideoURLs: []string{v1}}})
	require.NoError(t, err)
	require.Len(t, res1.Saved, 1)

	res2, err := d.DownloadAll(context.Background(), &model.Ad{ID: "2", Creative: model.Creative{VideoURLs: []string{v2}}})
	require.NoError(t, err)
	assert.Equal(t, 1, res2.Skipped)
}

func TestDownloadAll_CountsFailures(t *testing.T) {
	ad := &model.Ad{ID: "9", Creative: model.Creative{
		ImageURLs: []string{"https://m.example.com/missing.jpg", "https://m.example.com/ok.jpg"},
	}}
	ff := &fakeFetcher{content: map[string]string{"https://m.example.com/ok.jpg": "ok"}}

	d, err := NewDownloader(ff, Options{Dir: t.TempDir()})
	require.NoError(t, err)

	res, err := d.DownloadAll(context.Background(), ad)
	require.NoError(t, err)
	assert.Len(t, res.Saved, 1)
	assert.Equal(t, 1, res.Failed)
}

func TestNewDownloader_RequiresDir(t *testing.T) {
	_, err := NewDownloader(&fakeFetcher{}, Options{})
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	name := Filename(model.AssetVideo, "42", "https://m.example.com/vid/mp4-720p-30fp-x/clip.mp4")
	assert.True(t, strings.HasPrefix(name, "video_42_"))
	assert.True(t, strings.HasSuffix(name, ".mp4"))

	// Renditions of one clip map to the same filename.
	other := Filename(model.AssetVideo, "42", "https://m.example.com/vid/mp4-1080p-30fp-x/clip.mp4")
	assert.Equal(t, name, other)

	img := Filename(model.AssetImage, "42", "https://m.example.com/pic")
	assert.True(t, strings.HasSuffix(img, ".jpg"), "unknown extensions default to .jpg")
}

func TestExtensionOf(t *testing.T) {
	assert.Equal(t, ".jpg", extensionOf(model.AssetImage, "https://x/y/a.jpeg?x=1"))
	assert.Equal(t, ".png", extensionOf(model.AssetLogo, "https://x/y/logo.png"))
	assert.Equal(t, ".mp4", extensionOf(model.AssetVideo, "https://x/dms/playlist/vid"))
	assert.Equal(t, ".webm", extensionOf(model.AssetVideo, "https://x/clip.webm"))
	assert.Equal(t, ".mp4", extensionOf(model.AssetVideo, "https://x/streams/opaque"))
}
