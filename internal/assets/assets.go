// Package assets downloads ad creatives to local disk, deduplicating
// across ads so a shared logo or clip is stored once per run.
package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/adscout/internal/adlib"
	"github.com/sells-group/adscout/internal/model"
)

// Fetcher is the streaming download slice of the HTTP client.
type Fetcher interface {
	Download(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Options configures a Downloader.
type Options struct {
	// Dir is the root output directory. Required.
	Dir string

	// Concurrency bounds parallel downloads. Default: 4.
	Concurrency int
}

// Downloader saves creative assets. Safe for concurrent use; the dedup
// index spans the Downloader's lifetime, so one instance per run gives
// run-wide dedup.
type Downloader struct {
	fetcher Fetcher
	dir     string
	workers int

	mu   sync.Mutex
	seen map[string]string
}

// Result summarizes one ad's asset downloads.
type Result struct {
	Saved   []model.Asset
	Skipped int
	Failed  int
}

// NewDownloader builds a Downloader writing under opts.Dir.
func NewDownloader(f Fetcher, opts Options) (*Downloader, error) {
	if opts.Dir == "" {
		return nil, eris.New("assets: output dir is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Downloader{
		fetcher: f,
		dir:     opts.Dir,
		workers: opts.Concurrency,
		seen:    make(map[string]string),
	}, nil
}

// DownloadAll fetches every asset of ad's creative. Individual failures
// are counted, not fatal; the only error returned is context
// cancellation.
func (d *Downloader) DownloadAll(ctx context.Context, ad *model.Ad) (*Result, error) {
	urls := ad.Creative.AssetURLs()
	res := &Result{}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for _, au := range urls {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			key := dedupKey(au)
			d.mu.Lock()
			prior, dup := d.seen[key]
			if !dup {
				// Reserve the key so a concurrent twin waits out as a skip.
				d.seen[key] = ""
			}
			d.mu.Unlock()

			if dup {
				mu.Lock()
				res.Skipped++
				mu.Unlock()
				zap.L().Debug("asset already saved, skipping",
					zap.String("url", au.URL), zap.String("path", prior))
				return nil
			}

			asset, err := d.fetchOne(ctx, ad.ID, au)
			if err != nil {
				d.mu.Lock()
				delete(d.seen, key)
				d.mu.Unlock()

				mu.Lock()
				res.Failed++
				mu.Unlock()
				zap.L().Warn("asset download failed",
					zap.String("ad_id", ad.ID),
					zap.String("url", au.URL),
					zap.Error(err))
				return nil
			}

			d.mu.Lock()
			d.seen[key] = asset.LocalPath
			d.mu.Unlock()

			mu.Lock()
			res.Saved = append(res.Saved, *asset)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, eris.Wrap(err, "assets: download interrupted")
	}
	return res, nil
}

func (d *Downloader) fetchOne(ctx context.Context, adID string, au model.AssetURL) (*model.Asset, error) {
	body, err := d.fetcher.Download(ctx, au.URL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	dir := filepath.Join(d.dir, adID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "assets: mkdir %s", dir)
	}

	path := filepath.Join(dir, Filename(au.Kind, adID, au.URL))
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "assets: create %s", path)
	}

	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, eris.Wrapf(err, "assets: write %s", path)
	}

	return &model.Asset{
		AdID:      adID,
		Kind:      au.Kind,
		SourceURL: au.URL,
		LocalPath: path,
		Bytes:     n,
	}, nil
}

// dedupKey normalizes an asset URL so the same file is recognized
// across ads: query strings are dropped (they carry signatures and
// expiry, not identity) and video URLs collapse to their
// quality-stripped base path.
func dedupKey(au model.AssetURL) string {
	if au.Kind == model.AssetVideo {
		return adlib.VideoBasePath(au.URL)
	}
	u, err := url.Parse(au.URL)
	if err != nil {
		return au.URL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// Filename builds a stable on-disk name: kind, owning ad, and a hash of
// the normalized URL so re-runs overwrite rather than duplicate.
func Filename(kind model.AssetKind, adID, rawURL string) string {
	sum := sha256.Sum256([]byte(dedupKey(model.AssetURL{Kind: kind, URL: rawURL})))
	return fmt.Sprintf("%s_%s_%s%s", kind, adID, hex.EncodeToString(sum[:6]), extensionOf(kind, rawURL))
}

func extensionOf(kind model.AssetKind, rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	path = strings.ToLower(path)

	switch {
	case strings.Contains(path, ".jpg"), strings.Contains(path, ".jpeg"):
		return ".jpg"
	case strings.Contains(path, ".png"):
		return ".png"
	case strings.Contains(path, ".gif"):
		return ".gif"
	case strings.Contains(path, ".webp"):
		return ".webp"
	case strings.Contains(path, ".webm"):
		return ".webm"
	case strings.Contains(path, ".mp4"),
		strings.Contains(path, "video"),
		strings.Contains(path, "playlist"):
		return ".mp4"
	}

	if kind == model.AssetVideo {
		return ".mp4"
	}
	return ".jpg"
}
