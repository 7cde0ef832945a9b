package render

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// cookieRecord is the on-disk cookie shape shared with the fetch package.
type cookieRecord struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expiry   float64 `json:"expiry"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"httpOnly"`
}

// ExportCookies opens url in the browser, waits settle for any login
// redirects to land, and writes the tab's cookies as JSON to path. The
// file can then be fed to the HTTP client for session reuse.
func (r *Renderer) ExportCookies(ctx context.Context, url, path string, settle time.Duration) error {
	if settle <= 0 {
		settle = 5 * time.Second
	}

	tabCtx, cancel := r.newTab(ctx)
	defer cancel()

	var cookies []*network.Cookie
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(settle),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return eris.Wrapf(err, "render: export cookies from %s", url)
	}

	raw, err := json.MarshalIndent(toRecords(cookies), "", "  ")
	if err != nil {
		return eris.Wrap(err, "render: marshal cookies")
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return eris.Wrapf(err, "render: write cookies %s", path)
	}

	zap.L().Info("cookies exported",
		zap.String("path", path),
		zap.Int("count", len(cookies)))
	return nil
}

func toRecords(cookies []*network.Cookie) []cookieRecord {
	recs := make([]cookieRecord, 0, len(cookies))
	for _, c := range cookies {
		recs = append(recs, cookieRecord{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expiry:   c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		})
	}
	return recs
}
