// Package model defines the core types shared across the scraping pipeline.
package model

import "time"

// AdRef is a lightweight reference to an ad discovered on a search page.
type AdRef struct {
	ID         string `json:"id"`
	DetailURL  string `json:"detail_url"`
	Advertiser string `json:"advertiser,omitempty"`
	Preview    string `json:"preview,omitempty"`
}

// CTA is a call-to-action extracted from an ad creative.
type CTA struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// Creative holds everything extracted from an ad detail page.
type Creative struct {
	Advertiser string   `json:"advertiser,omitempty"`
	Body       string   `json:"body,omitempty"`
	AdType     string   `json:"ad_type,omitempty"`
	PaidForBy  string   `json:"paid_for_by,omitempty"`
	CTAs       []CTA    `json:"ctas,omitempty"`
	LogoURL    string   `json:"logo_url,omitempty"`
	ImageURLs  []string `json:"image_urls,omitempty"`
	VideoURLs  []string `json:"video_urls,omitempty"`
	PosterURLs []string `json:"poster_urls,omitempty"`
}

// Ad is a fully scraped ad.
type Ad struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	DetailURL string    `json:"detail_url"`
	Creative  Creative  `json:"creative"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// AssetKind classifies a downloadable creative asset.
type AssetKind string

const (
	AssetLogo   AssetKind = "logo"
	AssetImage  AssetKind = "image"
	AssetVideo  AssetKind = "video"
	AssetPoster AssetKind = "poster"
)

// AssetURL pairs an asset URL with its kind.
type AssetURL struct {
	Kind AssetKind `json:"kind"`
	URL  string    `json:"url"`
}

// Asset records a downloaded creative asset on disk.
type Asset struct {
	ID           string    `json:"id"`
	AdID         string    `json:"ad_id"`
	Kind         AssetKind `json:"kind"`
	SourceURL    string    `json:"source_url"`
	LocalPath    string    `json:"local_path"`
	Bytes        int64     `json:"bytes"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// AssetURLs flattens the creative's asset URLs into kind/URL pairs,
// logo first so it wins dedup against inline images of the same file.
func (c Creative) AssetURLs() []AssetURL {
	var out []AssetURL
	if c.LogoURL != "" {
		out = append(out, AssetURL{Kind: AssetLogo, URL: c.LogoURL})
	}
	for _, u := range c.ImageURLs {
		out = append(out, AssetURL{Kind: AssetImage, URL: u})
	}
	for _, u := range c.VideoURLs {
		out = append(out, AssetURL{Kind: AssetVideo, URL: u})
	}
	for _, u := range c.PosterURLs {
		out = append(out, AssetURL{Kind: AssetPoster, URL: u})
	}
	return out
}
