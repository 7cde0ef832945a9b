// Package store persists scrape runs, ads, and downloaded assets. Two
// drivers are provided: embedded SQLite for single-machine use and
// Postgres for shared deployments.
package store

import (
	"context"

	"github.com/sells-group/adscout/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status     model.RunStatus `json:"status,omitempty"`
	Advertiser string          `json:"advertiser,omitempty"`
	Limit      int             `json:"limit,omitempty"`
	Offset     int             `json:"offset,omitempty"`
}

// AdFilter specifies criteria for listing ads.
type AdFilter struct {
	RunID      string `json:"run_id,omitempty"`
	Advertiser string `json:"advertiser,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the scraping pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, advertiser string) (*model.ScrapeRun, error)
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error
	GetRun(ctx context.Context, runID string) (*model.ScrapeRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ScrapeRun, error)

	// Ads
	UpsertAd(ctx context.Context, ad *model.Ad) error
	GetAd(ctx context.Context, adID string) (*model.Ad, error)
	ListAds(ctx context.Context, filter AdFilter) ([]model.Ad, error)

	// Assets
	RecordAsset(ctx context.Context, asset *model.Asset) error
	ListAssets(ctx context.Context, adID string) ([]model.Asset, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
