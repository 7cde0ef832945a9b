// Package pipeline orchestrates a full scrape: discover ad IDs for an
// advertiser, pull each detail page, persist the creatives, and
// optionally download their assets.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adscout/internal/adlib"
	"github.com/sells-group/adscout/internal/assets"
	"github.com/sells-group/adscout/internal/model"
	"github.com/sells-group/adscout/internal/resilience"
	"github.com/sells-group/adscout/internal/store"
)

// Options configures a Pipeline.
type Options struct {
	// MaxResults caps how many ads one run collects. Default: 100.
	MaxResults int

	// DetailDelay is the pause between detail page fetches. Default: 2s.
	DetailDelay time.Duration

	// DownloadAssets enables creative downloads.
	DownloadAssets bool

	// BreakerThreshold is how many consecutive detail failures trip the
	// run. Default: 5.
	BreakerThreshold int
}

// Pipeline runs the search→detail→assets workflow and records progress
// in the store.
type Pipeline struct {
	search *adlib.SearchClient
	detail *adlib.DetailClient
	dl     *assets.Downloader
	store  store.Store
	opts   Options
}

// New assembles a Pipeline. dl may be nil when opts.DownloadAssets is
// false.
func New(search *adlib.SearchClient, detail *adlib.DetailClient, dl *assets.Downloader, st store.Store, opts Options) *Pipeline {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 100
	}
	if opts.DetailDelay <= 0 {
		opts.DetailDelay = 2 * time.Second
	}
	if opts.BreakerThreshold <= 0 {
		opts.BreakerThreshold = 5
	}
	return &Pipeline{search: search, detail: detail, dl: dl, store: st, opts: opts}
}

// Run executes a full scrape for advertiser and returns the completed
// run record. Individual detail failures are skipped; a tripped breaker
// or failed discovery fails the run.
func (p *Pipeline) Run(ctx context.Context, advertiser string) (*model.ScrapeRun, error) {
	run, err := p.store.CreateRun(ctx, advertiser)
	if err != nil {
		return nil, err
	}

	summary, runErr := p.execute(ctx, run)
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	if err := p.store.CompleteRun(ctx, run.ID, summary); err != nil {
		zap.L().Error("record run completion", zap.String("run_id", run.ID), zap.Error(err))
	}
	if runErr != nil {
		return nil, eris.Wrapf(runErr, "pipeline: run %s", run.ID)
	}

	completed, err := p.store.GetRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	zap.L().Info("run completed",
		zap.String("run_id", run.ID),
		zap.String("advertiser", advertiser),
		zap.Int("ads", completed.AdsFound),
		zap.Int("assets", completed.AssetsSaved))
	return completed, nil
}

func (p *Pipeline) execute(ctx context.Context, run *model.ScrapeRun) (*model.RunSummary, error) {
	summary := &model.RunSummary{}

	refs, err := p.search.CollectAdIDs(ctx, run.Advertiser, p.opts.MaxResults)
	if err != nil {
		return summary, err
	}
	if len(refs) == 0 {
		zap.L().Info("no ads found", zap.String("advertiser", run.Advertiser))
		return summary, nil
	}

	// Consecutive detail failures usually mean the session got blocked;
	// the breaker stops the run before it burns through every ID.
	breaker := resilience.NewBreaker(p.opts.BreakerThreshold, time.Minute)

	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return summary, eris.Wrap(err, "pipeline: interrupted")
		}
		if err := breaker.Allow(); err != nil {
			return summary, eris.Wrapf(err, "pipeline: %d consecutive detail failures", p.opts.BreakerThreshold)
		}

		ad, err := p.detail.Scrape(ctx, ref.ID)
		breaker.Record(err)
		if err != nil {
			zap.L().Warn("detail scrape failed, skipping ad",
				zap.String("ad_id", ref.ID), zap.Error(err))
			continue
		}
		ad.RunID = run.ID

		if err := p.store.UpsertAd(ctx, ad); err != nil {
			return summary, err
		}
		summary.AdsFound++

		if p.opts.DownloadAssets && p.dl != nil {
			res, err := p.dl.DownloadAll(ctx, ad)
			if err != nil {
				return summary, err
			}
			for _, a := range res.Saved {
				if err := p.store.RecordAsset(ctx, &a); err != nil {
					return summary, err
				}
			}
			summary.AssetsSaved += len(res.Saved)
		}

		if i < len(refs)-1 {
			select {
			case <-ctx.Done():
				return summary, eris.Wrap(ctx.Err(), "pipeline: interrupted")
			case <-time.After(p.opts.DetailDelay):
			}
		}
	}

	return summary, nil
}
