package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/adscout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	advertiser   TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	ads_found    INTEGER NOT NULL DEFAULT 0,
	assets_saved INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS ads (
	id         TEXT PRIMARY KEY,
	run_id     TEXT REFERENCES runs(id),
	detail_url TEXT NOT NULL,
	creative   TEXT NOT NULL,
	scraped_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS assets (
	id            TEXT PRIMARY KEY,
	ad_id         TEXT NOT NULL REFERENCES ads(id),
	kind          TEXT NOT NULL,
	source_url    TEXT NOT NULL,
	local_path    TEXT NOT NULL,
	bytes         INTEGER NOT NULL DEFAULT 0,
	downloaded_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_advertiser ON runs(advertiser);
CREATE INDEX IF NOT EXISTS idx_ads_run_id ON ads(run_id);
CREATE INDEX IF NOT EXISTS idx_assets_ad_id ON assets(ad_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, advertiser string) (*model.ScrapeRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, advertiser, status, started_at) VALUES (?, ?, ?, ?)`,
		id, advertiser, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.ScrapeRun{
		ID:         id,
		Advertiser: advertiser,
		Status:     model.RunStatusRunning,
		StartedAt:  now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	status := model.RunStatusCompleted
	if summary.Error != "" {
		status = model.RunStatusFailed
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, ads_found = ?, assets_saved = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(status), summary.AdsFound, summary.AssetsSaved, summary.Error, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.ScrapeRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, advertiser, status, ads_found, assets_saved, error, started_at, completed_at
		 FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ScrapeRun, error) {
	query := `SELECT id, advertiser, status, ads_found, assets_saved, error, started_at, completed_at
		FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Advertiser != "" {
		query += ` AND advertiser = ?`
		args = append(args, filter.Advertiser)
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.ScrapeRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) UpsertAd(ctx context.Context, ad *model.Ad) error {
	creativeJSON, err := json.Marshal(ad.Creative)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal creative")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ads (id, run_id, detail_url, creative, scraped_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET run_id = excluded.run_id, detail_url = excluded.detail_url,
		 creative = excluded.creative, scraped_at = excluded.scraped_at`,
		ad.ID, ad.RunID, ad.DetailURL, string(creativeJSON), ad.ScrapedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert ad %s", ad.ID)
}

func (s *SQLiteStore) GetAd(ctx context.Context, adID string) (*model.Ad, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, run_id, detail_url, creative, scraped_at FROM ads WHERE id = ?`,
		adID,
	)
	ad, err := scanAd(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: ad not found: %s", adID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get ad %s", adID)
	}
	return ad, nil
}

func (s *SQLiteStore) ListAds(ctx context.Context, filter AdFilter) ([]model.Ad, error) {
	query := `SELECT id, run_id, detail_url, creative, scraped_at FROM ads WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Advertiser != "" {
		query += ` AND json_extract(creative, '$.advertiser') = ?`
		args = append(args, filter.Advertiser)
	}
	query += ` ORDER BY scraped_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ads")
	}
	defer rows.Close()

	var ads []model.Ad
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ad")
		}
		ads = append(ads, *ad)
	}
	return ads, eris.Wrap(rows.Err(), "sqlite: list ads iterate")
}

func (s *SQLiteStore) RecordAsset(ctx context.Context, asset *model.Asset) error {
	if asset.ID == "" {
		asset.ID = uuid.New().String()
	}
	if asset.DownloadedAt.IsZero() {
		asset.DownloadedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assets (id, ad_id, kind, source_url, local_path, bytes, downloaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		asset.ID, asset.AdID, string(asset.Kind), asset.SourceURL, asset.LocalPath,
		asset.Bytes, asset.DownloadedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: record asset for ad %s", asset.AdID)
}

func (s *SQLiteStore) ListAssets(ctx context.Context, adID string) ([]model.Asset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ad_id, kind, source_url, local_path, bytes, downloaded_at
		 FROM assets WHERE ad_id = ? ORDER BY downloaded_at`,
		adID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list assets for ad %s", adID)
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		var a model.Asset
		var kind string
		if err := rows.Scan(&a.ID, &a.AdID, &kind, &a.SourceURL, &a.LocalPath, &a.Bytes, &a.DownloadedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan asset")
		}
		a.Kind = model.AssetKind(kind)
		assets = append(assets, a)
	}
	return assets, eris.Wrap(rows.Err(), "sqlite: list assets iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.ScrapeRun, error) {
	var r model.ScrapeRun
	var status string
	var errMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&r.ID, &r.Advertiser, &status, &r.AdsFound, &r.AssetsSaved,
		&errMsg, &r.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	r.Status = model.RunStatus(status)
	r.Error = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}

func scanAd(row scannable) (*model.Ad, error) {
	var ad model.Ad
	var runID sql.NullString
	var creativeJSON string

	err := row.Scan(&ad.ID, &runID, &ad.DetailURL, &creativeJSON, &ad.ScrapedAt)
	if err != nil {
		return nil, err
	}

	ad.RunID = runID.String
	if err := json.Unmarshal([]byte(creativeJSON), &ad.Creative); err != nil {
		return nil, eris.Wrap(err, "unmarshal creative")
	}
	return &ad, nil
}
