package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/adscout/internal/model"
)

// Pool is the pgxpool surface the store uses, narrowed so tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot store operations.
var preparedStatements = map[string]string{
	"insert_run":   `INSERT INTO runs (id, advertiser, status, started_at) VALUES ($1, $2, $3, $4)`,
	"complete_run": `UPDATE runs SET status = $1, ads_found = $2, assets_saved = $3, error = $4, completed_at = $5 WHERE id = $6`,
	"get_run":      `SELECT id, advertiser, status, ads_found, assets_saved, error, started_at, completed_at FROM runs WHERE id = $1`,
	"upsert_ad": `INSERT INTO ads (id, run_id, detail_url, creative, scraped_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET run_id = EXCLUDED.run_id, detail_url = EXCLUDED.detail_url,
		creative = EXCLUDED.creative, scraped_at = EXCLUDED.scraped_at`,
	"get_ad":       `SELECT id, run_id, detail_url, creative, scraped_at FROM ads WHERE id = $1`,
	"insert_asset": `INSERT INTO assets (id, ad_id, kind, source_url, local_path, bytes, downloaded_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	advertiser   TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	ads_found    INTEGER NOT NULL DEFAULT 0,
	assets_saved INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS ads (
	id         TEXT PRIMARY KEY,
	run_id     TEXT REFERENCES runs(id),
	detail_url TEXT NOT NULL,
	creative   JSONB NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS assets (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	ad_id         TEXT NOT NULL REFERENCES ads(id),
	kind          TEXT NOT NULL,
	source_url    TEXT NOT NULL,
	local_path    TEXT NOT NULL,
	bytes         BIGINT NOT NULL DEFAULT 0,
	downloaded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_advertiser ON runs(advertiser);
CREATE INDEX IF NOT EXISTS idx_ads_run_id ON ads(run_id);
CREATE INDEX IF NOT EXISTS idx_ads_advertiser ON ads((creative->>'advertiser'));
CREATE INDEX IF NOT EXISTS idx_assets_ad_id ON assets(ad_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, advertiser string) (*model.ScrapeRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, advertiser, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, advertiser, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.ScrapeRun{
		ID:         id,
		Advertiser: advertiser,
		Status:     model.RunStatusRunning,
		StartedAt:  now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	status := model.RunStatusCompleted
	if summary.Error != "" {
		status = model.RunStatusFailed
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, ads_found = $2, assets_saved = $3, error = $4, completed_at = $5 WHERE id = $6`,
		string(status), summary.AdsFound, summary.AssetsSaved, summary.Error, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.ScrapeRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, advertiser, status, ads_found, assets_saved, error, started_at, completed_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanRunPg(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ScrapeRun, error) {
	query := `SELECT id, advertiser, status, ads_found, assets_saved, error, started_at, completed_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + itoa(len(args))
	}
	if filter.Advertiser != "" {
		args = append(args, filter.Advertiser)
		query += ` AND advertiser = $` + itoa(len(args))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ScrapeRun
	for rows.Next() {
		r, err := scanRunPg(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) UpsertAd(ctx context.Context, ad *model.Ad) error {
	creativeJSON, err := json.Marshal(ad.Creative)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal creative")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO ads (id, run_id, detail_url, creative, scraped_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET run_id = EXCLUDED.run_id, detail_url = EXCLUDED.detail_url,
		creative = EXCLUDED.creative, scraped_at = EXCLUDED.scraped_at`,
		ad.ID, nullIfEmpty(ad.RunID), ad.DetailURL, string(creativeJSON), ad.ScrapedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert ad %s", ad.ID)
}

func (s *PostgresStore) GetAd(ctx context.Context, adID string) (*model.Ad, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, run_id, detail_url, creative, scraped_at FROM ads WHERE id = $1`,
		adID,
	)
	ad, err := scanAdPg(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: ad not found: %s", adID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get ad %s", adID)
	}
	return ad, nil
}

func (s *PostgresStore) ListAds(ctx context.Context, filter AdFilter) ([]model.Ad, error) {
	query := `SELECT id, run_id, detail_url, creative, scraped_at FROM ads WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		args = append(args, filter.RunID)
		query += ` AND run_id = $` + itoa(len(args))
	}
	if filter.Advertiser != "" {
		args = append(args, filter.Advertiser)
		query += ` AND creative->>'advertiser' = $` + itoa(len(args))
	}
	query += ` ORDER BY scraped_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ads")
	}
	defer rows.Close()

	var ads []model.Ad
	for rows.Next() {
		ad, err := scanAdPg(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan ad")
		}
		ads = append(ads, *ad)
	}
	return ads, eris.Wrap(rows.Err(), "postgres: list ads iterate")
}

func (s *PostgresStore) RecordAsset(ctx context.Context, asset *model.Asset) error {
	if asset.ID == "" {
		asset.ID = uuid.New().String()
	}
	if asset.DownloadedAt.IsZero() {
		asset.DownloadedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO assets (id, ad_id, kind, source_url, local_path, bytes, downloaded_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		asset.ID, asset.AdID, string(asset.Kind), asset.SourceURL, asset.LocalPath,
		asset.Bytes, asset.DownloadedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: record asset for ad %s", asset.AdID)
}

func (s *PostgresStore) ListAssets(ctx context.Context, adID string) ([]model.Asset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ad_id, kind, source_url, local_path, bytes, downloaded_at FROM assets WHERE ad_id = $1 ORDER BY downloaded_at`,
		adID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list assets for ad %s", adID)
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		var a model.Asset
		var kind string
		if err := rows.Scan(&a.ID, &a.AdID, &kind, &a.SourceURL, &a.LocalPath, &a.Bytes, &a.DownloadedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan asset")
		}
		a.Kind = model.AssetKind(kind)
		assets = append(assets, a)
	}
	return assets, eris.Wrap(rows.Err(), "postgres: list assets iterate")
}

// pg scan helpers

func scanRunPg(row pgx.Row) (*model.ScrapeRun, error) {
	var r model.ScrapeRun
	var status string
	var errMsg *string
	var completedAt *time.Time

	err := row.Scan(&r.ID, &r.Advertiser, &status, &r.AdsFound, &r.AssetsSaved,
		&errMsg, &r.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	r.Status = model.RunStatus(status)
	if errMsg != nil {
		r.Error = *errMsg
	}
	r.CompletedAt = completedAt
	return &r, nil
}

func scanAdPg(row pgx.Row) (*model.Ad, error) {
	var ad model.Ad
	var runID *string
	var creativeJSON []byte

	err := row.Scan(&ad.ID, &runID, &ad.DetailURL, &creativeJSON, &ad.ScrapedAt)
	if err != nil {
		return nil, err
	}

	if runID != nil {
		ad.RunID = *runID
	}
	if err := json.Unmarshal(creativeJSON, &ad.Creative); err != nil {
		return nil, eris.Wrap(err, "unmarshal creative")
	}
	return &ad, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
