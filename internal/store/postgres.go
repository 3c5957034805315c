package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/antonio-prism/prism-brain/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
	now     Clock
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: utcNow}, nil
}

// WithClock replaces the store clock.
func (s *PostgresStore) WithClock(now Clock) *PostgresStore {
	s.now = now
	return s
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS external_data_cache (
	id            BIGSERIAL PRIMARY KEY,
	source_name   TEXT NOT NULL,
	category      TEXT NOT NULL,
	data_key      TEXT NOT NULL,
	data_value    TEXT NOT NULL,
	numeric_value DOUBLE PRECISION,
	fetched_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at    TIMESTAMPTZ NOT NULL,
	UNIQUE (source_name, data_key)
);

CREATE INDEX IF NOT EXISTS idx_external_data_cache_expires_at ON external_data_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_external_data_cache_category ON external_data_cache(category);

CREATE TABLE IF NOT EXISTS risk_assessments (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	client_id     TEXT NOT NULL,
	process_id    TEXT NOT NULL,
	process_name  TEXT NOT NULL DEFAULT '',
	risk_id       TEXT NOT NULL,
	risk_name     TEXT NOT NULL DEFAULT '',
	domain        TEXT NOT NULL DEFAULT '',
	criticality   DOUBLE PRECISION NOT NULL DEFAULT 0,
	vulnerability DOUBLE PRECISION NOT NULL DEFAULT 0,
	resilience    DOUBLE PRECISION NOT NULL DEFAULT 0,
	downtime      DOUBLE PRECISION NOT NULL DEFAULT 0,
	probability   DOUBLE PRECISION NOT NULL DEFAULT 0,
	exposure      DOUBLE PRECISION NOT NULL DEFAULT 0,
	assessed_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (client_id, process_id, risk_id)
);

CREATE INDEX IF NOT EXISTS idx_risk_assessments_client ON risk_assessments(client_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetCached(ctx context.Context, sourceName, dataKey string) (*model.CacheEntry, error) {
	var e model.CacheEntry
	err := s.pool.QueryRow(ctx,
		`SELECT source_name, data_key, category, data_value, numeric_value, fetched_at, expires_at
		 FROM external_data_cache
		 WHERE source_name = $1 AND data_key = $2 AND expires_at > $3`,
		sourceName, dataKey, s.now(),
	).Scan(&e.SourceName, &e.DataKey, &e.Category, &e.DataValue, &e.NumericValue, &e.FetchedAt, &e.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached")
	}
	return &e, nil
}

func (s *PostgresStore) PutCached(ctx context.Context, entry model.CacheEntry, ttl time.Duration) error {
	now := s.now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO external_data_cache (source_name, category, data_key, data_value, numeric_value, fetched_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (source_name, data_key) DO UPDATE SET
			category = EXCLUDED.category,
			data_value = EXCLUDED.data_value,
			numeric_value = EXCLUDED.numeric_value,
			fetched_at = EXCLUDED.fetched_at,
			expires_at = EXCLUDED.expires_at`,
		entry.SourceName, entry.Category, entry.DataKey, entry.DataValue, entry.NumericValue,
		now, now.Add(ttl),
	)
	return eris.Wrapf(err, "postgres: put cached %s/%s", entry.SourceName, entry.DataKey)
}

func (s *PostgresStore) PurgeExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM external_data_cache WHERE expires_at <= $1`,
		s.now(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge expired")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CacheFreshness(ctx context.Context) ([]model.CacheFreshness, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT category, COUNT(*)::int,
			COUNT(*) FILTER (WHERE expires_at <= $1)::int,
			MIN(fetched_at), MAX(fetched_at)
		 FROM external_data_cache
		 GROUP BY category
		 ORDER BY category`,
		s.now(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: cache freshness")
	}
	defer rows.Close()

	var out []model.CacheFreshness
	for rows.Next() {
		var f model.CacheFreshness
		if err := rows.Scan(&f.Category, &f.Entries, &f.Expired, &f.Oldest, &f.Newest); err != nil {
			return nil, eris.Wrap(err, "postgres: scan freshness")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate freshness")
}

func (s *PostgresStore) SaveAssessment(ctx context.Context, rec model.ExposureRecord) error {
	if rec.ClientID == "" || rec.ProcessID == "" || rec.RiskID == "" {
		return eris.New("postgres: assessment requires client, process and risk ids")
	}
	assessedAt := rec.AssessedAt
	if assessedAt.IsZero() {
		assessedAt = s.now()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO risk_assessments (id, client_id, process_id, process_name, risk_id, risk_name, domain,
			criticality, vulnerability, resilience, downtime, probability, exposure, assessed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (client_id, process_id, risk_id) DO UPDATE SET
			process_name = EXCLUDED.process_name,
			risk_name = EXCLUDED.risk_name,
			domain = EXCLUDED.domain,
			criticality = EXCLUDED.criticality,
			vulnerability = EXCLUDED.vulnerability,
			resilience = EXCLUDED.resilience,
			downtime = EXCLUDED.downtime,
			probability = EXCLUDED.probability,
			exposure = EXCLUDED.exposure,
			assessed_at = EXCLUDED.assessed_at`,
		uuid.New().String(), rec.ClientID, rec.ProcessID, rec.ProcessName, rec.RiskID, rec.RiskName, string(rec.Domain),
		rec.Criticality, rec.Vulnerability, rec.Resilience, rec.Downtime, rec.Probability, rec.Exposure,
		assessedAt,
	)
	return eris.Wrapf(err, "postgres: save assessment %s/%s/%s", rec.ClientID, rec.ProcessID, rec.RiskID)
}

func (s *PostgresStore) ListAssessments(ctx context.Context, clientID string) ([]model.ExposureRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT client_id, process_id, process_name, risk_id, risk_name, domain,
			criticality, vulnerability, resilience, downtime, probability, exposure, assessed_at
		 FROM risk_assessments
		 WHERE client_id = $1
		 ORDER BY process_id, risk_id`,
		clientID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assessments")
	}
	defer rows.Close()

	var out []model.ExposureRecord
	for rows.Next() {
		var (
			r      model.ExposureRecord
			domain string
		)
		if err := rows.Scan(&r.ClientID, &r.ProcessID, &r.ProcessName, &r.RiskID, &r.RiskName, &domain,
			&r.Criticality, &r.Vulnerability, &r.Resilience, &r.Downtime, &r.Probability, &r.Exposure,
			&r.AssessedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan assessment")
		}
		r.Domain = model.Domain(domain)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate assessments")
}
