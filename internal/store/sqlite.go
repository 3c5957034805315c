package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/antonio-prism/prism-brain/internal/model"
)

// sqliteTime is a fixed-width UTC layout so that TEXT timestamps compare
// lexicographically in the same order as the instants they encode.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now Clock
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: utcNow}, nil
}

// WithClock replaces the store clock. Used by tests to move time forward.
func (s *SQLiteStore) WithClock(now Clock) *SQLiteStore {
	s.now = now
	return s
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS external_data_cache (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	source_name   TEXT NOT NULL,
	category      TEXT NOT NULL,
	data_key      TEXT NOT NULL,
	data_value    TEXT NOT NULL,
	numeric_value REAL,
	fetched_at    TEXT NOT NULL,
	expires_at    TEXT NOT NULL,
	UNIQUE (source_name, data_key)
);

CREATE INDEX IF NOT EXISTS idx_external_data_cache_expires_at ON external_data_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_external_data_cache_category ON external_data_cache(category);

CREATE TABLE IF NOT EXISTS risk_assessments (
	id            TEXT PRIMARY KEY,
	client_id     TEXT NOT NULL,
	process_id    TEXT NOT NULL,
	process_name  TEXT NOT NULL DEFAULT '',
	risk_id       TEXT NOT NULL,
	risk_name     TEXT NOT NULL DEFAULT '',
	domain        TEXT NOT NULL DEFAULT '',
	criticality   REAL NOT NULL DEFAULT 0,
	vulnerability REAL NOT NULL DEFAULT 0,
	resilience    REAL NOT NULL DEFAULT 0,
	downtime      REAL NOT NULL DEFAULT 0,
	probability   REAL NOT NULL DEFAULT 0,
	exposure      REAL NOT NULL DEFAULT 0,
	assessed_at   TEXT NOT NULL,
	UNIQUE (client_id, process_id, risk_id)
);

CREATE INDEX IF NOT EXISTS idx_risk_assessments_client ON risk_assessments(client_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetCached(ctx context.Context, sourceName, dataKey string) (*model.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT source_name, data_key, category, data_value, numeric_value, fetched_at, expires_at
		 FROM external_data_cache
		 WHERE source_name = ? AND data_key = ? AND expires_at > ?`,
		sourceName, dataKey, formatTime(s.now()),
	)

	var (
		e                  model.CacheEntry
		numeric            sql.NullFloat64
		fetched, expiresAt string
	)
	err := row.Scan(&e.SourceName, &e.DataKey, &e.Category, &e.DataValue, &numeric, &fetched, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached")
	}
	if numeric.Valid {
		v := numeric.Float64
		e.NumericValue = &v
	}
	if e.FetchedAt, err = parseTime(fetched); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse fetched_at")
	}
	if e.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse expires_at")
	}
	return &e, nil
}

func (s *SQLiteStore) PutCached(ctx context.Context, entry model.CacheEntry, ttl time.Duration) error {
	now := s.now()
	var numeric any
	if entry.NumericValue != nil {
		numeric = *entry.NumericValue
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO external_data_cache (source_name, category, data_key, data_value, numeric_value, fetched_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (source_name, data_key) DO UPDATE SET
			category = excluded.category,
			data_value = excluded.data_value,
			numeric_value = excluded.numeric_value,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at`,
		entry.SourceName, entry.Category, entry.DataKey, entry.DataValue, numeric,
		formatTime(now), formatTime(now.Add(ttl)),
	)
	return eris.Wrapf(err, "sqlite: put cached %s/%s", entry.SourceName, entry.DataKey)
}

func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM external_data_cache WHERE expires_at <= ?`,
		formatTime(s.now()),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge expired")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) CacheFreshness(ctx context.Context) ([]model.CacheFreshness, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*),
			SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END),
			MIN(fetched_at), MAX(fetched_at)
		 FROM external_data_cache
		 GROUP BY category
		 ORDER BY category`,
		formatTime(s.now()),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: cache freshness")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CacheFreshness
	for rows.Next() {
		var (
			f              model.CacheFreshness
			oldest, newest string
		)
		if err := rows.Scan(&f.Category, &f.Entries, &f.Expired, &oldest, &newest); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan freshness")
		}
		if f.Oldest, err = parseTime(oldest); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse oldest")
		}
		if f.Newest, err = parseTime(newest); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse newest")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate freshness")
}

func (s *SQLiteStore) SaveAssessment(ctx context.Context, rec model.ExposureRecord) error {
	if rec.ClientID == "" || rec.ProcessID == "" || rec.RiskID == "" {
		return eris.New("sqlite: assessment requires client, process and risk ids")
	}
	assessedAt := rec.AssessedAt
	if assessedAt.IsZero() {
		assessedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO risk_assessments (id, client_id, process_id, process_name, risk_id, risk_name, domain,
			criticality, vulnerability, resilience, downtime, probability, exposure, assessed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (client_id, process_id, risk_id) DO UPDATE SET
			process_name = excluded.process_name,
			risk_name = excluded.risk_name,
			domain = excluded.domain,
			criticality = excluded.criticality,
			vulnerability = excluded.vulnerability,
			resilience = excluded.resilience,
			downtime = excluded.downtime,
			probability = excluded.probability,
			exposure = excluded.exposure,
			assessed_at = excluded.assessed_at`,
		uuid.New().String(), rec.ClientID, rec.ProcessID, rec.ProcessName, rec.RiskID, rec.RiskName, string(rec.Domain),
		rec.Criticality, rec.Vulnerability, rec.Resilience, rec.Downtime, rec.Probability, rec.Exposure,
		formatTime(assessedAt),
	)
	return eris.Wrapf(err, "sqlite: save assessment %s/%s/%s", rec.ClientID, rec.ProcessID, rec.RiskID)
}

func (s *SQLiteStore) ListAssessments(ctx context.Context, clientID string) ([]model.ExposureRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT client_id, process_id, process_name, risk_id, risk_name, domain,
			criticality, vulnerability, resilience, downtime, probability, exposure, assessed_at
		 FROM risk_assessments
		 WHERE client_id = ?
		 ORDER BY process_id, risk_id`,
		clientID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list assessments")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ExposureRecord
	for rows.Next() {
		var (
			r          model.ExposureRecord
			domain     string
			assessedAt string
		)
		if err := rows.Scan(&r.ClientID, &r.ProcessID, &r.ProcessName, &r.RiskID, &r.RiskName, &domain,
			&r.Criticality, &r.Vulnerability, &r.Resilience, &r.Downtime, &r.Probability, &r.Exposure,
			&assessedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assessment")
		}
		r.Domain = model.Domain(domain)
		if r.AssessedAt, err = parseTime(assessedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse assessed_at")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate assessments")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTime, s)
}
