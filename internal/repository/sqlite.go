package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"TargetSentinel/internal/model"
)

// SQLiteStore persists signals to a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger

	// Per-company write serialization. Reads go straight to the DB.
	lockMu  sync.Mutex
	company map[string]*sync.Mutex
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(dbPath string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so evaluation reads don't block ingestion writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, log: log, company: make(map[string]*sync.Mutex)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("signal store opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id                 TEXT PRIMARY KEY,
			company_id         TEXT NOT NULL,
			signal_type        TEXT NOT NULL,
			factor_category    TEXT NOT NULL,
			raw_value          REAL NOT NULL,
			timestamp          INTEGER NOT NULL,
			confidence         REAL NOT NULL,
			source_reliability REAL NOT NULL,
			correlation_group  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_company_ts ON signals(company_id, timestamp)`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec %q: %w", q[:40], err)
		}
	}
	return nil
}

// companyLock returns the write mutex for a company, creating it lazily.
func (s *SQLiteStore) companyLock(companyID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	mu, ok := s.company[companyID]
	if !ok {
		mu = &sync.Mutex{}
		s.company[companyID] = mu
	}
	return mu
}

func (s *SQLiteStore) Append(ctx context.Context, sig model.Signal) (model.Signal, error) {
	if err := validate(sig); err != nil {
		return model.Signal{}, err
	}
	sig.ID = uuid.NewString()

	mu := s.companyLock(sig.CompanyID)
	mu.Lock()
	defer mu.Unlock()

	var group any
	if sig.CorrelationGroup != "" {
		group = sig.CorrelationGroup
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO signals
		(id, company_id, signal_type, factor_category, raw_value, timestamp, confidence, source_reliability, correlation_group)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		sig.ID, sig.CompanyID, string(sig.Type), string(sig.Factor),
		sig.RawValue, sig.Timestamp.UnixNano(), sig.Confidence, sig.SourceReliability, group,
	)
	if err != nil {
		return model.Signal{}, fmt.Errorf("insert signal: %w", err)
	}
	return sig, nil
}

func (s *SQLiteStore) Query(ctx context.Context, companyID string, asOf time.Time, window time.Duration) ([]model.Signal, error) {
	from := asOf.Add(-window)
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, company_id, signal_type, factor_category, raw_value, timestamp, confidence, source_reliability, correlation_group
		FROM signals
		WHERE company_id = ? AND timestamp BETWEEN ? AND ?
		ORDER BY timestamp ASC`,
		companyID, from.UnixNano(), asOf.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var sig model.Signal
		var ts int64
		var group sql.NullString
		if err := rows.Scan(&sig.ID, &sig.CompanyID, (*string)(&sig.Type), (*string)(&sig.Factor),
			&sig.RawValue, &ts, &sig.Confidence, &sig.SourceReliability, &group); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Timestamp = time.Unix(0, ts).UTC()
		sig.CorrelationGroup = group.String
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Companies(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT company_id FROM signals ORDER BY company_id`)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.log.Debug().Msg("closing signal store")
	return s.db.Close()
}
