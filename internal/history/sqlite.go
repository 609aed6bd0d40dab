package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"TargetSentinel/internal/model"
)

// SQLiteStore persists score history, alerts, and watchlist state.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger

	// Serializes per-company snapshot writes so the monotonicity check
	// and the insert are atomic under concurrent evaluations.
	lockMu  sync.Mutex
	company map[string]*sync.Mutex
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(dbPath string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, log: log, company: make(map[string]*sync.Mutex)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("path", dbPath).Msg("history store opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			company_id           TEXT NOT NULL,
			evaluated_at         INTEGER NOT NULL,
			composite_score      REAL NOT NULL,
			aggregate_confidence REAL NOT NULL,
			percentile           REAL NOT NULL,
			tier                 INTEGER NOT NULL,
			factors              TEXT NOT NULL,
			drivers              TEXT NOT NULL,
			risks                TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_company_ts ON snapshots(company_id, evaluated_at)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id         TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			severity   INTEGER NOT NULL,
			reasons    TEXT NOT NULL,
			dedup_key  TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			acked      INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_company_ts ON alerts(company_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS watchlist (
			company_id  TEXT PRIMARY KEY,
			state       TEXT NOT NULL,
			tier        INTEGER NOT NULL,
			entered_at  INTEGER NOT NULL,
			exit_reason TEXT
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec %q: %w", q[:40], err)
		}
	}
	return nil
}

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

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap model.CompanyScoreSnapshot) error {
	mu := s.companyLock(snap.CompanyID)
	mu.Lock()
	defer mu.Unlock()

	var latest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(evaluated_at) FROM snapshots WHERE company_id = ?`, snap.CompanyID,
	).Scan(&latest)
	if err != nil {
		return fmt.Errorf("query latest snapshot: %w", err)
	}
	if latest.Valid && snap.EvaluatedAt.UnixNano() <= latest.Int64 {
		return model.ErrStale
	}

	factors, err := json.Marshal(snap.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}
	drivers, err := json.Marshal(snap.Drivers)
	if err != nil {
		return fmt.Errorf("marshal drivers: %w", err)
	}
	risks, err := json.Marshal(snap.Risks)
	if err != nil {
		return fmt.Errorf("marshal risks: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO snapshots
		(company_id, evaluated_at, composite_score, aggregate_confidence, percentile, tier, factors, drivers, risks)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		snap.CompanyID, snap.EvaluatedAt.UnixNano(), snap.CompositeScore,
		snap.AggregateConfidence, snap.Percentile, int(snap.Tier),
		string(factors), string(drivers), string(risks),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) scanSnapshots(rows *sql.Rows) ([]model.CompanyScoreSnapshot, error) {
	var out []model.CompanyScoreSnapshot
	for rows.Next() {
		var snap model.CompanyScoreSnapshot
		var ts int64
		var tier int
		var factors, drivers, risks string
		if err := rows.Scan(&snap.CompanyID, &ts, &snap.CompositeScore,
			&snap.AggregateConfidence, &snap.Percentile, &tier, &factors, &drivers, &risks); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.EvaluatedAt = time.Unix(0, ts).UTC()
		snap.Tier = model.Tier(tier)
		if err := json.Unmarshal([]byte(factors), &snap.Factors); err != nil {
			return nil, fmt.Errorf("unmarshal factors: %w", err)
		}
		if err := json.Unmarshal([]byte(drivers), &snap.Drivers); err != nil {
			return nil, fmt.Errorf("unmarshal drivers: %w", err)
		}
		if err := json.Unmarshal([]byte(risks), &snap.Risks); err != nil {
			return nil, fmt.Errorf("unmarshal risks: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

const snapshotCols = `company_id, evaluated_at, composite_score, aggregate_confidence, percentile, tier, factors, drivers, risks`

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, companyID string) (*model.CompanyScoreSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+snapshotCols+`
		FROM snapshots WHERE company_id = ? ORDER BY evaluated_at DESC LIMIT 1`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	defer rows.Close()

	snaps, err := s.scanSnapshots(rows)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return &snaps[0], nil
}

func (s *SQLiteStore) SnapshotsSince(ctx context.Context, companyID string, since time.Time) ([]model.CompanyScoreSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+snapshotCols+`
		FROM snapshots WHERE company_id = ? AND evaluated_at >= ? ORDER BY evaluated_at ASC`,
		companyID, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()
	return s.scanSnapshots(rows)
}

func (s *SQLiteStore) LatestAll(ctx context.Context) ([]model.CompanyScoreSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+snapshotCols+` FROM snapshots
		WHERE id IN (SELECT MAX(id) FROM snapshots GROUP BY company_id)
		ORDER BY company_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query latest snapshots: %w", err)
	}
	defer rows.Close()
	return s.scanSnapshots(rows)
}

func (s *SQLiteStore) SaveAlert(ctx context.Context, alert model.Alert) error {
	acked := 0
	if alert.Acknowledged {
		acked = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO alerts
		(id, company_id, severity, reasons, dedup_key, created_at, acked)
		VALUES (?,?,?,?,?,?,?)`,
		alert.ID, alert.CompanyID, int(alert.Severity),
		strings.Join(alert.Reasons, "\n"), alert.DedupKey, alert.CreatedAt.UnixNano(), acked,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) StrongestAlertSince(ctx context.Context, companyID string, since time.Time) (*model.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, company_id, severity, reasons, dedup_key, created_at, acked
		FROM alerts WHERE company_id = ? AND created_at >= ?
		ORDER BY severity DESC, created_at DESC LIMIT 1`,
		companyID, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var alert model.Alert
	var severity, acked int
	var reasons string
	var ts int64
	if err := rows.Scan(&alert.ID, &alert.CompanyID, &severity, &reasons, &alert.DedupKey, &ts, &acked); err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	alert.Severity = model.Severity(severity)
	if reasons != "" {
		alert.Reasons = strings.Split(reasons, "\n")
	}
	alert.CreatedAt = time.Unix(0, ts).UTC()
	alert.Acknowledged = acked != 0
	return &alert, nil
}

func (s *SQLiteStore) WatchlistEntry(ctx context.Context, companyID string) (*model.WatchlistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT company_id, state, tier, entered_at, exit_reason
		FROM watchlist WHERE company_id = ?`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query watchlist entry: %w", err)
	}
	defer rows.Close()

	entries, err := scanWatchlist(rows)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

func (s *SQLiteStore) SaveWatchlistEntry(ctx context.Context, entry model.WatchlistEntry) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO watchlist (company_id, state, tier, entered_at, exit_reason)
		VALUES (?,?,?,?,?)
		ON CONFLICT(company_id) DO UPDATE SET
			state = excluded.state, tier = excluded.tier,
			entered_at = excluded.entered_at, exit_reason = excluded.exit_reason`,
		entry.CompanyID, string(entry.State), int(entry.Tier), entry.EnteredAt.UnixNano(), entry.ExitReason,
	)
	if err != nil {
		return fmt.Errorf("upsert watchlist entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Watchlist(ctx context.Context) ([]model.WatchlistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT company_id, state, tier, entered_at, exit_reason
		FROM watchlist ORDER BY company_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()
	return scanWatchlist(rows)
}

func scanWatchlist(rows *sql.Rows) ([]model.WatchlistEntry, error) {
	var out []model.WatchlistEntry
	for rows.Next() {
		var entry model.WatchlistEntry
		var state string
		var tier int
		var ts int64
		var reason sql.NullString
		if err := rows.Scan(&entry.CompanyID, &state, &tier, &ts, &reason); err != nil {
			return nil, fmt.Errorf("scan watchlist entry: %w", err)
		}
		entry.State = model.WatchlistState(state)
		entry.Tier = model.Tier(tier)
		entry.EnteredAt = time.Unix(0, ts).UTC()
		entry.ExitReason = reason.String
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.log.Debug().Msg("closing history store")
	return s.db.Close()
}
