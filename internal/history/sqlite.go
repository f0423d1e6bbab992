package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"IchimokuScanner/internal/model"
)

// SQLiteStore persists reports to a SQLite database.
type SQLiteStore struct {
	db         *sql.DB
	mu         sync.Mutex
	maxReports int
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, maxReports int) (*SQLiteStore, error) {
	if maxReports <= 0 {
		maxReports = DefaultMaxReports
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the dashboard read history while a scheduled scan writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, maxReports: maxReports}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	zap.L().Info("sqlite history opened", zap.String("path", dbPath), zap.Int("max_reports", maxReports))
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_reports (
			seq             INTEGER PRIMARY KEY AUTOINCREMENT,
			id              TEXT NOT NULL UNIQUE,
			scan_time       INTEGER NOT NULL,
			timeframe       TEXT,
			min_gap         REAL,
			symbols_scanned INTEGER,
			matches_found   INTEGER,
			payload         TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_time ON scan_reports(scan_time)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, r *model.ScanReport) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.uniqueID(ctx, NewID(r.ScanTime))
	if err != nil {
		return "", err
	}
	stored := *r
	stored.ID = id
	payload, err := json.Marshal(&stored)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO scan_reports
		(id, scan_time, timeframe, min_gap, symbols_scanned, matches_found, payload)
		VALUES (?,?,?,?,?,?,?)`,
		id, r.ScanTime.Unix(), r.Timeframe, r.MinGap, r.SymbolsScanned, r.MatchesFound, string(payload),
	); err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM scan_reports WHERE seq NOT IN
		(SELECT seq FROM scan_reports ORDER BY seq DESC LIMIT ?)`, s.maxReports); err != nil {
		return "", fmt.Errorf("prune reports: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	r.ID = id
	return id, nil
}

// uniqueID appends _1, _2, ... when two reports share the same second.
func (s *SQLiteStore) uniqueID(ctx context.Context, base string) (string, error) {
	id := base
	for n := 1; ; n++ {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM scan_reports WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("check id: %w", err)
		}
		if exists == 0 {
			return id, nil
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.ScanReport, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM scan_reports WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	var r model.ScanReport
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &r, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.HistorySummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM scan_reports ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []model.HistorySummary{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r model.ScanReport
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			zap.L().Warn("skipping unreadable history entry", zap.Error(err))
			continue
		}
		out = append(out, r.Summary())
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	zap.L().Info("closing sqlite history")
	return s.db.Close()
}
