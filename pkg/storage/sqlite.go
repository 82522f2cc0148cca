package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yapay-ai/garmin-downloader/pkg/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no journal entry matches.
var ErrNotFound = errors.New("export not found")

// SQLite implements Journal using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) RecordExport(ctx context.Context, record *model.ExportRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.ExportedAt.IsZero() {
		record.ExportedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exports (id, kind, year, month, path, samples, bytes, checksum, exported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Kind, record.Year, record.Month, record.Path,
		record.Samples, record.Bytes, record.Checksum, record.ExportedAt,
	)
	if err != nil {
		return fmt.Errorf("insert export record: %w", err)
	}
	return nil
}

func (s *SQLite) ListExports(ctx context.Context, filter model.HistoryFilter) ([]model.ExportRecord, error) {
	query := "SELECT " + exportColumns + " FROM exports"
	where, args := buildWhereClause(filter)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY exported_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	var records []model.ExportRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

func (s *SQLite) LatestExport(ctx context.Context, kind model.MetricKind, month model.DateMonth) (*model.ExportRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+exportColumns+` FROM exports WHERE kind = ? AND year = ? AND month = ?
		 ORDER BY exported_at DESC LIMIT 1`,
		kind, month.Year, int(month.Month),
	)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", kind, month, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest export: %w", err)
	}
	return r, nil
}

// SchemaVersion reports the applied migration version.
func (s *SQLite) SchemaVersion(ctx context.Context) (int, error) {
	return schemaVersion(ctx, s.db)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

const exportColumns = "id, kind, year, month, path, samples, bytes, checksum, exported_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*model.ExportRecord, error) {
	var r model.ExportRecord
	if err := sc.Scan(&r.ID, &r.Kind, &r.Year, &r.Month, &r.Path,
		&r.Samples, &r.Bytes, &r.Checksum, &r.ExportedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// buildWhereClause constructs a SQL WHERE clause from a HistoryFilter.
func buildWhereClause(filter model.HistoryFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Year != 0 {
		conditions = append(conditions, "year = ?")
		args = append(args, filter.Year)
	}

	return strings.Join(conditions, " AND "), args
}
