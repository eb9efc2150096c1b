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

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/astrabot/internal/models"
)

// ErrNotFound is returned by GetUnit for an unknown ID.
var ErrNotFound = errors.New("unit not found")

// maxQueryParams keeps IN clauses below SQLite's bound parameter limit.
const maxQueryParams = 500

// SQLiteStorage implements UnitStore using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// OpenSQLiteStorage opens an existing database without creating it.
// The schema must already be present.
func OpenSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("failed to open database: %s is a directory", dbPath)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	var n int
	err = db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('sources', 'units')`,
	).Scan(&n)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	if n != 2 {
		_ = db.Close()
		return nil, fmt.Errorf("unexpected schema in %s", dbPath)
	}
	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		path TEXT NOT NULL,
		title TEXT
	);

	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		collection TEXT NOT NULL,
		content TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		ordinal INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (source_id) REFERENCES sources(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_units_source_id ON units(source_id);
	CREATE INDEX IF NOT EXISTS idx_units_ordinal ON units(ordinal);
	`
	_, err := db.Exec(schema)
	return err
}

// BatchCreateUnits inserts units in a single transaction, registering each unit's source once.
// Ordinals continue from the units already stored so ListUnits preserves insertion order.
func (s *SQLiteStorage) BatchCreateUnits(ctx context.Context, units []*models.DocumentUnit) error {
	if len(units) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(ordinal) + 1, 0) FROM units`).Scan(&next); err != nil {
		return err
	}

	srcStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO sources (id, collection, path, title) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer srcStmt.Close()

	unitStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO units (id, source_id, collection, content, chunk_index, ordinal, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer unitStmt.Close()

	now := time.Now()
	for i, u := range units {
		if u == nil {
			return fmt.Errorf("unit %d is nil", i)
		}
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		if _, err := srcStmt.ExecContext(ctx, u.SourceID, u.Collection, u.SourcePath, u.Title); err != nil {
			return fmt.Errorf("failed to insert source %s: %w", u.SourceID, err)
		}
		if _, err := unitStmt.ExecContext(ctx,
			u.ID, u.SourceID, u.Collection, u.Content, u.ChunkIndex, next+int64(i), u.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert unit %s: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

const unitColumns = `u.id, u.source_id, u.collection, s.path, COALESCE(s.title, ''), u.content, u.chunk_index, u.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (*models.DocumentUnit, error) {
	var u models.DocumentUnit
	if err := row.Scan(&u.ID, &u.SourceID, &u.Collection, &u.SourcePath, &u.Title,
		&u.Content, &u.ChunkIndex, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUnit returns a unit by ID.
func (s *SQLiteStorage) GetUnit(ctx context.Context, id string) (*models.DocumentUnit, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+unitColumns+` FROM units u JOIN sources s ON s.id = u.source_id WHERE u.id = ?`, id)
	u, err := scanUnit(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return u, err
}

// GetUnits returns the stored units among ids.
func (s *SQLiteStorage) GetUnits(ctx context.Context, ids []string) (map[string]*models.DocumentUnit, error) {
	out := make(map[string]*models.DocumentUnit, len(ids))
	for start := 0; start < len(ids); start += maxQueryParams {
		end := min(start+maxQueryParams, len(ids))
		batch := ids[start:end]
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		query := `SELECT ` + unitColumns + ` FROM units u JOIN sources s ON s.id = u.source_id
			WHERE u.id IN (?` + strings.Repeat(",?", len(batch)-1) + `)`
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			u, err := scanUnit(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[u.ID] = u
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ListUnits returns all units in insertion order.
func (s *SQLiteStorage) ListUnits(ctx context.Context) ([]*models.DocumentUnit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+unitColumns+` FROM units u JOIN sources s ON s.id = u.source_id ORDER BY u.ordinal`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []*models.DocumentUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// CountUnits returns the number of stored units.
func (s *SQLiteStorage) CountUnits(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM units`).Scan(&n)
	return n, err
}

// CountSources returns the number of distinct source documents.
func (s *SQLiteStorage) CountSources(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sources`).Scan(&n)
	return n, err
}

// Check runs PRAGMA quick_check and fails unless SQLite reports "ok".
func (s *SQLiteStorage) Check(ctx context.Context) error {
	var result string
	if err := s.db.QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check: %s", result)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
