// Package sqlite provides a SQLite-backed ledger. Each named sheet is a
// sequence of JSON-encoded cell rows with a monotone row index, mirroring a
// worksheet with its header at row 0.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mhliao/crewlog/internal/ledger"
	sqlitemigrate "github.com/mhliao/crewlog/internal/platform/storage/sqlitemigrate"

	"github.com/mhliao/crewlog/internal/ledger/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed ledger persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a ledger SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Sheet returns the ledger surface for one named sheet. Headers name the
// columns for GetAllRecords.
func (s *Store) Sheet(name string, headers []string) ledger.Ledger {
	return &sheet{store: s, name: name, headers: headers}
}

type sheet struct {
	store   *Store
	name    string
	headers []string
}

// AppendRow implements ledger.Ledger.
func (sh *sheet) AppendRow(ctx context.Context, cells []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if sh == nil || sh.store == nil || sh.store.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	encoded, err := json.Marshal(cells)
	if err != nil {
		return 0, fmt.Errorf("encode cells: %w", err)
	}

	tx, err := sh.store.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append transaction: %w", err)
	}

	var next int
	row := tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(row_index), 0) + 1 FROM sheet_rows WHERE sheet = ?
`, sh.name)
	if err := row.Scan(&next); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("next row index: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO sheet_rows (sheet, row_index, cells, written_at) VALUES (?, ?, ?, ?)
`, sh.name, next, string(encoded), time.Now().UTC().UnixMilli()); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("append row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return next, nil
}

// UpdateCell implements ledger.Ledger.
func (sh *sheet) UpdateCell(ctx context.Context, rowIndex, columnIndex int, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sh == nil || sh.store == nil || sh.store.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if columnIndex < 0 {
		return fmt.Errorf("column index must not be negative")
	}

	tx, err := sh.store.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update transaction: %w", err)
	}

	var encoded string
	row := tx.QueryRowContext(ctx, `
SELECT cells FROM sheet_rows WHERE sheet = ? AND row_index = ?
`, sh.name, rowIndex)
	if err := row.Scan(&encoded); err != nil {
		_ = tx.Rollback()
		if err == sql.ErrNoRows {
			return ledger.ErrRowNotFound
		}
		return fmt.Errorf("load row %d: %w", rowIndex, err)
	}

	var cells []string
	if err := json.Unmarshal([]byte(encoded), &cells); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("decode cells: %w", err)
	}
	for len(cells) <= columnIndex {
		cells = append(cells, "")
	}
	cells[columnIndex] = value

	updated, err := json.Marshal(cells)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("encode cells: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE sheet_rows SET cells = ? WHERE sheet = ? AND row_index = ?
`, string(updated), sh.name, rowIndex); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update row %d: %w", rowIndex, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

// GetAllRecords implements ledger.Ledger.
func (sh *sheet) GetAllRecords(ctx context.Context) ([]map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sh == nil || sh.store == nil || sh.store.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := sh.store.sqlDB.QueryContext(ctx, `
SELECT cells FROM sheet_rows WHERE sheet = ? ORDER BY row_index ASC
`, sh.name)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	defer rows.Close()

	var records []map[string]string
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var cells []string
		if err := json.Unmarshal([]byte(encoded), &cells); err != nil {
			return nil, fmt.Errorf("decode cells: %w", err)
		}
		record := make(map[string]string, len(sh.headers))
		for i, header := range sh.headers {
			if i < len(cells) {
				record[header] = cells[i]
			} else {
				record[header] = ""
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}
