// Package sqlite provides SQLite-backed persistence for the cost ledger and
// the webhook delivery-idempotency table.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/buildlens/buildlens/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to the
// ledger store interfaces through wrapper types. WAL mode plus a busy
// timeout serializes concurrent appends from parallel pipeline runs without
// losing records; readers see consistent snapshots.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.buildlens/data/ledger.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".buildlens", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ledger.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// UsageStore returns a UsageStore interface backed by this store.
func (s *Store) UsageStore() driven.UsageStore {
	return &usageStore{store: s}
}

// DeliveryStore returns a DeliveryStore interface backed by this store.
func (s *Store) DeliveryStore() driven.DeliveryStore {
	return &deliveryStore{store: s}
}

// migrate applies pending schema migrations from the embedded filesystem.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Usage Store ====================

// tsLayout stores timestamps with a fixed-width fractional part so that
// string comparison in SQL matches chronological order. RFC3339Nano trims
// trailing zeros and breaks ordering within a second.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// usageStore implements driven.UsageStore backed by the shared Store.
type usageStore struct {
	store *Store
}

func (u *usageStore) Append(ctx context.Context, rec domain.UsageRecord) error {
	_, err := u.store.db.ExecContext(ctx, `
		INSERT INTO usage_records (timestamp, operation, backend, model, input_tokens, output_tokens, cost)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.UTC().Format(tsLayout),
		rec.Operation,
		rec.Backend,
		rec.Model,
		rec.InputTokens,
		rec.OutputTokens,
		rec.Cost,
	)
	if err != nil {
		return fmt.Errorf("inserting usage record: %w", err)
	}
	return nil
}

func (u *usageStore) List(ctx context.Context, since time.Time) ([]domain.UsageRecord, error) {
	rows, err := u.store.db.QueryContext(ctx, `
		SELECT timestamp, operation, backend, model, input_tokens, output_tokens, cost
		FROM usage_records
		WHERE timestamp >= ?
		ORDER BY timestamp ASC, id ASC`,
		since.UTC().Format(tsLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("querying usage records: %w", err)
	}
	defer rows.Close()

	var records []domain.UsageRecord
	for rows.Next() {
		var rec domain.UsageRecord
		var ts string
		if err := rows.Scan(&ts, &rec.Operation, &rec.Backend, &rec.Model,
			&rec.InputTokens, &rec.OutputTokens, &rec.Cost); err != nil {
			return nil, fmt.Errorf("scanning usage record: %w", err)
		}
		rec.Timestamp, err = time.Parse(tsLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp %q: %w", ts, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage records: %w", err)
	}
	return records, nil
}

func (u *usageStore) Close() error {
	// Lifetime is owned by the parent Store.
	return nil
}

// ==================== Delivery Store ====================

// deliveryStore implements driven.DeliveryStore backed by the shared Store.
type deliveryStore struct {
	store *Store
}

func (d *deliveryStore) MarkDelivered(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, fmt.Errorf("%w: empty event id", domain.ErrInvalidInput)
	}
	res, err := d.store.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO delivered_events (event_id) VALUES (?)`, eventID)
	if err != nil {
		return false, fmt.Errorf("marking event delivered: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (d *deliveryStore) ClearDelivered(ctx context.Context, eventID string) error {
	if eventID == "" {
		return fmt.Errorf("%w: empty event id", domain.ErrInvalidInput)
	}
	if _, err := d.store.db.ExecContext(ctx,
		`DELETE FROM delivered_events WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("clearing delivered event: %w", err)
	}
	return nil
}

func (d *deliveryStore) Close() error {
	// Lifetime is owned by the parent Store.
	return nil
}
