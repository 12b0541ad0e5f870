package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

const schema = `
CREATE TABLE IF NOT EXISTS builds (
	number      INTEGER PRIMARY KEY,
	label       TEXT    NOT NULL,
	status      TEXT    NOT NULL,
	recorded_at INTEGER NOT NULL,
	snapshot    BLOB    NOT NULL
);`

// SQLiteStore persists records in a SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLite opens or creates the history database at path.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	_, err = db.ExecContext(ctx, "PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, errors.Join(fmt.Errorf("set WAL mode: %w", err), db.Close())
	}

	_, err = db.ExecContext(ctx, schema)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init history schema: %w", err), db.Close())
	}

	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	blob, err := EncodeRecord(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO builds (number, label, status, recorded_at, snapshot) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET
			label = excluded.label, status = excluded.status,
			recorded_at = excluded.recorded_at, snapshot = excluded.snapshot`,
		rec.Build.Number, rec.Build.DisplayName(), rec.Status.String(), rec.RecordedAt.UnixMilli(), blob)
	if err != nil {
		return fmt.Errorf("save build #%d: %w", rec.Build.Number, err)
	}

	s.logger.DebugContext(ctx, "stored build snapshot",
		"build", rec.Build.Number, "size", humanize.Bytes(uint64(len(blob))))

	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, number int) (Record, error) {
	var blob []byte

	err := s.db.QueryRowContext(ctx, "SELECT snapshot FROM builds WHERE number = ?", number).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: #%d", ErrNotFound, number)
	}

	if err != nil {
		return Record{}, fmt.Errorf("load build #%d: %w", number, err)
	}

	return DecodeRecord(blob)
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT snapshot FROM builds ORDER BY number")
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	defer rows.Close()

	var records []Record

	for rows.Next() {
		var blob []byte

		err = rows.Scan(&blob)
		if err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}

		rec, err := DecodeRecord(blob)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}

	return records, nil
}

// Prune implements Store.
func (s *SQLiteStore) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM builds WHERE number NOT IN (SELECT number FROM builds ORDER BY number DESC LIMIT ?)", keep)
	if err != nil {
		return 0, fmt.Errorf("prune builds: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune builds: %w", err)
	}

	return int(removed), nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}

	return s.db.Close()
}
