// Package store persists committed blocks in an embedded SQLite database
// and answers the range and retention queries the commit and query
// engines need (spec.md §4.2).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yunchih/nfcollect/internal/constants"
	"github.com/yunchih/nfcollect/internal/logging"
	"github.com/yunchih/nfcollect/internal/model"
)

// Store wraps a *sql.DB holding the header and data tables for one
// database file.
type Store struct {
	db     *sql.DB
	path   string
	logger *logging.Logger
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures its schema exists. DDL is retried with backoff because a
// concurrently-running extractor can hold a conflicting lock briefly
// (spec.md §7, TransientDB).
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, model.NewFatalError("store.Open", model.CodeStartup, err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver does its own serialization; avoid lock contention across the pool

	s := &Store{db: db, path: path, logger: logging.Default().Component("store")}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the data table (the PK-owning record, holding the
// payload blob) and the header table, whose data_id references it with
// ON DELETE SET NULL: evicting a data row leaves its header row behind as
// a dangling tombstone rather than cascading the header away too
// (spec.md §3 "Store row", §4.2).
func (s *Store) migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	bytes BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	nr_entries INTEGER NOT NULL,
	raw_size INTEGER NOT NULL,
	compression_type INTEGER NOT NULL,
	start_time INTEGER NOT NULL,
	end_time INTEGER NOT NULL,
	data_id INTEGER REFERENCES %s(id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_%s_end_time ON %s(end_time);
`, constants.SQLiteTableData, constants.SQLiteTableHeader, constants.SQLiteTableData,
		constants.SQLiteTableHeader, constants.SQLiteTableHeader)

	var lastErr error
	for attempt := 0; attempt < constants.SQLiteDDLRetries; attempt++ {
		_, err := s.db.ExecContext(ctx, ddl)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTransient(err) {
			break
		}
		s.logger.Warn("schema migration retrying", "attempt", attempt, "err", err)
		select {
		case <-time.After(constants.SQLiteDDLBackoff):
		case <-ctx.Done():
			return model.NewFatalError("store.migrate", model.CodeStartup, ctx.Err())
		}
	}
	return model.NewFatalError("store.migrate", model.CodeStartup, lastErr)
}

func isTransient(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Insert commits one block's header and compressed payload atomically:
// the payload is written to the data table first, then the header row is
// written referencing its generated id (spec.md §4.2).
func (s *Store) Insert(ctx context.Context, h model.Header, payload []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.NewError("store.Insert", model.CodeTransientDB, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (bytes) VALUES (?)`, constants.SQLiteTableData), payload)
	if err != nil {
		return model.NewError("store.Insert", model.CodeTransientDB, err)
	}
	dataID, err := res.LastInsertId()
	if err != nil {
		return model.NewError("store.Insert", model.CodeTransientDB, err)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (nr_entries, raw_size, compression_type, start_time, end_time, data_id) VALUES (?, ?, ?, ?, ?, ?)`, constants.SQLiteTableHeader),
		h.NrEntries, h.RawSize, uint8(h.CompressionType), h.StartTime, h.EndTime, dataID); err != nil {
		return model.NewError("store.Insert", model.CodeTransientDB, err)
	}

	if err := tx.Commit(); err != nil {
		return model.NewError("store.Insert", model.CodeTransientDB, err)
	}
	return nil
}

// Row is one committed block as read back from the store.
type Row struct {
	ID      int64
	Header  model.Header
	Payload []byte
}

// Rows streams rows matching a query, decoding one at a time so an
// extractor never has to hold an entire range's payloads in memory at
// once.
type Rows struct {
	rows *sql.Rows
}

// Next advances to the next row. It returns false at end of results or on
// error; call Err to distinguish the two.
func (r *Rows) Next() bool { return r.rows.Next() }

// Err reports any error encountered while iterating.
func (r *Rows) Err() error { return r.rows.Err() }

// Close releases the underlying cursor.
func (r *Rows) Close() error { return r.rows.Close() }

// Scan decodes the current row.
func (r *Rows) Scan() (Row, error) {
	var row Row
	var compressionType uint8
	if err := r.rows.Scan(&row.ID, &row.Header.NrEntries, &row.Header.RawSize,
		&compressionType, &row.Header.StartTime, &row.Header.EndTime, &row.Payload); err != nil {
		return Row{}, err
	}
	row.Header.CompressionType = model.CompressionType(compressionType)
	return row, nil
}

// SelectOverlapping streams every row whose [start_time, end_time] span
// overlaps tr, ordered by start_time ascending (spec.md §4.8). Header rows
// with a dangling (NULL) data_id — evicted by a prior retention pass — are
// excluded by the inner join, matching "header rows with a dangling
// reference are treated as absent" (spec.md §3).
func (s *Store) SelectOverlapping(ctx context.Context, tr model.Timerange) (*Rows, error) {
	query := fmt.Sprintf(`
SELECT h.id, h.nr_entries, h.raw_size, h.compression_type, h.start_time, h.end_time, d.bytes
FROM %s h JOIN %s d ON d.id = h.data_id
WHERE h.end_time > ? AND h.start_time < ?
ORDER BY h.start_time ASC`, constants.SQLiteTableHeader, constants.SQLiteTableData)

	rows, err := s.db.QueryContext(ctx, query, tr.From, tr.Until)
	if err != nil {
		return nil, model.NewError("store.SelectOverlapping", model.CodeTransientDB, err)
	}
	return &Rows{rows: rows}, nil
}

// DeleteOldestBytes evicts data rows, oldest end_time first, until at
// least wantBytes of raw_size has been freed or the store is exhausted
// (spec.md §4.2). It deletes from the data table only; the ON DELETE SET
// NULL foreign key leaves the corresponding header rows behind as
// dangling tombstones rather than cascading them away, so a block's
// metadata survives its payload's eviction. It returns the bytes and row
// count actually evicted.
func (s *Store) DeleteOldestBytes(ctx context.Context, wantBytes uint64) (evictedBytes uint64, evictedRows uint64, err error) {
	for evictedBytes < wantBytes {
		var dataID int64
		var rawSize uint32
		row := s.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT data_id, raw_size FROM %s WHERE data_id IS NOT NULL ORDER BY end_time ASC LIMIT 1`, constants.SQLiteTableHeader))
		if scanErr := row.Scan(&dataID, &rawSize); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				break
			}
			return evictedBytes, evictedRows, model.NewError("store.DeleteOldestBytes", model.CodeTransientDB, scanErr)
		}

		if _, delErr := s.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, constants.SQLiteTableData), dataID); delErr != nil {
			return evictedBytes, evictedRows, model.NewError("store.DeleteOldestBytes", model.CodeTransientDB, delErr)
		}
		evictedBytes += uint64(rawSize)
		evictedRows++
	}
	return evictedBytes, evictedRows, nil
}

// Vacuum reclaims space left behind by deleted rows, briefly locking the
// whole database. It is run on startup when requested (the -V/--vacuum
// flag) and after every retention pass that evicted rows.
func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	if err != nil {
		return model.NewError("store.Vacuum", model.CodeTransientDB, err)
	}
	return nil
}

// FileSize reports the on-disk size of the database file, used to refresh
// StorageConsumed after retention GC and compaction (spec.md §4.7).
func (s *Store) FileSize() (uint64, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		return 0, model.NewError("store.FileSize", model.CodeStartup, err)
	}
	return uint64(fi.Size()), nil
}
