// Package db opens and migrates the SQLite metadata store that holds the
// semantic model graph and calculated field definitions.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"
)

const pingTimeout = 5 * time.Second

// OpenSQLite opens a *sql.DB pool for the given SQLite file path.
//
// mode selects the pool shape:
//   - "write": single connection, _txlock=immediate, so writes serialize
//     instead of failing with SQLITE_BUSY
//   - "read":  maxOpen connections (0 defaults to 4) for concurrent reads
//
// Both modes enable WAL, busy_timeout=5000ms, synchronous=NORMAL, and
// foreign_keys=on.
func OpenSQLite(path string, mode string, maxOpen int) (*sql.DB, error) {
	if mode != "read" && mode != "write" {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be \"read\" or \"write\"", mode)
	}

	pool, err := sql.Open("sqlite3", sqliteDSN(path, mode == "write"))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	if mode == "write" {
		maxOpen = 1
	} else if maxOpen <= 0 {
		maxOpen = 4
	}
	pool.SetMaxOpenConns(maxOpen)
	pool.SetMaxIdleConns(maxOpen)
	pool.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}

	return pool, nil
}

// OpenSQLitePair opens a write pool and a read pool over the same SQLite
// file. The split keeps long read scans from blocking behind the single
// serialized write connection.
func OpenSQLitePair(path string, readMaxOpen int) (writeDB, readDB *sql.DB, err error) {
	writeDB, err = OpenSQLite(path, "write", 0)
	if err != nil {
		return nil, nil, err
	}

	readDB, err = OpenSQLite(path, "read", readMaxOpen)
	if err != nil {
		_ = writeDB.Close()
		return nil, nil, err
	}

	return writeDB, readDB, nil
}

func sqliteDSN(path string, write bool) string {
	params := url.Values{
		"_journal_mode": {"WAL"},
		"_busy_timeout": {"5000"},
		"_synchronous":  {"NORMAL"},
		"_foreign_keys": {"on"},
	}
	if write {
		params.Set("_txlock", "immediate")
	}
	return path + "?" + params.Encode()
}
