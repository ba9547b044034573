// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// openDB opens a SQLite database with the connection options every Strata
// store uses: WAL journaling, a busy timeout so concurrent writers queue
// instead of failing, and foreign keys on.
func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, strataerr.Errorf(strataerr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	return db, nil
}

// timeLayout is RFC3339 with fixed-width nanoseconds so that lexical order
// of stored strings matches chronological order in SQL comparisons.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime serialises a time.Time to RFC3339 with nanosecond precision.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
