package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Database provides high-level helpers around a SQLite connection.
type Database struct {
	db  *sql.DB
	log zerolog.Logger

	addUserStmt *sql.Stmt
	addBookStmt *sql.Stmt
	addLoanStmt *sql.Stmt
}

// dateLayout is the storage format for loan dates.
const dateLayout = "2006-01-02"

func today() string { return time.Now().Format(dateLayout) }

// NewDatabase opens (or creates) the SQLite database at dbPath, applies
// schema migrations, and prepares common statements.
func NewDatabase(dbPath string, log zerolog.Logger) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Enable busy_timeout and foreign keys.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db, log: log}
	if err := database.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug().Str("path", dbPath).Int("schema_version", schemaVersion).Msg("database ready")
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	for _, stmt := range []*sql.Stmt{d.addUserStmt, d.addBookStmt, d.addLoanStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            external_id TEXT UNIQUE NOT NULL,
            display_name TEXT NOT NULL,
            credential TEXT NOT NULL,
            role TEXT NOT NULL CHECK(role IN ('Student','Assistant','Librarian'))
        );`,
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            code TEXT UNIQUE NOT NULL,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            isbn TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL,
            total_copies INTEGER NOT NULL CHECK(total_copies >= 1),
            available_copies INTEGER NOT NULL
                CHECK(available_copies >= 0 AND available_copies <= total_copies)
        );`,
		`CREATE TABLE IF NOT EXISTS loans (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            ref TEXT UNIQUE NOT NULL,
            book_id INTEGER NOT NULL REFERENCES books(id),
            user_id INTEGER NOT NULL REFERENCES users(id),
            borrowed_on TEXT NOT NULL,
            returned_on TEXT
        );`,
		`CREATE INDEX IF NOT EXISTS idx_loans_open_book ON loans(book_id) WHERE returned_on IS NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_loans_user ON loans(user_id);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.addUserStmt, err = d.db.Prepare(
		`INSERT INTO users(external_id,display_name,credential,role) VALUES(?,?,?,?)`); err != nil {
		return err
	}
	if d.addBookStmt, err = d.db.Prepare(
		`INSERT INTO books(code,title,author,isbn,category,total_copies,available_copies) VALUES(?,?,?,?,?,?,?)`); err != nil {
		return err
	}
	if d.addLoanStmt, err = d.db.Prepare(
		`INSERT INTO loans(ref,book_id,user_id,borrowed_on) VALUES(?,?,?,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Conflict handling
// ---------------------------------------------------------------------------

const (
	busyRetries = 3
	busyBackoff = 50 * time.Millisecond
)

// retryBusy runs fn, retrying a bounded number of times when SQLite reports
// a transient busy/locked condition. Exhausting the retries surfaces
// ErrStorageConflict.
func retryBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt <= busyRetries; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(busyBackoff)
	}
	return fmt.Errorf("%w: %v", ErrStorageConflict, err)
}

func isBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
