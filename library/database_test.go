package library

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func tempDB(t *testing.T) *Database {
	t.Helper()
	dir := t.TempDir()
	db, err := NewDatabase(filepath.Join(dir, "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustRegister(t *testing.T, db *Database, externalID string, role Role) *User {
	t.Helper()
	u, err := db.RegisterUser(externalID, "User "+externalID, "secret", "secret", role)
	if err != nil {
		t.Fatalf("register %s: %v", externalID, err)
	}
	return u
}

func mustAddBook(t *testing.T, db *Database, title string, copies int) *Book {
	t.Helper()
	b, err := db.AddBook(title, "Author", "", "Fiction", copies)
	if err != nil {
		t.Fatalf("add book %q: %v", title, err)
	}
	return b
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.db")

	db, err := NewDatabase(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	mustAddBook(t, db, "Persisted", 1)
	db.Close()

	// Reopening must not fail or lose rows.
	db2, err := NewDatabase(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer db2.Close()

	books, err := db2.ListBooks()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(books) != 1 || books[0].Title != "Persisted" {
		t.Fatalf("want 1 persisted book, got %d", len(books))
	}
}

func TestBookCodeSequence(t *testing.T) {
	db := tempDB(t)

	first := mustAddBook(t, db, "First", 1)
	if first.Code != "BOOK001" {
		t.Fatalf("empty catalog: want BOOK001, got %s", first.Code)
	}

	var third *Book
	for i := 2; i <= 5; i++ {
		b := mustAddBook(t, db, fmt.Sprintf("Book %d", i), 1)
		want := fmt.Sprintf("BOOK%03d", i)
		if b.Code != want {
			t.Fatalf("want %s, got %s", want, b.Code)
		}
		if i == 3 {
			third = b
		}
	}

	// Gaps from deletions are not reused: the sequence follows the max
	// existing suffix, not the row count.
	if err := db.RemoveBook(third.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	next := mustAddBook(t, db, "After gap", 1)
	if next.Code != "BOOK006" {
		t.Fatalf("after deleting BOOK003: want BOOK006, got %s", next.Code)
	}
}

func TestAvailabilityCheckConstraint(t *testing.T) {
	db := tempDB(t)
	b := mustAddBook(t, db, "Guarded", 2)

	// The schema itself refuses counts outside [0, total].
	if _, err := db.db.Exec(`UPDATE books SET available_copies = -1 WHERE id=?`, b.ID); err == nil {
		t.Fatalf("expected CHECK violation for negative availability")
	}
	if _, err := db.db.Exec(`UPDATE books SET available_copies = 3 WHERE id=?`, b.ID); err == nil {
		t.Fatalf("expected CHECK violation for availability above total")
	}
}

func TestRetryBusyPassesThroughOtherErrors(t *testing.T) {
	calls := 0
	err := retryBusy(func() error {
		calls++
		return errors.New("plain failure")
	})
	if calls != 1 {
		t.Fatalf("non-busy errors must not be retried, got %d calls", calls)
	}
	if errors.Is(err, ErrStorageConflict) {
		t.Fatalf("plain failure must not map to ErrStorageConflict")
	}
}
