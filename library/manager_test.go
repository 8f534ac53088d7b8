package library

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newManager(t *testing.T) *LibraryManager {
	t.Helper()
	dir := t.TempDir()
	mgr, err := NewLibraryManager(filepath.Join(dir, "lib.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("mgr: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

// bootstrappedManager returns a manager with one librarian and one student.
func bootstrappedManager(t *testing.T) (*LibraryManager, *User, *User) {
	t.Helper()
	mgr := newManager(t)
	librarian, err := mgr.BootstrapLibrarian("LIB001", "Head Librarian", "pw", "pw")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	student, err := mgr.SelfRegisterStudent("STU101", "Alice", "pw", "pw")
	if err != nil {
		t.Fatalf("register student: %v", err)
	}
	return mgr, librarian, student
}

func TestBootstrapLibrarianOnlyOnce(t *testing.T) {
	mgr := newManager(t)

	if _, err := mgr.BootstrapLibrarian("LIB001", "First", "pw", "pw"); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	if _, err := mgr.BootstrapLibrarian("LIB002", "Second", "pw", "pw"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("second bootstrap: want ErrForbidden, got %v", err)
	}

	ok, err := mgr.HasAnyLibrarian()
	if err != nil || !ok {
		t.Fatalf("librarian missing after bootstrap: %v", err)
	}
}

func TestFacadeEnforcesCapabilities(t *testing.T) {
	mgr, librarian, student := bootstrappedManager(t)

	assistant, err := mgr.Register(librarian, RoleAssistant, "AST001", "Bob", "pw", "pw")
	if err != nil {
		t.Fatalf("register assistant: %v", err)
	}

	// Students cannot manage the catalog.
	if _, err := mgr.AddBook(student, "T", "A", "", "C", 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("student addBook: want ErrForbidden, got %v", err)
	}
	if err := mgr.RemoveBook(student, 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("student removeBook: want ErrForbidden, got %v", err)
	}
	// Assistants cannot manage users or borrow.
	if _, err := mgr.Register(assistant, RoleAssistant, "AST002", "Eve", "pw", "pw"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("assistant registers assistant: want ErrForbidden, got %v", err)
	}
	if err := mgr.DeleteUser(assistant, student.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("assistant deletes user: want ErrForbidden, got %v", err)
	}
	if _, err := mgr.Borrow(assistant, 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("assistant borrows: want ErrForbidden, got %v", err)
	}
	// Librarians circulate nothing either.
	if _, err := mgr.Borrow(librarian, 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("librarian borrows: want ErrForbidden, got %v", err)
	}
	// Nil actor is always rejected.
	if _, err := mgr.AddBook(nil, "T", "A", "", "C", 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("nil actor: want ErrForbidden, got %v", err)
	}
}

func TestFacadeBorrowReturnFlow(t *testing.T) {
	mgr, librarian, student := bootstrappedManager(t)

	book, err := mgr.AddBook(librarian, "Borrowed Title", "Author", "", "Fiction", 1)
	if err != nil {
		t.Fatalf("add book: %v", err)
	}

	loan, err := mgr.Borrow(student, book.ID)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}

	open, err := mgr.OpenLoans(student)
	if err != nil {
		t.Fatalf("open loans: %v", err)
	}
	if len(open) != 1 || open[0].ID != loan.ID {
		t.Fatalf("open loan listing wrong: %+v", open)
	}

	// The book is now protected from removal.
	if err := mgr.RemoveBook(librarian, book.ID); !errors.Is(err, ErrProtectedEntity) {
		t.Fatalf("remove loaned book: want ErrProtectedEntity, got %v", err)
	}

	if err := mgr.Return(student, loan.ID); err != nil {
		t.Fatalf("return: %v", err)
	}

	all, err := mgr.AllLoans(librarian)
	if err != nil {
		t.Fatalf("all loans: %v", err)
	}
	if len(all) != 1 || all[0].Open() {
		t.Fatalf("ledger should hold one closed loan: %+v", all)
	}
}

func TestFacadeRegisterAndAuthenticate(t *testing.T) {
	mgr, _, _ := bootstrappedManager(t)

	u, err := mgr.Authenticate("stu101", "pw")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.Role != RoleStudent {
		t.Fatalf("wrong role: %s", u.Role)
	}

	if _, err := mgr.Authenticate("STU101", "wrong"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("want ErrAuthenticationFailed, got %v", err)
	}
	if _, err := mgr.SelfRegisterStudent("STU101", "Clone", "pw", "pw"); !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("want ErrDuplicateIdentity, got %v", err)
	}
}

func TestExportSnapshot(t *testing.T) {
	mgr, librarian, student := bootstrappedManager(t)

	book, err := mgr.AddBook(librarian, "Exported", "Author", "", "Fiction", 2)
	if err != nil {
		t.Fatalf("add book: %v", err)
	}
	if _, err := mgr.Borrow(student, book.ID); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	var buf bytes.Buffer
	if err := mgr.ExportSnapshot(&buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(buf.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Books) != 1 || snap.Books[0].Code != book.Code {
		t.Fatalf("snapshot missing book")
	}
	if len(snap.Users) != 2 {
		t.Fatalf("want 2 users in snapshot, got %d", len(snap.Users))
	}
	if len(snap.Loans) != 1 || !snap.Loans[0].Open() {
		t.Fatalf("snapshot missing open loan")
	}
	// Credential hashes must never leave the system.
	if bytes.Contains(buf.Bytes(), []byte("credential")) || bytes.Contains(buf.Bytes(), []byte("$2a$")) {
		t.Fatalf("snapshot leaks credentials")
	}
}
