package library

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// LibraryManager is the facade the presentation layer calls. Every mutating
// method checks the capability table for the acting user before touching
// storage, and logs the outcome. Results are structured values, never
// formatted text.
type LibraryManager struct {
	db  *Database
	log zerolog.Logger
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath.
func NewLibraryManager(dbPath string, log zerolog.Logger) (*LibraryManager, error) {
	db, err := NewDatabase(dbPath, log)
	if err != nil {
		return nil, err
	}
	return &LibraryManager{db: db, log: log}, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// authorize rejects unauthenticated callers and roles the capability table
// does not grant the operation.
func (lm *LibraryManager) authorize(actor *User, op Operation) error {
	if actor == nil || !Authorize(actor.Role, op) {
		lm.log.Warn().Str("op", op.String()).Msg("operation denied")
		return fmt.Errorf("%w: %s", ErrForbidden, op)
	}
	return nil
}

// ------------------ Identity ------------------

// HasAnyLibrarian reports whether the system has been bootstrapped.
func (lm *LibraryManager) HasAnyLibrarian() (bool, error) { return lm.db.HasAnyLibrarian() }

// BootstrapLibrarian registers the first Librarian. Allowed only while no
// Librarian exists; afterwards Register with a Librarian actor is the only
// way to add another.
func (lm *LibraryManager) BootstrapLibrarian(externalID, displayName, credential, confirm string) (*User, error) {
	exists, err := lm.db.HasAnyLibrarian()
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: librarian already registered", ErrForbidden)
	}
	u, err := lm.db.RegisterUser(externalID, displayName, credential, confirm, RoleLibrarian)
	if err != nil {
		return nil, err
	}
	lm.log.Info().Str("op", OpRegisterLibrarian.String()).
		Int64("user", u.ID).Str("external_id", u.ExternalID).Msg("bootstrap librarian registered")
	return u, nil
}

// SelfRegisterStudent is the public, pre-login registration path. The role
// is always Student.
func (lm *LibraryManager) SelfRegisterStudent(externalID, displayName, credential, confirm string) (*User, error) {
	u, err := lm.db.RegisterUser(externalID, displayName, credential, confirm, RoleStudent)
	if err != nil {
		return nil, err
	}
	lm.log.Info().Str("op", OpRegisterStudent.String()).
		Int64("user", u.ID).Str("external_id", u.ExternalID).Msg("student self-registered")
	return u, nil
}

// Register creates a user of the given role on behalf of actor.
func (lm *LibraryManager) Register(actor *User, role Role, externalID, displayName, credential, confirm string) (*User, error) {
	var op Operation
	switch role {
	case RoleStudent:
		op = OpRegisterStudent
	case RoleAssistant:
		op = OpRegisterAssistant
	case RoleLibrarian:
		op = OpRegisterLibrarian
	default:
		return nil, ErrInvalidInput
	}
	if err := lm.authorize(actor, op); err != nil {
		return nil, err
	}
	u, err := lm.db.RegisterUser(externalID, displayName, credential, confirm, role)
	if err != nil {
		return nil, err
	}
	lm.log.Info().Str("op", op.String()).Int64("actor", actor.ID).
		Int64("user", u.ID).Str("external_id", u.ExternalID).Msg("user registered")
	return u, nil
}

// Authenticate verifies a login attempt.
func (lm *LibraryManager) Authenticate(externalID, credential string) (*User, error) {
	u, err := lm.db.Authenticate(externalID, credential)
	if err != nil {
		lm.log.Warn().Str("external_id", NormalizeExternalID(externalID)).Msg("authentication failed")
		return nil, err
	}
	lm.log.Info().Int64("user", u.ID).Str("role", string(u.Role)).Msg("authenticated")
	return u, nil
}

// DeleteUser removes a user on behalf of actor.
func (lm *LibraryManager) DeleteUser(actor *User, id int64) error {
	if err := lm.authorize(actor, OpDeleteUser); err != nil {
		return err
	}
	if err := lm.db.DeleteUser(id); err != nil {
		return err
	}
	lm.log.Info().Str("op", OpDeleteUser.String()).
		Int64("actor", actor.ID).Int64("user", id).Msg("user deleted")
	return nil
}

// UsersByRole lists users of one role for the actor.
func (lm *LibraryManager) UsersByRole(actor *User, role Role) ([]*User, error) {
	if err := lm.authorize(actor, OpViewListings); err != nil {
		return nil, err
	}
	return lm.db.ListUsersByRole(role)
}

// ------------------ Catalog ------------------

// AddBook adds a title with the given copy count to the catalog.
func (lm *LibraryManager) AddBook(actor *User, title, author, isbn, category string, copies int) (*Book, error) {
	if err := lm.authorize(actor, OpAddBook); err != nil {
		return nil, err
	}
	b, err := lm.db.AddBook(title, author, isbn, category, copies)
	if err != nil {
		return nil, err
	}
	lm.log.Info().Str("op", OpAddBook.String()).Int64("actor", actor.ID).
		Int64("book", b.ID).Str("code", b.Code).Int("copies", copies).Msg("book added")
	return b, nil
}

// RemoveBook deletes a book from the catalog.
func (lm *LibraryManager) RemoveBook(actor *User, id int64) error {
	if err := lm.authorize(actor, OpRemoveBook); err != nil {
		return err
	}
	if err := lm.db.RemoveBook(id); err != nil {
		return err
	}
	lm.log.Info().Str("op", OpRemoveBook.String()).
		Int64("actor", actor.ID).Int64("book", id).Msg("book removed")
	return nil
}

// Books lists the whole catalog.
func (lm *LibraryManager) Books(actor *User) ([]*Book, error) {
	if err := lm.authorize(actor, OpViewListings); err != nil {
		return nil, err
	}
	return lm.db.ListBooks()
}

// AvailableBooks lists only books with free copies.
func (lm *LibraryManager) AvailableBooks(actor *User) ([]*Book, error) {
	if err := lm.authorize(actor, OpViewListings); err != nil {
		return nil, err
	}
	return lm.db.ListAvailableBooks()
}

// FindBookByCode resolves a code like BOOK007 to its book.
func (lm *LibraryManager) FindBookByCode(actor *User, code string) (*Book, error) {
	if err := lm.authorize(actor, OpViewListings); err != nil {
		return nil, err
	}
	return lm.db.FindBookByCode(code)
}

// ------------------ Circulation ------------------

// Borrow opens a loan of one copy of the book for the actor.
func (lm *LibraryManager) Borrow(actor *User, bookID int64) (*Loan, error) {
	if err := lm.authorize(actor, OpBorrow); err != nil {
		return nil, err
	}
	loan, err := lm.db.Borrow(bookID, actor.ID)
	if err != nil {
		return nil, err
	}
	lm.log.Info().Str("op", OpBorrow.String()).Int64("actor", actor.ID).
		Int64("book", bookID).Int64("loan", loan.ID).Str("ref", loan.Ref).Msg("loan opened")
	return loan, nil
}

// Return closes one of the actor's own open loans.
func (lm *LibraryManager) Return(actor *User, loanID int64) error {
	if err := lm.authorize(actor, OpReturn); err != nil {
		return err
	}
	if err := lm.db.Return(loanID, actor.ID); err != nil {
		return err
	}
	lm.log.Info().Str("op", OpReturn.String()).
		Int64("actor", actor.ID).Int64("loan", loanID).Msg("loan closed")
	return nil
}

// OpenLoans lists the actor's active loans for choosing what to return.
func (lm *LibraryManager) OpenLoans(actor *User) ([]*LoanRecord, error) {
	if err := lm.authorize(actor, OpViewListings); err != nil {
		return nil, err
	}
	return lm.db.OpenLoansFor(actor.ID)
}

// AllLoans lists the full ledger, newest first.
func (lm *LibraryManager) AllLoans(actor *User) ([]*LoanRecord, error) {
	if err := lm.authorize(actor, OpViewListings); err != nil {
		return nil, err
	}
	return lm.db.AllLoans()
}

// ------------------ Reporting ------------------

// ExportSnapshot writes the catalog, registry and ledger to w as JSON.
func (lm *LibraryManager) ExportSnapshot(w io.Writer) error {
	return lm.db.ExportSnapshot(w)
}
