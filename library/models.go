package library

// Role classifies a user's permission level. The set is closed: every user
// is exactly one of Student, Assistant or Librarian, and the capability
// table in access.go is the single source of truth for what each may do.
type Role string

const (
	RoleStudent   Role = "Student"
	RoleAssistant Role = "Assistant"
	RoleLibrarian Role = "Librarian"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleAssistant, RoleLibrarian:
		return true
	}
	return false
}

// User is a registered account. Credential holds the bcrypt hash of the
// user's password; it is never serialized and never logged.
type User struct {
	ID          int64  `json:"id"`
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
	Credential  string `json:"-"`
	Role        Role   `json:"role"`
}

// Book represents a title the library owns, with its physical copy counts.
// Invariant: 0 <= AvailableCopies <= TotalCopies, and the difference equals
// the number of open loans referencing the book.
type Book struct {
	ID              int64  `json:"id"`
	Code            string `json:"code"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn,omitempty"`
	Category        string `json:"category"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
}

// Available reports whether at least one copy can be borrowed right now.
func (b *Book) Available() bool { return b.AvailableCopies > 0 }

// Loan links one borrowed copy of a book to the borrowing user. A loan is
// open while ReturnedOn is empty; Return closes it exactly once and no loan
// is ever deleted or re-opened. Ref is a unique receipt id handed to the
// borrower when the loan opens.
type Loan struct {
	ID         int64  `json:"id"`
	Ref        string `json:"ref"`
	BookID     int64  `json:"book_id"`
	UserID     int64  `json:"user_id"`
	BorrowedOn string `json:"borrowed_on"`
	ReturnedOn string `json:"returned_on,omitempty"`
}

// Open reports whether the loan is still active.
func (l *Loan) Open() bool { return l.ReturnedOn == "" }

// LoanRecord is a ledger row joined with book and borrower identity, used
// by the reporting queries.
type LoanRecord struct {
	Loan
	BookCode        string `json:"book_code"`
	BookTitle       string `json:"book_title"`
	UserExternalID  string `json:"user_external_id"`
	UserDisplayName string `json:"user_display_name"`
}
