package library

import "errors"

// Error taxonomy for the lending core. Callers match with errors.Is; every
// operation fails independently and none of these is fatal to the process.
var (
	// ErrInvalidInput flags malformed or out-of-range arguments. The caller
	// can re-prompt and retry.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredential flags a credential/confirmation mismatch at
	// registration time.
	ErrInvalidCredential = errors.New("credential confirmation does not match")

	// ErrDuplicateIdentity is returned when a registration reuses an
	// existing external id.
	ErrDuplicateIdentity = errors.New("identity already registered")

	// ErrNotFound is returned when the referenced entity does not exist,
	// including loans that are already closed.
	ErrNotFound = errors.New("not found")

	// ErrNotOwner is returned when a user tries to return a loan that
	// belongs to someone else.
	ErrNotOwner = errors.New("loan belongs to another user")

	// ErrProtectedEntity is returned when a delete would break a structural
	// rule: the last Librarian, a book with open loans, or a user with
	// ledger history.
	ErrProtectedEntity = errors.New("entity is protected")

	// ErrAuthenticationFailed is deliberately vague: it never reveals
	// whether the id or the credential was wrong.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrForbidden is returned when the capability table denies the actor's
	// role the requested operation.
	ErrForbidden = errors.New("operation not permitted")

	// ErrNoCopiesAvailable is the expected outcome of borrowing a book with
	// every copy already out. Not a system fault.
	ErrNoCopiesAvailable = errors.New("no copies available")

	// ErrStorageConflict surfaces only after the core has exhausted its own
	// bounded retries of a transient storage conflict.
	ErrStorageConflict = errors.New("storage conflict")
)
