package library

// Operation enumerates the gated entry points of the facade.
type Operation int

const (
	OpAddBook Operation = iota
	OpRemoveBook
	OpRegisterStudent
	OpRegisterAssistant
	OpRegisterLibrarian
	OpDeleteUser
	OpBorrow
	OpReturn
	OpViewListings
)

func (op Operation) String() string {
	switch op {
	case OpAddBook:
		return "add_book"
	case OpRemoveBook:
		return "remove_book"
	case OpRegisterStudent:
		return "register_student"
	case OpRegisterAssistant:
		return "register_assistant"
	case OpRegisterLibrarian:
		return "register_librarian"
	case OpDeleteUser:
		return "delete_user"
	case OpBorrow:
		return "borrow"
	case OpReturn:
		return "return"
	case OpViewListings:
		return "view_listings"
	}
	return "unknown"
}

// capabilities is the static role capability table. Every mutating facade
// method consults it before touching storage. Students register themselves;
// the Student entry for OpRegisterStudent covers that self-service path.
// Borrowing is a Student activity only: staff circulate books, they do not
// take them home through the ledger.
var capabilities = map[Operation]map[Role]bool{
	OpAddBook:           {RoleAssistant: true, RoleLibrarian: true},
	OpRemoveBook:        {RoleAssistant: true, RoleLibrarian: true},
	OpRegisterStudent:   {RoleStudent: true, RoleLibrarian: true},
	OpRegisterAssistant: {RoleLibrarian: true},
	OpRegisterLibrarian: {RoleLibrarian: true},
	OpDeleteUser:        {RoleLibrarian: true},
	OpBorrow:            {RoleStudent: true},
	OpReturn:            {RoleStudent: true},
	OpViewListings:      {RoleStudent: true, RoleAssistant: true, RoleLibrarian: true},
}

// Authorize reports whether the role may perform the operation.
func Authorize(role Role, op Operation) bool {
	return capabilities[op][role]
}
