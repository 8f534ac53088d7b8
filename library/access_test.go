package library

import "testing"

func TestCapabilityTable(t *testing.T) {
	cases := []struct {
		op        Operation
		student   bool
		assistant bool
		librarian bool
	}{
		{OpAddBook, false, true, true},
		{OpRemoveBook, false, true, true},
		{OpRegisterStudent, true, false, true},
		{OpRegisterAssistant, false, false, true},
		{OpRegisterLibrarian, false, false, true},
		{OpDeleteUser, false, false, true},
		{OpBorrow, true, false, false},
		{OpReturn, true, false, false},
		{OpViewListings, true, true, true},
	}

	for _, tc := range cases {
		if got := Authorize(RoleStudent, tc.op); got != tc.student {
			t.Errorf("%s/Student: want %v, got %v", tc.op, tc.student, got)
		}
		if got := Authorize(RoleAssistant, tc.op); got != tc.assistant {
			t.Errorf("%s/Assistant: want %v, got %v", tc.op, tc.assistant, got)
		}
		if got := Authorize(RoleLibrarian, tc.op); got != tc.librarian {
			t.Errorf("%s/Librarian: want %v, got %v", tc.op, tc.librarian, got)
		}
	}
}

func TestAuthorizeUnknownRole(t *testing.T) {
	for op := OpAddBook; op <= OpViewListings; op++ {
		if Authorize(Role("Janitor"), op) {
			t.Fatalf("unknown role authorized for %s", op)
		}
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleStudent, RoleAssistant, RoleLibrarian} {
		if !r.Valid() {
			t.Fatalf("%s should be valid", r)
		}
	}
	if Role("").Valid() || Role("Admin").Valid() {
		t.Fatalf("unknown roles must be invalid")
	}
}
