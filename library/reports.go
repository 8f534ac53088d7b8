package library

import (
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Snapshot is the exportable state of the library: the catalog, the full
// ledger and the user registry. Credential hashes are excluded by the User
// json tags.
type Snapshot struct {
	ExportedAt string        `json:"exported_at"`
	Books      []*Book       `json:"books"`
	Users      []*User       `json:"users"`
	Loans      []*LoanRecord `json:"loans"`
}

// BuildSnapshot collects the current catalog, registry and ledger.
func (d *Database) BuildSnapshot() (*Snapshot, error) {
	books, err := d.ListBooks()
	if err != nil {
		return nil, fmt.Errorf("snapshot books: %w", err)
	}

	var users []*User
	for _, role := range []Role{RoleStudent, RoleAssistant, RoleLibrarian} {
		batch, err := d.ListUsersByRole(role)
		if err != nil {
			return nil, fmt.Errorf("snapshot users: %w", err)
		}
		users = append(users, batch...)
	}

	loans, err := d.AllLoans()
	if err != nil {
		return nil, fmt.Errorf("snapshot loans: %w", err)
	}

	return &Snapshot{
		ExportedAt: time.Now().Format(time.RFC3339),
		Books:      books,
		Users:      users,
		Loans:      loans,
	}, nil
}

// ExportSnapshot writes the snapshot to w as indented JSON.
func (d *Database) ExportSnapshot(w io.Writer) error {
	snap, err := d.BuildSnapshot()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
