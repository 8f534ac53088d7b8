package library

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is a well-formed bcrypt hash compared against when the external
// id does not exist, keeping the timing of both failure paths alike.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// NormalizeExternalID canonicalizes a human-chosen id such as "stu101" to
// its stored form. IDs are upper-cased, so uniqueness is case-insensitive.
func NormalizeExternalID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// RegisterUser creates a user. The plaintext credential is hashed with
// bcrypt before it touches storage; only the hash is persisted.
func (d *Database) RegisterUser(externalID, displayName, credential, confirm string, role Role) (*User, error) {
	externalID = NormalizeExternalID(externalID)
	displayName = strings.TrimSpace(displayName)
	if externalID == "" || displayName == "" || !role.Valid() {
		return nil, ErrInvalidInput
	}
	if credential == "" || credential != confirm {
		return nil, ErrInvalidCredential
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash credential: %w", err)
	}

	res, err := d.addUserStmt.Exec(externalID, displayName, string(hash), string(role))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateIdentity, externalID)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &User{
		ID:          id,
		ExternalID:  externalID,
		DisplayName: displayName,
		Credential:  string(hash),
		Role:        role,
	}, nil
}

// Authenticate verifies an id/credential pair. On any mismatch it returns
// ErrAuthenticationFailed without revealing which half was wrong.
func (d *Database) Authenticate(externalID, credential string) (*User, error) {
	u, err := d.userByExternalID(NormalizeExternalID(externalID))
	if errors.Is(err, sql.ErrNoRows) {
		// Still burn a comparison so missing ids cost the same as bad
		// passwords.
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(credential))
		return nil, ErrAuthenticationFailed
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Credential), []byte(credential)) != nil {
		return nil, ErrAuthenticationFailed
	}
	return u, nil
}

func (d *Database) userByExternalID(externalID string) (*User, error) {
	var u User
	err := d.db.QueryRow(
		`SELECT id,external_id,display_name,credential,role FROM users WHERE external_id=?`, externalID).
		Scan(&u.ID, &u.ExternalID, &u.DisplayName, &u.Credential, &u.Role)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a single user by system id.
func (d *Database) GetUser(id int64) (*User, error) {
	var u User
	err := d.db.QueryRow(
		`SELECT id,external_id,display_name,role FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.ExternalID, &u.DisplayName, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsersByRole returns users of the given role ordered by id. The
// credential hash is not loaded.
func (d *Database) ListUsersByRole(role Role) ([]*User, error) {
	if !role.Valid() {
		return nil, ErrInvalidInput
	}
	rows, err := d.db.Query(
		`SELECT id,external_id,display_name,role FROM users WHERE role=? ORDER BY id`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.ExternalID, &u.DisplayName, &u.Role); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// DeleteUser removes a user. The last remaining Librarian and any user with
// ledger history are protected: the loans table is append-only and must
// keep its identity references intact.
func (d *Database) DeleteUser(id int64) error {
	return retryBusy(func() error {
		tx, err := d.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var role Role
		err = tx.QueryRow(`SELECT role FROM users WHERE id=?`, id).Scan(&role)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if role == RoleLibrarian {
			var librarians int
			if err := tx.QueryRow(`SELECT COUNT(*) FROM users WHERE role='Librarian'`).Scan(&librarians); err != nil {
				return err
			}
			if librarians <= 1 {
				return fmt.Errorf("%w: last librarian", ErrProtectedEntity)
			}
		}

		var loans int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM loans WHERE user_id=?`, id).Scan(&loans); err != nil {
			return err
		}
		if loans > 0 {
			return fmt.Errorf("%w: user has loan history", ErrProtectedEntity)
		}

		if _, err := tx.Exec(`DELETE FROM users WHERE id=?`, id); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// HasAnyLibrarian reports whether at least one Librarian exists. Used only
// at bootstrap to gate first-run registration.
func (d *Database) HasAnyLibrarian() (bool, error) {
	var exists bool
	err := d.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE role='Librarian')`).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
