package library

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Borrow opens a loan for one copy of a book. Availability re-check,
// decrement and loan insert run in one transaction: when a single copy
// remains, concurrent borrows resolve to exactly one success and one
// ErrNoCopiesAvailable.
func (d *Database) Borrow(bookID, userID int64) (*Loan, error) {
	var loan *Loan
	err := retryBusy(func() error {
		tx, err := d.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM books WHERE id=?)`, bookID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: book %d", ErrNotFound, bookID)
		}
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE id=?)`, userID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}

		if err := adjustAvailability(tx, bookID, -1); err != nil {
			if errors.Is(err, errNoHeadroom) {
				return ErrNoCopiesAvailable
			}
			return err
		}

		l := Loan{
			Ref:        uuid.NewString(),
			BookID:     bookID,
			UserID:     userID,
			BorrowedOn: today(),
		}
		res, err := tx.Stmt(d.addLoanStmt).Exec(l.Ref, l.BookID, l.UserID, l.BorrowedOn)
		if err != nil {
			return fmt.Errorf("insert loan: %w", err)
		}
		if l.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		loan = &l
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Return closes an open loan. Closing the loan and incrementing the book's
// availability are one transaction; either both happen or neither does.
// A loan already closed reports ErrNotFound, a loan held by someone else
// reports ErrNotOwner.
func (d *Database) Return(loanID, userID int64) error {
	return retryBusy(func() error {
		tx, err := d.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var bookID, ownerID int64
		err = tx.QueryRow(
			`SELECT book_id, user_id FROM loans WHERE id=? AND returned_on IS NULL`, loanID).
			Scan(&bookID, &ownerID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: open loan %d", ErrNotFound, loanID)
		}
		if err != nil {
			return err
		}
		if ownerID != userID {
			return ErrNotOwner
		}

		res, err := tx.Exec(
			`UPDATE loans SET returned_on=? WHERE id=? AND returned_on IS NULL`, today(), loanID)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: open loan %d", ErrNotFound, loanID)
		}

		if err := adjustAvailability(tx, bookID, +1); err != nil {
			// An open loan existed, so there must be headroom; anything else
			// means the availability invariant was already broken.
			return fmt.Errorf("restore availability for book %d: %w", bookID, err)
		}
		return tx.Commit()
	})
}

// OpenLoansFor returns the user's active loans joined with book identity,
// oldest first, for presenting return choices.
func (d *Database) OpenLoansFor(userID int64) ([]*LoanRecord, error) {
	rows, err := d.db.Query(
		`SELECT l.id, l.ref, l.book_id, l.user_id, l.borrowed_on, b.code, b.title
         FROM loans l
         JOIN books b ON b.id = l.book_id
         WHERE l.user_id = ? AND l.returned_on IS NULL
         ORDER BY l.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*LoanRecord
	for rows.Next() {
		var r LoanRecord
		if err := rows.Scan(&r.ID, &r.Ref, &r.BookID, &r.UserID, &r.BorrowedOn,
			&r.BookCode, &r.BookTitle); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// AllLoans returns the full ledger joined with book and user identity,
// newest first, for reporting.
func (d *Database) AllLoans() ([]*LoanRecord, error) {
	rows, err := d.db.Query(
		`SELECT l.id, l.ref, l.book_id, l.user_id, l.borrowed_on, COALESCE(l.returned_on,''),
                b.code, b.title, u.external_id, u.display_name
         FROM loans l
         JOIN books b ON b.id = l.book_id
         JOIN users u ON u.id = l.user_id
         ORDER BY l.borrowed_on DESC, l.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*LoanRecord
	for rows.Next() {
		var r LoanRecord
		if err := rows.Scan(&r.ID, &r.Ref, &r.BookID, &r.UserID, &r.BorrowedOn, &r.ReturnedOn,
			&r.BookCode, &r.BookTitle, &r.UserExternalID, &r.UserDisplayName); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// CountOpenLoans returns the number of active loans for a book. For every
// book this must equal total_copies - available_copies.
func (d *Database) CountOpenLoans(bookID int64) (int, error) {
	var n int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM loans WHERE book_id=? AND returned_on IS NULL`, bookID).Scan(&n)
	return n, err
}
