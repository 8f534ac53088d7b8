package library

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// bookCodePrefix and bookCodeWidth define the shape of generated codes:
// BOOK001, BOOK002, ... The numeric suffix grows past the padding width
// once 999 is exceeded.
const (
	bookCodePrefix = "BOOK"
	bookCodeWidth  = 3
)

// nextBookCode derives the next code from the highest numeric suffix
// currently in the table. Gaps left by deletions are never reused: the
// sequence is max+1, not count+1. Must run inside the same transaction as
// the insert that consumes the code, so concurrent AddBook calls serialize.
func nextBookCode(tx *sql.Tx) (string, error) {
	var maxSuffix int
	err := tx.QueryRow(
		`SELECT COALESCE(MAX(CAST(substr(code, ?) AS INTEGER)), 0) FROM books WHERE code LIKE ?`,
		len(bookCodePrefix)+1, bookCodePrefix+"%").Scan(&maxSuffix)
	if err != nil {
		return "", fmt.Errorf("scan max code suffix: %w", err)
	}
	return fmt.Sprintf("%s%0*d", bookCodePrefix, bookCodeWidth, maxSuffix+1), nil
}

// AddBook allocates the next code and inserts the book with all copies
// available. Code allocation and insert are one transaction.
func (d *Database) AddBook(title, author, isbn, category string, copies int) (*Book, error) {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	category = strings.TrimSpace(category)
	isbn = strings.TrimSpace(isbn)
	if title == "" || author == "" || category == "" || copies < 1 {
		return nil, ErrInvalidInput
	}

	var book *Book
	err := retryBusy(func() error {
		tx, err := d.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		code, err := nextBookCode(tx)
		if err != nil {
			return err
		}
		res, err := tx.Stmt(d.addBookStmt).Exec(code, title, author, isbn, category, copies, copies)
		if err != nil {
			return fmt.Errorf("insert book: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		book = &Book{
			ID:              id,
			Code:            code,
			Title:           title,
			Author:          author,
			ISBN:            isbn,
			Category:        category,
			TotalCopies:     copies,
			AvailableCopies: copies,
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// RemoveBook deletes a book. Books with open loans are protected; deleting
// one would orphan active ledger rows and break the availability invariant.
func (d *Database) RemoveBook(id int64) error {
	return retryBusy(func() error {
		tx, err := d.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var open int
		if err := tx.QueryRow(
			`SELECT COUNT(*) FROM loans WHERE book_id=? AND returned_on IS NULL`, id).Scan(&open); err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("%w: book has %d open loan(s)", ErrProtectedEntity, open)
		}

		res, err := tx.Exec(`DELETE FROM books WHERE id=?`, id)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrNotFound
		}
		return tx.Commit()
	})
}

// FindBookByCode looks a book up by its exact code, case-insensitively.
func (d *Database) FindBookByCode(code string) (*Book, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var b Book
	err := d.db.QueryRow(
		`SELECT id,code,title,author,isbn,category,total_copies,available_copies FROM books WHERE code=?`, code).
		Scan(&b.ID, &b.Code, &b.Title, &b.Author, &b.ISBN, &b.Category, &b.TotalCopies, &b.AvailableCopies)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBook fetches a single book by system id.
func (d *Database) GetBook(id int64) (*Book, error) {
	var b Book
	err := d.db.QueryRow(
		`SELECT id,code,title,author,isbn,category,total_copies,available_copies FROM books WHERE id=?`, id).
		Scan(&b.ID, &b.Code, &b.Title, &b.Author, &b.ISBN, &b.Category, &b.TotalCopies, &b.AvailableCopies)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBooks returns the whole catalog ordered by id.
func (d *Database) ListBooks() ([]*Book, error) {
	return d.queryBooks(`SELECT id,code,title,author,isbn,category,total_copies,available_copies FROM books ORDER BY id`)
}

// ListAvailableBooks returns only books with at least one free copy.
func (d *Database) ListAvailableBooks() ([]*Book, error) {
	return d.queryBooks(`SELECT id,code,title,author,isbn,category,total_copies,available_copies
        FROM books WHERE available_copies > 0 ORDER BY id`)
}

func (d *Database) queryBooks(query string) ([]*Book, error) {
	rows, err := d.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Code, &b.Title, &b.Author, &b.ISBN, &b.Category,
			&b.TotalCopies, &b.AvailableCopies); err != nil {
			return nil, err
		}
		books = append(books, &b)
	}
	return books, rows.Err()
}

// errNoHeadroom marks an availability update rejected by the range guard.
var errNoHeadroom = errors.New("availability guard rejected update")

// adjustAvailability shifts a book's available count inside an open
// transaction. The guard clause keeps 0 <= available <= total at every
// commit point; a rejected update returns errNoHeadroom for the caller to
// interpret. Only the ledger transactions call this.
func adjustAvailability(tx *sql.Tx, bookID int64, delta int) error {
	res, err := tx.Exec(
		`UPDATE books SET available_copies = available_copies + ?
         WHERE id = ? AND available_copies + ? BETWEEN 0 AND total_copies`,
		delta, bookID, delta)
	if err != nil {
		return fmt.Errorf("adjust availability: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errNoHeadroom
	}
	return nil
}
