package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"library-system/library"
)

// readPassword securely reads a password with masking
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println() // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

func readLine(sc *bufio.Scanner, prompt string) (string, bool) {
	fmt.Print(prompt)
	if !sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sc.Text()), true
}

func readID(sc *bufio.Scanner, prompt string) (int64, bool) {
	s, ok := readLine(sc, prompt)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fmt.Printf("Invalid ID: %s\n", s)
		return 0, false
	}
	return id, true
}

// runShell drives the login loop and role dashboards. All state lives in
// the manager; the shell only renders structured results.
func runShell(mgr *library.LibraryManager) error {
	sc := bufio.NewScanner(os.Stdin)

	fmt.Println("=== LIBRARY MANAGEMENT SYSTEM ===")

	ok, err := mgr.HasAnyLibrarian()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("No Librarian found. The system requires one before use.")
		if !handleBootstrapLibrarian(sc, mgr) {
			return nil
		}
	}

	for {
		fmt.Println("\n1. Login")
		fmt.Println("2. Register Student")
		fmt.Println("3. Exit")
		choice, ok := readLine(sc, "Choose (1-3): ")
		if !ok {
			return nil
		}
		switch choice {
		case "1":
			user := handleLogin(sc, mgr)
			if user == nil {
				continue
			}
			switch user.Role {
			case library.RoleLibrarian:
				librarianMenu(sc, mgr, user)
			case library.RoleAssistant:
				assistantMenu(sc, mgr, user)
			case library.RoleStudent:
				studentMenu(sc, mgr, user)
			}
		case "2":
			handleRegisterStudentSelf(sc, mgr)
		case "3":
			fmt.Println("Goodbye!")
			return nil
		default:
			fmt.Println("Invalid choice.")
		}
	}
}

func handleBootstrapLibrarian(sc *bufio.Scanner, mgr *library.LibraryManager) bool {
	answer, ok := readLine(sc, "Register first Librarian? (y/n): ")
	if !ok || strings.ToLower(answer) != "y" {
		fmt.Println("Cannot continue without a Librarian.")
		return false
	}
	extID, name, password, confirm, ok := promptRegistration(sc, "Librarian ID (LIB001): ")
	if !ok {
		return false
	}
	user, err := mgr.BootstrapLibrarian(extID, name, password, confirm)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return false
	}
	fmt.Printf("Librarian registered: %s\n", user.ExternalID)
	return true
}

func promptRegistration(sc *bufio.Scanner, idPrompt string) (extID, name, password, confirm string, ok bool) {
	if extID, ok = readLine(sc, idPrompt); !ok {
		return
	}
	if name, ok = readLine(sc, "Display name: "); !ok {
		return
	}
	var err error
	if password, err = readPassword("Password: "); err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return "", "", "", "", false
	}
	if confirm, err = readPassword("Confirm password: "); err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return "", "", "", "", false
	}
	return extID, name, password, confirm, true
}

func handleLogin(sc *bufio.Scanner, mgr *library.LibraryManager) *library.User {
	extID, ok := readLine(sc, "Your ID: ")
	if !ok {
		return nil
	}
	password, err := readPassword("Password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return nil
	}
	user, err := mgr.Authenticate(extID, password)
	if err != nil {
		fmt.Println("Wrong ID or password.")
		return nil
	}
	fmt.Printf("\nWelcome, %s | %s (%s)\n", user.DisplayName, user.ExternalID, user.Role)
	return user
}

func handleRegisterStudentSelf(sc *bufio.Scanner, mgr *library.LibraryManager) {
	extID, name, password, confirm, ok := promptRegistration(sc, "Student ID (STU101): ")
	if !ok {
		return
	}
	user, err := mgr.SelfRegisterStudent(extID, name, password, confirm)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Student registered: %s\n", user.ExternalID)
}

// ---------------------------------------------------------------------------
// Dashboards
// ---------------------------------------------------------------------------

func librarianMenu(sc *bufio.Scanner, mgr *library.LibraryManager, actor *library.User) {
	for {
		fmt.Println("\n=== LIBRARIAN DASHBOARD ===")
		fmt.Println("1. Add Book")
		fmt.Println("2. Delete Book")
		fmt.Println("3. Add Assistant")
		fmt.Println("4. Add Student")
		fmt.Println("5. Delete User")
		fmt.Println("6. View Books")
		fmt.Println("7. View Borrowed Books")
		fmt.Println("8. View Assistants")
		fmt.Println("9. View Students")
		fmt.Println("10. Logout")
		choice, ok := readLine(sc, "Choose (1-10): ")
		if !ok {
			return
		}
		switch choice {
		case "1":
			handleAddBook(sc, mgr, actor)
		case "2":
			handleRemoveBook(sc, mgr, actor)
		case "3":
			handleRegisterStaff(sc, mgr, actor, library.RoleAssistant, "Assistant ID (AST001): ")
		case "4":
			handleRegisterStaff(sc, mgr, actor, library.RoleStudent, "Student ID (STU101): ")
		case "5":
			handleDeleteUser(sc, mgr, actor)
		case "6":
			handleListBooks(mgr, actor)
		case "7":
			handleListLoans(mgr, actor)
		case "8":
			handleListUsers(mgr, actor, library.RoleAssistant)
		case "9":
			handleListUsers(mgr, actor, library.RoleStudent)
		case "10":
			return
		default:
			fmt.Println("Invalid input.")
		}
	}
}

func assistantMenu(sc *bufio.Scanner, mgr *library.LibraryManager, actor *library.User) {
	for {
		fmt.Println("\n=== ASSISTANT DASHBOARD ===")
		fmt.Println("1. Add Book")
		fmt.Println("2. Delete Book")
		fmt.Println("3. View Books")
		fmt.Println("4. View Borrowed Books")
		fmt.Println("5. View Students")
		fmt.Println("6. Logout")
		choice, ok := readLine(sc, "Choose (1-6): ")
		if !ok {
			return
		}
		switch choice {
		case "1":
			handleAddBook(sc, mgr, actor)
		case "2":
			handleRemoveBook(sc, mgr, actor)
		case "3":
			handleListBooks(mgr, actor)
		case "4":
			handleListLoans(mgr, actor)
		case "5":
			handleListUsers(mgr, actor, library.RoleStudent)
		case "6":
			return
		default:
			fmt.Println("Invalid input.")
		}
	}
}

func studentMenu(sc *bufio.Scanner, mgr *library.LibraryManager, actor *library.User) {
	for {
		fmt.Println("\n=== STUDENT DASHBOARD ===")
		fmt.Println("1. View All Books")
		fmt.Println("2. Borrow Book")
		fmt.Println("3. Return Book")
		fmt.Println("4. My Loans")
		fmt.Println("5. Logout")
		choice, ok := readLine(sc, "Choose (1-5): ")
		if !ok {
			return
		}
		switch choice {
		case "1":
			handleListBooks(mgr, actor)
		case "2":
			handleBorrow(sc, mgr, actor)
		case "3":
			handleReturn(sc, mgr, actor)
		case "4":
			handleMyLoans(mgr, actor)
		case "5":
			fmt.Println("Logged out.")
			return
		default:
			fmt.Println("Invalid input.")
		}
	}
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func handleAddBook(sc *bufio.Scanner, mgr *library.LibraryManager, actor *library.User) {
	title, ok := readLine(sc, "Title: ")
	if !ok {
		return
	}
	author, ok := readLine(sc, "Author: ")
	if !ok {
		return
	}
	isbn, ok := readLine(sc, "ISBN (optional): ")
	if !ok {
		return
	}
	category, ok := readLine(sc, "Category: ")
	if !ok {
		return
	}
	copiesStr, ok := readLine(sc, "Number of copies: ")
	if !ok {
		return
	}
	copies, err := strconv.Atoi(copiesStr)
	if err != nil {
		fmt.Printf("Invalid number: %s\n", copiesStr)
		return
	}

	book, err := mgr.AddBook(actor, title, author, isbn, category, copies)
	if err != nil {
		fmt.Printf("Error adding book: %v\n", err)
		return
	}
	fmt.Printf("Book added: %s | Total: %d | Available: %d\n", book.Code, book.TotalCopies, book.AvailableCopies)
}

func handleRemoveBook(sc *bufio.Scanner, mgr *library.LibraryManager, actor *library.User) {
	handleListBooks(mgr, actor)
	id, ok := readID(sc, "\nBook ID to delete: ")
	if !ok {
		return
	}
	if err := mgr.RemoveBook(actor, id); err != nil {
		fmt.Printf("Error deleting book: %v\n", err)
		return
	}
	fmt.Println("Book deleted.")
}

func handleRegisterStaff(sc *bufio.Scanner, mgr *library.LibraryManager, actor *library.User, role library.Role, idPrompt string) {
	extID, name, password, confirm, ok := promptRegistration(sc, idPrompt)
	if !ok {
		return
	}
	user, err := mgr.Register(actor, role, extID, name, password, confirm)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("%s registered: %s\n", role, user.ExternalID)
}

func handleDeleteUser(sc *bufio.Scanner, mgr *library.LibraryManager, actor *library.User) {
	handleListUsers(mgr, actor, library.RoleStudent)
	handleListUsers(mgr, actor, library.RoleAssistant)
	id, ok := readID(sc, "\nUser ID to delete: ")
	if !ok {
		return
	}
	if err := mgr.DeleteUser(actor, id); err != nil {
		fmt.Printf("Error deleting user: %v\n", err)
		return
	}
	fmt.Println("User deleted.")
}

func handleListBooks(mgr *library.LibraryManager, actor *library.User) {
	books, err := mgr.Books(actor)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(books) == 0 {
		fmt.Println("No books in library.")
		return
	}
	fmt.Printf("\n%-5s %-9s %-30s %-20s %-12s %-6s %s\n", "ID", "CODE", "TITLE", "AUTHOR", "CATEGORY", "TOTAL", "AVAILABLE")
	fmt.Println(strings.Repeat("-", 95))
	for _, b := range books {
		status := fmt.Sprintf("%d", b.AvailableCopies)
		if !b.Available() {
			status += " (none left)"
		}
		fmt.Printf("%-5d %-9s %-30s %-20s %-12s %-6d %s\n",
			b.ID, b.Code, truncateString(b.Title, 30), truncateString(b.Author, 20),
			truncateString(b.Category, 12), b.TotalCopies, status)
	}
}

func handleListLoans(mgr *library.LibraryManager, actor *library.User) {
	records, err := mgr.AllLoans(actor)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(records) == 0 {
		fmt.Println("No borrowed books.")
		return
	}
	fmt.Printf("\n%-5s %-9s %-25s %-12s %-12s %s\n", "ID", "CODE", "TITLE", "BORROWER", "BORROWED", "RETURNED")
	fmt.Println(strings.Repeat("-", 85))
	for _, r := range records {
		returned := r.ReturnedOn
		if returned == "" {
			returned = "not returned"
		}
		fmt.Printf("%-5d %-9s %-25s %-12s %-12s %s\n",
			r.ID, r.BookCode, truncateString(r.BookTitle, 25), r.UserExternalID, r.BorrowedOn, returned)
	}
}

func handleListUsers(mgr *library.LibraryManager, actor *library.User, role library.Role) {
	users, err := mgr.UsersByRole(actor, role)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(users) == 0 {
		fmt.Printf("No registered %ss.\n", strings.ToLower(string(role)))
		return
	}
	fmt.Printf("\n%-5s %-10s %-25s %s\n", "ID", "UID", "NAME", "ROLE")
	fmt.Println(strings.Repeat("-", 50))
	for _, u := range users {
		fmt.Printf("%-5d %-10s %-25s %s\n", u.ID, u.ExternalID, truncateString(u.DisplayName, 25), u.Role)
	}
}

func handleBorrow(sc *bufio.Scanner, mgr *library.LibraryManager, actor *library.User) {
	handleListBooks(mgr, actor)
	code, ok := readLine(sc, "\nBook CODE to borrow: ")
	if !ok {
		return
	}
	book, err := mgr.FindBookByCode(actor, code)
	if err != nil {
		fmt.Printf("Book not found: %s\n", code)
		return
	}
	loan, err := mgr.Borrow(actor, book.ID)
	if err != nil {
		if errors.Is(err, library.ErrNoCopiesAvailable) {
			fmt.Println("No copies available.")
		} else {
			fmt.Printf("Error borrowing book: %v\n", err)
		}
		return
	}
	fmt.Printf("Borrowed: %s\nReceipt: %s\n", book.Title, loan.Ref)
}

func handleReturn(sc *bufio.Scanner, mgr *library.LibraryManager, actor *library.User) {
	loans, err := mgr.OpenLoans(actor)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(loans) == 0 {
		fmt.Println("You have no borrowed books.")
		return
	}
	fmt.Println("\nYour borrowed books:")
	for _, l := range loans {
		fmt.Printf("-> Loan %d | %s | %s (borrowed %s)\n", l.ID, l.BookCode, l.BookTitle, l.BorrowedOn)
	}
	id, ok := readID(sc, "\nLoan ID to return: ")
	if !ok {
		return
	}
	if err := mgr.Return(actor, id); err != nil {
		fmt.Printf("Error returning book: %v\n", err)
		return
	}
	fmt.Println("Book returned. Thank you!")
}

func handleMyLoans(mgr *library.LibraryManager, actor *library.User) {
	loans, err := mgr.OpenLoans(actor)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(loans) == 0 {
		fmt.Println("You have no open loans.")
		return
	}
	for _, l := range loans {
		fmt.Printf("Loan %d | %s | %s | borrowed %s | receipt %s\n",
			l.ID, l.BookCode, l.BookTitle, l.BorrowedOn, l.Ref)
	}
}

func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return s[:maxLength]
	}
	return s[:maxLength-3] + "..."
}
