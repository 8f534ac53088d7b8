package main

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"library-system/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type seedBook struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	ISBN     string `json:"isbn"`
	Category string `json:"category"`
	Copies   int    `json:"copies"`
}

// seed_books is an offline admin tool: it loads a JSON list of books into
// the catalog directly at the storage layer, before any users exist.
func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <library.db> <books.json>\n", os.Args[0])
		os.Exit(1)
	}
	dbPath, seedPath := os.Args[1], os.Args[2]

	f, err := os.Open(seedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening seed file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var books []seedBook
	if err := json.NewDecoder(f).Decode(&books); err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding seed file: %v\n", err)
		os.Exit(1)
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	db, err := library.NewDatabase(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	successCount := 0
	errorCount := 0

	for _, b := range books {
		copies := b.Copies
		if copies == 0 {
			copies = 1
		}
		fmt.Printf("Importing: %s by %s... ", b.Title, b.Author)
		book, err := db.AddBook(b.Title, b.Author, b.ISBN, b.Category, copies)
		if err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Printf("SUCCESS (%s)\n", book.Code)
		successCount++
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d books\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)
}
