package main

import (
	"context"
	"errors"
	"flag"
	"iter"
	"log/slog"
	"os"
	"slices"

	"github.com/poiesic/libris"
	"github.com/poiesic/libris/circulation"
	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/ingestion"
)

var books = []core.Record{
	{"isbn": "9780132350884", "title": "Clean Code", "author": "Robert C. Martin", "genre": "Programming", "year": "2008"},
	{"isbn": "9781775093305", "title": "Python Tricks", "author": "Dan Bader", "genre": "Programming", "year": "2017"},
	{"isbn": "9780201616224", "title": "The Pragmatic Programmer", "author": "Andrew Hunt", "genre": "Programming", "year": "1999"},
	{"isbn": "9780134190440", "title": "The Go Programming Language", "author": "Alan A. A. Donovan", "genre": "Programming", "year": "2015"},
	{"isbn": "9780596007126", "title": "Head First Design Patterns", "author": "Eric Freeman", "genre": "Programming", "year": "2004"},
	{"isbn": "9780201633610", "title": "Design Patterns", "author": "Erich Gamma", "genre": "Programming", "year": "1994"},
	{"isbn": "9781491950357", "title": "Building Microservices", "author": "Sam Newman", "genre": "Programming", "year": "2015"},
	{"isbn": "9780262033848", "title": "Introduction to Algorithms", "author": "Thomas H. Cormen", "genre": "Computer Science", "year": "2009"},
	{"isbn": "9780441172719", "title": "Dune", "author": "Frank Herbert", "genre": "Science Fiction", "year": "1965"},
	{"isbn": "9780553293357", "title": "Foundation", "author": "Isaac Asimov", "genre": "Science Fiction", "year": "1951"},
	{"isbn": "9780547928227", "title": "The Hobbit", "author": "J.R.R. Tolkien", "genre": "Fantasy", "year": "1937"},
	{"isbn": "9780451524935", "title": "1984", "author": "George Orwell", "genre": "Fiction", "year": "1949"},
	{"isbn": "9780061120084", "title": "To Kill a Mockingbird", "author": "Harper Lee", "genre": "Fiction", "year": "1960"},
	{"isbn": "9780743273565", "title": "The Great Gatsby", "author": "F. Scott Fitzgerald", "genre": "Fiction", "year": "1925"},
	{"isbn": "9780316769488", "title": "The Catcher in the Rye", "author": "J.D. Salinger", "genre": "Fiction", "year": "1951"},
	{"isbn": "9780141439518", "title": "Pride and Prejudice", "author": "Jane Austen", "genre": "Fiction", "year": "1813"},
}

var users = []core.Record{
	{"user_id": "U001", "name": "Alice Johnson", "email": "alice@example.com"},
	{"user_id": "U002", "name": "Bob Smith", "email": "bob@example.com"},
	{"user_id": "U003", "name": "Carol Diaz", "email": "carol@example.com"},
	{"user_id": "U004", "name": "Dan Lee"},
}

// checkouts pairs user codes with the ISBNs they have out.
var checkouts = [][2]string{
	{"U001", "9780132350884"},
	{"U002", "9780441172719"},
	{"U003", "9780547928227"},
}

var (
	seedFileName = flag.String("src", "", "file of book records (csv, json or yaml)")
	dbPath       = flag.String("db", "./library_db", "path to BadgerDB database directory")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// importBatched reads records from source and imports them in batches.
func importBatched(ctx context.Context, importer *ingestion.Importer, source iter.Seq[core.Record], batchSize int) error {
	batch := make([]core.Record, 0, batchSize)

	for rec := range source {
		batch = append(batch, rec)
		if len(batch) == batchSize {
			if err := importBooks(ctx, importer, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	// Process any remaining records
	if len(batch) > 0 {
		if err := importBooks(ctx, importer, batch); err != nil {
			return err
		}
	}

	return nil
}

func importBooks(ctx context.Context, importer *ingestion.Importer, batch []core.Record) error {
	summary, err := importer.ImportBooks(ctx, batch)
	if err != nil {
		return err
	}
	slog.Info("imported books", "imported", summary.Imported, "skipped", summary.Skipped)
	return nil
}

func main() {
	lib, err := libris.NewLibrary(*dbPath)
	if err != nil {
		panic(err)
	}
	defer lib.Close()

	importer, err := lib.NewImporter()
	if err != nil {
		panic(err)
	}
	defer importer.Release()

	ctx := context.Background()

	// Determine source of seed data
	source := slices.Values(books)
	if *seedFileName != "" {
		records, err := ingestion.LoadFile(*seedFileName)
		if err != nil {
			panic(err)
		}
		source = slices.Values(records)
	}

	// Import in batches of 5
	if err := importBatched(ctx, importer, source, 5); err != nil {
		panic(err)
	}

	summary, err := importer.ImportUsers(ctx, users)
	if err != nil {
		panic(err)
	}
	slog.Info("imported users", "imported", summary.Imported, "skipped", summary.Skipped)

	desk, err := lib.NewDesk()
	if err != nil {
		panic(err)
	}
	for _, c := range checkouts {
		book, err := lib.BookRepository().FindBookByISBN(ctx, c[1])
		if err != nil {
			slog.Warn("demo book missing, skipping checkout", "isbn", c[1], "err", err)
			continue
		}
		receipt, err := desk.Checkout(ctx, c[0], book.Id)
		if errors.Is(err, circulation.ErrBookUnavailable) {
			// Already seeded.
			continue
		}
		if err != nil {
			panic(err)
		}
		slog.Info(receipt.Message)
	}
}
