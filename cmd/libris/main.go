// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/libris"
	"github.com/poiesic/libris/config"
	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/ingestion"
	"github.com/poiesic/libris/report"
	"github.com/poiesic/libris/search"
)

const (
	configKey     = "config"
	maxRowErrors  = 20
	suggestLimit  = 3
	monthLayout   = "2006-01"
	defaultDBPath = "libris.db"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "libris",
		Usage: "Library catalog, circulation and search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				Value:   defaultDBPath,
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "import-books",
				Usage:     "Import books from a CSV, JSON or YAML file",
				ArgsUsage: "<file>",
				Action:    importBooksCommand,
				Flags:     importFlags(),
			},
			{
				Name:      "import-users",
				Usage:     "Import users from a CSV, JSON or YAML file",
				ArgsUsage: "<file>",
				Action:    importUsersCommand,
				Flags:     importFlags(),
			},
			{
				Name:   "add-book",
				Usage:  "Add a single book to the catalog",
				Action: addBookCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "isbn", Usage: "ISBN-10 or ISBN-13", Required: true},
					&cli.StringFlag{Name: "title", Usage: "Book title", Required: true},
					&cli.StringFlag{Name: "author", Usage: "Book author", Required: true},
					&cli.StringFlag{Name: "genre", Usage: "Book genre"},
					&cli.IntFlag{Name: "year", Usage: "Publication year"},
				},
			},
			{
				Name:   "remove-book",
				Usage:  "Remove a book from circulation",
				Action: removeBookCommand,
				Flags: append(bookFlags(), &cli.BoolFlag{
					Name:  "permanent",
					Usage: "Delete the book instead of marking it inactive",
				}),
			},
			{
				Name:      "search",
				Usage:     "Search the catalog",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "fields", Usage: "Fields to search (default from config)"},
					&cli.BoolFlag{Name: "fuzzy", Usage: "Enable fuzzy title and author matching (default from config)"},
					&cli.Float64Flag{Name: "min-ratio", Usage: "Minimum fuzzy similarity in [0,1]"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum results when not paging"},
					&cli.IntFlag{Name: "page", Usage: "Page number, starting at 1", Value: 1},
					&cli.IntFlag{Name: "page-size", Usage: "Results per page; 0 disables paging"},
				},
			},
			{
				Name:   "checkout",
				Usage:  "Check a book out to a user",
				Action: checkoutCommand,
				Flags:  append(bookFlags(), userFlag()),
			},
			{
				Name:   "return",
				Usage:  "Return a borrowed book",
				Action: returnCommand,
				Flags:  append(bookFlags(), userFlag()),
			},
			{
				Name:      "validate",
				Usage:     "Check that an activity file has the required columns",
				ArgsUsage: "<file>",
				Action:    validateCommand,
			},
			{
				Name:  "report",
				Usage: "Generate reports",
				Subcommands: []*cli.Command{
					{
						Name:      "summary",
						Usage:     "Summarize an activity file",
						ArgsUsage: "<file>",
						Action:    summaryCommand,
					},
					{
						Name:   "monthly",
						Usage:  "Report circulation for one month",
						Action: monthlyCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "month",
								Usage: "Month to report as YYYY-MM (default current month)",
							},
							&cli.StringFlag{
								Name:  "file",
								Usage: "Read activity from a file instead of the stored loans",
							},
						},
					},
				},
			},
		},
	}
}

func importFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "Report progress on stderr",
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Number of rows to write in each batch (default from config)",
		},
	}
}

func bookFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Uint64Flag{Name: "book", Aliases: []string{"b"}, Usage: "Book ID"},
		&cli.StringFlag{Name: "isbn", Usage: "Book ISBN, used when --book is not set"},
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User code", Required: true}
}

func setup(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if c.IsSet("log-level") || c.String("config") == "" {
		cfg.Logging.Level = strings.ToLower(c.String("log-level"))
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", cfg.Logging.Level)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func appConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

func openLibrary(c *cli.Context) (*libris.Library, error) {
	dbPath := c.String("db")
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	lib, err := libris.NewLibrary(dbPath, libris.WithConfig(appConfig(c)), libris.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return lib, nil
}

func fileArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one file argument")
	}
	return c.Args().First(), nil
}

func importBooksCommand(c *cli.Context) error {
	return runImport(c, func(ctx context.Context, im *ingestion.Importer, records []core.Record) (*ingestion.Summary, error) {
		return im.ImportBooks(ctx, records)
	})
}

func importUsersCommand(c *cli.Context) error {
	return runImport(c, func(ctx context.Context, im *ingestion.Importer, records []core.Record) (*ingestion.Summary, error) {
		return im.ImportUsers(ctx, records)
	})
}

type importFunc func(ctx context.Context, im *ingestion.Importer, records []core.Record) (*ingestion.Summary, error)

func runImport(c *cli.Context, run importFunc) error {
	ctx := c.Context

	path, err := fileArg(c)
	if err != nil {
		return err
	}
	records, err := ingestion.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	var opts []ingestion.Option
	if c.Bool("progress") {
		opts = append(opts, ingestion.WithProgress(c.App.ErrWriter, 0))
	}
	if c.IsSet("batch-size") {
		opts = append(opts, ingestion.WithBatchSize(c.Int("batch-size")))
	}
	importer, err := lib.NewImporter(opts...)
	if err != nil {
		return fmt.Errorf("failed to create importer: %w", err)
	}
	defer importer.Release()

	summary, err := run(ctx, importer, records)
	if summary != nil {
		writeImportSummary(c.App.Writer, summary)
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	return nil
}

func writeImportSummary(w io.Writer, s *ingestion.Summary) {
	fmt.Fprintf(w, "Imported %d of %d %s (%d skipped)\n", s.Imported, s.Total, s.Kind, s.Skipped)
	for i, rowErr := range s.Errors {
		if i == maxRowErrors {
			fmt.Fprintf(w, "  ... and %d more\n", len(s.Errors)-maxRowErrors)
			break
		}
		fmt.Fprintf(w, "  %v\n", rowErr)
	}
}

func addBookCommand(c *cli.Context) error {
	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	desk, err := lib.NewDesk()
	if err != nil {
		return err
	}
	book, err := desk.AddBook(c.Context, &core.Book{
		ISBN:   c.String("isbn"),
		Title:  c.String("title"),
		Author: c.String("author"),
		Genre:  c.String("genre"),
		Year:   c.Int("year"),
	})
	if err != nil {
		return fmt.Errorf("failed to add book: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Added '%s' (id %d).\n", book.Title, book.Id)
	return nil
}

func removeBookCommand(c *cli.Context) error {
	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	id, err := resolveBook(c, lib)
	if err != nil {
		return err
	}
	desk, err := lib.NewDesk()
	if err != nil {
		return err
	}
	msg, err := desk.RemoveBook(c.Context, id, c.Bool("permanent"))
	if err != nil {
		return fmt.Errorf("failed to remove book: %w", err)
	}
	fmt.Fprintln(c.App.Writer, msg)
	return nil
}

// resolveBook reads the book ID from --book, or looks it up by --isbn.
func resolveBook(c *cli.Context, lib *libris.Library) (core.ID, error) {
	if c.IsSet("book") {
		return core.ID(c.Uint64("book")), nil
	}
	isbn := c.String("isbn")
	if isbn == "" {
		return 0, fmt.Errorf("one of --book or --isbn is required")
	}
	book, err := lib.BookRepository().FindBookByISBN(c.Context, isbn)
	if err != nil {
		return 0, fmt.Errorf("failed to find book with ISBN %s: %w", isbn, err)
	}
	return book.Id, nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("a search query is required")
	}

	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	searcher, err := lib.NewSearcher()
	if err != nil {
		return err
	}
	params := searchParams(c, searcher.Defaults())

	result, err := searcher.FindBooks(c.Context, query, params)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if err := report.WriteSearchResult(c.App.Writer, query, result); err != nil {
		return err
	}

	if result.Total == 0 {
		suggestions, err := searcher.SuggestTitles(c.Context, query, suggestLimit)
		if err != nil {
			return fmt.Errorf("failed to suggest titles: %w", err)
		}
		if len(suggestions) > 0 {
			fmt.Fprintf(c.App.Writer, "Did you mean: %s?\n", strings.Join(suggestions, ", "))
		}
	}
	return nil
}

// searchParams overrides p with the search flags that were set.
func searchParams(c *cli.Context, p search.Params) search.Params {
	if c.IsSet("fields") {
		p.Fields = c.StringSlice("fields")
	}
	if c.IsSet("fuzzy") {
		p.Fuzzy = c.Bool("fuzzy")
	}
	if c.IsSet("min-ratio") {
		p.MinRatio = c.Float64("min-ratio")
	}
	if c.IsSet("limit") {
		p.Limit = c.Int("limit")
	}
	if c.IsSet("page-size") {
		p.PageSize = c.Int("page-size")
	}
	p.Page = c.Int("page")
	return p
}

func checkoutCommand(c *cli.Context) error {
	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	id, err := resolveBook(c, lib)
	if err != nil {
		return err
	}
	desk, err := lib.NewDesk()
	if err != nil {
		return err
	}
	receipt, err := desk.Checkout(c.Context, c.String("user"), id)
	if err != nil {
		return fmt.Errorf("checkout failed: %w", err)
	}
	fmt.Fprintln(c.App.Writer, receipt.Message)
	return nil
}

func returnCommand(c *cli.Context) error {
	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	id, err := resolveBook(c, lib)
	if err != nil {
		return err
	}
	desk, err := lib.NewDesk()
	if err != nil {
		return err
	}
	receipt, err := desk.Return(c.Context, c.String("user"), id)
	if err != nil {
		return fmt.Errorf("return failed: %w", err)
	}
	fmt.Fprintln(c.App.Writer, receipt.Message)
	return nil
}

func loadRecords(c *cli.Context) ([]core.Record, error) {
	path, err := fileArg(c)
	if err != nil {
		return nil, err
	}
	records, err := ingestion.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return records, nil
}

func validateCommand(c *cli.Context) error {
	records, err := loadRecords(c)
	if err != nil {
		return err
	}
	if err := core.ValidateActivityColumns(len(records), columns(records)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Dataset is valid: %d rows.\n", len(records))
	return nil
}

// columns returns every key used by any of the records.
func columns(records []core.Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range records {
		for _, col := range r.Columns() {
			if !seen[col] {
				seen[col] = true
				cols = append(cols, col)
			}
		}
	}
	return cols
}

func summaryCommand(c *cli.Context) error {
	records, err := loadRecords(c)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		slog.Warn("no data available for report")
	}
	return report.WriteSummary(c.App.Writer, report.Summarize(records))
}

func monthlyCommand(c *cli.Context) error {
	month := time.Now().UTC()
	if m := c.String("month"); m != "" {
		parsed, err := time.Parse(monthLayout, m)
		if err != nil {
			return fmt.Errorf("invalid month %q: expected YYYY-MM", m)
		}
		month = parsed
	}

	activity, err := monthlyActivity(c)
	if err != nil {
		return err
	}
	return report.WriteMonthly(c.App.Writer, report.Monthly(activity, month.Year(), month.Month()))
}

func monthlyActivity(c *cli.Context) ([]report.Activity, error) {
	if path := c.String("file"); path != "" {
		records, err := ingestion.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		if err := core.ValidateActivityColumns(len(records), columns(records)); err != nil && !errors.Is(err, core.ErrEmptyDataset) {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
		activity, skipped := report.ParseActivity(records)
		if skipped > 0 {
			slog.Warn("skipped rows with unparsable checkout dates", "count", skipped)
		}
		return activity, nil
	}

	lib, err := openLibrary(c)
	if err != nil {
		return nil, err
	}
	defer lib.Close()

	activity, err := lib.Activity(c.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to read loans: %w", err)
	}
	return activity, nil
}
