package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/libris/circulation"
	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/storage"
)

const (
	booksCSV = `isbn,title,author,genre,year
9780132350884,Clean Code,Robert C. Martin,Programming,2008
9781775093305,Python Tricks,Dan Bader,Programming,2017
0441172717,Dune,Frank Herbert,Science Fiction,1965
123,Bad Book,Nobody,,
`
	usersCSV = `user_id,name,email
U001,Alice,alice@example.com
U002,Bob,bob@example.com
`
	activityCSV = `user_id,title,checkout_date,return_date,fee
U001,Clean Code,2024-03-01,2024-03-10,0
U002,Dune,2024-02-20,2024-03-08,0.75
U001,Dune,2024-03-15,,
U003,Python Tricks,not a date,,
`
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

// runApp runs the libris app with args and returns what it wrote to stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"libris"}, args...))
	return out.String(), err
}

func findFlag[T cli.Flag](flags []cli.Flag, name string) T {
	var zero T
	for _, flag := range flags {
		if f, ok := flag.(T); ok {
			for _, n := range f.Names() {
				if n == name {
					return f
				}
			}
		}
	}
	return zero
}

func TestAppFlags(t *testing.T) {
	app := newApp()

	t.Run("db has default value", func(t *testing.T) {
		dbFlag := findFlag[*cli.StringFlag](app.Flags, "db")
		require.NotNil(t, dbFlag)
		assert.Equal(t, "libris.db", dbFlag.Value)
		assert.Contains(t, dbFlag.Aliases, "d")
	})

	t.Run("log-level has default value of info", func(t *testing.T) {
		levelFlag := findFlag[*cli.StringFlag](app.Flags, "log-level")
		require.NotNil(t, levelFlag)
		assert.Equal(t, "info", levelFlag.Value)
		assert.Contains(t, levelFlag.Aliases, "l")
	})

	t.Run("config has no default value", func(t *testing.T) {
		configFlag := findFlag[*cli.StringFlag](app.Flags, "config")
		require.NotNil(t, configFlag)
		assert.Empty(t, configFlag.Value)
	})

	t.Run("all commands are registered", func(t *testing.T) {
		for _, name := range []string{
			"import-books", "import-users", "add-book", "remove-book",
			"search", "checkout", "return", "validate", "report",
		} {
			assert.NotNil(t, app.Command(name), name)
		}
		reportCmd := app.Command("report")
		require.NotNil(t, reportCmd)
		var subcommands []string
		for _, sub := range reportCmd.Subcommands {
			subcommands = append(subcommands, sub.Name)
		}
		assert.ElementsMatch(t, []string{"summary", "monthly"}, subcommands)
	})

	t.Run("checkout requires user", func(t *testing.T) {
		_, err := runApp(t, "--db", t.TempDir(), "checkout", "--book", "1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "user")
	})
}

func TestSetup(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	newTestApp := func(check func(c *cli.Context)) *cli.App {
		return &cli.App{
			Name:      "test",
			ErrWriter: io.Discard,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Value: "info"},
				&cli.StringFlag{Name: "config"},
			},
			Before: setup,
			Action: func(c *cli.Context) error {
				if check != nil {
					check(c)
				}
				return nil
			},
		}
	}

	t.Run("valid log levels", func(t *testing.T) {
		testCases := []struct {
			input string
			level slog.Level
		}{
			{"debug", slog.LevelDebug},
			{"info", slog.LevelInfo},
			{"warn", slog.LevelWarn},
			{"error", slog.LevelError},
			{"DEBUG", slog.LevelDebug},
			{"Warn", slog.LevelWarn},
		}

		for _, tc := range testCases {
			t.Run(tc.input, func(t *testing.T) {
				app := newTestApp(func(c *cli.Context) {
					assert.True(t, slog.Default().Enabled(context.Background(), tc.level))
					assert.False(t, slog.Default().Enabled(context.Background(), tc.level-1))
				})
				require.NoError(t, app.Run([]string{"test", "-l", tc.input}))
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		err := newTestApp(nil).Run([]string{"test", "--log-level", "invalid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
		assert.Contains(t, err.Error(), "invalid")
	})

	t.Run("defaults are stored without a config file", func(t *testing.T) {
		app := newTestApp(func(c *cli.Context) {
			cfg := appConfig(c)
			assert.Equal(t, 14, cfg.Circulation.LoanPeriodDays)
			assert.Equal(t, "info", cfg.Logging.Level)
		})
		require.NoError(t, app.Run([]string{"test"}))
	})

	t.Run("config file sets level and settings", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "libris.yaml", "logging:\n  level: debug\ncirculation:\n  loan_period_days: 21\n")
		app := newTestApp(func(c *cli.Context) {
			assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
			assert.Equal(t, 21, appConfig(c).Circulation.LoanPeriodDays)
		})
		require.NoError(t, app.Run([]string{"test", "--config", path}))
	})

	t.Run("log-level flag overrides config file", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "libris.yaml", "logging:\n  level: debug\n")
		app := newTestApp(func(c *cli.Context) {
			assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
			assert.Equal(t, "error", appConfig(c).Logging.Level)
		})
		require.NoError(t, app.Run([]string{"test", "--config", path, "-l", "error"}))
	})

	t.Run("missing config file returns error", func(t *testing.T) {
		err := newTestApp(nil).Run([]string{"test", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load config")
	})
}

func TestCatalogWorkflow(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "db")
	booksFile := writeFile(t, dir, "books.csv", booksCSV)
	usersFile := writeFile(t, dir, "users.csv", usersCSV)

	out, err := runApp(t, "--db", db, "import-books", booksFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 of 4 books (1 skipped)")
	assert.Contains(t, out, "row 4 (123)")

	out, err = runApp(t, "--db", db, "import-users", usersFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 of 2 users (0 skipped)")

	t.Run("fuzzy search", func(t *testing.T) {
		out, err := runApp(t, "--db", db, "search", "clena", "cod")
		require.NoError(t, err)
		assert.Contains(t, out, "Clean Code")
		assert.NotContains(t, out, "Dune")
	})

	t.Run("paged search", func(t *testing.T) {
		out, err := runApp(t, "--db", db, "search", "--fields", "genre", "--page-size", "1", "--page", "2", "programming")
		require.NoError(t, err)
		assert.Contains(t, out, `Found 2 books for "programming" (page 2, 1 per page)`)
		assert.Contains(t, out, "Python Tricks")
		assert.NotContains(t, out, "Clean Code")
	})

	t.Run("search requires a query", func(t *testing.T) {
		_, err := runApp(t, "--db", db, "search")
		assert.Error(t, err)
	})

	t.Run("add book", func(t *testing.T) {
		out, err := runApp(t, "--db", db, "add-book",
			"--isbn", "9781593279509", "--title", "Eloquent JavaScript", "--author", "Marijn Haverbeke")
		require.NoError(t, err)
		assert.Contains(t, out, "Added 'Eloquent JavaScript'")

		_, err = runApp(t, "--db", db, "add-book",
			"--isbn", "9781593279509", "--title", "Eloquent JavaScript", "--author", "Marijn Haverbeke")
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	})

	t.Run("circulation", func(t *testing.T) {
		out, err := runApp(t, "--db", db, "checkout", "--user", "U001", "--isbn", "9780132350884")
		require.NoError(t, err)
		assert.Contains(t, out, "Alice successfully checked out 'Clean Code'. Due on ")

		_, err = runApp(t, "--db", db, "checkout", "--user", "U002", "--isbn", "9780132350884")
		assert.ErrorIs(t, err, circulation.ErrBookUnavailable)

		_, err = runApp(t, "--db", db, "remove-book", "--isbn", "9780132350884")
		assert.ErrorIs(t, err, circulation.ErrBookBorrowed)

		_, err = runApp(t, "--db", db, "return", "--user", "U002", "--isbn", "9780132350884")
		assert.ErrorIs(t, err, circulation.ErrNotBorrowed)

		out, err = runApp(t, "--db", db, "return", "--user", "U001", "--book",
			strconv.FormatUint(uint64(core.BookIDFromISBN("9780132350884")), 10))
		require.NoError(t, err)
		assert.Contains(t, out, "'Clean Code' returned on time. No fee.")

		_, err = runApp(t, "--db", db, "checkout", "--user", "U999", "--isbn", "9780132350884")
		assert.ErrorIs(t, err, circulation.ErrUserNotFound)

		_, err = runApp(t, "--db", db, "checkout", "--user", "U001", "--isbn", "9999999999")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("monthly report from stored loans", func(t *testing.T) {
		out, err := runApp(t, "--db", db, "report", "monthly", "--month", time.Now().UTC().Format("2006-01"))
		require.NoError(t, err)
		assert.Regexp(t, `Checkouts:\s+1\n`, out)
		assert.Regexp(t, `Returns:\s+1\n`, out)
		assert.Contains(t, out, "Clean Code")
	})

	t.Run("soft removal hides the book from search", func(t *testing.T) {
		out, err := runApp(t, "--db", db, "remove-book", "--isbn", "9780132350884")
		require.NoError(t, err)
		assert.Contains(t, out, "Book 'Clean Code' marked as inactive (soft removed).")

		out, err = runApp(t, "--db", db, "search", "clean code")
		require.NoError(t, err)
		assert.Contains(t, out, `No books found for "clean code".`)
	})

	t.Run("permanent removal", func(t *testing.T) {
		out, err := runApp(t, "--db", db, "remove-book", "--permanent", "--isbn", "0441172717")
		require.NoError(t, err)
		assert.Contains(t, out, "Book 'Dune' permanently removed from catalog.")

		_, err = runApp(t, "--db", db, "remove-book", "--isbn", "0441172717")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid activity file", func(t *testing.T) {
		out, err := runApp(t, "--db", filepath.Join(dir, "db"), "validate", writeFile(t, dir, "activity.csv", activityCSV))
		require.NoError(t, err)
		assert.Contains(t, out, "Dataset is valid: 4 rows.")
	})

	t.Run("missing columns", func(t *testing.T) {
		path := writeFile(t, dir, "partial.csv", "user_id,title\nU001,Dune\n")
		_, err := runApp(t, "--db", filepath.Join(dir, "db"), "validate", path)
		require.ErrorIs(t, err, core.ErrMissingColumns)
		assert.Contains(t, err.Error(), "checkout_date")
	})

	t.Run("empty dataset", func(t *testing.T) {
		path := writeFile(t, dir, "empty.csv", "user_id,title,checkout_date\n")
		_, err := runApp(t, "--db", filepath.Join(dir, "db"), "validate", path)
		assert.ErrorIs(t, err, core.ErrEmptyDataset)
	})

	t.Run("unsupported format", func(t *testing.T) {
		path := writeFile(t, dir, "activity.txt", activityCSV)
		_, err := runApp(t, "--db", filepath.Join(dir, "db"), "validate", path)
		assert.Error(t, err)
	})
}

func TestReportCommands(t *testing.T) {
	dir := t.TempDir()
	activity := writeFile(t, dir, "activity.csv", activityCSV)
	db := filepath.Join(dir, "db")

	t.Run("summary", func(t *testing.T) {
		out, err := runApp(t, "--db", db, "report", "summary", activity)
		require.NoError(t, err)
		assert.Regexp(t, `Total records:\s+4`, out)
		assert.Regexp(t, `Unique users:\s+3`, out)
		assert.Regexp(t, `Unique titles:\s+3`, out)
	})

	t.Run("monthly from file", func(t *testing.T) {
		out, err := runApp(t, "--db", db, "report", "monthly", "--month", "2024-03", "--file", activity)
		require.NoError(t, err)
		assert.Contains(t, out, "Monthly Report 2024-03")
		assert.Regexp(t, `Checkouts:\s+2\n`, out)
		assert.Regexp(t, `Returns:\s+2\n`, out)
		assert.Regexp(t, `Late returns:\s+1\n`, out)
		assert.Regexp(t, `Fees collected:\s+\$0\.75`, out)
	})

	t.Run("invalid month", func(t *testing.T) {
		_, err := runApp(t, "--db", db, "report", "monthly", "--month", "March")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected YYYY-MM")
	})
}
