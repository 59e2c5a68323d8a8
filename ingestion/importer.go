package ingestion

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/storage"
)

const (
	defaultBatchSize        = 100
	defaultProgressInterval = 100
)

// Importer converts loaded rows into catalog entities and stores them
// concurrently in batches.
type Importer struct {
	books            storage.BookRepository
	users            storage.UserRepository
	pool             *ants.Pool
	batchSize        int
	retry            RetryPolicy
	progress         io.Writer
	progressInterval int
	logger           *slog.Logger
}

// Option configures an Importer.
type Option func(*Importer) error

// WithPoolSize sets the worker pool size for concurrent batch writes.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(im *Importer) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if im.pool != nil {
			im.pool.Release()
			im.pool = nil
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		im.pool = pool
		return nil
	}
}

// WithBatchSize sets how many rows are written per storage transaction.
// Default is 100.
func WithBatchSize(size int) Option {
	return func(im *Importer) error {
		if size < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidBatchSize, size)
		}
		im.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(im *Importer) error {
		if logger == nil {
			logger = slog.Default()
		}
		im.logger = logger
		im.retry.Logger = logger
		return nil
	}
}

// WithProgress reports import progress to w every interval rows.
// Default is no progress output.
func WithProgress(w io.Writer, interval int) Option {
	return func(im *Importer) error {
		if interval < 1 {
			interval = defaultProgressInterval
		}
		im.progress = w
		im.progressInterval = interval
		return nil
	}
}

// WithRetry sets the attempts and initial backoff for failed batch writes.
// Default is DefaultRetryPolicy().
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(im *Importer) error {
		if maxAttempts < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidMaxAttempts, maxAttempts)
		}
		im.retry.MaxAttempts = maxAttempts
		im.retry.BaseDelay = baseDelay
		return nil
	}
}

// WithRetryIf decides which write errors are retried.
// Default is IsTransient.
func WithRetryIf(retryable func(error) bool) Option {
	return func(im *Importer) error {
		im.retry.Retryable = retryable
		return nil
	}
}

// NewImporter creates a new importer.
func NewImporter(books storage.BookRepository, users storage.UserRepository, opts ...Option) (*Importer, error) {
	if books == nil {
		return nil, ErrBookRepositoryRequired
	}
	if users == nil {
		return nil, ErrUserRepositoryRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	im := &Importer{
		books:     books,
		users:     users,
		pool:      pool,
		batchSize: defaultBatchSize,
		retry:     DefaultRetryPolicy(),
		logger:    slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(im); optErr != nil {
			im.Release()
			return nil, optErr
		}
	}

	return im, nil
}

// Release releases the worker pool.
// The importer should not be used after calling Release.
func (im *Importer) Release() {
	if im.pool != nil {
		im.pool.Release()
	}
}

// RowError describes a source row that was not imported.
// Row is the 1-based position of the row among the loaded records.
type RowError struct {
	Row int
	Key string
	Err error
}

func (e RowError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d (%s): %v", e.Row, e.Key, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// Summary reports the outcome of one import.
type Summary struct {
	Kind     string
	Total    int
	Imported int
	Skipped  int
	Errors   []RowError // Ordered by row
}

func (s *Summary) skip(row int, key string, err error) {
	s.Skipped++
	s.Errors = append(s.Errors, RowError{Row: row, Key: key, Err: err})
}

// pending is a converted row waiting to be written.
type pending[T any] struct {
	row  int
	key  string
	item T
}

// ImportBooks converts, validates and stores book rows. Invalid rows, rows
// repeating an ISBN seen earlier in records and books already in the catalog
// are skipped and reported in the summary. A non-nil error means the import
// stopped early; the summary still describes what was done.
func (im *Importer) ImportBooks(ctx context.Context, records []core.Record) (*Summary, error) {
	summary := &Summary{Kind: "books", Total: len(records)}
	seen := make(map[string]int)
	var rows []pending[*core.Book]

	for i, rec := range records {
		row := i + 1
		book, err := core.BookFromRecord(rec)
		if err == nil {
			err = core.ValidateBook(book)
		}
		if err != nil {
			summary.skip(row, rec.Get("isbn"), err)
			continue
		}

		if first, dup := seen[book.ISBN]; dup {
			summary.skip(row, book.ISBN, fmt.Errorf("%w: first seen on row %d", ErrDuplicateRow, first))
			continue
		}
		seen[book.ISBN] = row

		_, err = im.books.FindBookByISBN(ctx, book.ISBN)
		switch {
		case err == nil:
			summary.skip(row, book.ISBN, ErrAlreadyStored)
			continue
		case !errors.Is(err, storage.ErrNotFound):
			return im.finish(summary, err)
		}

		rows = append(rows, pending[*core.Book]{row: row, key: book.ISBN, item: book})
	}

	err := writeBatches(ctx, im, summary, rows, func(ctx context.Context, books []*core.Book) error {
		_, err := im.books.AddBooks(ctx, books...)
		return err
	})
	return im.finish(summary, err)
}

// ImportUsers converts, validates and stores user rows with the same
// skipping rules as ImportBooks, keyed by user code.
func (im *Importer) ImportUsers(ctx context.Context, records []core.Record) (*Summary, error) {
	summary := &Summary{Kind: "users", Total: len(records)}
	seen := make(map[string]int)
	var rows []pending[*core.User]

	for i, rec := range records {
		row := i + 1
		user := core.UserFromRecord(rec)
		if err := core.ValidateUser(user); err != nil {
			summary.skip(row, user.Code, err)
			continue
		}

		if first, dup := seen[user.Code]; dup {
			summary.skip(row, user.Code, fmt.Errorf("%w: first seen on row %d", ErrDuplicateRow, first))
			continue
		}
		seen[user.Code] = row

		_, err := im.users.GetUserByCode(ctx, user.Code)
		switch {
		case err == nil:
			summary.skip(row, user.Code, ErrAlreadyStored)
			continue
		case !errors.Is(err, storage.ErrNotFound):
			return im.finish(summary, err)
		}

		rows = append(rows, pending[*core.User]{row: row, key: user.Code, item: user})
	}

	err := writeBatches(ctx, im, summary, rows, func(ctx context.Context, users []*core.User) error {
		_, err := im.users.AddUsers(ctx, users...)
		return err
	})
	return im.finish(summary, err)
}

func (im *Importer) finish(summary *Summary, err error) (*Summary, error) {
	slices.SortFunc(summary.Errors, func(a, b RowError) int {
		return cmp.Compare(a.Row, b.Row)
	})
	for _, rowErr := range summary.Errors {
		im.logger.Debug("row skipped", "kind", summary.Kind, "row", rowErr.Row, "key", rowErr.Key, "err", rowErr.Err)
	}
	if err != nil {
		im.logger.Error("import stopped", "kind", summary.Kind, "imported", summary.Imported, "err", err)
		return summary, err
	}
	im.logger.Info("import complete", "kind", summary.Kind, "total", summary.Total,
		"imported", summary.Imported, "skipped", summary.Skipped)
	return summary, nil
}

// writeBatches stores rows in batches on the importer's pool and folds the
// outcome into summary. It returns the first error that stopped a batch.
func writeBatches[T any](ctx context.Context, im *Importer, summary *Summary, rows []pending[T], write func(context.Context, []T) error) error {
	if len(rows) == 0 {
		return nil
	}

	var tracker *ProgressTracker
	if im.progress != nil {
		tracker = NewProgressTracker(im.progress, summary.Kind, len(rows), im.progressInterval)
		tracker.Start()
		defer tracker.Finish()
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fatal error
	)
	record := func(imported int, failed []RowError, err error) {
		mu.Lock()
		defer mu.Unlock()
		summary.Imported += imported
		summary.Skipped += len(failed)
		summary.Errors = append(summary.Errors, failed...)
		if err != nil && fatal == nil {
			fatal = err
		}
	}

	for batch := range slices.Chunk(rows, im.batchSize) {
		wg.Add(1)
		submitErr := im.pool.Submit(func() {
			defer wg.Done()
			imported, failed, err := writeBatch(ctx, im.retry, batch, write)
			record(imported, failed, err)
			if tracker != nil {
				tracker.Increment(len(batch))
			}
		})
		if submitErr != nil {
			wg.Done()
			record(0, failedRows(batch, submitErr), submitErr)
		}
	}
	wg.Wait()

	return fatal
}

// writeBatch writes batch in one call. When that fails, rows are written one
// at a time so a single bad row does not sink the others.
func writeBatch[T any](ctx context.Context, retry RetryPolicy, batch []pending[T], write func(context.Context, []T) error) (int, []RowError, error) {
	items := make([]T, len(batch))
	for i, p := range batch {
		items[i] = p.item
	}
	err := retry.Do(ctx, func() error { return write(ctx, items) })
	if err == nil {
		return len(batch), nil, nil
	}
	if isFatal(ctx, err) {
		return 0, failedRows(batch, err), err
	}

	var imported int
	var failed []RowError
	for i, p := range batch {
		err := retry.Do(ctx, func() error { return write(ctx, []T{p.item}) })
		if err == nil {
			imported++
			continue
		}
		if isFatal(ctx, err) {
			return imported, append(failed, failedRows(batch[i:], err)...), err
		}
		failed = append(failed, RowError{Row: p.row, Key: p.key, Err: err})
	}
	return imported, failed, nil
}

// isFatal reports whether err means no further row can be written.
func isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, storage.ErrStorageClosed) ||
		errors.Is(err, ErrInvalidMaxAttempts)
}

func failedRows[T any](batch []pending[T], err error) []RowError {
	failed := make([]RowError, len(batch))
	for i, p := range batch {
		failed[i] = RowError{Row: p.row, Key: p.key, Err: err}
	}
	return failed
}
