package search

import (
	"context"
	"log/slog"

	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/storage"
)

// Searcher runs catalog searches against the books held in a repository.
type Searcher struct {
	books    storage.BookRepository
	defaults Params
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithDefaults sets the params returned by Defaults.
// Default is DefaultParams().
func WithDefaults(p Params) Option {
	return func(s *Searcher) error {
		s.defaults = p
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(books storage.BookRepository, opts ...Option) (*Searcher, error) {
	if books == nil {
		return nil, ErrBookRepositoryRequired
	}

	s := &Searcher{
		books:    books,
		defaults: DefaultParams(),
		logger:   slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Defaults returns the params configured for this searcher.
func (s *Searcher) Defaults() Params {
	return s.defaults
}

// FindBooks searches the catalog for query.
// Soft-removed books are never returned.
func (s *Searcher) FindBooks(ctx context.Context, query string, p Params) (Result[*core.Book], error) {
	return s.FindBooksWithMonitor(ctx, query, p, nil)
}

// FindBooksWithMonitor searches the catalog for query with monitoring.
// The monitor receives the candidate count, every scored hit and the final counts.
func (s *Searcher) FindBooksWithMonitor(ctx context.Context, query string, p Params, monitor SearchMonitor) (Result[*core.Book], error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	books, err := s.catalog(ctx)
	if err != nil {
		return Result[*core.Book]{}, err
	}
	monitor.Start(query, len(books))

	p = p.clamped()
	hits := rank(query, books, p, func(b *core.Book, score float64) {
		monitor.Scored(b, score)
	})
	result := paginate(hits, p)
	monitor.Finish(result.Total, len(result.Results))

	s.logger.Debug("search complete", "query", query, "candidates", len(books),
		"total", result.Total, "returned", len(result.Results), "page", result.Page)
	return result, nil
}

// SuggestTitles returns up to limit catalog titles that loosely match query.
func (s *Searcher) SuggestTitles(ctx context.Context, query string, limit int) ([]string, error) {
	books, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	return Suggest(query, books, limit), nil
}

// catalog returns the searchable snapshot of the repository.
func (s *Searcher) catalog(ctx context.Context) ([]*core.Book, error) {
	books, err := s.books.ListBooks(ctx)
	if err != nil {
		s.logger.Error("error listing catalog books", "err", err)
		return nil, err
	}

	active := make([]*core.Book, 0, len(books))
	for _, b := range books {
		if b != nil && !b.Removed {
			active = append(active, b)
		}
	}
	return active, nil
}
