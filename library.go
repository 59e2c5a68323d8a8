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

package libris

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/libris/circulation"
	"github.com/poiesic/libris/config"
	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/ingestion"
	"github.com/poiesic/libris/report"
	"github.com/poiesic/libris/search"
	"github.com/poiesic/libris/storage"
	"github.com/poiesic/libris/storage/badger"
)

// Library ties the catalog storage to the search, circulation and import
// services configured for it.
type Library struct {
	backend  *badger.Backend
	bookRepo *badger.BookRepository
	userRepo storage.UserRepository
	loanRepo storage.LoanRepository
	config   *config.Config
	logger   *slog.Logger
}

// LibraryOption configures a Library.
type LibraryOption func(*libraryOptions)

type libraryOptions struct {
	config   *config.Config
	logger   *slog.Logger
	inMemory bool
}

// WithConfig sets the configuration used by the services the library creates.
// Default is config.Default().
func WithConfig(cfg *config.Config) LibraryOption {
	return func(o *libraryOptions) {
		if cfg != nil {
			o.config = cfg
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) LibraryOption {
	return func(o *libraryOptions) {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
	}
}

// WithInMemory keeps the catalog in memory. The path is ignored.
func WithInMemory() LibraryOption {
	return func(o *libraryOptions) {
		o.inMemory = true
	}
}

// NewLibrary opens the catalog stored at filePath.
func NewLibrary(filePath string, opts ...LibraryOption) (*Library, error) {
	// Apply options
	options := &libraryOptions{
		config: config.Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if err := options.config.Validate(); err != nil {
		return nil, err
	}

	// Open backend
	backend, err := badger.OpenBackend(filePath, options.inMemory, options.logger)
	if err != nil {
		return nil, err
	}

	// Create book repository
	bookRepo, err := badger.NewBookRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Library{
		backend:  backend,
		bookRepo: bookRepo,
		userRepo: badger.NewUserRepository(backend),
		loanRepo: badger.NewLoanRepository(backend),
		config:   options.config,
		logger:   options.logger,
	}, nil
}

// Close releases the repositories and closes the backend.
func (l *Library) Close() error {
	if err := l.bookRepo.Close(); err != nil {
		l.logger.Error("error closing book repository", "err", err)
		return err
	}

	// Close backend
	if err := l.backend.Close(); err != nil {
		l.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (l *Library) Config() *config.Config {
	return l.config
}

func (l *Library) BookRepository() storage.BookRepository {
	return l.bookRepo
}

func (l *Library) UserRepository() storage.UserRepository {
	return l.userRepo
}

func (l *Library) LoanRepository() storage.LoanRepository {
	return l.loanRepo
}

// NewSearcher creates a searcher whose defaults come from the search config.
// opts are applied after the configured settings.
func (l *Library) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	base := []search.Option{
		search.WithLogger(l.logger),
		search.WithDefaults(l.config.SearchParams()),
	}
	return search.NewSearcher(l.bookRepo, append(base, opts...)...)
}

// NewDesk creates a circulation desk using the configured loan period and daily rate.
// opts are applied after the configured settings.
func (l *Library) NewDesk(opts ...circulation.Option) (*circulation.Desk, error) {
	base := []circulation.Option{
		circulation.WithLogger(l.logger),
		circulation.WithLoanPeriod(l.config.Circulation.LoanPeriodDays),
		circulation.WithDailyRate(l.config.Circulation.DailyRate),
	}
	return circulation.NewDesk(l.bookRepo, l.userRepo, l.loanRepo, append(base, opts...)...)
}

// NewImporter creates an importer using the configured pool, batch and retry settings.
// Badger write conflicts are always retried; other errors follow
// ingestion.IsTransient, except missing records.
// The caller must Release the importer.
func (l *Library) NewImporter(opts ...ingestion.Option) (*ingestion.Importer, error) {
	imp := l.config.Import
	base := []ingestion.Option{
		ingestion.WithLogger(l.logger),
		ingestion.WithPoolSize(imp.PoolSize),
		ingestion.WithBatchSize(imp.BatchSize),
		ingestion.WithRetry(imp.MaxRetries, imp.RetryDelay),
		ingestion.WithRetryIf(retryable),
	}
	return ingestion.NewImporter(l.bookRepo, l.userRepo, append(base, opts...)...)
}

// Activity returns every stored loan as report activity.
func (l *Library) Activity(ctx context.Context) ([]report.Activity, error) {
	loans, err := l.loanRepo.ListLoans(ctx)
	if err != nil {
		return nil, err
	}
	books, err := l.bookRepo.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	users, err := l.userRepo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	bookIndex := make(map[core.ID]*core.Book, len(books))
	for _, b := range books {
		bookIndex[b.Id] = b
	}
	userIndex := make(map[core.ID]*core.User, len(users))
	for _, u := range users {
		userIndex[u.Id] = u
	}
	return report.ActivityFromLoans(loans, bookIndex, userIndex), nil
}

func retryable(err error) bool {
	return badger.IsConflict(err) || (ingestion.IsTransient(err) && !errors.Is(err, storage.ErrNotFound))
}
