package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/libris/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// Repository calls made with the ctx passed to fn join the transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close releases resources held by the repository.
	Close() error
}

// BookRepository provides operations for managing catalog books.
type BookRepository interface {
	Repository
	// AddBooks adds one or more books to the catalog.
	// Books with ID=0 get an ID derived from their ISBN.
	// Sets InsertedAt and UpdatedAt.
	// Returns ErrDuplicateKey if a book ID or ISBN is already stored.
	AddBooks(ctx context.Context, books ...*core.Book) ([]*core.Book, error)

	// UpdateBooks updates existing books and their ISBN index.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any book doesn't exist.
	UpdateBooks(ctx context.Context, books ...*core.Book) ([]*core.Book, error)

	// DeleteBooks permanently removes books by their IDs.
	// Returns ErrNotFound if any book doesn't exist.
	DeleteBooks(ctx context.Context, ids ...core.ID) error

	// GetBook retrieves a single book by ID.
	// Returns ErrNotFound if the book doesn't exist.
	GetBook(ctx context.Context, id core.ID) (*core.Book, error)

	// GetBooks retrieves multiple books by their IDs.
	// Returns only the books that exist (no error for missing books).
	GetBooks(ctx context.Context, ids ...core.ID) ([]*core.Book, error)

	// FindBookByISBN retrieves a book by ISBN.
	// Returns ErrNotFound if no book has the ISBN.
	FindBookByISBN(ctx context.Context, isbn string) (*core.Book, error)

	// ListBooks returns every book in the catalog ordered by insertion time.
	ListBooks(ctx context.Context) ([]*core.Book, error)
}

// UserRepository provides operations for managing library users.
type UserRepository interface {
	Repository
	// AddUsers adds one or more users.
	// Users with ID=0 get an ID derived from their code.
	// Returns ErrDuplicateKey if a user is already stored.
	AddUsers(ctx context.Context, users ...*core.User) ([]*core.User, error)

	// GetUser retrieves a single user by ID.
	// Returns ErrNotFound if the user doesn't exist.
	GetUser(ctx context.Context, id core.ID) (*core.User, error)

	// GetUserByCode retrieves a user by external user code.
	// Returns ErrNotFound if the user doesn't exist.
	GetUserByCode(ctx context.Context, code string) (*core.User, error)

	// ListUsers returns every user ordered by ID.
	ListUsers(ctx context.Context) ([]*core.User, error)
}

// LoanRepository provides operations for managing loans.
type LoanRepository interface {
	Repository
	// AddLoans stores new loans. Loans with a nil ID get a random one.
	AddLoans(ctx context.Context, loans ...*core.Loan) ([]*core.Loan, error)

	// UpdateLoans updates existing loans.
	// Returns ErrNotFound if any loan doesn't exist.
	UpdateLoans(ctx context.Context, loans ...*core.Loan) ([]*core.Loan, error)

	// GetLoan retrieves a single loan by ID.
	// Returns ErrNotFound if the loan doesn't exist.
	GetLoan(ctx context.Context, id uuid.UUID) (*core.Loan, error)

	// FindActiveLoan returns the unreturned loan of bookID by userID.
	// Returns ErrNotFound if there is none.
	FindActiveLoan(ctx context.Context, userID, bookID core.ID) (*core.Loan, error)

	// ListLoansByUser returns every loan of a user, oldest first.
	ListLoansByUser(ctx context.Context, userID core.ID) ([]*core.Loan, error)

	// ListLoansByDateRange returns loans with start <= BorrowedAt < end, oldest first.
	ListLoansByDateRange(ctx context.Context, start, end time.Time) ([]*core.Loan, error)

	// ListLoans returns every loan, oldest first.
	ListLoans(ctx context.Context) ([]*core.Loan, error)
}
