package circulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/storage"
)

const (
	// DefaultLoanPeriod is the number of days a book may be kept.
	DefaultLoanPeriod = 14

	// DefaultDailyRate is the late fee charged per day past due.
	DefaultDailyRate = 0.25
)

// Receipt describes the outcome of a checkout or return.
type Receipt struct {
	Loan     *core.Loan
	Book     *core.Book
	User     *core.User
	DaysLate int
	Fee      float64
	Message  string
}

// Desk coordinates books, users and loans for circulation.
type Desk struct {
	books      storage.BookRepository
	users      storage.UserRepository
	loans      storage.LoanRepository
	loanPeriod int
	dailyRate  float64
	now        func() time.Time
	logger     *slog.Logger
	mu         sync.Mutex
}

// Option configures a Desk.
type Option func(*Desk) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Desk) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// WithLoanPeriod sets the number of days until a checkout is due.
// Default is DefaultLoanPeriod.
func WithLoanPeriod(days int) Option {
	return func(d *Desk) error {
		if days < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidLoanPeriod, days)
		}
		d.loanPeriod = days
		return nil
	}
}

// WithDailyRate sets the late fee charged per day.
// Default is DefaultDailyRate.
func WithDailyRate(rate float64) Option {
	return func(d *Desk) error {
		if rate < 0 {
			return fmt.Errorf("%w: %.2f", ErrInvalidDailyRate, rate)
		}
		d.dailyRate = rate
		return nil
	}
}

// WithClock replaces time.Now as the source of checkout and return times.
func WithClock(now func() time.Time) Option {
	return func(d *Desk) error {
		if now == nil {
			now = time.Now
		}
		d.now = now
		return nil
	}
}

// NewDesk creates a new circulation desk.
func NewDesk(
	books storage.BookRepository,
	users storage.UserRepository,
	loans storage.LoanRepository,
	opts ...Option,
) (*Desk, error) {
	if books == nil {
		return nil, ErrBookRepositoryRequired
	}
	if users == nil {
		return nil, ErrUserRepositoryRequired
	}
	if loans == nil {
		return nil, ErrLoanRepositoryRequired
	}

	d := &Desk{
		books:      books,
		users:      users,
		loans:      loans,
		loanPeriod: DefaultLoanPeriod,
		dailyRate:  DefaultDailyRate,
		now:        time.Now,
		logger:     slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// AddBook validates book and adds it to the shelf.
// A book whose ISBN is already catalogued is rejected with storage.ErrDuplicateKey.
func (d *Desk) AddBook(ctx context.Context, book *core.Book) (*core.Book, error) {
	if err := core.ValidateBook(book); err != nil {
		return nil, err
	}

	book.Available = true
	book.Removed = false
	added, err := d.books.AddBooks(ctx, book)
	if err != nil {
		return nil, fmt.Errorf("failed to add %q: %w", book.Title, err)
	}

	d.logger.Info("book added", "id", book.Id, "isbn", book.ISBN, "title", book.Title)
	return added[0], nil
}

// Checkout lends bookID to the user with userCode.
func (d *Desk) Checkout(ctx context.Context, userCode string, bookID core.ID) (*Receipt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, err := d.findUser(ctx, userCode)
	if err != nil {
		return nil, err
	}
	book, err := d.findBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !book.Available || book.Removed {
		return nil, fmt.Errorf("%w: '%s'", ErrBookUnavailable, book.Title)
	}

	borrowed := d.now().UTC()
	loan := &core.Loan{
		BookId:     book.Id,
		UserId:     user.Id,
		BorrowedAt: borrowed,
		DueAt:      core.DueDate(borrowed, d.loanPeriod),
	}
	// The loan and the availability flag are written in one transaction.
	err = d.loans.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := d.loans.AddLoans(ctx, loan); err != nil {
			return fmt.Errorf("failed to record loan: %w", err)
		}
		book.Available = false
		if _, err := d.books.UpdateBooks(ctx, book); err != nil {
			d.logger.Error("error marking book unavailable", "id", book.Id, "err", err)
			return fmt.Errorf("failed to update book: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("book checked out", "user", user.Code, "book", book.Id, "due", core.FormatDate(loan.DueAt))
	return &Receipt{
		Loan: loan,
		Book: book,
		User: user,
		Message: fmt.Sprintf("%s successfully checked out '%s'. Due on %s.",
			user.Name, book.Title, core.FormatDate(loan.DueAt)),
	}, nil
}

// Return closes the user's open loan of bookID and charges any late fee.
func (d *Desk) Return(ctx context.Context, userCode string, bookID core.ID) (*Receipt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, err := d.findUser(ctx, userCode)
	if err != nil {
		return nil, err
	}
	book, err := d.findBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	loan, err := d.loans.FindActiveLoan(ctx, user.Id, book.Id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: book %d, user %s", ErrNotBorrowed, bookID, userCode)
		}
		return nil, err
	}

	returned := d.now().UTC()
	daysLate := loan.DaysLate(returned)
	loan.ReturnedAt = returned
	loan.Fee = float64(daysLate) * d.dailyRate
	err = d.loans.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := d.loans.UpdateLoans(ctx, loan); err != nil {
			return fmt.Errorf("failed to close loan: %w", err)
		}
		book.Available = true
		if _, err := d.books.UpdateBooks(ctx, book); err != nil {
			d.logger.Error("error marking book available", "id", book.Id, "err", err)
			return fmt.Errorf("failed to update book: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		Loan:     loan,
		Book:     book,
		User:     user,
		DaysLate: daysLate,
		Fee:      loan.Fee,
	}
	if daysLate > 0 {
		receipt.Message = fmt.Sprintf("'%s' returned late by %d day(s). Fee: $%.2f.", book.Title, daysLate, loan.Fee)
	} else {
		receipt.Message = fmt.Sprintf("'%s' returned on time. No fee.", book.Title)
	}

	d.logger.Info("book returned", "user", user.Code, "book", book.Id, "days_late", daysLate, "fee", loan.Fee)
	return receipt, nil
}

// RemoveBook takes a book out of circulation. A permanent removal deletes
// the book; otherwise it is kept but marked removed and unavailable.
// Returns a message describing what happened.
func (d *Desk) RemoveBook(ctx context.Context, bookID core.ID, permanent bool) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	book, err := d.findBook(ctx, bookID)
	if err != nil {
		return "", err
	}
	if !book.Available && !book.Removed {
		return "", fmt.Errorf("%w: cannot remove '%s'", ErrBookBorrowed, book.Title)
	}

	if permanent {
		if err := d.books.DeleteBooks(ctx, book.Id); err != nil {
			return "", fmt.Errorf("failed to delete book: %w", err)
		}
		d.logger.Info("book deleted", "id", book.Id, "title", book.Title)
		return fmt.Sprintf("Book '%s' permanently removed from catalog.", book.Title), nil
	}

	book.Available = false
	book.Removed = true
	if _, err := d.books.UpdateBooks(ctx, book); err != nil {
		return "", fmt.Errorf("failed to update book: %w", err)
	}
	d.logger.Info("book soft removed", "id", book.Id, "title", book.Title)
	return fmt.Sprintf("Book '%s' marked as inactive (soft removed).", book.Title), nil
}

// IsAvailable reports whether bookID can be checked out right now.
func (d *Desk) IsAvailable(ctx context.Context, bookID core.ID) (bool, error) {
	book, err := d.findBook(ctx, bookID)
	if err != nil {
		return false, err
	}
	return book.Available && !book.Removed, nil
}

// Loans returns every loan of the user with userCode, oldest first.
func (d *Desk) Loans(ctx context.Context, userCode string) ([]*core.Loan, error) {
	user, err := d.findUser(ctx, userCode)
	if err != nil {
		return nil, err
	}
	return d.loans.ListLoansByUser(ctx, user.Id)
}

func (d *Desk) findUser(ctx context.Context, code string) (*core.User, error) {
	user, err := d.users.GetUserByCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrUserNotFound, code)
		}
		return nil, err
	}
	return user, nil
}

func (d *Desk) findBook(ctx context.Context, id core.ID) (*core.Book, error) {
	book, err := d.books.GetBook(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: '%d'", ErrBookNotFound, id)
		}
		return nil, err
	}
	return book, nil
}
