package circulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/storage"
	"github.com/poiesic/libris/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

const day = 24 * time.Hour

type fixture struct {
	desk   *Desk
	clock  *fakeClock
	books  storage.BookRepository
	users  storage.UserRepository
	loans  storage.LoanRepository
	clean  *core.Book
	tricks *core.Book
}

func setupDesk(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	books, users, loans, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		books.Close()
		backend.Close()
	})

	clock := &fakeClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	desk, err := NewDesk(books, users, loans, append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = users.AddUsers(ctx,
		&core.User{Code: "U001", Name: "Ada Lovelace"},
		&core.User{Code: "U002", Name: "Grace Hopper"},
	)
	require.NoError(t, err)

	clean, err := desk.AddBook(ctx, &core.Book{ISBN: "9780132350884", Title: "Clean Code", Author: "Robert Martin"})
	require.NoError(t, err)
	tricks, err := desk.AddBook(ctx, &core.Book{ISBN: "9781775093305", Title: "Python Tricks", Author: "Dan Bader"})
	require.NoError(t, err)

	return &fixture{desk: desk, clock: clock, books: books, users: users, loans: loans, clean: clean, tricks: tricks}
}

func TestNewDesk(t *testing.T) {
	books, users, loans, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		books.Close()
		backend.Close()
	}()

	tests := []struct {
		name    string
		create  func() (*Desk, error)
		wantErr error
	}{
		{"valid", func() (*Desk, error) { return NewDesk(books, users, loans) }, nil},
		{"nil logger", func() (*Desk, error) { return NewDesk(books, users, loans, WithLogger(nil)) }, nil},
		{"nil books", func() (*Desk, error) { return NewDesk(nil, users, loans) }, ErrBookRepositoryRequired},
		{"nil users", func() (*Desk, error) { return NewDesk(books, nil, loans) }, ErrUserRepositoryRequired},
		{"nil loans", func() (*Desk, error) { return NewDesk(books, users, nil) }, ErrLoanRepositoryRequired},
		{"zero loan period", func() (*Desk, error) { return NewDesk(books, users, loans, WithLoanPeriod(0)) }, ErrInvalidLoanPeriod},
		{"negative rate", func() (*Desk, error) { return NewDesk(books, users, loans, WithDailyRate(-1)) }, ErrInvalidDailyRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desk, err := tt.create()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, desk)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, desk)
		})
	}
}

func TestAddBook(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()

	assert.True(t, f.clean.Available)
	assert.Equal(t, core.BookIDFromISBN("9780132350884"), f.clean.Id)

	t.Run("duplicate isbn", func(t *testing.T) {
		_, err := f.desk.AddBook(ctx, &core.Book{ISBN: "9780132350884", Title: "Clean Code", Author: "Robert Martin"})
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	})

	t.Run("invalid book", func(t *testing.T) {
		_, err := f.desk.AddBook(ctx, &core.Book{ISBN: "123", Title: "Short", Author: "Someone"})
		assert.ErrorIs(t, err, core.ErrInvalidISBN)

		_, err = f.desk.AddBook(ctx, &core.Book{ISBN: "9780201616224", Author: "Andrew Hunt"})
		assert.ErrorIs(t, err, core.ErrMissingField)
	})
}

func TestCheckout(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()

	receipt, err := f.desk.Checkout(ctx, "U001", f.clean.Id)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace successfully checked out 'Clean Code'. Due on 2025-03-15.", receipt.Message)
	assert.Equal(t, time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC), receipt.Loan.DueAt)
	assert.True(t, receipt.Loan.Active())

	available, err := f.desk.IsAvailable(ctx, f.clean.Id)
	require.NoError(t, err)
	assert.False(t, available)

	t.Run("already lent", func(t *testing.T) {
		_, err := f.desk.Checkout(ctx, "U002", f.clean.Id)
		assert.ErrorIs(t, err, ErrBookUnavailable)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.desk.Checkout(ctx, "U999", f.tricks.Id)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("unknown book", func(t *testing.T) {
		_, err := f.desk.Checkout(ctx, "U001", core.ID(404))
		assert.ErrorIs(t, err, ErrBookNotFound)
	})
}

func TestCheckout_CustomLoanPeriod(t *testing.T) {
	f := setupDesk(t, WithLoanPeriod(7))

	receipt, err := f.desk.Checkout(context.Background(), "U002", f.tricks.Id)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-08", core.FormatDate(receipt.Loan.DueAt))
}

func TestReturn(t *testing.T) {
	tests := []struct {
		name     string
		kept     time.Duration
		rate     float64
		daysLate int
		fee      float64
		message  string
	}{
		{"on time", 10 * day, DefaultDailyRate, 0, 0, "'Clean Code' returned on time. No fee."},
		{"on the due date", 14 * day, DefaultDailyRate, 0, 0, "'Clean Code' returned on time. No fee."},
		{"partial day late", 14*day + 5*time.Hour, DefaultDailyRate, 0, 0, "'Clean Code' returned on time. No fee."},
		{"three days late", 17*day + 2*time.Hour, DefaultDailyRate, 3, 0.75, "'Clean Code' returned late by 3 day(s). Fee: $0.75."},
		{"custom rate", 24 * day, 1.5, 10, 15, "'Clean Code' returned late by 10 day(s). Fee: $15.00."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupDesk(t, WithDailyRate(tt.rate))
			ctx := context.Background()

			_, err := f.desk.Checkout(ctx, "U001", f.clean.Id)
			require.NoError(t, err)

			f.clock.Advance(tt.kept)
			receipt, err := f.desk.Return(ctx, "U001", f.clean.Id)
			require.NoError(t, err)

			assert.Equal(t, tt.daysLate, receipt.DaysLate)
			assert.InDelta(t, tt.fee, receipt.Fee, 1e-9)
			assert.Equal(t, tt.message, receipt.Message)
			assert.False(t, receipt.Loan.Active())

			available, err := f.desk.IsAvailable(ctx, f.clean.Id)
			require.NoError(t, err)
			assert.True(t, available)

			stored, err := f.loans.GetLoan(ctx, receipt.Loan.Id)
			require.NoError(t, err)
			assert.InDelta(t, tt.fee, stored.Fee, 1e-9)
		})
	}
}

func TestReturn_Errors(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()

	_, err := f.desk.Checkout(ctx, "U001", f.clean.Id)
	require.NoError(t, err)

	t.Run("borrowed by someone else", func(t *testing.T) {
		_, err := f.desk.Return(ctx, "U002", f.clean.Id)
		assert.ErrorIs(t, err, ErrNotBorrowed)
	})

	t.Run("never borrowed", func(t *testing.T) {
		_, err := f.desk.Return(ctx, "U001", f.tricks.Id)
		assert.ErrorIs(t, err, ErrNotBorrowed)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.desk.Return(ctx, "U999", f.clean.Id)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("returned twice", func(t *testing.T) {
		_, err := f.desk.Return(ctx, "U001", f.clean.Id)
		require.NoError(t, err)
		_, err = f.desk.Return(ctx, "U001", f.clean.Id)
		assert.ErrorIs(t, err, ErrNotBorrowed)
	})
}

var errDiskFull = errors.New("disk full")

// failingBooks fails UpdateBooks while fail is set.
type failingBooks struct {
	storage.BookRepository
	fail bool
}

func (b *failingBooks) UpdateBooks(ctx context.Context, books ...*core.Book) ([]*core.Book, error) {
	if b.fail {
		return nil, errDiskFull
	}
	return b.BookRepository.UpdateBooks(ctx, books...)
}

func TestCheckout_BookUpdateFails(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()
	books := &failingBooks{BookRepository: f.books, fail: true}
	desk, err := NewDesk(books, f.users, f.loans, WithClock(f.clock.Now))
	require.NoError(t, err)
	ada, err := f.users.GetUserByCode(ctx, "U001")
	require.NoError(t, err)

	_, err = desk.Checkout(ctx, "U001", f.clean.Id)
	require.ErrorIs(t, err, errDiskFull)

	available, err := desk.IsAvailable(ctx, f.clean.Id)
	require.NoError(t, err)
	assert.True(t, available)
	_, err = f.loans.FindActiveLoan(ctx, ada.Id, f.clean.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	books.fail = false
	receipt, err := desk.Checkout(ctx, "U001", f.clean.Id)
	require.NoError(t, err)
	assert.True(t, receipt.Loan.Active())

	available, err = desk.IsAvailable(ctx, f.clean.Id)
	require.NoError(t, err)
	assert.False(t, available)
}

func TestReturn_BookUpdateFails(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()
	books := &failingBooks{BookRepository: f.books}
	desk, err := NewDesk(books, f.users, f.loans, WithClock(f.clock.Now))
	require.NoError(t, err)
	ada, err := f.users.GetUserByCode(ctx, "U001")
	require.NoError(t, err)

	_, err = desk.Checkout(ctx, "U001", f.clean.Id)
	require.NoError(t, err)
	f.clock.Advance(20 * day)

	books.fail = true
	_, err = desk.Return(ctx, "U001", f.clean.Id)
	require.ErrorIs(t, err, errDiskFull)

	available, err := desk.IsAvailable(ctx, f.clean.Id)
	require.NoError(t, err)
	assert.False(t, available)
	loan, err := f.loans.FindActiveLoan(ctx, ada.Id, f.clean.Id)
	require.NoError(t, err)
	assert.True(t, loan.Active())
	assert.Zero(t, loan.Fee)

	books.fail = false
	receipt, err := desk.Return(ctx, "U001", f.clean.Id)
	require.NoError(t, err)
	assert.Equal(t, 6, receipt.DaysLate)

	available, err = desk.IsAvailable(ctx, f.clean.Id)
	require.NoError(t, err)
	assert.True(t, available)
}

func TestRemoveBook(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()

	t.Run("borrowed book is refused", func(t *testing.T) {
		_, err := f.desk.Checkout(ctx, "U001", f.clean.Id)
		require.NoError(t, err)

		_, err = f.desk.RemoveBook(ctx, f.clean.Id, true)
		assert.ErrorIs(t, err, ErrBookBorrowed)
	})

	t.Run("soft removal", func(t *testing.T) {
		msg, err := f.desk.RemoveBook(ctx, f.tricks.Id, false)
		require.NoError(t, err)
		assert.Equal(t, "Book 'Python Tricks' marked as inactive (soft removed).", msg)

		book, err := f.books.GetBook(ctx, f.tricks.Id)
		require.NoError(t, err)
		assert.True(t, book.Removed)
		assert.False(t, book.Available)

		_, err = f.desk.Checkout(ctx, "U002", f.tricks.Id)
		assert.ErrorIs(t, err, ErrBookUnavailable)
	})

	t.Run("permanent removal of soft removed book", func(t *testing.T) {
		msg, err := f.desk.RemoveBook(ctx, f.tricks.Id, true)
		require.NoError(t, err)
		assert.Equal(t, "Book 'Python Tricks' permanently removed from catalog.", msg)

		_, err = f.desk.IsAvailable(ctx, f.tricks.Id)
		assert.ErrorIs(t, err, ErrBookNotFound)
	})

	t.Run("unknown book", func(t *testing.T) {
		_, err := f.desk.RemoveBook(ctx, core.ID(404), false)
		assert.ErrorIs(t, err, ErrBookNotFound)
	})
}

func TestLoans(t *testing.T) {
	f := setupDesk(t)
	ctx := context.Background()

	_, err := f.desk.Checkout(ctx, "U001", f.clean.Id)
	require.NoError(t, err)
	f.clock.Advance(day)
	_, err = f.desk.Checkout(ctx, "U001", f.tricks.Id)
	require.NoError(t, err)

	loans, err := f.desk.Loans(ctx, "U001")
	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, f.clean.Id, loans[0].BookId)
	assert.Equal(t, f.tricks.Id, loans[1].BookId)

	none, err := f.desk.Loans(ctx, "U002")
	require.NoError(t, err)
	assert.Empty(t, none)
}
