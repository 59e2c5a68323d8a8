package badger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/storage"
)

// LoanRepository implements storage.LoanRepository for BadgerDB.
type LoanRepository struct {
	backend *Backend
}

var _ storage.LoanRepository = (*LoanRepository)(nil)

// NewLoanRepository creates a new LoanRepository.
func NewLoanRepository(backend *Backend) *LoanRepository {
	return &LoanRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend owns the database handle.
func (r *LoanRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *LoanRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddLoans stores new loans.
// Returns ErrDuplicateKey if the user already has the same book out.
func (r *LoanRepository) AddLoans(ctx context.Context, loans ...*core.Loan) ([]*core.Loan, error) {
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		for _, loan := range loans {
			if loan.Id == uuid.Nil {
				loan.Id = uuid.New()
			}

			key := makeLoanKey(loan.Id)
			found, err := exists(tx, key)
			if err != nil {
				return err
			}
			if found {
				return fmt.Errorf("%w: loan %s", storage.ErrDuplicateKey, loan.Id)
			}

			if loan.Active() {
				found, err := exists(tx, makeLoanActiveKey(loan.UserId, loan.BookId))
				if err != nil {
					return err
				}
				if found {
					return fmt.Errorf("%w: active loan of book %d by user %d", storage.ErrDuplicateKey, loan.BookId, loan.UserId)
				}
			}

			if err := tx.Set(key, storage.MarshalLoan(loan)); err != nil {
				return err
			}
			if err := r.setIndexes(tx, loan); err != nil {
				return err
			}
		}
		return nil
	}, true)

	return loans, err
}

// UpdateLoans updates existing loans and their indexes.
func (r *LoanRepository) UpdateLoans(ctx context.Context, loans ...*core.Loan) ([]*core.Loan, error) {
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		for _, loan := range loans {
			key := makeLoanKey(loan.Id)

			old, err := readValue(tx, key, storage.UnmarshalLoan)
			if err != nil {
				return err
			}
			if old == nil {
				return fmt.Errorf("%w: loan %s", storage.ErrNotFound, loan.Id)
			}

			if err := r.deleteIndexes(tx, old); err != nil {
				return err
			}
			if err := tx.Set(key, storage.MarshalLoan(loan)); err != nil {
				return err
			}
			if err := r.setIndexes(tx, loan); err != nil {
				return err
			}
		}
		return nil
	}, true)

	return loans, err
}

// GetLoan retrieves a single loan by ID.
func (r *LoanRepository) GetLoan(ctx context.Context, id uuid.UUID) (*core.Loan, error) {
	var result *core.Loan
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readValue(tx, makeLoanKey(id), storage.UnmarshalLoan)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: loan %s", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// FindActiveLoan returns the unreturned loan of bookID by userID.
func (r *LoanRepository) FindActiveLoan(ctx context.Context, userID, bookID core.ID) (*core.Loan, error) {
	var result *core.Loan
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		activeKey := makeLoanActiveKey(userID, bookID)
		found, err := exists(tx, activeKey)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: no active loan of book %d by user %d", storage.ErrNotFound, bookID, userID)
		}
		id, err := readValue(tx, activeKey, uuid.FromBytes)
		if err != nil {
			return err
		}
		result, err = readValue(tx, makeLoanKey(id), storage.UnmarshalLoan)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: loan %s", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// ListLoansByUser returns every loan of a user, oldest first.
func (r *LoanRepository) ListLoansByUser(ctx context.Context, userID core.ID) ([]*core.Loan, error) {
	var results []*core.Loan
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		var err error
		results, err = r.collect(tx, makePartialLoanUserKey(userID), nil)
		return err
	}, false)
	return results, err
}

// ListLoansByDateRange returns loans with start <= BorrowedAt < end, oldest first.
func (r *LoanRepository) ListLoansByDateRange(ctx context.Context, start, end time.Time) ([]*core.Loan, error) {
	var results []*core.Loan
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		startKey := makePartialLoanDateKey(start)
		endKey := makePartialLoanDateKey(end)
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		prefix := []byte(loanDatePrefix)
		for iter.Seek(startKey); iter.ValidForPrefix(prefix); iter.Next() {
			key := iter.Item().Key()
			if slices.Compare(key[:len(endKey)], endKey) >= 0 {
				break
			}
			loan, err := r.readIndexed(tx, iter.Item())
			if err != nil {
				return err
			}
			if loan != nil {
				results = append(results, loan)
			}
		}
		return nil
	}, false)
	return results, err
}

// ListLoans returns every loan, oldest first.
func (r *LoanRepository) ListLoans(ctx context.Context) ([]*core.Loan, error) {
	var results []*core.Loan
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		var err error
		results, err = r.collect(tx, []byte(loanDatePrefix), nil)
		return err
	}, false)
	return results, err
}

// Helper methods

// collect resolves every index entry under prefix into its loan.
func (r *LoanRepository) collect(tx *badger.Txn, prefix []byte, results []*core.Loan) ([]*core.Loan, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		loan, err := r.readIndexed(tx, iter.Item())
		if err != nil {
			return nil, err
		}
		if loan != nil {
			results = append(results, loan)
		}
	}
	return results, nil
}

// readIndexed reads the loan an index entry points at.
func (r *LoanRepository) readIndexed(tx *badger.Txn, item *badger.Item) (*core.Loan, error) {
	var id uuid.UUID
	if err := item.Value(func(val []byte) error {
		var err error
		id, err = uuid.FromBytes(val)
		return err
	}); err != nil {
		return nil, err
	}
	return readValue(tx, makeLoanKey(id), storage.UnmarshalLoan)
}

// setIndexes adds index entries for a loan.
func (r *LoanRepository) setIndexes(tx *badger.Txn, loan *core.Loan) error {
	id := loan.Id[:]
	if err := tx.Set(makeLoanDateKey(loan.BorrowedAt, loan.Id), id); err != nil {
		return err
	}
	if err := tx.Set(makeLoanUserKey(loan.UserId, loan.BorrowedAt, loan.Id), id); err != nil {
		return err
	}
	if loan.Active() {
		return tx.Set(makeLoanActiveKey(loan.UserId, loan.BookId), id)
	}
	return nil
}

// deleteIndexes removes index entries for a loan.
func (r *LoanRepository) deleteIndexes(tx *badger.Txn, loan *core.Loan) error {
	if err := tx.Delete(makeLoanDateKey(loan.BorrowedAt, loan.Id)); err != nil {
		return err
	}
	if err := tx.Delete(makeLoanUserKey(loan.UserId, loan.BorrowedAt, loan.Id)); err != nil {
		return err
	}
	if loan.Active() {
		return tx.Delete(makeLoanActiveKey(loan.UserId, loan.BookId))
	}
	return nil
}
