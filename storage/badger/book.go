package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/storage"
)

// BookRepository implements storage.BookRepository for BadgerDB.
type BookRepository struct {
	backend  *Backend
	orderSeq *badger.Sequence
}

var _ storage.BookRepository = (*BookRepository)(nil)

// NewBookRepository creates a new BookRepository.
func NewBookRepository(backend *Backend) (*BookRepository, error) {
	orderSeq, err := backend.GetSequence(bookOrderSeq)
	if err != nil {
		return nil, err
	}

	return &BookRepository{
		backend:  backend,
		orderSeq: orderSeq,
	}, nil
}

// Close releases the insertion order sequence.
func (r *BookRepository) Close() error {
	return r.orderSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *BookRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddBooks adds one or more books to the catalog.
func (r *BookRepository) AddBooks(ctx context.Context, books ...*core.Book) ([]*core.Book, error) {
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		now := time.Now().UTC().Truncate(time.Microsecond)
		for _, book := range books {
			if book.Id == 0 {
				if book.ISBN == "" {
					return fmt.Errorf("%w: book %q has neither id nor isbn", core.ErrInvalidBook, book.Title)
				}
				book.Id = core.BookIDFromISBN(book.ISBN)
			}

			key := makeBookKey(book.Id)
			found, err := exists(tx, key)
			if err != nil {
				return err
			}
			if found {
				return fmt.Errorf("%w: book %d", storage.ErrDuplicateKey, book.Id)
			}

			if book.ISBN != "" {
				isbnKey := makeBookISBNKey(book.ISBN)
				found, err := exists(tx, isbnKey)
				if err != nil {
					return err
				}
				if found {
					return fmt.Errorf("%w: isbn %s", storage.ErrDuplicateKey, book.ISBN)
				}
				if err := tx.Set(isbnKey, storage.MarshalID(book.Id)); err != nil {
					return err
				}
			}

			book.InsertedAt = now
			book.UpdatedAt = now
			if err := tx.Set(key, storage.MarshalBook(book)); err != nil {
				return err
			}

			// Update insertion order index
			seq, err := r.orderSeq.Next()
			if err != nil {
				return err
			}
			if err := tx.Set(makeBookOrderKey(seq), storage.MarshalID(book.Id)); err != nil {
				return err
			}
			if err := tx.Set(makeBookSeqKey(book.Id), storage.MarshalID(core.ID(seq))); err != nil {
				return err
			}
		}
		return nil
	}, true)

	return books, err
}

// UpdateBooks updates existing books.
func (r *BookRepository) UpdateBooks(ctx context.Context, books ...*core.Book) ([]*core.Book, error) {
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		now := time.Now().UTC().Truncate(time.Microsecond)
		for _, book := range books {
			key := makeBookKey(book.Id)

			// Read old book to detect ISBN changes
			old, err := readBook(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return fmt.Errorf("%w: book %d", storage.ErrNotFound, book.Id)
			}

			if old.ISBN != book.ISBN {
				if book.ISBN != "" {
					isbnKey := makeBookISBNKey(book.ISBN)
					found, err := exists(tx, isbnKey)
					if err != nil {
						return err
					}
					if found {
						return fmt.Errorf("%w: isbn %s", storage.ErrDuplicateKey, book.ISBN)
					}
					if err := tx.Set(isbnKey, storage.MarshalID(book.Id)); err != nil {
						return err
					}
				}
				if old.ISBN != "" {
					if err := tx.Delete(makeBookISBNKey(old.ISBN)); err != nil {
						return err
					}
				}
			}

			book.InsertedAt = old.InsertedAt
			book.UpdatedAt = now
			if err := tx.Set(key, storage.MarshalBook(book)); err != nil {
				return err
			}
		}
		return nil
	}, true)

	return books, err
}

// DeleteBooks permanently removes books by their IDs.
func (r *BookRepository) DeleteBooks(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeBookKey(id)

			// Read book to get metadata for index cleanup
			book, err := readBook(tx, key)
			if err != nil {
				return err
			}
			if book == nil {
				return fmt.Errorf("%w: book %d", storage.ErrNotFound, id)
			}

			if book.ISBN != "" {
				if err := tx.Delete(makeBookISBNKey(book.ISBN)); err != nil {
					return err
				}
			}

			seqKey := makeBookSeqKey(id)
			seq, err := readValue(tx, seqKey, storage.UnmarshalID)
			if err != nil {
				return err
			}
			if err := tx.Delete(makeBookOrderKey(uint64(seq))); err != nil {
				return err
			}
			if err := tx.Delete(seqKey); err != nil {
				return err
			}

			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	}, true)
}

// GetBook retrieves a single book by ID.
func (r *BookRepository) GetBook(ctx context.Context, id core.ID) (*core.Book, error) {
	var result *core.Book
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readBook(tx, makeBookKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: book %d", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// GetBooks retrieves multiple books by their IDs.
func (r *BookRepository) GetBooks(ctx context.Context, ids ...core.ID) ([]*core.Book, error) {
	var result []*core.Book
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		for _, id := range ids {
			book, err := readBook(tx, makeBookKey(id))
			if err != nil {
				return err
			}
			if book != nil {
				result = append(result, book)
			}
		}
		return nil
	}, false)
	return result, err
}

// FindBookByISBN retrieves a book through the ISBN index.
func (r *BookRepository) FindBookByISBN(ctx context.Context, isbn string) (*core.Book, error) {
	var result *core.Book
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		found, err := exists(tx, makeBookISBNKey(isbn))
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: isbn %s", storage.ErrNotFound, isbn)
		}
		id, err := readValue(tx, makeBookISBNKey(isbn), storage.UnmarshalID)
		if err != nil {
			return err
		}
		result, err = readBook(tx, makeBookKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: isbn %s", storage.ErrNotFound, isbn)
		}
		return nil
	}, false)
	return result, err
}

// ListBooks returns every book in insertion order.
func (r *BookRepository) ListBooks(ctx context.Context) ([]*core.Book, error) {
	var results []*core.Book
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		var ids []core.ID
		err := scanPrefix(tx, []byte(bookOrderPrefix), func(val []byte) error {
			id, err := storage.UnmarshalID(val)
			if err != nil {
				return err
			}
			ids = append(ids, id)
			return nil
		})
		if err != nil {
			return err
		}

		for _, id := range ids {
			book, err := readBook(tx, makeBookKey(id))
			if err != nil {
				return err
			}
			if book != nil {
				results = append(results, book)
			}
		}
		return nil
	}, false)
	return results, err
}

// readBook reads a book from the transaction. A missing key yields nil, nil.
func readBook(tx *badger.Txn, key []byte) (*core.Book, error) {
	return readValue(tx, key, storage.UnmarshalBook)
}
