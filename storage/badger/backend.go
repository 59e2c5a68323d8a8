package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/libris/storage"
)

const (
	defaultSequenceBandwidth = 100
)

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

// Infof is demoted to debug; badger reports every compaction at info.
func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist. A nil logger means slog.Default().
func OpenBackend(filePath string, inMemory bool, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// Ensure directory exists
		info, err := os.Stat(filePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			if err := os.MkdirAll(filePath, 0755); err != nil {
				return nil, err
			}
			if info, err = os.Stat(filePath); err != nil {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	logger.Debug("opened catalog database", "path", filePath, "in_memory", inMemory)
	return &Backend{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	if b.db.IsClosed() {
		return nil
	}
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// txKey carries the transaction opened by WithTransaction.
type txKey struct{}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction that is committed
// when fn returns nil. The transaction is discarded if fn returns an error.
// When ctx carries a transaction opened by WithTransaction, fn runs inside
// it and committing is left to WithTransaction.
func (b *Backend) WithTx(ctx context.Context, fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	if tx, ok := ctx.Value(txKey{}).(*badger.Txn); ok {
		return fn(tx)
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	if err := fn(tx); err != nil {
		return err
	}
	if isWrite {
		return tx.Commit()
	}
	return nil
}

// GetSequence returns a BadgerDB sequence for generating sequential numbers.
func (b *Backend) GetSequence(name string) (*badger.Sequence, error) {
	return b.db.GetSequence([]byte(name), defaultSequenceBandwidth)
}

// WithTransaction runs fn with a read-write transaction attached to ctx.
// Repository calls made with that ctx share the transaction, so their writes
// commit together when fn returns nil and are all discarded otherwise.
// Nested calls join the outer transaction.
// Implements storage.Repository.
func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*badger.Txn); ok {
		return fn(ctx)
	}
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(true)
	defer tx.Discard()
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// IsConflict reports whether err is a write conflict that is safe to retry.
func IsConflict(err error) bool {
	return errors.Is(err, badger.ErrConflict)
}

// readValue loads the value stored at key and decodes it with unmarshal.
// A missing key yields the zero value and no error.
func readValue[T any](tx *badger.Txn, key []byte, unmarshal func([]byte) (T, error)) (T, error) {
	var result T
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return result, nil
		}
		return result, err
	}
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		result, unmarshalErr = unmarshal(val)
		return unmarshalErr
	})
	return result, err
}

// exists reports whether key is present.
func exists(tx *badger.Txn, key []byte) (bool, error) {
	_, err := tx.Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

// scanPrefix calls fn with the value of every key under prefix in key order.
func scanPrefix(tx *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := iter.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}
