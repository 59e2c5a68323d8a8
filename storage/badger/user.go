package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/storage"
)

// UserRepository implements storage.UserRepository for BadgerDB.
type UserRepository struct {
	backend *Backend
}

var _ storage.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new UserRepository.
func NewUserRepository(backend *Backend) *UserRepository {
	return &UserRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend owns the database handle.
func (r *UserRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *UserRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddUsers adds one or more users.
func (r *UserRepository) AddUsers(ctx context.Context, users ...*core.User) ([]*core.User, error) {
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		now := time.Now().UTC().Truncate(time.Microsecond)
		for _, user := range users {
			if user.Code == "" {
				return fmt.Errorf("%w: user code is required", core.ErrInvalidUser)
			}
			if user.Id == 0 {
				user.Id = core.UserIDFromCode(user.Code)
			}

			key := makeUserKey(user.Id)
			codeKey := makeUserCodeKey(user.Code)
			for _, k := range [][]byte{key, codeKey} {
				found, err := exists(tx, k)
				if err != nil {
					return err
				}
				if found {
					return fmt.Errorf("%w: user %s", storage.ErrDuplicateKey, user.Code)
				}
			}

			user.InsertedAt = now
			if err := tx.Set(key, storage.MarshalUser(user)); err != nil {
				return err
			}
			if err := tx.Set(codeKey, storage.MarshalID(user.Id)); err != nil {
				return err
			}
		}
		return nil
	}, true)

	return users, err
}

// GetUser retrieves a single user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id core.ID) (*core.User, error) {
	var result *core.User
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readValue(tx, makeUserKey(id), storage.UnmarshalUser)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: user %d", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// GetUserByCode retrieves a user through the user code index.
func (r *UserRepository) GetUserByCode(ctx context.Context, code string) (*core.User, error) {
	var result *core.User
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		codeKey := makeUserCodeKey(code)
		found, err := exists(tx, codeKey)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: user %s", storage.ErrNotFound, code)
		}
		id, err := readValue(tx, codeKey, storage.UnmarshalID)
		if err != nil {
			return err
		}
		result, err = readValue(tx, makeUserKey(id), storage.UnmarshalUser)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: user %s", storage.ErrNotFound, code)
		}
		return nil
	}, false)
	return result, err
}

// ListUsers returns every user ordered by ID.
func (r *UserRepository) ListUsers(ctx context.Context) ([]*core.User, error) {
	var results []*core.User
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(userPrefix), func(val []byte) error {
			user, err := storage.UnmarshalUser(val)
			if err != nil {
				return err
			}
			results = append(results, user)
			return nil
		})
	}, false)
	return results, err
}
