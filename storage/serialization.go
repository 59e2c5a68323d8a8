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


package storage

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/libris/core"
)

// Values are encoded as a flat sequence of MUS primitives in field order.
// Timestamps are Unix microseconds, with 0 standing for the zero time.

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalBook serializes a Book to bytes.
func MarshalBook(book *core.Book) []byte {
	keys := sortedKeys(book.Extra)

	size := varint.Uint64.Size(uint64(book.Id)) +
		ord.String.Size(book.ISBN) +
		ord.String.Size(book.Title) +
		ord.String.Size(book.Author) +
		ord.String.Size(book.Genre) +
		varint.Int64.Size(int64(book.Year)) +
		ord.Bool.Size(book.Available) +
		ord.Bool.Size(book.Removed) +
		varint.Int64.Size(int64(len(keys)))
	for _, k := range keys {
		size += ord.String.Size(k) + ord.String.Size(book.Extra[k])
	}
	size += varint.Int64.Size(micros(book.InsertedAt)) + varint.Int64.Size(micros(book.UpdatedAt))

	w := &writer{buf: make([]byte, size)}
	w.putUint64(uint64(book.Id))
	w.putString(book.ISBN)
	w.putString(book.Title)
	w.putString(book.Author)
	w.putString(book.Genre)
	w.putInt64(int64(book.Year))
	w.putBool(book.Available)
	w.putBool(book.Removed)
	w.putInt64(int64(len(keys)))
	for _, k := range keys {
		w.putString(k)
		w.putString(book.Extra[k])
	}
	w.putTime(book.InsertedAt)
	w.putTime(book.UpdatedAt)
	return w.buf
}

// UnmarshalBook deserializes a Book from bytes.
func UnmarshalBook(data []byte) (*core.Book, error) {
	r := &reader{buf: data}
	book := &core.Book{
		Id:        core.ID(r.getUint64()),
		ISBN:      r.getString(),
		Title:     r.getString(),
		Author:    r.getString(),
		Genre:     r.getString(),
		Year:      int(r.getInt64()),
		Available: r.getBool(),
		Removed:   r.getBool(),
	}
	n := r.getInt64()
	if n < 0 || n > int64(len(data)) {
		return nil, fmt.Errorf("%w: invalid extra field count %d", ErrSerializationFailed, n)
	}
	if n > 0 {
		book.Extra = make(map[string]string, n)
		for i := int64(0); i < n && r.err == nil; i++ {
			k := r.getString()
			book.Extra[k] = r.getString()
		}
	}
	book.InsertedAt = r.getTime()
	book.UpdatedAt = r.getTime()

	if r.err != nil {
		return nil, r.err
	}
	return book, nil
}

// MarshalUser serializes a User to bytes.
func MarshalUser(user *core.User) []byte {
	size := varint.Uint64.Size(uint64(user.Id)) +
		ord.String.Size(user.Code) +
		ord.String.Size(user.Name) +
		ord.String.Size(user.Email) +
		varint.Int64.Size(micros(user.InsertedAt))

	w := &writer{buf: make([]byte, size)}
	w.putUint64(uint64(user.Id))
	w.putString(user.Code)
	w.putString(user.Name)
	w.putString(user.Email)
	w.putTime(user.InsertedAt)
	return w.buf
}

// UnmarshalUser deserializes a User from bytes.
func UnmarshalUser(data []byte) (*core.User, error) {
	r := &reader{buf: data}
	user := &core.User{
		Id:         core.ID(r.getUint64()),
		Code:       r.getString(),
		Name:       r.getString(),
		Email:      r.getString(),
		InsertedAt: r.getTime(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return user, nil
}

// MarshalLoan serializes a Loan to bytes.
func MarshalLoan(loan *core.Loan) []byte {
	id := loan.Id.String()
	size := ord.String.Size(id) +
		varint.Uint64.Size(uint64(loan.BookId)) +
		varint.Uint64.Size(uint64(loan.UserId)) +
		varint.Int64.Size(micros(loan.BorrowedAt)) +
		varint.Int64.Size(micros(loan.DueAt)) +
		varint.Int64.Size(micros(loan.ReturnedAt)) +
		varint.Uint64.Size(math.Float64bits(loan.Fee))

	w := &writer{buf: make([]byte, size)}
	w.putString(id)
	w.putUint64(uint64(loan.BookId))
	w.putUint64(uint64(loan.UserId))
	w.putTime(loan.BorrowedAt)
	w.putTime(loan.DueAt)
	w.putTime(loan.ReturnedAt)
	w.putUint64(math.Float64bits(loan.Fee))
	return w.buf
}

// UnmarshalLoan deserializes a Loan from bytes.
func UnmarshalLoan(data []byte) (*core.Loan, error) {
	r := &reader{buf: data}
	idStr := r.getString()
	loan := &core.Loan{
		BookId:     core.ID(r.getUint64()),
		UserId:     core.ID(r.getUint64()),
		BorrowedAt: r.getTime(),
		DueAt:      r.getTime(),
		ReturnedAt: r.getTime(),
		Fee:        math.Float64frombits(r.getUint64()),
	}
	if r.err != nil {
		return nil, r.err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("%w: loan id: %w", ErrSerializationFailed, err)
	}
	loan.Id = id
	return loan, nil
}

// writer appends MUS-encoded primitives to a buffer sized in advance.
type writer struct {
	buf []byte
	n   int
}

func (w *writer) putString(v string) { w.n += ord.String.Marshal(v, w.buf[w.n:]) }
func (w *writer) putBool(v bool)     { w.n += ord.Bool.Marshal(v, w.buf[w.n:]) }
func (w *writer) putUint64(v uint64) { w.n += varint.Uint64.Marshal(v, w.buf[w.n:]) }
func (w *writer) putInt64(v int64)   { w.n += varint.Int64.Marshal(v, w.buf[w.n:]) }
func (w *writer) putTime(t time.Time) {
	w.putInt64(micros(t))
}

// reader decodes MUS primitives in order. After the first failure every
// further read is a no-op and err holds the failure.
type reader struct {
	buf []byte
	n   int
	err error
}

func (r *reader) fail(err error) {
	r.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
}

func (r *reader) getString() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.buf[r.n:])
	if err != nil {
		r.fail(err)
		return ""
	}
	r.n += n
	return v
}

func (r *reader) getBool() bool {
	if r.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(r.buf[r.n:])
	if err != nil {
		r.fail(err)
		return false
	}
	r.n += n
	return v
}

func (r *reader) getUint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.buf[r.n:])
	if err != nil {
		r.fail(err)
		return 0
	}
	r.n += n
	return v
}

func (r *reader) getInt64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.buf[r.n:])
	if err != nil {
		r.fail(err)
		return 0
	}
	r.n += n
	return v
}

func (r *reader) getTime() time.Time {
	us := r.getInt64()
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

func micros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
