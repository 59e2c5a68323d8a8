package core

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Record is a loosely typed row as read from a CSV or JSON source.
// A missing key and an empty value are treated the same.
type Record map[string]string

// Get returns the trimmed value of field, or "" if the record has none.
func (r Record) Get(field string) string {
	return strings.TrimSpace(r[field])
}

// Field implements search.Document.
func (r Record) Field(name string) string {
	return r[name]
}

// Has reports whether the record carries a non-empty value for field.
func (r Record) Has(field string) bool {
	return r.Get(field) != ""
}

// Columns returns the record's keys in sorted order.
func (r Record) Columns() []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	slices.Sort(cols)
	return cols
}

// bookColumns are the record keys mapped onto typed Book fields.
var bookColumns = map[string]bool{
	"id": true, "book_id": true, "isbn": true, "title": true, "author": true,
	"genre": true, "year": true, "available": true, "removed": true,
}

// BookFromRecord converts a loaded row into a Book.
//
// Recognized columns are id (or book_id), isbn, title, author, genre, year,
// available and removed. Every other non-empty column is kept in Extra.
// A missing id is derived from the ISBN; a missing available column means
// the book is on the shelf.
func BookFromRecord(r Record) (*Book, error) {
	book := &Book{
		ISBN:      normalizeISBN(r.Get("isbn")),
		Title:     r.Get("title"),
		Author:    r.Get("author"),
		Genre:     r.Get("genre"),
		Available: true,
	}

	idStr := r.Get("id")
	if idStr == "" {
		idStr = r.Get("book_id")
	}
	if idStr != "" {
		id, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: id %q", ErrInvalidField, idStr)
		}
		book.Id = ID(id)
	}

	if y := r.Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			return nil, fmt.Errorf("%w: year %q", ErrInvalidField, y)
		}
		book.Year = year
	}

	if v := r.Get("available"); v != "" {
		available, err := parseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: available %q", ErrInvalidField, v)
		}
		book.Available = available
	}
	if v := r.Get("removed"); v != "" {
		removed, err := parseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: removed %q", ErrInvalidField, v)
		}
		book.Removed = removed
	}

	for k, v := range r {
		if bookColumns[k] || strings.TrimSpace(v) == "" {
			continue
		}
		if book.Extra == nil {
			book.Extra = make(map[string]string)
		}
		book.Extra[k] = strings.TrimSpace(v)
	}

	if book.Id == 0 && book.ISBN != "" {
		book.Id = BookIDFromISBN(book.ISBN)
	}
	return book, nil
}

// UserFromRecord converts a loaded row into a User.
// The user code is read from user_id, falling back to id.
func UserFromRecord(r Record) *User {
	code := r.Get("user_id")
	if code == "" {
		code = r.Get("id")
	}
	user := &User{
		Code:  code,
		Name:  r.Get("name"),
		Email: r.Get("email"),
	}
	if code != "" {
		user.Id = UserIDFromCode(code)
	}
	return user
}

// normalizeISBN strips hyphens and spaces that are common in printed ISBNs.
func normalizeISBN(isbn string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(isbn)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "t", "true", "yes", "y":
		return true, nil
	case "0", "f", "false", "no", "n":
		return false, nil
	}
	return false, strconv.ErrSyntax
}
