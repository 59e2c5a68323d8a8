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


package core

import (
	"fmt"
	"strings"
)

// ActivityColumns are the columns every circulation activity dataset must carry.
var ActivityColumns = []string{"user_id", "title", "checkout_date"}

// ValidateBook validates a Book according to catalog rules.
//
// Validation rules:
//   - Title, Author and ISBN must not be empty
//   - ISBN must be 10 or 13 digits
//
// NOT validated:
//   - ID (derived from the ISBN when zero)
//   - Availability flags
func ValidateBook(book *Book) error {
	if book == nil {
		return fmt.Errorf("%w: book is nil", ErrInvalidBook)
	}

	for _, f := range []struct{ name, value string }{
		{"title", book.Title},
		{"author", book.Author},
		{"isbn", book.ISBN},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %w: %s", ErrInvalidBook, ErrMissingField, f.name)
		}
	}

	if err := ValidateISBN(book.ISBN); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBook, err)
	}

	return nil
}

// ValidateISBN checks that isbn consists of exactly 10 or 13 digits.
func ValidateISBN(isbn string) error {
	if len(isbn) != 10 && len(isbn) != 13 {
		return fmt.Errorf("%w: %s", ErrInvalidISBN, isbn)
	}
	for _, c := range isbn {
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: %s", ErrInvalidISBN, isbn)
		}
	}
	return nil
}

// ValidateUser validates a User.
//
// Validation rules:
//   - Code must not be empty
//   - Name must not be empty
func ValidateUser(user *User) error {
	if user == nil {
		return fmt.Errorf("%w: user is nil", ErrInvalidUser)
	}
	if strings.TrimSpace(user.Code) == "" {
		return fmt.Errorf("%w: %w: user_id", ErrInvalidUser, ErrMissingField)
	}
	if strings.TrimSpace(user.Name) == "" {
		return fmt.Errorf("%w: %w: name", ErrInvalidUser, ErrMissingField)
	}
	return nil
}

// ValidateActivityColumns ensures a dataset is non-empty and carries ActivityColumns.
// rows is the number of data rows; columns is the dataset header.
func ValidateActivityColumns(rows int, columns []string) error {
	if rows == 0 {
		return ErrEmptyDataset
	}

	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[strings.TrimSpace(c)] = true
	}

	var missing []string
	for _, c := range ActivityColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}
