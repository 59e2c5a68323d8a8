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

package circulation

import "errors"

var (
	// ErrBookRepositoryRequired is returned when a desk is created without a book repository.
	ErrBookRepositoryRequired = errors.New("book repository is required")

	// ErrUserRepositoryRequired is returned when a desk is created without a user repository.
	ErrUserRepositoryRequired = errors.New("user repository is required")

	// ErrLoanRepositoryRequired is returned when a desk is created without a loan repository.
	ErrLoanRepositoryRequired = errors.New("loan repository is required")

	// ErrUserNotFound indicates the user code is not registered.
	ErrUserNotFound = errors.New("user not found")

	// ErrBookNotFound indicates the book ID is not in the catalog.
	ErrBookNotFound = errors.New("book not found")

	// ErrBookUnavailable indicates the book is checked out or removed.
	ErrBookUnavailable = errors.New("book is currently unavailable")

	// ErrNotBorrowed indicates the user has no open loan for the book.
	ErrNotBorrowed = errors.New("book is not borrowed by user")

	// ErrBookBorrowed indicates a borrowed book cannot be removed.
	ErrBookBorrowed = errors.New("book is currently borrowed")

	// ErrInvalidLoanPeriod indicates a loan period below one day.
	ErrInvalidLoanPeriod = errors.New("loan period must be at least one day")

	// ErrInvalidDailyRate indicates a negative late fee rate.
	ErrInvalidDailyRate = errors.New("daily rate must not be negative")
)
