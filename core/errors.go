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

import "errors"

// Domain validation errors
var (
	// ErrInvalidBook indicates a Book failed validation.
	ErrInvalidBook = errors.New("invalid book")

	// ErrInvalidUser indicates a User failed validation.
	ErrInvalidUser = errors.New("invalid user")

	// ErrMissingField indicates a required field is empty.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidField indicates a field value could not be parsed.
	ErrInvalidField = errors.New("invalid field value")

	// ErrInvalidISBN indicates an ISBN is not 10 or 13 digits.
	ErrInvalidISBN = errors.New("invalid ISBN format")

	// ErrEmptyDataset indicates a dataset has no rows.
	ErrEmptyDataset = errors.New("data is empty")

	// ErrMissingColumns indicates a dataset lacks required columns.
	ErrMissingColumns = errors.New("missing required columns")
)
