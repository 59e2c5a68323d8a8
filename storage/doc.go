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


// Package storage provides the storage abstraction layer for libris.
//
// This package defines repository interfaces that decouple the catalog's
// backing store from circulation, import and search logic.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - Repository: transaction support and lifecycle shared by all repositories
//   - BookRepository: catalog books with an ISBN index
//   - UserRepository: library users addressed by ID or user code
//   - LoanRepository: loans indexed by user and by checkout date
//
// Values are encoded with MUS (github.com/mus-format/mus-go); see MarshalBook
// and friends.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	books, users, loans, backend, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context. Pass context.Background()
// for operations without specific timeout requirements.
package storage
