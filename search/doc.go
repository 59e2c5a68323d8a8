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


// Package search provides weighted multi-field fuzzy search over catalog records.
//
// Each candidate document is scored per requested field by combining:
//   - an exact or substring match of the normalized query
//   - the number of word tokens shared with the query
//   - a gestalt similarity ratio for title and author fields
//
// Scores are weighted per field, candidates scoring zero are dropped and the
// remainder is ranked by score and then by normalized title, so the order is
// fully determined by the input. Results are returned either truncated to a
// limit or as a single page of a paged listing.
//
// Search and Score are pure functions over the documents they are given and
// are safe to call concurrently. Searcher reads a catalog snapshot from a
// storage.BookRepository and runs the same engine over it.
package search
