package ingestion

import "errors"

var (
	// ErrBookRepositoryRequired is returned when a book repository is not provided.
	ErrBookRepositoryRequired = errors.New("book repository required")

	// ErrUserRepositoryRequired is returned when a user repository is not provided.
	ErrUserRepositoryRequired = errors.New("user repository required")

	// ErrSourceNotFound is returned when the file to load does not exist.
	ErrSourceNotFound = errors.New("source file not found")

	// ErrUnsupportedFormat is returned for file extensions the loader does not know.
	ErrUnsupportedFormat = errors.New("unsupported source format")

	// ErrMalformedSource is returned when a source cannot be parsed.
	ErrMalformedSource = errors.New("malformed source")

	// ErrInvalidMaxAttempts is returned when retry attempts is not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrDuplicateRow marks a row repeating a key seen earlier in the same source.
	ErrDuplicateRow = errors.New("duplicate row in source")

	// ErrAlreadyStored marks a row whose key is already in the catalog.
	ErrAlreadyStored = errors.New("already stored")
)
