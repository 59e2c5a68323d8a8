package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// ID is a unique identifier for catalog entities.
// Book and user IDs are derived from content so re-imports are idempotent.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// BookIDFromISBN returns the catalog ID for a book with the given ISBN.
func BookIDFromISBN(isbn string) ID {
	return IDFromContent("isbn:" + isbn)
}

// UserIDFromCode returns the catalog ID for a user with the given user code.
func UserIDFromCode(code string) ID {
	return IDFromContent("user:" + code)
}

// Book is a single catalog entry.
type Book struct {
	Id         ID
	ISBN       string
	Title      string
	Author     string
	Genre      string
	Year       int
	Available  bool
	Removed    bool              // Soft-removed books stay in the catalog but cannot circulate
	Extra      map[string]string // Columns not mapped to a typed field
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// Field returns the text value of the named field, or "" if the book has none.
func (b *Book) Field(name string) string {
	if b == nil {
		return ""
	}
	switch name {
	case "id":
		if b.Id == 0 {
			return ""
		}
		return strconv.FormatUint(uint64(b.Id), 10)
	case "isbn":
		return b.ISBN
	case "title":
		return b.Title
	case "author":
		return b.Author
	case "genre":
		return b.Genre
	case "year":
		if b.Year == 0 {
			return ""
		}
		return strconv.Itoa(b.Year)
	}
	return b.Extra[name]
}

// User is a library patron.
type User struct {
	Id         ID
	Code       string // External user identifier, e.g. "U001"
	Name       string
	Email      string
	InsertedAt time.Time
}

// Loan records a single checkout of a book by a user.
type Loan struct {
	Id         uuid.UUID
	BookId     ID
	UserId     ID
	BorrowedAt time.Time
	DueAt      time.Time
	ReturnedAt time.Time // Zero while the book is still out
	Fee        float64   // Late fee charged on return
}

// Active reports whether the loan has not been returned yet.
func (l *Loan) Active() bool {
	return l.ReturnedAt.IsZero()
}

// DaysLate returns the number of whole days past the due date at the given time.
// It never returns a negative value.
func (l *Loan) DaysLate(at time.Time) int {
	if !at.After(l.DueAt) {
		return 0
	}
	return int(at.Sub(l.DueAt) / (24 * time.Hour))
}

// DueDate returns the due date for a checkout made at checkout with the given loan period in days.
func DueDate(checkout time.Time, loanPeriod int) time.Time {
	return checkout.Add(time.Duration(loanPeriod) * 24 * time.Hour)
}

// FormatDate formats t as YYYY-MM-DD. The zero time formats as "".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
