package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/libris/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.BookIDFromISBN("9780132350884")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalBook(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name string
		book *core.Book
	}{
		{
			name: "minimal book",
			book: &core.Book{
				Id:     core.ID(1),
				ISBN:   "9780132350884",
				Title:  "Clean Code",
				Author: "Robert Martin",
			},
		},
		{
			name: "book with extras and timestamps",
			book: &core.Book{
				Id:         core.BookIDFromISBN("9781775093305"),
				ISBN:       "9781775093305",
				Title:      "Python Tricks",
				Author:     "Dan Bader",
				Genre:      "Programming",
				Year:       2017,
				Available:  true,
				Removed:    false,
				Extra:      map[string]string{"publisher": "Dan Bader", "shelf": "B2"},
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
		{
			name: "soft removed book with unicode title",
			book: &core.Book{
				Id:        core.ID(99),
				ISBN:      "0000000000",
				Title:     "Les Misérables",
				Author:    "Victor Hugo",
				Available: false,
				Removed:   true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalBook(tt.book)
			decoded, err := UnmarshalBook(data)
			require.NoError(t, err)
			assert.Equal(t, tt.book, decoded)
		})
	}
}

func TestUnmarshalBook_Truncated(t *testing.T) {
	data := MarshalBook(&core.Book{Id: 1, ISBN: "9780132350884", Title: "Clean Code"})
	_, err := UnmarshalBook(data[:len(data)/2])
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalUser(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	user := &core.User{
		Id:         core.UserIDFromCode("U001"),
		Code:       "U001",
		Name:       "Ada Lovelace",
		Email:      "ada@example.org",
		InsertedAt: now,
	}

	decoded, err := UnmarshalUser(MarshalUser(user))
	require.NoError(t, err)
	assert.Equal(t, user, decoded)
}

func TestMarshalUnmarshalLoan(t *testing.T) {
	borrowed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		loan *core.Loan
	}{
		{
			name: "active loan",
			loan: &core.Loan{
				Id:         uuid.New(),
				BookId:     core.ID(7),
				UserId:     core.UserIDFromCode("U001"),
				BorrowedAt: borrowed,
				DueAt:      core.DueDate(borrowed, 14),
			},
		},
		{
			name: "returned late with fee",
			loan: &core.Loan{
				Id:         uuid.New(),
				BookId:     core.ID(7),
				UserId:     core.UserIDFromCode("U002"),
				BorrowedAt: borrowed,
				DueAt:      core.DueDate(borrowed, 14),
				ReturnedAt: core.DueDate(borrowed, 17),
				Fee:        0.75,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := UnmarshalLoan(MarshalLoan(tt.loan))
			require.NoError(t, err)
			assert.Equal(t, tt.loan, decoded)
		})
	}
}
