package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/libris/core"
)

// Activity is one circulation event: a checkout and, once the book is back,
// its return.
type Activity struct {
	UserID       string
	Title        string
	CheckoutDate time.Time
	ReturnDate   time.Time // Zero while the book is still out
	DueDate      time.Time // Zero when the source did not record one
	Fee          float64
}

// Returned reports whether the activity has a return date.
func (a Activity) Returned() bool {
	return !a.ReturnDate.IsZero()
}

// dateLayouts are tried in order when parsing activity dates.
var dateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02 Jan 2006",
}

// ParseDate parses s with the first matching activity date layout.
// Dates without a zone are read as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseActivity converts loaded rows into activities.
//
// Rows whose checkout_date is missing or unparsable are skipped and counted.
// Every other field is optional: an unparsable return_date or due_date is
// treated as absent and an unparsable fee as 0.
func ParseActivity(records []core.Record) (activities []Activity, skipped int) {
	activities = make([]Activity, 0, len(records))
	for _, r := range records {
		checkout, ok := ParseDate(r.Get("checkout_date"))
		if !ok {
			skipped++
			continue
		}

		a := Activity{
			UserID:       r.Get("user_id"),
			Title:        r.Get("title"),
			CheckoutDate: checkout,
		}
		a.ReturnDate, _ = ParseDate(r.Get("return_date"))
		a.DueDate, _ = ParseDate(r.Get("due_date"))
		if f := r.Get("fee"); f != "" {
			if fee, err := strconv.ParseFloat(strings.TrimPrefix(f, "$"), 64); err == nil && fee > 0 {
				a.Fee = fee
			}
		}
		activities = append(activities, a)
	}
	return activities, skipped
}

// ActivityFromLoans converts stored loans into activities.
// Users are reported by their code and books by title; a loan whose user or
// book is not in the lookup maps keeps an empty value for that field.
func ActivityFromLoans(loans []*core.Loan, books map[core.ID]*core.Book, users map[core.ID]*core.User) []Activity {
	activities := make([]Activity, 0, len(loans))
	for _, l := range loans {
		if l == nil {
			continue
		}
		a := Activity{
			CheckoutDate: l.BorrowedAt,
			ReturnDate:   l.ReturnedAt,
			DueDate:      l.DueAt,
			Fee:          l.Fee,
		}
		if u, ok := users[l.UserId]; ok && u != nil {
			a.UserID = u.Code
		}
		if b, ok := books[l.BookId]; ok && b != nil {
			a.Title = b.Title
		}
		activities = append(activities, a)
	}
	return activities
}
