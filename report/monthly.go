package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/jinzhu/now"

	"github.com/poiesic/libris/circulation"
	"github.com/poiesic/libris/core"
)

// TopTitlesLimit is the number of titles listed in a monthly report.
const TopTitlesLimit = 5

// TitleCount is a title together with its checkouts in the month.
type TitleCount struct {
	Title     string
	Checkouts int
}

// MonthlyReport aggregates the circulation activity of one calendar month.
type MonthlyReport struct {
	Year        int
	Month       time.Month
	Checkouts   int
	Returns     int
	LateReturns int
	TotalFees   float64
	UniqueUsers int
	TopTitles   []TitleCount
}

// Label returns the report period as YYYY-MM.
func (r MonthlyReport) Label() string {
	return time.Date(r.Year, r.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// Monthly aggregates activities for the given month in UTC.
//
// A checkout counts when its checkout date falls in the month and a return
// when its return date does. A return is late when it comes at least one
// whole day after the due date; activities without a due date are due
// circulation.DefaultLoanPeriod days after checkout. TotalFees sums the fees
// of the month's returns. Users are counted across both checkouts and returns.
func Monthly(activities []Activity, year int, month time.Month) MonthlyReport {
	start := now.With(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)).BeginningOfMonth()
	end := start.AddDate(0, 1, 0)
	inMonth := func(t time.Time) bool {
		return !t.IsZero() && !t.Before(start) && t.Before(end)
	}

	report := MonthlyReport{Year: year, Month: month, TopTitles: []TitleCount{}}
	users := make(map[string]struct{})
	titles := make(map[string]int)

	for _, a := range activities {
		if inMonth(a.CheckoutDate) {
			report.Checkouts++
			if a.Title != "" {
				titles[a.Title]++
			}
			if a.UserID != "" {
				users[a.UserID] = struct{}{}
			}
		}
		if inMonth(a.ReturnDate) {
			report.Returns++
			report.TotalFees += a.Fee
			if lateDays(a) > 0 {
				report.LateReturns++
			}
			if a.UserID != "" {
				users[a.UserID] = struct{}{}
			}
		}
	}
	report.UniqueUsers = len(users)

	for title, n := range titles {
		report.TopTitles = append(report.TopTitles, TitleCount{Title: title, Checkouts: n})
	}
	slices.SortFunc(report.TopTitles, func(a, b TitleCount) int {
		if c := cmp.Compare(b.Checkouts, a.Checkouts); c != 0 {
			return c
		}
		return cmp.Compare(a.Title, b.Title)
	})
	if len(report.TopTitles) > TopTitlesLimit {
		report.TopTitles = report.TopTitles[:TopTitlesLimit]
	}
	return report
}

func lateDays(a Activity) int {
	due := a.DueDate
	if due.IsZero() {
		due = core.DueDate(a.CheckoutDate, circulation.DefaultLoanPeriod)
	}
	loan := core.Loan{DueAt: due}
	return loan.DaysLate(a.ReturnDate)
}
