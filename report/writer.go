package report

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/search"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

// WriteSummary renders s as an aligned key/value table.
func WriteSummary(w io.Writer, s Summary) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "Library Report Summary")
	fmt.Fprintf(tw, "  Total records:\t%s\n", count(s.TotalRecords))
	fmt.Fprintf(tw, "  Unique users:\t%s\n", count(s.UniqueUsers))
	fmt.Fprintf(tw, "  Unique titles:\t%s\n", count(s.UniqueTitles))
	return tw.Flush()
}

// WriteMonthly renders r followed by its top titles.
func WriteMonthly(w io.Writer, r MonthlyReport) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Monthly Report %s\n", r.Label())
	fmt.Fprintf(tw, "  Checkouts:\t%s\n", count(r.Checkouts))
	fmt.Fprintf(tw, "  Returns:\t%s\n", count(r.Returns))
	fmt.Fprintf(tw, "  Late returns:\t%s\n", count(r.LateReturns))
	fmt.Fprintf(tw, "  Fees collected:\t$%.2f\n", r.TotalFees)
	fmt.Fprintf(tw, "  Active users:\t%s\n", count(r.UniqueUsers))
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.TopTitles) == 0 {
		_, err := fmt.Fprintln(w, "No checkouts this month.")
		return err
	}

	fmt.Fprintln(w, "Top titles:")
	tw = newTable(w)
	for i, t := range r.TopTitles {
		fmt.Fprintf(tw, "  %d.\t%s\t%s\n", i+1, t.Title, count(t.Checkouts))
	}
	return tw.Flush()
}

// WriteSearchResult renders one page of book search results.
func WriteSearchResult(w io.Writer, query string, result search.Result[*core.Book]) error {
	if result.Total == 0 {
		_, err := fmt.Fprintf(w, "No books found for %q.\n", query)
		return err
	}

	if result.PageSize > 0 {
		fmt.Fprintf(w, "Found %s books for %q (page %d, %d per page)\n",
			count(result.Total), query, result.Page, result.PageSize)
	} else {
		fmt.Fprintf(w, "Found %s books for %q\n", count(result.Total), query)
	}
	if len(result.Results) == 0 {
		_, err := fmt.Fprintln(w, "No results on this page.")
		return err
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tISBN\tTITLE\tAUTHOR\tYEAR\tSTATUS")
	for _, b := range result.Results {
		year := ""
		if b.Year != 0 {
			year = strconv.Itoa(b.Year)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", b.Id, b.ISBN, b.Title, b.Author, year, bookStatus(b))
	}
	return tw.Flush()
}

func bookStatus(b *core.Book) string {
	switch {
	case b.Removed:
		return "removed"
	case b.Available:
		return "available"
	default:
		return "checked out"
	}
}
