package report

import "github.com/poiesic/libris/core"

// Summary describes a loaded activity dataset.
type Summary struct {
	TotalRecords int
	UniqueUsers  int
	UniqueTitles int
}

// Summarize counts the rows and the distinct non-empty user_id and title
// values in records. A dataset without one of those columns reports 0 for it.
func Summarize(records []core.Record) Summary {
	users := make(map[string]struct{})
	titles := make(map[string]struct{})
	for _, r := range records {
		if u := r.Get("user_id"); u != "" {
			users[u] = struct{}{}
		}
		if t := r.Get("title"); t != "" {
			titles[t] = struct{}{}
		}
	}
	return Summary{
		TotalRecords: len(records),
		UniqueUsers:  len(users),
		UniqueTitles: len(titles),
	}
}
