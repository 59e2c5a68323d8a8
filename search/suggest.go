package search

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// titleSource adapts normalized document titles to fuzzy.Source.
type titleSource []string

func (t titleSource) String(i int) string { return t[i] }
func (t titleSource) Len() int            { return len(t) }

// Suggest returns up to limit distinct titles from docs that contain the
// characters of query in order, best match first. It is meant for "did you
// mean" hints when a search comes back empty.
func Suggest[T Document](query string, docs []T, limit int) []string {
	pattern := strings.Join(strings.Fields(Normalize(query)), "")
	if pattern == "" || limit <= 0 {
		return nil
	}

	titles := make([]string, len(docs))
	normalized := make(titleSource, len(docs))
	for i, doc := range docs {
		titles[i] = doc.Field("title")
		normalized[i] = Normalize(titles[i])
	}

	seen := make(map[string]bool)
	var suggestions []string
	for _, m := range fuzzy.FindFrom(pattern, normalized) {
		if m.Str == "" || seen[m.Str] {
			continue
		}
		seen[m.Str] = true
		suggestions = append(suggestions, titles[m.Index])
		if len(suggestions) == limit {
			break
		}
	}
	return suggestions
}
