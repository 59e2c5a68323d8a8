package search

import (
	"cmp"
	"slices"
	"strings"
)

// Hit is a document together with its relevance score.
type Hit[T Document] struct {
	Score float64
	Doc   T
}

// Result is one search response.
//
// Total is always the number of documents that matched, before any limit or
// paging was applied. Page and PageSize echo the paging used; in limit mode
// Page is 1 and PageSize is 0.
type Result[T Document] struct {
	Total    int
	Results  []T
	Page     int
	PageSize int
}

// Search scores every document against query and returns the ranked matches,
// truncated to p.Limit or sliced to the requested page. A blank query returns
// an empty result without scoring anything.
func Search[T Document](query string, docs []T, p Params) Result[T] {
	p = p.clamped()
	return paginate(rank(query, docs, p, nil), p)
}

// Rank scores every document against query and returns all matches ordered
// by descending score, then ascending normalized title.
func Rank[T Document](query string, docs []T, p Params) []Hit[T] {
	return rank(query, docs, p.clamped(), nil)
}

// ranked carries the tie-break key alongside a hit while sorting.
type ranked[T Document] struct {
	Hit[T]
	title string
}

// rank expects clamped params. onHit, if set, is called for every match before sorting.
func rank[T Document](query string, docs []T, p Params, onHit func(T, float64)) []Hit[T] {
	s, ok := newScorer(query, p)
	if !ok {
		return nil
	}

	matches := make([]ranked[T], 0)
	for _, doc := range docs {
		score := s.score(doc)
		if score <= 0 {
			continue
		}
		if onHit != nil {
			onHit(doc, score)
		}
		matches = append(matches, ranked[T]{
			Hit:   Hit[T]{Score: score, Doc: doc},
			title: Normalize(doc.Field("title")),
		})
	}

	slices.SortStableFunc(matches, func(a, b ranked[T]) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.title, b.title)
	})

	hits := make([]Hit[T], len(matches))
	for i, m := range matches {
		hits[i] = m.Hit
	}
	return hits
}

// paginate cuts ranked hits down to the page or limit selected by p.
func paginate[T Document](hits []Hit[T], p Params) Result[T] {
	result := Result[T]{
		Total:   len(hits),
		Results: []T{},
		Page:    1,
	}

	if p.Paged() {
		result.Page = p.Page
		result.PageSize = p.PageSize
		// Compare page counts before multiplying so huge values cannot wrap.
		if len(hits) == 0 || p.Page-1 > (len(hits)-1)/p.PageSize {
			return result
		}
		start := (p.Page - 1) * p.PageSize
		hits = hits[start : start+min(p.PageSize, len(hits)-start)]
	} else if p.Limit > 0 && len(hits) > p.Limit {
		hits = hits[:p.Limit]
	}

	for _, h := range hits {
		result.Results = append(result.Results, h.Doc)
	}
	return result
}
