package search

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Document is anything with named text fields. Field returns "" for a field
// the document does not have.
type Document interface {
	Field(name string) string
}

// fieldWeights scale each field's contribution; other fields use defaultWeight.
var fieldWeights = map[string]float64{
	"title":  1.0,
	"author": 0.7,
	"isbn":   0.9,
}

const (
	defaultWeight = 0.5

	exactMatchFactor     = 1.0
	substringMatchFactor = 0.85

	overlapPerToken = 0.15
	overlapCap      = 0.75
)

// fuzzyFields are the only fields scored with the similarity ratio.
var fuzzyFields = map[string]bool{
	"title":  true,
	"author": true,
}

// FieldWeight returns the weight applied to matches in field.
func FieldWeight(field string) float64 {
	if w, ok := fieldWeights[field]; ok {
		return w
	}
	return defaultWeight
}

// Score returns the relevance of doc for query under p. It is zero when the
// query is blank or no requested field matches.
func Score(query string, doc Document, p Params) float64 {
	s, ok := newScorer(query, p.clamped())
	if !ok {
		return 0
	}
	return s.score(doc)
}

// scorer holds the query-side state shared across all candidates of one search.
type scorer struct {
	query  string
	chars  []string
	tokens map[string]struct{}
	params Params
}

// newScorer prepares query for scoring. It reports false for a blank query.
func newScorer(query string, p Params) (*scorer, bool) {
	qnorm := Normalize(query)
	if qnorm == "" {
		return nil, false
	}
	return &scorer{
		query:  qnorm,
		chars:  strings.Split(qnorm, ""),
		tokens: tokenSet(qnorm),
		params: p,
	}, true
}

func (s *scorer) score(doc Document) float64 {
	var total float64
	for _, field := range s.params.Fields {
		total += s.scoreField(field, doc.Field(field))
	}
	return total
}

func (s *scorer) scoreField(field, raw string) float64 {
	value := Normalize(raw)
	if value == "" {
		return 0
	}

	w := FieldWeight(field)
	var score float64

	if strings.Contains(value, s.query) {
		if value == s.query {
			score += w * exactMatchFactor
		} else {
			score += w * substringMatchFactor
		}
	}

	if overlap := s.overlap(value); overlap > 0 {
		score += w * min(overlapCap, overlapPerToken*float64(overlap))
	}

	if s.params.Fuzzy && fuzzyFields[field] {
		if ratio := s.ratio(value); ratio >= s.params.MinRatio {
			score += w * ratio * ratio
		}
	}

	return score
}

// overlap counts the distinct query tokens that also occur in value.
func (s *scorer) overlap(value string) int {
	var n int
	for t := range tokenSet(value) {
		if _, ok := s.tokens[t]; ok {
			n++
		}
	}
	return n
}

// ratio is the gestalt pattern matching similarity of the query and value,
// 2*M/T where M is the number of matched characters and T the total length.
func (s *scorer) ratio(value string) float64 {
	return difflib.NewMatcher(s.chars, strings.Split(value, "")).Ratio()
}

// Similarity returns the gestalt similarity ratio of the normalized forms of a and b.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	return difflib.NewMatcher(strings.Split(na, ""), strings.Split(nb, "")).Ratio()
}
