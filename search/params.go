package search

import "slices"

const (
	// DefaultMinRatio is the similarity a fuzzy match must reach to count.
	DefaultMinRatio = 0.65

	// DefaultLimit caps the number of results in limit mode.
	DefaultLimit = 25
)

// DefaultFields are searched when Params.Fields is empty.
var DefaultFields = []string{"title", "author", "isbn"}

// Params configures a single search call.
//
// Out-of-range values are clamped rather than rejected:
//   - Fields empty searches DefaultFields
//   - MinRatio below 0 (or NaN) becomes 0, above 1 becomes 1
//   - Page below 1 becomes 1
//   - Limit of 0 or less disables truncation in limit mode
//   - PageSize of 0 or less selects limit mode
type Params struct {
	// Fields lists the document fields to score, in order.
	Fields []string

	// Fuzzy enables the similarity signal on title and author fields.
	Fuzzy bool

	// MinRatio is the minimum similarity ratio in [0,1] for a fuzzy hit.
	MinRatio float64

	// Limit is the maximum number of results returned in limit mode.
	Limit int

	// Page is the 1-based page index used in paged mode.
	Page int

	// PageSize selects paged mode when positive.
	PageSize int
}

// DefaultParams returns fuzzy search over DefaultFields in limit mode.
func DefaultParams() Params {
	return Params{
		Fields:   slices.Clone(DefaultFields),
		Fuzzy:    true,
		MinRatio: DefaultMinRatio,
		Limit:    DefaultLimit,
		Page:     1,
	}
}

// Paged reports whether p selects paged mode.
func (p Params) Paged() bool {
	return p.PageSize > 0
}

// clamped returns p with every value brought into its documented range.
func (p Params) clamped() Params {
	if len(p.Fields) == 0 {
		p.Fields = DefaultFields
	}
	if !(p.MinRatio >= 0) {
		p.MinRatio = 0
	}
	if p.MinRatio > 1 {
		p.MinRatio = 1
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 0 {
		p.PageSize = 0
	}
	return p
}
