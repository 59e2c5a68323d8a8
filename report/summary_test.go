package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/poiesic/libris/core"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		records []core.Record
		want    Summary
	}{
		{
			name: "empty dataset",
			want: Summary{},
		},
		{
			name: "counts distinct users and titles",
			records: []core.Record{
				{"user_id": "U1", "title": "Clean Code"},
				{"user_id": "U2", "title": "Clean Code"},
				{"user_id": "U1", "title": "Dune"},
				{"user_id": " U2 ", "title": "Python Tricks"},
			},
			want: Summary{TotalRecords: 4, UniqueUsers: 2, UniqueTitles: 3},
		},
		{
			name: "missing title column counts zero titles",
			records: []core.Record{
				{"user_id": "U1"},
				{"user_id": "U2"},
			},
			want: Summary{TotalRecords: 2, UniqueUsers: 2},
		},
		{
			name: "blank values are not counted",
			records: []core.Record{
				{"user_id": "", "title": "Dune"},
				{"user_id": "U1", "title": "  "},
			},
			want: Summary{TotalRecords: 2, UniqueUsers: 1, UniqueTitles: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.records))
		})
	}
}
