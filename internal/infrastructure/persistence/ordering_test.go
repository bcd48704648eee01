package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderBy(t *testing.T) {
	tests := []struct {
		name      string
		column    string
		direction string
		want      string
		wantDesc  bool
	}{
		{"defaults", "", "", "start_time", false},
		{"allowed column", "total", "asc", "total", false},
		{"descending any case", "status", " DeSc ", "status", true},
		{"trimmed column", "  allocated_amount ", "", "allocated_amount", false},
		{"column is case sensitive", "TOTAL", "", "start_time", false},
		{"unknown column", "customer_name", "desc", "start_time", true},
		{"unknown direction", "total", "sideways", "total", false},
		{"injected column", "id; DROP TABLE financial_acts;--", "", "start_time", false},
		{"injected direction", "total", "desc; DROP TABLE act_allocations", "total", false},
		{"subquery", "id, (SELECT total FROM financial_acts)", "", "start_time", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := orderBy(tt.column, tt.direction, actSortColumns, "start_time")
			require.Len(t, got.Columns, 2)
			assert.Equal(t, tt.want, got.Columns[0].Column.Name)
			assert.Equal(t, "id", got.Columns[1].Column.Name)
			assert.Equal(t, tt.wantDesc, got.Columns[0].Desc)
			assert.Equal(t, tt.wantDesc, got.Columns[1].Desc)
		})
	}
}
