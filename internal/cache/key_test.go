package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeKey(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		direction string
		depth     int
		extra     map[string]any
		want      string
	}{
		{
			name:      "basic",
			table:     "main.sales.orders",
			direction: "downstream",
			depth:     3,
			want:      "lineage:main.sales.orders:downstream:3",
		},
		{
			name:      "case and whitespace normalized",
			table:     "  Main.Sales.ORDERS ",
			direction: "DownStream",
			depth:     3,
			want:      "lineage:main.sales.orders:downstream:3",
		},
		{
			name:      "extras sorted by key",
			table:     "t",
			direction: "both",
			depth:     2,
			extra:     map[string]any{"include_columns": true, "days_back": 30},
			want:      "lineage:t:both:2:days_back=30:include_columns=true",
		},
		{
			name:      "empty extras",
			table:     "t",
			direction: "upstream",
			depth:     1,
			extra:     map[string]any{},
			want:      "lineage:t:upstream:1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MakeKey(tt.table, tt.direction, tt.depth, tt.extra))
		})
	}
}

func TestMakeKey_Distinguishes(t *testing.T) {
	base := MakeKey("t", "downstream", 3, map[string]any{"days_back": 30})
	assert.NotEqual(t, base, MakeKey("t", "downstream", 4, map[string]any{"days_back": 30}))
	assert.NotEqual(t, base, MakeKey("t", "upstream", 3, map[string]any{"days_back": 30}))
	assert.NotEqual(t, base, MakeKey("t", "downstream", 3, map[string]any{"days_back": 7}))
}
