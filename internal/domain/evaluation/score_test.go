package evaluation_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itrc/evaluation-workflow/internal/domain/evaluation"
)

func w(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAggregateScore(t *testing.T) {
	tests := []struct {
		name   string
		scores []evaluation.WeightedScore
		want   string // empty means nil
	}{
		{
			name: "weighted mean of two scores",
			scores: []evaluation.WeightedScore{
				{Score: dec("90"), Weight: w("1.5")},
				{Score: dec("70"), Weight: w("1.0")},
			},
			want: "82",
		},
		{
			name: "unscored selections are excluded from both sums",
			scores: []evaluation.WeightedScore{
				{Score: dec("90"), Weight: w("1.5")},
				{Score: nil, Weight: w("1.4")},
				{Score: dec("70"), Weight: w("1.0")},
			},
			want: "82",
		},
		{
			name: "zero counts as a score",
			scores: []evaluation.WeightedScore{
				{Score: dec("0"), Weight: w("1")},
				{Score: dec("100"), Weight: w("1")},
			},
			want: "50",
		},
		{
			name: "equal weights reduce to a plain mean",
			scores: []evaluation.WeightedScore{
				{Score: dec("80"), Weight: w("1")},
				{Score: dec("60"), Weight: w("1")},
				{Score: dec("70"), Weight: w("1")},
			},
			want: "70",
		},
		{
			name: "rounds to four places",
			scores: []evaluation.WeightedScore{
				{Score: dec("100"), Weight: w("1")},
				{Score: dec("0"), Weight: w("1")},
				{Score: dec("0"), Weight: w("1")},
			},
			want: "33.3333",
		},
		{
			name: "nothing scored",
			scores: []evaluation.WeightedScore{
				{Score: nil, Weight: w("1.5")},
			},
		},
		{
			name: "empty input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluation.AggregateScore(tt.scores)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, w(tt.want).Equal(*got), "got %s want %s", got, tt.want)
		})
	}
}
