package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/pkg/utils"
)

func TestProgram_Evaluate(t *testing.T) {
	item := core.NewItem(550)
	item.Score = 7.5
	item.SetFeature(core.FeatureContentScore, 0.45)
	item.PutLabel("recall_source", utils.Label{Value: "content_similarity", Source: utils.SourceRecall})
	rctx := core.NewRecommendContext("req", []int64{1, 2})

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "empty expression", expr: "", want: true},
		{name: "feature threshold", expr: "item.features.content_score > 0.4", want: true},
		{name: "feature below threshold", expr: "item.features.content_score > 0.5", want: false},
		{name: "missing feature check", expr: `"predicted_rating" in item.features`, want: false},
		{name: "label value", expr: `label.recall_source == "content_similarity"`, want: true},
		{name: "liked count", expr: "size(rctx.liked_items) == 2", want: true},
		{name: "item id", expr: "item.id == 550", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.expr)
			require.NoError(t, err)
			got, err := p.Evaluate(item, rctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile("item.score >")
	assert.Error(t, err)

	_, err = Compile(`"not a bool"`)
	assert.Error(t, err)
}
