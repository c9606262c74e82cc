package builders

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/moviematch/config"
	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/dataset"
	"github.com/rushteam/moviematch/model"
	"github.com/rushteam/moviematch/pipeline"
	"github.com/rushteam/moviematch/rank"
	"github.com/rushteam/moviematch/recall"
	"github.com/rushteam/moviematch/rerank"
	"github.com/rushteam/moviematch/store"
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	rs, err := dataset.NewRatingSet([]core.Rating{
		{UserID: 1, ItemID: 10, Value: 5},
		{UserID: 1, ItemID: 20, Value: 3},
		{UserID: 2, ItemID: 20, Value: 4},
		{UserID: 2, ItemID: 30, Value: 2},
	})
	require.NoError(t, err)
	table := dataset.NewSimilarityTable(map[int64][]core.Neighbor{
		10: {{ItemID: 20, Score: 0.5}, {ItemID: 30, Score: 0.2}},
	})
	return Deps{Ratings: rs, Similarity: table, SVD: model.DefaultSVDConfig(), Logger: zerolog.Nop()}
}

func repoFile(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", rel)
}

func TestRegisteredTypes(t *testing.T) {
	types := config.SupportedTypes()
	assert.Contains(t, types, "filter")
	assert.Contains(t, types, "rank.hybrid")
	assert.Contains(t, types, "rerank.topn")
}

func TestBuildFanoutNode(t *testing.T) {
	deps := testDeps(t)
	node, err := BuildFanoutNode(map[string]any{
		"merge_strategy": "left_join",
		"timeout":        30,
		"sources": []any{
			map[string]any{"type": "content_similarity", "alpha": 0.2},
			map[string]any{"type": "latent_factor", "epochs": 3},
		},
	}, deps)
	require.NoError(t, err)

	fanout := node.(*recall.Fanout)
	require.Len(t, fanout.Sources, 2)
	assert.IsType(t, recall.LeftJoinMergeStrategy{}, fanout.MergeStrategy)
	assert.Equal(t, 0.2, fanout.Sources[0].(*recall.ContentSimilarity).Alpha)
	assert.Equal(t, 3, fanout.Sources[1].(*recall.LatentFactor).Config.Epochs)

	_, err = BuildFanoutNode(map[string]any{"sources": []any{map[string]any{"type": "hot"}}}, deps)
	assert.Error(t, err)
	_, err = BuildFanoutNode(map[string]any{"sources": []any{}, "merge_strategy": "zip"}, deps)
	assert.Error(t, err)
	_, err = BuildFanoutNode(map[string]any{}, deps)
	assert.Error(t, err)
	_, err = BuildFanoutNode(map[string]any{"sources": []any{map[string]any{"type": "latent_factor"}}}, Deps{})
	assert.Error(t, err)
}

func TestBuildFanoutNode_LatentFactorJoinsContent(t *testing.T) {
	rs, err := dataset.NewRatingSet([]core.Rating{
		{UserID: 1, ItemID: 10, Value: 5},
		{UserID: 1, ItemID: 20, Value: 4},
		{UserID: 1, ItemID: 50, Value: 2},
		{UserID: 2, ItemID: 20, Value: 3},
		{UserID: 2, ItemID: 60, Value: 5},
	})
	require.NoError(t, err)
	deps := Deps{
		Ratings:    rs,
		Similarity: dataset.NewSimilarityTable(map[int64][]core.Neighbor{10: {{ItemID: 20, Score: 0.5}}}),
		SVD:        model.DefaultSVDConfig(),
		Logger:     zerolog.Nop(),
	}
	sources := []any{
		map[string]any{"type": "content_similarity"},
		map[string]any{"type": "latent_factor"},
	}

	node, err := BuildFanoutNode(map[string]any{"sources": sources}, deps)
	require.NoError(t, err)
	assert.IsType(t, recall.LeftJoinMergeStrategy{}, node.(*recall.Fanout).MergeStrategy)

	out, err := node.Process(context.Background(), core.NewRecommendContext("r", []int64{10}), nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(20), out[0].ID)
	content, _ := out[0].Feature(core.FeatureContentScore)
	assert.Equal(t, 0.5, content)
	_, ok := out[0].Feature(core.FeaturePredictedRating)
	assert.True(t, ok)

	tests := []struct {
		name string
		cfg  map[string]any
	}{
		{name: "first", cfg: map[string]any{"merge_strategy": "first", "sources": sources}},
		{name: "union", cfg: map[string]any{"merge_strategy": "union", "sources": sources}},
		{name: "latent factor as primary", cfg: map[string]any{
			"merge_strategy": "left_join",
			"sources":        []any{sources[1], sources[0]},
		}},
		{name: "latent factor alone", cfg: map[string]any{"sources": []any{sources[1]}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildFanoutNode(tt.cfg, deps)
			assert.Error(t, err)
		})
	}
}

func TestBuildRankAndRerank(t *testing.T) {
	node, err := BuildHybridNode(map[string]any{"weight_content": 3})
	require.NoError(t, err)
	hybrid := node.(*rank.HybridNode)
	assert.Equal(t, 3.0, hybrid.WeightContent)
	assert.Equal(t, 1.0, hybrid.WeightCollaborative)

	node, err = BuildTopNNode(map[string]any{"n": 10})
	require.NoError(t, err)
	assert.Equal(t, 10, node.(*rerank.TopNNode).N)
}

func TestBuildFilterNode(t *testing.T) {
	_, err := BuildFilterNode(map[string]any{"filters": []any{
		map[string]any{"type": "liked"},
		map[string]any{"type": "blacklist", "item_ids": []any{1, 2}},
		map[string]any{"type": "expr", "expr": "item.score > 0.0"},
	}})
	require.NoError(t, err)

	_, err = BuildFilterNode(map[string]any{"filters": []any{map[string]any{"type": "exposed"}}})
	assert.Error(t, err)
	_, err = BuildFilterNode(map[string]any{"filters": []any{map[string]any{"type": "expr", "expr": "item.score >"}}})
	assert.Error(t, err)
}

func TestShippedPipelineConfig(t *testing.T) {
	cfg, err := pipeline.LoadFromYAML(repoFile(t, "configs/pipeline.yaml"))
	require.NoError(t, err)

	deps := testDeps(t)
	deps.Store = store.NewMemoryStore()
	defer deps.Store.Close()

	factory := Factory(deps)
	assert.True(t, factory.Has("recall.fanout"))
	require.NoError(t, config.ValidatePipelineConfig(cfg, factory))
	// recall.fanout 依赖数据，只由 Bind 绑定，不在全局注册表中
	assert.Error(t, config.ValidatePipelineConfig(cfg, nil))

	p, err := cfg.BuildPipeline(factory)
	require.NoError(t, err)
	require.Len(t, p.Nodes, 3)

	out, err := p.Run(context.Background(), core.NewRecommendContext("r", []int64{10}), nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, it := range out {
		assert.NotEqual(t, int64(10), it.ID)
		_, ok := it.Feature(core.FeaturePredictedRating)
		assert.True(t, ok)
	}
	assert.GreaterOrEqual(t, out[0].Score, out[1].Score)
}
