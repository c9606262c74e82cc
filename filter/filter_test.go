package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/store"
)

func items(ids ...int64) []*core.Item {
	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.NewItem(id))
	}
	return out
}

func ids(items []*core.Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

type failingFilter struct{}

func (failingFilter) Name() string { return "filter.failing" }
func (failingFilter) ShouldFilter(context.Context, *core.RecommendContext, *core.Item) (bool, error) {
	return true, errors.New("backend down")
}

func TestFilterNode_Liked(t *testing.T) {
	rctx := core.NewRecommendContext("r", []int64{2, 4})
	node := &FilterNode{Filters: []Filter{LikedFilter{}}}

	out, err := node.Process(context.Background(), rctx, items(1, 2, 3, 4, 5))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 5}, ids(out))
}

func TestFilterNode_FailOpen(t *testing.T) {
	node := &FilterNode{Filters: []Filter{failingFilter{}}}
	out, err := node.Process(context.Background(), core.NewRecommendContext("r", nil), items(1, 2))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(out))
}

func TestBlacklistFilter(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	defer s.Close()
	adapter := NewStoreAdapter(s)
	require.NoError(t, adapter.SetBlacklist(ctx, "blacklist:items", []int64{5}))

	node := &FilterNode{Filters: []Filter{NewBlacklistFilter([]int64{1}, adapter, "blacklist:items")}}
	out, err := node.Process(ctx, core.NewRecommendContext("r", nil), items(1, 2, 5, 6))
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 6}, ids(out))

	// key 不存在视为空黑名单
	missing := NewBlacklistFilter(nil, adapter, "blacklist:none")
	filtered, err := missing.ShouldFilter(ctx, nil, core.NewItem(5))
	require.NoError(t, err)
	assert.False(t, filtered)
}

func TestExprFilter(t *testing.T) {
	low := core.NewItem(1)
	low.SetFeature(core.FeatureContentScore, 0.1)
	high := core.NewItem(2)
	high.SetFeature(core.FeatureContentScore, 0.8)

	keep, err := NewExprFilter("item.features.content_score >= 0.2", false)
	require.NoError(t, err)
	assert.Equal(t, "item.features.content_score >= 0.2", keep.Expr())

	node := &FilterNode{Filters: []Filter{keep}}
	out, err := node.Process(context.Background(), core.NewRecommendContext("r", nil), []*core.Item{low, high})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(out))

	drop, err := NewExprFilter("item.id == 2", true)
	require.NoError(t, err)
	filtered, err := drop.ShouldFilter(context.Background(), nil, high)
	require.NoError(t, err)
	assert.True(t, filtered)

	_, err = NewExprFilter("item.id ==", false)
	assert.Error(t, err)
}
