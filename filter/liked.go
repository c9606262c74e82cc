package filter

import (
	"context"

	"github.com/rushteam/moviematch/core"
)

// LikedFilter 过滤掉用户本次声明喜欢的物品，保证它们不会出现在推荐结果中。
type LikedFilter struct{}

func (LikedFilter) Name() string { return "filter.liked" }

func (LikedFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	if rctx == nil {
		return false, nil
	}
	return rctx.IsLiked(item.ID), nil
}
