package recall

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/pkg/metrics"
)

// DefaultDuplicateAlpha 是被多个喜欢物品同时召回时，每多一次出现的奖励。
const DefaultDuplicateAlpha = 0.1

// ContentSimilarity 是基于离线内容相似度表的召回源。
//
// 对每个（去重后的）喜欢物品取邻居列表，丢掉本身就是喜欢物品的邻居，
// 再按邻居物品聚合：
//
//	count > 1: content_score = sum/count + α·count
//	count = 1: content_score = sum
//
// 平均后再加出现次数奖励，避免一个物品仅因出现在很多邻居列表里（但分数都很低）就排到前面。
// 喜欢物品不在相似度表中时记录日志并跳过，不影响整个请求。
type ContentSimilarity struct {
	Index SimilarityIndex

	// Alpha 是重复出现奖励系数，NewContentSimilarity 默认 0.1
	Alpha float64

	Logger zerolog.Logger
}

// NewContentSimilarity 使用默认 α 创建内容召回源。
func NewContentSimilarity(index SimilarityIndex, logger zerolog.Logger) *ContentSimilarity {
	return &ContentSimilarity{
		Index:  index,
		Alpha:  DefaultDuplicateAlpha,
		Logger: logger.With().Str("component", "recall.content_similarity").Logger(),
	}
}

func (r *ContentSimilarity) Name() string { return "recall.content_similarity" }

type contentAgg struct {
	sum   float64
	count int
}

func (r *ContentSimilarity) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Index == nil || rctx == nil {
		return nil, nil
	}

	aggs := make(map[int64]*contentAgg)
	var order []int64
	for _, liked := range rctx.UniqueLiked() {
		neighbors, err := r.Index.Neighbors(ctx, liked)
		if err != nil {
			if core.IsLookupMiss(err) {
				metrics.RecordLookupMiss()
				r.Logger.Warn().
					Str("request_id", rctx.RequestID).
					Int64("item_id", liked).
					Msg("liked item has no similarity entry, skipped")
				continue
			}
			return nil, fmt.Errorf("neighbors of %d: %w", liked, err)
		}
		for _, n := range neighbors {
			if rctx.IsLiked(n.ItemID) {
				continue
			}
			a, ok := aggs[n.ItemID]
			if !ok {
				a = &contentAgg{}
				aggs[n.ItemID] = a
				order = append(order, n.ItemID)
			}
			a.sum += n.Score
			a.count++
		}
	}

	items := make([]*core.Item, 0, len(order))
	for _, id := range order {
		a := aggs[id]
		score := ContentScore(a.sum, a.count, r.Alpha)
		it := core.NewItem(id)
		it.Score = score
		it.SetFeature(core.FeatureContentSum, a.sum)
		it.SetFeature(core.FeatureContentCount, float64(a.count))
		it.SetFeature(core.FeatureContentScore, score)
		items = append(items, it)
	}
	return items, nil
}

// ContentScore 计算聚合后的内容分。
func ContentScore(sum float64, count int, alpha float64) float64 {
	if count > 1 {
		return sum/float64(count) + alpha*float64(count)
	}
	return sum
}
