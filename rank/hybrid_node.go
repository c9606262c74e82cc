package rank

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/pipeline"
	"github.com/rushteam/moviematch/pkg/conv"
	"github.com/rushteam/moviematch/pkg/utils"
)

// 默认融合权重：内容相似度主导，协同过滤只做微调。
const (
	DefaultWeightCollaborative = 1.0
	DefaultWeightContent       = 5.0
)

// HybridNode 融合内容分与隐因子预测评分：
//
//	final = WeightCollaborative·predicted_rating + WeightContent·content_score
//
// 缺少 predicted_rating 的物品用召回合并结果中已匹配物品的预测均值补全（见 ImputedRating），
// 一个都没匹配上时使用 rctx.Params["rating_mean"]（评分集全局均值），再没有则为 0。
// 输出按 final 降序，分数相同时按物品 ID 升序。
//
// 写入 labels：rank_model
type HybridNode struct {
	WeightCollaborative float64
	WeightContent       float64
}

// NewHybridNode 使用默认权重 1 / 5 创建。
func NewHybridNode() *HybridNode {
	return &HybridNode{
		WeightCollaborative: DefaultWeightCollaborative,
		WeightContent:       DefaultWeightContent,
	}
}

func (n *HybridNode) Name() string        { return "rank.hybrid" }
func (n *HybridNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *HybridNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	fill := ImputedRating(items, rctx)
	for _, it := range items {
		if it == nil {
			continue
		}
		pred, ok := it.Feature(core.FeaturePredictedRating)
		if !ok || !isFinite(pred) {
			pred = fill
			it.SetFeature(core.FeaturePredictedRating, pred)
			it.SetFeature(core.FeatureImputed, 1)
		}
		content, _ := it.Feature(core.FeatureContentScore)

		score := n.WeightCollaborative*pred + n.WeightContent*content
		if !isFinite(score) {
			return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInternalError,
				fmt.Sprintf("non-finite final score for item %d", it.ID))
		}
		it.Score = score
		it.PutLabel("rank_model", utils.Label{Value: "hybrid", Source: utils.SourceRank})
	}

	SortByScore(items)
	return items, nil
}

// ImputedRating 返回补全用的预测评分，依次取：
// rctx.Params["predicted_rating_mean"]（召回合并后、过滤前的预测均值）、
// 本批已匹配物品的预测均值、rctx.Params["rating_mean"]，都没有则为 0。
func ImputedRating(items []*core.Item, rctx *core.RecommendContext) float64 {
	if mean, ok := paramFloat(rctx, core.ParamPredictedMean); ok {
		return mean
	}
	if mean, ok := core.MeanPredictedRating(items); ok {
		return mean
	}
	if mean, ok := paramFloat(rctx, core.ParamRatingMean); ok {
		return mean
	}
	return 0
}

func paramFloat(rctx *core.RecommendContext, key string) (float64, bool) {
	if rctx == nil {
		return 0, false
	}
	v, ok := conv.ToFloat64(rctx.Params[key])
	if !ok || !isFinite(v) {
		return 0, false
	}
	return v, true
}

// SortByScore 按分数降序、物品 ID 升序排序，nil 排在最后。
func SortByScore(items []*core.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.ID < b.ID
	})
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
