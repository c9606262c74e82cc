package core

import "github.com/rushteam/moviematch/pkg/utils"

// Params 中约定的 key。
const (
	// ParamRatingMean 是基础评分集的全局均值，隐因子预测全部缺失时作为补全值。
	ParamRatingMean = "rating_mean"
	// ParamPredictedMean 是召回合并后、过滤前已匹配预测评分的均值，作为缺失预测的补全值。
	ParamPredictedMean = "predicted_rating_mean"
)

// RecommendContext 承载一次推荐请求的信息，贯穿整个 Pipeline 透传。
// 一次请求一个实例，节点之间只读共享。
type RecommendContext struct {
	RequestID string

	// LikedItems 是用户本次声明喜欢的物品（原样保留，允许重复）。
	LikedItems []int64

	// Labels 是请求级标签，可驱动整个 Pipeline 行为
	Labels map[string]utils.Label

	// Params 请求级上下文参数
	Params map[string]any

	liked map[int64]struct{}
}

// NewRecommendContext 根据喜欢列表创建上下文。
func NewRecommendContext(requestID string, liked []int64) *RecommendContext {
	rctx := &RecommendContext{
		RequestID:  requestID,
		LikedItems: liked,
		Params:     make(map[string]any),
	}
	rctx.liked = make(map[int64]struct{}, len(liked))
	for _, id := range liked {
		rctx.liked[id] = struct{}{}
	}
	return rctx
}

// IsLiked 判断物品是否在喜欢列表中。
func (rctx *RecommendContext) IsLiked(itemID int64) bool {
	if rctx.liked == nil {
		for _, id := range rctx.LikedItems {
			if id == itemID {
				return true
			}
		}
		return false
	}
	_, ok := rctx.liked[itemID]
	return ok
}

// UniqueLiked 返回去重后的喜欢列表，保持首次出现顺序。
func (rctx *RecommendContext) UniqueLiked() []int64 {
	seen := make(map[int64]struct{}, len(rctx.LikedItems))
	out := make([]int64, 0, len(rctx.LikedItems))
	for _, id := range rctx.LikedItems {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
