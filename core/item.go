package core

import (
	"math"

	"github.com/rushteam/moviematch/pkg/utils"
)

// 候选物品上使用的特征 key。
const (
	FeatureContentScore    = "content_score"            // 内容相似度聚合分
	FeatureContentSum      = "content_sum"              // 相似度求和
	FeatureContentCount    = "content_count"            // 贡献该物品的喜欢物品个数
	FeaturePredictedRating = "predicted_rating"         // 隐因子模型预测评分（可能缺失）
	FeatureImputed         = "predicted_rating_imputed" // 1 表示预测评分是补全值
)

// Item 是推荐链路中的统一承载结构：特征、分数、元信息、标签。
// Labels 用于解释与策略驱动；Score 用于排序决策。
type Item struct {
	ID       int64
	Score    float64
	Features map[string]float64
	Meta     map[string]any
	Labels   map[string]utils.Label
}

func NewItem(id int64) *Item {
	return &Item{
		ID:       id,
		Score:    0,
		Features: make(map[string]float64),
		Meta:     make(map[string]any),
		Labels:   make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// Feature 读取特征，第二个返回值表示是否存在。
func (it *Item) Feature(key string) (float64, bool) {
	if it.Features == nil {
		return 0, false
	}
	v, ok := it.Features[key]
	return v, ok
}

// SetFeature 写入特征。
func (it *Item) SetFeature(key string, v float64) {
	if it.Features == nil {
		it.Features = make(map[string]float64)
	}
	it.Features[key] = v
}

// MeanPredictedRating 返回已匹配（非补全、有限值）预测评分的均值，没有匹配时第二个返回值为 false。
func MeanPredictedRating(items []*Item) (float64, bool) {
	var sum float64
	var count int
	for _, it := range items {
		if it == nil {
			continue
		}
		pred, ok := it.Feature(FeaturePredictedRating)
		if !ok || math.IsNaN(pred) || math.IsInf(pred, 0) {
			continue
		}
		if imputed, _ := it.Feature(FeatureImputed); imputed > 0 {
			continue
		}
		sum += pred
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}
