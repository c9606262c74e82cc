package recall

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/dataset"
	"github.com/rushteam/moviematch/model"
	"github.com/rushteam/moviematch/pkg/metrics"
)

// LatentFactor 是基于矩阵分解的召回源：每次请求都重新训练。
//
// 流程：
//  1. 以评分集快照为基础，加入合成用户（ID = max+1）对每个喜欢物品的 5.0 评分
//  2. 在增广评分集上训练一个新的 SVD 模型
//  3. 对合成用户没评过分的每个物品预测评分
//
// 模型用完即弃，不在请求之间共享；基础评分集只读。
// 输出按物品 ID 升序，特征 predicted_rating 为预测评分。
type LatentFactor struct {
	Ratings *dataset.RatingSet
	Config  model.SVDConfig
	Logger  zerolog.Logger
}

// NewLatentFactor 创建隐因子召回源。
func NewLatentFactor(ratings *dataset.RatingSet, cfg model.SVDConfig, logger zerolog.Logger) *LatentFactor {
	return &LatentFactor{
		Ratings: ratings,
		Config:  cfg,
		Logger:  logger.With().Str("component", "recall.latent_factor").Logger(),
	}
}

func (r *LatentFactor) Name() string { return "recall.latent_factor" }

func (r *LatentFactor) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Ratings == nil || rctx == nil || len(rctx.LikedItems) == 0 {
		return nil, nil
	}

	uid := r.Ratings.NextUserID()
	augmented := r.Ratings.Augment(rctx.LikedItems)

	start := time.Now()
	m, err := model.FitSVD(ctx, augmented.Ratings(), r.Config)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("fit svd: %w", err)
	}
	metrics.RecordModelFit(elapsed)

	seen := make(map[int64]struct{}, len(rctx.LikedItems))
	for _, id := range augmented.RatedBy(uid) {
		seen[id] = struct{}{}
	}

	items := make([]*core.Item, 0, len(augmented.Items()))
	for _, id := range augmented.Items() {
		if _, ok := seen[id]; ok {
			continue
		}
		pred := m.Predict(uid, id)
		it := core.NewItem(id)
		it.Score = pred
		it.SetFeature(core.FeaturePredictedRating, pred)
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	r.Logger.Debug().
		Str("request_id", rctx.RequestID).
		Int64("synthetic_user", uid).
		Int("ratings", augmented.Len()).
		Int("predictions", len(items)).
		Dur("fit", elapsed).
		Msg("latent factor model fitted")
	return items, nil
}
