// Package hybrid 是推荐入口：校验喜欢列表，执行 recall.fanout → filter → rank.hybrid Pipeline，
// 把排序后的物品转换为推荐结果。HTTP 服务与命令行共用同一个 Recommender。
package hybrid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/dataset"
	"github.com/rushteam/moviematch/filter"
	"github.com/rushteam/moviematch/model"
	"github.com/rushteam/moviematch/pipeline"
	"github.com/rushteam/moviematch/pkg/logging"
	"github.com/rushteam/moviematch/pkg/metrics"
	"github.com/rushteam/moviematch/rank"
	"github.com/rushteam/moviematch/recall"
	"github.com/rushteam/moviematch/rerank"
)

// Recommendation 是一条推荐结果。
type Recommendation struct {
	ItemID          int64   `json:"tmdb_id"`
	FinalScore      float64 `json:"final_score"`
	ContentScore    float64 `json:"content_score"`
	PredictedRating float64 `json:"predicted_rating"`
	// Imputed 为 true 表示 PredictedRating 是补全值
	Imputed bool `json:"imputed"`
}

// Request 是一次推荐请求。
type Request struct {
	Liked []int64 `validate:"required,min=1,dive,gt=0"`
	// Limit > 0 时只返回前 Limit 条
	Limit int `validate:"gte=0"`
	// RequestID 为空时自动生成
	RequestID string
}

// Options 是默认 Pipeline 的参数。零值字段按 DefaultOptions 补齐：
// 两个权重同时为 0 时都取默认值（单个为 0 表示只用另一路分数）。
type Options struct {
	WeightCollaborative float64
	WeightContent       float64
	DuplicateAlpha      float64
	SVD                 model.SVDConfig
	// Filters 追加在喜欢物品过滤之后，例如黑名单
	Filters []filter.Filter
	Logger  zerolog.Logger
}

// DefaultOptions 返回 1 / 5 权重、0.1 重复奖励和默认 SVD 参数。
func DefaultOptions() Options {
	return Options{
		WeightCollaborative: rank.DefaultWeightCollaborative,
		WeightContent:       rank.DefaultWeightContent,
		DuplicateAlpha:      recall.DefaultDuplicateAlpha,
		SVD:                 model.DefaultSVDConfig(),
		Logger:              logging.Component("recommender"),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.WeightCollaborative == 0 && o.WeightContent == 0 {
		o.WeightCollaborative = d.WeightCollaborative
		o.WeightContent = d.WeightContent
	}
	if o.DuplicateAlpha == 0 {
		o.DuplicateAlpha = d.DuplicateAlpha
	}
	return o
}

// Recommender 持有只读的评分集与推荐 Pipeline，可被多个 goroutine 并发调用。
type Recommender struct {
	ratings  *dataset.RatingSet
	pipeline *pipeline.Pipeline
	validate *validator.Validate
	logger   zerolog.Logger
}

// New 使用默认 Pipeline 创建 Recommender：
// 内容相似度（主表）与隐因子预测并行召回并左连接，过滤喜欢物品，融合排序。
func New(ratings *dataset.RatingSet, similarity recall.SimilarityIndex, opts Options) (*Recommender, error) {
	if ratings == nil {
		return nil, errors.New("rating set is required")
	}
	if similarity == nil {
		return nil, errors.New("similarity index is required")
	}
	opts = opts.withDefaults()

	content := recall.NewContentSimilarity(similarity, opts.Logger)
	content.Alpha = opts.DuplicateAlpha
	p := &pipeline.Pipeline{Nodes: []pipeline.Node{
		&recall.Fanout{
			Sources: []recall.Source{
				content,
				recall.NewLatentFactor(ratings, opts.SVD, opts.Logger),
			},
			MergeStrategy: recall.LeftJoinMergeStrategy{},
		},
		&filter.FilterNode{
			Filters: append([]filter.Filter{filter.LikedFilter{}}, opts.Filters...),
			Logger:  opts.Logger,
		},
		&rank.HybridNode{
			WeightCollaborative: opts.WeightCollaborative,
			WeightContent:       opts.WeightContent,
		},
	}}
	return NewWithPipeline(ratings, p, opts.Logger), nil
}

// NewWithPipeline 使用外部构建（例如 YAML 配置）的 Pipeline 创建 Recommender。
//
//nolint:gocritic // zerolog.Logger 按值传递
func NewWithPipeline(ratings *dataset.RatingSet, p *pipeline.Pipeline, logger zerolog.Logger) *Recommender {
	return &Recommender{
		ratings:  ratings,
		pipeline: p,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Recommend 返回按 FinalScore 降序排列的全部推荐结果，不截断。
func (r *Recommender) Recommend(ctx context.Context, liked []int64) ([]Recommendation, error) {
	return r.Run(ctx, Request{Liked: liked})
}

// Run 执行一次推荐请求。
//
// 喜欢列表为空或含非正 ID 时返回 INVALID_INPUT；隐因子模型无法训练时返回 MODEL_FIT。
// 相似度表缺失某个喜欢物品时跳过该物品，不报错。
func (r *Recommender) Run(ctx context.Context, req Request) ([]Recommendation, error) {
	start := time.Now()
	if err := r.validateRequest(req); err != nil {
		metrics.RecordRecommend(metrics.ResultInvalidInput, time.Since(start), 0)
		return nil, err
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = logging.RequestIDFromContext(ctx)
	}
	if requestID == "" {
		requestID = logging.GenerateRequestID()
	}
	logger := r.logger.With().Str("request_id", requestID).Logger()

	rctx := core.NewRecommendContext(requestID, req.Liked)
	rctx.Params[core.ParamRatingMean] = r.ratings.Mean()

	p := r.pipeline
	if req.Limit > 0 {
		p = p.Append(&rerank.TopNNode{N: req.Limit})
	}

	items, err := p.Run(ctx, rctx, nil)
	if err != nil {
		result := metrics.ResultError
		if core.IsModelFit(err) {
			result = metrics.ResultModelFit
		}
		metrics.RecordRecommend(result, time.Since(start), 0)
		logger.Error().Err(err).Int("liked", len(req.Liked)).Msg("recommend failed")
		return nil, err
	}

	out := make([]Recommendation, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		out = append(out, toRecommendation(it))
	}

	metrics.RecordRecommend(metrics.ResultOK, time.Since(start), len(out))
	logger.Debug().
		Int("liked", len(req.Liked)).
		Int("results", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("recommend done")
	return out, nil
}

func (r *Recommender) validateRequest(req Request) error {
	err := r.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return core.WrapDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput, err, "invalid request")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return core.NewInvalidInputError(core.ModuleRecommend, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "min":
		return "liked items must not be empty"
	case "gt":
		return fmt.Sprintf("%s must be a positive id, got %v", fe.Field(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must not be negative", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

func toRecommendation(it *core.Item) Recommendation {
	content, _ := it.Feature(core.FeatureContentScore)
	pred, _ := it.Feature(core.FeaturePredictedRating)
	imputed, _ := it.Feature(core.FeatureImputed)
	return Recommendation{
		ItemID:          it.ID,
		FinalScore:      it.Score,
		ContentScore:    content,
		PredictedRating: pred,
		Imputed:         imputed > 0,
	}
}
