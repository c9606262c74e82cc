// Package builders 注册内置 Node 的配置构建器。
package builders

import (
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/moviematch/config"
	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/dataset"
	"github.com/rushteam/moviematch/filter"
	"github.com/rushteam/moviematch/model"
	"github.com/rushteam/moviematch/pipeline"
	"github.com/rushteam/moviematch/pkg/conv"
	"github.com/rushteam/moviematch/rank"
	"github.com/rushteam/moviematch/recall"
	"github.com/rushteam/moviematch/rerank"
)

func init() {
	config.Register("filter", BuildFilterNode)
	config.Register("rank.hybrid", BuildHybridNode)
	config.Register("rerank.topn", BuildTopNNode)
}

// Deps 是依赖离线数据的 Node 所需的资源。
type Deps struct {
	Ratings    *dataset.RatingSet
	Similarity recall.SimilarityIndex
	// Store 可选，供 blacklist 过滤器读取 Store 中的黑名单
	Store  core.Store
	SVD    model.SVDConfig
	Logger zerolog.Logger
}

// Bind 把依赖 deps 的构建器注册到 f：recall.fanout，以及可读 Store 黑名单的 filter。
func Bind(f *pipeline.NodeFactory, deps Deps) {
	f.Register("recall.fanout", func(cfg map[string]any) (pipeline.Node, error) {
		return BuildFanoutNode(cfg, deps)
	})
	f.Register("filter", func(cfg map[string]any) (pipeline.Node, error) {
		return buildFilterNode(cfg, deps.Store, deps.Logger)
	})
}

// Factory 返回包含全局注册表和 deps 绑定构建器的 NodeFactory。
func Factory(deps Deps) *pipeline.NodeFactory {
	f := config.DefaultFactory()
	Bind(f, deps)
	return f
}

func BuildFanoutNode(cfg map[string]any, deps Deps) (pipeline.Node, error) {
	sourcesConfig, ok := cfg["sources"].([]any)
	if !ok {
		return nil, fmt.Errorf("sources not found or invalid")
	}
	sources := make([]recall.Source, 0, len(sourcesConfig))
	types := make([]string, 0, len(sourcesConfig))
	for _, sc := range sourcesConfig {
		sourceMap, ok := sc.(map[string]any)
		if !ok {
			continue
		}
		sourceType := conv.ConfigGet(sourceMap, "type", "")
		switch sourceType {
		case "content_similarity":
			if deps.Similarity == nil {
				return nil, fmt.Errorf("content_similarity source requires a similarity index")
			}
			src := recall.NewContentSimilarity(deps.Similarity, deps.Logger)
			src.Alpha = conv.ConfigGetFloat64(sourceMap, "alpha", recall.DefaultDuplicateAlpha)
			sources = append(sources, src)
		case "latent_factor":
			if deps.Ratings == nil {
				return nil, fmt.Errorf("latent_factor source requires a rating set")
			}
			svd := deps.SVD
			if n := conv.ConfigGetInt64(sourceMap, "factors", 0); n > 0 {
				svd.Factors = int(n)
			}
			if n := conv.ConfigGetInt64(sourceMap, "epochs", 0); n > 0 {
				svd.Epochs = int(n)
			}
			sources = append(sources, recall.NewLatentFactor(deps.Ratings, svd, deps.Logger))
		default:
			return nil, fmt.Errorf("unknown source type: %s", sourceType)
		}
		types = append(types, sourceType)
	}
	fanout := &recall.Fanout{Sources: sources}
	if sec := conv.ConfigGetInt64(cfg, "timeout", 0); sec > 0 {
		fanout.Timeout = time.Duration(sec) * time.Second
	}
	if n := conv.ConfigGetInt64(cfg, "max_concurrent", 0); n > 0 {
		fanout.MaxConcurrent = int(n)
	}
	strategy := conv.ConfigGet(cfg, "merge_strategy", "")
	if slices.Contains(types, "latent_factor") {
		// 预测评分只能补充到内容候选上：content_similarity 必须是左表
		if strategy == "" {
			strategy = "left_join"
		}
		if strategy != "left_join" {
			return nil, fmt.Errorf("latent_factor source requires merge_strategy left_join, got %s", strategy)
		}
		if types[0] != "content_similarity" {
			return nil, fmt.Errorf("left_join with latent_factor requires content_similarity as the first source")
		}
	}
	switch strategy {
	case "left_join":
		fanout.MergeStrategy = recall.LeftJoinMergeStrategy{}
	case "union":
		fanout.MergeStrategy = recall.UnionMergeStrategy{}
	case "", "first":
		fanout.MergeStrategy = recall.FirstMergeStrategy{}
	default:
		return nil, fmt.Errorf("unknown merge strategy: %s", strategy)
	}
	return fanout, nil
}

// BuildFilterNode 构建过滤 Node（不读取 Store 黑名单）。
func BuildFilterNode(cfg map[string]any) (pipeline.Node, error) {
	return buildFilterNode(cfg, nil, zerolog.Nop())
}

func buildFilterNode(cfg map[string]any, s core.Store, logger zerolog.Logger) (pipeline.Node, error) {
	filtersConfig, ok := cfg["filters"].([]any)
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}
	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]any)
		if !ok {
			continue
		}
		filterType := conv.ConfigGet(filterMap, "type", "")
		switch filterType {
		case "liked":
			filters = append(filters, filter.LikedFilter{})
		case "blacklist":
			ids := conv.SliceAnyToInt64(filterMap["item_ids"])
			key := conv.ConfigGet(filterMap, "key", "")
			var adapter *filter.StoreAdapter
			if s != nil && key != "" {
				adapter = filter.NewStoreAdapter(s)
			}
			filters = append(filters, filter.NewBlacklistFilter(ids, adapter, key))
		case "expr":
			f, err := filter.NewExprFilter(conv.ConfigGet(filterMap, "expr", ""), conv.ConfigGet(filterMap, "invert", false))
			if err != nil {
				return nil, fmt.Errorf("expr filter: %w", err)
			}
			filters = append(filters, f)
		default:
			return nil, fmt.Errorf("unknown filter type: %s", filterType)
		}
	}
	return &filter.FilterNode{Filters: filters, Logger: logger}, nil
}

func BuildHybridNode(cfg map[string]any) (pipeline.Node, error) {
	return &rank.HybridNode{
		WeightCollaborative: conv.ConfigGetFloat64(cfg, "weight_collaborative", rank.DefaultWeightCollaborative),
		WeightContent:       conv.ConfigGetFloat64(cfg, "weight_content", rank.DefaultWeightContent),
	}, nil
}

func BuildTopNNode(cfg map[string]any) (pipeline.Node, error) {
	return &rerank.TopNNode{N: int(conv.ConfigGetInt64(cfg, "n", 0))}, nil
}
