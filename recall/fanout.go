package recall

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/pipeline"
	"github.com/rushteam/moviematch/pkg/utils"
)

// LabelRecallSource 记录物品来自哪个召回源。
const LabelRecallSource = "recall_source"

// Fanout 是一个 Recall Node：并发执行多个召回源，并合并结果。
//
// 任一召回源出错都会让整个请求失败（例如隐因子模型训练失败）；
// 召回源内部自行决定哪些错误可以恢复。
type Fanout struct {
	Sources       []Source
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	MergeStrategy MergeStrategy // 为空时使用 FirstMergeStrategy
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	// 按召回源下标收集，合并顺序与 Sources 顺序一致，不受调度影响
	results := make([][]*core.Item, len(n.Sources))
	eg, egCtx := errgroup.WithContext(ctx)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}

	for i, src := range n.Sources {
		eg.Go(func() error {
			recallCtx := egCtx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(egCtx, n.Timeout)
				defer cancel()
			}

			items, err := src.Recall(recallCtx, rctx)
			if err != nil {
				return fmt.Errorf("%s: %w", src.Name(), err)
			}

			// 记录召回来源 label，方便 explain / 观测
			for _, it := range items {
				it.PutLabel(LabelRecallSource, utils.Label{Value: src.Name(), Source: utils.SourceRecall})
			}
			results[i] = items
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	strategy := n.MergeStrategy
	if strategy == nil {
		strategy = FirstMergeStrategy{}
	}
	merged := strategy.Merge(results)
	// 补全值取自完整的合并结果，不受后续过滤影响
	if mean, ok := core.MeanPredictedRating(merged); ok && rctx != nil {
		if rctx.Params == nil {
			rctx.Params = make(map[string]any)
		}
		rctx.Params[core.ParamPredictedMean] = mean
	}
	return merged, nil
}

// MergeStrategy 决定多个召回源的结果如何合并。results 与 Sources 一一对应。
type MergeStrategy interface {
	Merge(results [][]*core.Item) []*core.Item
}

// FirstMergeStrategy 按 ID 去重，保留第一个出现的，后出现的只合并 labels。
type FirstMergeStrategy struct{}

func (FirstMergeStrategy) Merge(results [][]*core.Item) []*core.Item {
	seen := make(map[int64]*core.Item)
	var out []*core.Item
	for _, items := range results {
		for _, it := range items {
			if it == nil {
				continue
			}
			if old, ok := seen[it.ID]; ok {
				for k, v := range it.Labels {
					old.PutLabel(k, v)
				}
				continue
			}
			seen[it.ID] = it
			out = append(out, it)
		}
	}
	return out
}

// UnionMergeStrategy 合并所有结果，不去重。
type UnionMergeStrategy struct{}

func (UnionMergeStrategy) Merge(results [][]*core.Item) []*core.Item {
	var out []*core.Item
	for _, items := range results {
		for _, it := range items {
			if it != nil {
				out = append(out, it)
			}
		}
	}
	return out
}

// LeftJoinMergeStrategy 以第一个召回源为主表做左连接：
// 只输出主表中的物品，其余召回源仅为同 ID 物品补充主表没有的特征与 labels。
//
// 主表之外的物品被丢弃；主表物品在其他召回源中没有匹配时特征保持缺失。
type LeftJoinMergeStrategy struct{}

func (LeftJoinMergeStrategy) Merge(results [][]*core.Item) []*core.Item {
	if len(results) == 0 {
		return nil
	}
	primary := FirstMergeStrategy{}.Merge(results[:1])
	if len(results) == 1 {
		return primary
	}

	for _, enrich := range results[1:] {
		byID := make(map[int64]*core.Item, len(enrich))
		for _, it := range enrich {
			if it == nil {
				continue
			}
			if _, ok := byID[it.ID]; !ok {
				byID[it.ID] = it
			}
		}
		for _, it := range primary {
			match, ok := byID[it.ID]
			if !ok {
				continue
			}
			for k, v := range match.Features {
				if _, exists := it.Feature(k); !exists {
					it.SetFeature(k, v)
				}
			}
			for k, v := range match.Labels {
				it.PutLabel(k, v)
			}
		}
	}
	return primary
}
