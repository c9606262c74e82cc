package rerank

import (
	"context"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/pipeline"
)

// TopNNode 是一个 Top-N 截断节点，在排序之后截取前 N 个物品。
//
// 推荐核心本身不截断，只有调用方（例如 HTTP 的 limit 参数）需要时才追加：
//
//	p := base.Append(&rerank.TopNNode{N: 20})
type TopNNode struct {
	// N 要保留的物品数量；N <= 0 时不截断
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.N <= 0 || len(items) <= n.N {
		return items, nil
	}
	return items[:n.N], nil
}
