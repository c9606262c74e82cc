package recall

import (
	"context"

	"github.com/rushteam/moviematch/core"
)

// Source 表示一个可复用的召回源（内容相似度 / 隐因子 / ...）。
// 可以把它理解为“可并发 fan-out 的策略单元”。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

// SimilarityIndex 是内容相似度表的读接口。
//
// 物品不在表中时必须返回 LOOKUP_MISS（core.IsLookupMiss 为 true）的错误，
// 其他错误视为基础设施故障。
// 实现：dataset.SimilarityTable（内存）、StoreSimilarityAdapter（core.Store）。
type SimilarityIndex interface {
	Neighbors(ctx context.Context, itemID int64) ([]core.Neighbor, error)
}
