package dataset

import (
	"context"
	"sort"

	"github.com/rushteam/moviematch/core"
)

// SimilarityTable 是内存中的内容相似度表：物品 -> 邻居列表。
//
// 邻居按相似度降序，不含物品自身。构建后只读。
type SimilarityTable struct {
	entries map[int64][]core.Neighbor
}

// NewSimilarityTable 构建相似度表：去掉自身邻居，并按分数降序（稳定）排好。
func NewSimilarityTable(entries map[int64][]core.Neighbor) *SimilarityTable {
	t := &SimilarityTable{entries: make(map[int64][]core.Neighbor, len(entries))}
	for id, ns := range entries {
		t.entries[id] = normalizeNeighbors(id, ns)
	}
	return t
}

func normalizeNeighbors(self int64, ns []core.Neighbor) []core.Neighbor {
	out := make([]core.Neighbor, 0, len(ns))
	for _, n := range ns {
		if n.ItemID == self {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Neighbors 返回物品的邻居列表；物品不在表中时返回 LOOKUP_MISS 错误。
func (t *SimilarityTable) Neighbors(_ context.Context, itemID int64) ([]core.Neighbor, error) {
	ns, ok := t.entries[itemID]
	if !ok {
		return nil, core.NewLookupMissError(itemID)
	}
	return ns, nil
}

// Len 表中物品数。
func (t *SimilarityTable) Len() int { return len(t.entries) }

// Items 返回表中所有物品 ID（升序）。
func (t *SimilarityTable) Items() []int64 {
	ids := make([]int64, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Range 按物品 ID 升序遍历，fn 返回错误时停止。
func (t *SimilarityTable) Range(fn func(itemID int64, neighbors []core.Neighbor) error) error {
	for _, id := range t.Items() {
		if err := fn(id, t.entries[id]); err != nil {
			return err
		}
	}
	return nil
}
