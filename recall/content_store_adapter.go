package recall

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/dataset"
)

// StoreSimilarityAdapter 是基于 core.Store 的相似度表，适用于 Redis/Badger 等共享或持久化存储。
//
// Key 布局：{KeyPrefix}:item:{itemID} -> 邻居列表 JSON
//
//	[{"tmdb_id": 862, "score": 0.42}, ...]
type StoreSimilarityAdapter struct {
	store core.Store

	// KeyPrefix 是存储 key 的前缀
	KeyPrefix string
}

// NewStoreSimilarityAdapter 创建一个基于 core.Store 的相似度表，keyPrefix 默认 "similarity"。
func NewStoreSimilarityAdapter(s core.Store, keyPrefix string) *StoreSimilarityAdapter {
	if keyPrefix == "" {
		keyPrefix = "similarity"
	}
	return &StoreSimilarityAdapter{
		store:     s,
		KeyPrefix: keyPrefix,
	}
}

// Key 返回物品邻居列表的存储 key。
func (a *StoreSimilarityAdapter) Key(itemID int64) string {
	return a.KeyPrefix + ":item:" + strconv.FormatInt(itemID, 10)
}

func (a *StoreSimilarityAdapter) Neighbors(ctx context.Context, itemID int64) ([]core.Neighbor, error) {
	data, err := a.store.Get(ctx, a.Key(itemID))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, core.NewLookupMissError(itemID)
		}
		return nil, err
	}

	var result []core.Neighbor
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode neighbors of %d: %w", itemID, err)
	}
	return result, nil
}

// Put 写入一个物品的邻居列表。
func (a *StoreSimilarityAdapter) Put(ctx context.Context, itemID int64, neighbors []core.Neighbor) error {
	data, err := json.Marshal(neighbors)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, a.Key(itemID), data)
}

// Import 把内存相似度表批量写入存储，返回写入的物品数。batchSize <= 0 时默认 500。
func (a *StoreSimilarityAdapter) Import(ctx context.Context, table *dataset.SimilarityTable, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	batch := make(map[string][]byte, batchSize)
	written := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := a.store.BatchSet(ctx, batch); err != nil {
			return err
		}
		written += len(batch)
		batch = make(map[string][]byte, batchSize)
		return nil
	}

	err := table.Range(func(itemID int64, neighbors []core.Neighbor) error {
		if neighbors == nil {
			neighbors = []core.Neighbor{}
		}
		data, err := json.Marshal(neighbors)
		if err != nil {
			return err
		}
		batch[a.Key(itemID)] = data
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return written, fmt.Errorf("import similarity: %w", err)
	}
	if err := flush(); err != nil {
		return written, fmt.Errorf("import similarity: %w", err)
	}
	return written, nil
}

var (
	_ SimilarityIndex = (*StoreSimilarityAdapter)(nil)
	_ SimilarityIndex = (*dataset.SimilarityTable)(nil)
)
