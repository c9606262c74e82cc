package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/rushteam/moviematch/core"
)

// 评分 CSV 可接受的列名（第一个为规范名）。
var (
	userColumns   = []string{"userId", "user_id"}
	itemColumns   = []string{"tmdb_id", "item_id", "movieId"}
	ratingColumns = []string{"rating"}
	simColumns    = []string{"similarities"}
)

// LoadRatingsFile 从文件加载评分 CSV。
func LoadRatingsFile(path string) (*RatingSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ratings: %w", err)
	}
	defer f.Close()
	return LoadRatingsCSV(f)
}

// LoadRatingsCSV 读取带表头的评分 CSV，至少包含 userId、tmdb_id、rating 三列，列顺序任意。
func LoadRatingsCSV(r io.Reader) (*RatingSet, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read ratings header: %w", err)
	}
	cols, err := resolveColumns(header, userColumns, itemColumns, ratingColumns)
	if err != nil {
		return nil, err
	}
	userCol, itemCol, ratingCol := cols[0], cols[1], cols[2]

	var ratings []core.Rating
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ratings line %d: %w", line, err)
		}
		if len(rec) <= max(userCol, itemCol, ratingCol) {
			return nil, fmt.Errorf("ratings line %d: expected at least %d fields, got %d", line, max(userCol, itemCol, ratingCol)+1, len(rec))
		}
		uid, err := parseID(rec[userCol])
		if err != nil {
			return nil, fmt.Errorf("ratings line %d: user id: %w", line, err)
		}
		iid, err := parseID(rec[itemCol])
		if err != nil {
			return nil, fmt.Errorf("ratings line %d: item id: %w", line, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[ratingCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("ratings line %d: rating: %w", line, err)
		}
		ratings = append(ratings, core.Rating{UserID: uid, ItemID: iid, Value: v})
	}
	return NewRatingSet(ratings)
}

// LoadSimilarityFile 从文件加载内容相似度 CSV。
func LoadSimilarityFile(path string) (*SimilarityTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open similarity table: %w", err)
	}
	defer f.Close()
	return LoadSimilarityCSV(f)
}

// LoadSimilarityCSV 读取内容相似度 CSV：tmdb_id 列为物品，similarities 列为邻居列表。
//
// 邻居列表既可以是 JSON，也可以是离线脚本写出的 Python 字面量：
//
//	[{'tmdb_id': 862, 'score': 0.42}, {'tmdb_id': 863, 'score': 0.40}]
func LoadSimilarityCSV(r io.Reader) (*SimilarityTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read similarity header: %w", err)
	}
	cols, err := resolveColumns(header, itemColumns, simColumns)
	if err != nil {
		return nil, err
	}
	itemCol, simCol := cols[0], cols[1]

	entries := make(map[int64][]core.Neighbor)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read similarity line %d: %w", line, err)
		}
		if len(rec) <= max(itemCol, simCol) {
			return nil, fmt.Errorf("similarity line %d: expected at least %d fields, got %d", line, max(itemCol, simCol)+1, len(rec))
		}
		id, err := parseID(rec[itemCol])
		if err != nil {
			return nil, fmt.Errorf("similarity line %d: item id: %w", line, err)
		}
		ns, err := ParseNeighbors(rec[simCol])
		if err != nil {
			return nil, fmt.Errorf("similarity line %d: %w", line, err)
		}
		// 同一物品出现多行时合并所有行的邻居
		entries[id] = append(entries[id], ns...)
	}
	return NewSimilarityTable(entries), nil
}

// ParseNeighbors 解析一个邻居列表（JSON 或 Python 字面量）。
func ParseNeighbors(s string) ([]core.Neighbor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	s = strings.ReplaceAll(s, "'", `"`)

	// tmdb_id 可能被写成 862.0
	var raw []struct {
		ItemID float64 `json:"tmdb_id"`
		Score  float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("parse neighbors: %w", err)
	}
	out := make([]core.Neighbor, 0, len(raw))
	for _, n := range raw {
		if n.ItemID != math.Trunc(n.ItemID) {
			return nil, fmt.Errorf("parse neighbors: non-integral tmdb_id %v", n.ItemID)
		}
		out = append(out, core.Neighbor{ItemID: int64(n.ItemID), Score: n.Score})
	}
	return out, nil
}

// resolveColumns 按候选列名在表头中查找列下标，返回顺序与 candidates 一致。
func resolveColumns(header []string, candidates ...[]string) ([]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, ok := index[h]; !ok {
			index[h] = i
		}
	}
	out := make([]int, 0, len(candidates))
	for _, names := range candidates {
		found := -1
		for _, name := range names {
			if i, ok := index[name]; ok {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, core.NewInvalidInputError(core.ModuleDataset, fmt.Sprintf("missing column %q in header %v", names[0], header))
		}
		out = append(out, found)
	}
	return out, nil
}

// parseID 解析整型 ID，兼容 pandas 写出的 "862.0"。
func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return int64(f), nil
}

