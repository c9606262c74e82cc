package core

// 评分取值范围（与离线评分数据集一致）。
const (
	MinRating = 0.5
	MaxRating = 5.0

	// LikedRating 是合成用户对每个喜欢物品的评分。
	LikedRating = 5.0
)

// Rating 是一条用户-物品评分记录。
type Rating struct {
	UserID int64   `json:"user_id"`
	ItemID int64   `json:"item_id"`
	Value  float64 `json:"rating"`
}

// Neighbor 是内容相似度表中的一个邻居：离线按相似度降序排好，不包含物品自身。
type Neighbor struct {
	ItemID int64   `json:"tmdb_id"`
	Score  float64 `json:"score"`
}
