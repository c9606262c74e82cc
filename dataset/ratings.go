// Package dataset 提供推荐所需的两份离线数据：用户-物品评分集与内容相似度表。
//
// 两者在进程启动时加载一次，之后只读，可在并发请求间共享。
package dataset

import (
	"fmt"
	"math"

	"github.com/rushteam/moviematch/core"
)

// RatingSet 是评分集的不可变快照。
//
// 构建后不再修改；每次请求通过 Augment 得到带合成用户的新副本。
type RatingSet struct {
	ratings []core.Rating
	users   []int64 // 首次出现顺序
	items   []int64 // 首次出现顺序
	byUser  map[int64][]int64
	maxUser int64
	sum     float64
}

// NewRatingSet 校验并构建评分集。评分必须是 [0.5, 5.0] 内的有限值。
func NewRatingSet(ratings []core.Rating) (*RatingSet, error) {
	for i, r := range ratings {
		if math.IsNaN(r.Value) || r.Value < core.MinRating || r.Value > core.MaxRating {
			return nil, core.NewInvalidInputError(core.ModuleDataset,
				fmt.Sprintf("rating %d (user %d, item %d): value %v outside [%v, %v]",
					i, r.UserID, r.ItemID, r.Value, core.MinRating, core.MaxRating))
		}
	}
	cp := make([]core.Rating, len(ratings))
	copy(cp, ratings)
	return build(cp), nil
}

func build(ratings []core.Rating) *RatingSet {
	rs := &RatingSet{
		ratings: ratings,
		byUser:  make(map[int64][]int64),
	}
	seenItem := make(map[int64]struct{})
	for i, r := range ratings {
		if _, ok := rs.byUser[r.UserID]; !ok {
			rs.users = append(rs.users, r.UserID)
		}
		rs.byUser[r.UserID] = append(rs.byUser[r.UserID], r.ItemID)
		if _, ok := seenItem[r.ItemID]; !ok {
			seenItem[r.ItemID] = struct{}{}
			rs.items = append(rs.items, r.ItemID)
		}
		if i == 0 || r.UserID > rs.maxUser {
			rs.maxUser = r.UserID
		}
		rs.sum += r.Value
	}
	return rs
}

// Augment 返回新的评分集：基础评分的副本，加上合成用户对每个喜欢物品的 5.0 评分。
//
// 合成用户 ID 为 NextUserID()；liked 中的重复 ID 会产生重复评分行。
// 原评分集不被修改。
func (rs *RatingSet) Augment(liked []int64) *RatingSet {
	uid := rs.NextUserID()
	out := make([]core.Rating, len(rs.ratings), len(rs.ratings)+len(liked))
	copy(out, rs.ratings)
	for _, id := range liked {
		out = append(out, core.Rating{UserID: uid, ItemID: id, Value: core.LikedRating})
	}
	return build(out)
}

// Ratings 返回评分记录（只读，调用方不得修改）。
func (rs *RatingSet) Ratings() []core.Rating { return rs.ratings }

// Len 评分条数。
func (rs *RatingSet) Len() int { return len(rs.ratings) }

// Users 返回所有用户 ID（首次出现顺序）。
func (rs *RatingSet) Users() []int64 { return rs.users }

// Items 返回所有物品 ID（首次出现顺序）。
func (rs *RatingSet) Items() []int64 { return rs.items }

// MaxUserID 最大用户 ID；空集返回 0。
func (rs *RatingSet) MaxUserID() int64 { return rs.maxUser }

// NextUserID 是下一个合成用户的 ID。
func (rs *RatingSet) NextUserID() int64 { return rs.maxUser + 1 }

// Mean 全局评分均值；空集返回 0。
func (rs *RatingSet) Mean() float64 {
	if len(rs.ratings) == 0 {
		return 0
	}
	return rs.sum / float64(len(rs.ratings))
}

// RatedBy 返回用户评过分的物品（按评分顺序，可能有重复）。
func (rs *RatingSet) RatedBy(userID int64) []int64 { return rs.byUser[userID] }

// HasRated 判断用户是否对物品评过分。
func (rs *RatingSet) HasRated(userID, itemID int64) bool {
	for _, id := range rs.byUser[userID] {
		if id == itemID {
			return true
		}
	}
	return false
}
