// Package model 提供隐因子评分模型。
package model

// RatingPredictor 是评分预测的最小抽象：输入用户和物品，输出预测评分。
type RatingPredictor interface {
	Name() string
	Predict(userID, itemID int64) float64
}
