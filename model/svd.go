package model

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/rushteam/moviematch/core"
)

// SVDConfig 是 SVD 的训练超参数。零值字段使用默认值。
type SVDConfig struct {
	Factors        int     `koanf:"factors"`
	Epochs         int     `koanf:"epochs"`
	LearningRate   float64 `koanf:"learning_rate"`
	Regularization float64 `koanf:"regularization"`
	InitStdDev     float64 `koanf:"init_std_dev"`
	Seed           uint64  `koanf:"seed"`
}

// DefaultSVDConfig 返回默认超参数（50 因子，20 轮，lr 0.005，正则 0.05）。
func DefaultSVDConfig() SVDConfig {
	return SVDConfig{
		Factors:        50,
		Epochs:         20,
		LearningRate:   0.005,
		Regularization: 0.05,
		InitStdDev:     0.1,
		Seed:           42,
	}
}

func (c SVDConfig) withDefaults() SVDConfig {
	d := DefaultSVDConfig()
	if c.Factors <= 0 {
		c.Factors = d.Factors
	}
	if c.Epochs <= 0 {
		c.Epochs = d.Epochs
	}
	if c.LearningRate <= 0 {
		c.LearningRate = d.LearningRate
	}
	if c.Regularization <= 0 {
		c.Regularization = d.Regularization
	}
	if c.InitStdDev <= 0 {
		c.InitStdDev = d.InitStdDev
	}
	return c
}

// SVD 是带偏置的矩阵分解模型（Funk SVD），用 SGD 训练。
//
// 预测：
//
//	r̂(u,i) = μ + b_u + b_i + q_i·p_u
//
// 未知用户（或物品）时对应的偏置与点积项省略；结果裁剪到 [0.5, 5.0]。
// 训练完成后只读，可并发 Predict。
type SVD struct {
	factors int
	mean    float64
	users   map[int64]int
	items   map[int64]int
	bu      []float64
	bi      []float64
	pu      []float64 // len(users) * factors
	qi      []float64 // len(items) * factors
}

// FitSVD 在 ratings 上训练一个新模型。
//
// 评分按给定顺序逐条做 SGD，因子初始化来自固定种子，相同输入得到相同模型。
// 评分为空、少于 2 个用户、或训练出现非有限值时返回 MODEL_FIT 错误；
// 每轮之间检查 ctx。
func FitSVD(ctx context.Context, ratings []core.Rating, cfg SVDConfig) (*SVD, error) {
	cfg = cfg.withDefaults()
	if len(ratings) == 0 {
		return nil, core.NewModelFitError("no ratings to train on", nil)
	}

	m := &SVD{
		factors: cfg.Factors,
		users:   make(map[int64]int),
		items:   make(map[int64]int),
	}
	// 内部下标，按首次出现顺序分配
	uidx := make([]int, len(ratings))
	iidx := make([]int, len(ratings))
	var sum float64
	for k, r := range ratings {
		u, ok := m.users[r.UserID]
		if !ok {
			u = len(m.users)
			m.users[r.UserID] = u
		}
		i, ok := m.items[r.ItemID]
		if !ok {
			i = len(m.items)
			m.items[r.ItemID] = i
		}
		uidx[k], iidx[k] = u, i
		sum += r.Value
	}
	if len(m.users) < 2 {
		return nil, core.NewModelFitError(fmt.Sprintf("need at least 2 users, got %d", len(m.users)), nil)
	}
	m.mean = sum / float64(len(ratings))

	f := cfg.Factors
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	m.bu = make([]float64, len(m.users))
	m.bi = make([]float64, len(m.items))
	m.pu = make([]float64, len(m.users)*f)
	m.qi = make([]float64, len(m.items)*f)
	for k := range m.pu {
		m.pu[k] = rng.NormFloat64() * cfg.InitStdDev
	}
	for k := range m.qi {
		m.qi[k] = rng.NormFloat64() * cfg.InitStdDev
	}

	lr, reg := cfg.LearningRate, cfg.Regularization
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("svd epoch %d: %w", epoch, err)
		}
		for k, r := range ratings {
			u, i := uidx[k], iidx[k]
			pu := m.pu[u*f : (u+1)*f]
			qi := m.qi[i*f : (i+1)*f]

			e := r.Value - (m.mean + m.bu[u] + m.bi[i] + dot(pu, qi))
			if math.IsNaN(e) || math.IsInf(e, 0) {
				return nil, core.NewModelFitError(
					fmt.Sprintf("training diverged at epoch %d", epoch),
					fmt.Errorf("non-finite error for user %d item %d", r.UserID, r.ItemID))
			}

			m.bu[u] += lr * (e - reg*m.bu[u])
			m.bi[i] += lr * (e - reg*m.bi[i])
			for j := 0; j < f; j++ {
				puf, qif := pu[j], qi[j]
				pu[j] += lr * (e*qif - reg*puf)
				qi[j] += lr * (e*puf - reg*qif)
			}
		}
	}
	return m, nil
}

func dot(a, b []float64) float64 {
	var s float64
	for k := range a {
		s += a[k] * b[k]
	}
	return s
}

func (m *SVD) Name() string { return "svd" }

// Mean 训练集全局均值 μ。
func (m *SVD) Mean() float64 { return m.mean }

// KnowsUser 判断用户是否出现在训练集中。
func (m *SVD) KnowsUser(userID int64) bool {
	_, ok := m.users[userID]
	return ok
}

// KnowsItem 判断物品是否出现在训练集中。
func (m *SVD) KnowsItem(itemID int64) bool {
	_, ok := m.items[itemID]
	return ok
}

// Predict 预测评分，裁剪到 [core.MinRating, core.MaxRating]。
func (m *SVD) Predict(userID, itemID int64) float64 {
	est := m.mean
	u, uok := m.users[userID]
	i, iok := m.items[itemID]
	if uok {
		est += m.bu[u]
	}
	if iok {
		est += m.bi[i]
	}
	if uok && iok {
		f := m.factors
		est += dot(m.pu[u*f:(u+1)*f], m.qi[i*f:(i+1)*f])
	}
	return clip(est)
}

func clip(v float64) float64 {
	return math.Min(core.MaxRating, math.Max(core.MinRating, v))
}

var _ RatingPredictor = (*SVD)(nil)
