// Package moviematch 是一个混合电影推荐引擎。
//
// 设计要点：
//   - Pipeline-first: 推荐逻辑通过 Node 串联（Recall → Filter → Rank → ReRank）
//   - 每次请求在评分集快照上加入合成用户、重新训练 SVD，再与离线内容相似度融合：
//     final = 1·predicted_rating + 5·content_score
//   - 评分集与相似度表只读共享，请求之间没有可变状态
//
// 本地调用使用 hybrid.Recommender，远程调用使用 service.Client，两者返回相同的结果结构。
package moviematch

import (
	"github.com/rushteam/moviematch/hybrid"
	"github.com/rushteam/moviematch/pipeline"
)

// 轻量 facade：便于直接 import "moviematch" 使用核心抽象。
type (
	Pipeline       = pipeline.Pipeline
	Node           = pipeline.Node
	Kind           = pipeline.Kind
	Recommender    = hybrid.Recommender
	Recommendation = hybrid.Recommendation
	Request        = hybrid.Request
)

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)

// New 使用默认 Pipeline 创建 Recommender，见 hybrid.New。
var New = hybrid.New
