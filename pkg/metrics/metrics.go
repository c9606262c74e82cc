// Package metrics 定义推荐服务的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 推荐请求结果
const (
	ResultOK           = "ok"
	ResultInvalidInput = "invalid_input"
	ResultModelFit     = "model_fit"
	ResultError        = "error"
)

var (
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviematch_recommend_requests_total",
			Help: "Total number of recommendation requests by result",
		},
		[]string{"result"},
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moviematch_recommend_duration_seconds",
			Help:    "End-to-end recommendation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// 每次请求都会重新训练隐因子模型，这里是主要耗时
	ModelFitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moviematch_model_fit_duration_seconds",
			Help:    "Latent factor model training time in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	LookupMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moviematch_similarity_lookup_miss_total",
			Help: "Liked items without a content similarity entry",
		},
	)

	Candidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moviematch_candidates",
			Help:    "Number of scored candidates per request",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviematch_api_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)

// RecordRecommend 记录一次推荐请求。
func RecordRecommend(result string, duration time.Duration, candidates int) {
	RecommendRequests.WithLabelValues(result).Inc()
	RecommendDuration.Observe(duration.Seconds())
	if result == ResultOK {
		Candidates.Observe(float64(candidates))
	}
}

// RecordModelFit 记录一次模型训练耗时。
func RecordModelFit(duration time.Duration) {
	ModelFitDuration.Observe(duration.Seconds())
}

// RecordLookupMiss 记录一次相似度表未命中。
func RecordLookupMiss() {
	LookupMisses.Inc()
}

// RecordAPIRequest 记录一次 HTTP 请求。
func RecordAPIRequest(method, route, status string) {
	APIRequests.WithLabelValues(method, route, status).Inc()
}
