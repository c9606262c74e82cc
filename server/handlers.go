package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/hybrid"
	"github.com/rushteam/moviematch/pkg/logging"
)

// WelcomeMessage 是 GET / 的返回。
const WelcomeMessage = "Welcome to the moviematch API. POST your favorite movies to /predict to get recommendations."

// maxBodyBytes 限制请求体大小。
const maxBodyBytes = 1 << 20

// PredictRequest 是 POST /predict 的请求体。
type PredictRequest struct {
	FavoriteMovies []int64 `json:"favorite_movies"`
}

// PredictResult 是 POST /predict 返回的单条结果。
type PredictResult struct {
	TmdbID     int64   `json:"tmdb_id"`
	FinalScore float64 `json:"final_score"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, WelcomeMessage)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePredict 处理 POST /predict。
//
// 查询参数：
//   - limit：只返回前 N 条，缺省返回全部
//   - explain=true：返回完整的 hybrid.Recommendation（含内容分、预测评分、是否补全）
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var body PredictRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}

	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	explain, _ := strconv.ParseBool(q.Get("explain"))

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	recs, err := s.rec.Run(ctx, hybrid.Request{
		Liked:     body.FavoriteMovies,
		Limit:     limit,
		RequestID: logging.RequestIDFromContext(ctx),
	})
	if err != nil {
		s.respondRecommendError(w, r, err)
		return
	}

	if explain {
		respondJSON(w, http.StatusOK, recs)
		return
	}
	out := make([]PredictResult, len(recs))
	for i, rec := range recs {
		out[i] = PredictResult{TmdbID: rec.ItemID, FinalScore: rec.FinalScore}
	}
	respondJSON(w, http.StatusOK, out)
}

// respondRecommendError 把推荐错误映射为 HTTP 状态码：
// INVALID_INPUT -> 400，超时 -> 504，其余（含 MODEL_FIT）-> 500。
func (s *Server) respondRecommendError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.Ctx(r.Context())
	switch {
	case core.IsInvalidInput(err):
		respondError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, domainMessage(err))
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn().Err(err).Msg("recommend timed out")
		respondError(w, http.StatusGatewayTimeout, "TIMEOUT", "recommendation timed out")
	case core.IsModelFit(err):
		logger.Error().Err(err).Msg("model fit failed")
		respondError(w, http.StatusInternalServerError, core.ErrorCodeModelFit, domainMessage(err))
	default:
		logger.Error().Err(err).Msg("recommend failed")
		respondError(w, http.StatusInternalServerError, core.ErrorCodeInternalError, "internal error")
	}
}

func domainMessage(err error) string {
	if de := core.GetDomainError(err); de != nil {
		return strings.TrimSpace(de.Message)
	}
	return err.Error()
}
