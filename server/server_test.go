package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/moviematch/config"
	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/dataset"
	"github.com/rushteam/moviematch/hybrid"
)

type stubRecommender struct {
	recs []hybrid.Recommendation
	err  error
	got  hybrid.Request
}

func (s *stubRecommender) Run(_ context.Context, req hybrid.Request) ([]hybrid.Recommendation, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	if req.Limit > 0 && req.Limit < len(s.recs) {
		return s.recs[:req.Limit], nil
	}
	return s.recs, nil
}

func testConfig() config.ServerConfig {
	cfg := config.DefaultAppConfig().Server
	cfg.RateLimit = 0
	return cfg
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIndexAndHealth(t *testing.T) {
	h := New(testConfig(), &stubRecommender{}, zerolog.Nop()).Handler()

	rec := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var msg string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, WelcomeMessage, msg)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "moviematch_api_requests_total")
}

func TestPredict(t *testing.T) {
	stub := &stubRecommender{recs: []hybrid.Recommendation{
		{ItemID: 8844, FinalScore: 7.5, ContentScore: 0.8, PredictedRating: 3.5},
		{ItemID: 550, FinalScore: 6.1, ContentScore: 0.5, PredictedRating: 3.6, Imputed: true},
	}}
	h := New(testConfig(), stub, zerolog.Nop()).Handler()

	rec := do(t, h, http.MethodPost, "/predict", `{"favorite_movies":[862, 603]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[{"tmdb_id":8844,"final_score":7.5},{"tmdb_id":550,"final_score":6.1}]`, rec.Body.String())
	assert.Equal(t, []int64{862, 603}, stub.got.Liked)
	assert.Equal(t, 0, stub.got.Limit)
	assert.Equal(t, rec.Header().Get(HeaderRequestID), stub.got.RequestID)

	rec = do(t, h, http.MethodPost, "/predict?limit=1&explain=true", `{"favorite_movies":[862]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var recs []hybrid.Recommendation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, stub.recs[0], recs[0])
	assert.Equal(t, 1, stub.got.Limit)
}

func TestPredict_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		err    error
		status int
		code   string
	}{
		{name: "bad json", target: "/predict", body: `{"favorite_movies":`, status: http.StatusBadRequest, code: core.ErrorCodeInvalidInput},
		{name: "bad limit", target: "/predict?limit=x", body: `{"favorite_movies":[1]}`, status: http.StatusBadRequest, code: core.ErrorCodeInvalidInput},
		{
			name: "invalid input", target: "/predict", body: `{"favorite_movies":[]}`,
			err:    core.NewInvalidInputError(core.ModuleRecommend, "liked items must not be empty"),
			status: http.StatusBadRequest, code: core.ErrorCodeInvalidInput,
		},
		{
			name: "model fit", target: "/predict", body: `{"favorite_movies":[1]}`,
			err:    core.NewModelFitError("no ratings to train on", nil),
			status: http.StatusInternalServerError, code: core.ErrorCodeModelFit,
		},
		{
			name: "timeout", target: "/predict", body: `{"favorite_movies":[1]}`,
			err:    context.DeadlineExceeded,
			status: http.StatusGatewayTimeout, code: "TIMEOUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(testConfig(), &stubRecommender{err: tt.err}, zerolog.Nop()).Handler()
			rec := do(t, h, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestRouting(t *testing.T) {
	h := New(testConfig(), &stubRecommender{}, zerolog.Nop()).Handler()
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/predict", "").Code)
}

func TestPredict_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 2
	h := New(cfg, &stubRecommender{}, zerolog.Nop()).Handler()

	for range 2 {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/predict", `{"favorite_movies":[1]}`).Code)
	}
	rec := do(t, h, http.MethodPost, "/predict", `{"favorite_movies":[1]}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestPredict_EndToEnd(t *testing.T) {
	ratings, err := dataset.LoadRatingsCSV(strings.NewReader(
		"userId,tmdb_id,rating\n1,862,5\n1,8844,4\n2,862,3\n2,603,5\n3,8844,2\n3,603,4\n3,550,5\n",
	))
	require.NoError(t, err)
	table, err := dataset.LoadSimilarityCSV(strings.NewReader(
		"tmdb_id,similarities\n862,\"[{'tmdb_id': 8844, 'score': 0.8}, {'tmdb_id': 550, 'score': 0.05}]\"\n" +
			"603,\"[{'tmdb_id': 8844, 'score': 0.9}]\"\n",
	))
	require.NoError(t, err)

	opts := hybrid.DefaultOptions()
	opts.Logger = zerolog.Nop()
	r, err := hybrid.New(ratings, table, opts)
	require.NoError(t, err)

	srv := httptest.NewServer(New(testConfig(), r, zerolog.Nop()).Handler())
	defer srv.Close()

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(srv.URL+"/predict", "application/json", bytes.NewBufferString(`{"favorite_movies":[862,603]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []PredictResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 2)
	assert.Equal(t, int64(8844), out[0].TmdbID)
	assert.Equal(t, int64(550), out[1].TmdbID)
	assert.Greater(t, out[0].FinalScore, out[1].FinalScore)
}
