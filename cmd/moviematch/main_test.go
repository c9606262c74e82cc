package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/moviematch/config"
	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/hybrid"
	"github.com/rushteam/moviematch/server"
)

const ratingsCSV = `userId,tmdb_id,rating
1,862,5
1,8844,4
2,862,3
2,603,5
3,8844,2
3,603,4
3,550,5
`

const similarityCSV = `tmdb_id,similarities
862,"[{'tmdb_id': 8844, 'score': 0.8}, {'tmdb_id': 550, 'score': 0.05}]"
603,"[{'tmdb_id': 8844, 'score': 0.9}]"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeConfig(t *testing.T, dir string, extra string) string {
	t.Helper()
	ratings := writeFile(t, dir, "ratings.csv", ratingsCSV)
	similarity := writeFile(t, dir, "content_based.csv", similarityCSV)
	cfg := "log:\n  level: error\n" +
		"model:\n  epochs: 5\n" +
		"data:\n  ratings_path: " + ratings + "\n  similarity_path: " + similarity + "\n" + extra
	return writeFile(t, dir, "moviematch.yaml", cfg)
}

func decode(t *testing.T, out *bytes.Buffer) []hybrid.Recommendation {
	t.Helper()
	var recs []hybrid.Recommendation
	require.NoError(t, json.Unmarshal(out.Bytes(), &recs))
	return recs
}

func TestRecommendCommand(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), "")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"recommend", "-config", cfgPath, "862", "603"}, &out))
	recs := decode(t, &out)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(8844), recs[0].ItemID)
	assert.Equal(t, int64(550), recs[1].ItemID)

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"recommend", "-config", cfgPath, "-limit", "1", "862", "603"}, &out))
	assert.Len(t, decode(t, &out), 1)
}

func TestRecommendCommand_Pipeline(t *testing.T) {
	pipelinePath, err := filepath.Abs(filepath.Join("..", "..", "configs", "pipeline.yaml"))
	require.NoError(t, err)
	cfgPath := writeConfig(t, t.TempDir(), "  pipeline_path: "+pipelinePath+"\n")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"recommend", "-config", cfgPath, "862", "603"}, &out))
	recs := decode(t, &out)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(8844), recs[0].ItemID)
}

type fixedRecommender []hybrid.Recommendation

func (f fixedRecommender) Run(context.Context, hybrid.Request) ([]hybrid.Recommendation, error) {
	return f, nil
}

func closedServerURL(t *testing.T) string {
	t.Helper()
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()
	return ts.URL
}

func TestRecommendCommand_Remote(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), "")
	down := closedServerURL(t)

	srv := server.New(config.ServerConfig{Addr: ":0", RequestTimeout: 5 * time.Second},
		fixedRecommender{{ItemID: 42, FinalScore: 9}}, zerolog.Nop())
	up := httptest.NewServer(srv.Handler())
	defer up.Close()

	// 第一个不可用时换下一个
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"recommend", "-remote", down + "," + up.URL, "862"}, &out))
	recs := decode(t, &out)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(42), recs[0].ItemID)

	// 都不可用时本地计算
	out.Reset()
	require.NoError(t, run(context.Background(), []string{"recommend", "-config", cfgPath, "-remote", down, "862", "603"}, &out))
	recs = decode(t, &out)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(8844), recs[0].ItemID)

	err := run(context.Background(), []string{"recommend", "-config", cfgPath, "-remote", down, "-fallback=false", "862"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, core.IsUnavailable(err))
}

func TestRecommendCommand_InvalidInput(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir(), "")

	err := run(context.Background(), []string{"recommend", "-config", cfgPath}, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, core.IsInvalidInput(err))
	assert.Equal(t, 2, exitCode(err))

	err = run(context.Background(), []string{"recommend", "-config", cfgPath, "abc"}, &bytes.Buffer{})
	assert.True(t, core.IsInvalidInput(err))
}

func TestImportThenRecommendFromStore(t *testing.T) {
	dir := t.TempDir()
	badgerDir := filepath.Join(dir, "badger")
	cfgPath := writeConfig(t, dir, "store:\n  backend: badger\n  badger_path: "+badgerDir+"\n")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"import-similarity", "-config", cfgPath}, &out))
	assert.Contains(t, out.String(), "imported 2 items into badger")

	// similarity_path 置空，改为从 badger 读取
	raw, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	lines := strings.Split(string(raw), "\n")
	for i, line := range lines {
		if strings.Contains(line, "similarity_path") {
			lines[i] = `  similarity_path: ""`
		}
	}
	storeCfg := writeFile(t, dir, "store.yaml", strings.Join(lines, "\n"))

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"recommend", "-config", storeCfg, "862", "603"}, &out))
	recs := decode(t, &out)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(8844), recs[0].ItemID)
}

func TestRun_Usage(t *testing.T) {
	assert.Equal(t, 0, exitCode(run(context.Background(), nil, &bytes.Buffer{})))
	assert.Error(t, run(context.Background(), []string{"bogus"}, &bytes.Buffer{}))
}
