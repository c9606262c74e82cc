// Command moviematch 是混合电影推荐服务。
//
//	moviematch serve                         启动 HTTP 服务
//	moviematch recommend 862 8844            直接计算推荐（或 -remote 依次调用远程服务，都不可用时本地计算）
//	moviematch import-similarity -from x.csv 把相似度表写入 redis / badger
//
// 配置来自 CONFIG_PATH 指定的 YAML（或 -config）与 MOVIEMATCH_* 环境变量。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/moviematch/config"
	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/hybrid"
	"github.com/rushteam/moviematch/pkg/logging"
	"github.com/rushteam/moviematch/server"
	"github.com/rushteam/moviematch/service"
	"github.com/rushteam/moviematch/store"
)

const usage = `usage: moviematch <command> [flags]

commands:
  serve               start the HTTP server
  recommend ID...     print recommendations for the liked movie ids
  import-similarity   load the content similarity CSV into the configured store
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		logging.Error().Err(err).Msg("moviematch failed")
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, flag.ErrHelp):
		return 0
	case core.IsInvalidInput(err):
		return 2
	default:
		return 1
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return flag.ErrHelp
	}
	switch args[0] {
	case "serve":
		return runServe(ctx, args[1:])
	case "recommend":
		return runRecommend(ctx, args[1:], stdout)
	case "import-similarity":
		return runImport(ctx, args[1:], stdout)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stderr, usage)
		return flag.ErrHelp
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// loadConfig 加载配置并初始化全局日志。
func loadConfig(path string) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Caller:    cfg.Log.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	return cfg, nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file (default: $CONFIG_PATH or moviematch.yaml)")
	addr := fs.String("addr", "", "listen address, overrides server.addr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	a, err := newApp(ctx, cfg, logging.Component("app"))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Error().Err(err).Msg("close store")
		}
	}()

	return server.New(cfg.Server, a.recommender, logging.Component("server")).ListenAndServe(ctx)
}

func runRecommend(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file (default: $CONFIG_PATH or moviematch.yaml)")
	remote := fs.String("remote", "", "comma-separated server URLs, tried in order before computing locally")
	fallback := fs.Bool("fallback", true, "compute locally when no -remote server is reachable")
	limit := fs.Int("limit", 0, "return only the top N results (0 = all)")
	timeout := fs.Duration("timeout", 2*time.Minute, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	liked := make([]int64, 0, fs.NArg())
	for _, arg := range fs.Args() {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return core.NewInvalidInputError(core.ModuleRecommend, fmt.Sprintf("invalid movie id %q", arg))
		}
		liked = append(liked, id)
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	req := hybrid.Request{Liked: liked, Limit: *limit}

	var recs []hybrid.Recommendation
	var err error
	if *remote == "" {
		recs, err = recommendLocal(ctx, *configPath, req)
	} else {
		recs, err = recommendRemote(ctx, *remote, *timeout, req)
	}
	switch {
	case err == nil:
	case *remote != "" && *fallback && core.IsUnavailable(err):
		logging.Warn().Err(err).Msg("no server reachable, computing locally")
		if recs, err = recommendLocal(ctx, *configPath, req); err != nil {
			return err
		}
	default:
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// recommendRemote 依次尝试各个服务端，只有 UNAVAILABLE 才换下一个。
// 没有配置服务端时直接返回 UNAVAILABLE。
func recommendRemote(ctx context.Context, endpoints string, timeout time.Duration, req hybrid.Request) ([]hybrid.Recommendation, error) {
	var err error = core.NewDomainError(service.ModuleService, core.ErrorCodeUnavailable, "no server configured")
	for _, endpoint := range strings.Split(endpoints, ",") {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint == "" {
			continue
		}
		var recs []hybrid.Recommendation
		recs, err = service.NewClient(endpoint, service.WithTimeout(timeout)).Run(ctx, req)
		if err == nil {
			return recs, nil
		}
		if !core.IsUnavailable(err) {
			return nil, err
		}
		logging.Debug().Err(err).Str("endpoint", endpoint).Msg("server unavailable")
	}
	return nil, err
}

func recommendLocal(ctx context.Context, configPath string, req hybrid.Request) ([]hybrid.Recommendation, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	a, err := newApp(ctx, cfg, logging.Component("app"))
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return a.recommender.Run(ctx, req)
}

func runImport(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("import-similarity", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file (default: $CONFIG_PATH or moviematch.yaml)")
	from := fs.String("from", "", "similarity CSV (default: data.similarity_path)")
	batch := fs.Int("batch", 500, "items per batch write")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	path := *from
	if path == "" {
		path = cfg.Data.SimilarityPath
	}

	// 只需要 Store，不加载评分集
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	a := &app{cfg: cfg, store: s}
	defer a.Close()

	if s.Name() == store.BackendMemory {
		logging.Warn().Msg("store backend is memory; imported data is lost on exit")
	}

	start := time.Now()
	n, err := a.importSimilarity(ctx, path, *batch)
	if err != nil {
		return err
	}
	logging.Info().
		Str("path", path).
		Str("backend", s.Name()).
		Int("items", n).
		Dur("elapsed", time.Since(start)).
		Msg("similarity table imported")
	_, err = fmt.Fprintf(stdout, "imported %d items into %s\n", n, s.Name())
	return err
}
