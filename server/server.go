// Package server 提供推荐服务的 HTTP 接口（chi 路由）。
//
//	GET  /          欢迎信息
//	POST /predict   {"favorite_movies":[862, 8844]} -> [{"tmdb_id":..., "final_score":...}]
//	GET  /healthz   存活检查
//	GET  /metrics   Prometheus 指标
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/moviematch/config"
	"github.com/rushteam/moviematch/hybrid"
)

// Recommender 是 HTTP 层依赖的推荐入口。
type Recommender interface {
	Run(ctx context.Context, req hybrid.Request) ([]hybrid.Recommendation, error)
}

// Server 包装 http.Server 与路由。
type Server struct {
	cfg    config.ServerConfig
	rec    Recommender
	logger zerolog.Logger
	http   *http.Server
}

// New 创建服务，路由在创建时装配完成。
//
//nolint:gocritic // zerolog.Logger 按值传递
func New(cfg config.ServerConfig, rec Recommender, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		rec:    rec,
		logger: logger,
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s
}

// ListenAndServe 启动服务，ctx 取消后优雅退出。
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info().Msg("http server shutting down")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
