package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/moviematch/config"
	"github.com/rushteam/moviematch/config/builders"
	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/dataset"
	"github.com/rushteam/moviematch/filter"
	"github.com/rushteam/moviematch/hybrid"
	"github.com/rushteam/moviematch/pipeline"
	"github.com/rushteam/moviematch/recall"
	"github.com/rushteam/moviematch/store"
)

// app 持有进程级资源：评分集、相似度表、Store 与 Recommender。
type app struct {
	cfg         *config.AppConfig
	ratings     *dataset.RatingSet
	similarity  recall.SimilarityIndex
	store       core.Store
	recommender *hybrid.Recommender
}

// newApp 按配置加载离线数据并装配推荐 Pipeline。
//
// 相似度表优先从 data.similarity_path 的 CSV 读入内存；路径为空时从 Store 读取
// （需先执行 import-similarity）。
//
//nolint:gocritic // zerolog.Logger 按值传递
func newApp(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (*app, error) {
	ratings, err := dataset.LoadRatingsFile(cfg.Data.RatingsPath)
	if err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}
	logger.Info().
		Str("path", cfg.Data.RatingsPath).
		Int("ratings", ratings.Len()).
		Int("users", len(ratings.Users())).
		Int("items", len(ratings.Items())).
		Msg("ratings loaded")

	s, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, ratings: ratings, store: s}

	if cfg.Data.SimilarityPath != "" {
		table, err := dataset.LoadSimilarityFile(cfg.Data.SimilarityPath)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("load similarity table: %w", err)
		}
		logger.Info().Str("path", cfg.Data.SimilarityPath).Int("items", table.Len()).Msg("similarity table loaded")
		a.similarity = table
	} else {
		logger.Info().Str("backend", s.Name()).Msg("reading similarity table from store")
		a.similarity = recall.NewStoreSimilarityAdapter(s, cfg.Data.SimilarityKeyPrefix)
	}

	rec, err := a.buildRecommender(ctx, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.recommender = rec
	return a, nil
}

//nolint:gocritic // zerolog.Logger 按值传递
func (a *app) buildRecommender(_ context.Context, logger zerolog.Logger) (*hybrid.Recommender, error) {
	if path := a.cfg.Data.PipelinePath; path != "" {
		pc, err := pipeline.LoadFromYAML(path)
		if err != nil {
			return nil, fmt.Errorf("load pipeline: %w", err)
		}
		factory := builders.Factory(builders.Deps{
			Ratings:    a.ratings,
			Similarity: a.similarity,
			Store:      a.store,
			SVD:        a.cfg.Model,
			Logger:     logger,
		})
		if err := config.ValidatePipelineConfig(pc, factory); err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", path, err)
		}
		p, err := pc.BuildPipeline(factory)
		if err != nil {
			return nil, fmt.Errorf("build pipeline %s: %w", pc.Pipeline.Name, err)
		}
		logger.Info().Str("path", path).Int("nodes", len(p.Nodes)).Msg("pipeline loaded")
		return hybrid.NewWithPipeline(a.ratings, p, logger), nil
	}

	opts := hybrid.Options{
		WeightCollaborative: a.cfg.Blend.WeightCollaborative,
		WeightContent:       a.cfg.Blend.WeightContent,
		DuplicateAlpha:      a.cfg.Blend.DuplicateAlpha,
		SVD:                 a.cfg.Model,
		Logger:              logger,
	}
	if key := a.cfg.Data.BlacklistKey; key != "" {
		opts.Filters = append(opts.Filters, filter.NewBlacklistFilter(nil, filter.NewStoreAdapter(a.store), key))
	}
	return hybrid.New(a.ratings, a.similarity, opts)
}

func openStore(cfg *config.AppConfig) (core.Store, error) {
	s, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

// importSimilarity 把 CSV 相似度表写入 Store，返回写入的物品数。
func (a *app) importSimilarity(ctx context.Context, path string, batchSize int) (int, error) {
	if path == "" {
		return 0, errors.New("similarity csv path is required")
	}
	table, err := dataset.LoadSimilarityFile(path)
	if err != nil {
		return 0, fmt.Errorf("load similarity table: %w", err)
	}
	adapter := recall.NewStoreSimilarityAdapter(a.store, a.cfg.Data.SimilarityKeyPrefix)
	return adapter.Import(ctx, table, batchSize)
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
