package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/moviematch/model"
	"github.com/rushteam/moviematch/store"
)

// EnvPrefix 是环境变量前缀：MOVIEMATCH_SERVER_ADDR -> server.addr
const EnvPrefix = "MOVIEMATCH_"

// ConfigPathEnvVar 指定配置文件路径的环境变量。
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths 按顺序查找的配置文件。
var DefaultConfigPaths = []string{
	"moviematch.yaml",
	"moviematch.yml",
	"/etc/moviematch/config.yaml",
}

// AppConfig 是服务的完整配置。优先级：环境变量 > 配置文件 > 默认值。
type AppConfig struct {
	Server ServerConfig    `koanf:"server"`
	Data   DataConfig      `koanf:"data"`
	Store  store.Config    `koanf:"store"`
	Model  model.SVDConfig `koanf:"model"`
	Blend  BlendConfig     `koanf:"blend"`
	Log    LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Addr           string        `koanf:"addr" validate:"required"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	// RateLimit 每个 IP 每分钟的 /predict 请求数，0 表示不限
	RateLimit int `koanf:"rate_limit" validate:"gte=0"`
}

type DataConfig struct {
	RatingsPath string `koanf:"ratings_path" validate:"required"`
	// SimilarityPath 为空时从 Store 读取相似度表（需先 import-similarity）
	SimilarityPath      string `koanf:"similarity_path"`
	SimilarityKeyPrefix string `koanf:"similarity_key_prefix"`
	// PipelinePath 可选的 Pipeline YAML，为空时使用内置 Pipeline
	PipelinePath string `koanf:"pipeline_path"`
	// BlacklistKey 可选，Store 中黑名单的 key
	BlacklistKey string `koanf:"blacklist_key"`
}

type BlendConfig struct {
	WeightCollaborative float64 `koanf:"weight_collaborative" validate:"gte=0"`
	WeightContent       float64 `koanf:"weight_content" validate:"gte=0"`
	DuplicateAlpha      float64 `koanf:"duplicate_alpha" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// DefaultAppConfig 返回默认配置。
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:           ":4000",
			RequestTimeout: 60 * time.Second,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   90 * time.Second,
			RateLimit:      60,
		},
		Data: DataConfig{
			RatingsPath:         "data/ratings.csv",
			SimilarityPath:      "data/content_based.csv",
			SimilarityKeyPrefix: "similarity",
		},
		Store: store.Config{Backend: store.BackendMemory},
		Model: model.DefaultSVDConfig(),
		Blend: BlendConfig{
			WeightCollaborative: 1,
			WeightContent:       5,
			DuplicateAlpha:      0.1,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load 依次加载默认值、配置文件（CONFIG_PATH 或默认路径，可选）、MOVIEMATCH_* 环境变量，并校验。
func Load() (*AppConfig, error) {
	return LoadFile(findConfigFile())
}

// LoadFile 与 Load 相同，但使用指定的配置文件；path 为空时跳过文件层。
func LoadFile(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultAppConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &AppConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate 校验配置。
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Blend.WeightCollaborative == 0 && c.Blend.WeightContent == 0 {
		return fmt.Errorf("blend: weight_collaborative and weight_content cannot both be 0")
	}
	return nil
}

// envTransform: MOVIEMATCH_SERVER_REQUEST_TIMEOUT -> server.request_timeout
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + rest
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
