package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/aipower/config"
	"github.com/feichai0017/aipower/internal/models"
	"github.com/feichai0017/aipower/internal/store"
	"github.com/feichai0017/aipower/pkg/logger"
	"github.com/feichai0017/aipower/pkg/ollama"
)

const (
	activeModelKey   = "ai_power:active_model"
	pullProgressKey  = "ai_power:pull_progress:"
	activeModelStore = "active_model"
	// 拉取进度的保留时间，断线重连的前端靠它恢复进度条
	pullProgressTTL = 30 * time.Minute
)

// ErrModelNotInstalled 目标模型未安装
var ErrModelNotInstalled = errors.New("model not installed")

// ErrPullNotFound 没有该模型的拉取进度记录
var ErrPullNotFound = errors.New("no pull in progress for model")

// OllamaAPI 模型管理用到的 Ollama 操作
type OllamaAPI interface {
	ListModels(ctx context.Context) ([]models.ModelInfo, error)
	Pull(ctx context.Context, model string, onProgress func(ollama.PullEvent) error) error
	DeleteModel(ctx context.Context, model string) error
}

// SettingsStore 持久化配置
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// RedisKV 激活模型与拉取进度用到的 Redis 操作子集
type RedisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Service 模型管理：激活模型的选择、模型安装与删除
type Service struct {
	api      OllamaAPI
	settings SettingsStore
	rdb      RedisKV
	log      logger.Logger
}

// NewService 创建模型管理服务
func NewService(api OllamaAPI, settings SettingsStore, rdb RedisKV, log logger.Logger) *Service {
	return &Service{
		api:      api,
		settings: settings,
		rdb:      rdb,
		log:      log.Named("model"),
	}
}

// NewRedisClient 创建模型服务用的 Redis 连接
func NewRedisClient() *redis.Client {
	cfg := config.GetRedisConfig()
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// ListModels 列出已安装模型并标记当前激活的
func (s *Service) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	infos, err := s.api.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.GetActive(ctx)
	if err != nil {
		s.log.Warn("failed to resolve active model", logger.Error(err))
		active = config.GetOllamaConfig().DefaultModel
	}
	for i := range infos {
		infos[i].IsActive = infos[i].Name == active
	}
	return infos, nil
}

// GetActive 当前激活模型。Redis 优先，settings 兜底，都没有用默认值。
func (s *Service) GetActive(ctx context.Context) (string, error) {
	if name, err := s.rdb.Get(ctx, activeModelKey).Result(); err == nil && name != "" {
		return name, nil
	} else if err != nil && !errors.Is(err, redis.Nil) {
		s.log.Warn("redis lookup of active model failed", logger.Error(err))
	}

	if name, err := s.settings.GetSetting(ctx, activeModelStore); err == nil && name != "" {
		// 回填 Redis 缓存
		if err := s.rdb.Set(ctx, activeModelKey, name, 0).Err(); err != nil {
			s.log.Warn("failed to cache active model", logger.Error(err))
		}
		return name, nil
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	return config.GetOllamaConfig().DefaultModel, nil
}

// SetActive 切换激活模型，要求目标模型已安装
func (s *Service) SetActive(ctx context.Context, name string) error {
	installed, err := s.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list installed models: %w", err)
	}
	found := false
	for _, m := range installed {
		if m.Name == name {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrModelNotInstalled, name)
	}

	if err := s.settings.SetSetting(ctx, activeModelStore, name); err != nil {
		return fmt.Errorf("failed to persist active model: %w", err)
	}
	if err := s.rdb.Set(ctx, activeModelKey, name, 0).Err(); err != nil {
		s.log.Warn("failed to cache active model", logger.Error(err))
	}
	s.log.Info("switched active model", logger.String("model", name))
	return nil
}

// Pull 拉取模型。进度同时回调 onProgress 并写入 Redis，
// 客户端断线后可以用 PullStatus 继续跟踪。
func (s *Service) Pull(ctx context.Context, name string, onProgress func(*models.PullProgress) error) error {
	err := s.api.Pull(ctx, name, func(ev ollama.PullEvent) error {
		progress := &models.PullProgress{
			Model:     name,
			Status:    ev.Status,
			Completed: ev.Completed,
			Total:     ev.Total,
			Details:   ev.Digest,
		}
		if ev.Total > 0 {
			progress.Progress = int(ev.Completed * 100 / ev.Total)
		}
		if ev.Status == "success" {
			progress.Progress = 100
		}
		s.saveProgress(ctx, progress)
		if onProgress != nil {
			return onProgress(progress)
		}
		return nil
	})
	if err != nil {
		s.saveProgress(ctx, &models.PullProgress{
			Model:   name,
			Status:  "failed",
			Details: err.Error(),
		})
		return fmt.Errorf("pull %s failed: %w", name, err)
	}
	return nil
}

// PullStatus 查询正在进行或刚结束的拉取进度
func (s *Service) PullStatus(ctx context.Context, name string) (*models.PullProgress, error) {
	data, err := s.rdb.Get(ctx, pullProgressKey+name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrPullNotFound, name)
		}
		return nil, err
	}
	var progress models.PullProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, fmt.Errorf("failed to decode pull progress: %w", err)
	}
	return &progress, nil
}

// Delete 删除模型，不允许删除当前激活模型
func (s *Service) Delete(ctx context.Context, name string) error {
	active, err := s.GetActive(ctx)
	if err != nil {
		return err
	}
	if name == active {
		return fmt.Errorf("cannot delete active model %s", name)
	}
	if err := s.api.DeleteModel(ctx, name); err != nil {
		return err
	}
	s.log.Info("deleted model", logger.String("model", name))
	return nil
}

func (s *Service) saveProgress(ctx context.Context, p *models.PullProgress) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, pullProgressKey+p.Model, data, pullProgressTTL).Err(); err != nil {
		s.log.Warn("failed to save pull progress",
			logger.String("model", p.Model),
			logger.Error(err),
		)
	}
}
