package service

import (
	"go.uber.org/zap"

	"github.com/vasuki20/suss-student-discussion-data/config"
	"github.com/vasuki20/suss-student-discussion-data/internal/ingest"
	"github.com/vasuki20/suss-student-discussion-data/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Query   QueryService
	Catalog CatalogService
	Ingest  IngestService
}

// NewService 创建 Service 聚合
// cache 为 nil 时不缓存查询结果
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	runner ingest.Runner,
	cache QueryCache,
	logger *zap.Logger,
) *Service {
	if !cfg.Cache.Enabled {
		cache = nil
	}
	return &Service{
		Query:   NewQueryService(repo, cache, cfg.Cache.TTL, logger),
		Catalog: NewCatalogService(repo, logger),
		Ingest:  NewIngestService(repo, runner, logger),
	}
}
