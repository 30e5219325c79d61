package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/vasuki20/suss-student-discussion-data/internal/model"
)

// IngestRunRepository 导入任务记录
type IngestRunRepository interface {
	Create(ctx context.Context, run *model.IngestRun) error
	Update(ctx context.Context, run *model.IngestRun) error
	GetByRunID(ctx context.Context, runID string) (*model.IngestRun, error)
	ListRecent(ctx context.Context, limit int) ([]model.IngestRun, error)
}

type ingestRunRepo struct {
	db *gorm.DB
}

func NewIngestRunRepo(db *gorm.DB) IngestRunRepository {
	return &ingestRunRepo{db: db}
}

func (r *ingestRunRepo) Create(ctx context.Context, run *model.IngestRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *ingestRunRepo) Update(ctx context.Context, run *model.IngestRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *ingestRunRepo) GetByRunID(ctx context.Context, runID string) (*model.IngestRun, error) {
	var run model.IngestRun
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *ingestRunRepo) ListRecent(ctx context.Context, limit int) ([]model.IngestRun, error) {
	var runs []model.IngestRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
