package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vasuki20/suss-student-discussion-data/internal/dto"
	"github.com/vasuki20/suss-student-discussion-data/internal/ingest"
	"github.com/vasuki20/suss-student-discussion-data/internal/model"
	"github.com/vasuki20/suss-student-discussion-data/internal/repository"
	pkgerrors "github.com/vasuki20/suss-student-discussion-data/pkg/errors"
)

// ── 导入模块业务错误 ──

var (
	ErrIngestRunNotFound = fmt.Errorf("%w: 导入记录不存在", pkgerrors.ErrNotFound)
)

// IngestService 手动触发导入与任务记录查询
type IngestService interface {
	// Trigger 同步执行一次导入；已有任务在运行时返回 ErrPipelineBusy
	Trigger(ctx context.Context) (*ingest.Report, error)
	ListRuns(ctx context.Context, limit int) ([]dto.IngestRunResponse, error)
	GetRun(ctx context.Context, runID string) (*dto.IngestRunResponse, error)
}

type ingestService struct {
	repo   *repository.Repository
	runner ingest.Runner
	logger *zap.Logger
}

// NewIngestService 创建 IngestService 实例
func NewIngestService(repo *repository.Repository, runner ingest.Runner, logger *zap.Logger) IngestService {
	return &ingestService{repo: repo, runner: runner, logger: logger}
}

// ────────────────────── Trigger ──────────────────────

func (s *ingestService) Trigger(ctx context.Context) (*ingest.Report, error) {
	// 客户端断开不应中断已开始的替换
	report, err := s.runner.Run(context.WithoutCancel(ctx), ingest.TriggerHTTP)
	if err != nil {
		if !errors.Is(err, pkgerrors.ErrPipelineBusy) {
			s.logger.Error("手动导入失败", zap.Error(err))
		}
		return nil, err
	}
	return report, nil
}

// ────────────────────── ListRuns ──────────────────────

func (s *ingestService) ListRuns(ctx context.Context, limit int) ([]dto.IngestRunResponse, error) {
	runs, err := s.repo.IngestRun.ListRecent(ctx, NormalizeLimit(limit))
	if err != nil {
		s.logger.Error("查询导入记录失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.IngestRunResponse, 0, len(runs))
	for i := range runs {
		result = append(result, *toIngestRunResponse(&runs[i], false))
	}
	return result, nil
}

// ────────────────────── GetRun ──────────────────────

func (s *ingestService) GetRun(ctx context.Context, runID string) (*dto.IngestRunResponse, error) {
	run, err := s.repo.IngestRun.GetByRunID(ctx, runID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIngestRunNotFound
		}
		s.logger.Error("查询导入记录失败", zap.String("run_id", runID), zap.Error(err))
		return nil, err
	}
	return toIngestRunResponse(run, true), nil
}

// toIngestRunResponse 列表中省略报告正文
func toIngestRunResponse(run *model.IngestRun, withReport bool) *dto.IngestRunResponse {
	resp := &dto.IngestRunResponse{
		RunID:      run.RunID,
		Trigger:    run.Trigger,
		Status:     string(run.Status),
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
	if withReport && len(run.Report) > 0 {
		resp.Report = json.RawMessage(run.Report)
	}
	return resp
}
