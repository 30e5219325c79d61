package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vasuki20/suss-student-discussion-data/internal/model"
	pkgerrors "github.com/vasuki20/suss-student-discussion-data/pkg/errors"
)

// Runner 触发器依赖的最小接口
type Runner interface {
	Run(ctx context.Context, trigger Trigger) (*Report, error)
}

// RunRecorder 持久化导入任务记录
type RunRecorder interface {
	Create(ctx context.Context, run *model.IngestRun) error
	Update(ctx context.Context, run *model.IngestRun) error
}

// VersionBumper 数据提交后使查询缓存失效
type VersionBumper interface {
	BumpVersion(ctx context.Context) (int64, error)
}

// Options Pipeline 可选依赖，nil 表示不启用
type Options struct {
	Recorder    RunRecorder
	Cache       VersionBumper
	Notifier    Notifier
	Concurrency int
}

// Pipeline 导入任务：并发读取全部数据源，按计划顺序逐表写入，再逆序删除旧行。
// 同一时刻只允许一个任务运行。
type Pipeline struct {
	loader *Loader
	plan   []LoadSpec
	opts   Options
	logger *zap.Logger
	mu     sync.Mutex
}

func NewPipeline(loader *Loader, plan []LoadSpec, opts Options, logger *zap.Logger) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Pipeline{loader: loader, plan: plan, opts: opts, logger: logger}
}

// Run 执行一次完整导入；已有任务在运行时立即返回 ErrPipelineBusy
func (p *Pipeline) Run(ctx context.Context, trigger Trigger) (*Report, error) {
	if !p.mu.TryLock() {
		return nil, pkgerrors.ErrPipelineBusy
	}
	defer p.mu.Unlock()

	report := &Report{
		RunID:     uuid.New().String(),
		Trigger:   trigger,
		Status:    model.IngestRunRunning,
		StartedAt: time.Now().UTC(),
	}
	log := p.logger.With(zap.String("run_id", report.RunID), zap.String("trigger", string(trigger)))
	log.Info("导入任务开始", zap.Int("tables", len(p.plan)))

	run := p.recordStart(ctx, report, log)

	// 1. 并发读取数据源；单个数据源失败不影响其他表
	batches := make([]*Batch, len(p.plan))
	readErrs := make([]error, len(p.plan))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, spec := range p.plan {
		g.Go(func() error {
			batches[i], readErrs[i] = ReadBatch(gctx, spec.Source)
			return nil
		})
	}
	_ = g.Wait()

	// 2. 按计划顺序写入新批次，旧行暂时保留
	keeps := make([][]string, len(p.plan))
	known := make(refSets, len(p.plan))
	for i, spec := range p.plan {
		if err := ctx.Err(); err != nil {
			rep := &TableReport{Table: spec.Table, Source: spec.Source.Name()}
			rep.fail(err)
			report.Tables = append(report.Tables, rep)
			continue
		}
		if readErrs[i] != nil {
			rep := &TableReport{Table: spec.Table, Source: spec.Source.Name()}
			rep.fail(readErrs[i])
			report.Tables = append(report.Tables, rep)
			log.Warn("数据源不可用，保留原表数据",
				zap.String("table", string(spec.Table)),
				zap.Error(readErrs[i]),
			)
			continue
		}
		rep, keep, err := p.loader.stage(ctx, spec, batches[i], known)
		report.Tables = append(report.Tables, rep)
		if err == nil {
			keeps[i] = keep
		}
	}

	// 3. 逆序删除旧行：子表先于父表，父表删除时不再被新批次之外的子行引用
	for i := len(p.plan) - 1; i >= 0; i-- {
		if keeps[i] == nil {
			continue
		}
		_ = p.loader.prune(ctx, report.Tables[i], keeps[i])
	}

	report.finish(time.Now().UTC())

	// 4. 收尾：缓存失效、持久化、通知
	if report.Committed() && p.opts.Cache != nil {
		if v, err := p.opts.Cache.BumpVersion(ctx); err != nil {
			log.Warn("更新缓存数据版本失败", zap.Error(err))
		} else {
			log.Debug("缓存数据版本已更新", zap.Int64("version", v))
		}
	}
	p.recordFinish(ctx, run, report, log)
	if p.opts.Notifier != nil {
		if err := p.opts.Notifier.Publish(ctx, report); err != nil {
			log.Warn("发送导入通知失败", zap.Error(err))
		}
	}

	log.Info("导入任务结束",
		zap.String("status", string(report.Status)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

func (p *Pipeline) recordStart(ctx context.Context, report *Report, log *zap.Logger) *model.IngestRun {
	if p.opts.Recorder == nil {
		return nil
	}
	run := &model.IngestRun{
		RunID:     report.RunID,
		Trigger:   string(report.Trigger),
		Status:    model.IngestRunRunning,
		StartedAt: report.StartedAt,
		Report:    []byte("{}"),
	}
	if err := p.opts.Recorder.Create(ctx, run); err != nil {
		log.Warn("记录导入任务失败", zap.Error(err))
		return nil
	}
	return run
}

func (p *Pipeline) recordFinish(ctx context.Context, run *model.IngestRun, report *Report, log *zap.Logger) {
	if run == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		log.Warn("序列化导入报告失败", zap.Error(err))
		return
	}
	finished := report.FinishedAt
	run.Status = report.Status
	run.FinishedAt = &finished
	run.Report = data
	// 任务被取消时仍需落库
	if err := p.opts.Recorder.Update(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("更新导入任务记录失败", zap.Error(err))
	}
}
