package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vasuki20/suss-student-discussion-data/config"
	pkgerrors "github.com/vasuki20/suss-student-discussion-data/pkg/errors"
)

// ── 定时触发 ──

// Scheduler 按 cron 表达式定期重新导入
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

func NewScheduler(runner Runner, spec, timezone string, logger *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("无效的时区 %q: %w", timezone, err)
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, func() {
		report, err := runner.Run(context.Background(), TriggerSchedule)
		if err != nil {
			logger.Warn("定时导入未执行", zap.Error(err))
			return
		}
		logger.Info("定时导入完成", zap.String("run_id", report.RunID), zap.String("status", string(report.Status)))
	}); err != nil {
		return nil, fmt.Errorf("无效的 cron 表达式 %q: %w", spec, err)
	}
	return &Scheduler{cron: c, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("定时导入已启动")
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// ── 队列触发 ──

// SQSAPI QueueListener 依赖的最小接口
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// QueueListener 长轮询 SQS，收到消息即触发一次导入。
// 同一批消息合并为一次导入；任务繁忙时不删除消息，等待可见性超时后重投。
type QueueListener struct {
	client   SQSAPI
	queueURL string
	wait     int32
	runner   Runner
	logger   *zap.Logger
	backoff  time.Duration
}

func NewQueueListener(client SQSAPI, cfg config.SQSConfig, runner Runner, logger *zap.Logger) *QueueListener {
	wait := cfg.WaitSeconds
	if wait <= 0 || wait > 20 {
		wait = 20
	}
	return &QueueListener{
		client:   client,
		queueURL: cfg.QueueURL,
		wait:     wait,
		runner:   runner,
		logger:   logger,
		backoff:  5 * time.Second,
	}
}

// NewSQSClient 基于默认凭据链创建 SQS 客户端
func NewSQSClient(ctx context.Context, region string) (*sqs.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("加载 AWS 配置失败: %w", err)
	}
	return sqs.New(sqs.Options{
		Region:       awsCfg.Region,
		Credentials:  awsCfg.Credentials,
		HTTPClient:   awsCfg.HTTPClient,
		BaseEndpoint: awsCfg.BaseEndpoint,
	}), nil
}

// Listen 阻塞直到 ctx 取消
func (l *QueueListener) Listen(ctx context.Context) error {
	l.logger.Info("导入触发队列监听中", zap.String("queue_url", l.queueURL))
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := l.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Warn("读取导入触发队列失败", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(l.backoff):
			}
		}
	}
}

func (l *QueueListener) poll(ctx context.Context) error {
	resp, err := l.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &l.queueURL,
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     l.wait,
	})
	if err != nil {
		return err
	}
	if len(resp.Messages) == 0 {
		return nil
	}

	report, err := l.runner.Run(ctx, TriggerQueue)
	if errors.Is(err, pkgerrors.ErrPipelineBusy) {
		l.logger.Info("导入任务正在运行，消息稍后重投", zap.Int("messages", len(resp.Messages)))
		return nil
	}
	if err != nil {
		return err
	}
	l.logger.Info("队列触发导入完成",
		zap.String("run_id", report.RunID),
		zap.String("status", string(report.Status)),
		zap.Int("messages", len(resp.Messages)),
	)

	for _, msg := range resp.Messages {
		if _, err := l.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &l.queueURL,
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			l.logger.Warn("删除队列消息失败", zap.Error(err))
		}
	}
	return nil
}
