package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vasuki20/suss-student-discussion-data/config"
	"github.com/vasuki20/suss-student-discussion-data/internal/model"
	pkgerrors "github.com/vasuki20/suss-student-discussion-data/pkg/errors"
)

// Source 一张表的数据来源（导出文件）
type Source interface {
	// Name 用于日志与报告，同时决定文件格式（按扩展名）
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ── 本地文件 ──

// LocalFile 本地导出文件
type LocalFile struct {
	Path string
}

func (f LocalFile) Name() string { return f.Path }

func (f LocalFile) Open(ctx context.Context) (io.ReadCloser, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrSourceUnavailable, err)
	}
	return file, nil
}

// ── S3 对象 ──

// S3API S3Object 依赖的最小接口
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Object 对象存储中的导出文件
type S3Object struct {
	Client S3API
	Bucket string
	Key    string
}

func (o S3Object) Name() string { return "s3://" + o.Bucket + "/" + o.Key }

func (o S3Object) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := o.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.Bucket),
		Key:    aws.String(o.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: 获取 %s 失败: %v", pkgerrors.ErrSourceUnavailable, o.Name(), err)
	}
	return resp.Body, nil
}

// NewS3Client 基于默认凭据链创建 S3 客户端；endpoint 非空时指向兼容服务（如 localstack、minio）
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("加载 AWS 配置失败: %w", err)
	}

	opts := s3.Options{
		Region:       awsCfg.Region,
		Credentials:  awsCfg.Credentials,
		HTTPClient:   awsCfg.HTTPClient,
		BaseEndpoint: awsCfg.BaseEndpoint,
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts), nil
}

// ── 导入计划 ──

// PlanFromConfig 按默认导入顺序和配置的文件名生成导入计划
func PlanFromConfig(cfg config.IngestConfig, s3Client S3API) ([]LoadSpec, error) {
	files := config.DefaultFiles()
	for table, name := range cfg.Files {
		files[table] = name
	}

	sourceFor := func(table model.Table) (Source, error) {
		name, ok := files[string(table)]
		if !ok || name == "" {
			return nil, fmt.Errorf("未配置表 %s 的数据文件", table)
		}
		switch cfg.Source {
		case "s3":
			if s3Client == nil {
				return nil, fmt.Errorf("数据源为 s3 但未初始化 S3 客户端")
			}
			return S3Object{Client: s3Client, Bucket: cfg.S3.Bucket, Key: path.Join(cfg.S3.Prefix, name)}, nil
		default:
			return LocalFile{Path: filepath.Join(cfg.Dir, name)}, nil
		}
	}
	return DefaultPlan(sourceFor)
}
