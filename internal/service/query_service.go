package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vasuki20/suss-student-discussion-data/internal/dto"
	"github.com/vasuki20/suss-student-discussion-data/internal/model"
	"github.com/vasuki20/suss-student-discussion-data/internal/repository"
	pkgerrors "github.com/vasuki20/suss-student-discussion-data/pkg/errors"
	"github.com/vasuki20/suss-student-discussion-data/pkg/redis"
)

// ── 查询模块业务错误 ──

var (
	ErrUserNotFound = fmt.Errorf("%w: 用户不存在", pkgerrors.ErrNotFound)
)

const (
	// DefaultLimit Top-N 查询默认条数
	DefaultLimit = 10
	// MaxLimit Top-N 查询上限
	MaxLimit = 100
	// recentEntriesPerTopic 每个话题取最新回帖数
	recentEntriesPerTopic = 5
)

// QueryCache 查询结果缓存，键按数据版本分区，导入提交后版本递增即整体失效
type QueryCache interface {
	Version(ctx context.Context) (int64, error)
	GetJSON(ctx context.Context, key string, dst interface{}) error
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
}

// QueryService 论坛聚合查询接口，全部只读
type QueryService interface {
	UserStats(ctx context.Context, userID int64) (*dto.UserStatsResponse, error)
	ActiveEnrollments(ctx context.Context, userID int64) ([]dto.MyCourseResponse, error)
	// RecentActivity 用户在读课程下每个话题的最新 5 条回帖，按课程、话题顺序展开
	RecentActivity(ctx context.Context, userID int64) ([]dto.RecentActivityResponse, error)
	// ContributionCounts 按作者统计，包含已删除的话题与回帖
	ContributionCounts(ctx context.Context, userID int64) (*dto.ContributionResponse, error)
	NewestCourses(ctx context.Context, limit int) ([]dto.NewestCourseResponse, error)
	ActiveDiscussions(ctx context.Context, limit int) ([]dto.ActiveDiscussionResponse, error)
}

type queryService struct {
	repo   *repository.Repository
	cache  QueryCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewQueryService 创建 QueryService 实例
func NewQueryService(repo *repository.Repository, cache QueryCache, ttl time.Duration, logger *zap.Logger) QueryService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &queryService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// NormalizeLimit <=0 取默认值，超过上限截断
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// cached 命中缓存直接返回；缓存不可用时退化为直接查询
func cached[T any](ctx context.Context, s *queryService, name string, load func() (T, error)) (T, error) {
	if s.cache == nil {
		return load()
	}

	version, err := s.cache.Version(ctx)
	if err != nil {
		s.logger.Warn("读取数据版本失败，跳过缓存", zap.Error(err))
		return load()
	}
	key := fmt.Sprintf("query:%d:%s", version, name)

	var out T
	err = s.cache.GetJSON(ctx, key, &out)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, redis.ErrCacheMiss) {
		s.logger.Warn("读取查询缓存失败", zap.String("key", key), zap.Error(err))
	}

	out, err = load()
	if err != nil {
		return out, err
	}
	if err := s.cache.SetJSON(ctx, key, out, s.ttl); err != nil {
		s.logger.Warn("写入查询缓存失败", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

// ────────────────────── UserStats ──────────────────────

func (s *queryService) UserStats(ctx context.Context, userID int64) (*dto.UserStatsResponse, error) {
	return cached(ctx, s, fmt.Sprintf("user_stats:%d", userID), func() (*dto.UserStatsResponse, error) {
		if _, err := s.repo.User.GetByID(ctx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrUserNotFound
			}
			s.logger.Error("查询用户失败", zap.Int64("user_id", userID), zap.Error(err))
			return nil, err
		}

		enrollments, err := s.repo.Enrollment.CountByUser(ctx, userID)
		if err != nil {
			s.logger.Error("统计选课失败", zap.Error(err))
			return nil, err
		}
		contrib, err := s.contributions(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &dto.UserStatsResponse{
			EnrollmentCount: enrollments,
			TopicCount:      contrib.TopicCount,
			EntryCount:      contrib.EntryCount,
		}, nil
	})
}

// ────────────────────── ActiveEnrollments ──────────────────────

func (s *queryService) ActiveEnrollments(ctx context.Context, userID int64) ([]dto.MyCourseResponse, error) {
	return cached(ctx, s, fmt.Sprintf("active_enrollments:%d", userID), func() ([]dto.MyCourseResponse, error) {
		enrollments, err := s.repo.Enrollment.ListActiveByUser(ctx, userID)
		if err != nil {
			s.logger.Error("查询在读课程失败", zap.Error(err))
			return nil, err
		}

		result := make([]dto.MyCourseResponse, 0, len(enrollments))
		for _, e := range enrollments {
			if e.Course == nil {
				continue
			}
			result = append(result, dto.MyCourseResponse{
				CourseName:     e.Course.Name,
				CourseCode:     e.Course.Code,
				EnrollmentType: string(e.Type),
			})
		}
		return result, nil
	})
}

// ────────────────────── RecentActivity ──────────────────────

func (s *queryService) RecentActivity(ctx context.Context, userID int64) ([]dto.RecentActivityResponse, error) {
	return cached(ctx, s, fmt.Sprintf("recent_activity:%d", userID), func() ([]dto.RecentActivityResponse, error) {
		result := make([]dto.RecentActivityResponse, 0)

		enrollments, err := s.repo.Enrollment.ListActiveByUser(ctx, userID)
		if err != nil {
			s.logger.Error("查询在读课程失败", zap.Error(err))
			return nil, err
		}
		if len(enrollments) == 0 {
			return result, nil
		}
		courseIDs := make([]int64, 0, len(enrollments))
		for _, e := range enrollments {
			courseIDs = append(courseIDs, e.CourseID)
		}

		topics, err := s.repo.Topic.ListByCourses(ctx, courseIDs)
		if err != nil {
			s.logger.Error("查询课程话题失败", zap.Error(err))
			return nil, err
		}
		if len(topics) == 0 {
			return result, nil
		}
		topicIDs := make([]int64, 0, len(topics))
		for _, t := range topics {
			topicIDs = append(topicIDs, t.ID)
		}

		entries, err := s.repo.Entry.ListLatestPerTopic(ctx, topicIDs, recentEntriesPerTopic)
		if err != nil {
			s.logger.Error("查询话题最新回帖失败", zap.Error(err))
			return nil, err
		}
		byTopic := make(map[int64][]model.Entry, len(topics))
		for _, e := range entries {
			byTopic[e.TopicID] = append(byTopic[e.TopicID], e)
		}

		// 外层保持课程、话题顺序，内层为话题内的时间倒序
		for _, t := range topics {
			for _, e := range byTopic[t.ID] {
				result = append(result, dto.RecentActivityResponse{
					TopicTitle:     t.Title,
					TopicContent:   t.Content,
					EntryContent:   e.Content,
					EntryCreatedAt: e.CreatedAt,
				})
			}
		}
		return result, nil
	})
}

// ────────────────────── ContributionCounts ──────────────────────

func (s *queryService) ContributionCounts(ctx context.Context, userID int64) (*dto.ContributionResponse, error) {
	return cached(ctx, s, fmt.Sprintf("contributions:%d", userID), func() (*dto.ContributionResponse, error) {
		return s.contributions(ctx, userID)
	})
}

func (s *queryService) contributions(ctx context.Context, userID int64) (*dto.ContributionResponse, error) {
	topics, err := s.repo.Topic.CountByUser(ctx, userID)
	if err != nil {
		s.logger.Error("统计话题失败", zap.Error(err))
		return nil, err
	}
	entries, err := s.repo.Entry.CountByUser(ctx, userID)
	if err != nil {
		s.logger.Error("统计回帖失败", zap.Error(err))
		return nil, err
	}
	return &dto.ContributionResponse{TopicCount: topics, EntryCount: entries}, nil
}

// ────────────────────── NewestCourses ──────────────────────

func (s *queryService) NewestCourses(ctx context.Context, limit int) ([]dto.NewestCourseResponse, error) {
	limit = NormalizeLimit(limit)
	return cached(ctx, s, fmt.Sprintf("newest_courses:%d", limit), func() ([]dto.NewestCourseResponse, error) {
		courses, err := s.repo.Course.ListNewest(ctx, limit)
		if err != nil {
			s.logger.Error("查询最新课程失败", zap.Error(err))
			return nil, err
		}
		result := make([]dto.NewestCourseResponse, 0, len(courses))
		for _, c := range courses {
			result = append(result, dto.NewestCourseResponse{
				CourseName:      c.Name,
				CourseCode:      c.Code,
				CourseCreatedAt: c.CreatedAt,
			})
		}
		return result, nil
	})
}

// ────────────────────── ActiveDiscussions ──────────────────────

func (s *queryService) ActiveDiscussions(ctx context.Context, limit int) ([]dto.ActiveDiscussionResponse, error) {
	limit = NormalizeLimit(limit)
	return cached(ctx, s, fmt.Sprintf("active_discussions:%d", limit), func() ([]dto.ActiveDiscussionResponse, error) {
		entries, err := s.repo.Entry.ListLatestWithTopic(ctx, limit)
		if err != nil {
			s.logger.Error("查询活跃讨论失败", zap.Error(err))
			return nil, err
		}
		result := make([]dto.ActiveDiscussionResponse, 0, len(entries))
		for _, e := range entries {
			if e.Topic == nil {
				continue
			}
			result = append(result, dto.ActiveDiscussionResponse{
				TopicTitle:     e.Topic.Title,
				TopicContent:   e.Topic.Content,
				EntryCreatedAt: e.CreatedAt,
			})
		}
		return result, nil
	})
}
