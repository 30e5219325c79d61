package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/vasuki20/suss-student-discussion-data/internal/dto"
	"github.com/vasuki20/suss-student-discussion-data/internal/model"
	"github.com/vasuki20/suss-student-discussion-data/internal/repository"
)

// CatalogService 原始表分页浏览接口
// 用户列表不包含登录标识
type CatalogService interface {
	ListCourses(ctx context.Context, req *dto.CourseListRequest) ([]model.Course, int64, error)
	ListUsers(ctx context.Context, req *dto.UserListRequest) ([]model.User, int64, error)
	ListTopics(ctx context.Context, req *dto.TopicListRequest) ([]model.Topic, int64, error)
	ListEntries(ctx context.Context, req *dto.EntryListRequest) ([]model.Entry, int64, error)
	ListEnrollments(ctx context.Context, req *dto.EnrollmentListRequest) ([]model.Enrollment, int64, error)
}

type catalogService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewCatalogService 创建 CatalogService 实例
func NewCatalogService(repo *repository.Repository, logger *zap.Logger) CatalogService {
	return &catalogService{repo: repo, logger: logger}
}

// parseState 空值不过滤；非法值返回 ErrInvalidEnumValue
func parseState[T ~string](label string, parse func(string) (T, error)) (T, error) {
	if label == "" {
		return "", nil
	}
	return parse(label)
}

// ────────────────────── Courses ──────────────────────

func (s *catalogService) ListCourses(ctx context.Context, req *dto.CourseListRequest) ([]model.Course, int64, error) {
	filter := repository.CourseFilter{Semester: req.Semester}
	courses, total, err := s.repo.Course.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询课程列表失败", zap.Error(err))
		return nil, 0, err
	}
	return courses, total, nil
}

// ────────────────────── Users ──────────────────────

func (s *catalogService) ListUsers(ctx context.Context, req *dto.UserListRequest) ([]model.User, int64, error) {
	state, err := parseState(req.State, model.ParseUserState)
	if err != nil {
		return nil, 0, err
	}
	users, total, err := s.repo.User.List(ctx, repository.UserFilter{State: state}, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询用户列表失败", zap.Error(err))
		return nil, 0, err
	}
	return users, total, nil
}

// ────────────────────── Topics ──────────────────────

func (s *catalogService) ListTopics(ctx context.Context, req *dto.TopicListRequest) ([]model.Topic, int64, error) {
	state, err := parseState(req.State, model.ParseTopicState)
	if err != nil {
		return nil, 0, err
	}
	filter := repository.TopicFilter{CourseID: req.CourseID, State: state}
	topics, total, err := s.repo.Topic.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询话题列表失败", zap.Error(err))
		return nil, 0, err
	}
	return topics, total, nil
}

// ────────────────────── Entries ──────────────────────

func (s *catalogService) ListEntries(ctx context.Context, req *dto.EntryListRequest) ([]model.Entry, int64, error) {
	state, err := parseState(req.State, model.ParseEntryState)
	if err != nil {
		return nil, 0, err
	}
	filter := repository.EntryFilter{TopicID: req.TopicID, State: state}
	entries, total, err := s.repo.Entry.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询回帖列表失败", zap.Error(err))
		return nil, 0, err
	}
	return entries, total, nil
}

// ────────────────────── Enrollments ──────────────────────

func (s *catalogService) ListEnrollments(ctx context.Context, req *dto.EnrollmentListRequest) ([]model.Enrollment, int64, error) {
	state, err := parseState(req.State, model.ParseEnrollmentState)
	if err != nil {
		return nil, 0, err
	}
	filter := repository.EnrollmentFilter{UserID: req.UserID, CourseID: req.CourseID, State: state}
	enrollments, total, err := s.repo.Enrollment.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询选课列表失败", zap.Error(err))
		return nil, 0, err
	}
	return enrollments, total, nil
}
