package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/vasuki20/suss-student-discussion-data/internal/model"
)

// EnrollmentFilter 选课列表筛选条件
type EnrollmentFilter struct {
	UserID   int64
	CourseID int64
	State    model.EnrollmentState
}

// EnrollmentRepository 选课数据访问接口
type EnrollmentRepository interface {
	List(ctx context.Context, filter EnrollmentFilter, offset, limit int) ([]model.Enrollment, int64, error)
	// ListActiveByUser 返回用户 ACTIVE 状态的选课（预加载课程），按 course_id 升序
	ListActiveByUser(ctx context.Context, userID int64) ([]model.Enrollment, error)
	CountByUser(ctx context.Context, userID int64) (int64, error)
}

type enrollmentRepo struct {
	db *gorm.DB
}

func NewEnrollmentRepo(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepo{db: db}
}

func (r *enrollmentRepo) List(ctx context.Context, filter EnrollmentFilter, offset, limit int) ([]model.Enrollment, int64, error) {
	var rows []model.Enrollment
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Enrollment{})
	if filter.UserID > 0 {
		db = db.Where("user_id = ?", filter.UserID)
	}
	if filter.CourseID > 0 {
		db = db.Where("course_id = ?", filter.CourseID)
	}
	if filter.State != "" {
		db = db.Where("enrollment_state = ?", filter.State)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Offset(offset).Limit(limit).
		Order("user_id ASC").Order("course_id ASC").
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *enrollmentRepo) ListActiveByUser(ctx context.Context, userID int64) ([]model.Enrollment, error) {
	var rows []model.Enrollment
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ? AND enrollment_state = ?", userID, model.EnrollmentStateActive).
		Order("course_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *enrollmentRepo) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Enrollment{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n, err
}
