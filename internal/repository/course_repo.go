package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/vasuki20/suss-student-discussion-data/internal/model"
)

// CourseFilter 课程列表筛选条件
type CourseFilter struct {
	Semester string
}

// CourseRepository 课程数据访问接口
type CourseRepository interface {
	List(ctx context.Context, filter CourseFilter, offset, limit int) ([]model.Course, int64, error)
	// ListNewest 按创建时间倒序，同一时间按 course_id 升序
	ListNewest(ctx context.Context, limit int) ([]model.Course, error)
}

type courseRepo struct {
	db *gorm.DB
}

func NewCourseRepo(db *gorm.DB) CourseRepository {
	return &courseRepo{db: db}
}

func (r *courseRepo) List(ctx context.Context, filter CourseFilter, offset, limit int) ([]model.Course, int64, error) {
	var courses []model.Course
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Course{})
	if filter.Semester != "" {
		db = db.Where("semester = ?", filter.Semester)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Offset(offset).Limit(limit).
		Order("course_id ASC").
		Find(&courses).Error; err != nil {
		return nil, 0, err
	}
	return courses, total, nil
}

func (r *courseRepo) ListNewest(ctx context.Context, limit int) ([]model.Course, error) {
	var courses []model.Course
	err := r.db.WithContext(ctx).
		Order("course_created_at DESC").
		Order("course_id ASC").
		Limit(limit).
		Find(&courses).Error
	return courses, err
}
