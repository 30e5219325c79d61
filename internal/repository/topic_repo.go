package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/vasuki20/suss-student-discussion-data/internal/model"
)

// TopicFilter 话题列表筛选条件
type TopicFilter struct {
	CourseID int64
	State    model.TopicState
}

// TopicRepository 话题数据访问接口
type TopicRepository interface {
	List(ctx context.Context, filter TopicFilter, offset, limit int) ([]model.Topic, int64, error)
	// ListByCourses 返回指定课程下的全部话题，按 course_id、topic_id 升序
	ListByCourses(ctx context.Context, courseIDs []int64) ([]model.Topic, error)
	CountByUser(ctx context.Context, userID int64) (int64, error)
}

type topicRepo struct {
	db *gorm.DB
}

func NewTopicRepo(db *gorm.DB) TopicRepository {
	return &topicRepo{db: db}
}

func (r *topicRepo) List(ctx context.Context, filter TopicFilter, offset, limit int) ([]model.Topic, int64, error) {
	var topics []model.Topic
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Topic{})
	if filter.CourseID > 0 {
		db = db.Where("course_id = ?", filter.CourseID)
	}
	if filter.State != "" {
		db = db.Where("topic_state = ?", filter.State)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Offset(offset).Limit(limit).
		Order("topic_id ASC").
		Find(&topics).Error; err != nil {
		return nil, 0, err
	}
	return topics, total, nil
}

func (r *topicRepo) ListByCourses(ctx context.Context, courseIDs []int64) ([]model.Topic, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	var topics []model.Topic
	err := r.db.WithContext(ctx).
		Where("course_id IN ?", courseIDs).
		Order("course_id ASC").Order("topic_id ASC").
		Find(&topics).Error
	return topics, err
}

func (r *topicRepo) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Topic{}).
		Where("topic_posted_by_user_id = ?", userID).
		Count(&n).Error
	return n, err
}
