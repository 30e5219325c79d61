package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/vasuki20/suss-student-discussion-data/internal/model"
)

// EntryFilter 回帖列表筛选条件
type EntryFilter struct {
	TopicID int64
	State   model.EntryState
}

// EntryRepository 回帖数据访问接口
type EntryRepository interface {
	List(ctx context.Context, filter EntryFilter, offset, limit int) ([]model.Entry, int64, error)
	CountByUser(ctx context.Context, userID int64) (int64, error)
	// ListLatestPerTopic 每个话题取最新 perTopic 条回帖：created_at 倒序，
	// 同一时间按源数据行号（即导入顺序）升序，行号相同再按 entry_id
	ListLatestPerTopic(ctx context.Context, topicIDs []int64, perTopic int) ([]model.Entry, error)
	// ListLatestWithTopic 全站最新回帖及其话题，按 created_at 倒序
	ListLatestWithTopic(ctx context.Context, limit int) ([]model.Entry, error)
}

type entryRepo struct {
	db *gorm.DB
}

func NewEntryRepo(db *gorm.DB) EntryRepository {
	return &entryRepo{db: db}
}

func (r *entryRepo) List(ctx context.Context, filter EntryFilter, offset, limit int) ([]model.Entry, int64, error) {
	var entries []model.Entry
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Entry{})
	if filter.TopicID > 0 {
		db = db.Where("topic_id = ?", filter.TopicID)
	}
	if filter.State != "" {
		db = db.Where("entry_state = ?", filter.State)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Offset(offset).Limit(limit).
		Order("entry_id ASC").
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *entryRepo) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Entry{}).
		Where("entry_posted_by_user_id = ?", userID).
		Count(&n).Error
	return n, err
}

func (r *entryRepo) ListLatestPerTopic(ctx context.Context, topicIDs []int64, perTopic int) ([]model.Entry, error) {
	if len(topicIDs) == 0 || perTopic <= 0 {
		return nil, nil
	}
	db := r.db.WithContext(ctx)

	// 窗口函数只取主键，再按主键回表，避免子查询丢失列类型
	ranked := db.Model(&model.Entry{}).
		Select("entry_id, ROW_NUMBER() OVER (PARTITION BY topic_id ORDER BY entry_created_at DESC, entry_source_row ASC, entry_id ASC) AS rn").
		Where("topic_id IN ?", topicIDs)

	var ids []int64
	if err := db.Table("(?) AS ranked", ranked).
		Where("rn <= ?", perTopic).
		Pluck("entry_id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var entries []model.Entry
	err := db.Where("entry_id IN ?", ids).
		Order("topic_id ASC").
		Order("entry_created_at DESC").
		Order("entry_source_row ASC").
		Order("entry_id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *entryRepo) ListLatestWithTopic(ctx context.Context, limit int) ([]model.Entry, error) {
	var entries []model.Entry
	err := r.db.WithContext(ctx).
		InnerJoins("Topic").
		Order("entries.entry_created_at DESC").
		Order("entries.entry_source_row ASC").
		Order("entries.entry_id ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
