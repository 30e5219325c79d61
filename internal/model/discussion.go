package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	pkgerrors "github.com/vasuki20/suss-student-discussion-data/pkg/errors"
)

// Topic 话题表 — 对应 topics
type Topic struct {
	ID             int64      `gorm:"column:topic_id;primaryKey;autoIncrement:false"        json:"topic_id"`
	Title          string     `gorm:"column:topic_title;type:varchar(255);not null"         json:"topic_title"`
	Content        string     `gorm:"column:topic_content;type:text;not null"               json:"topic_content"`
	CreatedAt      time.Time  `gorm:"column:topic_created_at;not null;autoCreateTime:false" json:"topic_created_at"`
	DeletedAt      *time.Time `gorm:"column:topic_deleted_at"                               json:"topic_deleted_at,omitempty"`
	State          TopicState `gorm:"column:topic_state;type:varchar(20)"                   json:"topic_state"`
	CourseID       int64      `gorm:"column:course_id;not null;index"                       json:"course_id"`
	PostedByUserID int64      `gorm:"column:topic_posted_by_user_id;not null;index"         json:"topic_posted_by_user_id"`

	// 关联
	Course  *Course `gorm:"foreignKey:CourseID"       json:"course,omitempty"`
	User    *User   `gorm:"foreignKey:PostedByUserID" json:"user,omitempty"`
	Entries []Entry `gorm:"foreignKey:TopicID"        json:"entries,omitempty"`
}

func (Topic) TableName() string { return "topics" }

func (t *Topic) Validate() error {
	return firstError(
		requirePositive("topic_id", t.ID),
		requireText("topic_title", t.Title),
		requireText("topic_content", t.Content),
		requirePositive("course_id", t.CourseID),
		requirePositive("topic_posted_by_user_id", t.PostedByUserID),
		TopicStates.validate(string(t.State)),
		checkLifecycle("topic", t.State == TopicStateDeleted, t.DeletedAt),
	)
}

func (t *Topic) BeforeSave(*gorm.DB) error { return t.Validate() }

// Entry 回帖表 — 对应 entries，entry_parent_id 指向同一话题下的另一条回帖
type Entry struct {
	ID             int64      `gorm:"column:entry_id;primaryKey;autoIncrement:false"        json:"entry_id"`
	Content        string     `gorm:"column:entry_content;type:text;not null"               json:"entry_content"`
	CreatedAt      time.Time  `gorm:"column:entry_created_at;not null;autoCreateTime:false;index" json:"entry_created_at"`
	DeletedAt      *time.Time `gorm:"column:entry_deleted_at"                               json:"entry_deleted_at,omitempty"`
	State          EntryState `gorm:"column:entry_state;type:varchar(20)"                   json:"entry_state"`
	ParentID       *int64     `gorm:"column:entry_parent_id;index"                          json:"entry_parent_id,omitempty"`
	PostedByUserID int64      `gorm:"column:entry_posted_by_user_id;not null;index"         json:"entry_posted_by_user_id"`
	TopicID        int64      `gorm:"column:topic_id;not null;index"                        json:"topic_id"`

	// SourceRow 源数据中的行号；created_at 相同的回帖按它排序
	SourceRow int `gorm:"column:entry_source_row;not null;default:0" json:"-"`

	// 关联
	Topic  *Topic `gorm:"foreignKey:TopicID"        json:"topic,omitempty"`
	User   *User  `gorm:"foreignKey:PostedByUserID" json:"user,omitempty"`
	Parent *Entry `gorm:"foreignKey:ParentID"       json:"-"`
}

func (Entry) TableName() string { return "entries" }

func (e *Entry) Validate() error {
	return firstError(
		requirePositive("entry_id", e.ID),
		requireText("entry_content", e.Content),
		requirePositive("topic_id", e.TopicID),
		requirePositive("entry_posted_by_user_id", e.PostedByUserID),
		e.validateParent(),
		EntryStates.validate(string(e.State)),
		checkLifecycle("entry", e.State == EntryStateDeleted, e.DeletedAt),
	)
}

func (e *Entry) validateParent() error {
	if e.ParentID == nil {
		return nil
	}
	if *e.ParentID <= 0 || *e.ParentID == e.ID {
		return fmt.Errorf("%w: entry_parent_id=%d 无效", pkgerrors.ErrInvalidRecord, *e.ParentID)
	}
	return nil
}

func (e *Entry) BeforeSave(*gorm.DB) error { return e.Validate() }
