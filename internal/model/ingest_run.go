package model

import (
	"time"

	"gorm.io/datatypes"
)

// IngestRunStatus 导入任务状态
type IngestRunStatus string

const (
	IngestRunRunning   IngestRunStatus = "running"
	IngestRunSucceeded IngestRunStatus = "succeeded"
	IngestRunPartial   IngestRunStatus = "partial" // 部分表加载失败
	IngestRunFailed    IngestRunStatus = "failed"
)

// IngestRun 导入任务记录 — 对应 ingest_runs，报告以 JSON 存储
type IngestRun struct {
	ID         uint            `gorm:"primaryKey"                                json:"id"`
	RunID      string          `gorm:"type:varchar(36);uniqueIndex;not null"     json:"run_id"`
	Trigger    string          `gorm:"type:varchar(20);not null"                 json:"trigger"`
	Status     IngestRunStatus `gorm:"type:varchar(20);not null;index"           json:"status"`
	StartedAt  time.Time       `gorm:"not null;index"                            json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Report     datatypes.JSON  `gorm:"type:json"                                 json:"report"`
}

func (IngestRun) TableName() string { return "ingest_runs" }

// ── 表名 ──

// Table 业务表名，按外键依赖排序
type Table string

const (
	TableCourses    Table = "courses"
	TableUsers      Table = "users"
	TableLogin      Table = "login"
	TableTopics     Table = "topics"
	TableEntries    Table = "entries"
	TableEnrollment Table = "enrollment"
)

// LoadOrder 默认导入顺序：父表先于子表
var LoadOrder = []Table{
	TableCourses, TableUsers, TableLogin, TableTopics, TableEntries, TableEnrollment,
}

// Tables 返回所有业务模型（供 AutoMigrate 使用），顺序同 LoadOrder
func Tables() []interface{} {
	return []interface{}{
		&Course{}, &User{}, &Login{}, &Topic{}, &Entry{}, &Enrollment{},
	}
}
