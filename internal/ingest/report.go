package ingest

import (
	"errors"
	"time"

	"github.com/vasuki20/suss-student-discussion-data/internal/model"
	pkgerrors "github.com/vasuki20/suss-student-discussion-data/pkg/errors"
)

// Kind 问题分类
type Kind string

const (
	KindInvalidRecord        Kind = "invalid_record"
	KindInvalidEnumValue     Kind = "invalid_enum_value"
	KindReferentialViolation Kind = "referential_violation"
	KindSourceUnavailable    Kind = "source_unavailable"
	KindInternal             Kind = "internal"
)

func kindOf(err error) Kind {
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidEnumValue):
		return KindInvalidEnumValue
	case errors.Is(err, pkgerrors.ErrReferentialViolation):
		return KindReferentialViolation
	case errors.Is(err, pkgerrors.ErrSourceUnavailable):
		return KindSourceUnavailable
	case errors.Is(err, pkgerrors.ErrInvalidRecord):
		return KindInvalidRecord
	default:
		return KindInternal
	}
}

// Issue 行级问题（被拒绝的行或告警）
type Issue struct {
	Row    int    `json:"row"`
	Key    string `json:"key,omitempty"`
	Kind   Kind   `json:"kind"`
	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

// TableStatus 单表加载结果
type TableStatus string

const (
	TableLoaded TableStatus = "loaded"
	TableFailed TableStatus = "failed"
)

// TableReport 单表加载报告
type TableReport struct {
	Table          model.Table `json:"table"`
	Source         string      `json:"source"`
	Status         TableStatus `json:"status"`
	Received       int         `json:"received"`
	Loaded         int         `json:"loaded"`
	Deleted        int64       `json:"deleted"`
	MissingColumns []string    `json:"missing_columns,omitempty"`
	Rejected       []Issue     `json:"rejected,omitempty"`
	Warnings       []Issue     `json:"warnings,omitempty"`
	ErrorKind      Kind        `json:"error_kind,omitempty"`
	Error          string      `json:"error,omitempty"`
	DurationMS     int64       `json:"duration_ms"`
}

func (r *TableReport) reject(row int, key string, err error) {
	r.Rejected = append(r.Rejected, Issue{Row: row, Key: key, Kind: kindOf(err), Reason: err.Error()})
}

func (r *TableReport) fail(err error) {
	r.Status = TableFailed
	r.ErrorKind = kindOf(err)
	r.Error = err.Error()
}

// Trigger 导入触发来源
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerSchedule Trigger = "schedule"
	TriggerQueue    Trigger = "sqs"
	TriggerHTTP     Trigger = "http"
)

// Report 一次导入任务的完整报告
type Report struct {
	RunID      string                `json:"run_id"`
	Trigger    Trigger               `json:"trigger"`
	Status     model.IngestRunStatus `json:"status"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Tables     []*TableReport        `json:"tables"`
}

// Committed 是否有数据写入（包括写入后清理旧行失败的表）
func (r *Report) Committed() bool {
	for _, t := range r.Tables {
		if t.Status == TableLoaded || t.Loaded > 0 {
			return true
		}
	}
	return false
}

func (r *Report) finish(at time.Time) {
	r.FinishedAt = at
	loaded, failed := 0, 0
	for _, t := range r.Tables {
		if t.Status == TableLoaded {
			loaded++
		} else {
			failed++
		}
	}
	switch {
	case failed == 0:
		r.Status = model.IngestRunSucceeded
	case loaded == 0:
		r.Status = model.IngestRunFailed
	default:
		r.Status = model.IngestRunPartial
	}
}
