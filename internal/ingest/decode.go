package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/vasuki20/suss-student-discussion-data/internal/model"
	pkgerrors "github.com/vasuki20/suss-student-discussion-data/pkg/errors"
)

// 声明的表结构：源数据缺少的列一律按 NULL 处理，不会被丢弃
var (
	courseColumns     = []string{"course_id", "semester", "course_code", "course_name", "course_created_at"}
	userColumns       = []string{"user_id", "user_name", "user_created_at", "user_deleted_at", "user_state"}
	loginColumns      = []string{"user_id", "user_login_id"}
	topicColumns      = []string{"topic_id", "topic_title", "topic_content", "topic_created_at", "topic_deleted_at", "topic_state", "course_id", "topic_posted_by_user_id"}
	entryColumns      = []string{"entry_id", "entry_content", "entry_created_at", "entry_deleted_at", "entry_state", "entry_parent_id", "entry_posted_by_user_id", "topic_id"}
	enrollmentColumns = []string{"user_id", "course_id", "enrollment_type", "enrollment_state"}
)

// timeLayouts 文本时间格式，均按 UTC 解析
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

// decoder 按列读取一行，记录第一个错误
type decoder struct {
	rec      Record
	loadedAt time.Time
	err      error
}

func (d *decoder) fail(col, value, reason string) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s=%q %s", pkgerrors.ErrInvalidRecord, col, value, reason)
	}
}

func (d *decoder) text(col string) string {
	return d.rec[col]
}

func (d *decoder) id(col string) int64 {
	raw := d.rec[col]
	if raw == "" {
		d.fail(col, raw, "缺失")
		return 0
	}
	v, ok := parseInt(raw)
	if !ok || v <= 0 {
		d.fail(col, raw, "不是正整数")
		return 0
	}
	return v
}

func (d *decoder) optionalID(col string) *int64 {
	raw := d.rec[col]
	if raw == "" {
		return nil
	}
	v, ok := parseInt(raw)
	if !ok || v <= 0 {
		d.fail(col, raw, "不是正整数")
		return nil
	}
	return &v
}

func (d *decoder) optionalTime(col string) *time.Time {
	raw := d.rec[col]
	if raw == "" {
		return nil
	}
	t, err := parseTime(raw)
	if err != nil {
		d.fail(col, raw, "无法解析的时间")
		return nil
	}
	return &t
}

// createdAt 缺失时取导入时间
func (d *decoder) createdAt(col string) time.Time {
	if t := d.optionalTime(col); t != nil {
		return *t
	}
	return d.loadedAt
}

// enum 列值已由 normalizeEnums 处理时这里只会看到规范值；否则严格解析
func (d *decoder) enum(col string, set model.EnumSet) string {
	raw := d.rec[col]
	if raw == "" {
		return ""
	}
	v, err := set.Parse(raw)
	if err != nil && d.err == nil {
		d.err = err
	}
	return v
}

// stampDeletion DELETED 状态缺少删除时间时以导入时间补齐
func (d *decoder) stampDeletion(deleted bool, deletedAt *time.Time) *time.Time {
	if deleted && deletedAt == nil {
		t := d.loadedAt
		return &t
	}
	return deletedAt
}

func parseInt(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	// Excel 数值单元格可能带小数位，如 "12.0"
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

// parseTime 支持 Excel 日期序列号和常见文本格式，结果为 UTC
func parseTime(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(f, false)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析的时间 %q", raw)
}

// ────────────────────── 各表解码 ──────────────────────

func decodeCourse(rec Record, loadedAt time.Time) (*model.Course, error) {
	d := &decoder{rec: rec, loadedAt: loadedAt}
	c := &model.Course{
		ID:        d.id("course_id"),
		Semester:  d.text("semester"),
		Code:      d.text("course_code"),
		Name:      d.text("course_name"),
		CreatedAt: d.createdAt("course_created_at"),
	}
	if d.err != nil {
		return nil, d.err
	}
	return c, c.Validate()
}

func decodeUser(rec Record, loadedAt time.Time) (*model.User, error) {
	d := &decoder{rec: rec, loadedAt: loadedAt}
	u := &model.User{
		ID:        d.id("user_id"),
		Name:      d.text("user_name"),
		CreatedAt: d.createdAt("user_created_at"),
		DeletedAt: d.optionalTime("user_deleted_at"),
		State:     model.UserState(d.enum("user_state", model.UserStates)),
	}
	if d.err != nil {
		return nil, d.err
	}
	u.DeletedAt = d.stampDeletion(u.State == model.UserStateDeleted, u.DeletedAt)
	return u, u.Validate()
}

func decodeLogin(rec Record, _ time.Time) (*model.Login, error) {
	d := &decoder{rec: rec}
	l := &model.Login{
		UserID:  d.id("user_id"),
		LoginID: d.text("user_login_id"),
	}
	if d.err != nil {
		return nil, d.err
	}
	return l, l.Validate()
}

func decodeTopic(rec Record, loadedAt time.Time) (*model.Topic, error) {
	d := &decoder{rec: rec, loadedAt: loadedAt}
	t := &model.Topic{
		ID:             d.id("topic_id"),
		Title:          d.text("topic_title"),
		Content:        d.text("topic_content"),
		CreatedAt:      d.createdAt("topic_created_at"),
		DeletedAt:      d.optionalTime("topic_deleted_at"),
		State:          model.TopicState(d.enum("topic_state", model.TopicStates)),
		CourseID:       d.id("course_id"),
		PostedByUserID: d.id("topic_posted_by_user_id"),
	}
	if d.err != nil {
		return nil, d.err
	}
	t.DeletedAt = d.stampDeletion(t.State == model.TopicStateDeleted, t.DeletedAt)
	return t, t.Validate()
}

func decodeEntry(rec Record, loadedAt time.Time) (*model.Entry, error) {
	d := &decoder{rec: rec, loadedAt: loadedAt}
	e := &model.Entry{
		ID:             d.id("entry_id"),
		Content:        d.text("entry_content"),
		CreatedAt:      d.createdAt("entry_created_at"),
		DeletedAt:      d.optionalTime("entry_deleted_at"),
		State:          model.EntryState(d.enum("entry_state", model.EntryStates)),
		ParentID:       d.optionalID("entry_parent_id"),
		PostedByUserID: d.id("entry_posted_by_user_id"),
		TopicID:        d.id("topic_id"),
	}
	if d.err != nil {
		return nil, d.err
	}
	e.DeletedAt = d.stampDeletion(e.State == model.EntryStateDeleted, e.DeletedAt)
	return e, e.Validate()
}

func decodeEnrollment(rec Record, _ time.Time) (*model.Enrollment, error) {
	d := &decoder{rec: rec}
	e := &model.Enrollment{
		UserID:   d.id("user_id"),
		CourseID: d.id("course_id"),
		Type:     model.EnrollmentType(d.enum("enrollment_type", model.EnrollmentTypes)),
		State:    model.EnrollmentState(d.enum("enrollment_state", model.EnrollmentStates)),
	}
	if d.err != nil {
		return nil, d.err
	}
	return e, e.Validate()
}
