package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/vasuki20/suss-student-discussion-data/pkg/errors"
)

// ── 封闭枚举集合 ──

// EnumSet 声明式枚举集合，成员名即数据库中存储的文本标签。
type EnumSet struct {
	name    string
	members []string
}

func newEnumSet(name string, members ...string) EnumSet {
	return EnumSet{name: name, members: members}
}

// Name 返回枚举对应的列名
func (s EnumSet) Name() string { return s.name }

// Members 返回成员列表副本
func (s EnumSet) Members() []string {
	out := make([]string, len(s.members))
	copy(out, s.members)
	return out
}

// Contains 判断 label 是否为规范成员名（区分大小写）
func (s EnumSet) Contains(label string) bool {
	for _, m := range s.members {
		if m == label {
			return true
		}
	}
	return false
}

// Normalize 大小写不敏感匹配成员名，匹配失败时 ok=false（调用方按 NULL 处理）。
func (s EnumSet) Normalize(label string) (string, bool) {
	upper := strings.ToUpper(strings.TrimSpace(label))
	if upper == "" {
		return "", false
	}
	if s.Contains(upper) {
		return upper, true
	}
	return "", false
}

// Parse 与 Normalize 相同，但匹配失败返回 ErrInvalidEnumValue。
func (s EnumSet) Parse(label string) (string, error) {
	if v, ok := s.Normalize(label); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s=%q", pkgerrors.ErrInvalidEnumValue, s.name, label)
}

// validate 空值视为 NULL，合法
func (s EnumSet) validate(label string) error {
	if label == "" || s.Contains(label) {
		return nil
	}
	return fmt.Errorf("%w: %s=%q", pkgerrors.ErrInvalidEnumValue, s.name, label)
}

// ── Scanner / Valuer 辅助 ──

// scanEnum 将数据库文本列读入枚举，NULL 读为空串。
func scanEnum(dst *string, src interface{}) error {
	switch v := src.(type) {
	case nil:
		*dst = ""
	case []byte:
		*dst = string(v)
	case string:
		*dst = v
	default:
		return fmt.Errorf("enum scan: unsupported type %T", src)
	}
	return nil
}

// enumValue 空串写为 NULL
func enumValue(label string) (driver.Value, error) {
	if label == "" {
		return nil, nil
	}
	return label, nil
}

// ── 软删除生命周期 ──

// checkLifecycle 校验 deleted_at 当且仅当状态为 DELETED 时存在。
func checkLifecycle(entity string, deleted bool, deletedAt *time.Time) error {
	switch {
	case deleted && deletedAt == nil:
		return fmt.Errorf("%w: %s 状态为 DELETED 但缺少删除时间", pkgerrors.ErrInvalidRecord, entity)
	case !deleted && deletedAt != nil:
		return fmt.Errorf("%w: %s 存在删除时间但状态不是 DELETED", pkgerrors.ErrInvalidRecord, entity)
	}
	return nil
}

func requirePositive(field string, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s 必须为正整数", pkgerrors.ErrInvalidRecord, field)
	}
	return nil
}

func requireText(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s 不能为空", pkgerrors.ErrInvalidRecord, field)
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
