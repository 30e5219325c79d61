package ingest

import (
	"sort"

	"github.com/samber/lo"

	"github.com/vasuki20/suss-student-discussion-data/internal/model"
)

// EnumColumns 列名 → 枚举集合。列在映射中时，无法识别的值按 NULL 处理并记为告警；
// 不在映射中的枚举列严格解析，无法识别的值使该行被拒绝。
type EnumColumns map[string]model.EnumSet

// normalizeEnums 就地规范化批次中的枚举列，返回告警（按行、列名排序）
func normalizeEnums(batch *Batch, cols EnumColumns) []Issue {
	names := lo.Keys(cols)
	sort.Strings(names)

	var warnings []Issue
	for i, rec := range batch.Records {
		for _, col := range names {
			set := cols[col]
			raw, ok := rec[col]
			if !ok || raw == "" {
				continue
			}
			canonical, ok := set.Normalize(raw)
			if !ok {
				warnings = append(warnings, Issue{
					Row:    batch.Rows[i],
					Kind:   KindInvalidEnumValue,
					Column: col,
					Value:  raw,
					Reason: "无法识别的枚举值，按 NULL 处理",
				})
			}
			rec[col] = canonical
		}
	}
	return warnings
}
