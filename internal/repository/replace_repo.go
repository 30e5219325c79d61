package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vasuki20/suss-student-discussion-data/internal/model"
	pkgerrors "github.com/vasuki20/suss-student-discussion-data/pkg/errors"
)

const replaceBatchSize = 200

// ReplaceResult 整表替换结果
type ReplaceResult struct {
	Upserted int   `json:"upserted"`
	Deleted  int64 `json:"deleted"`
}

// ReplaceRepository 导入专用的整表写入。
// rows 必须是对应表的 []*model.X；行主键统一编码为字符串，复合主键为 "user_id:course_id"。
type ReplaceRepository interface {
	KeySet(ctx context.Context, table model.Table) (map[int64]struct{}, error)
	Count(ctx context.Context, table model.Table) (int64, error)

	// Replace 在一个事务内 upsert 批次并删除批次之外的旧行，读者只会看到替换前或替换后的整表。
	// 旧行仍被子表引用时整表不变，返回 ErrReferentialViolation。
	Replace(ctx context.Context, table model.Table, rows any) (*ReplaceResult, error)
	// Upsert 只写入批次，不删除旧行
	Upsert(ctx context.Context, table model.Table, rows any) (int, error)
	// Prune 删除主键不在 keep 中的旧行；仍被子表引用时一行都不删
	Prune(ctx context.Context, table model.Table, keep []string) (int64, error)
}

type replaceRepo struct {
	db *gorm.DB
}

func NewReplaceRepo(db *gorm.DB) ReplaceRepository {
	return &replaceRepo{db: db}
}

// RowKey 单列主键的字符串形式
func RowKey(id int64) string { return strconv.FormatInt(id, 10) }

// PairKey 复合主键的字符串形式
func PairKey(a, b int64) string { return RowKey(a) + ":" + RowKey(b) }

// childRef 引用某张表主键的子表列
type childRef struct {
	table  model.Table
	model  interface{}
	column string
}

var childrenOf = map[model.Table][]childRef{
	model.TableCourses: {
		{model.TableTopics, &model.Topic{}, "course_id"},
		{model.TableEnrollment, &model.Enrollment{}, "course_id"},
	},
	model.TableUsers: {
		{model.TableLogin, &model.Login{}, "user_id"},
		{model.TableTopics, &model.Topic{}, "topic_posted_by_user_id"},
		{model.TableEntries, &model.Entry{}, "entry_posted_by_user_id"},
		{model.TableEnrollment, &model.Enrollment{}, "user_id"},
	},
	model.TableTopics: {
		{model.TableEntries, &model.Entry{}, "topic_id"},
	},
	model.TableEntries: {
		{model.TableEntries, &model.Entry{}, "entry_parent_id"},
	},
}

// tableOps 单张表的写入操作，由 replaceSpec[T] 实现
type tableOps interface {
	upsert(tx *gorm.DB, rows any) (int, error)
	keys(rows any) ([]string, error)
	prune(tx *gorm.DB, keep []string) (int64, error)
	idColumn() string
}

// replaceSpec 描述一张表的替换方式
type replaceSpec[T any] struct {
	table   model.Table
	keyCols []string
	key     func(*T) string
	// idCol/id 单列主键，用于子表引用检查；复合主键表为空
	idCol string
	id    func(*T) int64
	// beforeDelete 在删除旧行之前执行（如解除回帖之间的父子引用）
	beforeDelete func(tx *gorm.DB, ids []int64) error
}

var specs = map[model.Table]tableOps{
	model.TableCourses: replaceSpec[model.Course]{
		table:   model.TableCourses,
		keyCols: []string{"course_id"},
		key:     func(c *model.Course) string { return RowKey(c.ID) },
		idCol:   "course_id",
		id:      func(c *model.Course) int64 { return c.ID },
	},
	model.TableUsers: replaceSpec[model.User]{
		table:   model.TableUsers,
		keyCols: []string{"user_id"},
		key:     func(u *model.User) string { return RowKey(u.ID) },
		idCol:   "user_id",
		id:      func(u *model.User) int64 { return u.ID },
	},
	model.TableLogin: replaceSpec[model.Login]{
		table:   model.TableLogin,
		keyCols: []string{"user_id"},
		key:     func(l *model.Login) string { return RowKey(l.UserID) },
	},
	model.TableTopics: replaceSpec[model.Topic]{
		table:   model.TableTopics,
		keyCols: []string{"topic_id"},
		key:     func(t *model.Topic) string { return RowKey(t.ID) },
		idCol:   "topic_id",
		id:      func(t *model.Topic) int64 { return t.ID },
	},
	model.TableEntries: replaceSpec[model.Entry]{
		table:   model.TableEntries,
		keyCols: []string{"entry_id"},
		key:     func(e *model.Entry) string { return RowKey(e.ID) },
		idCol:   "entry_id",
		id:      func(e *model.Entry) int64 { return e.ID },
		// 旧回帖之间可能互相引用，先解除再删除
		beforeDelete: func(tx *gorm.DB, ids []int64) error {
			for _, part := range lo.Chunk(ids, replaceBatchSize) {
				if err := tx.Model(&model.Entry{}).
					Where("entry_id IN ?", part).
					UpdateColumn("entry_parent_id", nil).Error; err != nil {
					return fmt.Errorf("解除回帖父子引用失败: %w", err)
				}
			}
			return nil
		},
	},
	model.TableEnrollment: replaceSpec[model.Enrollment]{
		table:   model.TableEnrollment,
		keyCols: []string{"user_id", "course_id"},
		key:     func(e *model.Enrollment) string { return PairKey(e.UserID, e.CourseID) },
	},
}

func opsFor(table model.Table) (tableOps, error) {
	ops, ok := specs[table]
	if !ok {
		return nil, fmt.Errorf("未知的数据表: %s", table)
	}
	return ops, nil
}

func (s replaceSpec[T]) idColumn() string { return s.idCol }

func (s replaceSpec[T]) cast(rows any) ([]*T, error) {
	typed, ok := rows.([]*T)
	if !ok {
		return nil, fmt.Errorf("%s: 行类型 %T 不匹配", s.table, rows)
	}
	return typed, nil
}

// upsert ON CONFLICT 覆盖已有行
func (s replaceSpec[T]) upsert(tx *gorm.DB, rows any) (int, error) {
	typed, err := s.cast(rows)
	if err != nil {
		return 0, err
	}
	if len(typed) == 0 {
		return 0, nil
	}
	if err := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(typed, replaceBatchSize).Error; err != nil {
		return 0, fmt.Errorf("写入 %s 失败: %w", s.table, err)
	}
	return len(typed), nil
}

func (s replaceSpec[T]) keys(rows any) ([]string, error) {
	typed, err := s.cast(rows)
	if err != nil {
		return nil, err
	}
	return lo.Map(typed, func(r *T, _ int) string { return s.key(r) }), nil
}

// prune 删除 keep 之外的旧行；先检查子表引用，任何一行仍被引用则整体拒绝
func (s replaceSpec[T]) prune(tx *gorm.DB, keep []string) (int64, error) {
	var existing []*T
	if err := tx.Model(new(T)).Select(s.keyCols).Find(&existing).Error; err != nil {
		return 0, fmt.Errorf("读取 %s 主键失败: %w", s.table, err)
	}

	kept := lo.SliceToMap(keep, func(k string) (string, struct{}) { return k, struct{}{} })
	stale := lo.Filter(existing, func(r *T, _ int) bool {
		_, ok := kept[s.key(r)]
		return !ok
	})
	if len(stale) == 0 {
		return 0, nil
	}

	if s.id != nil {
		ids := lo.Map(stale, func(r *T, _ int) int64 { return s.id(r) })
		if s.beforeDelete != nil {
			if err := s.beforeDelete(tx, ids); err != nil {
				return 0, err
			}
		}
		if err := checkChildren(tx, s.table, ids); err != nil {
			return 0, err
		}
	}

	var deleted int64
	for _, chunk := range lo.Chunk(stale, replaceBatchSize) {
		result := tx.Delete(&chunk)
		if result.Error != nil {
			return 0, fmt.Errorf("删除 %s 旧行失败: %w", s.table, result.Error)
		}
		deleted += result.RowsAffected
	}
	return deleted, nil
}

// checkChildren 待删除的行仍被子表引用时拒绝删除
func checkChildren(tx *gorm.DB, table model.Table, ids []int64) error {
	for _, ch := range childrenOf[table] {
		for _, part := range lo.Chunk(ids, replaceBatchSize) {
			var n int64
			if err := tx.Model(ch.model).Where(ch.column+" IN ?", part).Count(&n).Error; err != nil {
				return fmt.Errorf("检查 %s 引用失败: %w", ch.table, err)
			}
			if n > 0 {
				return fmt.Errorf("%w: %s.%s 仍有 %d 行引用待删除的 %s",
					pkgerrors.ErrReferentialViolation, ch.table, ch.column, n, table)
			}
		}
	}
	return nil
}

// translate 存储层外键错误统一为 ErrReferentialViolation
func translate(table model.Table, err error) error {
	if errors.Is(err, gorm.ErrForeignKeyViolated) && !errors.Is(err, pkgerrors.ErrReferentialViolation) {
		return fmt.Errorf("%w: %s: %v", pkgerrors.ErrReferentialViolation, table, err)
	}
	return err
}

// ────────────────────── KeySet ──────────────────────

func (r *replaceRepo) KeySet(ctx context.Context, table model.Table) (map[int64]struct{}, error) {
	ops, err := opsFor(table)
	if err != nil {
		return nil, err
	}
	col := ops.idColumn()
	if col == "" {
		return nil, fmt.Errorf("表 %s 没有单列主键", table)
	}

	var ids []int64
	if err := r.db.WithContext(ctx).Table(string(table)).Pluck(col, &ids).Error; err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (r *replaceRepo) Count(ctx context.Context, table model.Table) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Table(string(table)).Count(&n).Error
	return n, err
}

// ────────────────────── Replace / Upsert / Prune ──────────────────────

func (r *replaceRepo) Replace(ctx context.Context, table model.Table, rows any) (*ReplaceResult, error) {
	ops, err := opsFor(table)
	if err != nil {
		return nil, err
	}
	keep, err := ops.keys(rows)
	if err != nil {
		return nil, err
	}

	res := &ReplaceResult{}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := ops.upsert(tx, rows)
		if err != nil {
			return err
		}
		deleted, err := ops.prune(tx, keep)
		if err != nil {
			return err
		}
		res.Upserted, res.Deleted = n, deleted
		return nil
	})
	if err != nil {
		return nil, translate(table, err)
	}
	return res, nil
}

func (r *replaceRepo) Upsert(ctx context.Context, table model.Table, rows any) (int, error) {
	ops, err := opsFor(table)
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err = ops.upsert(tx, rows)
		return err
	})
	if err != nil {
		return 0, translate(table, err)
	}
	return n, nil
}

func (r *replaceRepo) Prune(ctx context.Context, table model.Table, keep []string) (int64, error) {
	ops, err := opsFor(table)
	if err != nil {
		return 0, err
	}
	var deleted int64
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err = ops.prune(tx, keep)
		return err
	})
	if err != nil {
		return 0, translate(table, err)
	}
	return deleted, nil
}
