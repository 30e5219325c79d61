package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/vasuki20/suss-student-discussion-data/internal/model"
	"github.com/vasuki20/suss-student-discussion-data/internal/repository"
	pkgerrors "github.com/vasuki20/suss-student-discussion-data/pkg/errors"
)

// LoadSpec 一张表的加载参数
type LoadSpec struct {
	Table       model.Table
	Source      Source
	EnumColumns EnumColumns
}

// DefaultPlan 默认导入计划：父表先于子表，枚举列映射与历史导出保持一致
func DefaultPlan(sourceFor func(model.Table) (Source, error)) ([]LoadSpec, error) {
	enums := map[model.Table]EnumColumns{
		model.TableUsers:   {"user_state": model.UserStates},
		model.TableTopics:  {"topic_state": model.TopicStates},
		model.TableEntries: {"entry_state": model.EntryStates},
		model.TableEnrollment: {
			"enrollment_type":  model.EnrollmentTypes,
			"enrollment_state": model.EnrollmentStates,
		},
	}

	plan := make([]LoadSpec, 0, len(model.LoadOrder))
	for _, table := range model.LoadOrder {
		src, err := sourceFor(table)
		if err != nil {
			return nil, err
		}
		plan = append(plan, LoadSpec{Table: table, Source: src, EnumColumns: enums[table]})
	}
	return plan, nil
}

// Loader 单表加载：解码、校验、引用检查，然后整表替换
type Loader struct {
	repo   repository.ReplaceRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewLoader(repo repository.ReplaceRepository, logger *zap.Logger) *Loader {
	return &Loader{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Load 读取数据源并替换对应的表
// 数据源不可用时返回 ErrSourceUnavailable，表保持原状
func (l *Loader) Load(ctx context.Context, spec LoadSpec) (*TableReport, error) {
	batch, err := ReadBatch(ctx, spec.Source)
	if err != nil {
		rep := &TableReport{Table: spec.Table, Source: spec.Source.Name()}
		rep.fail(err)
		return rep, err
	}
	return l.Apply(ctx, spec, batch)
}

// Apply 用已读取的批次原子替换单张表；行级问题记入报告，表级失败返回错误。
// 待删除的旧行仍被子表引用时整表保持原状。
func (l *Loader) Apply(ctx context.Context, spec LoadSpec, batch *Batch) (*TableReport, error) {
	start := l.now()
	rep := newTableReport(spec, batch)

	var res *repository.ReplaceResult
	p, err := l.prepare(ctx, spec.Table, batch, start, rep, nil)
	if err == nil {
		res, err = l.repo.Replace(ctx, spec.Table, p.rows)
	}
	if err := l.settle(rep, start, err); err != nil {
		return rep, err
	}

	rep.Status = TableLoaded
	rep.Loaded = res.Upserted
	rep.Deleted = res.Deleted
	l.logLoaded(rep)
	return rep, nil
}

// stage 写入批次但保留旧行，旧行由 prune 在子表写入之后删除。
// known 记录本次任务已写入的父表主键，子表的引用检查以它为准。
func (l *Loader) stage(ctx context.Context, spec LoadSpec, batch *Batch, known refSets) (*TableReport, []string, error) {
	start := l.now()
	rep := newTableReport(spec, batch)

	n := 0
	p, err := l.prepare(ctx, spec.Table, batch, start, rep, known)
	if err == nil {
		n, err = l.repo.Upsert(ctx, spec.Table, p.rows)
	}
	if err := l.settle(rep, start, err); err != nil {
		return rep, nil, err
	}

	if p.ids != nil {
		known[spec.Table] = p.ids
	}
	rep.Status = TableLoaded
	rep.Loaded = n
	return rep, p.keys, nil
}

// prune 删除 stage 之后仍不在批次中的旧行；失败时新行已写入、旧行保留，该表记为失败
func (l *Loader) prune(ctx context.Context, rep *TableReport, keep []string) error {
	start := l.now()
	deleted, err := l.repo.Prune(ctx, rep.Table, keep)
	rep.DurationMS += time.Since(start).Milliseconds()
	if err != nil {
		rep.fail(fmt.Errorf("旧行未删除: %w", err))
		l.logger.Warn("清理旧行失败",
			zap.String("table", string(rep.Table)),
			zap.Int("loaded", rep.Loaded),
			zap.Error(err),
		)
		return err
	}
	rep.Deleted = deleted
	l.logLoaded(rep)
	return nil
}

func newTableReport(spec LoadSpec, batch *Batch) *TableReport {
	rep := &TableReport{
		Table:    spec.Table,
		Source:   batch.Source,
		Received: len(batch.Records),
	}
	rep.Warnings = normalizeEnums(batch, spec.EnumColumns)
	return rep
}

// settle 收尾报告：耗时、拒绝行排序；err 非 nil 时标记整表失败
func (l *Loader) settle(rep *TableReport, start time.Time, err error) error {
	rep.DurationMS = time.Since(start).Milliseconds()
	sort.SliceStable(rep.Rejected, func(i, j int) bool { return rep.Rejected[i].Row < rep.Rejected[j].Row })
	if err == nil {
		return nil
	}
	rep.fail(err)
	l.logger.Warn("数据表加载失败",
		zap.String("table", string(rep.Table)),
		zap.String("source", rep.Source),
		zap.Error(err),
	)
	return err
}

func (l *Loader) logLoaded(rep *TableReport) {
	l.logger.Info("数据表加载完成",
		zap.String("table", string(rep.Table)),
		zap.Int("received", rep.Received),
		zap.Int("loaded", rep.Loaded),
		zap.Int("rejected", len(rep.Rejected)),
		zap.Int("warnings", len(rep.Warnings)),
		zap.Int64("deleted", rep.Deleted),
	)
}

// prepared 通过校验、待写入的一张表
type prepared struct {
	rows any
	keys []string
	// ids 单列主键集合，供后续子表做引用检查；无子表引用的表为 nil
	ids map[int64]struct{}
}

func preparedOf[T any](rows []candidate[T], id func(*T) int64) *prepared {
	p := &prepared{
		rows: values(rows),
		keys: lo.Map(rows, func(c candidate[T], _ int) string { return c.key }),
	}
	if id != nil {
		p.ids = make(map[int64]struct{}, len(rows))
		for _, c := range rows {
			p.ids[id(c.val)] = struct{}{}
		}
	}
	return p
}

func (l *Loader) prepare(ctx context.Context, table model.Table, batch *Batch, loadedAt time.Time, rep *TableReport, known refSets) (*prepared, error) {
	switch table {
	case model.TableCourses:
		rep.MissingColumns = missingColumns(courseColumns, batch.Columns)
		rows := decodeAll(batch, loadedAt, decodeCourse, func(c *model.Course) string { return repository.RowKey(c.ID) }, rep)
		return preparedOf(rows, func(c *model.Course) int64 { return c.ID }), nil

	case model.TableUsers:
		rep.MissingColumns = missingColumns(userColumns, batch.Columns)
		rows := decodeAll(batch, loadedAt, decodeUser, func(u *model.User) string { return repository.RowKey(u.ID) }, rep)
		return preparedOf(rows, func(u *model.User) int64 { return u.ID }), nil

	case model.TableLogin:
		rep.MissingColumns = missingColumns(loginColumns, batch.Columns)
		rows := decodeAll(batch, loadedAt, decodeLogin, func(r *model.Login) string { return repository.RowKey(r.UserID) }, rep)
		refs, err := l.references(ctx, known, model.TableUsers)
		if err != nil {
			return nil, err
		}
		rows = keepValid(rows, rep, func(r *model.Login) error {
			return refs.require(model.TableUsers, "user_id", r.UserID)
		})
		return preparedOf(rows, nil), nil

	case model.TableTopics:
		rep.MissingColumns = missingColumns(topicColumns, batch.Columns)
		rows := decodeAll(batch, loadedAt, decodeTopic, func(t *model.Topic) string { return repository.RowKey(t.ID) }, rep)
		refs, err := l.references(ctx, known, model.TableCourses, model.TableUsers)
		if err != nil {
			return nil, err
		}
		rows = keepValid(rows, rep, func(t *model.Topic) error {
			if err := refs.require(model.TableCourses, "course_id", t.CourseID); err != nil {
				return err
			}
			return refs.require(model.TableUsers, "topic_posted_by_user_id", t.PostedByUserID)
		})
		return preparedOf(rows, func(t *model.Topic) int64 { return t.ID }), nil

	case model.TableEntries:
		rep.MissingColumns = missingColumns(entryColumns, batch.Columns)
		rows := decodeAll(batch, loadedAt, decodeEntry, func(e *model.Entry) string { return repository.RowKey(e.ID) }, rep)
		for _, c := range rows {
			c.val.SourceRow = c.row
		}
		refs, err := l.references(ctx, known, model.TableTopics, model.TableUsers)
		if err != nil {
			return nil, err
		}
		rows = keepValid(rows, rep, func(e *model.Entry) error {
			if err := refs.require(model.TableTopics, "topic_id", e.TopicID); err != nil {
				return err
			}
			return refs.require(model.TableUsers, "entry_posted_by_user_id", e.PostedByUserID)
		})
		rows = threadEntries(rows, rep)
		return preparedOf(rows, func(e *model.Entry) int64 { return e.ID }), nil

	case model.TableEnrollment:
		rep.MissingColumns = missingColumns(enrollmentColumns, batch.Columns)
		rows := decodeAll(batch, loadedAt, decodeEnrollment, func(e *model.Enrollment) string {
			return repository.PairKey(e.UserID, e.CourseID)
		}, rep)
		refs, err := l.references(ctx, known, model.TableUsers, model.TableCourses)
		if err != nil {
			return nil, err
		}
		rows = keepValid(rows, rep, func(e *model.Enrollment) error {
			if err := refs.require(model.TableUsers, "user_id", e.UserID); err != nil {
				return err
			}
			return refs.require(model.TableCourses, "course_id", e.CourseID)
		})
		return preparedOf(rows, nil), nil
	}
	return nil, fmt.Errorf("未知的数据表: %s", table)
}

// ── 行级处理 ──

// candidate 通过解码与校验的行
type candidate[T any] struct {
	row int
	key string
	val *T
}

// decodeAll 解码整批数据；解码失败或主键重复（保留首次出现）的行被拒绝
func decodeAll[T any](batch *Batch, loadedAt time.Time, decode func(Record, time.Time) (*T, error), keyOf func(*T) string, rep *TableReport) []candidate[T] {
	out := make([]candidate[T], 0, len(batch.Records))
	seen := make(map[string]int, len(batch.Records))
	for i, rec := range batch.Records {
		row := batch.Rows[i]
		v, err := decode(rec, loadedAt)
		if err != nil {
			rep.reject(row, "", err)
			continue
		}
		k := keyOf(v)
		if first, dup := seen[k]; dup {
			rep.reject(row, k, fmt.Errorf("%w: 主键 %s 与第 %d 行重复", pkgerrors.ErrInvalidRecord, k, first))
			continue
		}
		seen[k] = row
		out = append(out, candidate[T]{row: row, key: k, val: v})
	}
	return out
}

func keepValid[T any](rows []candidate[T], rep *TableReport, check func(*T) error) []candidate[T] {
	return lo.Filter(rows, func(c candidate[T], _ int) bool {
		if err := check(c.val); err != nil {
			rep.reject(c.row, c.key, err)
			return false
		}
		return true
	})
}

func values[T any](rows []candidate[T]) []*T {
	return lo.Map(rows, func(c candidate[T], _ int) *T { return c.val })
}

// missingColumns 源数据缺少的声明列（按 NULL 处理）
func missingColumns(declared, present []string) []string {
	_, missing := lo.Difference(present, declared)
	return missing
}

// ── 引用检查 ──

type refSets map[model.Table]map[int64]struct{}

// references 父表主键集合；known 中已有的（本次任务写入的批次）优先，否则读库
func (l *Loader) references(ctx context.Context, known refSets, tables ...model.Table) (refSets, error) {
	refs := make(refSets, len(tables))
	for _, t := range tables {
		if set, ok := known[t]; ok {
			refs[t] = set
			continue
		}
		set, err := l.repo.KeySet(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("读取 %s 主键失败: %w", t, err)
		}
		refs[t] = set
	}
	return refs, nil
}

func (r refSets) require(table model.Table, col string, id int64) error {
	if _, ok := r[table][id]; !ok {
		return fmt.Errorf("%w: %s=%d 在 %s 中不存在", pkgerrors.ErrReferentialViolation, col, id, table)
	}
	return nil
}

// threadEntries 父回帖必须在同一批次且属于同一话题；
// 拒绝不满足条件的回帖（反复执行直到稳定），再按父先子后排序
func threadEntries(rows []candidate[model.Entry], rep *TableReport) []candidate[model.Entry] {
	accepted := make(map[int64]candidate[model.Entry], len(rows))
	for _, c := range rows {
		accepted[c.val.ID] = c
	}

	for changed := true; changed; {
		changed = false
		for _, c := range rows {
			if _, ok := accepted[c.val.ID]; !ok || c.val.ParentID == nil {
				continue
			}
			parent, ok := accepted[*c.val.ParentID]
			var err error
			switch {
			case !ok:
				err = fmt.Errorf("%w: entry_parent_id=%d 不在本批次中", pkgerrors.ErrReferentialViolation, *c.val.ParentID)
			case parent.val.TopicID != c.val.TopicID:
				err = fmt.Errorf("%w: entry_parent_id=%d 属于话题 %d，而本回帖属于话题 %d",
					pkgerrors.ErrReferentialViolation, *c.val.ParentID, parent.val.TopicID, c.val.TopicID)
			}
			if err != nil {
				rep.reject(c.row, c.key, err)
				delete(accepted, c.val.ID)
				changed = true
			}
		}
	}

	// 从根回帖出发按层展开，保持批次内的相对顺序；无法到达的回帖处于环中
	children := make(map[int64][]candidate[model.Entry])
	var queue []candidate[model.Entry]
	for _, c := range rows {
		if _, ok := accepted[c.val.ID]; !ok {
			continue
		}
		if c.val.ParentID == nil {
			queue = append(queue, c)
		} else {
			children[*c.val.ParentID] = append(children[*c.val.ParentID], c)
		}
	}

	ordered := make([]candidate[model.Entry], 0, len(accepted))
	placed := make(map[int64]bool, len(accepted))
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		ordered = append(ordered, c)
		placed[c.val.ID] = true
		queue = append(queue, children[c.val.ID]...)
	}

	for _, c := range rows {
		if _, ok := accepted[c.val.ID]; ok && !placed[c.val.ID] {
			rep.reject(c.row, c.key, fmt.Errorf("%w: 回帖父子引用形成环", pkgerrors.ErrInvalidRecord))
		}
	}
	return ordered
}
