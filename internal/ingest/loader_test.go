package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vasuki20/suss-student-discussion-data/internal/model"
	"github.com/vasuki20/suss-student-discussion-data/internal/repository"
	pkgerrors "github.com/vasuki20/suss-student-discussion-data/pkg/errors"
)

// loadAll 按计划顺序逐表加载，任一表失败即终止测试
func loadAll(t *testing.T, loader *Loader, plan []LoadSpec) []*TableReport {
	t.Helper()
	var reports []*TableReport
	for _, spec := range plan {
		rep, err := loader.Load(context.Background(), spec)
		if err != nil {
			t.Fatalf("加载 %s 失败: %v", spec.Table, err)
		}
		reports = append(reports, rep)
	}
	return reports
}

func TestLoad_FullPlan(t *testing.T) {
	loader, repo := newTestLoader(t)
	reports := loadAll(t, loader, testPlan())

	want := map[model.Table]int64{
		model.TableCourses: 2, model.TableUsers: 3, model.TableLogin: 2,
		model.TableTopics: 3, model.TableEntries: 4, model.TableEnrollment: 3,
	}
	for table, n := range want {
		if got := count(t, repo, table); got != n {
			t.Errorf("%s: 期望 %d 行，实际 %d", table, n, got)
		}
	}
	for _, rep := range reports {
		if rep.Status != TableLoaded || len(rep.Rejected) != 0 {
			t.Errorf("%s: 期望全部加载，实际 %+v", rep.Table, rep)
		}
		if int64(rep.Loaded) != want[rep.Table] {
			t.Errorf("%s: Loaded 期望 %d，实际 %d", rep.Table, want[rep.Table], rep.Loaded)
		}
	}
}

func TestLoad_SameBatchTwiceIsIdempotent(t *testing.T) {
	loader, repo := newTestLoader(t)
	loadAll(t, loader, testPlan())
	reports := loadAll(t, loader, testPlan())

	for _, rep := range reports {
		if rep.Deleted != 0 {
			t.Errorf("%s: 重复导入不应删除行，实际删除 %d", rep.Table, rep.Deleted)
		}
	}
	if got := count(t, repo, model.TableEntries); got != 4 {
		t.Errorf("期望 4 条回帖，实际 %d", got)
	}
}

func TestLoad_EnumNormalization(t *testing.T) {
	loader, repo := newTestLoader(t)
	plan := replaceSource(testPlan(), model.TableUsers, csvSource("users",
		"user_id,user_name,user_created_at,user_state",
		"1,alice,2024-01-01,Active",
		"2,bob,2024-01-01,SUSPENDED",
		"3,carol,2024-01-01,",
	))
	reports := loadAll(t, loader, plan[:2])

	users := reports[1]
	if len(users.Warnings) != 1 || users.Warnings[0].Kind != KindInvalidEnumValue || users.Warnings[0].Value != "SUSPENDED" {
		t.Errorf("期望 1 条枚举告警，实际 %+v", users.Warnings)
	}
	if users.Loaded != 3 {
		t.Errorf("无法识别的枚举值不应拒绝该行，实际加载 %d", users.Loaded)
	}

	list, _, _ := repo.User.List(context.Background(), repository.UserFilter{}, 0, 10)
	wantStates := []model.UserState{model.UserStateActive, "", ""}
	for i, u := range list {
		if u.State != wantStates[i] {
			t.Errorf("用户 %d: 期望状态 %q，实际 %q", u.ID, wantStates[i], u.State)
		}
	}
	if len(users.MissingColumns) != 1 || users.MissingColumns[0] != "user_deleted_at" {
		t.Errorf("期望报告缺失列 user_deleted_at，实际 %v", users.MissingColumns)
	}
}

func TestLoad_UnmappedEnumColumnIsStrict(t *testing.T) {
	loader, _ := newTestLoader(t)
	spec := LoadSpec{
		Table: model.TableCourses,
		Source: coursesCSV(),
	}
	if _, err := loader.Load(context.Background(), spec); err != nil {
		t.Fatalf("加载课程失败: %v", err)
	}
	loadAll(t, loader, testPlan()[1:2])

	rep, err := loader.Load(context.Background(), LoadSpec{
		Table: model.TableEnrollment,
		Source: csvSource("enrollment",
			"user_id,course_id,enrollment_type,enrollment_state",
			"1,1,course,ACTIVE",
			"2,1,online,ACTIVE",
		),
	})
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if rep.Loaded != 1 || len(rep.Rejected) != 1 || rep.Rejected[0].Kind != KindInvalidEnumValue {
		t.Errorf("未映射的枚举列应严格解析，实际 %+v", rep)
	}
}

func TestLoad_Lifecycle(t *testing.T) {
	loader, repo := newTestLoader(t)
	plan := replaceSource(testPlan(), model.TableUsers, csvSource("users",
		"user_id,user_name,user_created_at,user_deleted_at,user_state",
		"1,alice,2024-01-01,,DELETED",
		"2,bob,2024-01-01,2024-02-01,ACTIVE",
		"3,carol,,2024-02-01,deleted",
	))
	reports := loadAll(t, loader, plan[:2])

	users := reports[1]
	if users.Loaded != 2 || len(users.Rejected) != 1 || users.Rejected[0].Row != 3 {
		t.Fatalf("期望拒绝第 3 行（ACTIVE 但有删除时间），实际 %+v", users)
	}

	u1, _ := repo.User.GetByID(context.Background(), 1)
	if u1.DeletedAt == nil {
		t.Error("DELETED 用户缺少删除时间时应补齐")
	}
	u3, _ := repo.User.GetByID(context.Background(), 3)
	if u3.CreatedAt.IsZero() {
		t.Error("缺失的创建时间应取导入时间")
	}
}

func TestLoad_RecordLevelRejections(t *testing.T) {
	loader, repo := newTestLoader(t)
	plan := replaceSource(testPlan(), model.TableEntries, csvSource("entries",
		"entry_id,entry_content,entry_created_at,entry_state,entry_parent_id,entry_posted_by_user_id,topic_id",
		"101,根,2024-01-03 10:00:00,ACTIVE,,2,10",
		"102,跨话题回复,2024-01-03 11:00:00,ACTIVE,101,1,11",
		"103,回复被拒绝的回帖,2024-01-03 12:00:00,ACTIVE,102,1,11",
		"104,话题不存在,2024-01-03 12:00:00,ACTIVE,,1,99",
		"105,用户不存在,2024-01-03 12:00:00,ACTIVE,,42,10",
		"101,重复主键,2024-01-03 12:00:00,ACTIVE,,1,10",
		"106,,2024-01-03 12:00:00,ACTIVE,,1,10",
		"107,父回帖不在批次中,2024-01-03 12:00:00,ACTIVE,999,1,10",
		"108,正常回复,2024-01-03 13:00:00,ACTIVE,101,1,10",
	))
	reports := loadAll(t, loader, plan[:5])
	entries := reports[4]

	wantRows := []int{3, 4, 5, 6, 7, 8, 9}
	if len(entries.Rejected) != len(wantRows) {
		t.Fatalf("期望拒绝 %d 行，实际 %+v", len(wantRows), entries.Rejected)
	}
	for i, issue := range entries.Rejected {
		if issue.Row != wantRows[i] {
			t.Errorf("第 %d 个拒绝: 期望行 %d，实际 %d (%s)", i, wantRows[i], issue.Row, issue.Reason)
		}
	}
	if entries.Rejected[0].Kind != KindReferentialViolation {
		t.Errorf("跨话题回复应为引用错误，实际 %s", entries.Rejected[0].Kind)
	}
	if got := count(t, repo, model.TableEntries); got != 2 {
		t.Errorf("期望 2 条回帖入库，实际 %d", got)
	}
}

func TestLoad_CyclicThreadsRejected(t *testing.T) {
	loader, repo := newTestLoader(t)
	plan := replaceSource(testPlan(), model.TableEntries, csvSource("entries",
		"entry_id,entry_content,entry_created_at,entry_state,entry_parent_id,entry_posted_by_user_id,topic_id",
		"103,孙,2024-01-03 12:00:00,ACTIVE,102,1,10",
		"102,子,2024-01-03 11:00:00,ACTIVE,101,1,10",
		"101,根,2024-01-03 10:00:00,ACTIVE,,1,10",
		"201,环 A,2024-01-03 10:00:00,ACTIVE,202,1,10",
		"202,环 B,2024-01-03 10:00:00,ACTIVE,201,1,10",
	))
	reports := loadAll(t, loader, plan[:5])

	if n := len(reports[4].Rejected); n != 2 {
		t.Errorf("期望拒绝环中的 2 条回帖，实际 %d", n)
	}
	// 子回帖排在父回帖之前也能按依赖顺序写入
	if got := count(t, repo, model.TableEntries); got != 3 {
		t.Errorf("期望 3 条回帖，实际 %d", got)
	}
}

func TestLoad_OrphaningReplaceFailsWholeTable(t *testing.T) {
	loader, repo := newTestLoader(t)
	loadAll(t, loader, testPlan())

	rep, err := loader.Load(context.Background(), LoadSpec{
		Table: model.TableCourses,
		Source: csvSource("courses",
			"course_id,semester,course_code,course_name,course_created_at",
			"2,2024S1,ICT102,数据结构,2024-01-02 08:00:00",
		),
	})
	if !errors.Is(err, pkgerrors.ErrReferentialViolation) {
		t.Fatalf("期望 ErrReferentialViolation，实际: %v", err)
	}
	if rep.Status != TableFailed || rep.ErrorKind != KindReferentialViolation {
		t.Errorf("报告应标记失败，实际 %+v", rep)
	}
	if got := count(t, repo, model.TableCourses); got != 2 {
		t.Errorf("课程表应保持原状，实际 %d 行", got)
	}
}

func TestLoad_SourceUnavailableKeepsTable(t *testing.T) {
	loader, repo := newTestLoader(t)
	loadAll(t, loader, testPlan())

	rep, err := loader.Load(context.Background(), LoadSpec{
		Table:  model.TableTopics,
		Source: &memSource{name: "topics.xlsx", err: errors.New("磁盘错误")},
	})
	if !errors.Is(err, pkgerrors.ErrSourceUnavailable) {
		t.Fatalf("期望 ErrSourceUnavailable，实际: %v", err)
	}
	if rep.ErrorKind != KindSourceUnavailable {
		t.Errorf("期望 source_unavailable，实际 %s", rep.ErrorKind)
	}
	if got := count(t, repo, model.TableTopics); got != 3 {
		t.Errorf("话题表应保持原状，实际 %d 行", got)
	}
}

func TestMissingColumns(t *testing.T) {
	got := missingColumns(loginColumns, []string{"user_id", "extra"})
	if len(got) != 1 || got[0] != "user_login_id" {
		t.Errorf("期望 [user_login_id]，实际 %v", got)
	}
}

func TestLoad_SameTimeEntriesKeepSourceOrder(t *testing.T) {
	loader, repo := newTestLoader(t)
	// 回复排在根回帖之前，写入时会被重排，但行号保留源数据顺序
	plan := replaceSource(testPlan(), model.TableEntries, csvSource("entries",
		"entry_id,entry_content,entry_created_at,entry_state,entry_parent_id,entry_posted_by_user_id,topic_id",
		"109,回复,2024-01-03 10:00:00,ACTIVE,101,1,10",
		"105,乙,2024-01-03 10:00:00,ACTIVE,,2,10",
		"101,根,2024-01-03 10:00:00,ACTIVE,,1,10",
	))
	loadAll(t, loader, plan[:5])

	got, err := repo.Entry.ListLatestPerTopic(context.Background(), []int64{10}, 5)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	want := []int64{109, 105, 101}
	if len(got) != len(want) {
		t.Fatalf("期望 %d 条，实际 %d", len(want), len(got))
	}
	for i, e := range got {
		if e.ID != want[i] || e.SourceRow != i+2 {
			t.Errorf("第 %d 条: 期望回帖 %d（行 %d），实际 %d（行 %d）", i, want[i], i+2, e.ID, e.SourceRow)
		}
	}
}

func TestNormalizeEnums_WarningsOrderedByColumn(t *testing.T) {
	cols := EnumColumns{
		"enrollment_type":  model.EnrollmentTypes,
		"enrollment_state": model.EnrollmentStates,
	}
	for i := 0; i < 20; i++ {
		batch := &Batch{
			Records: []Record{
				{"enrollment_type": "online", "enrollment_state": "paused"},
				{"enrollment_type": "course", "enrollment_state": "gone"},
			},
			Rows: []int{2, 3},
		}
		warnings := normalizeEnums(batch, cols)

		want := []string{"2:enrollment_state", "2:enrollment_type", "3:enrollment_state"}
		if len(warnings) != len(want) {
			t.Fatalf("期望 %d 条告警，实际 %+v", len(want), warnings)
		}
		for j, w := range warnings {
			if got := fmt.Sprintf("%d:%s", w.Row, w.Column); got != want[j] {
				t.Fatalf("第 %d 次第 %d 条告警: 期望 %s，实际 %s", i, j, want[j], got)
			}
		}
		if batch.Records[1]["enrollment_type"] != "COURSE" || batch.Records[1]["enrollment_state"] != "" {
			t.Errorf("枚举值应规范化，实际 %+v", batch.Records[1])
		}
	}
}
