package repository_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vasuki20/suss-student-discussion-data/internal/model"
	"github.com/vasuki20/suss-student-discussion-data/internal/repository"
	"github.com/vasuki20/suss-student-discussion-data/pkg/database"
	pkgerrors "github.com/vasuki20/suss-student-discussion-data/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var base = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

// newTestRepo 每个测试使用独立的内存库
func newTestRepo(t *testing.T) *repository.Repository {
	t.Helper()
	return repository.NewRepository(newTestDB(t))
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := database.SQLiteDSN(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(db, zap.NewNop()); err != nil {
		t.Fatalf("AutoMigrate 失败: %v", err)
	}
	return db
}

func course(id int64, created time.Time) *model.Course {
	return &model.Course{
		ID: id, Semester: "2024S1",
		Code: fmt.Sprintf("ICT%03d", id), Name: fmt.Sprintf("课程 %d", id),
		CreatedAt: created,
	}
}

func user(id int64) *model.User {
	return &model.User{ID: id, Name: fmt.Sprintf("user%d", id), CreatedAt: base, State: model.UserStateActive}
}

func topic(id, courseID, userID int64) *model.Topic {
	return &model.Topic{
		ID: id, Title: fmt.Sprintf("话题 %d", id), Content: "内容",
		CreatedAt: base, State: model.TopicStateActive,
		CourseID: courseID, PostedByUserID: userID,
	}
}

func entry(id, topicID, userID int64, created time.Time) *model.Entry {
	return &model.Entry{
		ID: id, Content: fmt.Sprintf("回帖 %d", id),
		CreatedAt: created, State: model.EntryStateActive,
		TopicID: topicID, PostedByUserID: userID,
	}
}

func mustReplace(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("替换失败: %v", err)
	}
}

// seedForum 2 门课程、2 个用户；课程 1 下有话题 10、11
func seedForum(t *testing.T, repo *repository.Repository) {
	t.Helper()
	ctx := context.Background()
	_, err := repo.Replace.Replace(ctx, model.TableCourses, []*model.Course{course(1, base), course(2, base.Add(time.Hour))})
	mustReplace(t, err)
	_, err = repo.Replace.Replace(ctx, model.TableUsers, []*model.User{user(1), user(2)})
	mustReplace(t, err)
	_, err = repo.Replace.Replace(ctx, model.TableTopics, []*model.Topic{topic(10, 1, 1), topic(11, 1, 2), topic(20, 2, 2)})
	mustReplace(t, err)
	_, err = repo.Replace.Replace(ctx, model.TableEnrollment, []*model.Enrollment{
		{UserID: 1, CourseID: 1, Type: model.EnrollmentTypeCourse, State: model.EnrollmentStateActive},
		{UserID: 1, CourseID: 2, Type: model.EnrollmentTypeCourse, State: model.EnrollmentStateCompleted},
		{UserID: 2, CourseID: 2, State: model.EnrollmentStateActive},
	})
	mustReplace(t, err)
}

// ═══════════════════════════════════════════════════════════
// ReplaceRepository
// ═══════════════════════════════════════════════════════════

func TestReplaceCourses_FullReplaceIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	batch := []*model.Course{course(1, base), course(2, base), course(3, base)}

	for i := 0; i < 2; i++ {
		res, err := repo.Replace.Replace(ctx, model.TableCourses, batch)
		mustReplace(t, err)
		if res.Upserted != 3 || res.Deleted != 0 {
			t.Errorf("第 %d 次: 期望 upsert 3 / delete 0，实际 %+v", i+1, res)
		}
		if n, _ := repo.Replace.Count(ctx, model.TableCourses); n != 3 {
			t.Errorf("第 %d 次: 期望 3 行，实际 %d", i+1, n)
		}
	}

	// 批次缩小后旧行被删除，已有行被覆盖
	renamed := course(2, base)
	renamed.Name = "改名"
	res, err := repo.Replace.Replace(ctx, model.TableCourses, []*model.Course{renamed})
	mustReplace(t, err)
	if res.Deleted != 2 {
		t.Errorf("期望删除 2 行，实际 %d", res.Deleted)
	}
	courses, total, _ := repo.Course.List(ctx, repository.CourseFilter{}, 0, 10)
	if total != 1 || courses[0].Name != "改名" {
		t.Errorf("期望仅剩改名后的课程 2，实际 total=%d %+v", total, courses)
	}
}

func TestReplaceCourses_OrphaningChildrenFails(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedForum(t, repo)

	_, err := repo.Replace.Replace(ctx, model.TableCourses, []*model.Course{course(2, base)})
	if !errors.Is(err, pkgerrors.ErrReferentialViolation) {
		t.Fatalf("期望 ErrReferentialViolation，实际: %v", err)
	}
	if n, _ := repo.Replace.Count(ctx, model.TableCourses); n != 2 {
		t.Errorf("替换失败后课程表应保持原状，实际 %d 行", n)
	}
}

func TestReplaceEntries_RemovesStaleThreads(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedForum(t, repo)

	root := entry(100, 10, 1, base)
	reply := entry(101, 10, 2, base.Add(time.Minute))
	reply.ParentID = &root.ID
	nested := entry(102, 10, 1, base.Add(2*time.Minute))
	nested.ParentID = &reply.ID

	_, err := repo.Replace.Replace(ctx, model.TableEntries, []*model.Entry{root, reply, nested})
	mustReplace(t, err)

	res, err := repo.Replace.Replace(ctx, model.TableEntries, []*model.Entry{entry(200, 11, 2, base)})
	mustReplace(t, err)
	if res.Deleted != 3 {
		t.Errorf("期望删除 3 条旧回帖，实际 %d", res.Deleted)
	}
	if n, _ := repo.Replace.Count(ctx, model.TableEntries); n != 1 {
		t.Errorf("期望 1 条回帖，实际 %d", n)
	}
}

func TestReplace_RejectsInvalidLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	bad := user(1)
	bad.State = model.UserStateDeleted

	_, err := repo.Replace.Replace(context.Background(), model.TableUsers, []*model.User{bad})
	if !errors.Is(err, pkgerrors.ErrInvalidRecord) {
		t.Errorf("期望 ErrInvalidRecord，实际: %v", err)
	}
}

func TestKeySet(t *testing.T) {
	repo := newTestRepo(t)
	seedForum(t, repo)

	set, err := repo.Replace.KeySet(context.Background(), model.TableTopics)
	if err != nil {
		t.Fatalf("KeySet 失败: %v", err)
	}
	for _, id := range []int64{10, 11, 20} {
		if _, ok := set[id]; !ok {
			t.Errorf("期望包含话题 %d", id)
		}
	}
	if _, err := repo.Replace.KeySet(context.Background(), model.TableEnrollment); err == nil {
		t.Error("复合主键表应返回错误")
	}
}

func TestUpsertThenPrune_ChildrenFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedForum(t, repo)

	// 新批次去掉课程 2：先写入全部表，再由子到父删除旧行
	n, err := repo.Replace.Upsert(ctx, model.TableCourses, []*model.Course{course(1, base)})
	mustReplace(t, err)
	if n != 1 {
		t.Errorf("期望写入 1 行，实际 %d", n)
	}
	if c, _ := repo.Replace.Count(ctx, model.TableCourses); c != 2 {
		t.Errorf("Upsert 不应删除旧行，实际 %d 行", c)
	}

	if _, err := repo.Replace.Prune(ctx, model.TableCourses, []string{"1"}); !errors.Is(err, pkgerrors.ErrReferentialViolation) {
		t.Fatalf("子表未清理时期望 ErrReferentialViolation，实际: %v", err)
	}

	_, err = repo.Replace.Prune(ctx, model.TableEnrollment, []string{repository.PairKey(1, 1)})
	mustReplace(t, err)
	_, err = repo.Replace.Prune(ctx, model.TableTopics, []string{"10", "11"})
	mustReplace(t, err)
	deleted, err := repo.Replace.Prune(ctx, model.TableCourses, []string{"1"})
	mustReplace(t, err)
	if deleted != 1 {
		t.Errorf("期望删除课程 2，实际删除 %d 行", deleted)
	}
	if c, _ := repo.Replace.Count(ctx, model.TableCourses); c != 1 {
		t.Errorf("期望剩余 1 门课程，实际 %d", c)
	}
}

func TestReplace_RowTypeMismatch(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Replace.Replace(context.Background(), model.TableCourses, []*model.User{user(1)})
	if err == nil {
		t.Error("行类型与表不符时应报错")
	}
	if _, err := repo.Replace.Prune(context.Background(), model.Table("unknown"), nil); err == nil {
		t.Error("未知表应报错")
	}
}

func TestAssociations_Preload(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewRepository(db)
	ctx := context.Background()
	seedForum(t, repo)
	_, err := repo.Replace.Replace(ctx, model.TableLogin, []*model.Login{{UserID: 1, LoginID: "alice"}})
	mustReplace(t, err)
	_, err = repo.Replace.Replace(ctx, model.TableEntries, []*model.Entry{entry(100, 10, 2, base), entry(101, 10, 1, base)})
	mustReplace(t, err)

	var c model.Course
	if err := db.WithContext(ctx).
		Preload("Topics.Entries").
		Preload("Enrollments").
		First(&c, "course_id = ?", 1).Error; err != nil {
		t.Fatalf("预加载课程失败: %v", err)
	}
	if len(c.Topics) != 2 || len(c.Enrollments) != 1 {
		t.Errorf("课程 1 期望 2 个话题、1 条选课，实际 %d / %d", len(c.Topics), len(c.Enrollments))
	}
	for _, tp := range c.Topics {
		if tp.ID == 10 && len(tp.Entries) != 2 {
			t.Errorf("话题 10 期望 2 条回帖，实际 %d", len(tp.Entries))
		}
	}

	var u model.User
	if err := db.WithContext(ctx).
		Preload("Login").Preload("Enrollments").Preload("Topics").Preload("Entries").
		First(&u, "user_id = ?", 1).Error; err != nil {
		t.Fatalf("预加载用户失败: %v", err)
	}
	if u.Login == nil || u.Login.LoginID != "alice" {
		t.Errorf("期望预加载登录凭据，实际 %+v", u.Login)
	}
	if len(u.Enrollments) != 2 || len(u.Topics) != 1 || len(u.Entries) != 1 {
		t.Errorf("用户 1 期望 2 条选课、1 个话题、1 条回帖，实际 %d / %d / %d",
			len(u.Enrollments), len(u.Topics), len(u.Entries))
	}
}

// ═══════════════════════════════════════════════════════════
// 聚合查询
// ═══════════════════════════════════════════════════════════

func TestListLatestPerTopic_KeepsFiveMostRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedForum(t, repo)

	var rows []*model.Entry
	for i := int64(0); i < 7; i++ {
		rows = append(rows, entry(100+i, 10, 1, base.Add(time.Duration(i)*time.Hour)))
	}
	rows = append(rows, entry(300, 11, 2, base.Add(99*time.Hour)))
	_, err := repo.Replace.Replace(ctx, model.TableEntries, rows)
	mustReplace(t, err)

	got, err := repo.Entry.ListLatestPerTopic(ctx, []int64{10}, 5)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	want := []int64{106, 105, 104, 103, 102}
	if len(got) != len(want) {
		t.Fatalf("期望 %d 条，实际 %d", len(want), len(got))
	}
	for i, e := range got {
		if e.ID != want[i] {
			t.Errorf("第 %d 条: 期望 %d，实际 %d", i, want[i], e.ID)
		}
		if e.TopicID != 10 {
			t.Errorf("不应包含其他话题的回帖: %+v", e)
		}
	}
}

func TestListLatestPerTopic_TieBreakBySourceRow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedForum(t, repo)

	// 同一时间的回帖：行号与 entry_id 方向相反
	var rows []*model.Entry
	for i := int64(1); i <= 7; i++ {
		e := entry(i, 10, 1, base)
		e.SourceRow = int(10 - i)
		rows = append(rows, e)
	}
	_, err := repo.Replace.Replace(ctx, model.TableEntries, rows)
	mustReplace(t, err)

	got, _ := repo.Entry.ListLatestPerTopic(ctx, []int64{10}, 5)
	want := []int64{7, 6, 5, 4, 3}
	if len(got) != len(want) {
		t.Fatalf("期望 %d 条，实际 %d", len(want), len(got))
	}
	for i, e := range got {
		if e.ID != want[i] {
			t.Errorf("同一时间应按源数据行号排序，第 %d 条期望 %d，实际 %d", i, want[i], e.ID)
		}
	}
}

func TestListNewest_FifteenCourses(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var rows []*model.Course
	for i := int64(1); i <= 15; i++ {
		rows = append(rows, course(i, base.Add(time.Duration(i)*24*time.Hour)))
	}
	_, err := repo.Replace.Replace(ctx, model.TableCourses, rows)
	mustReplace(t, err)

	got, err := repo.Course.ListNewest(ctx, 10)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("期望 10 门课程，实际 %d", len(got))
	}
	for i, c := range got {
		if c.ID != int64(15-i) {
			t.Errorf("第 %d 门: 期望课程 %d，实际 %d", i, 15-i, c.ID)
		}
	}
}

func TestListLatestWithTopic_LimitAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedForum(t, repo)

	var rows []*model.Entry
	for i := int64(1); i <= 12; i++ {
		topicID := []int64{10, 11, 20}[i%3]
		rows = append(rows, entry(i, topicID, 1, base.Add(time.Duration(i*7%12)*time.Minute)))
	}
	_, err := repo.Replace.Replace(ctx, model.TableEntries, rows)
	mustReplace(t, err)

	got, err := repo.Entry.ListLatestWithTopic(ctx, 10)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("期望 10 条，实际 %d", len(got))
	}
	for i, e := range got {
		if e.Topic == nil || e.Topic.ID != e.TopicID {
			t.Errorf("第 %d 条缺少关联话题: %+v", i, e)
		}
		if i > 0 && e.CreatedAt.After(got[i-1].CreatedAt) {
			t.Errorf("第 %d 条未按时间倒序", i)
		}
	}
}

func TestListActiveByUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedForum(t, repo)

	got, err := repo.Enrollment.ListActiveByUser(ctx, 1)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(got) != 1 || got[0].CourseID != 1 {
		t.Fatalf("期望仅课程 1，实际 %+v", got)
	}
	if got[0].Course == nil || got[0].Course.Code != "ICT001" {
		t.Errorf("期望预加载课程，实际 %+v", got[0].Course)
	}

	if n, _ := repo.Enrollment.CountByUser(ctx, 1); n != 2 {
		t.Errorf("CountByUser 期望 2，实际 %d", n)
	}
	if n, _ := repo.Topic.CountByUser(ctx, 2); n != 2 {
		t.Errorf("Topic.CountByUser 期望 2，实际 %d", n)
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.User.GetByID(context.Background(), 404)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("期望 ErrRecordNotFound，实际: %v", err)
	}
}

func TestIngestRun_CreateAndListRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		run := &model.IngestRun{
			RunID: fmt.Sprintf("run-%d", i), Trigger: "manual",
			Status: model.IngestRunSucceeded, StartedAt: base.Add(time.Duration(i) * time.Hour),
			Report: []byte(`{"tables":[]}`),
		}
		if err := repo.IngestRun.Create(ctx, run); err != nil {
			t.Fatalf("创建失败: %v", err)
		}
	}

	runs, err := repo.IngestRun.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-2" {
		t.Errorf("期望最新的 2 条记录，实际 %+v", runs)
	}

	got, err := repo.IngestRun.GetByRunID(ctx, "run-0")
	if err != nil || got.Status != model.IngestRunSucceeded {
		t.Errorf("GetByRunID 失败: %v %+v", err, got)
	}
}
