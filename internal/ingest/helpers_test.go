package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vasuki20/suss-student-discussion-data/internal/model"
	"github.com/vasuki20/suss-student-discussion-data/internal/repository"
	"github.com/vasuki20/suss-student-discussion-data/pkg/database"
)

// memSource 内存数据源
type memSource struct {
	name string
	data []byte
	err  error
	// opened 非 nil 时在 Open 中通知，release 非 nil 时阻塞到关闭
	opened  chan struct{}
	release chan struct{}
}

func (m *memSource) Name() string { return m.name }

func (m *memSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if m.opened != nil {
		m.opened <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}
	if m.err != nil {
		return nil, m.err
	}
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

// csvSource 第一行为表头
func csvSource(name string, lines ...string) *memSource {
	return &memSource{name: name + ".csv", data: []byte(strings.Join(lines, "\n") + "\n")}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := database.SQLiteDSN(fmt.Sprintf("file:ingest_%s?mode=memory&cache=shared", name))

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

func newTestLoader(t *testing.T) (*Loader, *repository.Repository) {
	t.Helper()
	repo := repository.NewRepository(newTestDB(t))
	return NewLoader(repo.Replace, zap.NewNop()), repo
}

// ── 标准测试数据 ──

func coursesCSV() *memSource {
	return csvSource("courses",
		"course_id,semester,course_code,course_name,course_created_at",
		"1,2024S1,ICT101,编程基础,2024-01-01 08:00:00",
		"2,2024S1,ICT102,数据结构,2024-01-02 08:00:00",
	)
}

func usersCSV() *memSource {
	return csvSource("users",
		"user_id,user_name,user_created_at,user_deleted_at,user_state",
		"1,alice,2024-01-01,,active",
		"2,bob,2024-01-01,,Registered",
		"3,carol,2024-01-01,,deleted",
	)
}

func loginCSV() *memSource {
	return csvSource("login",
		"user_id,user_login_id",
		"1,alice-secret",
		"2,bob-secret",
	)
}

func topicsCSV() *memSource {
	return csvSource("topics",
		"topic_id,topic_title,topic_content,topic_created_at,topic_deleted_at,topic_state,course_id,topic_posted_by_user_id",
		"10,欢迎,第一周讨论,2024-01-03 09:00:00,,ACTIVE,1,1",
		"11,作业一,提问区,2024-01-04 09:00:00,,active,1,2",
		"20,期末,复习,2024-01-05 09:00:00,,ACTIVE,2,2",
	)
}

func entriesCSV() *memSource {
	return csvSource("entries",
		"entry_id,entry_content,entry_created_at,entry_deleted_at,entry_state,entry_parent_id,entry_posted_by_user_id,topic_id",
		"101,你好,2024-01-03 10:00:00,,ACTIVE,,2,10",
		"102,回复,2024-01-03 11:00:00,,ACTIVE,101,1,10",
		"103,再回复,2024-01-03 12:00:00,,ACTIVE,102,2,10",
		"201,问题,2024-01-04 10:00:00,,ACTIVE,,1,11",
	)
}

func enrollmentCSV() *memSource {
	return csvSource("enrollment",
		"user_id,course_id,enrollment_type,enrollment_state",
		"1,1,course,active",
		"1,2,COURSE,Completed",
		"2,1,program,ACTIVE",
	)
}

func testPlan() []LoadSpec {
	sources := map[model.Table]Source{
		model.TableCourses:    coursesCSV(),
		model.TableUsers:      usersCSV(),
		model.TableLogin:      loginCSV(),
		model.TableTopics:     topicsCSV(),
		model.TableEntries:    entriesCSV(),
		model.TableEnrollment: enrollmentCSV(),
	}
	plan, _ := DefaultPlan(func(t model.Table) (Source, error) { return sources[t], nil })
	return plan
}

func replaceSource(plan []LoadSpec, table model.Table, src Source) []LoadSpec {
	out := make([]LoadSpec, len(plan))
	copy(out, plan)
	for i := range out {
		if out[i].Table == table {
			out[i].Source = src
		}
	}
	return out
}

func count(t *testing.T, repo *repository.Repository, table model.Table) int64 {
	t.Helper()
	n, err := repo.Replace.Count(context.Background(), table)
	if err != nil {
		t.Fatalf("统计 %s 失败: %v", table, err)
	}
	return n
}
