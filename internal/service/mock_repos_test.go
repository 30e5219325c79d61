package service

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/vasuki20/suss-student-discussion-data/internal/model"
	"github.com/vasuki20/suss-student-discussion-data/internal/repository"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[int64]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*model.User)}
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) List(_ context.Context, filter repository.UserFilter, offset, limit int) ([]model.User, int64, error) {
	var result []model.User
	for _, u := range m.users {
		if filter.State != "" && u.State != filter.State {
			continue
		}
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return page(result, offset, limit), int64(len(result)), nil
}

// ── Mock CourseRepository ──

type mockCourseRepo struct {
	courses map[int64]*model.Course
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{courses: make(map[int64]*model.Course)}
}

func (m *mockCourseRepo) List(_ context.Context, filter repository.CourseFilter, offset, limit int) ([]model.Course, int64, error) {
	var result []model.Course
	for _, c := range m.courses {
		if filter.Semester != "" && c.Semester != filter.Semester {
			continue
		}
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return page(result, offset, limit), int64(len(result)), nil
}

func (m *mockCourseRepo) ListNewest(_ context.Context, limit int) ([]model.Course, error) {
	var result []model.Course
	for _, c := range m.courses {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return page(result, 0, limit), nil
}

// ── Mock EnrollmentRepository ──

type mockEnrollmentRepo struct {
	enrollments []model.Enrollment
	courses     *mockCourseRepo
}

func (m *mockEnrollmentRepo) List(_ context.Context, filter repository.EnrollmentFilter, offset, limit int) ([]model.Enrollment, int64, error) {
	var result []model.Enrollment
	for _, e := range m.enrollments {
		if filter.UserID > 0 && e.UserID != filter.UserID {
			continue
		}
		if filter.CourseID > 0 && e.CourseID != filter.CourseID {
			continue
		}
		if filter.State != "" && e.State != filter.State {
			continue
		}
		result = append(result, e)
	}
	return page(result, offset, limit), int64(len(result)), nil
}

func (m *mockEnrollmentRepo) ListActiveByUser(_ context.Context, userID int64) ([]model.Enrollment, error) {
	var result []model.Enrollment
	for _, e := range m.enrollments {
		if e.UserID != userID || e.State != model.EnrollmentStateActive {
			continue
		}
		e.Course = m.courses.courses[e.CourseID]
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CourseID < result[j].CourseID })
	return result, nil
}

func (m *mockEnrollmentRepo) CountByUser(_ context.Context, userID int64) (int64, error) {
	var n int64
	for _, e := range m.enrollments {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

// ── Mock TopicRepository ──

type mockTopicRepo struct {
	topics map[int64]*model.Topic
}

func newMockTopicRepo() *mockTopicRepo {
	return &mockTopicRepo{topics: make(map[int64]*model.Topic)}
}

func (m *mockTopicRepo) List(_ context.Context, filter repository.TopicFilter, offset, limit int) ([]model.Topic, int64, error) {
	var result []model.Topic
	for _, t := range m.topics {
		if filter.CourseID > 0 && t.CourseID != filter.CourseID {
			continue
		}
		if filter.State != "" && t.State != filter.State {
			continue
		}
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return page(result, offset, limit), int64(len(result)), nil
}

func (m *mockTopicRepo) ListByCourses(_ context.Context, courseIDs []int64) ([]model.Topic, error) {
	wanted := make(map[int64]bool, len(courseIDs))
	for _, id := range courseIDs {
		wanted[id] = true
	}
	var result []model.Topic
	for _, t := range m.topics {
		if wanted[t.CourseID] {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CourseID != result[j].CourseID {
			return result[i].CourseID < result[j].CourseID
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *mockTopicRepo) CountByUser(_ context.Context, userID int64) (int64, error) {
	var n int64
	for _, t := range m.topics {
		if t.PostedByUserID == userID {
			n++
		}
	}
	return n, nil
}

// ── Mock EntryRepository ──

type mockEntryRepo struct {
	entries []model.Entry
	topics  *mockTopicRepo
}

func (m *mockEntryRepo) List(_ context.Context, filter repository.EntryFilter, offset, limit int) ([]model.Entry, int64, error) {
	var result []model.Entry
	for _, e := range m.entries {
		if filter.TopicID > 0 && e.TopicID != filter.TopicID {
			continue
		}
		if filter.State != "" && e.State != filter.State {
			continue
		}
		result = append(result, e)
	}
	return page(result, offset, limit), int64(len(result)), nil
}

func (m *mockEntryRepo) CountByUser(_ context.Context, userID int64) (int64, error) {
	var n int64
	for _, e := range m.entries {
		if e.PostedByUserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *mockEntryRepo) ListLatestPerTopic(_ context.Context, topicIDs []int64, perTopic int) ([]model.Entry, error) {
	wanted := make(map[int64]bool, len(topicIDs))
	for _, id := range topicIDs {
		wanted[id] = true
	}
	var sorted []model.Entry
	for _, e := range m.entries {
		if wanted[e.TopicID] {
			sorted = append(sorted, e)
		}
	}
	sortNewest(sorted)

	taken := make(map[int64]int)
	var result []model.Entry
	for _, e := range sorted {
		if taken[e.TopicID] < perTopic {
			taken[e.TopicID]++
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEntryRepo) ListLatestWithTopic(_ context.Context, limit int) ([]model.Entry, error) {
	var result []model.Entry
	for _, e := range m.entries {
		if t, ok := m.topics.topics[e.TopicID]; ok {
			e.Topic = t
			result = append(result, e)
		}
	}
	sortNewest(result)
	return page(result, 0, limit), nil
}

// ── Mock IngestRunRepository ──

type mockIngestRunRepo struct {
	runs map[string]*model.IngestRun
}

func newMockIngestRunRepo() *mockIngestRunRepo {
	return &mockIngestRunRepo{runs: make(map[string]*model.IngestRun)}
}

func (m *mockIngestRunRepo) Create(_ context.Context, run *model.IngestRun) error {
	m.runs[run.RunID] = run
	return nil
}

func (m *mockIngestRunRepo) Update(_ context.Context, run *model.IngestRun) error {
	m.runs[run.RunID] = run
	return nil
}

func (m *mockIngestRunRepo) GetByRunID(_ context.Context, runID string) (*model.IngestRun, error) {
	if r, ok := m.runs[runID]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockIngestRunRepo) ListRecent(_ context.Context, limit int) ([]model.IngestRun, error) {
	var result []model.IngestRun
	for _, r := range m.runs {
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.After(result[j].StartedAt) })
	return page(result, 0, limit), nil
}

// ── 工具函数 ──

func page[T any](rows []T, offset, limit int) []T {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// sortNewest created_at 倒序，同一时间按源数据行号、entry_id 升序
func sortNewest(entries []model.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		if entries[i].SourceRow != entries[j].SourceRow {
			return entries[i].SourceRow < entries[j].SourceRow
		}
		return entries[i].ID < entries[j].ID
	})
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 9, 0, 0, 0, time.UTC)
}
