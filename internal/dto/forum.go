package dto

import "time"

// ── 列表筛选 ──

// CourseListRequest 课程列表
type CourseListRequest struct {
	PaginationRequest
	Semester string `form:"semester" binding:"omitempty,max=50"`
}

// UserListRequest 用户列表
type UserListRequest struct {
	PaginationRequest
	State string `form:"state" binding:"omitempty,max=20"`
}

// TopicListRequest 话题列表
type TopicListRequest struct {
	PaginationRequest
	CourseID int64  `form:"course_id" binding:"omitempty,min=1"`
	State    string `form:"state"     binding:"omitempty,max=20"`
}

// EntryListRequest 回帖列表
type EntryListRequest struct {
	PaginationRequest
	TopicID int64  `form:"topic_id" binding:"omitempty,min=1"`
	State   string `form:"state"    binding:"omitempty,max=20"`
}

// EnrollmentListRequest 选课列表
type EnrollmentListRequest struct {
	PaginationRequest
	UserID   int64  `form:"user_id"   binding:"omitempty,min=1"`
	CourseID int64  `form:"course_id" binding:"omitempty,min=1"`
	State    string `form:"state"     binding:"omitempty,max=20"`
}

// ── 聚合查询响应 ──

// UserStatsResponse 用户统计
type UserStatsResponse struct {
	EnrollmentCount int64 `json:"enrollment_count"`
	TopicCount      int64 `json:"topic_count"`
	EntryCount      int64 `json:"entry_count"`
}

// MyCourseResponse 用户在读课程
type MyCourseResponse struct {
	CourseName     string `json:"course_name"`
	CourseCode     string `json:"course_code"`
	EnrollmentType string `json:"enrollment_type"`
}

// RecentActivityResponse 用户课程下的最新回帖
type RecentActivityResponse struct {
	TopicTitle     string    `json:"topic_title"`
	TopicContent   string    `json:"topic_content"`
	EntryContent   string    `json:"entry_content"`
	EntryCreatedAt time.Time `json:"entry_created_at"`
}

// ContributionResponse 用户发帖统计
type ContributionResponse struct {
	TopicCount int64 `json:"topic_count"`
	EntryCount int64 `json:"entry_count"`
}

// NewestCourseResponse 最新课程
type NewestCourseResponse struct {
	CourseName      string    `json:"course_name"`
	CourseCode      string    `json:"course_code"`
	CourseCreatedAt time.Time `json:"course_created_at"`
}

// ActiveDiscussionResponse 全站最新的话题-回帖对
type ActiveDiscussionResponse struct {
	TopicTitle     string    `json:"topic_title"`
	TopicContent   string    `json:"topic_content"`
	EntryCreatedAt time.Time `json:"entry_created_at"`
}
