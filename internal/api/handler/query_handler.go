package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/vasuki20/suss-student-discussion-data/internal/dto"
	"github.com/vasuki20/suss-student-discussion-data/internal/service"
	"github.com/vasuki20/suss-student-discussion-data/pkg/response"
)

// QueryHandler 聚合查询 HTTP 处理器
type QueryHandler struct {
	querySvc service.QueryService
}

// NewQueryHandler 创建 QueryHandler
func NewQueryHandler(querySvc service.QueryService) *QueryHandler {
	return &QueryHandler{querySvc: querySvc}
}

// UserStats 用户选课、话题、回帖数
// GET /api/v1/users/:id/stats
func (h *QueryHandler) UserStats(c *gin.Context) {
	userID, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}

	stats, err := h.querySvc.UserStats(c.Request.Context(), userID)
	if err != nil {
		h.handleQueryError(c, err)
		return
	}

	response.OK(c, stats)
}

// ActiveEnrollments 用户在读课程
// GET /api/v1/users/:id/courses
func (h *QueryHandler) ActiveEnrollments(c *gin.Context) {
	userID, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}

	courses, err := h.querySvc.ActiveEnrollments(c.Request.Context(), userID)
	if err != nil {
		h.handleQueryError(c, err)
		return
	}

	response.OK(c, gin.H{"list": courses})
}

// RecentActivity 用户在读课程下的最新回帖
// GET /api/v1/users/:id/recent-activity
func (h *QueryHandler) RecentActivity(c *gin.Context) {
	userID, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}

	items, err := h.querySvc.RecentActivity(c.Request.Context(), userID)
	if err != nil {
		h.handleQueryError(c, err)
		return
	}

	response.OK(c, gin.H{"list": items})
}

// ContributionCounts 用户发帖统计
// GET /api/v1/users/:id/contributions
func (h *QueryHandler) ContributionCounts(c *gin.Context) {
	userID, ok := MustGetIDParam(c, "id")
	if !ok {
		return
	}

	counts, err := h.querySvc.ContributionCounts(c.Request.Context(), userID)
	if err != nil {
		h.handleQueryError(c, err)
		return
	}

	response.OK(c, counts)
}

// NewestCourses 最新课程
// GET /api/v1/courses/newest?limit=10
func (h *QueryHandler) NewestCourses(c *gin.Context) {
	var req dto.LimitRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	courses, err := h.querySvc.NewestCourses(c.Request.Context(), req.Limit)
	if err != nil {
		h.handleQueryError(c, err)
		return
	}

	response.OK(c, gin.H{"list": courses})
}

// ActiveDiscussions 全站最新的话题-回帖对
// GET /api/v1/discussions/active?limit=10
func (h *QueryHandler) ActiveDiscussions(c *gin.Context) {
	var req dto.LimitRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	pairs, err := h.querySvc.ActiveDiscussions(c.Request.Context(), req.Limit)
	if err != nil {
		h.handleQueryError(c, err)
		return
	}

	response.OK(c, gin.H{"list": pairs})
}

// handleQueryError 统一处理查询模块业务错误
func (h *QueryHandler) handleQueryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 20001, "用户不存在")
	default:
		handleCommonError(c, err)
	}
}
