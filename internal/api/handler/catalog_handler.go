package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/vasuki20/suss-student-discussion-data/internal/dto"
	"github.com/vasuki20/suss-student-discussion-data/internal/service"
	"github.com/vasuki20/suss-student-discussion-data/pkg/response"
)

// CatalogHandler 原始表分页浏览
type CatalogHandler struct {
	catalogSvc service.CatalogService
}

// NewCatalogHandler 创建 CatalogHandler
func NewCatalogHandler(catalogSvc service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogSvc: catalogSvc}
}

// ListCourses GET /api/v1/courses
func (h *CatalogHandler) ListCourses(c *gin.Context) {
	var req dto.CourseListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.catalogSvc.ListCourses(c.Request.Context(), &req)
	if err != nil {
		handleCommonError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// ListUsers GET /api/v1/users
func (h *CatalogHandler) ListUsers(c *gin.Context) {
	var req dto.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.catalogSvc.ListUsers(c.Request.Context(), &req)
	if err != nil {
		handleCommonError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// ListTopics GET /api/v1/topics
func (h *CatalogHandler) ListTopics(c *gin.Context) {
	var req dto.TopicListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.catalogSvc.ListTopics(c.Request.Context(), &req)
	if err != nil {
		handleCommonError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// ListEntries GET /api/v1/entries
func (h *CatalogHandler) ListEntries(c *gin.Context) {
	var req dto.EntryListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.catalogSvc.ListEntries(c.Request.Context(), &req)
	if err != nil {
		handleCommonError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// ListEnrollments GET /api/v1/enrollments
func (h *CatalogHandler) ListEnrollments(c *gin.Context) {
	var req dto.EnrollmentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.catalogSvc.ListEnrollments(c.Request.Context(), &req)
	if err != nil {
		handleCommonError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}
