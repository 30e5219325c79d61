package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/vasuki20/suss-student-discussion-data/internal/dto"
	"github.com/vasuki20/suss-student-discussion-data/internal/service"
	pkgerrors "github.com/vasuki20/suss-student-discussion-data/pkg/errors"
	"github.com/vasuki20/suss-student-discussion-data/pkg/response"
)

// IngestHandler 导入管理 HTTP 处理器（需管理令牌）
type IngestHandler struct {
	ingestSvc service.IngestService
}

// NewIngestHandler 创建 IngestHandler
func NewIngestHandler(ingestSvc service.IngestService) *IngestHandler {
	return &IngestHandler{ingestSvc: ingestSvc}
}

// TriggerRun 手动触发一次导入，完成后返回报告（201，对应新建的导入记录）
// POST /api/v1/ingest/runs
func (h *IngestHandler) TriggerRun(c *gin.Context) {
	report, err := h.ingestSvc.Trigger(c.Request.Context())
	if err != nil {
		h.handleIngestError(c, err)
		return
	}

	response.Created(c, report)
}

// ListRuns 最近的导入记录
// GET /api/v1/ingest/runs?limit=10
func (h *IngestHandler) ListRuns(c *gin.Context) {
	var req dto.LimitRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	runs, err := h.ingestSvc.ListRuns(c.Request.Context(), req.Limit)
	if err != nil {
		h.handleIngestError(c, err)
		return
	}

	response.OK(c, gin.H{"list": runs})
}

// GetRun 导入记录详情（含报告）
// GET /api/v1/ingest/runs/:run_id
func (h *IngestHandler) GetRun(c *gin.Context) {
	runID := c.Param("run_id")
	if runID == "" {
		response.BadRequest(c, 10001, "run_id 不能为空")
		return
	}

	run, err := h.ingestSvc.GetRun(c.Request.Context(), runID)
	if err != nil {
		h.handleIngestError(c, err)
		return
	}

	response.OK(c, run)
}

// handleIngestError 统一处理导入模块业务错误
func (h *IngestHandler) handleIngestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrPipelineBusy):
		response.Conflict(c, 30001, "已有导入任务在运行")
	case errors.Is(err, service.ErrIngestRunNotFound):
		response.NotFound(c, 30002, "导入记录不存在")
	default:
		handleCommonError(c, err)
	}
}
