package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/vasuki20/suss-student-discussion-data/pkg/errors"
	"github.com/vasuki20/suss-student-discussion-data/pkg/response"
)

// MustGetIDParam 解析路径中的正整数主键。
// 解析失败时写入 400 响应并返回 false，调用方应直接 return。
func MustGetIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, 10001, name+" 必须为正整数")
		return 0, false
	}
	return id, true
}

// handleCommonError 各模块共享的错误映射，未识别的错误按 500 处理
func handleCommonError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidEnumValue):
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
	case errors.Is(err, pkgerrors.ErrNotFound):
		response.NotFound(c, 10006, "记录不存在")
	default:
		response.InternalError(c)
	}
}
