package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vasuki20/suss-student-discussion-data/config"
	"github.com/vasuki20/suss-student-discussion-data/internal/api/handler"
	"github.com/vasuki20/suss-student-discussion-data/internal/api/middleware"
)

// Setup 初始化并返回 Gin 路由引擎
// limiter 为 nil 时手动导入不限流
func Setup(cfg *config.Config, h *handler.Handler, db *gorm.DB, limiter middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 聚合查询
		users := v1.Group("/users")
		{
			users.GET("", h.Catalog.ListUsers)
			users.GET("/:id/stats", h.Query.UserStats)
			users.GET("/:id/courses", h.Query.ActiveEnrollments)
			users.GET("/:id/recent-activity", h.Query.RecentActivity)
			users.GET("/:id/contributions", h.Query.ContributionCounts)
		}

		courses := v1.Group("/courses")
		{
			courses.GET("", h.Catalog.ListCourses)
			courses.GET("/newest", h.Query.NewestCourses)
		}

		v1.GET("/discussions/active", h.Query.ActiveDiscussions)

		// 原始表浏览
		v1.GET("/topics", h.Catalog.ListTopics)
		v1.GET("/entries", h.Catalog.ListEntries)
		v1.GET("/enrollments", h.Catalog.ListEnrollments)

		// 导入管理（需管理令牌）
		ingest := v1.Group("/ingest")
		ingest.Use(middleware.AdminToken(cfg.Ingest.AdminToken))
		{
			ingest.POST("/runs", middleware.RateLimit(limiter, cfg.Ingest.RateLimit, time.Minute), h.Ingest.TriggerRun)
			ingest.GET("/runs", h.Ingest.ListRuns)
			ingest.GET("/runs/:run_id", h.Ingest.GetRun)
		}
	}

	return r
}
