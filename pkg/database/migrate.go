package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vasuki20/suss-student-discussion-data/internal/model"
)

// AutoMigrate 按声明的模型建表（不做版本化迁移）
// 业务表按外键依赖顺序创建，最后是导入任务表
func AutoMigrate(db *gorm.DB, logger *zap.Logger) error {
	models := append(model.Tables(), &model.IngestRun{})
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("建表失败: %w", err)
	}
	logger.Info("数据库表结构已就绪", zap.Int("tables", len(models)))
	return nil
}
