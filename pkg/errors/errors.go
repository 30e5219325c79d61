package errors

import "errors"

// 跨模块共享的错误类别，业务层通过 %w 包装后用 errors.Is 判断

var (
	// ErrInvalidEnumValue 枚举标签不在声明集合内
	ErrInvalidEnumValue = errors.New("无效的枚举值")

	// ErrSourceUnavailable 导入数据源无法读取或解析
	ErrSourceUnavailable = errors.New("数据源不可用")

	// ErrNotFound 按主键查询无记录
	ErrNotFound = errors.New("记录不存在")

	// ErrReferentialViolation 子记录引用了不存在的父记录，或替换会产生孤儿记录
	ErrReferentialViolation = errors.New("违反引用完整性")

	// ErrInvalidRecord 记录字段缺失或不满足约束
	ErrInvalidRecord = errors.New("无效的记录")

	// ErrPipelineBusy 已有导入任务在运行
	ErrPipelineBusy = errors.New("导入任务正在运行")
)
