package logger

// 统一的日志字段命名常量
// 用于确保整个项目中日志字段命名的一致性，便于日志查询和分析
const (
	// FieldTraceID 追踪 ID 字段
	FieldTraceID = "traceId"

	// FieldConfigID 采集配置 ID 字段
	FieldConfigID = "configId"

	// FieldRunID 运行 ID 字段
	FieldRunID = "runId"

	// FieldProtocol 协议字段
	FieldProtocol = "protocol"

	// FieldSeqno 序号水位字段
	FieldSeqno = "seqno"

	// FieldState 运行状态字段
	FieldState = "state"

	// FieldTrigger 触发方式字段
	FieldTrigger = "trigger"

	// FieldFile 远端文件名字段
	FieldFile = "file"

	// FieldDuration 耗时字段
	FieldDuration = "duration"

	// FieldMethod 方法名称字段
	FieldMethod = "method"

	// FieldSize 文件大小字段
	FieldSize = "size"

	// FieldBucket 存储桶名称字段
	FieldBucket = "bucket"

	// FieldFileKey 文件键字段
	FieldFileKey = "fileKey"

	// FieldTask 后台任务名称字段
	FieldTask = "task"
)
