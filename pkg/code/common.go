package code

import "net/http"

var (
	Success         = NewSuss(1, http.StatusOK, lang{en: "Success", zh_cn: "成功"})
	SuccessCreate   = NewSuss(2, http.StatusOK, lang{en: "Saved successfully", zh_cn: "保存成功"})
	SuccessDelete   = NewSuss(3, http.StatusOK, lang{en: "Deleted successfully", zh_cn: "删除成功"})
	SuccessAccepted = NewSuss(4, http.StatusAccepted, lang{en: "Harvest started", zh_cn: "采集任务已启动"})
	SuccessAbort    = NewSuss(5, http.StatusOK, lang{en: "Abort requested", zh_cn: "已请求中止"})

	ErrorServerInternal   = NewError(500, http.StatusInternalServerError, lang{en: "Internal Server Error", zh_cn: "服务器内部错误"})
	ErrorDBQuery          = NewError(501, http.StatusInternalServerError, lang{en: "Database query failed", zh_cn: "数据库查询失败"})
	ErrorInvalidParams    = NewError(400, http.StatusBadRequest, lang{en: "Invalid Params", zh_cn: "参数错误"})
	ErrorNotFoundAPI      = NewError(404, http.StatusNotFound, lang{en: "API not found", zh_cn: "接口不存在"})
	ErrorTooManyRequests  = NewError(429, http.StatusTooManyRequests, lang{en: "Too many requests", zh_cn: "请求过多"})
	ErrorNotAuthToken     = NewError(401, http.StatusUnauthorized, lang{en: "Token Required", zh_cn: "缺少访问令牌"})
	ErrorInvalidAuthToken = NewError(402, http.StatusUnauthorized, lang{en: "Invalid Token", zh_cn: "访问令牌无效"})

	ErrorValidation       = NewError(40001, http.StatusBadRequest, lang{en: "Validation failed", zh_cn: "校验失败"})
	ErrorInvalidSchedule  = NewError(40002, http.StatusBadRequest, lang{en: "Invalid schedule format", zh_cn: "定时表达式格式错误"})
	ErrorInvalidTransfile = NewError(40003, http.StatusBadRequest, lang{en: "Invalid transfile", zh_cn: "transfile 无效"})
	ErrorInvalidProtocol  = NewError(40004, http.StatusBadRequest, lang{en: "Unknown harvester protocol", zh_cn: "未知的采集协议"})
	ErrorProtocolMismatch = NewError(40005, http.StatusBadRequest, lang{en: "Config belongs to another protocol", zh_cn: "配置属于其他协议"})

	ErrorConfigNotFound = NewError(40401, http.StatusNotFound, lang{en: "Harvester config not found", zh_cn: "采集配置不存在"})
	ErrorRunNotActive   = NewError(40402, http.StatusNotFound, lang{en: "No harvest is running for this config", zh_cn: "该配置没有正在运行的采集"})

	ErrorAlreadyRunning = NewError(40901, http.StatusConflict, lang{en: "Harvest is already running", zh_cn: "采集任务已在运行"})

	ErrorTransport          = NewError(50201, http.StatusBadGateway, lang{en: "Remote transport failed", zh_cn: "远程传输失败"})
	ErrorInvalidStorageType = NewError(50001, http.StatusInternalServerError, lang{en: "Unsupported output storage type", zh_cn: "不支持的输出存储类型"})
	ErrorStorageDisabled    = NewError(50002, http.StatusServiceUnavailable, lang{en: "Output storage is disabled", zh_cn: "输出存储未启用"})
	ErrorServiceClosed      = NewError(50003, http.StatusServiceUnavailable, lang{en: "Service is shutting down", zh_cn: "服务正在关闭"})
)
