package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"mailalias/backend/internal/service"
	"mailalias/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	service.ErrIdentityRequired:   "缺少租户或用户标识",
	service.ErrInvalidDestination: "目标邮箱地址格式无效",
	service.ErrInvalidMaxUsage:    "使用次数上限必须为正数",
	service.ErrInvalidExpiry:      "过期天数必须为正数",
	storage.ErrAliasNotFound:      "别名不存在",
	storage.ErrAliasExists:        "别名地址已存在，请重试",
	storage.ErrUsageDenied:        "别名不可用（已停用、已过期或已达使用上限）",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	for sentinel, msg := range errorMessages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return err.Error()
}

// respondError 将业务错误映射为 HTTP 响应。
// 未识别的错误按存储层瞬时故障处理，返回 500 供调用方重试。
func respondError(c *gin.Context, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, storage.ErrAliasNotFound):
		NotFound(c, GetErrorMessage(err))
	case errors.Is(err, storage.ErrAliasExists):
		Conflict(c, GetErrorMessage(err))
	case errors.Is(err, storage.ErrUsageDenied):
		Forbidden(c, GetErrorMessage(err))
	case errors.Is(err, service.ErrIdentityRequired),
		errors.Is(err, service.ErrInvalidDestination),
		errors.Is(err, service.ErrInvalidMaxUsage),
		errors.Is(err, service.ErrInvalidExpiry):
		BadRequest(c, GetErrorMessage(err))
	default:
		InternalError(c, fallbackMsg)
	}
}

// 通用错误消息
const (
	MsgInvalidRequest     = "请求参数格式错误"
	MsgAliasCreateFailed  = "创建别名失败"
	MsgAliasListFailed    = "获取别名列表失败"
	MsgAliasGetFailed     = "获取别名详情失败"
	MsgAliasUpdateFailed  = "更新别名失败"
	MsgAliasDeleteFailed  = "删除别名失败"
	MsgAliasUsageFailed   = "记录别名使用失败"
	MsgAliasResolveFailed = "解析别名失败"
	MsgInternalError      = "服务器内部错误，请稍后重试"
)
