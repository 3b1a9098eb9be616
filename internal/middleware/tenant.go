package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 上游网关解析身份后写入的请求头
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
)

// 请求上下文键
const (
	ContextTenantID = "tenantID"
	ContextUserID   = "userID"
)

// TenantContext 租户上下文中间件。
// 租户与用户由上游认证网关解析并通过请求头传入，本服务不做认证，
// 只要求两个标识必须存在，缺失则拒绝请求。
func TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(HeaderTenantID)
		userID := c.GetHeader(HeaderUserID)

		if tenantID == "" || userID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "missing tenant or user identity headers",
			})
			return
		}

		c.Set(ContextTenantID, tenantID)
		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// TenantID 从请求上下文读取租户标识。
func TenantID(c *gin.Context) string {
	return c.GetString(ContextTenantID)
}

// UserID 从请求上下文读取用户标识。
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
