package httptransport

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"mailalias/backend/internal/domain"
	"mailalias/backend/internal/middleware"
	"mailalias/backend/internal/monitoring"
	"mailalias/backend/internal/service"
	"mailalias/backend/internal/storage"
)

// AliasHandler 别名 API 处理器
type AliasHandler struct {
	aliases *service.AliasService
	metrics *monitoring.Metrics
}

// NewAliasHandler 创建别名处理器
func NewAliasHandler(aliases *service.AliasService, metrics *monitoring.Metrics) *AliasHandler {
	return &AliasHandler{
		aliases: aliases,
		metrics: metrics,
	}
}

// createAliasRequest 创建别名请求体
type createAliasRequest struct {
	DestinationEmail string   `json:"destinationEmail" binding:"required"`
	AliasType        string   `json:"aliasType"`
	Description      string   `json:"description"`
	MaxUsage         *int     `json:"maxUsage"`
	ExpiresInDays    *int     `json:"expiresInDays"`
	Tags             []string `json:"tags"`
}

// listAliasQuery 列表查询参数
type listAliasQuery struct {
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
	AliasType  string `form:"aliasType"`
	ActiveOnly bool   `form:"activeOnly"`
}

// updateAliasRequest 部分更新请求体，缺省字段保持原值
type updateAliasRequest struct {
	Description *string    `json:"description"`
	MaxUsage    *int       `json:"maxUsage"`
	ExpiresAt   *time.Time `json:"expiresAt"` // RFC3339 格式
	IsActive    *bool      `json:"isActive"`
}

// generateAliasRequest 生成候选地址请求体
type generateAliasRequest struct {
	Domain string `json:"domain"`
}

// createAlias 创建别名
// POST /v1/aliases
func (h *AliasHandler) createAlias(c *gin.Context) {
	var req createAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	alias, err := h.aliases.Create(service.CreateAliasInput{
		TenantID:         middleware.TenantID(c),
		UserID:           middleware.UserID(c),
		DestinationEmail: req.DestinationEmail,
		AliasType:        req.AliasType,
		Description:      req.Description,
		MaxUsage:         req.MaxUsage,
		ExpiresInDays:    req.ExpiresInDays,
		Tags:             req.Tags,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAliasExists) {
			h.metrics.RecordCreateConflict()
		}
		respondError(c, err, MsgAliasCreateFailed)
		return
	}

	h.metrics.RecordAliasCreated(string(alias.AliasType))
	Created(c, gin.H{
		"fullEmail": alias.SourceEmail,
		"alias":     alias,
	})
}

// listAliases 分页列出别名
// GET /v1/aliases?page=0&limit=20&aliasType=random&activeOnly=true
func (h *AliasHandler) listAliases(c *gin.Context) {
	var query listAliasQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	// 过滤值按原样匹配，未知策略名不回退到 random（回退规则只作用于创建）
	filter := storage.AliasFilter{
		TenantID:   middleware.TenantID(c),
		Page:       query.Page,
		Limit:      query.Limit,
		AliasType:  domain.AliasType(query.AliasType),
		ActiveOnly: query.ActiveOnly,
	}

	aliases, err := h.aliases.List(filter)
	if err != nil {
		respondError(c, err, MsgAliasListFailed)
		return
	}

	Success(c, gin.H{
		"aliases": aliases,
		"count":   len(aliases),
	})
}

// getAlias 获取别名详情
// GET /v1/aliases/:id
func (h *AliasHandler) getAlias(c *gin.Context) {
	alias, err := h.aliases.Get(middleware.TenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err, MsgAliasGetFailed)
		return
	}

	Success(c, alias)
}

// resolveAlias 根据别名地址解析别名（供投递服务调用）
// GET /v1/aliases/resolve?address=xxx@alias.temp.mail
func (h *AliasHandler) resolveAlias(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	alias, err := h.aliases.Resolve(address)
	if err != nil {
		respondError(c, err, MsgAliasResolveFailed)
		return
	}

	Success(c, gin.H{
		"alias":  alias,
		"usable": alias.IsUsable(time.Now().UTC()),
	})
}

// updateAlias 部分更新别名
// PUT /v1/aliases/:id
func (h *AliasHandler) updateAlias(c *gin.Context) {
	var req updateAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	patch := domain.AliasPatch{
		Description: req.Description,
		MaxUsage:    req.MaxUsage,
		ExpiresAt:   req.ExpiresAt,
		IsActive:    req.IsActive,
	}

	alias, err := h.aliases.Update(middleware.TenantID(c), c.Param("id"), patch)
	if err != nil {
		respondError(c, err, MsgAliasUpdateFailed)
		return
	}

	Success(c, alias)
}

// deactivateAlias 停用别名（幂等）
// PUT /v1/aliases/:id/deactivate
func (h *AliasHandler) deactivateAlias(c *gin.Context) {
	alias, err := h.aliases.Deactivate(middleware.TenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err, MsgAliasUpdateFailed)
		return
	}

	h.metrics.RecordAliasDeactivated()
	Success(c, alias)
}

// recordUsage 记录一次别名使用
// POST /v1/aliases/:id/usage
func (h *AliasHandler) recordUsage(c *gin.Context) {
	alias, err := h.aliases.RecordUsage(middleware.TenantID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrUsageDenied) {
			h.metrics.RecordUsage(true)
		}
		respondError(c, err, MsgAliasUsageFailed)
		return
	}

	h.metrics.RecordUsage(false)
	Success(c, alias)
}

// deleteAlias 删除别名
// DELETE /v1/aliases/:id
func (h *AliasHandler) deleteAlias(c *gin.Context) {
	if err := h.aliases.Delete(middleware.TenantID(c), c.Param("id")); err != nil {
		respondError(c, err, MsgAliasDeleteFailed)
		return
	}

	h.metrics.RecordAliasDeleted()
	NoContent(c)
}

// generateAlias 生成候选别名地址，不落库
// POST /v1/aliases/generate
func (h *AliasHandler) generateAlias(c *gin.Context) {
	var req generateAliasRequest
	// 请求体可选，解析失败按空处理
	_ = c.ShouldBindJSON(&req)

	Success(c, gin.H{
		"address": h.aliases.GenerateSuggestion(req.Domain),
	})
}
