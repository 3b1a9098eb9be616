package storage

import (
	"errors"
	"time"

	"mailalias/backend/internal/domain"
)

var (
	// ErrAliasNotFound 别名未找到错误
	ErrAliasNotFound = errors.New("alias not found")
	// ErrAliasExists 别名地址已存在错误（source_email 唯一约束冲突）
	ErrAliasExists = errors.New("alias address already exists")
	// ErrUsageDenied 别名不可用错误（未激活、已过期或已达使用上限）
	ErrUsageDenied = errors.New("alias usage denied")
)

// 分页参数限制
const (
	DefaultPageSize = 20  // 默认每页数量
	MaxPageSize     = 100 // 每页数量硬上限
)

// AliasFilter 列表查询条件。
// 由传输层构造，存储实现必须将其翻译为参数化查询，禁止字符串拼接。
type AliasFilter struct {
	TenantID   string           // 租户隔离，必填
	Page       int              // 页码，从 0 开始
	Limit      int              // 每页数量
	AliasType  domain.AliasType // 为空表示不过滤策略类型
	ActiveOnly bool             // 仅返回 is_active = true 的记录
}

// Normalize 返回规范化后的过滤条件。
// 页码不为负，每页数量缺省为 20，上限钳制到 100。
func (f AliasFilter) Normalize() AliasFilter {
	if f.Page < 0 {
		f.Page = 0
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	return f
}

// Offset 返回偏移量，offset = page * limit。
func (f AliasFilter) Offset() int {
	return f.Page * f.Limit
}

// AliasRepository 定义别名数据存取操作。
// 列表结果固定按 created_at 降序排列。
type AliasRepository interface {
	// CreateAlias 插入新别名。source_email 冲突时返回 ErrAliasExists。
	CreateAlias(alias *domain.EmailAlias) error
	GetAlias(id string) (*domain.EmailAlias, error)
	GetAliasBySourceEmail(address string) (*domain.EmailAlias, error)
	ListAliases(filter AliasFilter) ([]*domain.EmailAlias, error)
	// CountAliasesByUser 统计租户下某用户的别名数量，供顺序策略取计数。
	CountAliasesByUser(tenantID, userID string) (int, error)
	// UpdateAlias 部分更新，patch 中为 nil 的字段保持原值。
	UpdateAlias(id string, patch domain.AliasPatch, now time.Time) (*domain.EmailAlias, error)
	DeleteAlias(id string) error
	// IncrementUsage 条件自增使用次数。
	// 仅当别名处于激活、未过期且未达上限时自增并刷新 updated_at；
	// 检查与自增必须在同一原子操作内完成，并发的使用事件不得使
	// usage_count 超过 max_usage。不可用时返回 ErrUsageDenied。
	IncrementUsage(id string, now time.Time) (*domain.EmailAlias, error)
}

// AliasCache 定义别名缓存操作，用于投递路径的地址解析加速。
type AliasCache interface {
	CacheAlias(alias *domain.EmailAlias, ttl time.Duration) error
	GetCachedAlias(id string) (*domain.EmailAlias, error)
	GetCachedAliasBySourceEmail(address string) (*domain.EmailAlias, error)
	InvalidateAlias(alias *domain.EmailAlias) error
}

// Store 定义完整的存储接口。
type Store interface {
	AliasRepository

	// 工具方法
	Close() error
	Health() error
}
