package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AliasType 别名命名策略。
type AliasType string

const (
	AliasTypeRandom     AliasType = "random"     // 随机字符串策略
	AliasTypeThematic   AliasType = "thematic"   // 主题词组策略
	AliasTypeSequential AliasType = "sequential" // 顺序编号策略
)

// NormalizeAliasType 解析客户端传入的策略名。
// 未知的策略值回退到 random，保持对新客户端取值的前向兼容。
func NormalizeAliasType(s string) AliasType {
	switch AliasType(s) {
	case AliasTypeThematic:
		return AliasTypeThematic
	case AliasTypeSequential:
		return AliasTypeSequential
	default:
		return AliasTypeRandom
	}
}

// TagList 别名标签集合，在数据库中以 JSON 文本存储。
type TagList []string

// Value 实现 driver.Valuer。
func (t TagList) Value() (driver.Value, error) {
	if t == nil {
		t = TagList{}
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner。
func (t *TagList) Scan(value interface{}) error {
	if value == nil {
		*t = TagList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("unsupported tag list type: %T", value)
	}
}

// EmailAlias 表示一条邮件别名记录。
// 发送到 SourceEmail 的邮件由投递服务转发到 DestinationEmail。
// 租户与用户标识在创建时写入，之后不可变更。
type EmailAlias struct {
	ID               string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID         string     `json:"tenantId" gorm:"type:varchar(36);index;not null"`
	UserID           string     `json:"userId" gorm:"type:varchar(36);index;not null"`
	SourceEmail      string     `json:"sourceEmail" gorm:"type:varchar(255);uniqueIndex;not null"` // 生成的别名地址，全局唯一
	DestinationEmail string     `json:"destinationEmail" gorm:"type:varchar(255);not null"`        // 真实收件地址
	Domain           string     `json:"domain" gorm:"type:varchar(255)"`                           // 提供服务的域名
	AliasType        AliasType  `json:"aliasType" gorm:"type:varchar(32);index"`
	Description      string     `json:"description" gorm:"type:varchar(512)"`
	IsActive         bool       `json:"isActive" gorm:"index"`
	UsageCount       int        `json:"usageCount"`
	MaxUsage         *int       `json:"maxUsage"`  // 为空表示不限次数
	ExpiresAt        *time.Time `json:"expiresAt"` // 为空表示永不过期
	Tags             TagList    `json:"tags" gorm:"type:text"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// TableName 指定表名。
func (EmailAlias) TableName() string {
	return "email_aliases"
}

// IsExpired 判断别名在给定时刻是否已过期。
func (a *EmailAlias) IsExpired(now time.Time) bool {
	return a.ExpiresAt != nil && !a.ExpiresAt.After(now)
}

// IsExhausted 判断别名使用次数是否已达上限。
// MaxUsage 为空时永不耗尽。
func (a *EmailAlias) IsExhausted() bool {
	return a.MaxUsage != nil && a.UsageCount >= *a.MaxUsage
}

// IsUsable 判断别名当前是否可用于转发。
// 有效性由 is_active、expires_at、usage_count/max_usage 共同决定，
// is_active 标志本身不反映过期或耗尽状态。
func (a *EmailAlias) IsUsable(now time.Time) bool {
	return a.IsActive && !a.IsExpired(now) && !a.IsExhausted()
}

// AliasPatch 描述一次部分更新。
// 为 nil 的字段保持原值，不会被覆盖为空。
type AliasPatch struct {
	Description *string
	MaxUsage    *int
	ExpiresAt   *time.Time
	IsActive    *bool
}

// IsEmpty 判断本次更新是否没有任何字段。
func (p AliasPatch) IsEmpty() bool {
	return p.Description == nil && p.MaxUsage == nil && p.ExpiresAt == nil && p.IsActive == nil
}
