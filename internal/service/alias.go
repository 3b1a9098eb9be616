package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailalias/backend/internal/config"
	"mailalias/backend/internal/domain"
	"mailalias/backend/internal/generator"
	"mailalias/backend/internal/storage"
)

// 业务错误定义
var (
	// ErrIdentityRequired 缺少租户或用户标识
	ErrIdentityRequired = errors.New("tenant and user identity required")
	// ErrInvalidDestination 目标邮箱地址格式无效
	ErrInvalidDestination = errors.New("invalid destination email address")
	// ErrInvalidMaxUsage 使用次数上限无效
	ErrInvalidMaxUsage = errors.New("max usage must be positive")
	// ErrInvalidExpiry 过期时间无效
	ErrInvalidExpiry = errors.New("expires_in_days must be positive")
)

// createMaxAttempts 随机策略地址冲突时的最大重试次数。
// 重试需要重新抽取随机地址，因此由创建操作驱动，存储层不做内部重试。
const createMaxAttempts = 3

// AliasService 别名生命周期管理器。
// 负责创建、查询、更新、停用、删除与使用计数，是别名记录的唯一写入方；
// 实体不变量在此强制，持久化交由存储接口完成。
type AliasService struct {
	repo  storage.AliasRepository
	cache storage.AliasCache // 可选，为 nil 时直接访问存储
	gen   *generator.AliasGenerator
	cfg   *config.Config
	log   *zap.Logger
}

// NewAliasService 创建别名业务服务。
func NewAliasService(repo storage.AliasRepository, cache storage.AliasCache, gen *generator.AliasGenerator, cfg *config.Config, log *zap.Logger) *AliasService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AliasService{
		repo:  repo,
		cache: cache,
		gen:   gen,
		cfg:   cfg,
		log:   log,
	}
}

// CreateAliasInput 定义创建别名的输入。
// 租户与用户标识由上游网关解析后传入。
type CreateAliasInput struct {
	TenantID         string
	UserID           string
	DestinationEmail string
	AliasType        string // 未知取值回退到 random
	Description      string
	MaxUsage         *int
	ExpiresInDays    *int
	Tags             []string
}

// Create 创建一个新的别名。
// 按策略生成 source_email 并写入存储；地址唯一性由存储层唯一约束保证，
// 随机类策略冲突时重新抽取，最多尝试 createMaxAttempts 次。
func (s *AliasService) Create(input CreateAliasInput) (*domain.EmailAlias, error) {
	if input.TenantID == "" || input.UserID == "" {
		return nil, ErrIdentityRequired
	}

	// 防御性校验目标地址
	destination := strings.ToLower(strings.TrimSpace(input.DestinationEmail))
	if !s.gen.ValidateEmail(destination) {
		return nil, ErrInvalidDestination
	}

	if input.MaxUsage != nil && *input.MaxUsage <= 0 {
		return nil, ErrInvalidMaxUsage
	}

	// 解析过期时间：绝对时间 = 当前时间 + N 天
	now := time.Now().UTC()
	var expiresAt *time.Time
	if input.ExpiresInDays != nil {
		if *input.ExpiresInDays <= 0 {
			return nil, ErrInvalidExpiry
		}
		t := now.Add(time.Duration(*input.ExpiresInDays) * 24 * time.Hour)
		expiresAt = &t
	}

	aliasType := domain.NormalizeAliasType(input.AliasType)
	domainName := s.cfg.Alias.Domain

	tags := domain.TagList(input.Tags)
	if tags == nil {
		tags = domain.TagList{}
	}

	attempts := createMaxAttempts
	if aliasType == domain.AliasTypeSequential {
		// 顺序策略的地址是确定的，重试不会产生新地址
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		sourceEmail, err := s.composeSourceEmail(aliasType, domainName, input)
		if err != nil {
			return nil, err
		}

		alias := &domain.EmailAlias{
			ID:               uuid.NewString(),
			TenantID:         input.TenantID,
			UserID:           input.UserID,
			SourceEmail:      sourceEmail,
			DestinationEmail: destination,
			Domain:           domainName,
			AliasType:        aliasType,
			Description:      input.Description,
			IsActive:         true,
			UsageCount:       0,
			MaxUsage:         input.MaxUsage,
			ExpiresAt:        expiresAt,
			Tags:             tags,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		err = s.repo.CreateAlias(alias)
		if err == nil {
			s.log.Info("alias created",
				zap.String("alias_id", alias.ID),
				zap.String("tenant_id", alias.TenantID),
				zap.String("source_email", alias.SourceEmail),
				zap.String("alias_type", string(alias.AliasType)),
			)
			return alias, nil
		}
		if !errors.Is(err, storage.ErrAliasExists) {
			return nil, fmt.Errorf("failed to save alias: %w", err)
		}

		lastErr = err
		s.log.Warn("alias address collision, retrying",
			zap.String("source_email", sourceEmail),
			zap.Int("attempt", attempt+1),
		)
	}

	return nil, lastErr
}

// composeSourceEmail 按策略生成候选地址。
func (s *AliasService) composeSourceEmail(aliasType domain.AliasType, domainName string, input CreateAliasInput) (string, error) {
	switch aliasType {
	case domain.AliasTypeThematic:
		return s.gen.GenerateThematic(s.cfg.Alias.Theme, domainName), nil
	case domain.AliasTypeSequential:
		// 基底取目标地址的本地部分，计数取该用户现有别名数
		base := sequentialBase(input.DestinationEmail)
		count, err := s.repo.CountAliasesByUser(input.TenantID, input.UserID)
		if err != nil {
			return "", fmt.Errorf("failed to count aliases: %w", err)
		}
		return s.gen.GenerateSequential(base, domainName, count), nil
	default:
		return s.gen.GenerateRandom(domainName), nil
	}
}

// List 按条件分页列出别名。
// active_only 只反映存储的 is_active 标志，不叠加过期/耗尽判断。
func (s *AliasService) List(filter storage.AliasFilter) ([]*domain.EmailAlias, error) {
	return s.repo.ListAliases(filter.Normalize())
}

// Get 获取别名详情。
// 租户不匹配与不存在统一返回 ErrAliasNotFound，避免跨租户探测记录是否存在。
func (s *AliasService) Get(tenantID, id string) (*domain.EmailAlias, error) {
	return s.getOwned(tenantID, id)
}

// getOwned 获取别名并校验租户归属。
// 租户标识在创建后不可变，校验结果对后续操作保持有效。
func (s *AliasService) getOwned(tenantID, id string) (*domain.EmailAlias, error) {
	alias, err := s.repo.GetAlias(id)
	if err != nil {
		return nil, err
	}
	if alias.TenantID != tenantID {
		return nil, storage.ErrAliasNotFound
	}
	return alias, nil
}

// Resolve 根据别名地址解析别名，供投递服务调用。
// 命中缓存时不访问存储，未命中时回源并回填。
func (s *AliasService) Resolve(address string) (*domain.EmailAlias, error) {
	address = strings.ToLower(strings.TrimSpace(address))

	if s.cache != nil {
		if alias, err := s.cache.GetCachedAliasBySourceEmail(address); err == nil {
			return alias, nil
		}
	}

	alias, err := s.repo.GetAliasBySourceEmail(address)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.CacheAlias(alias, s.cfg.Alias.CacheTTL); err != nil {
			s.log.Warn("failed to cache alias", zap.String("alias_id", alias.ID), zap.Error(err))
		}
	}
	return alias, nil
}

// Update 部分更新别名。
// patch 中为 nil 的字段保持原值，任何成功的更新都会刷新 updated_at。
func (s *AliasService) Update(tenantID, id string, patch domain.AliasPatch) (*domain.EmailAlias, error) {
	if patch.MaxUsage != nil && *patch.MaxUsage <= 0 {
		return nil, ErrInvalidMaxUsage
	}

	if _, err := s.getOwned(tenantID, id); err != nil {
		return nil, err
	}

	alias, err := s.repo.UpdateAlias(id, patch, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.invalidate(alias)
	return alias, nil
}

// Deactivate 停用别名。
// 幂等操作：对已停用的别名不产生写入，原样返回当前状态。
func (s *AliasService) Deactivate(tenantID, id string) (*domain.EmailAlias, error) {
	alias, err := s.getOwned(tenantID, id)
	if err != nil {
		return nil, err
	}
	if !alias.IsActive {
		return alias, nil
	}

	inactive := false
	updated, err := s.repo.UpdateAlias(id, domain.AliasPatch{IsActive: &inactive}, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.invalidate(updated)
	s.log.Info("alias deactivated", zap.String("alias_id", id))
	return updated, nil
}

// Delete 删除别名（硬删除，不可恢复）。
func (s *AliasService) Delete(tenantID, id string) error {
	alias, err := s.getOwned(tenantID, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteAlias(id); err != nil {
		return err
	}

	s.invalidate(alias)
	s.log.Info("alias deleted", zap.String("alias_id", id))
	return nil
}

// RecordUsage 记录一次别名使用。
// 仅在别名当前可用（激活、未过期、未达上限）时原子自增 usage_count；
// 不可用时返回 ErrUsageDenied，表示正常的耗尽而非系统错误。
func (s *AliasService) RecordUsage(tenantID, id string) (*domain.EmailAlias, error) {
	if _, err := s.getOwned(tenantID, id); err != nil {
		return nil, err
	}

	alias, err := s.repo.IncrementUsage(id, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.invalidate(alias)
	return alias, nil
}

// GenerateSuggestion 生成一个候选别名地址，不落库。
func (s *AliasService) GenerateSuggestion(domainName string) string {
	if domainName == "" {
		domainName = s.cfg.Alias.Domain
	}
	return s.gen.GenerateRandom(domainName)
}

// invalidate 使别名缓存失效，失败只记日志不影响主流程。
func (s *AliasService) invalidate(alias *domain.EmailAlias) {
	if s.cache == nil || alias == nil {
		return
	}
	if err := s.cache.InvalidateAlias(alias); err != nil {
		s.log.Warn("failed to invalidate alias cache", zap.String("alias_id", alias.ID), zap.Error(err))
	}
}

// sequentialBase 从目标地址提取顺序策略的基底。
// 只保留小写字母和数字，空结果回退为 "alias"。
func sequentialBase(destination string) string {
	local := destination
	if at := strings.Index(destination, "@"); at > 0 {
		local = destination[:at]
	}

	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "alias"
	}
	return b.String()
}
