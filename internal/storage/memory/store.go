package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"mailalias/backend/internal/domain"
	"mailalias/backend/internal/storage"
)

// Store 使用内存保存别名数据，主要用于开发验证和测试。
type Store struct {
	mu       sync.RWMutex
	aliases  map[string]*domain.EmailAlias // aliasID -> alias
	bySource map[string]string             // source_email -> aliasID
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		aliases:  make(map[string]*domain.EmailAlias),
		bySource: make(map[string]string),
	}
}

// CreateAlias 插入新别名，地址冲突时返回 ErrAliasExists。
func (s *Store) CreateAlias(alias *domain.EmailAlias) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(alias.SourceEmail)
	if _, exists := s.bySource[key]; exists {
		return storage.ErrAliasExists
	}

	stored := cloneAlias(alias)
	s.aliases[alias.ID] = stored
	s.bySource[key] = alias.ID
	return nil
}

// GetAlias 根据 ID 获取别名。
func (s *Store) GetAlias(id string) (*domain.EmailAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alias, ok := s.aliases[id]
	if !ok {
		return nil, storage.ErrAliasNotFound
	}
	return cloneAlias(alias), nil
}

// GetAliasBySourceEmail 根据别名地址获取别名。
func (s *Store) GetAliasBySourceEmail(address string) (*domain.EmailAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySource[strings.ToLower(address)]
	if !ok {
		return nil, storage.ErrAliasNotFound
	}
	return cloneAlias(s.aliases[id]), nil
}

// ListAliases 按条件分页列出别名，按创建时间降序排列。
func (s *Store) ListAliases(filter storage.AliasFilter) ([]*domain.EmailAlias, error) {
	filter = filter.Normalize()

	// 拷贝必须在读锁内完成，解锁后原记录可能被并发更新
	s.mu.RLock()
	matched := make([]*domain.EmailAlias, 0, len(s.aliases))
	for _, alias := range s.aliases {
		if filter.TenantID != "" && alias.TenantID != filter.TenantID {
			continue
		}
		if filter.AliasType != "" && alias.AliasType != filter.AliasType {
			continue
		}
		if filter.ActiveOnly && !alias.IsActive {
			continue
		}
		matched = append(matched, cloneAlias(alias))
	}
	s.mu.RUnlock()

	// created_at 降序，时间相同时按 ID 保证确定性
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	offset := filter.Offset()
	if offset >= len(matched) {
		return []*domain.EmailAlias{}, nil
	}
	end := offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}

	return matched[offset:end], nil
}

// CountAliasesByUser 统计租户下某用户的别名数量。
func (s *Store) CountAliasesByUser(tenantID, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, alias := range s.aliases {
		if alias.TenantID == tenantID && alias.UserID == userID {
			count++
		}
	}
	return count, nil
}

// UpdateAlias 部分更新别名，nil 字段保持原值。
func (s *Store) UpdateAlias(id string, patch domain.AliasPatch, now time.Time) (*domain.EmailAlias, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alias, ok := s.aliases[id]
	if !ok {
		return nil, storage.ErrAliasNotFound
	}

	if patch.Description != nil {
		alias.Description = *patch.Description
	}
	if patch.MaxUsage != nil {
		maxUsage := *patch.MaxUsage
		alias.MaxUsage = &maxUsage
	}
	if patch.ExpiresAt != nil {
		expiresAt := *patch.ExpiresAt
		alias.ExpiresAt = &expiresAt
	}
	if patch.IsActive != nil {
		alias.IsActive = *patch.IsActive
	}
	alias.UpdatedAt = now

	return cloneAlias(alias), nil
}

// DeleteAlias 删除别名。
func (s *Store) DeleteAlias(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alias, ok := s.aliases[id]
	if !ok {
		return storage.ErrAliasNotFound
	}

	delete(s.bySource, strings.ToLower(alias.SourceEmail))
	delete(s.aliases, id)
	return nil
}

// IncrementUsage 条件自增使用次数。
// 检查与自增在同一把写锁内完成，并发调用不会超过 max_usage。
func (s *Store) IncrementUsage(id string, now time.Time) (*domain.EmailAlias, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alias, ok := s.aliases[id]
	if !ok {
		return nil, storage.ErrAliasNotFound
	}

	if !alias.IsUsable(now) {
		return nil, storage.ErrUsageDenied
	}

	alias.UsageCount++
	alias.UpdatedAt = now
	return cloneAlias(alias), nil
}

// Close 实现 storage.Store 接口。
func (s *Store) Close() error {
	return nil
}

// Health 实现 storage.Store 接口。
func (s *Store) Health() error {
	return nil
}

// cloneAlias 返回别名的深拷贝，避免调用方与存储共享可变状态。
func cloneAlias(alias *domain.EmailAlias) *domain.EmailAlias {
	copied := *alias
	if alias.MaxUsage != nil {
		maxUsage := *alias.MaxUsage
		copied.MaxUsage = &maxUsage
	}
	if alias.ExpiresAt != nil {
		expiresAt := *alias.ExpiresAt
		copied.ExpiresAt = &expiresAt
	}
	if alias.Tags != nil {
		copied.Tags = append(domain.TagList{}, alias.Tags...)
	}
	return &copied
}
