package service

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mailalias/backend/internal/config"
	"mailalias/backend/internal/domain"
	"mailalias/backend/internal/generator"
	"mailalias/backend/internal/storage"
	"mailalias/backend/internal/storage/memory"
)

// MockRepository 模拟存储接口
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateAlias(alias *domain.EmailAlias) error {
	args := m.Called(alias)
	return args.Error(0)
}

func (m *MockRepository) GetAlias(id string) (*domain.EmailAlias, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailAlias), args.Error(1)
}

func (m *MockRepository) GetAliasBySourceEmail(address string) (*domain.EmailAlias, error) {
	args := m.Called(address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailAlias), args.Error(1)
}

func (m *MockRepository) ListAliases(filter storage.AliasFilter) ([]*domain.EmailAlias, error) {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EmailAlias), args.Error(1)
}

func (m *MockRepository) CountAliasesByUser(tenantID, userID string) (int, error) {
	args := m.Called(tenantID, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) UpdateAlias(id string, patch domain.AliasPatch, now time.Time) (*domain.EmailAlias, error) {
	args := m.Called(id, patch, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailAlias), args.Error(1)
}

func (m *MockRepository) DeleteAlias(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockRepository) IncrementUsage(id string, now time.Time) (*domain.EmailAlias, error) {
	args := m.Called(id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailAlias), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		Alias: config.AliasConfig{
			Domain:   "alias.temp.mail",
			Theme:    "shop",
			CacheTTL: 5 * time.Minute,
		},
	}
}

func newTestService(repo storage.AliasRepository) *AliasService {
	return NewAliasService(repo, nil, generator.NewAliasGenerator(nil), testConfig(), nil)
}

func TestAliasService_Create_Random(t *testing.T) {
	svc := newTestService(memory.NewStore())

	alias, err := svc.Create(CreateAliasInput{
		TenantID:         "tenant-1",
		UserID:           "user-1",
		DestinationEmail: "Real@Example.COM",
		AliasType:        "random",
		Description:      "shopping",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, alias.ID)
	assert.Equal(t, domain.AliasTypeRandom, alias.AliasType)
	assert.Regexp(t, regexp.MustCompile(`^[a-z0-9]{8}\d{3,4}@alias\.temp\.mail$`), alias.SourceEmail)

	// 目标地址归一化为小写
	assert.Equal(t, "real@example.com", alias.DestinationEmail)

	assert.True(t, alias.IsActive)
	assert.Zero(t, alias.UsageCount)
	assert.Nil(t, alias.MaxUsage)
	assert.Nil(t, alias.ExpiresAt)
	assert.NotNil(t, alias.Tags)
}

func TestAliasService_Create_UnknownTypeFallsBackToRandom(t *testing.T) {
	svc := newTestService(memory.NewStore())

	alias, err := svc.Create(CreateAliasInput{
		TenantID:         "tenant-1",
		UserID:           "user-1",
		DestinationEmail: "real@example.com",
		AliasType:        "fancy-future-strategy",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AliasTypeRandom, alias.AliasType)
}

func TestAliasService_Create_Thematic(t *testing.T) {
	svc := newTestService(memory.NewStore())

	alias, err := svc.Create(CreateAliasInput{
		TenantID:         "tenant-1",
		UserID:           "user-1",
		DestinationEmail: "real@example.com",
		AliasType:        "thematic",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AliasTypeThematic, alias.AliasType)
	assert.Regexp(t, regexp.MustCompile(`^shop-[a-z]+-[a-z]+\d{2}@alias\.temp\.mail$`), alias.SourceEmail)
}

func TestAliasService_Create_Sequential(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store)

	input := CreateAliasInput{
		TenantID:         "tenant-1",
		UserID:           "user-1",
		DestinationEmail: "john.doe@example.com",
		AliasType:        "sequential",
	}

	// 基底取目标地址本地部分（只保留字母数字），计数从现有别名数推进
	first, err := svc.Create(input)
	require.NoError(t, err)
	assert.Equal(t, "johndoe1@alias.temp.mail", first.SourceEmail)

	second, err := svc.Create(input)
	require.NoError(t, err)
	assert.Equal(t, "johndoe2@alias.temp.mail", second.SourceEmail)
}

func TestAliasService_Create_Expiry(t *testing.T) {
	svc := newTestService(memory.NewStore())

	days := 7
	before := time.Now().UTC()
	alias, err := svc.Create(CreateAliasInput{
		TenantID:         "tenant-1",
		UserID:           "user-1",
		DestinationEmail: "real@example.com",
		ExpiresInDays:    &days,
	})
	require.NoError(t, err)
	after := time.Now().UTC()

	require.NotNil(t, alias.ExpiresAt)
	assert.False(t, alias.ExpiresAt.Before(before.Add(7*24*time.Hour)))
	assert.False(t, alias.ExpiresAt.After(after.Add(7*24*time.Hour)))
}

func TestAliasService_Create_Validation(t *testing.T) {
	svc := newTestService(memory.NewStore())

	base := CreateAliasInput{
		TenantID:         "tenant-1",
		UserID:           "user-1",
		DestinationEmail: "real@example.com",
	}

	// 缺少租户/用户标识
	input := base
	input.TenantID = ""
	_, err := svc.Create(input)
	assert.ErrorIs(t, err, ErrIdentityRequired)

	input = base
	input.UserID = ""
	_, err = svc.Create(input)
	assert.ErrorIs(t, err, ErrIdentityRequired)

	// 目标地址非法
	input = base
	input.DestinationEmail = "not-an-email"
	_, err = svc.Create(input)
	assert.ErrorIs(t, err, ErrInvalidDestination)

	// 使用上限必须为正数
	input = base
	zero := 0
	input.MaxUsage = &zero
	_, err = svc.Create(input)
	assert.ErrorIs(t, err, ErrInvalidMaxUsage)

	// 过期天数必须为正数
	input = base
	negative := -1
	input.ExpiresInDays = &negative
	_, err = svc.Create(input)
	assert.ErrorIs(t, err, ErrInvalidExpiry)
}

func TestAliasService_Create_RetriesOnCollision(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)

	// 前两次地址冲突，第三次成功
	repo.On("CreateAlias", mock.Anything).Return(storage.ErrAliasExists).Twice()
	repo.On("CreateAlias", mock.Anything).Return(nil).Once()

	alias, err := svc.Create(CreateAliasInput{
		TenantID:         "tenant-1",
		UserID:           "user-1",
		DestinationEmail: "real@example.com",
	})
	require.NoError(t, err)
	assert.NotNil(t, alias)
	repo.AssertNumberOfCalls(t, "CreateAlias", 3)
}

func TestAliasService_Create_RetriesExhausted(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)

	repo.On("CreateAlias", mock.Anything).Return(storage.ErrAliasExists)

	_, err := svc.Create(CreateAliasInput{
		TenantID:         "tenant-1",
		UserID:           "user-1",
		DestinationEmail: "real@example.com",
	})
	assert.ErrorIs(t, err, storage.ErrAliasExists)
	repo.AssertNumberOfCalls(t, "CreateAlias", 3)
}

func TestAliasService_Create_SequentialDoesNotRetry(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)

	// 顺序策略的地址是确定的，冲突时重试只会得到同一地址
	repo.On("CountAliasesByUser", "tenant-1", "user-1").Return(0, nil)
	repo.On("CreateAlias", mock.Anything).Return(storage.ErrAliasExists)

	_, err := svc.Create(CreateAliasInput{
		TenantID:         "tenant-1",
		UserID:           "user-1",
		DestinationEmail: "real@example.com",
		AliasType:        "sequential",
	})
	assert.ErrorIs(t, err, storage.ErrAliasExists)
	repo.AssertNumberOfCalls(t, "CreateAlias", 1)
}

func TestAliasService_Deactivate(t *testing.T) {
	svc := newTestService(memory.NewStore())

	alias, err := svc.Create(CreateAliasInput{
		TenantID:         "tenant-1",
		UserID:           "user-1",
		DestinationEmail: "real@example.com",
	})
	require.NoError(t, err)
	require.True(t, alias.IsActive)

	deactivated, err := svc.Deactivate("tenant-1", alias.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	// 幂等：重复停用不报错且状态不变
	again, err := svc.Deactivate("tenant-1", alias.ID)
	require.NoError(t, err)
	assert.False(t, again.IsActive)
	assert.True(t, again.UpdatedAt.Equal(deactivated.UpdatedAt))

	_, err = svc.Deactivate("tenant-1", "missing")
	assert.ErrorIs(t, err, storage.ErrAliasNotFound)
}

func TestAliasService_RecordUsage(t *testing.T) {
	svc := newTestService(memory.NewStore())

	maxUsage := 1
	alias, err := svc.Create(CreateAliasInput{
		TenantID:         "tenant-1",
		UserID:           "user-1",
		DestinationEmail: "real@example.com",
		MaxUsage:         &maxUsage,
	})
	require.NoError(t, err)

	used, err := svc.RecordUsage("tenant-1", alias.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, used.UsageCount)

	// 达到上限后拒绝
	_, err = svc.RecordUsage("tenant-1", alias.ID)
	assert.ErrorIs(t, err, storage.ErrUsageDenied)
}

func TestAliasService_Resolve(t *testing.T) {
	svc := newTestService(memory.NewStore())

	alias, err := svc.Create(CreateAliasInput{
		TenantID:         "tenant-1",
		UserID:           "user-1",
		DestinationEmail: "real@example.com",
	})
	require.NoError(t, err)

	// 大小写与空白不敏感
	resolved, err := svc.Resolve("  " + alias.SourceEmail + " ")
	require.NoError(t, err)
	assert.Equal(t, alias.ID, resolved.ID)

	_, err = svc.Resolve("unknown@alias.temp.mail")
	assert.ErrorIs(t, err, storage.ErrAliasNotFound)
}

func TestAliasService_Delete(t *testing.T) {
	svc := newTestService(memory.NewStore())

	alias, err := svc.Create(CreateAliasInput{
		TenantID:         "tenant-1",
		UserID:           "user-1",
		DestinationEmail: "real@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete("tenant-1", alias.ID))

	_, err = svc.Get("tenant-1", alias.ID)
	assert.ErrorIs(t, err, storage.ErrAliasNotFound)

	assert.ErrorIs(t, svc.Delete("tenant-1", alias.ID), storage.ErrAliasNotFound)
}

func TestAliasService_Update(t *testing.T) {
	svc := newTestService(memory.NewStore())

	alias, err := svc.Create(CreateAliasInput{
		TenantID:         "tenant-1",
		UserID:           "user-1",
		DestinationEmail: "real@example.com",
	})
	require.NoError(t, err)

	desc := "updated description"
	updated, err := svc.Update("tenant-1", alias.ID, domain.AliasPatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, updated.Description)

	// 非法的使用上限
	zero := 0
	_, err = svc.Update("tenant-1", alias.ID, domain.AliasPatch{MaxUsage: &zero})
	assert.ErrorIs(t, err, ErrInvalidMaxUsage)
}

func TestAliasService_TenantIsolation(t *testing.T) {
	svc := newTestService(memory.NewStore())

	alias, err := svc.Create(CreateAliasInput{
		TenantID:         "tenant-1",
		UserID:           "user-1",
		DestinationEmail: "real@example.com",
	})
	require.NoError(t, err)

	// 其他租户对别名的任何操作都表现为记录不存在
	_, err = svc.Get("tenant-2", alias.ID)
	assert.ErrorIs(t, err, storage.ErrAliasNotFound)

	desc := "hijack"
	_, err = svc.Update("tenant-2", alias.ID, domain.AliasPatch{Description: &desc})
	assert.ErrorIs(t, err, storage.ErrAliasNotFound)

	_, err = svc.Deactivate("tenant-2", alias.ID)
	assert.ErrorIs(t, err, storage.ErrAliasNotFound)

	_, err = svc.RecordUsage("tenant-2", alias.ID)
	assert.ErrorIs(t, err, storage.ErrAliasNotFound)

	assert.ErrorIs(t, svc.Delete("tenant-2", alias.ID), storage.ErrAliasNotFound)

	// 本租户仍可正常访问，记录未被改动
	got, err := svc.Get("tenant-1", alias.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Empty(t, got.Description)
	assert.Zero(t, got.UsageCount)
}
