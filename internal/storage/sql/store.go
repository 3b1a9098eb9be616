package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mailalias/backend/internal/domain"
	"mailalias/backend/internal/storage"
)

// PostgreSQL/MySQL 唯一约束冲突错误码
const (
	pgUniqueViolationCode  = "23505"
	mysqlDuplicateEntryNum = 1062
)

// Store SQL 数据库存储实现（支持 MySQL 5.7+ 和 PostgreSQL）
type Store struct {
	db         *sql.DB
	gormDB     *gorm.DB
	driverName string // "mysql" or "postgres"
}

// NewStore 创建SQL数据库存储
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
) (*Store, error) {
	// 验证驱动类型
	if driverName != "mysql" && driverName != "postgres" {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}

	// 打开数据库连接（PostgreSQL 走 pgx 的 database/sql 驱动）
	sqlDriver := driverName
	if driverName == "postgres" {
		sqlDriver = "pgx"
	}
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 初始化GORM（复用已建立的连接池）
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var dialector gorm.Dialector
	if driverName == "mysql" {
		dialector = mysql.New(mysql.Config{Conn: db})
	} else {
		dialector = postgres.New(postgres.Config{Conn: db})
	}

	gormDB, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	store := &Store{
		db:         db,
		gormDB:     gormDB,
		driverName: driverName,
	}

	// 自动执行数据库迁移
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 执行数据库迁移（使用GORM AutoMigrate）
func (s *Store) migrate() error {
	return s.gormDB.AutoMigrate(
		&domain.EmailAlias{},
	)
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Ping()
}

// ========== Alias Repository ==========

// CreateAlias 插入新别名。
// source_email 的唯一性由数据库唯一索引保证，避免并发创建下的检查-插入竞态。
func (s *Store) CreateAlias(alias *domain.EmailAlias) error {
	if err := s.gormDB.Create(alias).Error; err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAliasExists
		}
		return fmt.Errorf("failed to create alias: %w", err)
	}
	return nil
}

// GetAlias 根据 ID 获取别名
func (s *Store) GetAlias(id string) (*domain.EmailAlias, error) {
	var alias domain.EmailAlias
	err := s.gormDB.Where("id = ?", id).First(&alias).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAliasNotFound
		}
		return nil, fmt.Errorf("failed to get alias: %w", err)
	}
	return &alias, nil
}

// GetAliasBySourceEmail 根据别名地址获取别名
func (s *Store) GetAliasBySourceEmail(address string) (*domain.EmailAlias, error) {
	var alias domain.EmailAlias
	err := s.gormDB.Where("source_email = ?", strings.ToLower(address)).First(&alias).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAliasNotFound
		}
		return nil, fmt.Errorf("failed to get alias by address: %w", err)
	}
	return &alias, nil
}

// ListAliases 按条件分页列出别名，按创建时间降序排列。
// 过滤条件全部通过参数化查询表达。
func (s *Store) ListAliases(filter storage.AliasFilter) ([]*domain.EmailAlias, error) {
	filter = filter.Normalize()

	query := s.gormDB.Model(&domain.EmailAlias{})
	if filter.TenantID != "" {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.AliasType != "" {
		query = query.Where("alias_type = ?", filter.AliasType)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	var aliases []*domain.EmailAlias
	err := query.
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset()).
		Find(&aliases).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	return aliases, nil
}

// CountAliasesByUser 统计租户下某用户的别名数量
func (s *Store) CountAliasesByUser(tenantID, userID string) (int, error) {
	var count int64
	err := s.gormDB.Model(&domain.EmailAlias{}).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count aliases: %w", err)
	}
	return int(count), nil
}

// UpdateAlias 部分更新别名，nil 字段保持原值
func (s *Store) UpdateAlias(id string, patch domain.AliasPatch, now time.Time) (*domain.EmailAlias, error) {
	fields := map[string]interface{}{
		"updated_at": now,
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.MaxUsage != nil {
		fields["max_usage"] = *patch.MaxUsage
	}
	if patch.ExpiresAt != nil {
		fields["expires_at"] = *patch.ExpiresAt
	}
	if patch.IsActive != nil {
		fields["is_active"] = *patch.IsActive
	}

	result := s.gormDB.Model(&domain.EmailAlias{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update alias: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, storage.ErrAliasNotFound
	}

	return s.GetAlias(id)
}

// DeleteAlias 删除别名
func (s *Store) DeleteAlias(id string) error {
	result := s.gormDB.Where("id = ?", id).Delete(&domain.EmailAlias{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete alias: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrAliasNotFound
	}
	return nil
}

// IncrementUsage 条件自增使用次数。
// 自增条件与自增本身在单条 UPDATE 语句内完成，由数据库保证原子性，
// 并发的使用事件不会使 usage_count 超过 max_usage。
func (s *Store) IncrementUsage(id string, now time.Time) (*domain.EmailAlias, error) {
	result := s.gormDB.Model(&domain.EmailAlias{}).
		Where("id = ?", id).
		Where("is_active = ?", true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Where("max_usage IS NULL OR usage_count < max_usage").
		Updates(map[string]interface{}{
			"usage_count": gorm.Expr("usage_count + 1"),
			"updated_at":  now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to increment usage: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		// 区分不存在与不可用
		if _, err := s.GetAlias(id); err != nil {
			return nil, err
		}
		return nil, storage.ErrUsageDenied
	}

	return s.GetAlias(id)
}

// isUniqueViolation 判断数据库错误是否为唯一约束冲突
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
		return true
	}

	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntryNum {
		return true
	}

	return false
}
