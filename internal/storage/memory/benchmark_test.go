package memory

import (
	"fmt"
	"testing"
	"time"

	"mailalias/backend/internal/domain"
	"mailalias/backend/internal/storage"
)

func benchmarkAlias(i int) *domain.EmailAlias {
	now := time.Now().UTC()
	return &domain.EmailAlias{
		ID:               fmt.Sprintf("alias-%d", i),
		TenantID:         "tenant-1",
		UserID:           "user-1",
		SourceEmail:      fmt.Sprintf("bench%d@alias.temp.mail", i),
		DestinationEmail: "real@example.com",
		Domain:           "alias.temp.mail",
		AliasType:        domain.AliasTypeRandom,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func BenchmarkMemoryStore_CreateAlias(b *testing.B) {
	store := NewStore()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.CreateAlias(benchmarkAlias(i))
	}
}

func BenchmarkMemoryStore_GetAliasBySourceEmail(b *testing.B) {
	store := NewStore()

	// Pre-populate with test data
	for i := 0; i < 1000; i++ {
		store.CreateAlias(benchmarkAlias(i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.GetAliasBySourceEmail(fmt.Sprintf("bench%d@alias.temp.mail", i%1000))
	}
}

func BenchmarkMemoryStore_IncrementUsage(b *testing.B) {
	store := NewStore()
	store.CreateAlias(benchmarkAlias(0))
	now := time.Now().UTC()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.IncrementUsage("alias-0", now)
	}
}

func BenchmarkMemoryStore_ListAliases(b *testing.B) {
	store := NewStore()

	for i := 0; i < 1000; i++ {
		store.CreateAlias(benchmarkAlias(i))
	}
	filter := storage.AliasFilter{TenantID: "tenant-1", Limit: 50}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.ListAliases(filter)
	}
}
