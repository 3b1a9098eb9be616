package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAliasFilter_Normalize(t *testing.T) {
	tests := []struct {
		name      string
		filter    AliasFilter
		wantPage  int
		wantLimit int
	}{
		{"zero values get defaults", AliasFilter{}, 0, DefaultPageSize},
		{"negative page clamped to zero", AliasFilter{Page: -3, Limit: 10}, 0, 10},
		{"limit above max clamped", AliasFilter{Page: 2, Limit: 150}, 2, MaxPageSize},
		{"limit at max kept", AliasFilter{Limit: 100}, 0, 100},
		{"valid values unchanged", AliasFilter{Page: 5, Limit: 50}, 5, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Normalize()
			assert.Equal(t, tt.wantPage, got.Page)
			assert.Equal(t, tt.wantLimit, got.Limit)
		})
	}
}

func TestAliasFilter_Offset(t *testing.T) {
	assert.Equal(t, 0, AliasFilter{Page: 0, Limit: 20}.Offset())
	assert.Equal(t, 40, AliasFilter{Page: 2, Limit: 20}.Offset())
	assert.Equal(t, 150, AliasFilter{Page: 3, Limit: 50}.Offset())
}
