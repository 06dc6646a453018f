package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePackage(t *testing.T) {
	tests := []struct {
		amount     int64
		wantName   string
		wantShares int64
	}{
		{20, "BASIC", 20},
		{50, "PRO", 50},
		{100, "VIP", 100},
		{35, "Custom", 20},
		{0, "Custom", 20},
	}
	for _, tt := range tests {
		name, shares := ResolvePackage(tt.amount)
		assert.Equal(t, tt.wantName, name, "amount %d", tt.amount)
		assert.Equal(t, tt.wantShares, shares, "amount %d", tt.amount)
	}
}

func TestCatalogAmount(t *testing.T) {
	assert.True(t, CatalogAmount(20))
	assert.True(t, CatalogAmount(50))
	assert.True(t, CatalogAmount(100))
	assert.False(t, CatalogAmount(35))
	assert.False(t, CatalogAmount(-50))
}
