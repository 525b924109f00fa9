package shops

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStockEnforced(t *testing.T) {
	assert.True(t, Modes{}.StockEnforced())
	assert.True(t, Modes{AllowPayLater: true}.StockEnforced())
	assert.False(t, Modes{CatalogModeEnabled: true}.StockEnforced())
	assert.False(t, Modes{OpenOrderMode: true}.StockEnforced())
}
