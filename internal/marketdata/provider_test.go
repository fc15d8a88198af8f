package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/crypto-backtest/internal/models"
)

func TestTableForSymbol(t *testing.T) {
	cases := []struct {
		symbol string
		table  string
	}{
		{"BTC/USDT", "ohlcv_btc_usdt"},
		{"eth/usd", "ohlcv_eth_usd"},
		{"SOL/BTC", "ohlcv_sol_btc"},
	}
	for _, tc := range cases {
		table, err := TableForSymbol(tc.symbol)
		require.NoError(t, err)
		assert.Equal(t, tc.table, table)
	}
}

func TestTableForSymbol_RejectsMalformedSymbols(t *testing.T) {
	for _, symbol := range []string{
		"",
		"BTCUSDT",
		"BTC/USDT/EUR",
		"BTC/USDT; DROP TABLE ohlcv_btc_usdt",
		"BTC USDT",
		"../etc/passwd",
	} {
		_, err := TableForSymbol(symbol)
		assert.ErrorIs(t, err, models.ErrValidation, "symbol %q should be rejected", symbol)
	}
}
