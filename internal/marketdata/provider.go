// Package marketdata loads OHLCV bar windows for backtest simulations.
package marketdata

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/crypto-backtest/internal/database"
	"github.com/yourusername/crypto-backtest/internal/models"
	"github.com/yourusername/crypto-backtest/internal/simulation"
)

// Provider loads the OHLCV window for a symbol and date range.
type Provider interface {
	GetBars(ctx context.Context, symbol string, start, end time.Time) ([]simulation.Bar, error)
}

// Symbols look like BTC/USDT. The table name is derived from the symbol, so
// anything else is rejected before it can reach a query.
var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9]+/[A-Za-z0-9]+$`)

// PostgresProvider reads bars from per-symbol ohlcv tables, caching whole
// windows so the candidate strategies of one evaluation share a single load.
type PostgresProvider struct {
	db     *database.DB
	cache  *gocache.Cache
	logger *logrus.Logger
}

// NewPostgresProvider creates a bar provider with the given cache TTL.
func NewPostgresProvider(db *database.DB, cacheTTL time.Duration, logger *logrus.Logger) *PostgresProvider {
	return &PostgresProvider{
		db:     db,
		cache:  gocache.New(cacheTTL, 2*cacheTTL),
		logger: logger,
	}
}

// TableForSymbol maps a trading pair to its OHLCV table name, e.g.
// BTC/USDT becomes ohlcv_btc_usdt.
func TableForSymbol(symbol string) (string, error) {
	if !symbolPattern.MatchString(symbol) {
		return "", fmt.Errorf("%w: malformed symbol %q", models.ErrValidation, symbol)
	}
	return "ohlcv_" + strings.ToLower(strings.ReplaceAll(symbol, "/", "_")), nil
}

// GetBars loads the bar window for the symbol, ordered by timestamp.
// An empty window is reported as models.ErrDataUnavailable.
func (p *PostgresProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]simulation.Bar, error) {
	key := fmt.Sprintf("%s|%s|%s", symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if cached, found := p.cache.Get(key); found {
		return cached.([]simulation.Bar), nil
	}

	table, err := TableForSymbol(symbol)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT timestamp, open, high, low, close, volume
		FROM %s
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY timestamp
	`, table)

	rows, err := p.db.GetPool().Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []simulation.Bar
	for rows.Next() {
		var bar simulation.Bar
		if err := rows.Scan(&bar.Timestamp, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar for %s: %w", symbol, err)
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bars for %s: %w", symbol, err)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s between %s and %s",
			models.ErrDataUnavailable, symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	p.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"bars":   len(bars),
	}).Debug("Loaded bar window")

	p.cache.Set(key, bars, gocache.DefaultExpiration)
	return bars, nil
}
