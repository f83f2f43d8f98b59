package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/marketdata"
	"fintrack/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// coinGeckoIDs maps common crypto tickers to their CoinGecko identifiers.
// Unknown tickers fall back to their lowercased symbol.
var coinGeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"BNB":  "binancecoin",
	"XRP":  "ripple",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"DOT":  "polkadot",
	"USDT": "tether",
	"USDC": "usd-coin",
}

func coinGeckoID(symbol string) string {
	if id, ok := coinGeckoIDs[symbol]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

// PriceService keeps the current-price table fresh and serves it to the
// read paths, with a short staleness window in front of the database.
type PriceService struct {
	db     *gorm.DB
	client marketdata.ClientInterface
	cache  *marketdata.Cache[map[string]float64]
	logger *zap.Logger
}

// NewPriceService creates a price service.
func NewPriceService(db *gorm.DB, client marketdata.ClientInterface, cache *marketdata.Cache[map[string]float64], logger *zap.Logger) *PriceService {
	return &PriceService{db: db, client: client, cache: cache, logger: logger}
}

const currentPricesCacheKey = "current-prices"

// CurrentPrices returns the latest known price per symbol. Reads hit a
// short-TTL cache, then the current-price rows; a missing symbol is simply
// absent and the caller falls back to average cost for display.
func (s *PriceService) CurrentPrices(ctx context.Context) (map[string]float64, error) {
	if cached, ok := s.cache.Get(currentPricesCacheKey); ok {
		return cached, nil
	}

	var rows []models.CurrentPrice
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("could not load current prices: %w", err)
	}

	prices := make(map[string]float64, len(rows))
	for _, row := range rows {
		prices[row.Symbol] = row.Price
	}
	s.cache.Set(currentPricesCacheKey, prices)
	return prices, nil
}

// symbolRef is a distinct (symbol, asset type) pair from the transaction log.
type symbolRef struct {
	Symbol    string
	AssetType models.AssetType
}

// RefreshAll fetches spot prices for every market symbol present in the
// transaction log and upserts the current-price rows. Per-symbol failures
// are logged and skipped; a flaky upstream never aborts the whole refresh.
func (s *PriceService) RefreshAll(ctx context.Context) error {
	var refs []symbolRef
	err := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("DISTINCT symbol, asset_type").
		Where("asset_type IN ?", []models.AssetType{models.AssetTypeStock, models.AssetTypeCrypto}).
		Scan(&refs).Error
	if err != nil {
		return fmt.Errorf("could not list market symbols: %w", err)
	}
	if len(refs) == 0 {
		return nil
	}

	var cryptoSymbols []string
	for _, ref := range refs {
		if ref.AssetType == models.AssetTypeCrypto {
			cryptoSymbols = append(cryptoSymbols, ref.Symbol)
		}
	}

	cryptoPrices := make(map[string]float64)
	if len(cryptoSymbols) > 0 {
		ids := make([]string, len(cryptoSymbols))
		for i, sym := range cryptoSymbols {
			ids[i] = coinGeckoID(sym)
		}
		byID, err := s.client.GetCryptoPrices(ctx, ids)
		if err != nil {
			s.logger.Warn("Crypto price refresh failed", zap.Error(err))
		} else {
			for _, sym := range cryptoSymbols {
				if p, ok := byID[coinGeckoID(sym)]; ok {
					cryptoPrices[sym] = p
				}
			}
		}
	}

	updated := 0
	for _, ref := range refs {
		var price float64
		switch ref.AssetType {
		case models.AssetTypeCrypto:
			p, ok := cryptoPrices[ref.Symbol]
			if !ok {
				continue
			}
			price = p
		case models.AssetTypeStock:
			p, err := s.client.GetStockPrice(ctx, ref.Symbol)
			if err != nil {
				s.logger.Warn("Stock price refresh failed",
					zap.String("symbol", ref.Symbol), zap.Error(err))
				continue
			}
			price = p
		}
		if price <= 0 {
			continue
		}

		row := models.CurrentPrice{Symbol: ref.Symbol, Price: price, UpdatedAt: time.Now().UTC()}
		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "symbol"}},
				DoUpdates: clause.AssignmentColumns([]string{"price", "updated_at"}),
			}).
			Create(&row).Error
		if err != nil {
			s.logger.Error("Could not save current price",
				zap.String("symbol", ref.Symbol), zap.Error(err))
			continue
		}
		updated++
	}

	s.logger.Info("Current prices refreshed", zap.Int("symbols", updated))
	return nil
}
