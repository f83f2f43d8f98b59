package service

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/marketdata"
	"fintrack/internal/models"
	"fintrack/internal/portfolio"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// backfillDeadline bounds one whole backfill cycle across all symbols.
const backfillDeadline = 60 * time.Second

// HistoryFetcher is the slice of the market-data client the backfill needs.
type HistoryFetcher interface {
	GetCryptoHistory(ctx context.Context, id string, from, to time.Time) ([]marketdata.PricePoint, error)
	GetStockHistory(ctx context.Context, symbol string, from, to time.Time) ([]marketdata.PricePoint, error)
}

// HistoryService builds the historical portfolio chart and the daily P&L
// attribution, backfilling missing price history on demand.
type HistoryService struct {
	db       *gorm.DB
	fetcher  HistoryFetcher
	rates    RateSource
	logger   *zap.Logger
	throttle time.Duration
	now      func() time.Time
}

// NewHistoryService creates a history service. throttle bounds how often the
// on-demand backfill may hit the upstream APIs per user; a nil clock means
// time.Now.
func NewHistoryService(db *gorm.DB, fetcher HistoryFetcher, rates RateSource, logger *zap.Logger, throttle time.Duration, now func() time.Time) *HistoryService {
	if now == nil {
		now = time.Now
	}
	return &HistoryService{db: db, fetcher: fetcher, rates: rates, logger: logger, throttle: throttle, now: now}
}

// GetHistoricalPortfolioData runs the throttled best-effort backfill and then
// replays the user's transaction log into one chart point per day. Backfill
// failures degrade the chart, never fail it.
func (s *HistoryService) GetHistoricalPortfolioData(ctx context.Context, userID uint) ([]portfolio.ChartPoint, error) {
	txs, err := s.userTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}

	s.maybeBackfill(ctx, userID, txs)

	table, err := s.priceTable(ctx, txs)
	if err != nil {
		return nil, err
	}
	return portfolio.BuildChartData(txs, table, s.rates.Rates(ctx), s.now()), nil
}

// GetDailyPnLForMonth returns the day-over-day unrealized P&L changes for one
// calendar month.
func (s *HistoryService) GetDailyPnLForMonth(ctx context.Context, userID uint, year, month int) ([]portfolio.DailyPnL, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month must be 1-12", ErrInvalidTransaction)
	}
	txs, err := s.userTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}

	table, err := s.priceTable(ctx, txs)
	if err != nil {
		return nil, err
	}
	return portfolio.CalculateDailyPnL(txs, table, s.rates.Rates(ctx), year, month, s.now()), nil
}

func (s *HistoryService) userTransactions(ctx context.Context, userID uint) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("trade_date asc, id asc").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("could not load transactions: %w", err)
	}
	return txs, nil
}

// priceTable loads the recorded price history for the symbols in txs into an
// in-memory table for the replay.
func (s *HistoryService) priceTable(ctx context.Context, txs []models.Transaction) (*portfolio.MemoryPriceTable, error) {
	symbols := marketSymbols(txs)
	table := portfolio.NewMemoryPriceTable()
	if len(symbols) == 0 {
		return table, nil
	}

	var rows []models.PriceHistory
	err := s.db.WithContext(ctx).
		Where("symbol IN ?", keysOf(symbols)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("could not load price history: %w", err)
	}
	for _, row := range rows {
		table.Add(row.Symbol, row.Date, row.Price)
	}
	return table, nil
}

// maybeBackfill fetches daily price history for every market symbol the user
// has ever traded, from the day after the latest stored price (or the symbol's
// first trade date) through today, and records it. At most one run per user
// per throttle window; any upstream failure is logged and the chart proceeds
// on whatever history is already recorded.
func (s *HistoryService) maybeBackfill(ctx context.Context, userID uint, txs []models.Transaction) {
	now := s.now()

	var status models.BackfillStatus
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&status).Error
	switch {
	case err == nil:
		if now.Sub(status.LastRunAt) < s.throttle {
			return
		}
	case err == gorm.ErrRecordNotFound:
	default:
		s.logger.Warn("Could not read backfill status", zap.Error(err))
		return
	}

	firstTrade := make(map[string]time.Time)
	types := make(map[string]models.AssetType)
	for _, tx := range txs {
		if !tx.IsMarket() {
			continue
		}
		if _, ok := firstTrade[tx.Symbol]; !ok || tx.TradeDate.Before(firstTrade[tx.Symbol]) {
			firstTrade[tx.Symbol] = tx.TradeDate
		}
		types[tx.Symbol] = tx.AssetType
	}
	if len(firstTrade) == 0 {
		return
	}

	// One deadline for the whole backfill cycle; a slow upstream degrades the
	// chart to already-recorded history instead of stalling the read.
	fetchCtx, cancel := context.WithTimeout(ctx, backfillDeadline)
	defer cancel()

	for symbol, from := range firstTrade {
		// Resume from the day after the latest stored price when one exists.
		var latest models.PriceHistory
		err := s.db.WithContext(ctx).
			Where("symbol = ?", symbol).
			Order("date desc").
			First(&latest).Error
		if err == nil && latest.Date.After(from) {
			from = latest.Date.AddDate(0, 0, 1)
		}
		if from.After(now) {
			continue
		}

		var points []marketdata.PricePoint
		switch types[symbol] {
		case models.AssetTypeCrypto:
			points, err = s.fetcher.GetCryptoHistory(fetchCtx, coinGeckoID(symbol), from, now)
		default:
			points, err = s.fetcher.GetStockHistory(fetchCtx, symbol, from, now)
		}
		if err != nil {
			s.logger.Warn("Price history backfill failed",
				zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		s.savePoints(ctx, symbol, points)
	}

	if status.ID != 0 {
		err = s.db.WithContext(ctx).Model(&status).Update("last_run_at", now).Error
	} else {
		status.UserID = userID
		status.LastRunAt = now
		err = s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"last_run_at"}),
			}).
			Create(&status).Error
	}
	if err != nil {
		s.logger.Warn("Could not record backfill run", zap.Error(err))
	}
}

// savePoints inserts history rows, keeping the first recorded price for any
// (symbol, day) pair.
func (s *HistoryService) savePoints(ctx context.Context, symbol string, points []marketdata.PricePoint) {
	for _, p := range points {
		row := models.PriceHistory{
			Symbol: symbol,
			Date:   portfolio.DayOf(p.Date),
			Price:  p.Price,
			Source: "backfill",
		}
		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&row).Error
		if err != nil {
			s.logger.Warn("Could not save price history row",
				zap.String("symbol", symbol), zap.Error(err))
		}
	}
}

func marketSymbols(txs []models.Transaction) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tx := range txs {
		if tx.IsMarket() {
			set[tx.Symbol] = struct{}{}
		}
	}
	return set
}

func keysOf(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
