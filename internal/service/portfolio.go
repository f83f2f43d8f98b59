package service

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/models"
	"fintrack/internal/portfolio"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PortfolioService serves the derived read models. Everything here is
// recomputed from the transaction log on each call; the only persisted
// derived value is the per-sell realized P&L stamped on write.
type PortfolioService struct {
	db     *gorm.DB
	prices *PriceService
	rates  RateSource
	logger *zap.Logger
	now    func() time.Time
}

// NewPortfolioService creates a portfolio read service. A nil clock means
// time.Now.
func NewPortfolioService(db *gorm.DB, prices *PriceService, rates RateSource, logger *zap.Logger, now func() time.Time) *PortfolioService {
	if now == nil {
		now = time.Now
	}
	return &PortfolioService{db: db, prices: prices, rates: rates, logger: logger, now: now}
}

func (s *PortfolioService) transactions(ctx context.Context, userID uint) ([]models.Transaction, error) {
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

// Holdings returns the user's open market positions, marked to the latest
// known prices.
func (s *PortfolioService) Holdings(ctx context.Context, userID uint) ([]portfolio.Holding, error) {
	txs, err := s.transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	prices, err := s.prices.CurrentPrices(ctx)
	if err != nil {
		s.logger.Warn("Current prices unavailable, falling back to cost basis", zap.Error(err))
		prices = map[string]float64{}
	}
	return portfolio.CalculateHoldings(txs, prices, s.rates.Rates(ctx)), nil
}

// FixedIncome returns the user's deposit and bond positions, combining
// positions recorded in the transaction log with dedicated deposit records.
func (s *PortfolioService) FixedIncome(ctx context.Context, userID uint) ([]portfolio.FixedIncomeHolding, error) {
	txs, err := s.transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	var deposits []models.Deposit
	err = s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&deposits).Error
	if err != nil {
		return nil, fmt.Errorf("could not load deposits: %w", err)
	}

	rates := s.rates.Rates(ctx)
	now := s.now()
	holdings := portfolio.CalculateFixedIncomeHoldings(txs, rates, now)
	holdings = append(holdings, portfolio.DepositHoldings(deposits, rates, now)...)
	return holdings, nil
}

// Summary aggregates market and fixed-income positions into portfolio totals.
func (s *PortfolioService) Summary(ctx context.Context, userID uint) (portfolio.PortfolioSummary, error) {
	holdings, err := s.Holdings(ctx, userID)
	if err != nil {
		return portfolio.PortfolioSummary{}, err
	}
	fixed, err := s.FixedIncome(ctx, userID)
	if err != nil {
		return portfolio.PortfolioSummary{}, err
	}
	return portfolio.CalculatePortfolioSummary(holdings, fixed), nil
}

// Allocation returns the portfolio's value breakdown by position.
func (s *PortfolioService) Allocation(ctx context.Context, userID uint) ([]portfolio.AllocationItem, error) {
	holdings, err := s.Holdings(ctx, userID)
	if err != nil {
		return nil, err
	}
	fixed, err := s.FixedIncome(ctx, userID)
	if err != nil {
		return nil, err
	}
	return portfolio.CalculateAllocationData(holdings, fixed), nil
}

// TradeAnalysis aggregates per-symbol trading activity, ordered by the given
// sort key.
func (s *PortfolioService) TradeAnalysis(ctx context.Context, userID uint, sortBy string) ([]portfolio.TradeAnalysis, error) {
	key, err := portfolio.ParseSortKey(sortBy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	txs, err := s.transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return portfolio.AnalyzeTradePatterns(txs, s.rates.Rates(ctx), key), nil
}
