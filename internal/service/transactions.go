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

// RateSource supplies the current exchange-rate table. It never fails;
// conversion is best-effort by contract.
type RateSource interface {
	Rates(ctx context.Context) portfolio.Rates
}

// TransactionInput carries the user-supplied fields of a transaction.
type TransactionInput struct {
	Symbol      string           `json:"symbol"`
	AssetType   models.AssetType `json:"asset_type"`
	TradeType   models.TradeType `json:"trade_type"`
	Quantity    float64          `json:"quantity"`
	Price       float64          `json:"price"`
	TotalAmount float64          `json:"total_amount"`
	Fee         float64          `json:"fee"`
	Currency    string           `json:"currency"`
	TradeDate   time.Time        `json:"trade_date"`
}

// TransactionService owns the transaction write path: validation, symbol
// normalization, and the one-time FIFO realized P&L computation for sells.
type TransactionService struct {
	db     *gorm.DB
	rates  RateSource
	logger *zap.Logger
}

// NewTransactionService creates a transaction service.
func NewTransactionService(db *gorm.DB, rates RateSource, logger *zap.Logger) *TransactionService {
	return &TransactionService{db: db, rates: rates, logger: logger}
}

// List returns all of a user's transactions, newest trade first.
func (s *TransactionService) List(ctx context.Context, userID uint) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("trade_date desc, id desc").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("could not list transactions: %w", err)
	}
	return txs, nil
}

// Create validates and stores a new transaction. Market sells are checked
// against the available quantity and get their realized P&L computed and
// persisted here, once; it is never recomputed on read.
func (s *TransactionService) Create(ctx context.Context, userID uint, in TransactionInput) (*models.Transaction, error) {
	tx, err := s.build(userID, in)
	if err != nil {
		return nil, err
	}

	if tx.IsMarket() && tx.TradeType == models.TradeTypeSell {
		if err := s.prepareSell(ctx, tx, 0); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Create(tx).Error; err != nil {
		return nil, fmt.Errorf("could not save transaction: %w", err)
	}
	s.logger.Info("Transaction created",
		zap.Uint("id", tx.ID),
		zap.String("symbol", tx.Symbol),
		zap.String("trade_type", string(tx.TradeType)),
	)
	return tx, nil
}

// Update replaces a transaction's fields in place, re-running sell
// validation against the rest of the history (excluding the row itself).
func (s *TransactionService) Update(ctx context.Context, userID, id uint, in TransactionInput) (*models.Transaction, error) {
	var existing models.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&existing, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("could not load transaction: %w", err)
	}

	tx, err := s.build(userID, in)
	if err != nil {
		return nil, err
	}
	tx.Model = existing.Model

	if tx.IsMarket() && tx.TradeType == models.TradeTypeSell {
		if err := s.prepareSell(ctx, tx, existing.ID); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Save(tx).Error; err != nil {
		return nil, fmt.Errorf("could not update transaction: %w", err)
	}
	return tx, nil
}

// Delete removes a transaction.
func (s *TransactionService) Delete(ctx context.Context, userID, id uint) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.Transaction{}, id)
	if result.Error != nil {
		return fmt.Errorf("could not delete transaction: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// build turns validated input into an unsaved model.
func (s *TransactionService) build(userID uint, in TransactionInput) (*models.Transaction, error) {
	switch in.AssetType {
	case models.AssetTypeStock, models.AssetTypeCrypto, models.AssetTypeDeposit, models.AssetTypeBond:
	default:
		return nil, fmt.Errorf("%w: unknown asset type %q", ErrInvalidTransaction, in.AssetType)
	}
	switch in.TradeType {
	case models.TradeTypeBuy, models.TradeTypeSell, models.TradeTypeIncome:
	default:
		return nil, fmt.Errorf("%w: unknown trade type %q", ErrInvalidTransaction, in.TradeType)
	}

	isFixedIncome := in.AssetType == models.AssetTypeDeposit || in.AssetType == models.AssetTypeBond
	if in.Quantity <= 0 && !isFixedIncome && in.TradeType != models.TradeTypeIncome {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidTransaction)
	}

	currency := in.Currency
	if currency == "" {
		currency = models.CurrencyUSD
	}
	switch currency {
	case models.CurrencyUSD, models.CurrencyCNY, models.CurrencyHKD:
	default:
		return nil, fmt.Errorf("%w: unsupported currency %q", ErrInvalidTransaction, currency)
	}

	total := in.TotalAmount
	if total == 0 && in.Quantity > 0 && !isFixedIncome {
		total = in.Quantity*in.Price + in.Fee
	}

	return &models.Transaction{
		UserID:      userID,
		Symbol:      NormalizeSymbol(in.Symbol),
		AssetType:   in.AssetType,
		TradeType:   in.TradeType,
		Quantity:    in.Quantity,
		Price:       in.Price,
		TotalAmount: total,
		Fee:         in.Fee,
		Currency:    currency,
		TradeDate:   in.TradeDate,
	}, nil
}

// prepareSell gates a market sell on the available quantity and stamps its
// FIFO realized P&L. excludeID removes the row being updated from the
// history it is validated against.
func (s *TransactionService) prepareSell(ctx context.Context, tx *models.Transaction, excludeID uint) error {
	history, err := s.marketHistory(ctx, tx.UserID, tx.Symbol)
	if err != nil {
		return err
	}

	available := portfolio.AvailableQuantity(history, excludeID)
	if tx.Quantity > available+portfolio.QuantityEpsilon {
		return fmt.Errorf("%w: requested %v, available %v", ErrInsufficientQuantity, tx.Quantity, available)
	}

	sell := *tx
	sell.ID = excludeID
	pnl := portfolio.CalculateFifoRealizedPnl(history, sell, s.rates.Rates(ctx))
	tx.RealizedPnl = &pnl
	return nil
}

// marketHistory loads every market transaction for a user's symbol in
// chronological order.
func (s *TransactionService) marketHistory(ctx context.Context, userID uint, symbol string) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ? AND asset_type NOT IN ?",
			userID, symbol, []models.AssetType{models.AssetTypeDeposit, models.AssetTypeBond}).
		Order("trade_date asc, id asc").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("could not load transaction history: %w", err)
	}
	return txs, nil
}
