package service

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DepositInput carries the user-supplied fields of a deposit record.
type DepositInput struct {
	Symbol       string     `json:"symbol"`
	Name         string     `json:"name"`
	Principal    float64    `json:"principal"`
	InterestRate float64    `json:"interest_rate"`
	Currency     string     `json:"currency"`
	StartDate    time.Time  `json:"start_date"`
	MaturityDate *time.Time `json:"maturity_date,omitempty"`
	Notes        string     `json:"notes"`
}

// DepositService manages dedicated fixed-income records.
type DepositService struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDepositService creates a deposit service.
func NewDepositService(db *gorm.DB, logger *zap.Logger) *DepositService {
	return &DepositService{db: db, logger: logger}
}

// Create stores a new deposit.
func (s *DepositService) Create(ctx context.Context, userID uint, in DepositInput) (*models.Deposit, error) {
	if in.Principal <= 0 {
		return nil, fmt.Errorf("%w: principal must be positive", ErrInvalidTransaction)
	}
	currency := in.Currency
	if currency == "" {
		currency = models.CurrencyUSD
	}

	d := &models.Deposit{
		UserID:       userID,
		Symbol:       NormalizeSymbol(in.Symbol),
		Name:         in.Name,
		Principal:    in.Principal,
		InterestRate: in.InterestRate,
		Currency:     currency,
		StartDate:    in.StartDate,
		MaturityDate: in.MaturityDate,
		Notes:        in.Notes,
	}
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, fmt.Errorf("could not save deposit: %w", err)
	}
	return d, nil
}

// List returns all of a user's deposits.
func (s *DepositService) List(ctx context.Context, userID uint) ([]models.Deposit, error) {
	var deposits []models.Deposit
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_date desc").
		Find(&deposits).Error
	if err != nil {
		return nil, fmt.Errorf("could not list deposits: %w", err)
	}
	return deposits, nil
}

// Withdraw increases a deposit's withdrawn amount. The withdrawal is bounded
// by the remaining principal at the time of the call.
func (s *DepositService) Withdraw(ctx context.Context, userID, id uint, amount float64) (*models.Deposit, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: withdrawal amount must be positive", ErrInvalidTransaction)
	}

	var d models.Deposit
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&d, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrDepositNotFound
		}
		return nil, fmt.Errorf("could not load deposit: %w", err)
	}

	if amount > d.Remaining() {
		return nil, fmt.Errorf("%w: requested %v, remaining %v", ErrWithdrawExceedsPrincipal, amount, d.Remaining())
	}

	d.WithdrawnAmount += amount
	if err := s.db.WithContext(ctx).Save(&d).Error; err != nil {
		return nil, fmt.Errorf("could not update deposit: %w", err)
	}
	s.logger.Info("Deposit withdrawal",
		zap.Uint("deposit_id", d.ID),
		zap.Float64("amount", amount),
		zap.Float64("remaining", d.Remaining()),
	)
	return &d, nil
}
