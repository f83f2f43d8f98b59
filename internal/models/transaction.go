package models

import (
	"time"

	"gorm.io/gorm"
)

// AssetType classifies what kind of asset a transaction concerns.
type AssetType string

const (
	AssetTypeStock   AssetType = "stock"
	AssetTypeCrypto  AssetType = "crypto"
	AssetTypeDeposit AssetType = "deposit"
	AssetTypeBond    AssetType = "bond"
)

// TradeType is the direction of a transaction.
type TradeType string

const (
	TradeTypeBuy    TradeType = "buy"
	TradeTypeSell   TradeType = "sell"
	TradeTypeIncome TradeType = "income"
)

// Supported display/denomination currencies.
const (
	CurrencyUSD = "USD"
	CurrencyCNY = "CNY"
	CurrencyHKD = "HKD"
)

// Transaction is the single source of truth for all portfolio state.
// Holdings, P&L and chart data are pure projections over the transaction log.
type Transaction struct {
	gorm.Model
	UserID      uint      `gorm:"index:idx_user_symbol" json:"user_id"`
	Symbol      string    `gorm:"index:idx_user_symbol" json:"symbol"`
	AssetType   AssetType `gorm:"not null" json:"asset_type"`
	TradeType   TradeType `gorm:"not null" json:"trade_type"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	TotalAmount float64   `json:"total_amount"`
	Fee         float64   `gorm:"default:0" json:"fee"`
	Currency    string    `gorm:"default:USD" json:"currency"`
	TradeDate   time.Time `gorm:"index" json:"trade_date"`
	// RealizedPnl is set once, at create/update time, for market sells only.
	// It stays nil for buys, income and all deposit/bond rows.
	RealizedPnl *float64 `json:"realized_pnl,omitempty"`
}

// IsFixedIncome reports whether the transaction belongs to a deposit or bond position.
func (t *Transaction) IsFixedIncome() bool {
	return t.AssetType == AssetTypeDeposit || t.AssetType == AssetTypeBond
}

// IsMarket reports whether the transaction concerns a market-priced asset.
func (t *Transaction) IsMarket() bool {
	return t.AssetType == AssetTypeStock || t.AssetType == AssetTypeCrypto
}
