package models

import (
	"time"

	"gorm.io/gorm"
)

// PriceHistory stores one closing price per symbol per UTC day.
// The (symbol, date) pair is unique; colliding inserts are no-ops, so the
// first price recorded for a day wins.
type PriceHistory struct {
	gorm.Model
	Symbol string    `gorm:"uniqueIndex:idx_symbol_date" json:"symbol"`
	Date   time.Time `gorm:"uniqueIndex:idx_symbol_date" json:"date"`
	Price  float64   `json:"price"`
	Source string    `json:"source"`
}

// CurrentPrice is the latest spot price for a symbol, one row per symbol,
// overwritten on every refresh.
type CurrentPrice struct {
	gorm.Model
	Symbol    string    `gorm:"uniqueIndex" json:"symbol"`
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BackfillStatus records when historical prices were last backfilled for a
// user, implementing the backfill throttle window.
type BackfillStatus struct {
	gorm.Model
	UserID    uint      `gorm:"uniqueIndex"`
	LastRunAt time.Time `gorm:"not null"`
}
