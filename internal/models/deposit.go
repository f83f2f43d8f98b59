package models

import (
	"time"

	"gorm.io/gorm"
)

// Deposit is a dedicated fixed-income record, separate from the transaction log.
// WithdrawnAmount only ever grows, and never beyond Principal.
type Deposit struct {
	gorm.Model
	UserID          uint       `gorm:"index" json:"user_id"`
	Symbol          string     `json:"symbol"`
	Name            string     `json:"name"`
	Principal       float64    `json:"principal"`
	InterestRate    float64    `json:"interest_rate"` // percent per annum
	Currency        string     `gorm:"default:USD" json:"currency"`
	StartDate       time.Time  `json:"start_date"`
	MaturityDate    *time.Time `json:"maturity_date,omitempty"`
	WithdrawnAmount float64    `gorm:"default:0" json:"withdrawn_amount"`
	Notes           string     `json:"notes"`
}

// Remaining returns the principal still on deposit.
func (d *Deposit) Remaining() float64 {
	return d.Principal - d.WithdrawnAmount
}
