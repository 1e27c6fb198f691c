package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultCurrency is used when staff do not name one
const DefaultCurrency = "USD"

// Quotation is the priced proposal for an order. An order has at most one.
type Quotation struct {
	ID         string          `gorm:"primaryKey;size:36" json:"id"`
	OrderID    string          `gorm:"size:36;not null;uniqueIndex" json:"order_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency   string          `gorm:"size:3;not null;default:'USD'" json:"currency"`
	Details    string          `gorm:"type:text;not null" json:"details"`
	IsAccepted *bool           `json:"is_accepted"` // nil while the customer has not answered
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Quotation model
func (Quotation) TableName() string {
	return "quotations"
}

func (q *Quotation) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Currency == "" {
		q.Currency = DefaultCurrency
	}
	return nil
}

// Accepted reports whether the customer accepted the quotation
func (q *Quotation) Accepted() bool {
	return q != nil && q.IsAccepted != nil && *q.IsAccepted
}
