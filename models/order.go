package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus is a stage of the manufacturing pipeline
type OrderStatus string

const (
	StatusPendingQuote    OrderStatus = "PENDING_QUOTE"
	StatusPendingApproval OrderStatus = "PENDING_APPROVAL"
	StatusInDesign        OrderStatus = "IN_DESIGN"
	StatusInManufacturing OrderStatus = "IN_MANUFACTURING"
	StatusInTesting       OrderStatus = "IN_TESTING"
	StatusInPainting      OrderStatus = "IN_PAINTING"
	StatusCompleted       OrderStatus = "COMPLETED"
	StatusRejected        OrderStatus = "REJECTED"
)

// AllStatuses lists the pipeline in order, REJECTED last
var AllStatuses = []OrderStatus{
	StatusPendingQuote,
	StatusPendingApproval,
	StatusInDesign,
	StatusInManufacturing,
	StatusInTesting,
	StatusInPainting,
	StatusCompleted,
	StatusRejected,
}

// manualTransitions are the edges staff may take by editing the status
// directly. Quotation-driven edges are deliberately absent.
var manualTransitions = map[OrderStatus]OrderStatus{
	StatusInDesign:        StatusInManufacturing,
	StatusInManufacturing: StatusInTesting,
	StatusInTesting:       StatusInPainting,
	StatusInPainting:      StatusCompleted,
}

// IsValid checks if the OrderStatus is a valid enum value
func (s OrderStatus) IsValid() bool {
	for _, status := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// CanTransitionTo checks if staff may move an order from s to target.
// Same status is always valid.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if s == target {
		return target.IsValid()
	}
	next, ok := manualTransitions[s]
	return ok && next == target
}

// IsPending returns true while the order waits on a quote or the customer's answer
func (s OrderStatus) IsPending() bool {
	return s == StatusPendingQuote || s == StatusPendingApproval
}

// IsActive returns true while the order is being produced
func (s OrderStatus) IsActive() bool {
	return s == StatusInDesign || s == StatusInManufacturing || s == StatusInTesting || s == StatusInPainting
}

// AcceptsQuotationResponse returns true while the customer may still accept
// or reject the quotation.
func (s OrderStatus) AcceptsQuotationResponse() bool {
	return s == StatusPendingApproval || s == StatusInDesign || s == StatusRejected
}

// Order represents a custom manufacturing order
type Order struct {
	ID            string       `gorm:"primaryKey;size:36" json:"id"`
	OrderNumber   string       `gorm:"size:32;uniqueIndex;not null" json:"order_number"`
	CustomerNotes string       `gorm:"type:text;not null" json:"customer_notes"`
	Status        OrderStatus  `gorm:"size:32;not null;default:'PENDING_QUOTE';index" json:"status"`
	Version       int          `gorm:"not null;default:1" json:"version"` // bumped on every status change
	CustomerID    string       `gorm:"size:36;not null;index" json:"customer_id"`
	Customer      User         `gorm:"foreignKey:CustomerID" json:"customer"`
	DesignFiles   []DesignFile `gorm:"foreignKey:OrderID" json:"design_files"`
	Quotation     *Quotation   `gorm:"foreignKey:OrderID" json:"quotation"`
	CreatedAt     time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = StatusPendingQuote
	}
	if o.Version == 0 {
		o.Version = 1
	}
	return o.checkStatus()
}

func (o *Order) BeforeUpdate(tx *gorm.DB) error {
	return o.checkStatus()
}

func (o *Order) checkStatus() error {
	if !o.Status.IsValid() {
		return fmt.Errorf("invalid order status %q", o.Status)
	}
	return nil
}

// OrderNumberPrefix is the part of an order number shared by a whole year
func OrderNumberPrefix(year int) string {
	return fmt.Sprintf("ORD-%d-", year)
}

// FormatOrderNumber renders ORD-<year>-<sequence>, sequence zero padded to 4 digits
func FormatOrderNumber(year int, sequence int64) string {
	return fmt.Sprintf("%s%04d", OrderNumberPrefix(year), sequence)
}
