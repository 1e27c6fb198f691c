package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kendall-kelly/manuorder-api/logger"
	"github.com/kendall-kelly/manuorder-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderFilter narrows a listing. Zero values mean no restriction.
type OrderFilter struct {
	Status     models.OrderStatus
	Search     string
	CustomerID string
}

// OrderTx is the set of writes allowed while an order row is locked
type OrderTx interface {
	SetStatus(order *models.Order, status models.OrderStatus) error
	CreateQuotation(order *models.Order, quotation *models.Quotation) error
	SetQuotationAcceptance(quotation *models.Quotation, accepted bool) error
}

// OrderRepository persists orders together with their files and quotation
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	// Update locks the order, runs fn in one transaction and returns the
	// reloaded order. Any error from fn rolls everything back.
	Update(ctx context.Context, id string, fn func(tx OrderTx, order *models.Order) error) (*models.Order, error)
	ListRevenueOrders(ctx context.Context, since *time.Time) ([]models.Order, error)
	CountByStatus(ctx context.Context) (map[models.OrderStatus]int64, error)
}

type orderRepository struct {
	db  *gorm.DB
	seq SequenceAllocator
	now func() time.Time
}

// NewOrderRepository creates a gorm backed repository. seq defaults to the
// order_sequences table.
func NewOrderRepository(db *gorm.DB, seq SequenceAllocator) OrderRepository {
	if seq == nil {
		seq = NewDBSequence()
	}
	return &orderRepository{
		db:  db,
		seq: seq,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create assigns the next order number for the current year and inserts the
// order with its design files. A number collision is retried after the
// counter is moved past the highest number in use.
func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = r.now()
	}
	year := order.CreatedAt.Year()
	scope := OrderNumberScope(year)

	var err error
	for attempt := 0; attempt < maxNumberAllocations; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if attempt > 0 {
				floor, err := highestSequence(tx, year)
				if err != nil {
					return err
				}
				if err := r.seq.Advance(ctx, tx, scope, floor); err != nil {
					return err
				}
			}

			n, err := r.seq.Next(ctx, tx, scope)
			if err != nil {
				return err
			}
			order.OrderNumber = models.FormatOrderNumber(year, n)

			return tx.Omit("Customer", "Quotation").Create(order).Error
		})
		if err == nil {
			return nil
		}
		if !IsDuplicateKey(err) {
			return fmt.Errorf("failed to create order: %w", err)
		}
		logger.Warn("order number collision, retrying",
			zap.String("order_number", order.OrderNumber),
			zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("failed to allocate order number: %w", ErrDuplicate)
}

// highestSequence returns the largest sequence already used in year
func highestSequence(tx *gorm.DB, year int) (int64, error) {
	prefix := models.OrderNumberPrefix(year)

	var numbers []string
	err := tx.Model(&models.Order{}).
		Where("order_number LIKE ?", prefix+"%").
		Order("LENGTH(order_number) DESC, order_number DESC").
		Limit(1).
		Pluck("order_number", &numbers).Error
	if err != nil || len(numbers) == 0 {
		return 0, err
	}

	n, err := strconv.ParseInt(strings.TrimPrefix(numbers[0], prefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected order number %q: %w", numbers[0], err)
	}
	return n, nil
}

func (r *orderRepository) withAssociations(db *gorm.DB) *gorm.DB {
	return db.Preload("Customer").
		Preload("DesignFiles", func(db *gorm.DB) *gorm.DB {
			return db.Order("design_files.created_at ASC")
		}).
		Preload("Quotation")
}

// FindByID loads an order with its customer, design files and quotation
func (r *orderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.withAssociations(r.db.WithContext(ctx)).Where("orders.id = ?", id).First(&order).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// List returns matching orders, newest first
func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	q := r.withAssociations(r.db.WithContext(ctx).Model(&models.Order{}))

	if filter.Status != "" {
		q = q.Where("orders.status = ?", filter.Status)
	}
	if filter.CustomerID != "" {
		q = q.Where("orders.customer_id = ?", filter.CustomerID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		customers := r.db.Model(&models.User{}).
			Select("id").
			Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
		q = q.Where("(LOWER(orders.order_number) LIKE ? OR orders.customer_id IN (?))", like, customers)
	}

	var orders []models.Order
	if err := q.Order("orders.created_at DESC, orders.order_number DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// Update runs fn against the locked order row
func (r *orderRepository) Update(ctx context.Context, id string, fn func(tx OrderTx, order *models.Order) error) (*models.Order, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&order).Error; err != nil {
			return notFound(err)
		}

		var quotation models.Quotation
		err := tx.Where("order_id = ?", id).First(&quotation).Error
		switch {
		case err == nil:
			order.Quotation = &quotation
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		return fn(&orderTx{tx: tx}, &order)
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// ListRevenueOrders returns completed orders whose quotation was accepted,
// created at or after since when it is set
func (r *orderRepository) ListRevenueOrders(ctx context.Context, since *time.Time) ([]models.Order, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("orders.*").
		Joins("JOIN quotations ON quotations.order_id = orders.id AND quotations.is_accepted = ?", true).
		Preload("Customer").
		Preload("Quotation").
		Where("orders.status = ?", models.StatusCompleted)
	if since != nil {
		q = q.Where("orders.created_at >= ?", since.UTC())
	}

	var orders []models.Order
	if err := q.Order("orders.created_at ASC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// CountByStatus returns the number of orders per status. Statuses without
// orders are absent from the map.
func (r *orderRepository) CountByStatus(ctx context.Context) (map[models.OrderStatus]int64, error) {
	var rows []struct {
		Status models.OrderStatus
		Total  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[models.OrderStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

type orderTx struct {
	tx *gorm.DB
}

// SetStatus writes status and bumps the version. Writing the current status
// is a no-op.
func (t *orderTx) SetStatus(order *models.Order, status models.OrderStatus) error {
	if order.Status == status {
		return nil
	}

	current := order.Version
	order.Status = status
	res := t.tx.Model(order).
		Where("version = ?", current).
		Updates(map[string]interface{}{
			"status":  status,
			"version": current + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	order.Version = current + 1
	return nil
}

// CreateQuotation links quotation to order. The unique index on order_id
// turns a concurrent second insert into ErrDuplicate.
func (t *orderTx) CreateQuotation(order *models.Order, quotation *models.Quotation) error {
	quotation.OrderID = order.ID
	if err := t.tx.Create(quotation).Error; err != nil {
		if IsDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	order.Quotation = quotation
	return nil
}

// SetQuotationAcceptance records the customer's answer
func (t *orderTx) SetQuotationAcceptance(quotation *models.Quotation, accepted bool) error {
	if err := t.tx.Model(quotation).Update("is_accepted", accepted).Error; err != nil {
		return err
	}
	quotation.IsAccepted = &accepted
	return nil
}
