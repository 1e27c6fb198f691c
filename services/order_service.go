package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kendall-kelly/manuorder-api/apperror"
	"github.com/kendall-kelly/manuorder-api/models"
	"github.com/kendall-kelly/manuorder-api/policy"
	"github.com/kendall-kelly/manuorder-api/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DesignFileInput references a file uploaded before the order is placed
type DesignFileInput struct {
	FileName string
	FileURL  string
	FileType string
}

// CreateOrderInput is what a customer submits to place an order
type CreateOrderInput struct {
	CustomerNotes string
	DesignFiles   []DesignFileInput
}

// ListOrdersInput filters a listing. CustomerID is only honored for admins
// or when it names the caller.
type ListOrdersInput struct {
	Status     string
	Search     string
	CustomerID string
}

// OrderService drives the order lifecycle outside of quotations
type OrderService interface {
	CreateOrder(ctx context.Context, actor *policy.Actor, input CreateOrderInput) (*models.Order, error)
	ListOrders(ctx context.Context, actor *policy.Actor, input ListOrdersInput) ([]models.Order, error)
	GetOrder(ctx context.Context, actor *policy.Actor, id string) (*models.Order, error)
	// UpdateStatus moves an order along the manufacturing pipeline. A non nil
	// expectedVersion must match the stored version.
	UpdateStatus(ctx context.Context, actor *policy.Actor, id string, status models.OrderStatus, expectedVersion *int) (*models.Order, error)
}

type orderService struct {
	orders    repository.OrderRepository
	publisher EventPublisher
}

var orderServiceInstance OrderService

// NewOrderService creates an order service. A nil publisher drops events.
func NewOrderService(orders repository.OrderRepository, publisher EventPublisher) OrderService {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &orderService{orders: orders, publisher: publisher}
}

// InitOrderService initializes the global order service
func InitOrderService(orders repository.OrderRepository, publisher EventPublisher) OrderService {
	orderServiceInstance = NewOrderService(orders, publisher)
	return orderServiceInstance
}

// GetOrderService returns the initialized order service instance
func GetOrderService() OrderService {
	return orderServiceInstance
}

// SetOrderService sets the order service instance (primarily for testing)
func SetOrderService(service OrderService) {
	orderServiceInstance = service
}

func (s *orderService) CreateOrder(ctx context.Context, actor *policy.Actor, input CreateOrderInput) (order *models.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder")
	defer func() { endSpan(span, err) }()

	if err := policy.Authorize(actor, policy.ActionCreateOrder, nil); err != nil {
		return nil, err
	}

	notes := strings.TrimSpace(input.CustomerNotes)
	if notes == "" {
		return nil, apperror.Validation("VALIDATION_ERROR", "customer_notes is required")
	}

	files := make([]models.DesignFile, 0, len(input.DesignFiles))
	for i, f := range input.DesignFiles {
		if strings.TrimSpace(f.FileName) == "" || strings.TrimSpace(f.FileURL) == "" {
			return nil, apperror.Validation("VALIDATION_ERROR", fmt.Sprintf("design_files[%d] needs file_name and file_url", i))
		}
		if !IsPublicPath(f.FileURL) {
			return nil, apperror.Validation("INVALID_FILE_URL", fmt.Sprintf("design_files[%d].file_url must come from POST /api/v1/uploads", i))
		}
		files = append(files, models.DesignFile{
			FileName: f.FileName,
			FileURL:  f.FileURL,
			FileType: f.FileType,
		})
	}

	order = &models.Order{
		CustomerNotes: notes,
		Status:        models.StatusPendingQuote,
		CustomerID:    actor.UserID,
		DesignFiles:   files,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Conflict("ORDER_NUMBER_CONFLICT", "Could not allocate an order number, please retry")
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID), attribute.String("order.number", order.OrderNumber))

	created, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	publishBestEffort(ctx, s.publisher, newOrderEvent(EventOrderCreated, created, actor.UserID))
	return created, nil
}

func (s *orderService) ListOrders(ctx context.Context, actor *policy.Actor, input ListOrdersInput) (_ []models.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.ListOrders")
	defer func() { endSpan(span, err) }()

	var scope *policy.Resource
	if input.CustomerID != "" {
		scope = policy.OwnedBy(input.CustomerID)
	}
	if err := policy.Authorize(actor, policy.ActionListOrders, scope); err != nil {
		return nil, err
	}

	filter := repository.OrderFilter{
		Search:     input.Search,
		CustomerID: input.CustomerID,
	}
	if input.Status != "" {
		status := models.OrderStatus(strings.ToUpper(input.Status))
		if !status.IsValid() {
			return nil, apperror.Validation("INVALID_STATUS", fmt.Sprintf("Unknown order status %q", input.Status))
		}
		filter.Status = status
	}
	if customerID := policy.CustomerScope(actor); customerID != "" {
		filter.CustomerID = customerID
	}

	return s.orders.List(ctx, filter)
}

func (s *orderService) GetOrder(ctx context.Context, actor *policy.Actor, id string) (_ *models.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.GetOrder", withOrderID(id))
	defer func() { endSpan(span, err) }()

	if err := policy.Authorize(actor, policy.ActionReadOrder, nil); err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, orderError(err)
	}
	if err := policy.Authorize(actor, policy.ActionReadOrder, policy.OwnedBy(order.CustomerID)); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, actor *policy.Actor, id string, status models.OrderStatus, expectedVersion *int) (_ *models.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.UpdateStatus", withOrderID(id))
	defer func() { endSpan(span, err) }()

	if err := policy.Authorize(actor, policy.ActionUpdateStatus, nil); err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, apperror.Validation("INVALID_STATUS", fmt.Sprintf("Unknown order status %q", status))
	}

	changed := false
	order, err := s.orders.Update(ctx, id, func(tx repository.OrderTx, order *models.Order) error {
		if expectedVersion != nil && *expectedVersion != order.Version {
			return versionMismatch()
		}
		if !order.Status.CanTransitionTo(status) {
			return apperror.Conflict("INVALID_STATUS_TRANSITION",
				fmt.Sprintf("Cannot move an order from %s to %s", order.Status, status))
		}
		changed = order.Status != status
		return tx.SetStatus(order, status)
	})
	if err != nil {
		return nil, orderError(err)
	}

	if changed {
		publishBestEffort(ctx, s.publisher, newOrderEvent(EventOrderStatusChanged, order, actor.UserID))
	}
	return order, nil
}

func withOrderID(id string) trace.SpanStartOption {
	return trace.WithAttributes(attribute.String("order.id", id))
}

func versionMismatch() error {
	return apperror.Conflict("VERSION_MISMATCH", "Order was modified by someone else, reload and retry")
}

// orderError maps repository errors onto caller facing errors
func orderError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound("ORDER_NOT_FOUND", "Order not found")
	case errors.Is(err, repository.ErrStale):
		return versionMismatch()
	}
	return err
}
