package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/kendall-kelly/manuorder-api/apperror"
	"github.com/kendall-kelly/manuorder-api/models"
	"github.com/kendall-kelly/manuorder-api/policy"
	"github.com/kendall-kelly/manuorder-api/repository"
	"github.com/shopspring/decimal"
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// CreateQuotationInput is the priced proposal staff issue for an order
type CreateQuotationInput struct {
	Amount   decimal.Decimal
	Currency string
	Details  string
}

// QuotationService issues quotations and records the customer's answer
type QuotationService interface {
	CreateQuotation(ctx context.Context, actor *policy.Actor, orderID string, input CreateQuotationInput) (*models.Order, error)
	RespondToQuotation(ctx context.Context, actor *policy.Actor, orderID string, accepted bool) (*models.Order, error)
}

type quotationService struct {
	orders    repository.OrderRepository
	publisher EventPublisher
}

var quotationServiceInstance QuotationService

// NewQuotationService creates a quotation service. A nil publisher drops events.
func NewQuotationService(orders repository.OrderRepository, publisher EventPublisher) QuotationService {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &quotationService{orders: orders, publisher: publisher}
}

// InitQuotationService initializes the global quotation service
func InitQuotationService(orders repository.OrderRepository, publisher EventPublisher) QuotationService {
	quotationServiceInstance = NewQuotationService(orders, publisher)
	return quotationServiceInstance
}

// GetQuotationService returns the initialized quotation service instance
func GetQuotationService() QuotationService {
	return quotationServiceInstance
}

// SetQuotationService sets the quotation service instance (primarily for testing)
func SetQuotationService(service QuotationService) {
	quotationServiceInstance = service
}

func (in CreateQuotationInput) normalize() (CreateQuotationInput, error) {
	if !in.Amount.IsPositive() {
		return in, apperror.Validation("INVALID_AMOUNT", "amount must be greater than zero")
	}
	if !in.Amount.Equal(in.Amount.Round(2)) {
		return in, apperror.Validation("INVALID_AMOUNT", "amount must have at most two decimal places")
	}

	in.Details = strings.TrimSpace(in.Details)
	if in.Details == "" {
		return in, apperror.Validation("VALIDATION_ERROR", "details is required")
	}

	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = models.DefaultCurrency
	}
	if !currencyCode.MatchString(in.Currency) {
		return in, apperror.Validation("INVALID_CURRENCY", "currency must be a three letter ISO code")
	}
	return in, nil
}

// CreateQuotation attaches the single quotation of an order awaiting a quote
// and moves it to PENDING_APPROVAL in the same transaction
func (s *quotationService) CreateQuotation(ctx context.Context, actor *policy.Actor, orderID string, input CreateQuotationInput) (_ *models.Order, err error) {
	ctx, span := tracer.Start(ctx, "QuotationService.CreateQuotation", withOrderID(orderID))
	defer func() { endSpan(span, err) }()

	if err := policy.Authorize(actor, policy.ActionCreateQuotation, nil); err != nil {
		return nil, err
	}
	input, err = input.normalize()
	if err != nil {
		return nil, err
	}

	order, err := s.orders.Update(ctx, orderID, func(tx repository.OrderTx, order *models.Order) error {
		if order.Quotation != nil {
			return quotationExists()
		}
		if order.Status != models.StatusPendingQuote {
			return apperror.Conflict("INVALID_STATUS_TRANSITION", "Quotations can only be issued for orders awaiting a quote")
		}

		quotation := &models.Quotation{
			Amount:   input.Amount,
			Currency: input.Currency,
			Details:  input.Details,
		}
		if err := tx.CreateQuotation(order, quotation); err != nil {
			return err
		}
		return tx.SetStatus(order, models.StatusPendingApproval)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, quotationExists()
		}
		return nil, orderError(err)
	}

	publishBestEffort(ctx, s.publisher, newOrderEvent(EventQuotationCreated, order, actor.UserID))
	return order, nil
}

// RespondToQuotation records accept or reject. Answering again with the same
// value leaves the order where it is.
func (s *quotationService) RespondToQuotation(ctx context.Context, actor *policy.Actor, orderID string, accepted bool) (_ *models.Order, err error) {
	ctx, span := tracer.Start(ctx, "QuotationService.RespondToQuotation", withOrderID(orderID))
	defer func() { endSpan(span, err) }()

	if err := policy.Authorize(actor, policy.ActionRespondQuotation, nil); err != nil {
		return nil, err
	}

	target := models.StatusRejected
	eventType := EventQuotationRejected
	if accepted {
		target = models.StatusInDesign
		eventType = EventQuotationAccepted
	}

	order, err := s.orders.Update(ctx, orderID, func(tx repository.OrderTx, order *models.Order) error {
		if err := policy.Authorize(actor, policy.ActionRespondQuotation, policy.OwnedBy(order.CustomerID)); err != nil {
			return err
		}
		if order.Quotation == nil {
			return apperror.NotFound("QUOTATION_NOT_FOUND", "Quotation not found")
		}
		if !order.Status.AcceptsQuotationResponse() {
			return apperror.Conflict("QUOTATION_LOCKED", "The quotation can no longer be changed")
		}

		if err := tx.SetQuotationAcceptance(order.Quotation, accepted); err != nil {
			return err
		}
		return tx.SetStatus(order, target)
	})
	if err != nil {
		return nil, orderError(err)
	}

	publishBestEffort(ctx, s.publisher, newOrderEvent(eventType, order, actor.UserID))
	return order, nil
}

func quotationExists() error {
	return apperror.Conflict("QUOTATION_EXISTS", "This order already has a quotation")
}
