package services

import (
	"context"
	"fmt"
	"time"

	"github.com/kendall-kelly/manuorder-api/apperror"
	"github.com/kendall-kelly/manuorder-api/models"
	"github.com/kendall-kelly/manuorder-api/policy"
	"github.com/kendall-kelly/manuorder-api/repository"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Period selects the creation window a revenue report covers
type Period string

const (
	PeriodAll         Period = "all"
	PeriodMonth       Period = "month"
	PeriodQuarter     Period = "quarter"
	PeriodYear        Period = "year"
	PeriodLast6Months Period = "last6months"
)

// ParsePeriod validates raw. An empty value selects all time.
func ParsePeriod(raw string) (Period, error) {
	switch p := Period(raw); p {
	case "":
		return PeriodAll, nil
	case PeriodAll, PeriodMonth, PeriodQuarter, PeriodYear, PeriodLast6Months:
		return p, nil
	}
	return "", apperror.Validation("INVALID_PERIOD", fmt.Sprintf("Unknown period %q, use all, month, quarter, year or last6months", raw))
}

// Cutoff returns the earliest creation time included, nil for all time.
// Boundaries are computed in UTC from now on every call.
func (p Period) Cutoff(now time.Time) *time.Time {
	now = now.UTC()
	var cutoff time.Time
	switch p {
	case PeriodMonth:
		cutoff = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	case PeriodQuarter:
		quarterStart := time.Month((int(now.Month())-1)/3*3 + 1)
		cutoff = time.Date(now.Year(), quarterStart, 1, 0, 0, 0, 0, time.UTC)
	case PeriodYear:
		cutoff = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case PeriodLast6Months:
		cutoff = now.AddDate(0, -6, 0)
	default:
		return nil
	}
	return &cutoff
}

// RevenueOrder summarizes one order counted as revenue. CompletedAt is the
// last update of the order.
type RevenueOrder struct {
	ID           string          `json:"id"`
	OrderNumber  string          `json:"order_number"`
	CustomerName string          `json:"customer_name"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	CompletedAt  time.Time       `json:"completed_at"`
}

// RevenueReport aggregates completed orders with an accepted quotation.
// Amounts of different currencies are summed as they are.
type RevenueReport struct {
	Period         Period                     `json:"period"`
	TotalRevenue   decimal.Decimal            `json:"total_revenue"`
	OrderCount     int                        `json:"order_count"`
	MonthlyRevenue map[string]decimal.Decimal `json:"monthly_revenue"`
	Orders         []RevenueOrder             `json:"orders"`
}

// DashboardSummary holds the admin dashboard counters
type DashboardSummary struct {
	TotalOrders  int64                        `json:"total_orders"`
	Pending      int64                        `json:"pending_orders"`
	Active       int64                        `json:"active_orders"`
	Completed    int64                        `json:"completed_orders"`
	Rejected     int64                        `json:"rejected_orders"`
	ByStatus     map[models.OrderStatus]int64 `json:"by_status"`
	TotalRevenue decimal.Decimal              `json:"total_revenue"`
}

// ReportService derives read-only views over orders
type ReportService interface {
	Revenue(ctx context.Context, actor *policy.Actor, period Period) (*RevenueReport, error)
	Summary(ctx context.Context, actor *policy.Actor) (*DashboardSummary, error)
}

type reportService struct {
	orders repository.OrderRepository
	now    func() time.Time
}

var reportServiceInstance ReportService

// NewReportService creates a report service
func NewReportService(orders repository.OrderRepository) ReportService {
	return &reportService{orders: orders, now: time.Now}
}

// InitReportService initializes the global report service
func InitReportService(orders repository.OrderRepository) ReportService {
	reportServiceInstance = NewReportService(orders)
	return reportServiceInstance
}

// GetReportService returns the initialized report service instance
func GetReportService() ReportService {
	return reportServiceInstance
}

// SetReportService sets the report service instance (primarily for testing)
func SetReportService(service ReportService) {
	reportServiceInstance = service
}

func (s *reportService) Revenue(ctx context.Context, actor *policy.Actor, period Period) (_ *RevenueReport, err error) {
	ctx, span := tracer.Start(ctx, "ReportService.Revenue")
	defer func() { endSpan(span, err) }()

	if err := policy.Authorize(actor, policy.ActionViewReports, nil); err != nil {
		return nil, err
	}
	if _, err := ParsePeriod(string(period)); err != nil {
		return nil, err
	}
	if period == "" {
		period = PeriodAll
	}

	orders, err := s.orders.ListRevenueOrders(ctx, period.Cutoff(s.now()))
	if err != nil {
		return nil, err
	}
	return buildRevenueReport(period, orders), nil
}

func buildRevenueReport(period Period, orders []models.Order) *RevenueReport {
	report := &RevenueReport{
		Period:         period,
		TotalRevenue:   decimal.Zero,
		MonthlyRevenue: make(map[string]decimal.Decimal),
		Orders:         make([]RevenueOrder, 0, len(orders)),
	}

	for _, order := range orders {
		if !order.Quotation.Accepted() || order.Status != models.StatusCompleted {
			continue
		}
		amount := order.Quotation.Amount

		report.TotalRevenue = report.TotalRevenue.Add(amount)
		month := order.CreatedAt.UTC().Format("2006-01")
		report.MonthlyRevenue[month] = report.MonthlyRevenue[month].Add(amount)
		report.Orders = append(report.Orders, RevenueOrder{
			ID:           order.ID,
			OrderNumber:  order.OrderNumber,
			CustomerName: order.Customer.Name,
			Amount:       amount,
			Currency:     order.Quotation.Currency,
			CompletedAt:  order.UpdatedAt,
		})
	}
	report.OrderCount = len(report.Orders)
	return report
}

func (s *reportService) Summary(ctx context.Context, actor *policy.Actor) (_ *DashboardSummary, err error) {
	ctx, span := tracer.Start(ctx, "ReportService.Summary")
	defer func() { endSpan(span, err) }()

	if err := policy.Authorize(actor, policy.ActionViewReports, nil); err != nil {
		return nil, err
	}

	var (
		counts  map[models.OrderStatus]int64
		revenue []models.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.orders.CountByStatus(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		revenue, err = s.orders.ListRevenueOrders(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &DashboardSummary{
		ByStatus:     make(map[models.OrderStatus]int64, len(models.AllStatuses)),
		TotalRevenue: buildRevenueReport(PeriodAll, revenue).TotalRevenue,
	}
	for _, status := range models.AllStatuses {
		n := counts[status]
		summary.ByStatus[status] = n
		summary.TotalOrders += n
		switch {
		case status.IsPending():
			summary.Pending += n
		case status.IsActive():
			summary.Active += n
		case status == models.StatusCompleted:
			summary.Completed += n
		case status == models.StatusRejected:
			summary.Rejected += n
		}
	}
	return summary, nil
}
