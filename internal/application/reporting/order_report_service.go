// Package reporting builds bulk order reports from committed rows. Reports
// take no workflow locks, so an order mid-transition shows its last
// committed state.
package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const reportPageSize = 200

// ReportFilter selects the orders of a report
type ReportFilter struct {
	Statuses []string   `form:"status"`
	From     *time.Time `form:"from" time_format:"2006-01-02"`
	To       *time.Time `form:"to" time_format:"2006-01-02"`
}

// OrderRow is one order with its billing snapshot
type OrderRow struct {
	OrderID       uuid.UUID
	Title         string
	Status        fulfillment.Status
	CustomerID    uuid.UUID
	EditorID      *uuid.UUID
	RevisionCount int
	Deliverables  int
	DueDate       *time.Time
	CreatedAt     time.Time
	CompletedAt   *time.Time
	Currency      string
	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	InvoiceNumber string
	InvoiceStatus string
}

// CurrencyTotal sums order totals in one currency
type CurrencyTotal struct {
	Currency string          `json:"currency"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// OrderReport is the data behind both the JSON summary and the workbook
type OrderReport struct {
	PartnerID   uuid.UUID                    `json:"partner_id"`
	GeneratedAt time.Time                    `json:"generated_at"`
	Rows        []OrderRow                   `json:"-"`
	ByStatus    map[fulfillment.Status]int64 `json:"by_status"`
	Totals      []CurrencyTotal              `json:"totals"`
	Invoiced    int64                        `json:"invoiced"`
	Orders      int64                        `json:"orders"`
}

// OrderReportService assembles order reports for partner admins
type OrderReportService struct {
	orders  fulfillment.OrderRepository
	ledgers billing.LedgerRepository
	logger  *zap.Logger
}

// NewOrderReportService creates a new OrderReportService
func NewOrderReportService(orders fulfillment.OrderRepository, ledgers billing.LedgerRepository, logger *zap.Logger) *OrderReportService {
	return &OrderReportService{orders: orders, ledgers: ledgers, logger: logger}
}

// Build collects every order matching the filter together with its ledger
func (s *OrderReportService) Build(ctx context.Context, partnerID uuid.UUID, actor shared.Actor, filter ReportFilter) (*OrderReport, error) {
	if actor.Role != shared.ActorRolePartnerAdmin {
		return nil, shared.ErrForbiddenActor.WithDetail("actor_id", actor.ID.String())
	}
	orderFilter := fulfillment.OrderFilter{From: filter.From, To: filter.To}
	for _, raw := range filter.Statuses {
		status := fulfillment.Status(raw)
		if !status.IsValid() {
			return nil, shared.ErrInvalidInput.WithDetail("status", raw)
		}
		orderFilter.Statuses = append(orderFilter.Statuses, status)
	}

	report := &OrderReport{
		PartnerID:   partnerID,
		GeneratedAt: time.Now().UTC(),
		ByStatus:    make(map[fulfillment.Status]int64),
	}
	totals := make(map[string]*CurrencyTotal)

	orderFilter.PageSize = reportPageSize
	for page := 1; ; page++ {
		orderFilter.Page = page
		orders, total, err := s.orders.FindForPartner(ctx, partnerID, orderFilter)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		if len(orders) == 0 {
			break
		}
		if err := s.appendRows(ctx, report, totals, orders); err != nil {
			return nil, err
		}
		if int64(page*reportPageSize) >= total {
			break
		}
	}

	for _, t := range totals {
		report.Totals = append(report.Totals, *t)
	}
	sort.Slice(report.Totals, func(i, j int) bool {
		return report.Totals[i].Currency < report.Totals[j].Currency
	})
	report.Orders = int64(len(report.Rows))

	s.logger.Info("order report built",
		zap.String("partner_id", partnerID.String()),
		zap.Int64("orders", report.Orders),
	)
	return report, nil
}

func (s *OrderReportService) appendRows(ctx context.Context, report *OrderReport, totals map[string]*CurrencyTotal, orders []fulfillment.Order) error {
	ids := make([]uuid.UUID, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	ledgers, err := s.ledgers.FindByOrderIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load ledgers: %w", err)
	}

	for i := range orders {
		o := &orders[i]
		row := OrderRow{
			OrderID:       o.ID,
			Title:         o.Title,
			Status:        o.Status,
			CustomerID:    o.CustomerID,
			EditorID:      o.EditorID,
			RevisionCount: o.RevisionCount,
			Deliverables:  len(o.Deliverables),
			DueDate:       o.DueDate,
			CreatedAt:     o.CreatedAt,
			CompletedAt:   o.CompletedAt,
			Subtotal:      decimal.Zero,
			Tax:           decimal.Zero,
			Total:         decimal.Zero,
		}
		if ledger, ok := ledgers[o.ID]; ok {
			t := ledger.Totals()
			row.Currency = string(ledger.Currency)
			row.Subtotal = t.Subtotal.Amount()
			row.Tax = t.Tax.Amount()
			row.Total = t.Total.Amount()
			row.InvoiceNumber = ledger.Invoice.Number
			row.InvoiceStatus = string(ledger.Invoice.Status)
			if ledger.Invoice.IsRaised() {
				report.Invoiced++
			}

			sum, ok := totals[row.Currency]
			if !ok {
				sum = &CurrencyTotal{Currency: row.Currency}
				totals[row.Currency] = sum
			}
			sum.Subtotal = sum.Subtotal.Add(row.Subtotal)
			sum.Tax = sum.Tax.Add(row.Tax)
			sum.Total = sum.Total.Add(row.Total)
		}
		report.ByStatus[o.Status]++
		report.Rows = append(report.Rows, row)
	}
	return nil
}

// Export renders the report as an xlsx workbook
func (s *OrderReportService) Export(ctx context.Context, partnerID uuid.UUID, actor shared.Actor, filter ReportFilter) ([]byte, error) {
	report, err := s.Build(ctx, partnerID, actor, filter)
	if err != nil {
		return nil, err
	}
	return NewWorkbookWriter().Write(report)
}
