package billing

import (
	"context"
	"fmt"

	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/editdesk/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// InvoiceDeadLetterObserver turns an OrderApproved delivery that exhausted its
// retries into an invoice_raise_failed record on the order's ledger, so the
// partner sees why no invoice exists.
type InvoiceDeadLetterObserver struct {
	ledgers *LedgerService
	logger  *zap.Logger
}

// NewInvoiceDeadLetterObserver creates a new InvoiceDeadLetterObserver
func NewInvoiceDeadLetterObserver(ledgers *LedgerService, logger *zap.Logger) *InvoiceDeadLetterObserver {
	return &InvoiceDeadLetterObserver{ledgers: ledgers, logger: logger}
}

// OutboxDeadLettered records the failure for approved orders and ignores
// every other event type
func (o *InvoiceDeadLetterObserver) OutboxDeadLettered(ctx context.Context, entry *shared.OutboxEntry) {
	if entry.EventType != fulfillment.EventTypeOrderApproved {
		return
	}
	reason := fmt.Sprintf("automatic invoice raise gave up after %d attempts: %s", entry.RetryCount, entry.LastError)
	if err := o.ledgers.RecordRaiseFailure(ctx, entry.OrderID, reason); err != nil {
		o.logger.Error("failed to record invoice raise failure",
			zap.String("order_id", entry.OrderID.String()),
			zap.String("event_id", entry.EventID.String()),
			zap.Error(err),
		)
	}
}
