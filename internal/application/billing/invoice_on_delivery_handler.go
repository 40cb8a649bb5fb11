package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/editdesk/backend/internal/domain/partner"
	"github.com/editdesk/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// InvoiceOnDeliveryHandler handles OrderApprovedEvent
// and raises the order's invoice when the partner invoices on delivery.
// It runs from both the fast path and the outbox; a returned error makes the
// outbox retry the event.
type InvoiceOnDeliveryHandler struct {
	ledgers  *LedgerService
	settings partner.SettingsProvider
	logger   *zap.Logger
}

// NewInvoiceOnDeliveryHandler creates a new handler for order approved events
func NewInvoiceOnDeliveryHandler(
	ledgers *LedgerService,
	settings partner.SettingsProvider,
	logger *zap.Logger,
) *InvoiceOnDeliveryHandler {
	return &InvoiceOnDeliveryHandler{
		ledgers:  ledgers,
		settings: settings,
		logger:   logger,
	}
}

func (h *InvoiceOnDeliveryHandler) Name() string { return "invoicing" }

// EventTypes returns the event types this handler is interested in
func (h *InvoiceOnDeliveryHandler) EventTypes() []string {
	return []string{fulfillment.EventTypeOrderApproved}
}

// Handle processes an OrderApprovedEvent by raising the invoice
func (h *InvoiceOnDeliveryHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	approved, ok := event.(*fulfillment.OrderApprovedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", fulfillment.EventTypeOrderApproved),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			fulfillment.EventTypeOrderApproved, event.EventType())
	}

	settings, err := h.settings.Settings(ctx, approved.PartnerID())
	if err != nil {
		return fmt.Errorf("failed to load partner settings: %w", err)
	}
	if settings.InvoiceTrigger != partner.InvoiceTriggerOnDelivered {
		return nil
	}

	err = h.ledgers.RaiseOnApproval(ctx, approved.PartnerID(), approved.OrderID(), settings)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, shared.ErrDuplicateInvoice):
		h.logger.Debug("invoice already raised, skipping",
			zap.String("order_id", approved.OrderID().String()),
		)
		return nil
	case errors.Is(err, shared.ErrIncompleteMapping):
		// Recorded on the ledger; retrying cannot help until the mapping is fixed
		h.logger.Warn("invoice not raised, accounting mapping incomplete",
			zap.String("code", shared.CodeIncompleteMapping),
			zap.String("order_id", approved.OrderID().String()),
			zap.Error(err),
		)
		return nil
	default:
		h.logger.Error("failed to raise invoice on approval",
			zap.String("order_id", approved.OrderID().String()),
			zap.Error(err),
		)
		return err
	}
}

// Ensure InvoiceOnDeliveryHandler implements EventHandler
var _ shared.EventHandler = (*InvoiceOnDeliveryHandler)(nil)
