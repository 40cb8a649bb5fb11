package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/editdesk/backend/internal/application/workflow"
	"github.com/editdesk/backend/internal/domain/accounting"
	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/partner"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService edits order ledgers and raises their invoices. Every call
// serializes on the order's lock, the same lock lifecycle transitions use.
type LedgerService struct {
	ledgers    billing.LedgerRepository
	committer  *workflow.Committer
	catalog    billing.Catalog
	translator *accounting.Translator
	api        accounting.LedgerAPI
	settings   partner.SettingsProvider
	waits      workflow.Waits
	logger     *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	ledgers billing.LedgerRepository,
	committer *workflow.Committer,
	catalog billing.Catalog,
	translator *accounting.Translator,
	api accounting.LedgerAPI,
	settings partner.SettingsProvider,
) *LedgerService {
	return &LedgerService{
		ledgers:    ledgers,
		committer:  committer,
		catalog:    catalog,
		translator: translator,
		api:        api,
		settings:   settings,
		waits:      workflow.DefaultWaits(),
		logger:     zap.NewNop(),
	}
}

// SetWaits overrides the lock waits
func (s *LedgerService) SetWaits(waits workflow.Waits) {
	s.waits = waits
}

// SetLogger sets the logger
func (s *LedgerService) SetLogger(logger *zap.Logger) {
	s.logger = logger
}

// Get returns the ledger with freshly computed totals
func (s *LedgerService) Get(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*LedgerResponse, error) {
	if actor.Role == shared.ActorRoleEditor {
		return nil, shared.ErrForbiddenActor.WithDetail("actor_id", actor.ID.String())
	}
	ledger, err := s.load(ctx, s.ledgers, partnerID, orderID, actor)
	if err != nil {
		return nil, err
	}
	response := ToLedgerResponse(ledger)
	return &response, nil
}

// AddLineItem prices the selection from the catalog as of now and appends it
func (s *LedgerService) AddLineItem(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, req AddLineItemRequest) (*LedgerResult, error) {
	entry, err := s.catalog.Resolve(ctx, partnerID, billing.ProductSelection{
		ProductID:   req.ProductID,
		VariationID: req.VariationID,
		Quantity:    req.Quantity,
	})
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, "ledger.add_line_item", partnerID, orderID, actor, func(l *billing.Ledger) error {
		_, err := l.AddLineItem(*entry, req.Quantity, actor)
		return err
	})
}

// UpdateQuantity changes a line item's quantity
func (s *LedgerService) UpdateQuantity(ctx context.Context, partnerID, orderID, itemID uuid.UUID, actor shared.Actor, quantity int) (*LedgerResult, error) {
	return s.mutate(ctx, "ledger.update_quantity", partnerID, orderID, actor, func(l *billing.Ledger) error {
		return l.UpdateQuantity(itemID, quantity, actor)
	})
}

// UpdatePrice changes a line item's unit price
func (s *LedgerService) UpdatePrice(ctx context.Context, partnerID, orderID, itemID uuid.UUID, actor shared.Actor, price decimal.Decimal) (*LedgerResult, error) {
	return s.mutate(ctx, "ledger.update_price", partnerID, orderID, actor, func(l *billing.Ledger) error {
		return l.UpdatePrice(itemID, price, actor)
	})
}

// CommitPrice commits the raw text of a price field. Text that does not parse
// commits as zero.
func (s *LedgerService) CommitPrice(ctx context.Context, partnerID, orderID, itemID uuid.UUID, actor shared.Actor, raw string) (*LedgerResult, error) {
	draft := billing.DraftFromText(raw)
	return s.mutate(ctx, "ledger.update_price", partnerID, orderID, actor, func(l *billing.Ledger) error {
		return l.CommitPrice(itemID, draft, actor)
	})
}

// RemoveLineItem drops a line item
func (s *LedgerService) RemoveLineItem(ctx context.Context, partnerID, orderID, itemID uuid.UUID, actor shared.Actor) (*LedgerResult, error) {
	return s.mutate(ctx, "ledger.remove_line_item", partnerID, orderID, actor, func(l *billing.Ledger) error {
		return l.RemoveLineItem(itemID, actor)
	})
}

// SyncInvoiceStatus projects the external invoice status onto the ledger
func (s *LedgerService) SyncInvoiceStatus(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, status string) (*LedgerResult, error) {
	return s.mutate(ctx, "ledger.sync_invoice_status", partnerID, orderID, actor, func(l *billing.Ledger) error {
		return l.SyncInvoiceStatus(billing.InvoiceStatus(status), actor)
	})
}

// RaiseInvoice raises the order's invoice on request. It is refused when the
// partner's trigger is never. An incomplete mapping is returned to the caller
// with every missing entry and nothing is recorded on the ledger.
func (s *LedgerService) RaiseInvoice(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*LedgerResult, error) {
	if err := ensureAdmin(actor); err != nil {
		return nil, err
	}
	settings, err := s.settings.Settings(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("load partner settings: %w", err)
	}
	if !settings.InvoiceTrigger.AllowsManualRaise() {
		return nil, shared.ErrInvoicingDisabled.
			WithDetail("partner_id", partnerID.String()).
			WithDetail("trigger", string(settings.InvoiceTrigger))
	}
	ledger, outcome, err := s.raise(ctx, partnerID, orderID, actor, settings, false)
	if err != nil {
		return nil, err
	}
	return &LedgerResult{Ledger: ToLedgerResponse(ledger), Degraded: outcome.Degraded}, nil
}

// RaiseOnApproval is the automatic raise run when an order is approved. A
// missing mapping is recorded on the ledger as a raise failure and reported
// as an INCOMPLETE_MAPPING error.
func (s *LedgerService) RaiseOnApproval(ctx context.Context, partnerID, orderID uuid.UUID, settings partner.Settings) error {
	_, _, err := s.raise(ctx, partnerID, orderID, shared.SystemActor, settings, true)
	return err
}

// RecordRaiseFailure records a permanently failed automatic raise on the
// ledger. It is a no-op once an invoice exists.
func (s *LedgerService) RecordRaiseFailure(ctx context.Context, orderID uuid.UUID, reason string) error {
	_, err := s.committer.RunLocked(ctx, "ledger.record_raise_failure", orderID, s.waits.Ledger,
		func(ctx context.Context, commit workflow.CommitFunc) error {
			ledger, err := s.ledgers.FindByOrderID(ctx, orderID)
			if err != nil {
				return err
			}
			if ledger.EnsureCanRaise() != nil {
				return nil
			}
			return s.recordFailure(commit, orderID, reason, nil, shared.SystemActor)
		})
	return err
}

// raise holds the order lock across the ledger read, the external call and
// the commit, so no line item can change between the snapshot that was
// invoiced and the stored invoice id.
func (s *LedgerService) raise(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, settings partner.Settings, automatic bool) (*billing.Ledger, workflow.Outcome, error) {
	var result *billing.Ledger
	outcome, err := s.committer.RunLocked(ctx, "ledger.raise_invoice", orderID, s.waits.Ledger,
		func(ctx context.Context, commit workflow.CommitFunc) error {
			snapshot, err := s.load(ctx, s.ledgers, partnerID, orderID, actor)
			if err != nil {
				return err
			}
			if err := snapshot.EnsureCanRaise(); err != nil {
				return err
			}
			if len(snapshot.Items) == 0 {
				return shared.NewDomainError(shared.CodeInvalidInput, "ledger has no line items").
					WithDetail("order_id", orderID.String())
			}

			resolved, err := s.translator.ResolveSubject(ctx, snapshot.InvoiceSubject())
			if err != nil {
				if automatic && errors.Is(err, shared.ErrIncompleteMapping) {
					missing := accounting.MissingEntries(err)
					if recErr := s.recordFailure(commit, orderID, err.Error(), missing, actor); recErr != nil {
						return recErr
					}
				}
				return err
			}

			status := billing.InvoiceStatusFromPreference(settings.InvoiceStatus)
			created, err := s.createInvoice(ctx, snapshot.BuildInvoiceRequest(resolved, status))
			if err != nil {
				return err
			}

			err = commit(func(ctx context.Context, repos workflow.TransactionalRepositories) ([]shared.DomainEvent, error) {
				ledger, err := repos.LedgerRepo().FindByOrderID(ctx, orderID)
				if err != nil {
					return nil, err
				}
				if err := ledger.MarkInvoiceRaised(*created, status, actor); err != nil {
					return nil, err
				}
				if err := repos.LedgerRepo().SaveWithLock(ctx, ledger); err != nil {
					return nil, err
				}
				result = ledger
				return workflow.CollectEvents(ledger), nil
			})
			if err != nil {
				s.logger.Error("invoice created in ledger but not recorded",
					zap.String("order_id", orderID.String()),
					zap.String("invoice_id", created.InvoiceID),
					zap.Error(err),
				)
				return err
			}
			s.logger.Info("invoice raised",
				zap.String("order_id", orderID.String()),
				zap.String("invoice_id", created.InvoiceID),
				zap.String("invoice_number", created.InvoiceNumber),
				zap.Bool("automatic", automatic),
			)
			return nil
		})
	return result, outcome, err
}

// createInvoice adopts an invoice the ledger already holds for the order
// before creating one. An earlier raise can leave one behind when its commit
// failed after the ledger call.
func (s *LedgerService) createInvoice(ctx context.Context, req accounting.InvoiceRequest) (*accounting.CreatedInvoice, error) {
	existing, err := s.api.FindInvoiceByReference(ctx, req.Reference)
	if err != nil {
		return nil, fmt.Errorf("look up invoice: %w", err)
	}
	if existing != nil {
		s.logger.Warn("adopting invoice already in ledger",
			zap.String("reference", req.Reference),
			zap.String("invoice_id", existing.InvoiceID),
		)
		return existing, nil
	}
	created, err := s.api.CreateInvoice(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return created, nil
}

func (s *LedgerService) recordFailure(commit workflow.CommitFunc, orderID uuid.UUID, reason string, missing []accounting.MissingEntry, actor shared.Actor) error {
	return commit(func(ctx context.Context, repos workflow.TransactionalRepositories) ([]shared.DomainEvent, error) {
		ledger, err := repos.LedgerRepo().FindByOrderID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		ledger.RecordRaiseFailure(reason, missing, actor)
		if err := repos.LedgerRepo().SaveWithLock(ctx, ledger); err != nil {
			return nil, err
		}
		return workflow.CollectEvents(ledger), nil
	})
}

func (s *LedgerService) mutate(ctx context.Context, operation string, partnerID, orderID uuid.UUID, actor shared.Actor, fn func(*billing.Ledger) error) (*LedgerResult, error) {
	if err := ensureAdmin(actor); err != nil {
		return nil, err
	}
	var result *billing.Ledger
	outcome, err := s.committer.Run(ctx, operation, orderID, s.waits.Ledger,
		func(ctx context.Context, repos workflow.TransactionalRepositories) ([]shared.DomainEvent, error) {
			ledger, err := s.load(ctx, repos.LedgerRepo(), partnerID, orderID, actor)
			if err != nil {
				return nil, err
			}
			if err := fn(ledger); err != nil {
				return nil, err
			}
			events := workflow.CollectEvents(ledger)
			if len(events) > 0 {
				if err := repos.LedgerRepo().SaveWithLock(ctx, ledger); err != nil {
					return nil, err
				}
			}
			result = ledger
			return events, nil
		})
	if err != nil {
		return nil, err
	}
	return &LedgerResult{Ledger: ToLedgerResponse(result), Degraded: outcome.Degraded}, nil
}

func (s *LedgerService) load(ctx context.Context, repo billing.LedgerRepository, partnerID, orderID uuid.UUID, actor shared.Actor) (*billing.Ledger, error) {
	ledger, err := repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ledger.PartnerID != partnerID ||
		(actor.Role == shared.ActorRoleCustomer && ledger.CustomerID != actor.ID) {
		return nil, shared.ErrNotFound.WithDetail("order_id", orderID.String())
	}
	return ledger, nil
}

// ensureAdmin limits ledger edits to the partner and background triggers
func ensureAdmin(actor shared.Actor) error {
	if actor.Role == shared.ActorRolePartnerAdmin || actor.Role == shared.ActorRoleSystem {
		return nil
	}
	return shared.ErrForbiddenActor.WithDetail("actor_id", actor.ID.String())
}
