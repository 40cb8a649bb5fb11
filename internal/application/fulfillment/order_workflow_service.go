package fulfillment

import (
	"context"
	"fmt"
	"io"

	"github.com/editdesk/backend/internal/application/workflow"
	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/editdesk/backend/internal/domain/partner"
	"github.com/editdesk/backend/internal/domain/revision"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultUploadConcurrency is the number of files of one batch sent to the
// blob store at the same time
const DefaultUploadConcurrency = 4

// ProgressObserver receives byte progress of one upload item
type ProgressObserver func(itemID uuid.UUID, transferred int64)

// actionRoles lists who may request each transition. Assignment and reviewer
// guards are enforced by the order itself.
var actionRoles = map[fulfillment.Action][]shared.ActorRole{
	fulfillment.ActionAccept:            {shared.ActorRoleEditor, shared.ActorRolePartnerAdmin, shared.ActorRoleSystem},
	fulfillment.ActionDecline:           {shared.ActorRoleEditor, shared.ActorRolePartnerAdmin, shared.ActorRoleSystem},
	fulfillment.ActionUploadDeliverable: {shared.ActorRoleEditor, shared.ActorRolePartnerAdmin},
	fulfillment.ActionMarkComplete:      {shared.ActorRoleEditor, shared.ActorRolePartnerAdmin, shared.ActorRoleSystem},
	fulfillment.ActionRequestRevision:   {shared.ActorRoleCustomer, shared.ActorRolePartnerAdmin, shared.ActorRoleSystem},
	fulfillment.ActionApprove:           {shared.ActorRoleCustomer, shared.ActorRolePartnerAdmin, shared.ActorRoleSystem},
}

// OrderWorkflowService drives orders through their lifecycle. Every command
// runs under the order's lock and commits the order with its events in one
// transaction.
type OrderWorkflowService struct {
	orders    fulfillment.OrderRepository
	committer *workflow.Committer
	resolver  *revision.Resolver
	settings  partner.SettingsProvider
	catalog   billing.Catalog
	blobs     fulfillment.BlobStore
	waits     workflow.Waits

	uploadConcurrency int
	logger            *zap.Logger
}

// NewOrderWorkflowService creates a new OrderWorkflowService
func NewOrderWorkflowService(
	orders fulfillment.OrderRepository,
	committer *workflow.Committer,
	resolver *revision.Resolver,
	settings partner.SettingsProvider,
	catalog billing.Catalog,
) *OrderWorkflowService {
	return &OrderWorkflowService{
		orders:            orders,
		committer:         committer,
		resolver:          resolver,
		settings:          settings,
		catalog:           catalog,
		waits:             workflow.DefaultWaits(),
		uploadConcurrency: DefaultUploadConcurrency,
		logger:            zap.NewNop(),
	}
}

// SetBlobStore sets the deliverable store used by uploads and downloads
func (s *OrderWorkflowService) SetBlobStore(blobs fulfillment.BlobStore) {
	s.blobs = blobs
}

// SetWaits overrides the lock waits
func (s *OrderWorkflowService) SetWaits(waits workflow.Waits) {
	s.waits = waits
}

// SetUploadConcurrency sets how many files of a batch upload in parallel
func (s *OrderWorkflowService) SetUploadConcurrency(n int) {
	if n > 0 {
		s.uploadConcurrency = n
	}
}

// SetLogger sets the logger
func (s *OrderWorkflowService) SetLogger(logger *zap.Logger) {
	s.logger = logger
}

// PlaceOrder creates an order together with its ledger. The selected service
// becomes the ledger's first line item.
func (s *OrderWorkflowService) PlaceOrder(ctx context.Context, partnerID uuid.UUID, actor shared.Actor, req PlaceOrderRequest) (*TransitionResult, error) {
	switch actor.Role {
	case shared.ActorRoleEditor:
		return nil, shared.ErrForbiddenActor.WithDetail("actor_id", actor.ID.String())
	case shared.ActorRoleCustomer:
		if req.CustomerID != actor.ID {
			return nil, shared.ErrForbiddenActor.
				WithDetail("actor_id", actor.ID.String()).
				WithDetail("customer_id", req.CustomerID.String())
		}
	}

	settings, err := s.settings.Settings(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("load partner settings: %w", err)
	}
	entry, err := s.catalog.Resolve(ctx, partnerID, billing.ProductSelection{
		ProductID:   req.ProductID,
		VariationID: req.VariationID,
		Quantity:    req.Quantity,
	})
	if err != nil {
		return nil, err
	}

	order, err := fulfillment.NewOrder(partnerID, req.JobID, req.CustomerID, req.EditorID, req.Title, req.DueDate, actor)
	if err != nil {
		return nil, err
	}
	ledger, err := billing.NewLedger(partnerID, order.ID, order.CustomerID, settings.Currency)
	if err != nil {
		return nil, err
	}
	if _, err := ledger.AddLineItem(*entry, req.Quantity, actor); err != nil {
		return nil, err
	}

	outcome, err := s.committer.Run(ctx, "place_order", order.ID, s.waits.Transition,
		func(ctx context.Context, repos workflow.TransactionalRepositories) ([]shared.DomainEvent, error) {
			if err := repos.OrderRepo().Create(ctx, order); err != nil {
				return nil, err
			}
			if err := repos.LedgerRepo().Create(ctx, ledger); err != nil {
				return nil, err
			}
			return workflow.CollectEvents(order, ledger), nil
		})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("partner_id", partnerID.String()),
		zap.String("customer_id", order.CustomerID.String()),
	)
	return &TransitionResult{
		Order:    ToOrderResponse(order, actor.Role == shared.ActorRoleCustomer),
		Degraded: outcome.Degraded,
	}, nil
}

// Submit applies one transition request to the order. A revision request is
// checked against the customer's revision policy while the lock is held, so
// two concurrent requests can never both pass the limit.
func (s *OrderWorkflowService) Submit(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, t fulfillment.Transition) (*TransitionResult, error) {
	if t == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "transition is required")
	}
	if err := authorize(t.Action(), actor); err != nil {
		return nil, err
	}

	var order *fulfillment.Order
	outcome, err := s.committer.Run(ctx, "transition."+string(t.Action()), orderID, s.waits.Transition,
		func(ctx context.Context, repos workflow.TransactionalRepositories) ([]shared.DomainEvent, error) {
			loaded, err := s.loadForActor(ctx, repos.OrderRepo(), partnerID, orderID, actor)
			if err != nil {
				return nil, err
			}
			if req, ok := t.(fulfillment.RequestRevision); ok {
				decision, err := s.checkRevision(ctx, loaded)
				if err != nil {
					return nil, err
				}
				req.Decision = decision
				t = req
			}
			if err := loaded.Apply(t, actor); err != nil {
				return nil, err
			}
			if err := repos.OrderRepo().SaveWithLock(ctx, loaded); err != nil {
				return nil, err
			}
			order = loaded
			return workflow.CollectEvents(loaded), nil
		})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("order transition committed",
		zap.String("order_id", orderID.String()),
		zap.String("action", string(t.Action())),
		zap.String("status", string(order.Status)),
		zap.Bool("degraded", outcome.Degraded),
	)
	return &TransitionResult{
		Order:    ToOrderResponse(order, actor.Role == shared.ActorRoleCustomer),
		Degraded: outcome.Degraded,
	}, nil
}

// Accept assigns the order to an editor. editorID defaults to the caller.
func (s *OrderWorkflowService) Accept(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, req AcceptOrderRequest) (*TransitionResult, error) {
	editorID := actor.ID
	if req.EditorID != nil {
		editorID = *req.EditorID
	}
	if actor.Role == shared.ActorRoleEditor && editorID != actor.ID {
		return nil, shared.ErrForbiddenActor.
			WithDetail("actor_id", actor.ID.String()).
			WithDetail("editor_id", editorID.String())
	}
	return s.Submit(ctx, partnerID, orderID, actor, fulfillment.Accept{EditorID: editorID})
}

// Decline cancels the order
func (s *OrderWorkflowService) Decline(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, req DeclineOrderRequest) (*TransitionResult, error) {
	return s.Submit(ctx, partnerID, orderID, actor, fulfillment.Decline{Reason: req.Reason})
}

// MarkComplete submits the delivered work for review
func (s *OrderWorkflowService) MarkComplete(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*TransitionResult, error) {
	return s.Submit(ctx, partnerID, orderID, actor, fulfillment.MarkComplete{})
}

// RequestRevision sends the work back to the editor
func (s *OrderWorkflowService) RequestRevision(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, req RequestRevisionRequest) (*TransitionResult, error) {
	return s.Submit(ctx, partnerID, orderID, actor, fulfillment.RequestRevision{Notes: req.Notes})
}

// Approve completes the order
func (s *OrderWorkflowService) Approve(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*TransitionResult, error) {
	return s.Submit(ctx, partnerID, orderID, actor, fulfillment.Approve{})
}

// UploadDeliverables stores a batch of files and attaches the ones that made
// it to the order in a single transition. Files upload concurrently and fail
// independently; failed items are reported and can be sent again in a new
// batch. The order is checked before any byte is transferred.
func (s *OrderWorkflowService) UploadDeliverables(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, files []fulfillment.UploadSource, onProgress ProgressObserver) (*UploadResult, error) {
	if s.blobs == nil {
		return nil, fmt.Errorf("no blob store configured")
	}
	if len(files) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "at least one file is required")
	}
	if err := authorize(fulfillment.ActionUploadDeliverable, actor); err != nil {
		return nil, err
	}
	order, err := s.loadForActor(ctx, s.orders, partnerID, orderID, actor)
	if err != nil {
		return nil, err
	}
	if err := order.Precheck(fulfillment.ActionUploadDeliverable, actor); err != nil {
		return nil, err
	}

	batch := fulfillment.NewUploadBatch(orderID, files)
	var g errgroup.Group
	g.SetLimit(s.uploadConcurrency)
	for i, itemID := range batch.ItemIDs() {
		src := files[i]
		g.Go(func() error {
			s.uploadOne(ctx, batch, itemID, src, onProgress)
			return nil
		})
	}
	_ = g.Wait()
	<-batch.Ready()

	result := &UploadResult{Items: ToUploadItemResponses(batch.Items())}
	completed := batch.Completed()
	if len(completed) == 0 {
		s.logger.Warn("upload batch stored no files",
			zap.String("order_id", orderID.String()),
			zap.Int("failed", len(batch.Failed())),
		)
		return result, nil
	}

	committed, err := s.Submit(ctx, partnerID, orderID, actor, fulfillment.UploadDeliverable{Files: completed})
	if err != nil {
		s.logger.Warn("stored deliverables could not be attached",
			zap.String("order_id", orderID.String()),
			zap.Int("files", len(completed)),
			zap.Error(err),
		)
		return nil, err
	}
	result.Order = &committed.Order
	result.Degraded = committed.Degraded
	return result, nil
}

func (s *OrderWorkflowService) uploadOne(ctx context.Context, batch *fulfillment.UploadBatch, itemID uuid.UUID, src fulfillment.UploadSource, onProgress ProgressObserver) {
	batch.Start(itemID)
	key := fulfillment.DeliverableKey(batch.OrderID(), itemID, src.FileName)
	stored, err := s.blobs.Upload(ctx, key, src.Body, src.Size, src.ContentType, func(transferred int64) {
		batch.Advance(itemID, transferred)
		if onProgress != nil {
			onProgress(itemID, transferred)
		}
	})
	if err != nil {
		s.logger.Warn("deliverable upload failed",
			zap.String("order_id", batch.OrderID().String()),
			zap.String("file_name", src.FileName),
			zap.Error(err),
		)
		batch.Fail(itemID, err)
		return
	}
	batch.Complete(itemID, fulfillment.DeliverableFile{
		FileName:    src.FileName,
		Path:        stored.Path,
		URL:         stored.URL,
		Size:        src.Size,
		ContentType: src.ContentType,
	})
}

// SetDeliverableVisibility shows or hides a delivered file from the customer
func (s *OrderWorkflowService) SetDeliverableVisibility(ctx context.Context, partnerID, orderID, deliverableID uuid.UUID, actor shared.Actor, visible bool) (*TransitionResult, error) {
	if actor.Role == shared.ActorRoleCustomer {
		return nil, shared.ErrForbiddenActor.WithDetail("actor_id", actor.ID.String())
	}

	var order *fulfillment.Order
	outcome, err := s.committer.Run(ctx, "deliverable_visibility", orderID, s.waits.Transition,
		func(ctx context.Context, repos workflow.TransactionalRepositories) ([]shared.DomainEvent, error) {
			loaded, err := s.loadForActor(ctx, repos.OrderRepo(), partnerID, orderID, actor)
			if err != nil {
				return nil, err
			}
			if actor.Role == shared.ActorRoleEditor && (loaded.EditorID == nil || *loaded.EditorID != actor.ID) {
				return nil, shared.ErrForbiddenActor.
					WithDetail("order_id", orderID.String()).
					WithDetail("actor_id", actor.ID.String())
			}
			if err := loaded.SetDeliverableVisibility(deliverableID, visible, actor); err != nil {
				return nil, err
			}
			events := workflow.CollectEvents(loaded)
			if len(events) > 0 {
				if err := repos.OrderRepo().SaveWithLock(ctx, loaded); err != nil {
					return nil, err
				}
			}
			order = loaded
			return events, nil
		})
	if err != nil {
		return nil, err
	}
	return &TransitionResult{Order: ToOrderResponse(order, false), Degraded: outcome.Degraded}, nil
}

// Get returns one order as seen by the actor
func (s *OrderWorkflowService) Get(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*OrderResponse, error) {
	order, err := s.loadForViewer(ctx, partnerID, orderID, actor)
	if err != nil {
		return nil, err
	}
	response := ToOrderResponse(order, actor.Role == shared.ActorRoleCustomer)
	return &response, nil
}

// List returns a page of the partner's orders. Customers only see their own
// orders and editors only the ones assigned to them.
func (s *OrderWorkflowService) List(ctx context.Context, partnerID uuid.UUID, actor shared.Actor, filter OrderListFilter) ([]OrderListItemResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "created_at"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	domainFilter := fulfillment.OrderFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
		},
		CustomerID: filter.CustomerID,
		EditorID:   filter.EditorID,
		From:       filter.From,
		To:         filter.To,
	}
	for _, st := range filter.Statuses {
		status := fulfillment.Status(st)
		if !status.IsValid() {
			return nil, 0, shared.NewDomainErrorf(shared.CodeInvalidInput, "invalid order status %q", st)
		}
		domainFilter.Statuses = append(domainFilter.Statuses, status)
	}

	self := actor.ID
	switch actor.Role {
	case shared.ActorRoleCustomer:
		domainFilter.CustomerID = &self
	case shared.ActorRoleEditor:
		domainFilter.EditorID = &self
	}

	orders, total, err := s.orders.FindForPartner(ctx, partnerID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToOrderListItemResponses(orders), total, nil
}

// DownloadDeliverables writes the order's files to w as a zip archive.
// Customers only receive the visible ones.
func (s *OrderWorkflowService) DownloadDeliverables(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor, w io.Writer) error {
	if s.blobs == nil {
		return fmt.Errorf("no blob store configured")
	}
	order, err := s.loadForViewer(ctx, partnerID, orderID, actor)
	if err != nil {
		return err
	}

	var include func(path string) bool
	if actor.Role == shared.ActorRoleCustomer {
		visible := make(map[string]struct{})
		for _, d := range order.VisibleDeliverables() {
			visible[d.Path] = struct{}{}
		}
		include = func(path string) bool {
			_, ok := visible[path]
			return ok
		}
	}
	return s.blobs.Download(ctx, orderID, w, include)
}

// loadForActor loads the order and hides it from actors outside its partner
// and from customers that did not place it. Editors are checked by the
// order's own guards so a wrong assignment reads as FORBIDDEN_ACTOR.
func (s *OrderWorkflowService) loadForActor(ctx context.Context, repo fulfillment.OrderRepository, partnerID, orderID uuid.UUID, actor shared.Actor) (*fulfillment.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	notFound := shared.ErrNotFound.WithDetail("order_id", orderID.String())
	if order.PartnerID != partnerID {
		return nil, notFound
	}
	if actor.Role == shared.ActorRoleCustomer && order.CustomerID != actor.ID {
		return nil, notFound
	}
	return order, nil
}

// loadForViewer additionally hides orders assigned to another editor
func (s *OrderWorkflowService) loadForViewer(ctx context.Context, partnerID, orderID uuid.UUID, actor shared.Actor) (*fulfillment.Order, error) {
	order, err := s.loadForActor(ctx, s.orders, partnerID, orderID, actor)
	if err != nil {
		return nil, err
	}
	if actor.Role == shared.ActorRoleEditor && order.EditorID != nil && *order.EditorID != actor.ID {
		return nil, shared.ErrNotFound.WithDetail("order_id", orderID.String())
	}
	return order, nil
}

func (s *OrderWorkflowService) checkRevision(ctx context.Context, order *fulfillment.Order) (revision.Decision, error) {
	settings, err := s.settings.Settings(ctx, order.PartnerID)
	if err != nil {
		return revision.Decision{}, fmt.Errorf("load partner settings: %w", err)
	}
	return s.resolver.Check(ctx, order.PartnerID, order.CustomerID, order.RevisionCount, settings.DefaultRevisionLimit)
}

func authorize(action fulfillment.Action, actor shared.Actor) error {
	for _, role := range actionRoles[action] {
		if role == actor.Role {
			return nil
		}
	}
	return shared.ErrForbiddenActor.
		WithDetail("actor_id", actor.ID.String()).
		WithDetail("action", string(action))
}
