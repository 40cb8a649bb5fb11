// Package event exposes operator actions on the event outbox: inspecting
// dead letters and putting them back on the delivery queue.
package event

import (
	"context"
	"fmt"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// OutboxService handles operator actions on outbox entries
type OutboxService struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
}

// NewOutboxService creates a new outbox service
func NewOutboxService(repo shared.OutboxRepository, logger *zap.Logger) *OutboxService {
	return &OutboxService{repo: repo, logger: logger}
}

// OutboxEntryDTO is the operator view of an outbox entry
type OutboxEntryDTO struct {
	ID          uuid.UUID  `json:"id"`
	PartnerID   uuid.UUID  `json:"partner_id"`
	OrderID     uuid.UUID  `json:"order_id,omitempty"`
	Sequence    int64      `json:"sequence,omitempty"`
	EventID     uuid.UUID  `json:"event_id"`
	EventType   string     `json:"event_type"`
	AggregateID uuid.UUID  `json:"aggregate_id"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
	LastError   string     `json:"last_error,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// OutboxFilter pages through dead letters
type OutboxFilter struct {
	Page     int `form:"page,omitempty" binding:"omitempty,min=1"`
	PageSize int `form:"page_size,omitempty" binding:"omitempty,min=1,max=100"`
}

// OutboxListResult is one page of dead letters
type OutboxListResult struct {
	Entries    []OutboxEntryDTO `json:"entries"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

// OutboxStatsDTO counts entries per status
type OutboxStatsDTO struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

func (f OutboxFilter) bounds() (page, size int) {
	page, size = max(f.Page, 1), f.PageSize
	switch {
	case size < 1:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	return page, size
}

// DeadLetters lists entries that exhausted their retries, most recently
// failed first
func (s *OutboxService) DeadLetters(ctx context.Context, filter OutboxFilter) (*OutboxListResult, error) {
	page, size := filter.bounds()
	entries, total, err := s.repo.FindDead(ctx, page, size)
	if err != nil {
		s.logger.Error("dead letter listing failed", zap.Error(err))
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	return &OutboxListResult{
		Entries:    viewsOf(entries),
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}, nil
}

// Entry returns a single outbox entry
func (s *OutboxService) Entry(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return viewOf(entry), nil
}

// Retry puts one dead letter back on the delivery queue. Consumers dedupe on
// (consumer, order, sequence), so parts that already landed are skipped.
func (s *OutboxService) Retry(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requeue(ctx, entry); err != nil {
		return nil, err
	}
	s.logger.Info("dead letter requeued",
		zap.Stringer("id", id),
		zap.String("event_type", entry.EventType),
		zap.Stringer("order_id", entry.OrderID),
		zap.Int64("sequence", entry.Sequence),
	)
	return viewOf(entry), nil
}

// RetryAll requeues every dead letter and returns how many went back.
// Requeued entries leave the dead set, so page one is reread until a pass
// moves nothing.
func (s *OutboxService) RetryAll(ctx context.Context) (int64, error) {
	var requeued int64
	for {
		batch, _, err := s.repo.FindDead(ctx, 1, maxPageSize)
		if err != nil {
			s.logger.Error("dead letter listing failed", zap.Error(err))
			return requeued, fmt.Errorf("list dead letters: %w", err)
		}
		moved := 0
		for _, entry := range batch {
			if s.requeue(ctx, entry) == nil {
				moved++
			}
		}
		requeued += int64(moved)
		if moved == 0 || len(batch) < maxPageSize {
			break
		}
	}
	s.logger.Info("dead letters requeued", zap.Int64("count", requeued))
	return requeued, nil
}

// Stats counts outbox entries by status
func (s *OutboxService) Stats(ctx context.Context) (*OutboxStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("outbox count failed", zap.Error(err))
		return nil, fmt.Errorf("count outbox entries: %w", err)
	}
	stats := &OutboxStatsDTO{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

func (s *OutboxService) requeue(ctx context.Context, entry *shared.OutboxEntry) error {
	if err := entry.ResetForRetry(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		s.logger.Error("requeue failed", zap.Error(err), zap.Stringer("id", entry.ID))
		return fmt.Errorf("requeue outbox entry: %w", err)
	}
	return nil
}

func (s *OutboxService) find(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	switch {
	case err != nil:
		return nil, fmt.Errorf("find outbox entry: %w", err)
	case entry == nil:
		return nil, shared.ErrNotFound.WithDetail("outbox_entry_id", id.String())
	}
	return entry, nil
}

func viewsOf(entries []*shared.OutboxEntry) []OutboxEntryDTO {
	views := make([]OutboxEntryDTO, 0, len(entries))
	for _, e := range entries {
		views = append(views, *viewOf(e))
	}
	return views
}

func viewOf(e *shared.OutboxEntry) *OutboxEntryDTO {
	return &OutboxEntryDTO{
		ID:          e.ID,
		PartnerID:   e.PartnerID,
		OrderID:     e.OrderID,
		Sequence:    e.Sequence,
		EventID:     e.EventID,
		EventType:   e.EventType,
		AggregateID: e.AggregateID,
		Status:      string(e.Status),
		RetryCount:  e.RetryCount,
		MaxRetries:  e.MaxRetries,
		LastError:   e.LastError,
		NextRetryAt: e.NextRetryAt,
		ProcessedAt: e.ProcessedAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}
