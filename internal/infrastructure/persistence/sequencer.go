package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSequencer hands out per-order event sequence numbers from the
// order_sequences table. Numbers reserved by a rolled back transaction are
// released with it; a committed number is never handed out twice.
type GormSequencer struct {
	db *gorm.DB
}

// NewGormSequencer creates a new GormSequencer
func NewGormSequencer(db *gorm.DB) *GormSequencer {
	return &GormSequencer{db: db}
}

const nextSequenceSQL = `INSERT INTO order_sequences (order_id, last_value, updated_at)
VALUES (?, 1, ?)
ON CONFLICT (order_id) DO UPDATE
SET last_value = order_sequences.last_value + 1, updated_at = excluded.updated_at
RETURNING last_value`

// Next implements shared.Sequencer
func (s *GormSequencer) Next(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var value int64
	if err := s.db.WithContext(ctx).Raw(nextSequenceSQL, orderID, time.Now()).Scan(&value).Error; err != nil {
		return 0, fmt.Errorf("failed to reserve sequence for order %s: %w", orderID, err)
	}
	return value, nil
}

var _ shared.Sequencer = (*GormSequencer)(nil)
