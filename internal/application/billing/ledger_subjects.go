package billing

import (
	"context"

	"github.com/editdesk/backend/internal/domain/accounting"
	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/google/uuid"
)

// LedgerSubjects reads invoice subjects from the stored ledgers
type LedgerSubjects struct {
	ledgers billing.LedgerRepository
}

// NewLedgerSubjects creates a SubjectSource over ledgers
func NewLedgerSubjects(ledgers billing.LedgerRepository) *LedgerSubjects {
	return &LedgerSubjects{ledgers: ledgers}
}

// InvoiceSubject implements accounting.SubjectSource
func (s *LedgerSubjects) InvoiceSubject(ctx context.Context, orderID uuid.UUID) (*accounting.InvoiceSubject, error) {
	ledger, err := s.ledgers.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return ledger.InvoiceSubject(), nil
}

var _ accounting.SubjectSource = (*LedgerSubjects)(nil)
