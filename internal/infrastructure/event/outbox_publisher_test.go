package event

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestPublisher(opts ...OutboxPublisherOption) *OutboxPublisher {
	serializer := NewEventSerializer()
	Register[testEvent](serializer, "OrderAccepted")
	Register[testEvent](serializer, "OrderApproved")
	return NewOutboxPublisher(serializer, opts...)
}

func TestOutboxPublisher_PublishWithTx(t *testing.T) {
	db, mock := testutil.PostgresMock(t)
	publisher := newTestPublisher()
	orderID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "outbox_events"`)).
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	err := db.Transaction(func(tx *gorm.DB) error {
		return publisher.PublishWithTx(context.Background(), tx,
			newSequencedEvent("OrderAccepted", orderID, 1),
			newSequencedEvent("OrderApproved", orderID, 2),
		)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxPublisher_PublishWithTx_NoEvents(t *testing.T) {
	db, mock := testutil.PostgresMock(t)
	publisher := newTestPublisher()

	require.NoError(t, publisher.PublishWithTx(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxPublisher_PublishWithTx_InsertFailureRollsBack(t *testing.T) {
	db, mock := testutil.PostgresMock(t)
	publisher := newTestPublisher()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "outbox_events"`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := db.Transaction(func(tx *gorm.DB) error {
		return publisher.PublishWithTx(context.Background(), tx,
			newSequencedEvent("OrderAccepted", uuid.New(), 1))
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxPublisher_UnsequencedEventRejectedBeforeWrite(t *testing.T) {
	db, mock := testutil.PostgresMock(t)
	publisher := newTestPublisher()

	err := publisher.PublishWithTx(context.Background(), db, newTestEvent("OrderAccepted", uuid.New()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no sequence")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxPublisher_UnregisteredEventRejected(t *testing.T) {
	publisher := newTestPublisher()

	_, err := publisher.Entries(newSequencedEvent("SomethingElse", uuid.New(), 1))
	require.Error(t, err)
}

func TestOutboxPublisher_SaveEvents_RequiresGormTx(t *testing.T) {
	publisher := newTestPublisher()

	err := publisher.SaveEvents(context.Background(), "not a tx",
		newSequencedEvent("OrderAccepted", uuid.New(), 1))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "*gorm.DB")
}

func TestOutboxPublisher_SaveEvents_NoEventsIgnoresProvider(t *testing.T) {
	publisher := newTestPublisher()
	assert.NoError(t, publisher.SaveEvents(context.Background(), nil))
}

func TestOutboxPublisher_EntriesCarryRetryPolicy(t *testing.T) {
	publisher := newTestPublisher(WithRetryPolicy(3, 2*time.Second))
	orderID := uuid.New()

	entries, err := publisher.Entries(
		newSequencedEvent("OrderAccepted", orderID, 1),
		newSequencedEvent("OrderApproved", orderID, 2),
	)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	for i, entry := range entries {
		assert.Equal(t, 3, entry.MaxRetries)
		assert.Equal(t, 2*time.Second, entry.BaseBackoff)
		assert.Equal(t, orderID, entry.OrderID)
		assert.Equal(t, int64(i+1), entry.Sequence)
		assert.Equal(t, shared.OutboxStatusPending, entry.Status)
	}
}

func TestOutboxPublisher_DefaultRetryPolicy(t *testing.T) {
	publisher := newTestPublisher(WithRetryPolicy(0, 0))

	entries, err := publisher.Entries(newSequencedEvent("OrderAccepted", uuid.New(), 1))

	require.NoError(t, err)
	assert.Equal(t, shared.DefaultMaxRetries, entries[0].MaxRetries)
	assert.Equal(t, shared.DefaultBaseBackoff, entries[0].BaseBackoff)
}
