package event

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var outboxColumns = []string{
	"id", "partner_id", "order_id", "sequence", "event_id", "event_type", "aggregate_id",
	"aggregate_type", "payload", "status", "retry_count", "max_retries", "base_backoff_ms",
	"last_error", "next_retry_at", "processed_at", "created_at", "updated_at",
}

// outboxRow is one outbox_events row of orderID in the given state
func outboxRow(id, orderID uuid.UUID, seq int64, eventType, status string) []driver.Value {
	now := time.Now()
	return []driver.Value{
		id.String(), uuid.NewString(), orderID.String(), seq, uuid.NewString(), eventType, orderID.String(),
		"Order", []byte(`{}`), status, 0, 5, 2000, "", nil, nil, now, now,
	}
}

func rowsOf(values ...[]driver.Value) *sqlmock.Rows {
	rows := sqlmock.NewRows(outboxColumns)
	for _, v := range values {
		rows.AddRow(v...)
	}
	return rows
}

func newEntry(orderID uuid.UUID, seq int64) *shared.OutboxEntry {
	return shared.NewOutboxEntry(newSequencedEvent("OrderAccepted", orderID, seq), []byte(`{}`))
}

func TestGormOutboxRepository_Save(t *testing.T) {
	t.Run("inserts in one statement", func(t *testing.T) {
		db, mock := testutil.PostgresMock(t)
		orderID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "outbox_events"`)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		require.NoError(t, NewGormOutboxRepository(db).Save(context.Background(), newEntry(orderID, 1), newEntry(orderID, 2)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing to save", func(t *testing.T) {
		db, mock := testutil.PostgresMock(t)
		require.NoError(t, NewGormOutboxRepository(db).Save(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormOutboxRepository_Finders(t *testing.T) {
	before := time.Now()

	tests := []struct {
		name  string
		query string
		args  []driver.Value
		find  func(*GormOutboxRepository) ([]*shared.OutboxEntry, error)
	}{
		{
			name:  "pending in delivery order",
			query: `SELECT * FROM "outbox_events" WHERE status = $1 ORDER BY created_at ASC,sequence ASC LIMIT $2`,
			args:  []driver.Value{shared.OutboxStatusPending, 10},
			find: func(r *GormOutboxRepository) ([]*shared.OutboxEntry, error) {
				return r.FindPending(context.Background(), 10)
			},
		},
		{
			name:  "retryable due by cutoff",
			query: `SELECT * FROM "outbox_events" WHERE status = $1 AND next_retry_at <= $2 ORDER BY next_retry_at ASC LIMIT $3`,
			args:  []driver.Value{shared.OutboxStatusFailed, before, 10},
			find: func(r *GormOutboxRepository) ([]*shared.OutboxEntry, error) {
				return r.FindRetryable(context.Background(), before, 10)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := testutil.PostgresMock(t)
			orderID := uuid.New()

			mock.ExpectQuery(regexp.QuoteMeta(tt.query)).
				WithArgs(tt.args...).
				WillReturnRows(rowsOf(
					outboxRow(uuid.New(), orderID, 1, "OrderAccepted", "PENDING"),
					outboxRow(uuid.New(), orderID, 2, "OrderApproved", "PENDING"),
				))

			entries, err := tt.find(NewGormOutboxRepository(db))

			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.Equal(t, orderID, entries[0].OrderID)
			assert.Equal(t, int64(1), entries[0].Sequence)
			assert.Equal(t, 2*time.Second, entries[0].BaseBackoff)
			assert.Equal(t, "OrderApproved", entries[1].EventType)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormOutboxRepository_MarkProcessing(t *testing.T) {
	t.Run("returns only the rows it locked", func(t *testing.T) {
		db, mock := testutil.PostgresMock(t)
		won := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE SKIP LOCKED`)).
			WillReturnRows(rowsOf(outboxRow(won, uuid.New(), 4, "OrderAccepted", "FAILED")))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "outbox_events" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		claimed, err := NewGormOutboxRepository(db).MarkProcessing(context.Background(), []uuid.UUID{won, uuid.New()})

		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, won, claimed[0].ID)
		assert.Equal(t, shared.OutboxStatusProcessing, claimed[0].Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("everything held elsewhere", func(t *testing.T) {
		db, mock := testutil.PostgresMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE SKIP LOCKED`)).WillReturnRows(rowsOf())
		mock.ExpectCommit()

		claimed, err := NewGormOutboxRepository(db).MarkProcessing(context.Background(), []uuid.UUID{uuid.New()})
		require.NoError(t, err)
		assert.Empty(t, claimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no ids", func(t *testing.T) {
		db, mock := testutil.PostgresMock(t)

		claimed, err := NewGormOutboxRepository(db).MarkProcessing(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, claimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormOutboxRepository_Update(t *testing.T) {
	db, mock := testutil.PostgresMock(t)
	entry := newEntry(uuid.New(), 1)
	entry.MarkSent()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "outbox_events"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, NewGormOutboxRepository(db).Update(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOutboxRepository_Housekeeping(t *testing.T) {
	t.Run("deletes old sent entries", func(t *testing.T) {
		db, mock := testutil.PostgresMock(t)
		cutoff := time.Now().Add(-7 * 24 * time.Hour)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "outbox_events" WHERE status = $1 AND processed_at < $2`)).
			WithArgs(shared.OutboxStatusSent, cutoff).
			WillReturnResult(sqlmock.NewResult(0, 5))
		mock.ExpectCommit()

		deleted, err := NewGormOutboxRepository(db).DeleteOlderThan(context.Background(), cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(5), deleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("releases stale claims", func(t *testing.T) {
		db, mock := testutil.PostgresMock(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "outbox_events" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		released, err := NewGormOutboxRepository(db).ReleaseStale(context.Background(), time.Now().Add(-5*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(2), released)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormOutboxRepository_FindDead(t *testing.T) {
	db, mock := testutil.PostgresMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "outbox_events" WHERE status = $1`)).
		WithArgs(shared.OutboxStatusDead).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "outbox_events" WHERE status = $1 ORDER BY updated_at DESC LIMIT $2 OFFSET $3`)).
		WithArgs(shared.OutboxStatusDead, 20, 20).
		WillReturnRows(rowsOf(outboxRow(uuid.New(), uuid.New(), 3, "InvoiceRaised", "DEAD")))

	entries, total, err := NewGormOutboxRepository(db).FindDead(context.Background(), 2, 20)

	require.NoError(t, err)
	assert.Equal(t, int64(21), total)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDead())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOutboxRepository_FindByID_NotFound(t *testing.T) {
	db, mock := testutil.PostgresMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "outbox_events" WHERE id = $1`)).
		WillReturnRows(rowsOf())

	_, err := NewGormOutboxRepository(db).FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOutboxRepository_CountByStatus(t *testing.T) {
	db, mock := testutil.PostgresMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, count(*) as count FROM "outbox_events"`)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("PENDING", 3).
			AddRow("DEAD", 1))

	counts, err := NewGormOutboxRepository(db).CountByStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[shared.OutboxStatus]int64{
		shared.OutboxStatusPending: 3,
		shared.OutboxStatusDead:    1,
	}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
