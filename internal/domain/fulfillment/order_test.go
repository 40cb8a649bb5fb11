package fulfillment

import (
	"testing"

	"github.com/editdesk/backend/internal/domain/revision"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================
// Test helpers
// ============================================

var partnerAdmin = shared.NewActor(uuid.New(), shared.ActorRolePartnerAdmin)

func createTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder(uuid.New(), uuid.New(), uuid.New(), nil, "Wedding set", nil, partnerAdmin)
	require.NoError(t, err)
	o.ClearDomainEvents()
	return o
}

func orderInStatus(t *testing.T, status Status) *Order {
	t.Helper()
	o := createTestOrder(t)
	editor := uuid.New()
	o.EditorID = &editor
	o.Status = status
	return o
}

func editorOf(o *Order) shared.Actor {
	return shared.NewActor(*o.EditorID, shared.ActorRoleEditor)
}

// actorFor picks the party that normally performs an action
func actorFor(o *Order, action Action) shared.Actor {
	if action == ActionRequestRevision || action == ActionApprove {
		return shared.SystemActor
	}
	return editorOf(o)
}

func requestFor(o *Order, action Action) Transition {
	switch action {
	case ActionAccept:
		return Accept{EditorID: *o.EditorID}
	case ActionDecline:
		return Decline{Reason: "too busy"}
	case ActionUploadDeliverable:
		return UploadDeliverable{Files: []DeliverableFile{{FileName: "a.jpg", Path: "orders/a.jpg"}}}
	case ActionMarkComplete:
		return MarkComplete{}
	case ActionRequestRevision:
		return RequestRevision{Notes: "brighten sky", Decision: revision.Decision{Allowed: true, Limit: revision.Rounds(2)}}
	case ActionApprove:
		return Approve{}
	}
	panic("unknown action " + action)
}

// ============================================
// Status
// ============================================

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     Status
		to       Status
		expected bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusHumanCheck, false},
		{StatusProcessing, StatusHumanCheck, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusCompleted, false},
		{StatusHumanCheck, StatusInRevision, true},
		{StatusHumanCheck, StatusCompleted, true},
		{StatusHumanCheck, StatusCancelled, false},
		{StatusInRevision, StatusHumanCheck, true},
		{StatusInRevision, StatusCancelled, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusCancelled, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CanTransitionTo(tt.to))
		})
	}
}

// ============================================
// State machine
// ============================================

// legal lists the outcome of every action that is allowed from a status;
// status stays put when the action is not a status change.
var legal = map[Status]map[Action]Status{
	StatusPending: {
		ActionAccept:  StatusProcessing,
		ActionDecline: StatusCancelled,
	},
	StatusProcessing: {
		ActionDecline:           StatusCancelled,
		ActionUploadDeliverable: StatusProcessing,
		ActionMarkComplete:      StatusHumanCheck,
	},
	StatusInRevision: {
		ActionUploadDeliverable: StatusInRevision,
		ActionMarkComplete:      StatusHumanCheck,
	},
	StatusHumanCheck: {
		ActionRequestRevision: StatusInRevision,
		ActionApprove:         StatusCompleted,
	},
}

func TestOrder_Apply_AllStateActionPairs(t *testing.T) {
	for _, status := range AllStatuses {
		for _, action := range AllActions {
			t.Run(string(status)+"/"+string(action), func(t *testing.T) {
				o := orderInStatus(t, status)
				err := o.Apply(requestFor(o, action), actorFor(o, action))

				want, ok := legal[status][action]
				if !ok {
					require.Error(t, err)
					assert.ErrorIs(t, err, shared.ErrInvalidTransition)
					assert.Equal(t, status, o.Status, "status must be unchanged")
					assert.Empty(t, o.GetDomainEvents())
					return
				}
				require.NoError(t, err)
				assert.Equal(t, want, o.Status)
				assert.True(t, want == status || status.CanTransitionTo(want))
				assert.NotEmpty(t, o.GetDomainEvents())
			})
		}
	}
}

func TestOrder_Precheck_MatchesApply(t *testing.T) {
	for _, status := range AllStatuses {
		for _, action := range AllActions {
			o := orderInStatus(t, status)
			precheck := o.Precheck(action, actorFor(o, action))
			_, ok := legal[status][action]
			assert.Equal(t, ok, precheck == nil, "%s/%s", status, action)
			assert.Equal(t, status, o.Status)
		}
	}

	o := orderInStatus(t, StatusProcessing)
	stranger := shared.NewActor(uuid.New(), shared.ActorRoleEditor)
	assert.ErrorIs(t, o.Precheck(ActionUploadDeliverable, stranger), shared.ErrForbiddenActor)
}

func TestOrder_Accept(t *testing.T) {
	t.Run("assigns the caller", func(t *testing.T) {
		o := createTestOrder(t)
		editor := uuid.New()
		require.NoError(t, o.Apply(Accept{EditorID: editor}, shared.NewActor(editor, shared.ActorRoleEditor)))
		require.NotNil(t, o.EditorID)
		assert.Equal(t, editor, *o.EditorID)
		assert.NotNil(t, o.AcceptedAt)

		events := o.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeOrderAccepted, events[0].EventType())
	})

	t.Run("pre-assigned order rejects another editor", func(t *testing.T) {
		o := orderInStatus(t, StatusPending)
		other := uuid.New()
		err := o.Apply(Accept{EditorID: other}, shared.NewActor(other, shared.ActorRoleEditor))
		assert.ErrorIs(t, err, shared.ErrForbiddenActor)
		assert.Equal(t, StatusPending, o.Status)
	})
}

func TestOrder_Decline(t *testing.T) {
	o := orderInStatus(t, StatusProcessing)
	editor := editorOf(o)

	require.NoError(t, o.Apply(Decline{Reason: "  out of office "}, editor))
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Nil(t, o.EditorID, "decline unassigns the editor")
	require.NotNil(t, o.DeclineReason)
	assert.Equal(t, "out of office", *o.DeclineReason)

	evt, ok := o.GetDomainEvents()[0].(*OrderDeclinedEvent)
	require.True(t, ok)
	assert.Equal(t, StatusProcessing, evt.FromStatus)
	assert.Equal(t, editor.ID, *evt.PreviousEditor)

	err := o.Apply(UploadDeliverable{Files: []DeliverableFile{{FileName: "late.jpg", Path: "p"}}}, partnerAdmin)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestOrder_EditorCannotActOnOthersOrder(t *testing.T) {
	o := orderInStatus(t, StatusProcessing)
	stranger := shared.NewActor(uuid.New(), shared.ActorRoleEditor)

	assert.ErrorIs(t, o.Apply(MarkComplete{}, stranger), shared.ErrForbiddenActor)
	assert.ErrorIs(t, o.Apply(requestFor(o, ActionUploadDeliverable), stranger), shared.ErrForbiddenActor)
	assert.Equal(t, StatusProcessing, o.Status)

	require.NoError(t, o.Apply(MarkComplete{}, partnerAdmin), "partner admin may act on any order")

	assert.ErrorIs(t, o.Apply(Approve{}, editorOf(o)), shared.ErrForbiddenActor, "editors cannot approve their own work")
	assert.Equal(t, StatusHumanCheck, o.Status)
}

func TestOrder_UploadDeliverable(t *testing.T) {
	o := orderInStatus(t, StatusProcessing)
	files := []DeliverableFile{
		{FileName: "a.jpg", Path: "orders/a.jpg", Size: 10},
		{FileName: "b.jpg", Path: "orders/b.jpg", Size: 20},
	}

	require.NoError(t, o.Apply(UploadDeliverable{Files: files}, editorOf(o)))
	assert.Equal(t, StatusProcessing, o.Status)
	require.Len(t, o.Deliverables, 2)
	assert.Equal(t, 0, o.Deliverables[0].Round)
	assert.Len(t, o.GetDomainEvents(), 2, "one event per file")

	t.Run("rejects empty batches", func(t *testing.T) {
		err := o.Apply(UploadDeliverable{}, editorOf(o))
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestOrder_RequestRevision(t *testing.T) {
	t.Run("limit exceeded leaves state unchanged", func(t *testing.T) {
		o := orderInStatus(t, StatusHumanCheck)
		o.RevisionCount = 2
		err := o.Apply(RequestRevision{Notes: "again", Decision: revision.Decision{Allowed: false, Limit: revision.Rounds(2)}}, partnerAdmin)

		assert.ErrorIs(t, err, shared.ErrRevisionLimitExceeded)
		de, ok := shared.AsDomainError(err)
		require.True(t, ok)
		assert.Equal(t, "2", de.Details["limit"])
		assert.Equal(t, StatusHumanCheck, o.Status)
		assert.Equal(t, 2, o.RevisionCount)
		assert.Nil(t, o.RevisionNotes)
	})

	t.Run("allowed increments the count", func(t *testing.T) {
		o := orderInStatus(t, StatusHumanCheck)
		require.NoError(t, o.Apply(requestFor(o, ActionRequestRevision), partnerAdmin))
		assert.Equal(t, StatusInRevision, o.Status)
		assert.Equal(t, 1, o.RevisionCount)
		assert.Equal(t, "brighten sky", *o.RevisionNotes)
	})
}

func TestOrder_FullLifecycle(t *testing.T) {
	o := createTestOrder(t)
	editor := shared.NewActor(uuid.New(), shared.ActorRoleEditor)
	qc := shared.SystemActor
	policy := revision.DefaultPolicy()

	require.NoError(t, o.Apply(Accept{EditorID: editor.ID}, editor))
	require.NoError(t, o.Apply(UploadDeliverable{Files: []DeliverableFile{{FileName: "fileA.jpg", Path: "a"}}}, editor))
	require.NoError(t, o.Apply(MarkComplete{}, editor))
	assert.Equal(t, StatusHumanCheck, o.Status)

	decision := revision.Resolve(&policy, 2, o.RevisionCount)
	require.NoError(t, o.Apply(RequestRevision{Notes: "brighten sky", Decision: decision}, qc))
	assert.Equal(t, StatusInRevision, o.Status)
	assert.Equal(t, 1, o.RevisionCount)

	require.NoError(t, o.Apply(UploadDeliverable{Files: []DeliverableFile{{FileName: "fileA_v2.jpg", Path: "a2"}}}, editor))
	assert.Equal(t, 1, o.Deliverables[1].Round)
	require.NoError(t, o.Apply(MarkComplete{}, editor))
	require.NoError(t, o.Apply(Approve{}, qc))
	assert.Equal(t, StatusCompleted, o.Status)
	assert.NotNil(t, o.CompletedAt)

	types := make([]string, 0)
	for _, e := range o.GetDomainEvents() {
		types = append(types, e.EventType())
	}
	assert.Equal(t, []string{
		EventTypeOrderAccepted,
		EventTypeDeliverableUploaded,
		EventTypeOrderSubmittedForReview,
		EventTypeRevisionRequested,
		EventTypeDeliverableUploaded,
		EventTypeOrderSubmittedForReview,
		EventTypeOrderApproved,
	}, types)
}

func TestOrder_SetDeliverableVisibility(t *testing.T) {
	o := orderInStatus(t, StatusProcessing)
	require.NoError(t, o.Apply(requestFor(o, ActionUploadDeliverable), editorOf(o)))
	o.ClearDomainEvents()
	id := o.Deliverables[0].ID

	require.NoError(t, o.SetDeliverableVisibility(id, false, partnerAdmin))
	assert.Empty(t, o.VisibleDeliverables())
	require.Len(t, o.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeDeliverableVisibilityChanged, o.GetDomainEvents()[0].EventType())

	require.NoError(t, o.SetDeliverableVisibility(id, false, partnerAdmin))
	assert.Len(t, o.GetDomainEvents(), 1, "no-op toggles emit nothing")

	o.Status = StatusCompleted
	require.NoError(t, o.SetDeliverableVisibility(id, true, partnerAdmin), "visibility is not a transition")

	assert.ErrorIs(t, o.SetDeliverableVisibility(uuid.New(), true, partnerAdmin), shared.ErrNotFound)
}

func TestNewOrder_Validation(t *testing.T) {
	_, err := NewOrder(uuid.Nil, uuid.New(), uuid.New(), nil, "x", nil, partnerAdmin)
	assert.Error(t, err)
	_, err = NewOrder(uuid.New(), uuid.New(), uuid.New(), nil, "  ", nil, partnerAdmin)
	assert.Error(t, err)

	o, err := NewOrder(uuid.New(), uuid.New(), uuid.New(), nil, "Set", nil, partnerAdmin)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	require.Len(t, o.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeOrderCreated, o.GetDomainEvents()[0].EventType())
}
