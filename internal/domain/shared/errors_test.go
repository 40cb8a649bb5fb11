package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("matches sentinel by code", func(t *testing.T) {
		err := NewDomainErrorf(CodeInvalidTransition, "cannot approve a pending order")
		assert.True(t, errors.Is(err, ErrInvalidTransition))
		assert.False(t, errors.Is(err, ErrConflictingTransition))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		err := fmt.Errorf("save order: %w", ErrConflictingTransition.WithDetail("order_id", "abc"))
		assert.ErrorIs(t, err, ErrConflictingTransition)

		de, ok := AsDomainError(err)
		require.True(t, ok)
		assert.Equal(t, "abc", de.Details["order_id"])
	})

	t.Run("plain errors never match", func(t *testing.T) {
		assert.False(t, errors.Is(errors.New("boom"), ErrNotFound))
	})
}

func TestDomainError_WithDetail(t *testing.T) {
	base := ErrRevisionLimitExceeded.WithDetail("limit", 2)
	extended := base.WithDetail("revision_count", 2)

	assert.Len(t, base.Details, 1)
	assert.Len(t, extended.Details, 2)
	assert.Nil(t, ErrRevisionLimitExceeded.Details, "sentinel must not be mutated")
}
