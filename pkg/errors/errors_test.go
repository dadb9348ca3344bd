package huddle_errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationshipErrorMatchesSentinel(t *testing.T) {
	err := NewRelationshipError(ReasonBlocked)
	assert.ErrorIs(t, err, ErrRelationship)
	assert.NotErrorIs(t, err, ErrPermissionDenied)

	var relErr *RelationshipError
	require.ErrorAs(t, err, &relErr)
	assert.Equal(t, ReasonBlocked, relErr.Reason)
	assert.Contains(t, err.Error(), "BLOCKED")
}

func TestInfrastructureWrap(t *testing.T) {
	assert.NoError(t, Infrastructure(nil))

	cause := errors.New("connection refused")
	err := Infrastructure(cause)
	assert.ErrorIs(t, err, ErrInfrastructure)
	assert.Contains(t, err.Error(), "connection refused")
}
