package huddle_errors

import (
	"errors"
	"fmt"
)

// Expected operation outcomes. Callers branch on these with errors.Is;
// anything not in this list is an infrastructure fault.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrNotAMember       = errors.New("not a member")
	ErrPermissionDenied = errors.New("permission denied")
	ErrAlreadyMember    = errors.New("already a member")
	ErrCapacityExceeded = errors.New("member capacity exceeded")
	ErrConflict         = errors.New("conflict")
	ErrRelationship     = errors.New("relationship check failed")
	ErrInfrastructure   = errors.New("infrastructure failure")
)

// RelationshipReason identifies which social-graph gate rejected an invite.
type RelationshipReason string

const (
	ReasonNotMutualFollow RelationshipReason = "NOT_MUTUAL_FOLLOW"
	ReasonBlocked         RelationshipReason = "BLOCKED"
	ReasonRestricted      RelationshipReason = "RESTRICTED"
)

// RelationshipError carries the sub-reason for a failed relationship gate.
// errors.Is(err, ErrRelationship) holds for every RelationshipError.
type RelationshipError struct {
	Reason RelationshipReason
}

func (e *RelationshipError) Error() string {
	return fmt.Sprintf("relationship check failed: %s", e.Reason)
}

func (e *RelationshipError) Is(target error) bool {
	return target == ErrRelationship
}

func NewRelationshipError(reason RelationshipReason) error {
	return &RelationshipError{Reason: reason}
}

// Infrastructure wraps a storage or broker fault so callers can treat it as
// retryable without seeing driver-level detail.
func Infrastructure(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInfrastructure, err)
}
