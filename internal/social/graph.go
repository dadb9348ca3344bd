package social

import (
	"context"

	"github.com/google/uuid"
)

// Graph answers relationship predicates from the follow/block/restriction
// stores. It is an external collaborator: pure reads, no side effects from
// this subsystem. Blocking and restriction are checked in either direction.
type Graph interface {
	IsMutualFollow(ctx context.Context, a, b uuid.UUID) (bool, error)
	IsBlocking(ctx context.Context, a, b uuid.UUID) (bool, error)
	IsRestricting(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// Directory answers identity lookups for invitee/member validation.
type Directory interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
}
