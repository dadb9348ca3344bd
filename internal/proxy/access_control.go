package proxy

import (
	"context"
	"errors"

	"huddle-chat/internal/domain/conversation"
	"huddle-chat/internal/repository"
	huddle_errors "huddle-chat/pkg/errors"

	"github.com/google/uuid"
)

// AccessControl gates operations on membership and role. It reads the
// Membership Store only; relationship-graph gates live in the invite
// pipeline, not here.
type AccessControl struct {
	conversationRepo repository.ConversationRepository
}

func NewAccessControl(conversationRepo repository.ConversationRepository) *AccessControl {
	return &AccessControl{conversationRepo: conversationRepo}
}

// RequireMember returns the caller's membership, or ErrNotAMember.
func (a *AccessControl) RequireMember(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Membership, error) {
	m, err := a.conversationRepo.GetMembership(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, huddle_errors.ErrNotFound) {
			return conversation.Membership{}, huddle_errors.ErrNotAMember
		}
		return conversation.Membership{}, err
	}
	return m, nil
}

// RequireAdminOrCreator permits conversation management: the caller must
// hold the admin role or be the recorded creator. Creator identity is
// metadata, not a role, so it is checked against the conversation row.
func (a *AccessControl) RequireAdminOrCreator(ctx context.Context, conv conversation.Conversation, userID uuid.UUID) (conversation.Membership, error) {
	m, err := a.RequireMember(ctx, conv.ID, userID)
	if err != nil {
		return conversation.Membership{}, err
	}
	if m.Role == conversation.RoleAdmin {
		return m, nil
	}
	if conv.CreatedBy.Valid && conv.CreatedBy.UUID == userID {
		return m, nil
	}
	return conversation.Membership{}, huddle_errors.ErrPermissionDenied
}

// CanDeleteConversation is the ownership-resolution rule: the recorded
// creator may delete; when created_by was never recorded, the
// earliest-joined admin stands in.
func (a *AccessControl) CanDeleteConversation(ctx context.Context, conv conversation.Conversation, userID uuid.UUID) error {
	if conv.CreatedBy.Valid {
		if conv.CreatedBy.UUID == userID {
			return nil
		}
		return huddle_errors.ErrPermissionDenied
	}
	admin := conversation.RoleAdmin
	m, err := a.conversationRepo.EarliestJoined(ctx, conv.ID, &admin)
	if err != nil {
		if errors.Is(err, huddle_errors.ErrNotFound) {
			return huddle_errors.ErrPermissionDenied
		}
		return err
	}
	if m.UserID != userID {
		return huddle_errors.ErrPermissionDenied
	}
	return nil
}
