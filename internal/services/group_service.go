package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"huddle-chat/internal/domain/conversation"
	"huddle-chat/internal/domain/outbox"
	"huddle-chat/internal/proxy"
	"huddle-chat/internal/repository"
	"huddle-chat/internal/social"
	huddle_errors "huddle-chat/pkg/errors"
	"huddle-chat/pkg/events"
	"huddle-chat/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GroupService is the group authorization engine: it creates groups and
// decides every membership mutation against role, policy, capacity and
// relationship-graph gates.
type GroupService struct {
	db         *gorm.DB
	convRepo   repository.ConversationRepository
	outboxRepo repository.OutboxRepository
	graph      social.Graph
	directory  social.Directory
	log        *logger.Logger
}

func NewGroupService(db *gorm.DB, convRepo repository.ConversationRepository, outboxRepo repository.OutboxRepository, graph social.Graph, directory social.Directory, log *logger.Logger) *GroupService {
	if log == nil {
		log = logger.NewNop()
	}
	return &GroupService{
		db:         db,
		convRepo:   convRepo,
		outboxRepo: outboxRepo,
		graph:      graph,
		directory:  directory,
		log:        log,
	}
}

type groupTxRepos struct {
	conv   repository.ConversationRepository
	outbox repository.OutboxRepository
}

// inTx runs fn inside one storage transaction so multi-row writes commit or
// fail as a unit. With no DB handle (tests), fn runs against the configured
// repositories directly.
func (s *GroupService) inTx(ctx context.Context, fn func(r groupTxRepos) error) error {
	if s.db == nil {
		return fn(groupTxRepos{conv: s.convRepo, outbox: s.outboxRepo})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(groupTxRepos{
			conv:   repository.NewConversationRepository(tx),
			outbox: repository.NewOutboxRepository(tx),
		})
	})
}

type CreateGroupInput struct {
	CreatorID    uuid.UUID
	Name         string
	MemberIDs    []uuid.UUID
	InvitePolicy conversation.InvitePolicy
	MaxMembers   int // 0 means unbounded
}

// CreateGroup validates input and identities, then creates the conversation
// and all initial memberships in one transaction. The creator is recorded
// immutably and joins as admin.
func (s *GroupService) CreateGroup(ctx context.Context, in CreateGroupInput) (uuid.UUID, error) {
	if strings.TrimSpace(in.Name) == "" {
		return uuid.Nil, huddle_errors.ErrInvalidInput
	}
	if !in.InvitePolicy.Valid() {
		return uuid.Nil, huddle_errors.ErrInvalidInput
	}
	if in.MaxMembers < 0 || (in.MaxMembers > 0 && in.MaxMembers < 2) {
		return uuid.Nil, huddle_errors.ErrInvalidInput
	}

	members := dedupeIDs(in.MemberIDs, in.CreatorID)
	if in.MaxMembers > 0 && len(members)+1 > in.MaxMembers {
		return uuid.Nil, huddle_errors.ErrCapacityExceeded
	}

	if err := s.requireUser(ctx, in.CreatorID); err != nil {
		return uuid.Nil, err
	}
	for _, id := range members {
		if err := s.requireUser(ctx, id); err != nil {
			return uuid.Nil, err
		}
	}

	conv := conversation.Conversation{
		ID:           uuid.New(),
		IsGroup:      true,
		Name:         strings.TrimSpace(in.Name),
		InvitePolicy: in.InvitePolicy,
		CreatedBy:    uuid.NullUUID{UUID: in.CreatorID, Valid: true},
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if in.MaxMembers > 0 {
		conv.MaxMembers = sql.NullInt32{Int32: int32(in.MaxMembers), Valid: true}
	}

	err := s.inTx(ctx, func(r groupTxRepos) error {
		if err := r.conv.Create(ctx, &conv); err != nil {
			return err
		}
		creator := conversation.Membership{
			ConversationID: conv.ID,
			UserID:         in.CreatorID,
			Role:           conversation.RoleAdmin,
			JoinedAt:       time.Now(),
		}
		if err := r.conv.AddMembership(ctx, &creator); err != nil {
			return err
		}
		for _, id := range members {
			m := conversation.Membership{
				ConversationID: conv.ID,
				UserID:         id,
				Role:           conversation.RoleMember,
				JoinedAt:       time.Now(),
			}
			if err := r.conv.AddMembership(ctx, &m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return conv.ID, nil
}

// InviteMember runs the ordered authorization pipeline and, on success,
// inserts the membership and queues the invite notification. Checks run
// cheapest first; the relationship-graph reads come last.
func (s *GroupService) InviteMember(ctx context.Context, conversationID, inviterID, inviteeID uuid.UUID) error {
	if inviterID == inviteeID {
		return huddle_errors.ErrInvalidInput
	}
	return s.inTx(ctx, func(r groupTxRepos) error {
		conv, err := r.conv.GetByIDForUpdate(ctx, conversationID)
		if err != nil {
			return err
		}
		if !conv.IsGroup {
			return huddle_errors.ErrNotFound
		}

		access := proxy.NewAccessControl(r.conv)
		inviter, err := access.RequireMember(ctx, conversationID, inviterID)
		if err != nil {
			return err
		}

		if conv.InvitePolicy == conversation.InvitePolicyAdminOnly && inviter.Role != conversation.RoleAdmin {
			return huddle_errors.ErrPermissionDenied
		}

		if err := s.requireUser(ctx, inviteeID); err != nil {
			return err
		}

		if _, err := r.conv.GetMembership(ctx, conversationID, inviteeID); err == nil {
			return huddle_errors.ErrAlreadyMember
		} else if !errors.Is(err, huddle_errors.ErrNotFound) {
			return err
		}

		if conv.MaxMembers.Valid {
			count, err := r.conv.CountMemberships(ctx, conversationID)
			if err != nil {
				return err
			}
			if count >= int64(conv.MaxMembers.Int32) {
				return huddle_errors.ErrCapacityExceeded
			}
		}

		if err := s.checkRelationship(ctx, inviterID, inviteeID); err != nil {
			return err
		}

		m := conversation.Membership{
			ConversationID: conversationID,
			UserID:         inviteeID,
			Role:           conversation.RoleMember,
			JoinedAt:       time.Now(),
		}
		if err := r.conv.AddMembership(ctx, &m); err != nil {
			return err
		}

		return s.queueInviteEvent(ctx, r.outbox, conversationID, inviterID, inviteeID)
	})
}

// checkRelationship evaluates the social-graph gates in order: mutual
// follow, then blocks, then message restrictions. Each gate is independent
// and carries its own sub-reason.
func (s *GroupService) checkRelationship(ctx context.Context, inviterID, inviteeID uuid.UUID) error {
	mutual, err := s.graph.IsMutualFollow(ctx, inviterID, inviteeID)
	if err != nil {
		return huddle_errors.Infrastructure(err)
	}
	if !mutual {
		return huddle_errors.NewRelationshipError(huddle_errors.ReasonNotMutualFollow)
	}

	blocked, err := s.graph.IsBlocking(ctx, inviterID, inviteeID)
	if err != nil {
		return huddle_errors.Infrastructure(err)
	}
	if blocked {
		return huddle_errors.NewRelationshipError(huddle_errors.ReasonBlocked)
	}

	restricted, err := s.graph.IsRestricting(ctx, inviterID, inviteeID)
	if err != nil {
		return huddle_errors.Infrastructure(err)
	}
	if restricted {
		return huddle_errors.NewRelationshipError(huddle_errors.ReasonRestricted)
	}
	return nil
}

// RemoveMember removes target from the group. Removing someone else needs
// admin-or-creator; self-removal is LeaveGroup. Creator identity survives
// the creator's own membership being removed.
func (s *GroupService) RemoveMember(ctx context.Context, conversationID, requesterID, targetID uuid.UUID) error {
	return s.inTx(ctx, func(r groupTxRepos) error {
		conv, err := r.conv.GetByIDForUpdate(ctx, conversationID)
		if err != nil {
			return err
		}
		if !conv.IsGroup {
			return huddle_errors.ErrNotFound
		}

		access := proxy.NewAccessControl(r.conv)
		if requesterID == targetID {
			if _, err := access.RequireMember(ctx, conversationID, requesterID); err != nil {
				return err
			}
		} else {
			if _, err := access.RequireAdminOrCreator(ctx, conv, requesterID); err != nil {
				return err
			}
		}

		target, err := r.conv.GetMembership(ctx, conversationID, targetID)
		if err != nil {
			return err
		}

		count, err := r.conv.CountMemberships(ctx, conversationID)
		if err != nil {
			return err
		}
		if count <= 1 {
			// the last member cannot leave; the group must be deleted
			return huddle_errors.ErrConflict
		}

		if err := r.conv.RemoveMembership(ctx, conversationID, targetID); err != nil {
			return err
		}

		if target.Role == conversation.RoleAdmin {
			return s.ensureAdminRemains(ctx, r.conv, conversationID)
		}
		return nil
	})
}

// LeaveGroup is self-removal: no role requirement beyond membership.
func (s *GroupService) LeaveGroup(ctx context.Context, conversationID, userID uuid.UUID) error {
	return s.RemoveMember(ctx, conversationID, userID, userID)
}

// ensureAdminRemains re-establishes the at-least-one-admin invariant after
// an admin departs, promoting the earliest-joined remaining member.
func (s *GroupService) ensureAdminRemains(ctx context.Context, repo repository.ConversationRepository, conversationID uuid.UUID) error {
	admin := conversation.RoleAdmin
	if _, err := repo.EarliestJoined(ctx, conversationID, &admin); err == nil {
		return nil
	} else if !errors.Is(err, huddle_errors.ErrNotFound) {
		return err
	}
	oldest, err := repo.EarliestJoined(ctx, conversationID, nil)
	if err != nil {
		return err
	}
	return repo.UpdateMembershipRole(ctx, conversationID, oldest.UserID, conversation.RoleAdmin)
}

// ChangeMemberRole updates target's role. With transferOwnership set and an
// admin promotion, the requester is demoted to member in the same
// transaction, so no state with two transfer-intermediate admins is ever
// visible.
func (s *GroupService) ChangeMemberRole(ctx context.Context, conversationID, requesterID, targetID uuid.UUID, role conversation.Role, transferOwnership bool) error {
	if !role.Valid() {
		return huddle_errors.ErrInvalidInput
	}
	if requesterID == targetID {
		return huddle_errors.ErrInvalidInput
	}
	return s.inTx(ctx, func(r groupTxRepos) error {
		conv, err := r.conv.GetByIDForUpdate(ctx, conversationID)
		if err != nil {
			return err
		}
		if !conv.IsGroup {
			return huddle_errors.ErrNotFound
		}

		access := proxy.NewAccessControl(r.conv)
		requester, err := access.RequireAdminOrCreator(ctx, conv, requesterID)
		if err != nil {
			return err
		}

		target, err := r.conv.GetMembership(ctx, conversationID, targetID)
		if err != nil {
			return err
		}

		if role == conversation.RoleMember && target.Role == conversation.RoleAdmin {
			if err := s.requireAnotherAdmin(ctx, r.conv, conversationID, targetID); err != nil {
				return err
			}
		}

		if err := r.conv.UpdateMembershipRole(ctx, conversationID, targetID, role); err != nil {
			return err
		}

		if transferOwnership && role == conversation.RoleAdmin && requester.Role == conversation.RoleAdmin {
			if err := r.conv.UpdateMembershipRole(ctx, conversationID, requesterID, conversation.RoleMember); err != nil {
				return err
			}
		}
		return nil
	})
}

// requireAnotherAdmin rejects a demotion that would leave the group with no
// admin at all.
func (s *GroupService) requireAnotherAdmin(ctx context.Context, repo repository.ConversationRepository, conversationID, excludeID uuid.UUID) error {
	memberships, err := repo.ListMemberships(ctx, conversationID)
	if err != nil {
		return err
	}
	for _, m := range memberships {
		if m.UserID != excludeID && m.Role == conversation.RoleAdmin {
			return nil
		}
	}
	return huddle_errors.ErrConflict
}

// DeleteGroup hard-deletes the conversation and everything under it.
// Only the recorded creator may delete; for rows that predate creator
// recording, the earliest-joined admin stands in.
func (s *GroupService) DeleteGroup(ctx context.Context, conversationID, requesterID uuid.UUID) error {
	return s.inTx(ctx, func(r groupTxRepos) error {
		conv, err := r.conv.GetByIDForUpdate(ctx, conversationID)
		if err != nil {
			return err
		}
		if !conv.IsGroup {
			return huddle_errors.ErrNotFound
		}

		access := proxy.NewAccessControl(r.conv)
		if err := access.CanDeleteConversation(ctx, conv, requesterID); err != nil {
			return err
		}
		return r.conv.DeleteCascade(ctx, conversationID)
	})
}

// UpdateGroupName renames the group. Admin-or-creator only; empty rejected.
func (s *GroupService) UpdateGroupName(ctx context.Context, conversationID, requesterID uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return huddle_errors.ErrInvalidInput
	}
	return s.updateConversation(ctx, conversationID, requesterID, func(conv *conversation.Conversation) {
		conv.Name = name
	})
}

// UpdateGroupAvatar sets or clears the avatar reference. Admin-or-creator only.
func (s *GroupService) UpdateGroupAvatar(ctx context.Context, conversationID, requesterID uuid.UUID, avatarURL string) error {
	return s.updateConversation(ctx, conversationID, requesterID, func(conv *conversation.Conversation) {
		if avatarURL == "" {
			conv.AvatarURL = sql.NullString{}
		} else {
			conv.AvatarURL = sql.NullString{String: avatarURL, Valid: true}
		}
	})
}

func (s *GroupService) updateConversation(ctx context.Context, conversationID, requesterID uuid.UUID, mutate func(*conversation.Conversation)) error {
	return s.inTx(ctx, func(r groupTxRepos) error {
		conv, err := r.conv.GetByIDForUpdate(ctx, conversationID)
		if err != nil {
			return err
		}
		if !conv.IsGroup {
			return huddle_errors.ErrNotFound
		}

		access := proxy.NewAccessControl(r.conv)
		if _, err := access.RequireAdminOrCreator(ctx, conv, requesterID); err != nil {
			return err
		}

		mutate(&conv)
		return r.conv.Update(ctx, conv)
	})
}

// GetGroupMembers lists memberships, oldest join first. Member-gated.
func (s *GroupService) GetGroupMembers(ctx context.Context, conversationID, userID uuid.UUID) ([]conversation.Membership, error) {
	access := proxy.NewAccessControl(s.convRepo)
	if _, err := access.RequireMember(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.convRepo.ListMemberships(ctx, conversationID)
}

// GetUserConversations pages through the caller's conversations.
func (s *GroupService) GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	return s.convRepo.GetUserConversations(ctx, userID, page, limit)
}

func (s *GroupService) requireUser(ctx context.Context, id uuid.UUID) error {
	ok, err := s.directory.UserExists(ctx, id)
	if err != nil {
		return huddle_errors.Infrastructure(err)
	}
	if !ok {
		return huddle_errors.ErrNotFound
	}
	return nil
}

func (s *GroupService) queueInviteEvent(ctx context.Context, repo repository.OutboxRepository, conversationID, inviterID, inviteeID uuid.UUID) error {
	payload, err := json.Marshal(events.GroupInviteEvent{
		ConversationID: conversationID,
		InviterID:      inviterID,
		InviteeID:      inviteeID,
	})
	if err != nil {
		return err
	}
	return repo.Create(ctx, &outbox.OutboxEvent{
		ID:            uuid.New(),
		EventType:     events.EventGroupInvite,
		AggregateType: "conversation",
		AggregateID:   conversationID.String(),
		Payload:       payload,
		Status:        outbox.StatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	})
}

func dedupeIDs(ids []uuid.UUID, exclude uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == exclude || id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
