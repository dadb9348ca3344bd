package httpdto

import (
	"time"

	"huddle-chat/internal/domain/conversation"
)

type CreateGroupRequest struct {
	Name         string   `json:"name" binding:"required"`
	MemberIDs    []string `json:"member_ids"`
	InvitePolicy string   `json:"invite_policy"`
	MaxMembers   int      `json:"max_members"`
}

type InviteMemberRequest struct {
	InviteeID string `json:"invitee_id" binding:"required"`
}

type ChangeRoleRequest struct {
	Role              string `json:"role" binding:"required"`
	TransferOwnership bool   `json:"transfer_ownership"`
}

type UpdateGroupNameRequest struct {
	Name string `json:"name" binding:"required"`
}

type UpdateGroupAvatarRequest struct {
	AvatarURL string `json:"avatar_url"`
}

type ConversationResponse struct {
	ID           string    `json:"id"`
	IsGroup      bool      `json:"is_group"`
	Name         string    `json:"name"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	InvitePolicy string    `json:"invite_policy"`
	MaxMembers   int       `json:"max_members,omitempty"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type MembershipResponse struct {
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
	LastReadSeq int64     `json:"last_read_seq"`
}

type ListConversationsResponse struct {
	Items []ConversationResponse `json:"items"`
	Total int64                  `json:"total"`
}

func FromConversation(c conversation.Conversation) ConversationResponse {
	resp := ConversationResponse{
		ID:           c.ID.String(),
		IsGroup:      c.IsGroup,
		Name:         c.Name,
		InvitePolicy: string(c.InvitePolicy),
		CreatedAt:    c.CreatedAt,
	}
	if c.AvatarURL.Valid {
		resp.AvatarURL = c.AvatarURL.String
	}
	if c.MaxMembers.Valid {
		resp.MaxMembers = int(c.MaxMembers.Int32)
	}
	if c.CreatedBy.Valid {
		resp.CreatedBy = c.CreatedBy.UUID.String()
	}
	return resp
}

func FromMembership(m conversation.Membership) MembershipResponse {
	return MembershipResponse{
		UserID:      m.UserID.String(),
		Role:        string(m.Role),
		JoinedAt:    m.JoinedAt,
		LastReadSeq: m.LastReadSeq,
	}
}
