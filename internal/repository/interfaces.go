package repository

import (
	"context"

	"huddle-chat/internal/domain/conversation"
	"huddle-chat/internal/domain/message"
	"huddle-chat/internal/domain/outbox"

	"github.com/google/uuid"
)

// ConversationRepository is the Membership Store access layer: conversations
// and their membership rows, plus the per-conversation sequence and the
// per-member read cursor.
type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	// GetByIDForUpdate locks the conversation row for the duration of the
	// surrounding transaction. Capacity-sensitive writes (invite, role
	// transfer, removal) go through this so concurrent mutations on the
	// same conversation serialize.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	Update(ctx context.Context, c conversation.Conversation) error
	// DeleteCascade removes the conversation and everything hanging off it:
	// memberships, messages, reactions, receipts, pins, sequence.
	DeleteCascade(ctx context.Context, id uuid.UUID) error
	GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error)

	AddMembership(ctx context.Context, m *conversation.Membership) error
	RemoveMembership(ctx context.Context, conversationID, userID uuid.UUID) error
	GetMembership(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Membership, error)
	ListMemberships(ctx context.Context, conversationID uuid.UUID) ([]conversation.Membership, error)
	CountMemberships(ctx context.Context, conversationID uuid.UUID) (int64, error)
	UpdateMembershipRole(ctx context.Context, conversationID, userID uuid.UUID, role conversation.Role) error
	// EarliestJoined returns the earliest-joined membership, optionally
	// filtered by role. Used for the ownership fallback and for last-admin
	// re-promotion.
	EarliestJoined(ctx context.Context, conversationID uuid.UUID, role *conversation.Role) (conversation.Membership, error)

	// AdvanceReadCursor raises the member's cursor to seq if seq is higher;
	// an older concurrent advance never regresses it.
	AdvanceReadCursor(ctx context.Context, conversationID, userID uuid.UUID, seq int64) error
	// NextSeq atomically allocates the next message sequence number.
	NextSeq(ctx context.Context, conversationID uuid.UUID) (int64, error)
}

// MessageRepository owns messages and their satellite rows.
type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	MarkEdited(ctx context.Context, id uuid.UUID, content string) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID, beforeSeq int64, limit int) ([]message.Message, error)
	ListThread(ctx context.Context, parentID uuid.UUID) ([]message.Message, error)
	CountAfterSeq(ctx context.Context, conversationID uuid.UUID, seq int64) (int64, error)

	AddReaction(ctx context.Context, r *message.Reaction) error
	RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error
	ListReactions(ctx context.Context, messageID uuid.UUID) ([]message.Reaction, error)

	CreateReceipt(ctx context.Context, r *message.ReadReceipt) error
	// MaterializeReceipts inserts receipts for every message in the
	// conversation with seq <= uptoSeq the user has not read yet.
	// Idempotent; already-read pairs are untouched.
	MaterializeReceipts(ctx context.Context, conversationID, userID uuid.UUID, uptoSeq int64) error
	ListReceipts(ctx context.Context, messageID uuid.UUID) ([]message.ReadReceipt, error)

	Pin(ctx context.Context, p *message.PinnedMessage) error
	Unpin(ctx context.Context, conversationID, messageID uuid.UUID) error
	ListPinned(ctx context.Context, conversationID uuid.UUID) ([]message.PinnedMessage, error)
}

// OutboxRepository persists notification events pending publication.
type OutboxRepository interface {
	Create(ctx context.Context, e *outbox.OutboxEvent) error
	GetPending(ctx context.Context, limit int) ([]outbox.OutboxEvent, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	IncrementRetry(ctx context.Context, id uuid.UUID) error
}
