package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"huddle-chat/internal/domain/message"
	"huddle-chat/internal/domain/outbox"
	"huddle-chat/internal/proxy"
	"huddle-chat/internal/repository"
	huddle_errors "huddle-chat/pkg/errors"
	"huddle-chat/pkg/events"
	"huddle-chat/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const previewRunes = 80

// MessageService is the message lifecycle engine: creation, threads,
// reactions, pinning, soft deletion and read tracking.
type MessageService struct {
	db         *gorm.DB
	msgRepo    repository.MessageRepository
	convRepo   repository.ConversationRepository
	outboxRepo repository.OutboxRepository
	access     *proxy.AccessControl
	log        *logger.Logger
}

func NewMessageService(db *gorm.DB, msgRepo repository.MessageRepository, convRepo repository.ConversationRepository, outboxRepo repository.OutboxRepository, log *logger.Logger) *MessageService {
	if log == nil {
		log = logger.NewNop()
	}
	return &MessageService{
		db:         db,
		msgRepo:    msgRepo,
		convRepo:   convRepo,
		outboxRepo: outboxRepo,
		access:     proxy.NewAccessControl(convRepo),
		log:        log,
	}
}

type msgTxRepos struct {
	msg    repository.MessageRepository
	conv   repository.ConversationRepository
	outbox repository.OutboxRepository
}

func (s *MessageService) inTx(ctx context.Context, fn func(r msgTxRepos) error) error {
	if s.db == nil {
		return fn(msgTxRepos{msg: s.msgRepo, conv: s.convRepo, outbox: s.outboxRepo})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(msgTxRepos{
			msg:    repository.NewMessageRepository(tx),
			conv:   repository.NewConversationRepository(tx),
			outbox: repository.NewOutboxRepository(tx),
		})
	})
}

type SendMessageInput struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Content        string
	MediaURL       string
	ReplyToID      *uuid.UUID
}

// SendMessage inserts a message with a server-assigned sequence number and
// queues the fan-out notification for every other member. The sender's read
// cursor advances to the new message immediately.
func (s *MessageService) SendMessage(ctx context.Context, in SendMessageInput) (message.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" && in.MediaURL == "" {
		return message.Message{}, huddle_errors.ErrInvalidInput
	}

	var msg message.Message
	err := s.inTx(ctx, func(r msgTxRepos) error {
		conv, err := r.conv.GetByID(ctx, in.ConversationID)
		if err != nil {
			return err
		}
		if !conv.IsGroup {
			return huddle_errors.ErrNotFound
		}

		access := proxy.NewAccessControl(r.conv)
		if _, err := access.RequireMember(ctx, in.ConversationID, in.SenderID); err != nil {
			return err
		}

		if in.ReplyToID != nil {
			parent, err := r.msg.GetByID(ctx, *in.ReplyToID)
			if err != nil {
				return err
			}
			if parent.ConversationID != in.ConversationID {
				return huddle_errors.ErrInvalidInput
			}
		}

		seq, err := r.conv.NextSeq(ctx, in.ConversationID)
		if err != nil {
			return err
		}

		msg = message.Message{
			ID:             uuid.New(),
			ConversationID: in.ConversationID,
			SenderID:       in.SenderID,
			Seq:            seq,
			Kind:           message.KindText,
			CreatedAt:      time.Now(),
		}
		if content != "" {
			msg.Content = sql.NullString{String: content, Valid: true}
		}
		if in.MediaURL != "" {
			msg.Kind = message.KindMedia
			msg.MediaURL = sql.NullString{String: in.MediaURL, Valid: true}
		}
		if in.ReplyToID != nil {
			msg.ReplyToID = uuid.NullUUID{UUID: *in.ReplyToID, Valid: true}
		}

		if err := r.msg.Create(ctx, &msg); err != nil {
			return err
		}

		// the sender has read their own message
		if err := r.conv.AdvanceReadCursor(ctx, in.ConversationID, in.SenderID, seq); err != nil {
			return err
		}
		if err := r.msg.CreateReceipt(ctx, &message.ReadReceipt{
			MessageID: msg.ID,
			UserID:    in.SenderID,
			ReadAt:    time.Now(),
		}); err != nil {
			return err
		}

		memberships, err := r.conv.ListMemberships(ctx, in.ConversationID)
		if err != nil {
			return err
		}
		recipients := make([]uuid.UUID, 0, len(memberships))
		for _, m := range memberships {
			if m.UserID != in.SenderID {
				recipients = append(recipients, m.UserID)
			}
		}

		return s.queueMessageEvent(ctx, r.outbox, msg, content, recipients)
	})
	if err != nil {
		return message.Message{}, err
	}
	return msg, nil
}

// MarkAsRead acknowledges one message and closes the read gap below it:
// the cursor advances (never regresses) and receipts are materialized for
// every earlier unread message. Receipt materialization is a best-effort
// projection; its failure does not undo the cursor advance.
func (s *MessageService) MarkAsRead(ctx context.Context, messageID, userID uuid.UUID) error {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	conv, err := s.convRepo.GetByID(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return huddle_errors.ErrNotFound
	}
	if _, err := s.access.RequireMember(ctx, msg.ConversationID, userID); err != nil {
		return err
	}

	if err := s.convRepo.AdvanceReadCursor(ctx, msg.ConversationID, userID, msg.Seq); err != nil {
		return err
	}
	s.materializeReceipts(ctx, msg.ConversationID, userID, msg.Seq)
	return nil
}

// OpenGroup is the bulk read acknowledgment used when a conversation view
// opens, bounded by an explicit last-read message.
func (s *MessageService) OpenGroup(ctx context.Context, conversationID, userID, lastReadMessageID uuid.UUID) error {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return huddle_errors.ErrNotFound
	}
	if _, err := s.access.RequireMember(ctx, conversationID, userID); err != nil {
		return err
	}

	msg, err := s.msgRepo.GetByID(ctx, lastReadMessageID)
	if err != nil {
		return err
	}
	if msg.ConversationID != conversationID {
		return huddle_errors.ErrInvalidInput
	}

	if err := s.convRepo.AdvanceReadCursor(ctx, conversationID, userID, msg.Seq); err != nil {
		return err
	}
	s.materializeReceipts(ctx, conversationID, userID, msg.Seq)
	return nil
}

func (s *MessageService) materializeReceipts(ctx context.Context, conversationID, userID uuid.UUID, uptoSeq int64) {
	if err := s.msgRepo.MaterializeReceipts(ctx, conversationID, userID, uptoSeq); err != nil {
		// the cursor is the source of truth; receipts catch up later
		s.log.Warnf("receipt materialization failed for conversation %s user %s: %v", conversationID, userID, err)
	}
}

// AddReaction records a reaction; repeats of the same (message, user, emoji)
// triple are no-ops. Soft-deleted messages stay reactable for audit
// consistency.
func (s *MessageService) AddReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	if strings.TrimSpace(emoji) == "" {
		return huddle_errors.ErrInvalidInput
	}
	if err := s.requireMessageMember(ctx, messageID, userID); err != nil {
		return err
	}
	return s.msgRepo.AddReaction(ctx, &message.Reaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: time.Now(),
	})
}

// RemoveReaction removes the caller's reaction; absent rows are a no-op.
func (s *MessageService) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	if strings.TrimSpace(emoji) == "" {
		return huddle_errors.ErrInvalidInput
	}
	if err := s.requireMessageMember(ctx, messageID, userID); err != nil {
		return err
	}
	return s.msgRepo.RemoveReaction(ctx, messageID, userID, emoji)
}

// GetMessageReactions lists reactions on a message. Member-gated.
func (s *MessageService) GetMessageReactions(ctx context.Context, messageID, userID uuid.UUID) ([]message.Reaction, error) {
	if err := s.requireMessageMember(ctx, messageID, userID); err != nil {
		return nil, err
	}
	return s.msgRepo.ListReactions(ctx, messageID)
}

// GetThread returns all replies to a parent message in creation order.
// A soft-deleted parent keeps its thread retrievable.
func (s *MessageService) GetThread(ctx context.Context, parentMessageID, userID uuid.UUID) ([]message.Message, error) {
	if err := s.requireMessageMember(ctx, parentMessageID, userID); err != nil {
		return nil, err
	}
	return s.msgRepo.ListThread(ctx, parentMessageID)
}

// DeleteMessage soft-deletes: only the author, flag only, content retained.
// SoftDeleted is terminal, so repeated calls change nothing.
func (s *MessageService) DeleteMessage(ctx context.Context, messageID, userID uuid.UUID) error {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return huddle_errors.ErrPermissionDenied
	}
	return s.msgRepo.SoftDelete(ctx, messageID)
}

// EditMessage replaces the content. Author only; soft-deleted messages are
// immutable.
func (s *MessageService) EditMessage(ctx context.Context, messageID, userID uuid.UUID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return huddle_errors.ErrInvalidInput
	}
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return huddle_errors.ErrPermissionDenied
	}
	if msg.Deleted() {
		return huddle_errors.ErrConflict
	}
	return s.msgRepo.MarkEdited(ctx, messageID, content)
}

// PinMessage adds the message to the conversation's pin set. Any member may
// pin; the message must belong to the named conversation.
func (s *MessageService) PinMessage(ctx context.Context, conversationID, messageID, userID uuid.UUID) error {
	if _, err := s.access.RequireMember(ctx, conversationID, userID); err != nil {
		return err
	}
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.ConversationID != conversationID {
		return huddle_errors.ErrInvalidInput
	}
	return s.msgRepo.Pin(ctx, &message.PinnedMessage{
		ConversationID: conversationID,
		MessageID:      messageID,
		PinnedBy:       userID,
		PinnedAt:       time.Now(),
	})
}

// UnpinMessage removes the message from the pin set; absent pins are a no-op.
func (s *MessageService) UnpinMessage(ctx context.Context, conversationID, messageID, userID uuid.UUID) error {
	if _, err := s.access.RequireMember(ctx, conversationID, userID); err != nil {
		return err
	}
	return s.msgRepo.Unpin(ctx, conversationID, messageID)
}

// GetPinnedMessages returns the pin set, newest pin first.
func (s *MessageService) GetPinnedMessages(ctx context.Context, conversationID, userID uuid.UUID) ([]message.PinnedMessage, error) {
	if _, err := s.access.RequireMember(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.msgRepo.ListPinned(ctx, conversationID)
}

// GetConversationMessages pages history newest first, keyed by sequence.
func (s *MessageService) GetConversationMessages(ctx context.Context, conversationID, userID uuid.UUID, beforeSeq int64, limit int) ([]message.Message, error) {
	if _, err := s.access.RequireMember(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.msgRepo.ListByConversation(ctx, conversationID, beforeSeq, limit)
}

// GetUnreadCount counts messages above the member's read cursor.
func (s *MessageService) GetUnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	m, err := s.access.RequireMember(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	return s.msgRepo.CountAfterSeq(ctx, conversationID, m.LastReadSeq)
}

func (s *MessageService) requireMessageMember(ctx context.Context, messageID, userID uuid.UUID) error {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	_, err = s.access.RequireMember(ctx, msg.ConversationID, userID)
	return err
}

func (s *MessageService) queueMessageEvent(ctx context.Context, repo repository.OutboxRepository, msg message.Message, content string, recipients []uuid.UUID) error {
	payload, err := json.Marshal(events.GroupMessageEvent{
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		MessageID:      msg.ID,
		Preview:        preview(content),
		RecipientIDs:   recipients,
	})
	if err != nil {
		return err
	}
	return repo.Create(ctx, &outbox.OutboxEvent{
		ID:            uuid.New(),
		EventType:     events.EventGroupMessage,
		AggregateType: "message",
		AggregateID:   msg.ID.String(),
		Payload:       payload,
		Status:        outbox.StatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	})
}

func preview(content string) string {
	if content == "" {
		return "[media]"
	}
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes]) + "…"
}
