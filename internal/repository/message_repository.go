package repository

import (
	"context"
	"errors"
	"time"

	"huddle-chat/internal/domain/message"
	huddle_errors "huddle-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return huddle_errors.ErrConflict
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, huddle_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) MarkEdited(ctx context.Context, id uuid.UUID, content string) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"content":   content,
			"edited_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return huddle_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	// already soft-deleted rows are left untouched; the state is terminal
	return nil
}

func (r *PostgresMessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, beforeSeq int64, limit int) ([]message.Message, error) {
	var messages []message.Message
	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID)
	if beforeSeq > 0 {
		q = q.Where("seq < ?", beforeSeq)
	}
	err := q.Order("seq DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) ListThread(ctx context.Context, parentID uuid.UUID) ([]message.Message, error) {
	var messages []message.Message
	err := r.db.WithContext(ctx).
		Where("reply_to_id = ?", parentID).
		Order("seq ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) CountAfterSeq(ctx context.Context, conversationID uuid.UUID, seq int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND seq > ?", conversationID, seq).
		Count(&count).Error
	return count, err
}

func (r *PostgresMessageRepository) AddReaction(ctx context.Context, reaction *message.Reaction) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(reaction).Error
}

func (r *PostgresMessageRepository) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	// idempotent: deleting an absent reaction is a no-op
	return r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&message.Reaction{}).Error
}

func (r *PostgresMessageRepository) ListReactions(ctx context.Context, messageID uuid.UUID) ([]message.Reaction, error) {
	var reactions []message.Reaction
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&reactions).Error
	if err != nil {
		return nil, err
	}
	return reactions, nil
}

func (r *PostgresMessageRepository) CreateReceipt(ctx context.Context, receipt *message.ReadReceipt) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(receipt).Error
}

func (r *PostgresMessageRepository) MaterializeReceipts(ctx context.Context, conversationID, userID uuid.UUID, uptoSeq int64) error {
	return r.db.WithContext(ctx).Exec(`
        INSERT INTO read_receipts (message_id, user_id, read_at)
        SELECT id, ?, now()
        FROM messages
        WHERE conversation_id = ? AND seq <= ?
        ON CONFLICT DO NOTHING
    `, userID, conversationID, uptoSeq).Error
}

func (r *PostgresMessageRepository) ListReceipts(ctx context.Context, messageID uuid.UUID) ([]message.ReadReceipt, error) {
	var receipts []message.ReadReceipt
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("read_at ASC").
		Find(&receipts).Error
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

func (r *PostgresMessageRepository) Pin(ctx context.Context, p *message.PinnedMessage) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(p).Error
}

func (r *PostgresMessageRepository) Unpin(ctx context.Context, conversationID, messageID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ? AND message_id = ?", conversationID, messageID).
		Delete(&message.PinnedMessage{}).Error
}

func (r *PostgresMessageRepository) ListPinned(ctx context.Context, conversationID uuid.UUID) ([]message.PinnedMessage, error) {
	var pins []message.PinnedMessage
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("pinned_at DESC").
		Find(&pins).Error
	if err != nil {
		return nil, err
	}
	return pins, nil
}
