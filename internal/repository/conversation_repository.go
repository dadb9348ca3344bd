package repository

import (
	"context"
	"errors"
	"time"

	"huddle-chat/internal/domain/conversation"
	"huddle-chat/internal/domain/message"
	huddle_errors "huddle-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	res := r.db.WithContext(ctx).Create(c)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return huddle_errors.ErrConflict
		}
		return res.Error
	}
	return nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, huddle_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, huddle_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) Update(ctx context.Context, c conversation.Conversation) error {
	c.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Save(&c)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return huddle_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msgIDs := tx.Model(&message.Message{}).
			Select("id").
			Where("conversation_id = ?", id)

		if err := tx.Where("message_id IN (?)", msgIDs).Delete(&message.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id IN (?)", msgIDs).Delete(&message.ReadReceipt{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&message.PinnedMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&message.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&conversation.Membership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&conversation.ConversationSequence{}).Error; err != nil {
			return err
		}

		res := tx.Delete(&conversation.Conversation{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return huddle_errors.ErrNotFound
		}
		return nil
	})
}

func (r *PostgresConversationRepository) GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	var conversations []conversation.Conversation
	var total int64

	subQuery := r.db.Model(&conversation.Membership{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	q := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id IN (?)", subQuery)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if offset < 0 {
		offset = 0
	}
	if err := q.
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&conversations).Error; err != nil {
		return nil, 0, err
	}

	return conversations, total, nil
}

func (r *PostgresConversationRepository) AddMembership(ctx context.Context, m *conversation.Membership) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return huddle_errors.ErrAlreadyMember
		}
		return res.Error
	}
	return nil
}

func (r *PostgresConversationRepository) RemoveMembership(ctx context.Context, conversationID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&conversation.Membership{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return huddle_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) GetMembership(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Membership, error) {
	var m conversation.Membership
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Membership{}, huddle_errors.ErrNotFound
		}
		return conversation.Membership{}, err
	}
	return m, nil
}

func (r *PostgresConversationRepository) ListMemberships(ctx context.Context, conversationID uuid.UUID) ([]conversation.Membership, error) {
	var memberships []conversation.Membership
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("joined_at ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *PostgresConversationRepository) CountMemberships(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Membership{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}

func (r *PostgresConversationRepository) UpdateMembershipRole(ctx context.Context, conversationID, userID uuid.UUID, role conversation.Role) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Membership{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return huddle_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) EarliestJoined(ctx context.Context, conversationID uuid.UUID, role *conversation.Role) (conversation.Membership, error) {
	var m conversation.Membership
	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID)
	if role != nil {
		q = q.Where("role = ?", *role)
	}
	err := q.Order("joined_at ASC").First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Membership{}, huddle_errors.ErrNotFound
		}
		return conversation.Membership{}, err
	}
	return m, nil
}

func (r *PostgresConversationRepository) AdvanceReadCursor(ctx context.Context, conversationID, userID uuid.UUID, seq int64) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Membership{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		UpdateColumn("last_read_seq", gorm.Expr("GREATEST(last_read_seq, ?)", seq))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return huddle_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) NextSeq(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var seq int64
	err := r.db.WithContext(ctx).Raw(`
        INSERT INTO conversation_sequences (conversation_id, last_seq, updated_at)
        VALUES (?, 1, now())
        ON CONFLICT (conversation_id)
        DO UPDATE SET last_seq = conversation_sequences.last_seq + 1, updated_at = now()
        RETURNING last_seq
    `, conversationID).Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq, nil
}
