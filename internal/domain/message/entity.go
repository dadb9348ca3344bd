package message

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of message kinds.
type Kind string

const (
	KindText  Kind = "TEXT"
	KindMedia Kind = "MEDIA"
)

// Message represents the messages table. Seq is assigned server-side from
// the per-conversation sequence, so creation order is stable regardless of
// client clocks. A soft-deleted message keeps its content; only DeletedAt
// is set, and the row stays referenceable by reactions, receipts and pins.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null"`
	Seq            int64     `gorm:"not null;uniqueIndex:idx_conversation_seq,composite:conversation_id"`
	Kind           Kind      `gorm:"type:varchar(20);not null;default:'TEXT'"`
	Content        sql.NullString
	MediaURL       sql.NullString
	ReplyToID      uuid.NullUUID `gorm:"type:uuid;index"`
	CreatedAt      time.Time     `gorm:"not null"`
	EditedAt       sql.NullTime
	DeletedAt      sql.NullTime
}

func (m Message) Deleted() bool {
	return m.DeletedAt.Valid
}

// Reaction represents message_reactions: at most one row per
// (message, user, emoji) triple.
type Reaction struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Emoji     string    `gorm:"type:varchar(64);primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
}

// ReadReceipt represents read_receipts. Receipts are a derived projection
// of the membership read cursor, materialized idempotently.
type ReadReceipt struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReadAt    time.Time `gorm:"not null"`
}

// PinnedMessage represents pinned_messages: a set keyed by
// (conversation, message), listed newest pin first.
type PinnedMessage struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	MessageID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	PinnedBy       uuid.UUID `gorm:"type:uuid;not null"`
	PinnedAt       time.Time `gorm:"not null"`
}

func (Message) TableName() string {
	return "messages"
}

func (Reaction) TableName() string {
	return "message_reactions"
}

func (ReadReceipt) TableName() string {
	return "read_receipts"
}

func (PinnedMessage) TableName() string {
	return "pinned_messages"
}
