package conversation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of membership roles. Free-form role strings are
// rejected at the boundary, never compared ad hoc.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// InvitePolicy controls who may invite new members into a group.
type InvitePolicy string

const (
	InvitePolicyAll       InvitePolicy = "ALL"
	InvitePolicyAdminOnly InvitePolicy = "ADMIN_ONLY"
)

func (p InvitePolicy) Valid() bool {
	return p == InvitePolicyAll || p == InvitePolicyAdminOnly
}

// Conversation represents the conversations table. CreatedBy is immutable
// once recorded and is the sole authority for full deletion.
type Conversation struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	IsGroup      bool      `gorm:"not null;default:true"`
	Name         string    `gorm:"type:varchar(255);not null"`
	AvatarURL    sql.NullString
	InvitePolicy InvitePolicy  `gorm:"type:varchar(20);not null;default:'ALL'"`
	MaxMembers   sql.NullInt32 // unset means unbounded
	CreatedBy    uuid.NullUUID `gorm:"type:uuid"`
	CreatedAt    time.Time     `gorm:"not null"`
	UpdatedAt    time.Time     `gorm:"not null"`

	Memberships []Membership `gorm:"foreignKey:ConversationID"`
}

// Membership represents the memberships table: one row per
// (conversation, user), carrying the role and the read cursor.
type Membership struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role           Role      `gorm:"type:varchar(20);not null;default:'MEMBER'"`
	JoinedAt       time.Time `gorm:"not null"`
	// LastReadSeq is a monotonically non-decreasing cursor: the highest
	// message seq this user has acknowledged in this conversation.
	LastReadSeq int64 `gorm:"not null;default:0"`
}

// ConversationSequence allocates per-conversation message ordering.
type ConversationSequence struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	LastSeq        int64     `gorm:"not null;default:0"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Membership) TableName() string {
	return "memberships"
}

func (ConversationSequence) TableName() string {
	return "conversation_sequences"
}
