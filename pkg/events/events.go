package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventGroupInvite  = "group.invite"
	EventGroupMessage = "message.new"
)

// Envelope is the wire frame published to the notification broker.
type Envelope struct {
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// GroupInviteEvent notifies an invitee that they were added to a group.
type GroupInviteEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	InviterID      uuid.UUID `json:"inviter_id"`
	InviteeID      uuid.UUID `json:"invitee_id"`
}

// GroupMessageEvent notifies members of a new message. RecipientIDs is the
// member set at send time, sender excluded; the processor fans one envelope
// out per recipient.
type GroupMessageEvent struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	SenderID       uuid.UUID   `json:"sender_id"`
	MessageID      uuid.UUID   `json:"message_id"`
	Preview        string      `json:"preview"`
	RecipientIDs   []uuid.UUID `json:"recipient_ids"`
}

// Publisher delivers an envelope to a channel. Delivery is fire-and-forget
// from the perspective of the operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
