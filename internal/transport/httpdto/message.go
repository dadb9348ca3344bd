package httpdto

import (
	"time"

	"huddle-chat/internal/domain/message"
)

type SendMessageRequest struct {
	Content   string  `json:"content"`
	MediaURL  string  `json:"media_url"`
	ReplyToID *string `json:"reply_to_id"`
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

type OpenGroupRequest struct {
	LastReadMessageID string `json:"last_read_message_id" binding:"required"`
}

type MessageResponse struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Seq            int64      `json:"seq"`
	Kind           string     `json:"kind"`
	Content        string     `json:"content,omitempty"`
	MediaURL       string     `json:"media_url,omitempty"`
	ReplyToID      string     `json:"reply_to_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	Deleted        bool       `json:"deleted"`
}

type ReactionResponse struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

type PinnedMessageResponse struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	PinnedBy       string    `json:"pinned_by"`
	PinnedAt       time.Time `json:"pinned_at"`
}

// FromMessage hides soft-deleted content at the presentation edge; the
// stored row keeps it.
func FromMessage(m message.Message) MessageResponse {
	resp := MessageResponse{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		Seq:            m.Seq,
		Kind:           string(m.Kind),
		CreatedAt:      m.CreatedAt,
		Deleted:        m.Deleted(),
	}
	if !m.Deleted() {
		if m.Content.Valid {
			resp.Content = m.Content.String
		}
		if m.MediaURL.Valid {
			resp.MediaURL = m.MediaURL.String
		}
	}
	if m.ReplyToID.Valid {
		resp.ReplyToID = m.ReplyToID.UUID.String()
	}
	if m.EditedAt.Valid {
		t := m.EditedAt.Time
		resp.EditedAt = &t
	}
	return resp
}

func FromMessages(msgs []message.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, FromMessage(m))
	}
	return out
}

func FromReaction(r message.Reaction) ReactionResponse {
	return ReactionResponse{
		MessageID: r.MessageID.String(),
		UserID:    r.UserID.String(),
		Emoji:     r.Emoji,
		CreatedAt: r.CreatedAt,
	}
}

func FromPinnedMessage(p message.PinnedMessage) PinnedMessageResponse {
	return PinnedMessageResponse{
		ConversationID: p.ConversationID.String(),
		MessageID:      p.MessageID.String(),
		PinnedBy:       p.PinnedBy.String(),
		PinnedAt:       p.PinnedAt,
	}
}
