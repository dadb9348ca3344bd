package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"huddle-chat/internal/domain/message"
	huddle_errors "huddle-chat/pkg/errors"
	"huddle-chat/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type messageFixture struct {
	svc      *MessageService
	msgRepo  *fakeMessageRepo
	convRepo *fakeConversationRepo
	outbox   *fakeOutboxRepo
	groups   *groupFixture
}

func newMessageFixture() *messageFixture {
	groups := newGroupFixture()
	msgRepo := newFakeMessageRepo()
	outboxRepo := newFakeOutboxRepo()
	return &messageFixture{
		svc:      NewMessageService(nil, msgRepo, groups.convRepo, outboxRepo, nil),
		msgRepo:  msgRepo,
		convRepo: groups.convRepo,
		outbox:   outboxRepo,
		groups:   groups,
	}
}

func (f *messageFixture) send(t *testing.T, convID, sender uuid.UUID, content string) message.Message {
	t.Helper()
	msg, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       sender,
		Content:        content,
	})
	require.NoError(t, err)
	return msg
}

func TestSendMessage(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()
	convID := f.groups.newGroup(t, alice, bob, carol)

	first := f.send(t, convID, alice, "hello")
	second := f.send(t, convID, bob, "hi back")

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, message.KindText, first.Kind)
	assert.Equal(t, "hello", first.Content.String)

	// the sender's cursor moves to their own message
	m, err := f.convRepo.GetMembership(context.Background(), convID, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.LastReadSeq)

	queued := f.outbox.byType(events.EventGroupMessage)
	require.Len(t, queued, 2)

	var evt events.GroupMessageEvent
	require.NoError(t, json.Unmarshal(queued[0].Payload, &evt))
	assert.Equal(t, first.ID, evt.MessageID)
	assert.Equal(t, "hello", evt.Preview)
	// fan-out excludes the sender
	assert.ElementsMatch(t, []uuid.UUID{bob, carol}, evt.RecipientIDs)
}

func TestSendMessageValidation(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	convID := f.groups.newGroup(t, alice, bob)

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice,
		Content:        "   ",
	})
	assert.ErrorIs(t, err, huddle_errors.ErrInvalidInput)

	_, err = f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       uuid.New(),
		Content:        "hi",
	})
	assert.ErrorIs(t, err, huddle_errors.ErrNotAMember)

	_, err = f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: uuid.New(),
		SenderID:       alice,
		Content:        "hi",
	})
	assert.ErrorIs(t, err, huddle_errors.ErrNotFound)
}

func TestSendMediaMessage(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	convID := f.groups.newGroup(t, alice, bob)

	msg, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice,
		MediaURL:       "https://cdn.example.com/photo.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, message.KindMedia, msg.Kind)
	assert.False(t, msg.Content.Valid)

	queued := f.outbox.byType(events.EventGroupMessage)
	require.Len(t, queued, 1)
	var evt events.GroupMessageEvent
	require.NoError(t, json.Unmarshal(queued[0].Payload, &evt))
	assert.Equal(t, "[media]", evt.Preview)
}

func TestSendReplyCrossConversation(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	convA := f.groups.newGroup(t, alice, bob)
	convB := f.groups.newGroup(t, alice, bob)

	parent := f.send(t, convA, alice, "parent")

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convB,
		SenderID:       bob,
		Content:        "reply in the wrong room",
		ReplyToID:      &parent.ID,
	})
	assert.ErrorIs(t, err, huddle_errors.ErrInvalidInput)
}

func TestMarkAsReadClosesGap(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	convID := f.groups.newGroup(t, alice, bob)

	var msgs []message.Message
	for _, text := range []string{"m1", "m2", "m3", "m4", "m5"} {
		msgs = append(msgs, f.send(t, convID, alice, text))
	}

	require.NoError(t, f.svc.MarkAsRead(context.Background(), msgs[2].ID, bob))

	m, err := f.convRepo.GetMembership(context.Background(), convID, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(3), m.LastReadSeq)

	// receipts exist for every message at or below the cursor, none above
	for i, msg := range msgs {
		receipts, err := f.msgRepo.ListReceipts(context.Background(), msg.ID)
		require.NoError(t, err)
		var bobRead bool
		for _, r := range receipts {
			if r.UserID == bob {
				bobRead = true
			}
		}
		assert.Equal(t, i < 3, bobRead, "message %d", i+1)
	}

	unread, err := f.svc.GetUnreadCount(context.Background(), convID, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)
}

func TestMarkAsReadNeverRegresses(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	convID := f.groups.newGroup(t, alice, bob)

	m1 := f.send(t, convID, alice, "m1")
	m2 := f.send(t, convID, alice, "m2")

	require.NoError(t, f.svc.MarkAsRead(context.Background(), m2.ID, bob))
	// a late acknowledgment of an older message must not move the cursor back
	require.NoError(t, f.svc.MarkAsRead(context.Background(), m1.ID, bob))

	m, err := f.convRepo.GetMembership(context.Background(), convID, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.LastReadSeq)
}

func TestMarkAsReadIdempotent(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	convID := f.groups.newGroup(t, alice, bob)

	msg := f.send(t, convID, alice, "once")
	require.NoError(t, f.svc.MarkAsRead(context.Background(), msg.ID, bob))
	require.NoError(t, f.svc.MarkAsRead(context.Background(), msg.ID, bob))

	receipts, err := f.msgRepo.ListReceipts(context.Background(), msg.ID)
	require.NoError(t, err)
	// one receipt for the sender, one for bob
	assert.Len(t, receipts, 2)
}

func TestMarkAsReadSurvivesReceiptFailure(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	convID := f.groups.newGroup(t, alice, bob)

	msg := f.send(t, convID, alice, "hello")

	f.msgRepo.failMaterialize = true
	require.NoError(t, f.svc.MarkAsRead(context.Background(), msg.ID, bob))

	// the cursor advanced even though receipts did not materialize
	m, err := f.convRepo.GetMembership(context.Background(), convID, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.LastReadSeq)
}

func TestMarkAsReadNonMember(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	convID := f.groups.newGroup(t, alice, bob)

	msg := f.send(t, convID, alice, "hello")
	err := f.svc.MarkAsRead(context.Background(), msg.ID, uuid.New())
	assert.ErrorIs(t, err, huddle_errors.ErrNotAMember)
}

func TestOpenGroup(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	convID := f.groups.newGroup(t, alice, bob)

	f.send(t, convID, alice, "m1")
	m2 := f.send(t, convID, alice, "m2")
	f.send(t, convID, alice, "m3")

	require.NoError(t, f.svc.OpenGroup(context.Background(), convID, bob, m2.ID))

	m, err := f.convRepo.GetMembership(context.Background(), convID, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.LastReadSeq)
}

func TestOpenGroupForeignBoundary(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	convA := f.groups.newGroup(t, alice, bob)
	convB := f.groups.newGroup(t, alice, bob)

	foreign := f.send(t, convB, alice, "elsewhere")
	err := f.svc.OpenGroup(context.Background(), convA, bob, foreign.ID)
	assert.ErrorIs(t, err, huddle_errors.ErrInvalidInput)
}

func TestReactions(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	convID := f.groups.newGroup(t, alice, bob)
	msg := f.send(t, convID, alice, "react to me")

	require.NoError(t, f.svc.AddReaction(context.Background(), msg.ID, bob, "👍"))
	// repeating the same triple is a no-op
	require.NoError(t, f.svc.AddReaction(context.Background(), msg.ID, bob, "👍"))
	require.NoError(t, f.svc.AddReaction(context.Background(), msg.ID, bob, "🎉"))

	reactions, err := f.svc.GetMessageReactions(context.Background(), msg.ID, alice)
	require.NoError(t, err)
	assert.Len(t, reactions, 2)

	require.NoError(t, f.svc.RemoveReaction(context.Background(), msg.ID, bob, "👍"))
	// removing an absent reaction is a no-op
	require.NoError(t, f.svc.RemoveReaction(context.Background(), msg.ID, bob, "👍"))

	reactions, err = f.svc.GetMessageReactions(context.Background(), msg.ID, alice)
	require.NoError(t, err)
	assert.Len(t, reactions, 1)

	err = f.svc.AddReaction(context.Background(), msg.ID, uuid.New(), "👍")
	assert.ErrorIs(t, err, huddle_errors.ErrNotAMember)

	err = f.svc.AddReaction(context.Background(), msg.ID, bob, "  ")
	assert.ErrorIs(t, err, huddle_errors.ErrInvalidInput)
}

func TestThread(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	convID := f.groups.newGroup(t, alice, bob)

	parent := f.send(t, convID, alice, "root")
	var replies []message.Message
	for _, text := range []string{"r1", "r2", "r3"} {
		msg, err := f.svc.SendMessage(context.Background(), SendMessageInput{
			ConversationID: convID,
			SenderID:       bob,
			Content:        text,
			ReplyToID:      &parent.ID,
		})
		require.NoError(t, err)
		replies = append(replies, msg)
	}

	thread, err := f.svc.GetThread(context.Background(), parent.ID, alice)
	require.NoError(t, err)
	require.Len(t, thread, 3)
	for i := range thread {
		assert.Equal(t, replies[i].ID, thread[i].ID)
	}
}

func TestDeleteMessage(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	convID := f.groups.newGroup(t, alice, bob)

	parent := f.send(t, convID, alice, "root")
	reply, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       bob,
		Content:        "reply",
		ReplyToID:      &parent.ID,
	})
	require.NoError(t, err)

	err = f.svc.DeleteMessage(context.Background(), parent.ID, bob)
	assert.ErrorIs(t, err, huddle_errors.ErrPermissionDenied)

	require.NoError(t, f.svc.DeleteMessage(context.Background(), parent.ID, alice))
	// terminal and idempotent
	require.NoError(t, f.svc.DeleteMessage(context.Background(), parent.ID, alice))

	got, err := f.msgRepo.GetByID(context.Background(), parent.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted())
	// content is retained, only the flag is set
	assert.Equal(t, "root", got.Content.String)

	// the thread under a deleted parent stays retrievable
	thread, err := f.svc.GetThread(context.Background(), parent.ID, bob)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, reply.ID, thread[0].ID)
}

func TestEditMessage(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	convID := f.groups.newGroup(t, alice, bob)
	msg := f.send(t, convID, alice, "draft")

	err := f.svc.EditMessage(context.Background(), msg.ID, bob, "hijacked")
	assert.ErrorIs(t, err, huddle_errors.ErrPermissionDenied)

	err = f.svc.EditMessage(context.Background(), msg.ID, alice, "  ")
	assert.ErrorIs(t, err, huddle_errors.ErrInvalidInput)

	require.NoError(t, f.svc.EditMessage(context.Background(), msg.ID, alice, "final"))
	got, err := f.msgRepo.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Content.String)
	assert.True(t, got.EditedAt.Valid)

	require.NoError(t, f.svc.DeleteMessage(context.Background(), msg.ID, alice))
	err = f.svc.EditMessage(context.Background(), msg.ID, alice, "too late")
	assert.ErrorIs(t, err, huddle_errors.ErrConflict)
}

func TestPinMessage(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	convA := f.groups.newGroup(t, alice, bob)
	convB := f.groups.newGroup(t, alice, bob)

	msg := f.send(t, convA, alice, "pin me")

	// any member may pin, not only admins
	require.NoError(t, f.svc.PinMessage(context.Background(), convA, msg.ID, bob))
	require.NoError(t, f.svc.PinMessage(context.Background(), convA, msg.ID, bob))

	pins, err := f.svc.GetPinnedMessages(context.Background(), convA, alice)
	require.NoError(t, err)
	require.Len(t, pins, 1)
	assert.Equal(t, msg.ID, pins[0].MessageID)

	err = f.svc.PinMessage(context.Background(), convB, msg.ID, alice)
	assert.ErrorIs(t, err, huddle_errors.ErrInvalidInput)

	require.NoError(t, f.svc.UnpinMessage(context.Background(), convA, msg.ID, alice))
	pins, err = f.svc.GetPinnedMessages(context.Background(), convA, alice)
	require.NoError(t, err)
	assert.Empty(t, pins)
}

func TestGetConversationMessages(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	convID := f.groups.newGroup(t, alice, bob)

	for _, text := range []string{"m1", "m2", "m3", "m4"} {
		f.send(t, convID, alice, text)
	}

	page, err := f.svc.GetConversationMessages(context.Background(), convID, bob, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	// newest first
	assert.Equal(t, int64(4), page[0].Seq)
	assert.Equal(t, int64(3), page[1].Seq)

	older, err := f.svc.GetConversationMessages(context.Background(), convID, bob, page[1].Seq, 10)
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, int64(2), older[0].Seq)

	_, err = f.svc.GetConversationMessages(context.Background(), convID, uuid.New(), 0, 10)
	assert.ErrorIs(t, err, huddle_errors.ErrNotAMember)
}

func TestPreviewTruncation(t *testing.T) {
	f := newMessageFixture()
	alice := uuid.New()
	bob := uuid.New()
	convID := f.groups.newGroup(t, alice, bob)

	long := strings.Repeat("я", 120)
	f.send(t, convID, alice, long)

	queued := f.outbox.byType(events.EventGroupMessage)
	require.Len(t, queued, 1)
	var evt events.GroupMessageEvent
	require.NoError(t, json.Unmarshal(queued[0].Payload, &evt))
	assert.Equal(t, strings.Repeat("я", 80)+"…", evt.Preview)
}
