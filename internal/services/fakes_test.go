package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"huddle-chat/internal/domain/conversation"
	"huddle-chat/internal/domain/message"
	"huddle-chat/internal/domain/outbox"
	huddle_errors "huddle-chat/pkg/errors"

	"github.com/google/uuid"
)

// In-memory repository doubles. They hold the same uniqueness and
// idempotency guarantees the Postgres layer enforces through constraints,
// so the services under test see identical behavior on both paths.

type memberKey struct {
	conversationID uuid.UUID
	userID         uuid.UUID
}

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]conversation.Conversation
	memberships   map[memberKey]conversation.Membership
	seqs          map[uuid.UUID]int64

	failNextSeq bool
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		conversations: make(map[uuid.UUID]conversation.Conversation),
		memberships:   make(map[memberKey]conversation.Membership),
		seqs:          make(map[uuid.UUID]int64),
	}
}

func (f *fakeConversationRepo) Create(ctx context.Context, c *conversation.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.conversations[c.ID]; ok {
		return huddle_errors.ErrConflict
	}
	f.conversations[c.ID] = *c
	return nil
}

func (f *fakeConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return conversation.Conversation{}, huddle_errors.ErrNotFound
	}
	return c, nil
}

func (f *fakeConversationRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeConversationRepo) Update(ctx context.Context, c conversation.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.conversations[c.ID]; !ok {
		return huddle_errors.ErrNotFound
	}
	f.conversations[c.ID] = c
	return nil
}

func (f *fakeConversationRepo) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.conversations[id]; !ok {
		return huddle_errors.ErrNotFound
	}
	delete(f.conversations, id)
	delete(f.seqs, id)
	for k := range f.memberships {
		if k.conversationID == id {
			delete(f.memberships, k)
		}
	}
	return nil
}

func (f *fakeConversationRepo) GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []conversation.Conversation
	for k := range f.memberships {
		if k.userID == userID {
			out = append(out, f.conversations[k.conversationID])
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeConversationRepo) AddMembership(ctx context.Context, m *conversation.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := memberKey{m.ConversationID, m.UserID}
	if _, ok := f.memberships[key]; ok {
		return huddle_errors.ErrAlreadyMember
	}
	f.memberships[key] = *m
	return nil
}

func (f *fakeConversationRepo) RemoveMembership(ctx context.Context, conversationID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := memberKey{conversationID, userID}
	if _, ok := f.memberships[key]; !ok {
		return huddle_errors.ErrNotFound
	}
	delete(f.memberships, key)
	return nil
}

func (f *fakeConversationRepo) GetMembership(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memberships[memberKey{conversationID, userID}]
	if !ok {
		return conversation.Membership{}, huddle_errors.ErrNotFound
	}
	return m, nil
}

func (f *fakeConversationRepo) ListMemberships(ctx context.Context, conversationID uuid.UUID) ([]conversation.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []conversation.Membership
	for k, m := range f.memberships {
		if k.conversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (f *fakeConversationRepo) CountMemberships(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k := range f.memberships {
		if k.conversationID == conversationID {
			n++
		}
	}
	return n, nil
}

func (f *fakeConversationRepo) UpdateMembershipRole(ctx context.Context, conversationID, userID uuid.UUID, role conversation.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := memberKey{conversationID, userID}
	m, ok := f.memberships[key]
	if !ok {
		return huddle_errors.ErrNotFound
	}
	m.Role = role
	f.memberships[key] = m
	return nil
}

func (f *fakeConversationRepo) EarliestJoined(ctx context.Context, conversationID uuid.UUID, role *conversation.Role) (conversation.Membership, error) {
	members, _ := f.ListMemberships(ctx, conversationID)
	for _, m := range members {
		if role == nil || m.Role == *role {
			return m, nil
		}
	}
	return conversation.Membership{}, huddle_errors.ErrNotFound
}

func (f *fakeConversationRepo) AdvanceReadCursor(ctx context.Context, conversationID, userID uuid.UUID, seq int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := memberKey{conversationID, userID}
	m, ok := f.memberships[key]
	if !ok {
		return huddle_errors.ErrNotFound
	}
	if seq > m.LastReadSeq {
		m.LastReadSeq = seq
		f.memberships[key] = m
	}
	return nil
}

func (f *fakeConversationRepo) NextSeq(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNextSeq {
		return 0, huddle_errors.Infrastructure(errors.New("sequence unavailable"))
	}
	f.seqs[conversationID]++
	return f.seqs[conversationID], nil
}

type receiptKey struct {
	messageID uuid.UUID
	userID    uuid.UUID
}

type reactionKey struct {
	messageID uuid.UUID
	userID    uuid.UUID
	emoji     string
}

type pinKey struct {
	conversationID uuid.UUID
	messageID      uuid.UUID
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  map[uuid.UUID]message.Message
	reactions map[reactionKey]message.Reaction
	receipts  map[receiptKey]message.ReadReceipt
	pins      map[pinKey]message.PinnedMessage

	failMaterialize bool
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		messages:  make(map[uuid.UUID]message.Message),
		reactions: make(map[reactionKey]message.Reaction),
		receipts:  make(map[receiptKey]message.ReadReceipt),
		pins:      make(map[pinKey]message.PinnedMessage),
	}
}

func (f *fakeMessageRepo) Create(ctx context.Context, m *message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[m.ID] = *m
	return nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return message.Message{}, huddle_errors.ErrNotFound
	}
	return m, nil
}

func (f *fakeMessageRepo) MarkEdited(ctx context.Context, id uuid.UUID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok || m.Deleted() {
		return huddle_errors.ErrNotFound
	}
	m.Content.String = content
	m.Content.Valid = true
	m.EditedAt.Time = time.Now()
	m.EditedAt.Valid = true
	f.messages[id] = m
	return nil
}

func (f *fakeMessageRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return huddle_errors.ErrNotFound
	}
	if !m.Deleted() {
		m.DeletedAt.Time = time.Now()
		m.DeletedAt.Valid = true
		f.messages[id] = m
	}
	return nil
}

func (f *fakeMessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, beforeSeq int64, limit int) ([]message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message.Message
	for _, m := range f.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if beforeSeq > 0 && m.Seq >= beforeSeq {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMessageRepo) ListThread(ctx context.Context, parentID uuid.UUID) ([]message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message.Message
	for _, m := range f.messages {
		if m.ReplyToID.Valid && m.ReplyToID.UUID == parentID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (f *fakeMessageRepo) CountAfterSeq(ctx context.Context, conversationID uuid.UUID, seq int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.messages {
		if m.ConversationID == conversationID && m.Seq > seq {
			n++
		}
	}
	return n, nil
}

func (f *fakeMessageRepo) AddReaction(ctx context.Context, r *message.Reaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := reactionKey{r.MessageID, r.UserID, r.Emoji}
	if _, ok := f.reactions[key]; !ok {
		f.reactions[key] = *r
	}
	return nil
}

func (f *fakeMessageRepo) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reactions, reactionKey{messageID, userID, emoji})
	return nil
}

func (f *fakeMessageRepo) ListReactions(ctx context.Context, messageID uuid.UUID) ([]message.Reaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message.Reaction
	for k, r := range f.reactions {
		if k.messageID == messageID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) CreateReceipt(ctx context.Context, r *message.ReadReceipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := receiptKey{r.MessageID, r.UserID}
	if _, ok := f.receipts[key]; !ok {
		f.receipts[key] = *r
	}
	return nil
}

func (f *fakeMessageRepo) MaterializeReceipts(ctx context.Context, conversationID, userID uuid.UUID, uptoSeq int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMaterialize {
		return huddle_errors.Infrastructure(errors.New("receipt store down"))
	}
	for _, m := range f.messages {
		if m.ConversationID != conversationID || m.Seq > uptoSeq {
			continue
		}
		key := receiptKey{m.ID, userID}
		if _, ok := f.receipts[key]; !ok {
			f.receipts[key] = message.ReadReceipt{MessageID: m.ID, UserID: userID, ReadAt: time.Now()}
		}
	}
	return nil
}

func (f *fakeMessageRepo) ListReceipts(ctx context.Context, messageID uuid.UUID) ([]message.ReadReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message.ReadReceipt
	for k, r := range f.receipts {
		if k.messageID == messageID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) Pin(ctx context.Context, p *message.PinnedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pinKey{p.ConversationID, p.MessageID}
	if _, ok := f.pins[key]; !ok {
		f.pins[key] = *p
	}
	return nil
}

func (f *fakeMessageRepo) Unpin(ctx context.Context, conversationID, messageID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pins, pinKey{conversationID, messageID})
	return nil
}

func (f *fakeMessageRepo) ListPinned(ctx context.Context, conversationID uuid.UUID) ([]message.PinnedMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message.PinnedMessage
	for k, p := range f.pins {
		if k.conversationID == conversationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PinnedAt.After(out[j].PinnedAt) })
	return out, nil
}

type fakeOutboxRepo struct {
	mu     sync.Mutex
	events []outbox.OutboxEvent
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{}
}

func (f *fakeOutboxRepo) Create(ctx context.Context, e *outbox.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeOutboxRepo) GetPending(ctx context.Context, limit int) ([]outbox.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []outbox.OutboxEvent
	for _, e := range f.events {
		if e.Status == outbox.StatusPending {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutboxRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return f.setStatus(id, outbox.StatusCompleted)
}

func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return f.setStatus(id, outbox.StatusFailed)
}

func (f *fakeOutboxRepo) IncrementRetry(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == id {
			f.events[i].RetryCount++
			return nil
		}
	}
	return huddle_errors.ErrNotFound
}

func (f *fakeOutboxRepo) setStatus(id uuid.UUID, status outbox.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == id {
			f.events[i].Status = status
			return nil
		}
	}
	return huddle_errors.ErrNotFound
}

func (f *fakeOutboxRepo) byType(eventType string) []outbox.OutboxEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []outbox.OutboxEvent
	for _, e := range f.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeGraph answers relationship predicates from explicit pair sets. Pairs
// are stored unordered, matching the symmetry of the real service.
type fakeGraph struct {
	mutual     map[[2]uuid.UUID]bool
	blocked    map[[2]uuid.UUID]bool
	restricted map[[2]uuid.UUID]bool
	err        error
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		mutual:     make(map[[2]uuid.UUID]bool),
		blocked:    make(map[[2]uuid.UUID]bool),
		restricted: make(map[[2]uuid.UUID]bool),
	}
}

func pairOf(a, b uuid.UUID) [2]uuid.UUID {
	if a.String() > b.String() {
		a, b = b, a
	}
	return [2]uuid.UUID{a, b}
}

func (g *fakeGraph) setMutual(a, b uuid.UUID)     { g.mutual[pairOf(a, b)] = true }
func (g *fakeGraph) setBlocked(a, b uuid.UUID)    { g.blocked[pairOf(a, b)] = true }
func (g *fakeGraph) setRestricted(a, b uuid.UUID) { g.restricted[pairOf(a, b)] = true }

func (g *fakeGraph) IsMutualFollow(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return g.mutual[pairOf(a, b)], g.err
}

func (g *fakeGraph) IsBlocking(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return g.blocked[pairOf(a, b)], g.err
}

func (g *fakeGraph) IsRestricting(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return g.restricted[pairOf(a, b)], g.err
}

type fakeDirectory struct {
	users map[uuid.UUID]bool
}

func newFakeDirectory(ids ...uuid.UUID) *fakeDirectory {
	d := &fakeDirectory{users: make(map[uuid.UUID]bool)}
	for _, id := range ids {
		d.users[id] = true
	}
	return d
}

func (d *fakeDirectory) add(id uuid.UUID) { d.users[id] = true }

func (d *fakeDirectory) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return d.users[id], nil
}
