package outbox

import (
	"context"
	"encoding/json"
	"time"

	domain "huddle-chat/internal/domain/outbox"
	"huddle-chat/internal/repository"
	"huddle-chat/pkg/events"
	"huddle-chat/pkg/logger"
	"huddle-chat/pkg/metrics"
)

// Processor polls the outbox table and publishes pending notification
// events to the broker. Delivery is decoupled from the transactions that
// produced the events: a publish failure is retried here and never reaches
// the caller of the originating operation.
type Processor struct {
	repo       repository.OutboxRepository
	publisher  events.Publisher
	log        *logger.Logger
	clock      func() time.Time
	batchSize  int
	interval   time.Duration
	maxRetries int
}

func NewProcessor(repo repository.OutboxRepository, publisher events.Publisher, log *logger.Logger, batchSize int, interval time.Duration, maxRetries int) *Processor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Processor{
		repo:       repo,
		publisher:  publisher,
		log:        log,
		clock:      time.Now,
		batchSize:  batchSize,
		interval:   interval,
		maxRetries: maxRetries,
	}
}

func DefaultProcessor(repo repository.OutboxRepository, publisher events.Publisher, log *logger.Logger) *Processor {
	return NewProcessor(repo, publisher, log, 100, 2*time.Second, 5)
}

// Start runs the poll loop until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	go p.run(ctx)
}

func (p *Processor) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch drains one batch of pending events.
func (p *Processor) ProcessBatch(ctx context.Context) {
	batch, err := p.repo.GetPending(ctx, p.batchSize)
	if err != nil {
		p.log.Errorf("outbox poll failed: %v", err)
		return
	}

	for _, e := range batch {
		p.processEvent(ctx, e)
	}
}

func (p *Processor) processEvent(ctx context.Context, e domain.OutboxEvent) {
	if e.RetryCount >= p.maxRetries {
		_ = p.repo.MarkFailed(ctx, e.ID, "max retries exceeded")
		metrics.OutboxFailed.Inc()
		return
	}

	env := events.Envelope{
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		OccurredAt:    e.CreatedAt.UTC(),
		Payload:       json.RawMessage(e.Payload),
	}
	frame, err := json.Marshal(env)
	if err != nil {
		_ = p.repo.MarkFailed(ctx, e.ID, err.Error())
		metrics.OutboxFailed.Inc()
		return
	}

	published := 0
	for _, channel := range p.routeChannels(e) {
		if err := p.publisher.Publish(ctx, channel, frame); err != nil {
			p.log.Warnf("outbox publish to %s failed: %v", channel, err)
			_ = p.repo.IncrementRetry(ctx, e.ID)
			return
		}
		published++
	}

	_ = p.repo.MarkCompleted(ctx, e.ID)
	metrics.OutboxPublished.Add(float64(published))
}

// routeChannels expands one stored event into its recipient channels:
// message events fan out to every recipient recorded at send time, invite
// events go to the invitee.
func (p *Processor) routeChannels(e domain.OutboxEvent) []string {
	switch e.EventType {
	case events.EventGroupMessage:
		var payload events.GroupMessageEvent
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			return nil
		}
		channels := make([]string, 0, len(payload.RecipientIDs))
		for _, id := range payload.RecipientIDs {
			channels = append(channels, events.UserChannel(id.String()))
		}
		return channels
	case events.EventGroupInvite:
		var payload events.GroupInviteEvent
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			return nil
		}
		return []string{events.UserChannel(payload.InviteeID.String())}
	default:
		return []string{"notify:system"}
	}
}
