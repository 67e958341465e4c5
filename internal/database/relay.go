package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/catawiki-seller-parser/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of the Redis client used by the relay.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// OutboxStore is the outbox access the relay needs.
type OutboxStore interface {
	GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, err error) (string, error)
	CountByStatus(ctx context.Context, statuses ...string) (int64, error)
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// StreamMaxLen caps each stream approximately. Zero leaves it unbounded.
	StreamMaxLen int64
	Metrics      *metrics.Metrics
}

// Relay publishes seller profile events from the outbox to Redis streams.
type Relay struct {
	redis   RedisClient
	outbox  OutboxStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	cfg     RelayConfig
}

func NewRelay(outbox OutboxStore, redisClient RedisClient, logger *slog.Logger, cfg RelayConfig) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New()
	}

	return &Relay{
		redis:   redisClient,
		outbox:  outbox,
		logger:  logger.With("component", "relay"),
		metrics: m,
		cfg:     cfg,
	}
}

// Start drains the outbox every poll interval until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("starting relay",
		"interval", r.cfg.PollInterval,
		"batch_size", r.cfg.BatchSize)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := r.drain(ctx); err != nil {
			r.logger.Error("failed to drain outbox", "error", err)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drain publishes one batch of due events and returns how many reached the
// stream. A failing event does not stop the batch.
func (r *Relay) drain(ctx context.Context) (int, error) {
	events, err := r.outbox.GetPending(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}

	published := 0
	for _, event := range events {
		if err := r.publish(ctx, event); err != nil {
			r.fail(ctx, event, err)
			continue
		}

		if err := r.outbox.MarkProcessed(ctx, event.ID); err != nil {
			// The entry is already on the stream; the event may be sent
			// again on the next poll.
			r.logger.Error("failed to mark event as processed", "event_id", event.ID, "error", err)
		}
		r.metrics.OutboxEventsTotal.WithLabelValues(metrics.OutboxPublished).Inc()
		published++
	}

	if published > 0 {
		r.logger.Debug("outbox batch published", "published", published, "fetched", len(events))
	}
	return published, nil
}

func (r *Relay) fail(ctx context.Context, event *OutboxEvent, cause error) {
	status, err := r.outbox.MarkFailed(ctx, event.ID, cause)
	if err != nil {
		r.logger.Error("failed to record publish failure",
			"event_id", event.ID,
			"cause", cause,
			"error", err)
		return
	}

	if status == OutboxStatusDeadLetter {
		r.metrics.OutboxEventsTotal.WithLabelValues(metrics.OutboxDeadLettered).Inc()
		r.logger.Error("event moved to dead letter",
			"event_id", event.ID,
			"profile_id", event.AggregateID,
			"error", cause)
		return
	}

	r.metrics.OutboxEventsTotal.WithLabelValues(metrics.OutboxFailed).Inc()
	r.logger.Warn("event publish failed, will retry",
		"event_id", event.ID,
		"retry_count", event.RetryCount+1,
		"error", cause)
}

func (r *Relay) publish(ctx context.Context, event *OutboxEvent) error {
	args, err := r.streamEntry(event)
	if err != nil {
		return err
	}

	if err := r.redis.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// streamEntry flattens a SELLER_PROFILE_EXTRACTED event into stream fields.
// The full payload travels as JSON in "data".
func (r *Relay) streamEntry(event *OutboxEvent) (*redis.XAddArgs, error) {
	if event.EventType != EventTypeProfileExtracted {
		return nil, fmt.Errorf("unsupported event type %q", event.EventType)
	}

	var payload ProfileExtractedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if payload.ProfileID == "" {
		return nil, fmt.Errorf("payload has no profile id")
	}

	values := map[string]interface{}{
		"event_id":     event.ID.String(),
		"event_type":   event.EventType,
		"profile_id":   payload.ProfileID,
		"source_hash":  payload.SourceHash,
		"review_count": strconv.Itoa(payload.ReviewCount),
		"occurred_at":  payload.Timestamp.UTC().Format(time.RFC3339Nano),
		"attempt":      strconv.Itoa(event.RetryCount + 1),
		"data":         string(event.Payload),
	}
	if payload.Name != nil {
		values["name"] = *payload.Name
	}

	args := &redis.XAddArgs{
		Stream: event.TargetStream,
		Values: values,
	}
	if r.cfg.StreamMaxLen > 0 {
		args.MaxLen = r.cfg.StreamMaxLen
		args.Approx = true
	}
	return args, nil
}

// GetPendingCount counts events still waiting to be published.
func (r *Relay) GetPendingCount(ctx context.Context) (int64, error) {
	return r.outbox.CountByStatus(ctx, OutboxStatusPending, OutboxStatusFailed)
}

func (r *Relay) GetDeadLetterCount(ctx context.Context) (int64, error) {
	return r.outbox.CountByStatus(ctx, OutboxStatusDeadLetter)
}
