package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/lromero-dev/stockroom-backend/pkg/db/models"
	"github.com/lromero-dev/stockroom-backend/pkg/enums"
	"github.com/lromero-dev/stockroom-backend/pkg/errors"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
	"github.com/lromero-dev/stockroom-backend/pkg/outbox"
	"github.com/lromero-dev/stockroom-backend/pkg/outbox/idempotency"
	"github.com/lromero-dev/stockroom-backend/pkg/outbox/payloads"
)

const fulfillmentConsumer = "sale-fulfillment"

// Finalizer is the sale surface the worker drives.
type Finalizer interface {
	Finalize(ctx context.Context, saleID uuid.UUID) (*models.Sale, error)
	ForceFail(ctx context.Context, saleID uuid.UUID, reason string, attempts int) (*models.Sale, error)
}

// Consumer drains sale.created events and finalizes each sale with bounded
// retries. Retries apply only to errors marked retryable; anything else has
// already moved the sale to failed and the message is acked.
type Consumer struct {
	finalizer    Finalizer
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger

	maxAttempts int
	backoff     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// Params wires the fulfillment consumer.
type Params struct {
	Finalizer    Finalizer
	Subscription *pubsub.Subscriber
	Idempotency  *idempotency.Manager
	Logg         *logger.Logger
	MaxAttempts  int
	Backoff      time.Duration
	// Sleep is injectable for tests; defaults to a context-aware timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewConsumer builds a fulfillment consumer.
func NewConsumer(p Params) (*Consumer, error) {
	if p.Finalizer == nil {
		return nil, fmt.Errorf("sale finalizer required")
	}
	if p.Subscription == nil {
		return nil, fmt.Errorf("sales subscription required")
	}
	if p.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if p.Logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Backoff <= 0 {
		p.Backoff = 10 * time.Second
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = waitFor
	}
	return &Consumer{
		finalizer:    p.Finalizer,
		subscription: p.Subscription,
		idempotency:  p.Idempotency,
		logg:         p.Logg,
		maxAttempts:  p.MaxAttempts,
		backoff:      p.Backoff,
		sleep:        sleep,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if eventType != "" && eventType != string(enums.OutboxEventSaleCreated) {
		c.logg.Info(logCtx, "skipping non-sale event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, fulfillmentConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload payloads.SaleCreatedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, fulfillmentConsumer, eventID)
		return processResult{nack: true}
	}
	if payload.SaleID == uuid.Nil {
		c.logg.Error(logCtx, "payload missing sale id", nil)
		return processResult{ack: true}
	}

	logCtx = c.logg.WithSaleCode(logCtx, payload.Code)
	if err := c.finalizeWithRetry(logCtx, payload.SaleID); err != nil {
		// The sale has been moved to failed; the message is done either way.
		c.logg.Error(logCtx, "sale finalization exhausted", err)
	}
	return processResult{ack: true}
}

// finalizeWithRetry runs up to maxAttempts full finalize executions with a
// fixed backoff between them, then force-fails the sale with the last error.
func (c *Consumer) finalizeWithRetry(ctx context.Context, saleID uuid.UUID) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		sale, err := c.finalizer.Finalize(ctx, saleID)
		if err == nil {
			attemptCtx := c.logg.WithFields(ctx, map[string]any{
				"attempt": attempt,
				"status":  sale.Status,
			})
			c.logg.Info(attemptCtx, "sale finalized")
			return nil
		}

		lastErr = err
		if !errors.IsRetryable(err) {
			// Finalize already marked the sale failed for non-retryable errors.
			return err
		}

		attemptCtx := c.logg.WithFields(ctx, map[string]any{"attempt": attempt, "error": err.Error()})
		if attempt < c.maxAttempts {
			c.logg.Warn(attemptCtx, "finalize attempt failed, retrying")
			if sleepErr := c.sleep(ctx, c.backoff); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		c.logg.Warn(attemptCtx, "finalize attempts exhausted")
	}

	if _, failErr := c.finalizer.ForceFail(ctx, saleID, lastErr.Error(), c.maxAttempts); failErr != nil {
		c.logg.Error(ctx, "force-failing sale after retry exhaustion", failErr)
	}
	return lastErr
}

func waitFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
