package reports

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/multierr"

	"github.com/lromero-dev/stockroom-backend/pkg/cache"
	"github.com/lromero-dev/stockroom-backend/pkg/enums"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
	"github.com/lromero-dev/stockroom-backend/pkg/outbox"
	"github.com/lromero-dev/stockroom-backend/pkg/outbox/payloads"
)

// InvalidationConsumer drops the derived read caches whenever a sale reaches
// completed. Invalidation is coarse: any completion clears the whole report
// cache because report keys carry no date-range information.
type InvalidationConsumer struct {
	cache        *cache.Cache
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

// NewInvalidationConsumer builds the cache invalidation consumer.
func NewInvalidationConsumer(c *cache.Cache, subscription *pubsub.Subscriber, logg *logger.Logger) (*InvalidationConsumer, error) {
	if c == nil {
		return nil, fmt.Errorf("cache required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &InvalidationConsumer{cache: c, subscription: subscription, logg: logg}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *InvalidationConsumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

func (c *InvalidationConsumer) process(ctx context.Context, msg *pubsub.Message) bool {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.OutboxEventSaleCompleted) {
		return true
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	var payload payloads.SaleCompletedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return true
	}

	logCtx = c.logg.WithSaleCode(logCtx, payload.Code)
	var errs []error
	if err := c.cache.Invalidate(ctx, InventorySummaryKey(c.cache)); err != nil {
		errs = append(errs, err)
	}
	if err := c.cache.InvalidatePrefix(ctx, SalesReportPrefix(c.cache)); err != nil {
		errs = append(errs, err)
	}
	if combined := multierr.Combine(errs...); combined != nil {
		c.logg.Error(logCtx, "invalidating read caches", combined)
		return false
	}

	c.logg.Info(logCtx, "read caches invalidated")
	return true
}
