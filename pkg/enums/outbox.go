package enums

// OutboxEventType names the domain events emitted through the outbox.
type OutboxEventType string

const (
	OutboxEventSaleCreated   OutboxEventType = "sale.created"
	OutboxEventSaleCompleted OutboxEventType = "sale.completed"
	OutboxEventSaleFailed    OutboxEventType = "sale.failed"
	OutboxEventSaleCancelled OutboxEventType = "sale.cancelled"
	OutboxEventStockAdjusted OutboxEventType = "stock.adjusted"
)

func (o OutboxEventType) String() string {
	return string(o)
}

// OutboxStatus tracks the publish lifecycle of an outbox row.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

func (o OutboxStatus) String() string {
	return string(o)
}

// OutboxDLQErrorReason classifies why an outbox row was dead-lettered.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonResolveFailed OutboxDLQErrorReason = "resolve_failed"
	OutboxDLQReasonPublishFailed OutboxDLQErrorReason = "publish_failed"
	OutboxDLQReasonMaxAttempts   OutboxDLQErrorReason = "max_attempts"
)

func (o OutboxDLQErrorReason) String() string {
	return string(o)
}

// AggregateType names the entity an outbox event is anchored to.
type AggregateType string

const (
	AggregateTypeSale    AggregateType = "sale"
	AggregateTypeProduct AggregateType = "product"
)

func (a AggregateType) String() string {
	return string(a)
}
