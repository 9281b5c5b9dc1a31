package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleLine mirrors one sale item inside an event payload.
type SaleLine struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	UnitCost  decimal.Decimal `json:"unitCost"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// SaleCreatedEvent is published when a sale is recorded and queued for
// fulfillment.
type SaleCreatedEvent struct {
	SaleID      uuid.UUID       `json:"saleId"`
	Code        string          `json:"code"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Items       []SaleLine      `json:"items"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// SaleCompletedEvent is published after fulfillment commits the stock exits.
type SaleCompletedEvent struct {
	SaleID       uuid.UUID       `json:"saleId"`
	Code         string          `json:"code"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	ProfitMargin decimal.Decimal `json:"profitMargin"`
	CompletedAt  time.Time       `json:"completedAt"`
}

// SaleFailedEvent is published when fulfillment gives up on a sale.
type SaleFailedEvent struct {
	SaleID   uuid.UUID `json:"saleId"`
	Code     string    `json:"code"`
	Reason   string    `json:"reason"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failedAt"`
}

// SaleCancelledEvent is published when a sale is cancelled.
type SaleCancelledEvent struct {
	SaleID      uuid.UUID `json:"saleId"`
	Code        string    `json:"code"`
	CancelledAt time.Time `json:"cancelledAt"`
}

// StockAdjustedEvent is published for manual or corrective stock changes.
type StockAdjustedEvent struct {
	ProductID  uuid.UUID `json:"productId"`
	Direction  string    `json:"direction"`
	Quantity   int       `json:"quantity"`
	NewOnHand  int       `json:"newOnHand"`
	Reference  string    `json:"reference"`
	AdjustedAt time.Time `json:"adjustedAt"`
}
