package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lromero-dev/stockroom-backend/pkg/enums"
)

// Sale is the transaction header. Totals are derived from the items and
// frozen at creation time.
type Sale struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code             string           `gorm:"column:code;not null;uniqueIndex"`
	Status           enums.SaleStatus `gorm:"column:status;not null;default:pending"`
	TotalAmount      decimal.Decimal  `gorm:"column:total_amount;type:numeric(14,2);not null;default:0"`
	TotalCost        decimal.Decimal  `gorm:"column:total_cost;type:numeric(14,2);not null;default:0"`
	ProfitMargin     decimal.Decimal  `gorm:"column:profit_margin;type:numeric(14,2);not null;default:0"`
	ProfitPercentage decimal.Decimal  `gorm:"column:profit_percentage;type:numeric(8,2);not null;default:0"`
	FailureReason    *string          `gorm:"column:failure_reason"`
	Attempts         int              `gorm:"column:attempts;not null;default:0"`
	ActorID          *uuid.UUID       `gorm:"column:actor_id;type:uuid"`
	Items            []SaleItem       `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	CompletedAt      *time.Time       `gorm:"column:completed_at"`
	CancelledAt      *time.Time       `gorm:"column:cancelled_at"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt        gorm.DeletedAt   `gorm:"column:deleted_at;index"`
}

func (s *Sale) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// CalculateTotals recomputes the header figures from the items. Profit
// percentage is zero when cost is zero.
func (s *Sale) CalculateTotals() {
	total := decimal.Zero
	cost := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.Subtotal)
		cost = cost.Add(item.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	s.TotalAmount = total
	s.TotalCost = cost
	s.ProfitMargin = total.Sub(cost)
	if cost.IsPositive() {
		s.ProfitPercentage = s.ProfitMargin.Div(cost).Mul(decimal.NewFromInt(100)).Round(2)
	} else {
		s.ProfitPercentage = decimal.Zero
	}
}
