package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockLevel holds the current on-hand quantity per product along with the
// derived valuation figures. The row is locked FOR UPDATE whenever stock is
// adjusted so concurrent writers serialize per product.
type StockLevel struct {
	ProductID       uuid.UUID       `gorm:"column:product_id;type:uuid;primaryKey"`
	Quantity        int             `gorm:"column:quantity;not null;default:0"`
	MinStock        int             `gorm:"column:min_stock;not null;default:0"`
	TotalCost       decimal.Decimal `gorm:"column:total_cost;type:numeric(14,2);not null;default:0"`
	TotalValue      decimal.Decimal `gorm:"column:total_value;type:numeric(14,2);not null;default:0"`
	ProjectedProfit decimal.Decimal `gorm:"column:projected_profit;type:numeric(14,2);not null;default:0"`
	LastMovementAt  *time.Time      `gorm:"column:last_movement_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt       gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}

// Recalculate refreshes the valuation figures from the quantity and the
// product's prices.
func (s *StockLevel) Recalculate(costPrice, salePrice decimal.Decimal) {
	qty := decimal.NewFromInt(int64(s.Quantity))
	s.TotalCost = costPrice.Mul(qty)
	s.TotalValue = salePrice.Mul(qty)
	s.ProjectedProfit = s.TotalValue.Sub(s.TotalCost)
}
