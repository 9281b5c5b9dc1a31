package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lromero-dev/stockroom-backend/pkg/enums"
)

// StockMovement is one append-only ledger row. Movements are never updated
// or deleted once written.
type StockMovement struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID               `gorm:"column:product_id;type:uuid;not null;index"`
	Direction   enums.MovementDirection `gorm:"column:direction;not null"`
	Quantity    int                     `gorm:"column:quantity;not null"`
	UnitCost    decimal.Decimal         `gorm:"column:unit_cost;type:numeric(12,2);not null"`
	Reference   enums.MovementReference `gorm:"column:reference;not null"`
	ReferenceID *uuid.UUID              `gorm:"column:reference_id;type:uuid;index"`
	Note        *string                 `gorm:"column:note"`
	ActorID     *uuid.UUID              `gorm:"column:actor_id;type:uuid"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	DeletedAt   gorm.DeletedAt          `gorm:"column:deleted_at;index"`
}

func (m *StockMovement) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
