package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lromero-dev/stockroom-backend/pkg/enums"
)

// AuditRecord captures who changed what. Writing one is best effort and
// never blocks the operation being audited.
type AuditRecord struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Action     enums.AuditAction `gorm:"column:action;not null"`
	EntityType string            `gorm:"column:entity_type;not null;index:idx_audit_entity"`
	EntityID   uuid.UUID         `gorm:"column:entity_id;type:uuid;index:idx_audit_entity"`
	ActorID    *uuid.UUID        `gorm:"column:actor_id;type:uuid"`
	OldValues  json.RawMessage   `gorm:"column:old_values;type:jsonb"`
	NewValues  json.RawMessage   `gorm:"column:new_values;type:jsonb"`
	IPAddress  *string           `gorm:"column:ip_address"`
	UserAgent  *string           `gorm:"column:user_agent"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (a *AuditRecord) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
