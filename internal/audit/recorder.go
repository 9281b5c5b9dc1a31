package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lromero-dev/stockroom-backend/pkg/db/models"
	"github.com/lromero-dev/stockroom-backend/pkg/enums"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
)

// Entry describes one auditable action.
type Entry struct {
	Action     enums.AuditAction
	EntityType string
	EntityID   uuid.UUID
	ActorID    *uuid.UUID
	OldValues  any
	NewValues  any
	IPAddress  *string
	UserAgent  *string
}

// Recorder writes audit records. Writes are best effort: a failed write is
// logged and swallowed so it can never roll back the operation being audited.
type Recorder struct {
	db   *gorm.DB
	logg *logger.Logger
}

func NewRecorder(db *gorm.DB, logg *logger.Logger) *Recorder {
	return &Recorder{db: db, logg: logg}
}

// Record persists the entry. Safe to call on a nil recorder.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.db == nil {
		return
	}

	record := models.AuditRecord{
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		ActorID:    entry.ActorID,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
	}

	if entry.OldValues != nil {
		if raw, err := json.Marshal(entry.OldValues); err == nil {
			record.OldValues = raw
		}
	}
	if entry.NewValues != nil {
		if raw, err := json.Marshal(entry.NewValues); err == nil {
			record.NewValues = raw
		}
	}

	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil && r.logg != nil {
		fields := map[string]any{
			"action":      entry.Action,
			"entity_type": entry.EntityType,
			"entity_id":   entry.EntityID.String(),
			"error":       err.Error(),
		}
		r.logg.Warn(r.logg.WithFields(ctx, fields), "audit write failed")
	}
}
