package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lromero-dev/stockroom-backend/pkg/db/models"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
)

const defaultStaleDays = 90

// StaleInventoryJobParams configure the stale inventory sweep.
type StaleInventoryJobParams struct {
	Logger        *logger.Logger
	Ledger        staleLedgerReader
	Catalog       productDeactivator
	ThresholdDays int
}

type staleLedgerReader interface {
	FindStale(ctx context.Context, thresholdDays int) ([]models.StockLevel, error)
}

type productDeactivator interface {
	Deactivate(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// NewStaleInventoryJob builds the cron job that deactivates products whose
// stock has not moved within the threshold window.
func NewStaleInventoryJob(params StaleInventoryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	thresholdDays := params.ThresholdDays
	if thresholdDays <= 0 {
		thresholdDays = defaultStaleDays
	}
	return &staleInventoryJob{
		logg:          params.Logger,
		ledger:        params.Ledger,
		catalog:       params.Catalog,
		thresholdDays: thresholdDays,
		now:           time.Now,
	}, nil
}

type staleInventoryJob struct {
	logg          *logger.Logger
	ledger        staleLedgerReader
	catalog       productDeactivator
	thresholdDays int
	now           func() time.Time
}

func (j *staleInventoryJob) Name() string { return "stale-inventory" }

func (j *staleInventoryJob) Run(ctx context.Context) error {
	levels, err := j.ledger.FindStale(ctx, j.thresholdDays)
	if err != nil {
		return fmt.Errorf("query stale stock levels: %w", err)
	}
	if len(levels) == 0 {
		j.logg.Info(ctx, "no stale inventory found")
		return nil
	}

	ids := make([]uuid.UUID, 0, len(levels))
	for _, level := range levels {
		ids = append(ids, level.ProductID)
	}
	deactivated, err := j.catalog.Deactivate(ctx, ids)
	if err != nil {
		return fmt.Errorf("deactivate stale products: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"threshold_days": j.thresholdDays,
		"stale":          len(ids),
		"deactivated":    deactivated,
	})
	j.logg.Info(logCtx, "stale inventory sweep complete")
	return nil
}
