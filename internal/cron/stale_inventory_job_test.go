package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"

	"github.com/lromero-dev/stockroom-backend/pkg/db/models"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
)

type fakeStaleLedger struct {
	levels        []models.StockLevel
	err           error
	thresholdDays int
}

func (f *fakeStaleLedger) FindStale(_ context.Context, thresholdDays int) ([]models.StockLevel, error) {
	f.thresholdDays = thresholdDays
	return f.levels, f.err
}

type fakeDeactivator struct {
	ids []uuid.UUID
	err error
}

func (f *fakeDeactivator) Deactivate(_ context.Context, ids []uuid.UUID) (int64, error) {
	f.ids = ids
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(ids)), nil
}

func testJobLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestStaleInventoryJobDeactivatesStaleProducts(t *testing.T) {
	t.Parallel()

	productA := uuid.New()
	productB := uuid.New()
	ledger := &fakeStaleLedger{levels: []models.StockLevel{
		{ProductID: productA},
		{ProductID: productB},
	}}
	catalog := &fakeDeactivator{}

	job, err := NewStaleInventoryJob(StaleInventoryJobParams{
		Logger:  testJobLogger(),
		Ledger:  ledger,
		Catalog: catalog,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != "stale-inventory" {
		t.Fatalf("unexpected job name: %s", job.Name())
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ledger.thresholdDays != defaultStaleDays {
		t.Fatalf("expected default threshold %d, got %d", defaultStaleDays, ledger.thresholdDays)
	}
	if len(catalog.ids) != 2 || catalog.ids[0] != productA || catalog.ids[1] != productB {
		t.Fatalf("unexpected deactivated ids: %v", catalog.ids)
	}
}

func TestStaleInventoryJobNoStaleEntries(t *testing.T) {
	t.Parallel()

	catalog := &fakeDeactivator{}
	job, err := NewStaleInventoryJob(StaleInventoryJobParams{
		Logger:        testJobLogger(),
		Ledger:        &fakeStaleLedger{},
		Catalog:       catalog,
		ThresholdDays: 30,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if catalog.ids != nil {
		t.Fatalf("deactivate must not run with no stale entries: %v", catalog.ids)
	}
}

func TestStaleInventoryJobPropagatesErrors(t *testing.T) {
	t.Parallel()

	job, err := NewStaleInventoryJob(StaleInventoryJobParams{
		Logger:  testJobLogger(),
		Ledger:  &fakeStaleLedger{err: errors.New("db down")},
		Catalog: &fakeDeactivator{},
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected query error to propagate")
	}

	job, err = NewStaleInventoryJob(StaleInventoryJobParams{
		Logger:  testJobLogger(),
		Ledger:  &fakeStaleLedger{levels: []models.StockLevel{{ProductID: uuid.New()}}},
		Catalog: &fakeDeactivator{err: errors.New("update failed")},
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected deactivate error to propagate")
	}
}
