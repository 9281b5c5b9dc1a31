package fulfillment

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lromero-dev/stockroom-backend/pkg/db/models"
	"github.com/lromero-dev/stockroom-backend/pkg/enums"
	pkgerrors "github.com/lromero-dev/stockroom-backend/pkg/errors"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
)

type fakeFinalizer struct {
	finalizeErrs []error
	finalizeCall int

	forceFailed  bool
	failReason   string
	failAttempts int
}

func (f *fakeFinalizer) Finalize(_ context.Context, saleID uuid.UUID) (*models.Sale, error) {
	f.finalizeCall++
	if len(f.finalizeErrs) > 0 {
		err := f.finalizeErrs[0]
		f.finalizeErrs = f.finalizeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &models.Sale{ID: saleID, Status: enums.SaleStatusCompleted}, nil
}

func (f *fakeFinalizer) ForceFail(_ context.Context, saleID uuid.UUID, reason string, attempts int) (*models.Sale, error) {
	f.forceFailed = true
	f.failReason = reason
	f.failAttempts = attempts
	return &models.Sale{ID: saleID, Status: enums.SaleStatusFailed}, nil
}

func newTestConsumer(finalizer Finalizer) *Consumer {
	return &Consumer{
		finalizer:   finalizer,
		logg:        logger.New(logger.Options{ServiceName: "fulfillment-test", Output: io.Discard}),
		maxAttempts: 3,
		backoff:     10 * time.Second,
		sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func TestFinalizeSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	finalizer := &fakeFinalizer{}
	consumer := newTestConsumer(finalizer)

	if err := consumer.finalizeWithRetry(context.Background(), uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finalizer.finalizeCall != 1 {
		t.Fatalf("expected 1 attempt, got %d", finalizer.finalizeCall)
	}
	if finalizer.forceFailed {
		t.Fatal("force fail must not run on success")
	}
}

func TestFinalizeRetriesRetryableErrors(t *testing.T) {
	t.Parallel()

	retryable := pkgerrors.New(pkgerrors.CodeLockTimeout, "row lock busy")
	finalizer := &fakeFinalizer{finalizeErrs: []error{retryable, retryable, nil}}
	consumer := newTestConsumer(finalizer)

	if err := consumer.finalizeWithRetry(context.Background(), uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finalizer.finalizeCall != 3 {
		t.Fatalf("expected 3 attempts, got %d", finalizer.finalizeCall)
	}
	if finalizer.forceFailed {
		t.Fatal("force fail must not run when a retry succeeds")
	}
}

func TestFinalizeExhaustionForceFails(t *testing.T) {
	t.Parallel()

	retryable := pkgerrors.New(pkgerrors.CodeInsufficientStock, "requested 5, only 2 available")
	finalizer := &fakeFinalizer{finalizeErrs: []error{retryable, retryable, retryable}}
	consumer := newTestConsumer(finalizer)

	err := consumer.finalizeWithRetry(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if finalizer.finalizeCall != 3 {
		t.Fatalf("expected 3 attempts, got %d", finalizer.finalizeCall)
	}
	if !finalizer.forceFailed {
		t.Fatal("expected sale to be force-failed")
	}
	if finalizer.failAttempts != 3 {
		t.Fatalf("expected 3 attempts recorded, got %d", finalizer.failAttempts)
	}
	if finalizer.failReason == "" {
		t.Fatal("expected the last error preserved as failure reason")
	}
}

func TestFinalizeNonRetryableStopsImmediately(t *testing.T) {
	t.Parallel()

	finalizer := &fakeFinalizer{finalizeErrs: []error{
		pkgerrors.New(pkgerrors.CodeNotFound, "product missing"),
	}}
	consumer := newTestConsumer(finalizer)

	err := consumer.finalizeWithRetry(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error")
	}
	if finalizer.finalizeCall != 1 {
		t.Fatalf("expected a single attempt, got %d", finalizer.finalizeCall)
	}
	// Finalize already marked the sale failed; the consumer must not repeat it.
	if finalizer.forceFailed {
		t.Fatal("force fail must not run for non-retryable errors")
	}
}

func TestFinalizeSleepAbortsWithContext(t *testing.T) {
	t.Parallel()

	retryable := pkgerrors.New(pkgerrors.CodeLockTimeout, "row lock busy")
	finalizer := &fakeFinalizer{finalizeErrs: []error{retryable, retryable, retryable}}
	consumer := newTestConsumer(finalizer)
	consumer.sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }

	err := consumer.finalizeWithRetry(context.Background(), uuid.New())
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if finalizer.finalizeCall != 1 {
		t.Fatalf("expected 1 attempt before shutdown, got %d", finalizer.finalizeCall)
	}
	if finalizer.forceFailed {
		t.Fatal("shutdown must not force-fail the sale")
	}
}
