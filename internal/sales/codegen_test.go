package sales

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lromero-dev/stockroom-backend/pkg/db/models"
)

func TestNextCodeFormatAndSequence(t *testing.T) {
	t.Parallel()

	db := newCodegenTestDB(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	var codes []string
	for i := 0; i < 3; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			code, err := NextCode(ctx, tx, day)
			if err != nil {
				return err
			}
			codes = append(codes, code)
			return nil
		})
		if err != nil {
			t.Fatalf("next code: %v", err)
		}
	}

	want := []string{"SAL-20260314-0001", "SAL-20260314-0002", "SAL-20260314-0003"}
	for i, code := range codes {
		if code != want[i] {
			t.Fatalf("code %d: got %q, want %q", i, code, want[i])
		}
	}
}

func TestNextCodeResetsPerDay(t *testing.T) {
	t.Parallel()

	db := newCodegenTestDB(t)
	ctx := context.Background()
	dayOne := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	dayTwo := time.Date(2026, 3, 15, 0, 1, 0, 0, time.UTC)

	issue := func(at time.Time) string {
		var code string
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			code, err = NextCode(ctx, tx, at)
			return err
		})
		if err != nil {
			t.Fatalf("next code at %s: %v", at, err)
		}
		return code
	}

	if code := issue(dayOne); code != "SAL-20260314-0001" {
		t.Fatalf("unexpected first code: %q", code)
	}
	if code := issue(dayOne); code != "SAL-20260314-0002" {
		t.Fatalf("unexpected second code: %q", code)
	}
	if code := issue(dayTwo); code != "SAL-20260315-0001" {
		t.Fatalf("sequence did not reset on day rollover: %q", code)
	}
}

func TestNextCodeAdvancesCounterRow(t *testing.T) {
	t.Parallel()

	db := newCodegenTestDB(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	const issued = 5
	seen := map[string]bool{}
	for i := 0; i < issued; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			code, err := NextCode(ctx, tx, day)
			if err != nil {
				return err
			}
			if seen[code] {
				t.Fatalf("code %q issued twice", code)
			}
			seen[code] = true
			return nil
		})
		if err != nil {
			t.Fatalf("next code: %v", err)
		}
	}

	var counter models.SaleCodeCounter
	if err := db.First(&counter, "day = ?", day.Format(codeDayFormat)).Error; err != nil {
		t.Fatalf("load counter: %v", err)
	}
	if counter.LastSeq != issued {
		t.Fatalf("expected counter at %d, got %d", issued, counter.LastSeq)
	}
}

func newCodegenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:codegen_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.SaleCodeCounter{}); err != nil {
		t.Fatalf("migrate counter: %v", err)
	}
	return db
}
