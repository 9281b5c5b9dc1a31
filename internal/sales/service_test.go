package sales

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lromero-dev/stockroom-backend/internal/catalog"
	"github.com/lromero-dev/stockroom-backend/internal/stockledger"
	dbpkg "github.com/lromero-dev/stockroom-backend/pkg/db"
	"github.com/lromero-dev/stockroom-backend/pkg/db/models"
	"github.com/lromero-dev/stockroom-backend/pkg/enums"
	pkgerrors "github.com/lromero-dev/stockroom-backend/pkg/errors"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
	"github.com/lromero-dev/stockroom-backend/pkg/outbox"
)

var testClock = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func TestCreateSaleSnapshotsPricesAndTotals(t *testing.T) {
	t.Parallel()

	env := newSalesTestEnv(t)
	ctx := context.Background()
	product := env.seedProduct(t, "WIDGET-1", "100.00", "150.00")
	env.seedStock(t, product.ID, 100)

	sale, err := env.svc.Create(ctx, CreateInput{
		Items: []CreateItemInput{{ProductID: product.ID, Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if sale.Status != enums.SaleStatusPending {
		t.Fatalf("expected pending, got %s", sale.Status)
	}
	if sale.Code != "SAL-20260314-0001" {
		t.Fatalf("unexpected sale code: %q", sale.Code)
	}
	if !sale.TotalAmount.Equal(decimal.RequireFromString("750.00")) {
		t.Fatalf("unexpected total amount: %s", sale.TotalAmount)
	}
	if !sale.TotalCost.Equal(decimal.RequireFromString("500.00")) {
		t.Fatalf("unexpected total cost: %s", sale.TotalCost)
	}
	if !sale.ProfitMargin.Equal(decimal.RequireFromString("250.00")) {
		t.Fatalf("unexpected profit margin: %s", sale.ProfitMargin)
	}
	if !sale.ProfitPercentage.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("unexpected profit percentage: %s", sale.ProfitPercentage)
	}
	if len(sale.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(sale.Items))
	}
	item := sale.Items[0]
	if !item.UnitPrice.Equal(product.SalePrice) || !item.UnitCost.Equal(product.CostPrice) {
		t.Fatalf("item did not snapshot prices: %+v", item)
	}

	// Creation only checks availability; stock is untouched until finalize.
	var level models.StockLevel
	if err := env.conn.First(&level, "product_id = ?", product.ID).Error; err != nil {
		t.Fatalf("load ledger entry: %v", err)
	}
	if level.Quantity != 100 {
		t.Fatalf("expected stock unchanged at 100, got %d", level.Quantity)
	}

	if got := env.countOutbox(t, enums.OutboxEventSaleCreated); got != 1 {
		t.Fatalf("expected 1 sale.created event, got %d", got)
	}
}

func TestCreateSaleCodesIncrement(t *testing.T) {
	t.Parallel()

	env := newSalesTestEnv(t)
	ctx := context.Background()
	product := env.seedProduct(t, "WIDGET-2", "10.00", "15.00")
	env.seedStock(t, product.ID, 100)

	for i, want := range []string{"SAL-20260314-0001", "SAL-20260314-0002"} {
		sale, err := env.svc.Create(ctx, CreateInput{
			Items: []CreateItemInput{{ProductID: product.ID, Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("create sale %d: %v", i, err)
		}
		if sale.Code != want {
			t.Fatalf("sale %d: got code %q, want %q", i, sale.Code, want)
		}
	}
}

func TestCreateSaleInsufficientStock(t *testing.T) {
	t.Parallel()

	env := newSalesTestEnv(t)
	ctx := context.Background()
	product := env.seedProduct(t, "WIDGET-3", "10.00", "15.00")
	env.seedStock(t, product.ID, 5)

	_, err := env.svc.Create(ctx, CreateInput{
		Items: []CreateItemInput{{ProductID: product.ID, Quantity: 10}},
	})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int64
	if err := env.conn.Model(&models.Sale{}).Count(&count).Error; err != nil {
		t.Fatalf("count sales: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no sale rows, got %d", count)
	}
}

func TestCreateSaleRejectsInactiveAndUnknownProducts(t *testing.T) {
	t.Parallel()

	env := newSalesTestEnv(t)
	ctx := context.Background()
	inactive := env.seedProduct(t, "WIDGET-4", "10.00", "15.00")
	if err := env.conn.Model(&models.Product{}).
		Where("id = ?", inactive.ID).
		Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate product: %v", err)
	}

	_, err := env.svc.Create(ctx, CreateInput{
		Items: []CreateItemInput{{ProductID: inactive.ID, Quantity: 1}},
	})
	if err == nil {
		t.Fatal("expected validation error for inactive product")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = env.svc.Create(ctx, CreateInput{
		Items: []CreateItemInput{{ProductID: uuid.New(), Quantity: 1}},
	})
	if err == nil {
		t.Fatal("expected not found error for unknown product")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFinalizeCompletesSaleAndDeductsStock(t *testing.T) {
	t.Parallel()

	env := newSalesTestEnv(t)
	ctx := context.Background()
	product := env.seedProduct(t, "WIDGET-5", "100.00", "150.00")
	env.seedStock(t, product.ID, 100)

	sale, err := env.svc.Create(ctx, CreateInput{
		Items: []CreateItemInput{{ProductID: product.ID, Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	finalized, err := env.svc.Finalize(ctx, sale.ID)
	if err != nil {
		t.Fatalf("finalize sale: %v", err)
	}
	if finalized.Status != enums.SaleStatusCompleted {
		t.Fatalf("expected completed, got %s", finalized.Status)
	}
	if finalized.CompletedAt == nil {
		t.Fatal("expected completion timestamp")
	}

	var level models.StockLevel
	if err := env.conn.First(&level, "product_id = ?", product.ID).Error; err != nil {
		t.Fatalf("load ledger entry: %v", err)
	}
	if level.Quantity != 95 {
		t.Fatalf("expected stock 95 after fulfillment, got %d", level.Quantity)
	}

	var movements []models.StockMovement
	if err := env.conn.Where("product_id = ?", product.ID).Find(&movements).Error; err != nil {
		t.Fatalf("load movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected 1 movement, got %d", len(movements))
	}
	movement := movements[0]
	if movement.Direction != enums.MovementDirectionExit {
		t.Fatalf("unexpected direction: %s", movement.Direction)
	}
	if movement.Quantity != 5 {
		t.Fatalf("unexpected movement quantity: %d", movement.Quantity)
	}
	if !movement.UnitCost.Equal(product.CostPrice) {
		t.Fatalf("movement unit cost %s does not match product cost", movement.UnitCost)
	}
	if movement.Reference != enums.MovementReferenceSale {
		t.Fatalf("unexpected reference: %s", movement.Reference)
	}
	if movement.ReferenceID == nil || *movement.ReferenceID != sale.ID {
		t.Fatalf("movement does not reference the sale: %+v", movement.ReferenceID)
	}

	if got := env.countOutbox(t, enums.OutboxEventSaleCompleted); got != 1 {
		t.Fatalf("expected 1 sale.completed event, got %d", got)
	}

	// Finalizing again is an idempotent no-op.
	again, err := env.svc.Finalize(ctx, sale.ID)
	if err != nil {
		t.Fatalf("finalize twice: %v", err)
	}
	if again.Status != enums.SaleStatusCompleted {
		t.Fatalf("expected completed, got %s", again.Status)
	}
	if err := env.conn.Where("product_id = ?", product.ID).Find(&movements).Error; err != nil {
		t.Fatalf("reload movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("second finalize deducted stock again: %d movements", len(movements))
	}
}

func TestFinalizeInsufficientStockLeavesSalePending(t *testing.T) {
	t.Parallel()

	env := newSalesTestEnv(t)
	ctx := context.Background()
	product := env.seedProduct(t, "WIDGET-6", "10.00", "15.00")
	env.seedStock(t, product.ID, 5)

	sale, err := env.svc.Create(ctx, CreateInput{
		Items: []CreateItemInput{{ProductID: product.ID, Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	// Stock shrinks between creation and fulfillment.
	if err := env.conn.Model(&models.StockLevel{}).
		Where("product_id = ?", product.ID).
		Update("quantity", 2).Error; err != nil {
		t.Fatalf("shrink stock: %v", err)
	}

	_, err = env.svc.Finalize(ctx, sale.ID)
	if err == nil {
		t.Fatal("expected finalize to fail")
	}
	if !pkgerrors.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}

	reloaded, err := env.svc.Get(ctx, sale.ID)
	if err != nil {
		t.Fatalf("reload sale: %v", err)
	}
	if reloaded.Status != enums.SaleStatusPending {
		t.Fatalf("expected sale to stay pending for retry, got %s", reloaded.Status)
	}

	var movementCount int64
	if err := env.conn.Model(&models.StockMovement{}).
		Where("product_id = ?", product.ID).
		Count(&movementCount).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	if movementCount != 0 {
		t.Fatalf("failed finalize wrote %d movements", movementCount)
	}
}

func TestCancelTransitions(t *testing.T) {
	t.Parallel()

	env := newSalesTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		status   enums.SaleStatus
		expectOK bool
	}{
		{enums.SaleStatusPending, true},
		{enums.SaleStatusFailed, true},
		{enums.SaleStatusProcessing, false},
		{enums.SaleStatusCompleted, false},
		{enums.SaleStatusCancelled, false},
	}
	for i, tc := range cases {
		sale := env.seedSale(t, fmt.Sprintf("SAL-20260314-%04d", i+1), tc.status)

		cancelled, err := env.svc.Cancel(ctx, sale.ID, nil)
		if tc.expectOK {
			if err != nil {
				t.Fatalf("cancel from %s: %v", tc.status, err)
			}
			if cancelled.Status != enums.SaleStatusCancelled {
				t.Fatalf("cancel from %s: got status %s", tc.status, cancelled.Status)
			}
			if cancelled.CancelledAt == nil {
				t.Fatalf("cancel from %s: missing cancellation timestamp", tc.status)
			}
			continue
		}
		if err == nil {
			t.Fatalf("cancel from %s: expected state conflict", tc.status)
		}
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
			t.Fatalf("cancel from %s: unexpected error %v", tc.status, err)
		}
	}

	if got := env.countOutbox(t, enums.OutboxEventSaleCancelled); got != 2 {
		t.Fatalf("expected 2 sale.cancelled events, got %d", got)
	}
}

func TestCancelUnknownSale(t *testing.T) {
	t.Parallel()

	env := newSalesTestEnv(t)
	_, err := env.svc.Cancel(context.Background(), uuid.New(), nil)
	if err == nil {
		t.Fatal("expected not found error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestForceFail(t *testing.T) {
	t.Parallel()

	env := newSalesTestEnv(t)
	ctx := context.Background()
	sale := env.seedSale(t, "SAL-20260314-0042", enums.SaleStatusPending)

	failed, err := env.svc.ForceFail(ctx, sale.ID, "stock contention", 3)
	if err != nil {
		t.Fatalf("force fail: %v", err)
	}
	if failed.Status != enums.SaleStatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
	if failed.FailureReason == nil || *failed.FailureReason != "stock contention" {
		t.Fatalf("unexpected failure reason: %v", failed.FailureReason)
	}
	if failed.Attempts != 3 {
		t.Fatalf("expected 3 attempts recorded, got %d", failed.Attempts)
	}

	// A second force-fail updates the reason but emits no second event.
	again, err := env.svc.ForceFail(ctx, sale.ID, "still failing", 0)
	if err != nil {
		t.Fatalf("force fail twice: %v", err)
	}
	if again.Status != enums.SaleStatusFailed {
		t.Fatalf("expected failed, got %s", again.Status)
	}
	if got := env.countOutbox(t, enums.OutboxEventSaleFailed); got != 1 {
		t.Fatalf("expected 1 sale.failed event, got %d", got)
	}

	// Terminal sales are left untouched.
	completed := env.seedSale(t, "SAL-20260314-0043", enums.SaleStatusCompleted)
	untouched, err := env.svc.ForceFail(ctx, completed.ID, "too late", 0)
	if err != nil {
		t.Fatalf("force fail completed: %v", err)
	}
	if untouched.Status != enums.SaleStatusCompleted {
		t.Fatalf("completed sale was overwritten: %s", untouched.Status)
	}
}

func TestGetByCode(t *testing.T) {
	t.Parallel()

	env := newSalesTestEnv(t)
	ctx := context.Background()
	seeded := env.seedSale(t, "SAL-20260314-0777", enums.SaleStatusPending)

	sale, err := env.svc.GetByCode(ctx, seeded.Code)
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if sale.ID != seeded.ID {
		t.Fatalf("wrong sale returned: %s", sale.ID)
	}

	if _, err := env.svc.GetByCode(ctx, "SAL-19990101-0001"); err == nil {
		t.Fatal("expected not found error")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

type salesTestEnv struct {
	conn *gorm.DB
	svc  Service
}

func newSalesTestEnv(t *testing.T) *salesTestEnv {
	t.Helper()

	dsn := "file:sales_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Product{},
		&models.StockLevel{},
		&models.StockMovement{},
		&models.Sale{},
		&models.SaleItem{},
		&models.SaleCodeCounter{},
		&models.OutboxEvent{},
		&models.AuditRecord{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "sales-test", Output: io.Discard})
	client := dbpkg.NewWithConn(conn)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)
	catalogRepo := catalog.NewRepository(conn)

	ledgerSvc, err := stockledger.NewService(stockledger.Params{
		DB:      client,
		Repo:    stockledger.NewRepository(conn),
		Catalog: catalogRepo,
		Outbox:  outboxSvc,
		Logg:    logg,
	})
	if err != nil {
		t.Fatalf("new ledger service: %v", err)
	}

	svc, err := NewService(Params{
		DB:      client,
		Repo:    NewRepository(conn),
		Catalog: catalogRepo,
		Ledger:  ledgerSvc,
		Outbox:  outboxSvc,
		Logg:    logg,
		Now:     func() time.Time { return testClock },
	})
	if err != nil {
		t.Fatalf("new sales service: %v", err)
	}
	return &salesTestEnv{conn: conn, svc: svc}
}

func (e *salesTestEnv) seedProduct(t *testing.T, sku, cost, sale string) *models.Product {
	t.Helper()
	product := &models.Product{
		SKU:       sku,
		Name:      "Product " + sku,
		CostPrice: decimal.RequireFromString(cost),
		SalePrice: decimal.RequireFromString(sale),
		IsActive:  true,
	}
	if err := e.conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func (e *salesTestEnv) seedStock(t *testing.T, productID uuid.UUID, qty int) {
	t.Helper()
	if err := e.conn.Create(&models.StockLevel{ProductID: productID, Quantity: qty}).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func (e *salesTestEnv) seedSale(t *testing.T, code string, status enums.SaleStatus) *models.Sale {
	t.Helper()
	sale := &models.Sale{Code: code, Status: status}
	if err := e.conn.Create(sale).Error; err != nil {
		t.Fatalf("seed sale: %v", err)
	}
	return sale
}

func (e *salesTestEnv) countOutbox(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	if err := e.conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", eventType).
		Count(&count).Error; err != nil {
		t.Fatalf("count outbox events: %v", err)
	}
	return count
}
