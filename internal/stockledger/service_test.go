package stockledger

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lromero-dev/stockroom-backend/internal/catalog"
	dbpkg "github.com/lromero-dev/stockroom-backend/pkg/db"
	"github.com/lromero-dev/stockroom-backend/pkg/db/models"
	"github.com/lromero-dev/stockroom-backend/pkg/enums"
	pkgerrors "github.com/lromero-dev/stockroom-backend/pkg/errors"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
	"github.com/lromero-dev/stockroom-backend/pkg/outbox"
)

func TestAddStockCreatesLedgerEntryLazily(t *testing.T) {
	t.Parallel()

	env := newLedgerTestEnv(t)
	ctx := context.Background()
	product := env.seedProduct(t, "SKU-001", "100.00", "150.00")

	level, err := env.svc.AddStock(ctx, AdjustmentInput{
		ProductID: product.ID,
		Quantity:  40,
	})
	if err != nil {
		t.Fatalf("add stock: %v", err)
	}
	if level.Quantity != 40 {
		t.Fatalf("expected quantity 40, got %d", level.Quantity)
	}
	if level.LastMovementAt == nil {
		t.Fatal("expected last movement timestamp to be set")
	}
	if !level.TotalCost.Equal(decimal.RequireFromString("4000.00")) {
		t.Fatalf("unexpected total cost: %s", level.TotalCost)
	}
	if !level.TotalValue.Equal(decimal.RequireFromString("6000.00")) {
		t.Fatalf("unexpected total value: %s", level.TotalValue)
	}
	if !level.ProjectedProfit.Equal(decimal.RequireFromString("2000.00")) {
		t.Fatalf("unexpected projected profit: %s", level.ProjectedProfit)
	}

	movements, err := env.svc.ListMovements(ctx, product.ID, 10)
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected 1 movement, got %d", len(movements))
	}
	if movements[0].Direction != enums.MovementDirectionEntry {
		t.Fatalf("unexpected direction: %s", movements[0].Direction)
	}
	if !movements[0].UnitCost.Equal(product.CostPrice) {
		t.Fatalf("movement unit cost %s does not match product cost %s", movements[0].UnitCost, product.CostPrice)
	}
}

func TestRemoveStockInsufficient(t *testing.T) {
	t.Parallel()

	env := newLedgerTestEnv(t)
	ctx := context.Background()
	product := env.seedProduct(t, "SKU-002", "10.00", "20.00")
	env.seedStock(t, product.ID, 5)

	_, err := env.svc.RemoveStock(ctx, AdjustmentInput{
		ProductID: product.ID,
		Quantity:  6,
	})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected detail map, got %T", typed.Details())
	}
	if details["requested"] != 6 || details["available"] != 5 {
		t.Fatalf("unexpected details: %+v", details)
	}

	// The failed removal must leave no trace in the ledger.
	var level models.StockLevel
	if err := env.conn.First(&level, "product_id = ?", product.ID).Error; err != nil {
		t.Fatalf("load ledger entry: %v", err)
	}
	if level.Quantity != 5 {
		t.Fatalf("expected quantity unchanged at 5, got %d", level.Quantity)
	}
}

func TestRemoveStockWithoutLedgerEntry(t *testing.T) {
	t.Parallel()

	env := newLedgerTestEnv(t)
	product := env.seedProduct(t, "SKU-003", "10.00", "20.00")

	_, err := env.svc.RemoveStock(context.Background(), AdjustmentInput{
		ProductID: product.ID,
		Quantity:  1,
	})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAdjustRejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()

	env := newLedgerTestEnv(t)
	product := env.seedProduct(t, "SKU-004", "10.00", "20.00")

	for _, qty := range []int{0, -3} {
		_, err := env.svc.AddStock(context.Background(), AdjustmentInput{
			ProductID: product.ID,
			Quantity:  qty,
		})
		if err == nil {
			t.Fatalf("expected validation error for quantity %d", qty)
		}
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("unexpected error for quantity %d: %v", qty, err)
		}
	}
}

func TestCheckAvailability(t *testing.T) {
	t.Parallel()

	env := newLedgerTestEnv(t)
	ctx := context.Background()
	product := env.seedProduct(t, "SKU-005", "10.00", "20.00")
	env.seedStock(t, product.ID, 8)

	onHand, err := env.svc.CheckAvailability(ctx, product.ID, 8)
	if err != nil {
		t.Fatalf("check availability: %v", err)
	}
	if onHand != 8 {
		t.Fatalf("expected 8 on hand, got %d", onHand)
	}

	if _, err := env.svc.CheckAvailability(ctx, product.ID, 9); err == nil {
		t.Fatal("expected insufficient stock error")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMovementSumMatchesQuantity(t *testing.T) {
	t.Parallel()

	env := newLedgerTestEnv(t)
	ctx := context.Background()
	product := env.seedProduct(t, "SKU-006", "10.00", "20.00")

	steps := []struct {
		add bool
		qty int
	}{
		{add: true, qty: 50},
		{add: false, qty: 12},
		{add: true, qty: 7},
		{add: false, qty: 20},
	}
	for _, step := range steps {
		input := AdjustmentInput{ProductID: product.ID, Quantity: step.qty}
		var err error
		if step.add {
			_, err = env.svc.AddStock(ctx, input)
		} else {
			_, err = env.svc.RemoveStock(ctx, input)
		}
		if err != nil {
			t.Fatalf("adjust %+v: %v", step, err)
		}
	}

	var level models.StockLevel
	if err := env.conn.First(&level, "product_id = ?", product.ID).Error; err != nil {
		t.Fatalf("load ledger entry: %v", err)
	}
	sum, err := MovementBalance(ctx, env.repo, product.ID)
	if err != nil {
		t.Fatalf("movement sum: %v", err)
	}
	if sum != level.Quantity {
		t.Fatalf("movement sum %d does not reconcile with quantity %d", sum, level.Quantity)
	}
	if level.Quantity != 25 {
		t.Fatalf("expected quantity 25, got %d", level.Quantity)
	}
}

func TestFindStale(t *testing.T) {
	t.Parallel()

	env := newLedgerTestEnv(t)
	ctx := context.Background()
	fresh := env.seedProduct(t, "SKU-007", "10.00", "20.00")
	stale := env.seedProduct(t, "SKU-008", "10.00", "20.00")
	never := env.seedProduct(t, "SKU-009", "10.00", "20.00")

	now := time.Now().UTC()
	recent := now.AddDate(0, 0, -10)
	old := now.AddDate(0, 0, -120)
	for _, level := range []models.StockLevel{
		{ProductID: fresh.ID, Quantity: 3, LastMovementAt: &recent},
		{ProductID: stale.ID, Quantity: 3, LastMovementAt: &old},
		{ProductID: never.ID, Quantity: 3},
	} {
		if err := env.conn.Create(&level).Error; err != nil {
			t.Fatalf("seed ledger entry: %v", err)
		}
	}

	levels, err := env.svc.FindStale(ctx, 90)
	if err != nil {
		t.Fatalf("find stale: %v", err)
	}
	found := map[uuid.UUID]bool{}
	for _, level := range levels {
		found[level.ProductID] = true
	}
	if len(levels) != 2 || !found[stale.ID] || !found[never.ID] {
		t.Fatalf("unexpected stale set: %+v", found)
	}

	if _, err := env.svc.FindStale(ctx, 0); err == nil {
		t.Fatal("expected validation error for zero threshold")
	}
}

type ledgerTestEnv struct {
	conn *gorm.DB
	repo Repository
	svc  Service
}

func newLedgerTestEnv(t *testing.T) *ledgerTestEnv {
	t.Helper()

	dsn := "file:stockledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Product{},
		&models.StockLevel{},
		&models.StockMovement{},
		&models.OutboxEvent{},
		&models.AuditRecord{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "stockledger-test", Output: io.Discard})
	repo := NewRepository(conn)
	svc, err := NewService(Params{
		DB:      dbpkg.NewWithConn(conn),
		Repo:    repo,
		Catalog: catalog.NewRepository(conn),
		Outbox:  outbox.NewService(outbox.NewRepository(conn), logg),
		Logg:    logg,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &ledgerTestEnv{conn: conn, repo: repo, svc: svc}
}

func (e *ledgerTestEnv) seedProduct(t *testing.T, sku, cost, sale string) *models.Product {
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

func (e *ledgerTestEnv) seedStock(t *testing.T, productID uuid.UUID, qty int) {
	t.Helper()
	if err := e.conn.Create(&models.StockLevel{ProductID: productID, Quantity: qty}).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}
