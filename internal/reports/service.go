package reports

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lromero-dev/stockroom-backend/pkg/cache"
	"github.com/lromero-dev/stockroom-backend/pkg/enums"
	"github.com/lromero-dev/stockroom-backend/pkg/errors"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
)

// Service serves the cached read models. The cache is advisory: every miss
// or redis failure recomputes from the primary store.
type Service interface {
	InventorySummary(ctx context.Context) (*InventorySummary, error)
	SalesReport(ctx context.Context, filter ReportFilter) (*SalesReport, error)
}

// Params wires the reports service.
type Params struct {
	DB           *gorm.DB
	Cache        *cache.Cache
	InventoryTTL time.Duration
	ReportTTL    time.Duration
	Logg         *logger.Logger
}

type service struct {
	db           *gorm.DB
	cache        *cache.Cache
	inventoryTTL time.Duration
	reportTTL    time.Duration
	logg         *logger.Logger
}

// InventoryItemSummary is one product line of the inventory read model.
type InventoryItemSummary struct {
	ProductID       uuid.UUID       `json:"product_id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity"`
	MinStock        int             `json:"min_stock"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	TotalValue      decimal.Decimal `json:"total_value"`
	ProjectedProfit decimal.Decimal `json:"projected_profit"`
	LastMovementAt  *time.Time      `json:"last_movement_at"`
}

// InventorySummary is the whole-inventory read model.
type InventorySummary struct {
	TotalProducts   int                    `json:"total_products"`
	TotalQuantity   int                    `json:"total_quantity"`
	TotalCostValue  decimal.Decimal        `json:"total_cost_value"`
	TotalSaleValue  decimal.Decimal        `json:"total_sale_value"`
	ProjectedProfit decimal.Decimal        `json:"projected_profit"`
	Items           []InventoryItemSummary `json:"items"`
	GeneratedAt     time.Time              `json:"generated_at"`
}

// ReportFilter narrows the sales report.
type ReportFilter struct {
	From   *time.Time        `json:"from"`
	To     *time.Time        `json:"to"`
	Status *enums.SaleStatus `json:"status"`
}

// ReportSummary aggregates the filtered sales.
type ReportSummary struct {
	TotalSales    int             `json:"total_sales"`
	TotalQuantity int             `json:"total_quantity"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
}

// ProductBreakdown is one per-product row of the sales report.
type ProductBreakdown struct {
	ProductID uuid.UUID       `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
	Profit    decimal.Decimal `json:"profit"`
}

// SalesReport is the filtered sales read model.
type SalesReport struct {
	Filter      ReportFilter       `json:"filter"`
	Summary     ReportSummary      `json:"summary"`
	ByProduct   []ProductBreakdown `json:"by_product"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// NewService wires a reports service.
func NewService(p Params) (Service, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("reports db required")
	}
	if p.Cache == nil {
		return nil, fmt.Errorf("reports cache required")
	}
	if p.InventoryTTL <= 0 {
		p.InventoryTTL = 5 * time.Minute
	}
	if p.ReportTTL <= 0 {
		p.ReportTTL = 5 * time.Minute
	}
	return &service{
		db:           p.DB,
		cache:        p.Cache,
		inventoryTTL: p.InventoryTTL,
		reportTTL:    p.ReportTTL,
		logg:         p.Logg,
	}, nil
}

// InventorySummaryKey is the cache key invalidated on sale completion.
func InventorySummaryKey(c *cache.Cache) string {
	return c.Key("inventory", "summary")
}

// SalesReportPrefix covers every cached sales report variant.
func SalesReportPrefix(c *cache.Cache) string {
	return c.Key("report", "sales")
}

func (s *service) InventorySummary(ctx context.Context) (*InventorySummary, error) {
	var summary InventorySummary
	err := s.cache.GetOrCompute(ctx, InventorySummaryKey(s.cache), s.inventoryTTL, &summary,
		func(ctx context.Context) (any, error) {
			return s.computeInventorySummary(ctx)
		})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *service) computeInventorySummary(ctx context.Context) (*InventorySummary, error) {
	type row struct {
		ProductID       uuid.UUID
		SKU             string
		Name            string
		Quantity        int
		MinStock        int
		TotalCost       decimal.Decimal
		TotalValue      decimal.Decimal
		ProjectedProfit decimal.Decimal
		LastMovementAt  *time.Time
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Table("stock_levels").
		Select(`stock_levels.product_id, products.sku, products.name,
			stock_levels.quantity, stock_levels.min_stock,
			stock_levels.total_cost, stock_levels.total_value,
			stock_levels.projected_profit, stock_levels.last_movement_at`).
		Joins("JOIN products ON products.id = stock_levels.product_id").
		Where("products.deleted_at IS NULL AND stock_levels.deleted_at IS NULL").
		Order("products.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "querying inventory summary")
	}

	summary := &InventorySummary{
		TotalCostValue:  decimal.Zero,
		TotalSaleValue:  decimal.Zero,
		ProjectedProfit: decimal.Zero,
		Items:           make([]InventoryItemSummary, 0, len(rows)),
		GeneratedAt:     time.Now().UTC(),
	}
	for _, r := range rows {
		summary.TotalProducts++
		summary.TotalQuantity += r.Quantity
		summary.TotalCostValue = summary.TotalCostValue.Add(r.TotalCost)
		summary.TotalSaleValue = summary.TotalSaleValue.Add(r.TotalValue)
		summary.ProjectedProfit = summary.ProjectedProfit.Add(r.ProjectedProfit)
		summary.Items = append(summary.Items, InventoryItemSummary{
			ProductID:       r.ProductID,
			SKU:             r.SKU,
			Name:            r.Name,
			Quantity:        r.Quantity,
			MinStock:        r.MinStock,
			TotalCost:       r.TotalCost,
			TotalValue:      r.TotalValue,
			ProjectedProfit: r.ProjectedProfit,
			LastMovementAt:  r.LastMovementAt,
		})
	}
	return summary, nil
}

func (s *service) SalesReport(ctx context.Context, filter ReportFilter) (*SalesReport, error) {
	key, err := s.reportKey(filter)
	if err != nil {
		return nil, err
	}

	var report SalesReport
	err = s.cache.GetOrCompute(ctx, key, s.reportTTL, &report,
		func(ctx context.Context) (any, error) {
			return s.computeSalesReport(ctx, filter)
		})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *service) reportKey(filter ReportFilter) (string, error) {
	raw, err := json.Marshal(filter)
	if err != nil {
		return "", errors.Wrap(errors.CodeInternal, err, "hashing report filter")
	}
	digest := md5.Sum(raw)
	return s.cache.Key("report", "sales", hex.EncodeToString(digest[:])), nil
}

func (s *service) computeSalesReport(ctx context.Context, filter ReportFilter) (*SalesReport, error) {
	status := enums.SaleStatusCompleted
	if filter.Status != nil {
		status = *filter.Status
	}

	salesQuery := s.db.WithContext(ctx).
		Table("sales").
		Where("sales.deleted_at IS NULL AND sales.status = ?", status)
	if filter.From != nil {
		salesQuery = salesQuery.Where("sales.created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		salesQuery = salesQuery.Where("sales.created_at < ?", *filter.To)
	}

	var headline struct {
		TotalSales  int
		TotalAmount decimal.Decimal
		TotalProfit decimal.Decimal
	}
	err := salesQuery.Session(&gorm.Session{}).
		Select("COUNT(*) AS total_sales, COALESCE(SUM(total_amount), 0) AS total_amount, COALESCE(SUM(profit_margin), 0) AS total_profit").
		Scan(&headline).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "aggregating sales")
	}

	type productRow struct {
		ProductID uuid.UUID
		SKU       string
		Name      string
		Quantity  int
		Amount    decimal.Decimal
		Profit    decimal.Decimal
	}
	itemsQuery := s.db.WithContext(ctx).
		Table("sale_items").
		Select(`sale_items.product_id, products.sku, products.name,
			COALESCE(SUM(sale_items.quantity), 0) AS quantity,
			COALESCE(SUM(sale_items.subtotal), 0) AS amount,
			COALESCE(SUM(sale_items.profit), 0) AS profit`).
		Joins("JOIN sales ON sales.id = sale_items.sale_id").
		Joins("JOIN products ON products.id = sale_items.product_id").
		Where("sales.deleted_at IS NULL AND sale_items.deleted_at IS NULL AND sales.status = ?", status).
		Group("sale_items.product_id, products.sku, products.name").
		Order("amount DESC")
	if filter.From != nil {
		itemsQuery = itemsQuery.Where("sales.created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		itemsQuery = itemsQuery.Where("sales.created_at < ?", *filter.To)
	}

	var productRows []productRow
	if err := itemsQuery.Scan(&productRows).Error; err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "aggregating sale items")
	}

	report := &SalesReport{
		Filter: filter,
		Summary: ReportSummary{
			TotalSales:  headline.TotalSales,
			TotalAmount: headline.TotalAmount,
			TotalProfit: headline.TotalProfit,
		},
		ByProduct:   make([]ProductBreakdown, 0, len(productRows)),
		GeneratedAt: time.Now().UTC(),
	}
	for _, r := range productRows {
		report.Summary.TotalQuantity += r.Quantity
		report.ByProduct = append(report.ByProduct, ProductBreakdown{
			ProductID: r.ProductID,
			SKU:       r.SKU,
			Name:      r.Name,
			Quantity:  r.Quantity,
			Amount:    r.Amount,
			Profit:    r.Profit,
		})
	}
	return report, nil
}
