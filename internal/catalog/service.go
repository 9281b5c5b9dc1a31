package catalog

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lromero-dev/stockroom-backend/internal/audit"
	dbpkg "github.com/lromero-dev/stockroom-backend/pkg/db"
	"github.com/lromero-dev/stockroom-backend/pkg/db/models"
	"github.com/lromero-dev/stockroom-backend/pkg/enums"
	"github.com/lromero-dev/stockroom-backend/pkg/errors"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
)

// Service defines catalog operations.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error)
	ArchiveProduct(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) error
	Deactivate(ctx context.Context, ids []uuid.UUID) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Params wires the catalog service dependencies.
type Params struct {
	DB       txRunner
	Repo     Repository
	Recorder *audit.Recorder
	Logg     *logger.Logger
}

type service struct {
	db       txRunner
	repo     Repository
	recorder *audit.Recorder
	logg     *logger.Logger
}

// CreateProductInput captures a new catalog entry.
type CreateProductInput struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	SalePrice   decimal.Decimal `json:"sale_price"`
	MinStock    int             `json:"min_stock"`
	ActorID     *uuid.UUID      `json:"-"`
}

// UpdateProductInput carries the mutable product fields.
type UpdateProductInput struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	CostPrice   *decimal.Decimal `json:"cost_price"`
	SalePrice   *decimal.Decimal `json:"sale_price"`
	IsActive    *bool            `json:"is_active"`
	ActorID     *uuid.UUID       `json:"-"`
}

// NewService wires a catalog service.
func NewService(p Params) (Service, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("catalog db runner required")
	}
	if p.Repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{db: p.DB, repo: p.Repo, recorder: p.Recorder, logg: p.Logg}, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if input.SKU == "" {
		return nil, errors.New(errors.CodeValidation, "sku is required")
	}
	if input.Name == "" {
		return nil, errors.New(errors.CodeValidation, "name is required")
	}
	if input.CostPrice.IsNegative() || input.SalePrice.IsNegative() {
		return nil, errors.New(errors.CodeValidation, "prices must not be negative")
	}

	product := &models.Product{
		SKU:         input.SKU,
		Name:        input.Name,
		Description: input.Description,
		CostPrice:   input.CostPrice,
		SalePrice:   input.SalePrice,
		IsActive:    true,
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, product); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_products_sku") {
				return errors.New(errors.CodeConflict, fmt.Sprintf("sku %q already exists", input.SKU))
			}
			return errors.Wrap(errors.CodeInternal, err, "creating product")
		}
		level := &models.StockLevel{ProductID: product.ID, MinStock: input.MinStock}
		if err := tx.Create(level).Error; err != nil {
			return errors.Wrap(errors.CodeInternal, err, "creating stock level")
		}
		product.StockLevel = level
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     enums.AuditActionCreate,
		EntityType: "product",
		EntityID:   product.ID,
		ActorID:    input.ActorID,
		NewValues:  product,
	})

	return product, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *product

	if input.Name != nil {
		product.Name = *input.Name
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.CostPrice != nil {
		if input.CostPrice.IsNegative() {
			return nil, errors.New(errors.CodeValidation, "cost price must not be negative")
		}
		product.CostPrice = *input.CostPrice
	}
	if input.SalePrice != nil {
		if input.SalePrice.IsNegative() {
			return nil, errors.New(errors.CodeValidation, "sale price must not be negative")
		}
		product.SalePrice = *input.SalePrice
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "updating product")
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     enums.AuditActionUpdate,
		EntityType: "product",
		EntityID:   product.ID,
		ActorID:    input.ActorID,
		OldValues:  before,
		NewValues:  product,
	})

	return product, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("product %s not found", id))
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading product")
	}
	return product, nil
}

func (s *service) ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error) {
	products, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing products")
	}
	return products, nil
}

func (s *service) ArchiveProduct(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) error {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "archiving product")
	}
	s.recorder.Record(ctx, audit.Entry{
		Action:     enums.AuditActionDelete,
		EntityType: "product",
		EntityID:   product.ID,
		ActorID:    actorID,
		OldValues:  product,
	})
	return nil
}

func (s *service) Deactivate(ctx context.Context, ids []uuid.UUID) (int64, error) {
	count, err := s.repo.Deactivate(ctx, ids)
	if err != nil {
		return 0, errors.Wrap(errors.CodeInternal, err, "deactivating products")
	}
	return count, nil
}
