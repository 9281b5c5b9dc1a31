package stockledger

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lromero-dev/stockroom-backend/internal/audit"
	"github.com/lromero-dev/stockroom-backend/internal/catalog"
	dbpkg "github.com/lromero-dev/stockroom-backend/pkg/db"
	"github.com/lromero-dev/stockroom-backend/pkg/db/models"
	"github.com/lromero-dev/stockroom-backend/pkg/enums"
	"github.com/lromero-dev/stockroom-backend/pkg/errors"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
	"github.com/lromero-dev/stockroom-backend/pkg/outbox"
	"github.com/lromero-dev/stockroom-backend/pkg/outbox/payloads"
)

// Service defines ledger operations. AddStock and RemoveStock run in their
// own transaction; the InTx variants compose into a caller-owned one so a
// sale's stock exits commit or roll back with the sale itself.
type Service interface {
	AddStock(ctx context.Context, input AdjustmentInput) (*models.StockLevel, error)
	RemoveStock(ctx context.Context, input AdjustmentInput) (*models.StockLevel, error)
	IncreaseInTx(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.StockLevel, error)
	DecreaseInTx(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.StockLevel, error)
	CheckAvailability(ctx context.Context, productID uuid.UUID, quantity int) (int, error)
	ListMovements(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockMovement, error)
	FindStale(ctx context.Context, thresholdDays int) ([]models.StockLevel, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Params wires the ledger service dependencies.
type Params struct {
	DB       txRunner
	Repo     Repository
	Catalog  catalog.Repository
	Outbox   outboxEmitter
	Recorder *audit.Recorder
	Logg     *logger.Logger
}

type service struct {
	db       txRunner
	repo     Repository
	catalog  catalog.Repository
	outbox   outboxEmitter
	recorder *audit.Recorder
	logg     *logger.Logger
}

// MovementInput describes one ledger mutation.
type MovementInput struct {
	ProductID   uuid.UUID
	Quantity    int
	Reference   enums.MovementReference
	ReferenceID *uuid.UUID
	Note        *string
	ActorID     *uuid.UUID
}

// AdjustmentInput is a MovementInput for the standalone adjustment entry points.
type AdjustmentInput struct {
	ProductID uuid.UUID
	Quantity  int
	Reference enums.MovementReference
	Note      *string
	ActorID   *uuid.UUID
}

// NewService wires a ledger service.
func NewService(p Params) (Service, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("ledger db runner required")
	}
	if p.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if p.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{
		db:       p.DB,
		repo:     p.Repo,
		catalog:  p.Catalog,
		outbox:   p.Outbox,
		recorder: p.Recorder,
		logg:     p.Logg,
	}, nil
}

func (s *service) AddStock(ctx context.Context, input AdjustmentInput) (*models.StockLevel, error) {
	return s.adjust(ctx, input, s.IncreaseInTx, enums.MovementDirectionEntry)
}

func (s *service) RemoveStock(ctx context.Context, input AdjustmentInput) (*models.StockLevel, error) {
	return s.adjust(ctx, input, s.DecreaseInTx, enums.MovementDirectionExit)
}

func (s *service) adjust(
	ctx context.Context,
	input AdjustmentInput,
	mutate func(context.Context, *gorm.DB, MovementInput) (*models.StockLevel, error),
	direction enums.MovementDirection,
) (*models.StockLevel, error) {
	reference := input.Reference
	if reference == "" {
		reference = enums.MovementReferenceManual
	}
	if !reference.IsValid() {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("invalid movement reference %q", reference))
	}

	var level *models.StockLevel
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		updated, err := mutate(ctx, tx, MovementInput{
			ProductID: input.ProductID,
			Quantity:  input.Quantity,
			Reference: reference,
			Note:      input.Note,
			ActorID:   input.ActorID,
		})
		if err != nil {
			return err
		}
		level = updated

		if s.outbox != nil {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.OutboxEventStockAdjusted,
				AggregateType: enums.AggregateTypeProduct,
				AggregateID:   input.ProductID,
				Version:       1,
				Data: payloads.StockAdjustedEvent{
					ProductID:  input.ProductID,
					Direction:  direction.String(),
					Quantity:   input.Quantity,
					NewOnHand:  updated.Quantity,
					Reference:  reference.String(),
					AdjustedAt: time.Now().UTC(),
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     enums.AuditActionUpdate,
		EntityType: "stock_level",
		EntityID:   input.ProductID,
		ActorID:    input.ActorID,
		NewValues:  level,
	})

	return level, nil
}

// IncreaseInTx adds stock under the row lock, creating the ledger entry
// lazily on the first addition for a product.
func (s *service) IncreaseInTx(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.StockLevel, error) {
	if input.Quantity <= 0 {
		return nil, errors.New(errors.CodeValidation, "quantity must be positive")
	}

	product, err := s.loadProduct(ctx, tx, input.ProductID)
	if err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	level, err := repo.LockAndGet(ctx, input.ProductID)
	switch {
	case err == nil:
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		level = &models.StockLevel{ProductID: input.ProductID}
		if createErr := repo.Create(ctx, level); createErr != nil {
			return nil, errors.Wrap(errors.CodeInternal, createErr, "creating ledger entry")
		}
		// Lock the freshly inserted row so the invariant holds for this tx too.
		if level, err = repo.LockAndGet(ctx, input.ProductID); err != nil {
			return nil, s.lockError(err)
		}
	default:
		return nil, s.lockError(err)
	}

	level.Quantity += input.Quantity
	return s.applyMovement(ctx, repo, level, product, input, enums.MovementDirectionEntry)
}

// DecreaseInTx removes stock under the row lock, failing when the requested
// amount exceeds what is on hand.
func (s *service) DecreaseInTx(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.StockLevel, error) {
	if input.Quantity <= 0 {
		return nil, errors.New(errors.CodeValidation, "quantity must be positive")
	}

	product, err := s.loadProduct(ctx, tx, input.ProductID)
	if err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	level, err := repo.LockAndGet(ctx, input.ProductID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeInsufficientStock,
				fmt.Sprintf("product %s has no stock", input.ProductID))
		}
		return nil, s.lockError(err)
	}

	if input.Quantity > level.Quantity {
		return nil, errors.New(errors.CodeInsufficientStock,
			fmt.Sprintf("requested %d, only %d available", input.Quantity, level.Quantity)).
			WithDetails(map[string]any{
				"product_id": input.ProductID,
				"requested":  input.Quantity,
				"available":  level.Quantity,
			})
	}

	level.Quantity -= input.Quantity
	return s.applyMovement(ctx, repo, level, product, input, enums.MovementDirectionExit)
}

func (s *service) applyMovement(
	ctx context.Context,
	repo Repository,
	level *models.StockLevel,
	product *models.Product,
	input MovementInput,
	direction enums.MovementDirection,
) (*models.StockLevel, error) {
	now := time.Now().UTC()
	level.Recalculate(product.CostPrice, product.SalePrice)
	level.LastMovementAt = &now

	if err := repo.Save(ctx, level); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "saving ledger entry")
	}

	movement := &models.StockMovement{
		ProductID:   input.ProductID,
		Direction:   direction,
		Quantity:    input.Quantity,
		UnitCost:    product.CostPrice,
		Reference:   input.Reference,
		ReferenceID: input.ReferenceID,
		Note:        input.Note,
		ActorID:     input.ActorID,
	}
	if err := repo.AppendMovement(ctx, movement); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "appending movement")
	}

	return level, nil
}

// CheckAvailability returns the current on-hand quantity, or an error when it
// cannot cover the requested amount. The read is advisory: no lock is held,
// so a later locked decrease can still fail.
func (s *service) CheckAvailability(ctx context.Context, productID uuid.UUID, quantity int) (int, error) {
	level, err := s.repo.Get(ctx, productID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			if quantity > 0 {
				return 0, errors.New(errors.CodeInsufficientStock,
					fmt.Sprintf("product %s has no stock", productID))
			}
			return 0, nil
		}
		return 0, errors.Wrap(errors.CodeInternal, err, "reading ledger entry")
	}
	if quantity > level.Quantity {
		return level.Quantity, errors.New(errors.CodeInsufficientStock,
			fmt.Sprintf("requested %d, only %d available", quantity, level.Quantity))
	}
	return level.Quantity, nil
}

func (s *service) ListMovements(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockMovement, error) {
	movements, err := s.repo.ListMovements(ctx, productID, limit)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing movements")
	}
	return movements, nil
}

func (s *service) FindStale(ctx context.Context, thresholdDays int) ([]models.StockLevel, error) {
	if thresholdDays <= 0 {
		return nil, errors.New(errors.CodeValidation, "threshold days must be positive")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -thresholdDays)
	levels, err := s.repo.FindStale(ctx, cutoff)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "querying stale entries")
	}
	return levels, nil
}

func (s *service) loadProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	product, err := s.catalog.WithTx(tx).GetByID(ctx, productID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("product %s not found", productID))
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading product")
	}
	return product, nil
}

func (s *service) lockError(err error) error {
	if dbpkg.IsLockTimeout(err) {
		return errors.Wrap(errors.CodeLockTimeout, err, "ledger row lock not acquired in time")
	}
	return errors.Wrap(errors.CodeInternal, err, "locking ledger entry")
}

// MovementBalance returns the signed movement sum for reconciliation checks.
func MovementBalance(ctx context.Context, repo Repository, productID uuid.UUID) (int, error) {
	return repo.MovementSum(ctx, productID)
}
