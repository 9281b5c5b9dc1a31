package sales

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lromero-dev/stockroom-backend/internal/audit"
	"github.com/lromero-dev/stockroom-backend/internal/catalog"
	"github.com/lromero-dev/stockroom-backend/internal/stockledger"
	"github.com/lromero-dev/stockroom-backend/pkg/db/models"
	"github.com/lromero-dev/stockroom-backend/pkg/enums"
	"github.com/lromero-dev/stockroom-backend/pkg/errors"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
	"github.com/lromero-dev/stockroom-backend/pkg/outbox"
	"github.com/lromero-dev/stockroom-backend/pkg/outbox/payloads"
)

// Service orchestrates the sale lifecycle. Every multi-entity mutation runs
// inside a single transaction: sale writes, ledger mutations and outbox rows
// commit together or not at all.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Sale, error)
	Finalize(ctx context.Context, saleID uuid.UUID) (*models.Sale, error)
	Cancel(ctx context.Context, saleID uuid.UUID, actorID *uuid.UUID) (*models.Sale, error)
	ForceFail(ctx context.Context, saleID uuid.UUID, reason string, attempts int) (*models.Sale, error)
	Get(ctx context.Context, saleID uuid.UUID) (*models.Sale, error)
	GetByCode(ctx context.Context, code string) (*models.Sale, error)
	List(ctx context.Context, filter ListFilter) ([]models.Sale, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ledgerWriter interface {
	CheckAvailability(ctx context.Context, productID uuid.UUID, quantity int) (int, error)
	DecreaseInTx(ctx context.Context, tx *gorm.DB, input stockledger.MovementInput) (*models.StockLevel, error)
}

// Params wires the sales service dependencies.
type Params struct {
	DB       txRunner
	Repo     Repository
	Catalog  catalog.Repository
	Ledger   ledgerWriter
	Outbox   outboxEmitter
	Recorder *audit.Recorder
	Logg     *logger.Logger
	Now      func() time.Time
}

type service struct {
	db       txRunner
	repo     Repository
	catalog  catalog.Repository
	ledger   ledgerWriter
	outbox   outboxEmitter
	recorder *audit.Recorder
	logg     *logger.Logger
	now      func() time.Time
}

// CreateItemInput is one requested line of a new sale.
type CreateItemInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// CreateInput captures a new sale request.
type CreateInput struct {
	Items   []CreateItemInput `json:"items"`
	ActorID *uuid.UUID        `json:"-"`
}

// NewService wires a sales service.
func NewService(p Params) (Service, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("sales db runner required")
	}
	if p.Repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if p.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	now := p.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		db:       p.DB,
		repo:     p.Repo,
		catalog:  p.Catalog,
		ledger:   p.Ledger,
		outbox:   p.Outbox,
		recorder: p.Recorder,
		logg:     p.Logg,
		now:      now,
	}, nil
}

// Create validates the requested items against catalog and stock, snapshots
// prices, persists the pending sale and queues finalization via the outbox.
// The availability check is advisory: stock is not reserved until finalize.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Sale, error) {
	if len(input.Items) == 0 {
		return nil, errors.New(errors.CodeValidation, "at least one item is required")
	}

	items := make([]models.SaleItem, 0, len(input.Items))
	for _, requested := range input.Items {
		if requested.Quantity <= 0 {
			return nil, errors.New(errors.CodeValidation, "item quantity must be positive")
		}

		product, err := s.catalog.GetByID(ctx, requested.ProductID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.New(errors.CodeNotFound,
					fmt.Sprintf("product %s not found", requested.ProductID))
			}
			return nil, errors.Wrap(errors.CodeInternal, err, "loading product")
		}
		if !product.IsActive {
			return nil, errors.New(errors.CodeValidation,
				fmt.Sprintf("product %s is inactive", product.SKU))
		}

		if _, err := s.ledger.CheckAvailability(ctx, requested.ProductID, requested.Quantity); err != nil {
			return nil, err
		}

		item := models.SaleItem{
			ProductID: product.ID,
			Quantity:  requested.Quantity,
			UnitPrice: product.SalePrice,
			UnitCost:  product.CostPrice,
		}
		item.CalculateDerived()
		items = append(items, item)
	}

	sale := &models.Sale{
		Status:  enums.SaleStatusPending,
		ActorID: input.ActorID,
		Items:   items,
	}
	sale.CalculateTotals()

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		code, err := NextCode(ctx, tx, s.now())
		if err != nil {
			return err
		}
		sale.Code = code

		if err := s.repo.WithTx(tx).Create(ctx, sale); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "creating sale")
		}

		lines := make([]payloads.SaleLine, 0, len(sale.Items))
		for _, item := range sale.Items {
			lines = append(lines, payloads.SaleLine{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				UnitCost:  item.UnitCost,
				Subtotal:  item.Subtotal,
			})
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventSaleCreated,
			AggregateType: enums.AggregateTypeSale,
			AggregateID:   sale.ID,
			Actor:         actorRef(input.ActorID),
			Version:       1,
			Data: payloads.SaleCreatedEvent{
				SaleID:      sale.ID,
				Code:        sale.Code,
				TotalAmount: sale.TotalAmount,
				Items:       lines,
				CreatedAt:   s.now(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     enums.AuditActionCreate,
		EntityType: "sale",
		EntityID:   sale.ID,
		ActorID:    input.ActorID,
		NewValues:  sale,
	})

	if s.logg != nil {
		s.logg.Info(s.logg.WithSaleCode(ctx, sale.Code), "sale created")
	}

	return sale, nil
}

// Finalize moves a pending sale through processing to completed, deducting
// stock under per-product row locks. Calling it on a non-pending sale is an
// idempotent no-op. On a retryable failure the transaction rolls back and the
// sale stays pending for the worker to retry; any other failure marks the
// sale failed before the error is surfaced.
func (s *service) Finalize(ctx context.Context, saleID uuid.UUID) (*models.Sale, error) {
	sale, err := s.Get(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != enums.SaleStatusPending {
		return sale, nil
	}

	var finalized *models.Sale
	txErr := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.LockAndGet(ctx, saleID)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "locking sale")
		}
		if current.Status != enums.SaleStatusPending {
			finalized = current
			return nil
		}

		current.Status = enums.SaleStatusProcessing
		if err := repo.Save(ctx, current); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "marking sale processing")
		}

		for _, item := range current.Items {
			if _, err := s.ledger.DecreaseInTx(ctx, tx, stockledger.MovementInput{
				ProductID:   item.ProductID,
				Quantity:    item.Quantity,
				Reference:   enums.MovementReferenceSale,
				ReferenceID: &current.ID,
				ActorID:     current.ActorID,
			}); err != nil {
				return err
			}
		}

		completedAt := s.now()
		current.Status = enums.SaleStatusCompleted
		current.CompletedAt = &completedAt
		if err := repo.Save(ctx, current); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "marking sale completed")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventSaleCompleted,
			AggregateType: enums.AggregateTypeSale,
			AggregateID:   current.ID,
			Version:       1,
			Data: payloads.SaleCompletedEvent{
				SaleID:       current.ID,
				Code:         current.Code,
				TotalAmount:  current.TotalAmount,
				ProfitMargin: current.ProfitMargin,
				CompletedAt:  completedAt,
			},
		}); err != nil {
			return err
		}

		finalized = current
		return nil
	})
	if txErr != nil {
		if !errors.IsRetryable(txErr) {
			if _, failErr := s.ForceFail(ctx, saleID, txErr.Error(), 0); failErr != nil && s.logg != nil {
				s.logg.Error(ctx, "marking sale failed after finalize error", failErr)
			}
		}
		return nil, txErr
	}

	if finalized.Status == enums.SaleStatusCompleted {
		s.recorder.Record(ctx, audit.Entry{
			Action:     enums.AuditActionUpdate,
			EntityType: "sale",
			EntityID:   finalized.ID,
			ActorID:    finalized.ActorID,
			OldValues:  map[string]any{"status": enums.SaleStatusPending},
			NewValues:  map[string]any{"status": finalized.Status, "completed_at": finalized.CompletedAt},
		})
		if s.logg != nil {
			s.logg.Info(s.logg.WithSaleCode(ctx, finalized.Code), "sale completed")
		}
	}

	return finalized, nil
}

// Cancel is legal only from pending or failed.
func (s *service) Cancel(ctx context.Context, saleID uuid.UUID, actorID *uuid.UUID) (*models.Sale, error) {
	var cancelled *models.Sale
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sale, err := repo.LockAndGet(ctx, saleID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New(errors.CodeNotFound, fmt.Sprintf("sale %s not found", saleID))
			}
			return errors.Wrap(errors.CodeInternal, err, "locking sale")
		}

		if !sale.Status.CanTransitionTo(enums.SaleStatusCancelled) {
			return errors.New(errors.CodeStateConflict,
				fmt.Sprintf("cannot cancel sale in status %q", sale.Status))
		}

		cancelledAt := s.now()
		sale.Status = enums.SaleStatusCancelled
		sale.CancelledAt = &cancelledAt
		if err := repo.Save(ctx, sale); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "marking sale cancelled")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventSaleCancelled,
			AggregateType: enums.AggregateTypeSale,
			AggregateID:   sale.ID,
			Actor:         actorRef(actorID),
			Version:       1,
			Data: payloads.SaleCancelledEvent{
				SaleID:      sale.ID,
				Code:        sale.Code,
				CancelledAt: cancelledAt,
			},
		}); err != nil {
			return err
		}

		cancelled = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     enums.AuditActionUpdate,
		EntityType: "sale",
		EntityID:   cancelled.ID,
		ActorID:    actorID,
		NewValues:  map[string]any{"status": cancelled.Status, "cancelled_at": cancelled.CancelledAt},
	})

	return cancelled, nil
}

// ForceFail stamps the sale failed with the reason preserved verbatim. It is
// idempotent and deliberately ignores the usual transition rules for sales
// still in flight; completed and cancelled sales are left untouched.
func (s *service) ForceFail(ctx context.Context, saleID uuid.UUID, reason string, attempts int) (*models.Sale, error) {
	var failed *models.Sale
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sale, err := repo.LockAndGet(ctx, saleID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New(errors.CodeNotFound, fmt.Sprintf("sale %s not found", saleID))
			}
			return errors.Wrap(errors.CodeInternal, err, "locking sale")
		}

		if sale.Status == enums.SaleStatusCompleted || sale.Status == enums.SaleStatusCancelled {
			failed = sale
			return nil
		}

		alreadyFailed := sale.Status == enums.SaleStatusFailed
		sale.Status = enums.SaleStatusFailed
		sale.FailureReason = &reason
		if attempts > 0 {
			sale.Attempts = attempts
		}
		if err := repo.Save(ctx, sale); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "marking sale failed")
		}

		if !alreadyFailed {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.OutboxEventSaleFailed,
				AggregateType: enums.AggregateTypeSale,
				AggregateID:   sale.ID,
				Version:       1,
				Data: payloads.SaleFailedEvent{
					SaleID:   sale.ID,
					Code:     sale.Code,
					Reason:   reason,
					Attempts: sale.Attempts,
					FailedAt: s.now(),
				},
			}); err != nil {
				return err
			}
		}

		failed = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     enums.AuditActionUpdate,
		EntityType: "sale",
		EntityID:   failed.ID,
		NewValues:  map[string]any{"status": failed.Status, "failure_reason": reason},
	})

	return failed, nil
}

func (s *service) Get(ctx context.Context, saleID uuid.UUID) (*models.Sale, error) {
	sale, err := s.repo.GetByID(ctx, saleID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("sale %s not found", saleID))
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading sale")
	}
	return sale, nil
}

func (s *service) GetByCode(ctx context.Context, code string) (*models.Sale, error) {
	sale, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("sale %s not found", code))
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading sale")
	}
	return sale, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.Sale, error) {
	sales, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing sales")
	}
	return sales, nil
}

func actorRef(actorID *uuid.UUID) *outbox.ActorRef {
	if actorID == nil {
		return nil
	}
	return &outbox.ActorRef{UserID: *actorID}
}
