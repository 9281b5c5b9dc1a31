package stockledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lromero-dev/stockroom-backend/pkg/db/models"
)

// Repository manages persistence for ledger entries and movements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// LockAndGet takes the row lock for the product's ledger entry. It is the
	// only sanctioned read before a quantity mutation and must run inside a
	// transaction.
	LockAndGet(ctx context.Context, productID uuid.UUID) (*models.StockLevel, error)
	Get(ctx context.Context, productID uuid.UUID) (*models.StockLevel, error)
	Create(ctx context.Context, level *models.StockLevel) error
	Save(ctx context.Context, level *models.StockLevel) error
	AppendMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovements(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockMovement, error)
	MovementSum(ctx context.Context, productID uuid.UUID) (int, error)
	FindStale(ctx context.Context, cutoff time.Time) ([]models.StockLevel, error)
	All(ctx context.Context) ([]models.StockLevel, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) LockAndGet(ctx context.Context, productID uuid.UUID) (*models.StockLevel, error) {
	var level models.StockLevel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&level, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &level, nil
}

func (r *repository) Get(ctx context.Context, productID uuid.UUID) (*models.StockLevel, error) {
	var level models.StockLevel
	if err := r.db.WithContext(ctx).
		First(&level, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &level, nil
}

func (r *repository) Create(ctx context.Context, level *models.StockLevel) error {
	return r.db.WithContext(ctx).Create(level).Error
}

func (r *repository) Save(ctx context.Context, level *models.StockLevel) error {
	return r.db.WithContext(ctx).Save(level).Error
}

func (r *repository) AppendMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovements(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockMovement, error) {
	query := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var movements []models.StockMovement
	if err := query.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *repository) MovementSum(ctx context.Context, productID uuid.UUID) (int, error) {
	var sum *int
	err := r.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Select("SUM(CASE WHEN direction = 'entry' THEN quantity ELSE -quantity END)").
		Where("product_id = ?", productID).
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

func (r *repository) FindStale(ctx context.Context, cutoff time.Time) ([]models.StockLevel, error) {
	var levels []models.StockLevel
	if err := r.db.WithContext(ctx).
		Where("last_movement_at IS NULL OR last_movement_at < ?", cutoff).
		Find(&levels).Error; err != nil {
		return nil, err
	}
	return levels, nil
}

func (r *repository) All(ctx context.Context) ([]models.StockLevel, error) {
	var levels []models.StockLevel
	if err := r.db.WithContext(ctx).Find(&levels).Error; err != nil {
		return nil, err
	}
	return levels, nil
}
