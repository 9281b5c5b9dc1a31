package sales

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/lromero-dev/stockroom-backend/pkg/db"
	"github.com/lromero-dev/stockroom-backend/pkg/db/models"
	"github.com/lromero-dev/stockroom-backend/pkg/errors"
)

const codeDayFormat = "20060102"

// NextCode hands out the next sale code for the given day, formatted as
// SAL-YYYYMMDD-NNNN. The per-day counter row is locked FOR UPDATE inside the
// caller's transaction, so concurrent creations serialize on it and the
// sequence is gapless and collision-free within a day.
func NextCode(ctx context.Context, tx *gorm.DB, now time.Time) (string, error) {
	if tx == nil {
		return "", stderrors.New("transaction required")
	}
	day := now.Format(codeDayFormat)

	var counter models.SaleCodeCounter
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&counter, "day = ?", day).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		counter = models.SaleCodeCounter{Day: day}
		if createErr := tx.WithContext(ctx).Create(&counter).Error; createErr != nil {
			// A concurrent creator inserted the row first; fall back to locking it.
			if !dbpkg.IsUniqueViolation(createErr, "") {
				return "", errors.Wrap(errors.CodeInternal, createErr, "creating sale code counter")
			}
			err = tx.WithContext(ctx).
				Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&counter, "day = ?", day).Error
			if err != nil {
				return "", errors.Wrap(errors.CodeInternal, err, "locking sale code counter")
			}
		}
	} else if err != nil {
		if dbpkg.IsLockTimeout(err) {
			return "", errors.Wrap(errors.CodeLockTimeout, err, "sale code counter busy")
		}
		return "", errors.Wrap(errors.CodeInternal, err, "locking sale code counter")
	}

	counter.LastSeq++
	if saveErr := tx.WithContext(ctx).Save(&counter).Error; saveErr != nil {
		return "", errors.Wrap(errors.CodeInternal, saveErr, "advancing sale code counter")
	}

	return fmt.Sprintf("SAL-%s-%04d", day, counter.LastSeq), nil
}
