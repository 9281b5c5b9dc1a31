package controllers

import (
	"net/http"
	"strings"

	"github.com/lromero-dev/stockroom-backend/api/responses"
	"github.com/lromero-dev/stockroom-backend/api/validators"
	"github.com/lromero-dev/stockroom-backend/internal/reports"
	"github.com/lromero-dev/stockroom-backend/internal/stockledger"
	"github.com/lromero-dev/stockroom-backend/pkg/enums"
	pkgerrors "github.com/lromero-dev/stockroom-backend/pkg/errors"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
)

type adjustStockRequest struct {
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	Reference *string `json:"reference,omitempty"`
	Note      *string `json:"note,omitempty"`
}

func (p adjustStockRequest) toInput(r *http.Request) (stockledger.AdjustmentInput, error) {
	id, err := pathUUID(r, "productID")
	if err != nil {
		return stockledger.AdjustmentInput{}, err
	}
	actorID, err := actorFromRequest(r)
	if err != nil {
		return stockledger.AdjustmentInput{}, err
	}

	reference := enums.MovementReferenceManual
	if p.Reference != nil {
		parsed, err := enums.ParseMovementReference(strings.TrimSpace(*p.Reference))
		if err != nil {
			return stockledger.AdjustmentInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reference")
		}
		reference = parsed
	}

	return stockledger.AdjustmentInput{
		ProductID: id,
		Quantity:  p.Quantity,
		Reference: reference,
		Note:      p.Note,
		ActorID:   actorID,
	}, nil
}

// AddStock records a stock entry for a product.
func AddStock(svc stockledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		level, err := svc.AddStock(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, level)
	}
}

// RemoveStock records a stock exit for a product.
func RemoveStock(svc stockledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		level, err := svc.RemoveStock(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, level)
	}
}

// CheckAvailability reports whether the requested quantity is on hand.
// The answer is advisory; only a finalized sale actually reserves stock.
func CheckAvailability(svc stockledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quantity, err := validators.ParseQueryInt(r, "quantity", 1, 1, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		available, err := svc.CheckAvailability(r.Context(), id, quantity)
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInsufficientStock {
				responses.WriteSuccess(w, map[string]any{
					"available": false,
					"on_hand":   available,
					"requested": quantity,
				})
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"available": true,
			"on_hand":   available,
			"requested": quantity,
		})
	}
}

// ListMovements returns the append-only movement history for a product.
func ListMovements(svc stockledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		movements, err := svc.ListMovements(r.Context(), id, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, movements)
	}
}

// InventorySummary returns the cached whole-inventory read model.
func InventorySummary(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.InventorySummary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// StaleInventory lists ledger entries without movement inside the threshold.
func StaleInventory(svc stockledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := validators.ParseQueryInt(r, "days", 90, 1, 3650)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		levels, err := svc.FindStale(r.Context(), days)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, levels)
	}
}
