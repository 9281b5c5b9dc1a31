package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/lromero-dev/stockroom-backend/api/responses"
	"github.com/lromero-dev/stockroom-backend/internal/reports"
	"github.com/lromero-dev/stockroom-backend/pkg/enums"
	pkgerrors "github.com/lromero-dev/stockroom-backend/pkg/errors"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
)

// SalesReport serves the cached sales aggregate for an optional date range
// and status filter. Dates use RFC 3339.
func SalesReport(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter reports.ReportFilter

		if from, err := queryTime(r, "from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if from != nil {
			filter.From = from
		}
		if to, err := queryTime(r, "to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if to != nil {
			filter.To = to
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseSaleStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}

		report, err := svc.SalesReport(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid timestamp").
			WithDetails(map[string]any{"field": key})
	}
	return &parsed, nil
}
