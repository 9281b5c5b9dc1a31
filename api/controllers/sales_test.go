package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lromero-dev/stockroom-backend/internal/sales"
	"github.com/lromero-dev/stockroom-backend/pkg/db/models"
	"github.com/lromero-dev/stockroom-backend/pkg/enums"
	pkgerrors "github.com/lromero-dev/stockroom-backend/pkg/errors"
)

func withSaleID(req *http.Request, saleID string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("saleID", saleID)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	return req.WithContext(ctx)
}

func TestCreateSaleHandler(t *testing.T) {
	logg := testLogger()
	productID := uuid.New()

	t.Run("accepted", func(t *testing.T) {
		stub := &stubSalesService{}
		body := `{"items":[{"product_id":"` + productID.String() + `","quantity":2}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(body))
		rec := httptest.NewRecorder()
		CreateSale(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", rec.Code)
		}
		if stub.createInput == nil {
			t.Fatal("expected Create to be invoked")
		}
		items := stub.createInput.Items
		if len(items) != 1 || items[0].ProductID != productID || items[0].Quantity != 2 {
			t.Fatalf("unexpected input: %+v", items)
		}
	})

	t.Run("empty items", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(`{"items":[]}`))
		rec := httptest.NewRecorder()
		CreateSale(&stubSalesService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for empty items, got %d", rec.Code)
		}
	})

	t.Run("invalid product id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sales",
			strings.NewReader(`{"items":[{"product_id":"nope","quantity":2}]}`))
		rec := httptest.NewRecorder()
		CreateSale(&stubSalesService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for invalid product id, got %d", rec.Code)
		}
	})

	t.Run("insufficient stock surfaces as conflict", func(t *testing.T) {
		stub := &stubSalesService{
			createErr: pkgerrors.New(pkgerrors.CodeInsufficientStock, "requested 10, only 5 available"),
		}
		body := `{"items":[{"product_id":"` + productID.String() + `","quantity":10}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(body))
		rec := httptest.NewRecorder()
		CreateSale(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}

func TestCancelSaleHandler(t *testing.T) {
	logg := testLogger()
	saleID := uuid.New()

	t.Run("success", func(t *testing.T) {
		stub := &stubSalesService{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/"+saleID.String()+"/cancel", nil)
		req = withSaleID(req, saleID.String())
		rec := httptest.NewRecorder()
		CancelSale(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if stub.cancelledID != saleID {
			t.Fatalf("cancel invoked with wrong id: %s", stub.cancelledID)
		}
	})

	t.Run("state conflict", func(t *testing.T) {
		stub := &stubSalesService{
			cancelErr: pkgerrors.New(pkgerrors.CodeStateConflict, `cannot cancel sale in status "completed"`),
		}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/"+saleID.String()+"/cancel", nil)
		req = withSaleID(req, saleID.String())
		rec := httptest.NewRecorder()
		CancelSale(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})
}

type stubSalesService struct {
	createInput *sales.CreateInput
	createErr   error
	cancelledID uuid.UUID
	cancelErr   error
}

func (s *stubSalesService) Create(_ context.Context, input sales.CreateInput) (*models.Sale, error) {
	s.createInput = &input
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &models.Sale{ID: uuid.New(), Status: enums.SaleStatusPending, Code: "SAL-20260314-0001"}, nil
}

func (s *stubSalesService) Finalize(context.Context, uuid.UUID) (*models.Sale, error) {
	panic("unimplemented")
}

func (s *stubSalesService) Cancel(_ context.Context, saleID uuid.UUID, _ *uuid.UUID) (*models.Sale, error) {
	s.cancelledID = saleID
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	return &models.Sale{ID: saleID, Status: enums.SaleStatusCancelled}, nil
}

func (s *stubSalesService) ForceFail(context.Context, uuid.UUID, string, int) (*models.Sale, error) {
	panic("unimplemented")
}

func (s *stubSalesService) Get(context.Context, uuid.UUID) (*models.Sale, error) {
	return nil, nil
}

func (s *stubSalesService) GetByCode(context.Context, string) (*models.Sale, error) {
	return nil, nil
}

func (s *stubSalesService) List(context.Context, sales.ListFilter) ([]models.Sale, error) {
	return nil, nil
}
