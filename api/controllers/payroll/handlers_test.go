package payroll

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schoolride/billing-backend/api/middleware"
	payrollsvc "github.com/schoolride/billing-backend/internal/payroll"
	"github.com/schoolride/billing-backend/pkg/db/models"
	"github.com/schoolride/billing-backend/pkg/enums"
	pkgerrors "github.com/schoolride/billing-backend/pkg/errors"
)

type fakePayroll struct {
	recipient uuid.UUID
	completed uuid.UUID
	err       error
}

func (f *fakePayroll) MonthlySummary(ctx context.Context, recipientID uuid.UUID) ([]payrollsvc.PeriodSummary, error) {
	f.recipient = recipientID
	if f.err != nil {
		return nil, f.err
	}
	return []payrollsvc.PeriodSummary{{
		BillingPeriod: "October 2025",
		Completed:     decimal.Zero,
		Pending:       decimal.RequireFromString("1995"),
		Total:         decimal.RequireFromString("1995"),
		Lines:         1,
	}}, nil
}

func (f *fakePayroll) Complete(ctx context.Context, payrollID uuid.UUID) (*payrollsvc.CompleteResult, error) {
	f.completed = payrollID
	if f.err != nil {
		return nil, f.err
	}
	now := time.Now().UTC()
	return &payrollsvc.CompleteResult{Payroll: &models.Payroll{
		ID:          payrollID,
		Status:      enums.PayrollStatusCompleted,
		Amount:      decimal.RequireFromString("1995"),
		CompletedAt: &now,
	}}, nil
}

func withRouteParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestSummaryUsesCallerIdentity(t *testing.T) {
	svc := &fakePayroll{}
	driver := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payroll/summary", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), driver.String()))

	rec := httptest.NewRecorder()
	Summary(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.recipient != driver {
		t.Fatalf("expected recipient %s got %s", driver, svc.recipient)
	}
	if !strings.Contains(rec.Body.String(), `"billing_period":"October 2025"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestSummaryRequiresIdentity(t *testing.T) {
	rec := httptest.NewRecorder()
	Summary(&fakePayroll{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestRecipientSummaryParsesPath(t *testing.T) {
	svc := &fakePayroll{}
	owner := uuid.New()

	rec := httptest.NewRecorder()
	RecipientSummary(svc, nil).ServeHTTP(rec, withRouteParam(httptest.NewRequest(http.MethodGet, "/", nil), "recipientId", owner.String()))
	if rec.Code != http.StatusOK || svc.recipient != owner {
		t.Fatalf("unexpected result %d recipient=%s", rec.Code, svc.recipient)
	}

	rec = httptest.NewRecorder()
	RecipientSummary(svc, nil).ServeHTTP(rec, withRouteParam(httptest.NewRequest(http.MethodGet, "/", nil), "recipientId", "bad"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestComplete(t *testing.T) {
	svc := &fakePayroll{}
	id := uuid.New()

	rec := httptest.NewRecorder()
	Complete(svc, nil).ServeHTTP(rec, withRouteParam(httptest.NewRequest(http.MethodPost, "/", nil), "payrollId", id.String()))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.completed != id {
		t.Fatalf("expected payroll %s completed", id)
	}
	if !strings.Contains(rec.Body.String(), `"status":"COMPLETED"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	missing := &fakePayroll{err: pkgerrors.New(pkgerrors.CodeNotFound, "payroll not found")}
	Complete(missing, nil).ServeHTTP(rec, withRouteParam(httptest.NewRequest(http.MethodPost, "/", nil), "payrollId", id.String()))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}
