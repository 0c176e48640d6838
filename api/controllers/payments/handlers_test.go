package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schoolride/billing-backend/api/middleware"
	"github.com/schoolride/billing-backend/internal/checkout"
	paymentsvc "github.com/schoolride/billing-backend/internal/payments"
	"github.com/schoolride/billing-backend/pkg/db/models"
	"github.com/schoolride/billing-backend/pkg/enums"
	pkgerrors "github.com/schoolride/billing-backend/pkg/errors"
)

type fakeCheckout struct {
	input checkout.CreateSessionInput
	err   error
}

func (f *fakeCheckout) CreateSession(ctx context.Context, input checkout.CreateSessionInput) (*checkout.Session, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return &checkout.Session{SessionID: "cs_test_1", RedirectURL: "https://checkout.stripe.com/c/cs_test_1"}, nil
}

type fakePayments struct {
	verified string
	verifier uuid.UUID
	verify   *paymentsvc.ConfirmResult
	err      error
	rows     []models.Payment
	payer    uuid.UUID
}

func (f *fakePayments) VerifySession(ctx context.Context, payerID uuid.UUID, sessionID string) (*paymentsvc.ConfirmResult, error) {
	f.verified = sessionID
	f.verifier = payerID
	return f.verify, f.err
}

func (f *fakePayments) Due(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error) {
	f.payer = payerID
	return f.rows, f.err
}

func (f *fakePayments) History(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error) {
	f.payer = payerID
	return f.rows, f.err
}

func authedRequest(method, target, body string, user uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := middleware.WithUserID(req.Context(), user.String())
	ctx = middleware.WithRole(ctx, enums.UserRoleParent)
	return req.WithContext(ctx)
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestCheckoutReturnsSession(t *testing.T) {
	svc := &fakeCheckout{}
	payer := uuid.New()
	paymentID := uuid.New()

	rec := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/payments/checkout", `{"payment_id":"`+paymentID.String()+`"}`, payer))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.input.PayerID != payer || svc.input.PaymentID != paymentID {
		t.Fatalf("unexpected service input %+v", svc.input)
	}
	var session checkout.Session
	decodeData(t, rec, &session)
	if session.SessionID != "cs_test_1" || session.RedirectURL == "" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestCheckoutErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		svcErr error
		want   int
	}{
		{name: "bad body", body: `{"payment_id":"nope"}`, want: http.StatusBadRequest},
		{name: "unknown payment", body: `{"payment_id":"` + uuid.NewString() + `"}`, svcErr: pkgerrors.New(pkgerrors.CodeNotFound, "payment not found"), want: http.StatusNotFound},
		{name: "foreign payment", body: `{"payment_id":"` + uuid.NewString() + `"}`, svcErr: pkgerrors.New(pkgerrors.CodeForbidden, "not yours"), want: http.StatusForbidden},
		{name: "already paid", body: `{"payment_id":"` + uuid.NewString() + `"}`, svcErr: pkgerrors.New(pkgerrors.CodeStateConflict, "paid"), want: http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Checkout(&fakeCheckout{err: tc.svcErr}, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/", tc.body, uuid.New()))
			if rec.Code != tc.want {
				t.Fatalf("expected %d got %d (%s)", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCheckoutRequiresIdentity(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"payment_id":"`+uuid.NewString()+`"}`))
	Checkout(&fakeCheckout{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestVerifySuccess(t *testing.T) {
	paymentID := uuid.New()
	svc := &fakePayments{verify: &paymentsvc.ConfirmResult{Payment: &models.Payment{ID: paymentID}}}

	payer := uuid.New()
	rec := httptest.NewRecorder()
	Verify(svc, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/payments/verify", `{"session_id":"cs_test_1"}`, payer))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.verified != "cs_test_1" || svc.verifier != payer {
		t.Fatalf("expected session and payer forwarded, got %q for %s", svc.verified, svc.verifier)
	}
	var body verifyResponse
	decodeData(t, rec, &body)
	if !body.Success || body.PaymentID != paymentID {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestVerifyNotCompleted(t *testing.T) {
	svc := &fakePayments{err: pkgerrors.New(pkgerrors.CodeValidation, "payment not completed").WithDetails(map[string]any{"payment_status": "unpaid"})}

	rec := httptest.NewRecorder()
	Verify(svc, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/", `{"session_id":"cs_test_1"}`, uuid.New()))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unpaid") {
		t.Fatalf("expected payment status details, got %s", rec.Body.String())
	}
}

func TestVerifyForeignSessionForbidden(t *testing.T) {
	svc := &fakePayments{err: pkgerrors.New(pkgerrors.CodeForbidden, "checkout session belongs to another payer")}

	rec := httptest.NewRecorder()
	Verify(svc, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/", `{"session_id":"cs_other"}`, uuid.New()))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}

func TestVerifyRejectsEmptySession(t *testing.T) {
	svc := &fakePayments{}
	rec := httptest.NewRecorder()
	Verify(svc, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/", `{"session_id":""}`, uuid.New()))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if svc.verified != "" {
		t.Fatalf("service should not be called")
	}
}

func TestDueAndHistoryUseCallerIdentity(t *testing.T) {
	payer := uuid.New()
	paidAt := time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC)
	svc := &fakePayments{rows: []models.Payment{
		{ID: uuid.New(), Amount: decimal.RequireFromString("3000"), BillingPeriod: "October 2025", Status: enums.PaymentStatusPending},
		{ID: uuid.New(), Amount: decimal.RequireFromString("3000"), BillingPeriod: "September 2025", Status: enums.PaymentStatusPaid, PaidAt: &paidAt},
	}}

	for name, handler := range map[string]http.HandlerFunc{"due": Due(svc, nil), "history": History(svc, nil)} {
		t.Run(name, func(t *testing.T) {
			svc.payer = uuid.Nil
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/", "", payer))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200 got %d", rec.Code)
			}
			if svc.payer != payer {
				t.Fatalf("expected payer %s got %s", payer, svc.payer)
			}
			var rows []PaymentResponse
			decodeData(t, rec, &rows)
			if len(rows) != 2 || rows[0].BillingPeriod != "October 2025" || !rows[0].Amount.Equal(decimal.NewFromInt(3000)) {
				t.Fatalf("unexpected rows %+v", rows)
			}
			if rows[1].PaidAt == nil {
				t.Fatalf("expected paid_at on settled row")
			}
		})
	}
}
