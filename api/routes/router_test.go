package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/schoolride/billing-backend/internal/billing"
	checkoutsvc "github.com/schoolride/billing-backend/internal/checkout"
	paymentsvc "github.com/schoolride/billing-backend/internal/payments"
	payrollsvc "github.com/schoolride/billing-backend/internal/payroll"
	"github.com/schoolride/billing-backend/internal/settlement"
	stripewebhook "github.com/schoolride/billing-backend/internal/webhooks/stripe"
	"github.com/schoolride/billing-backend/pkg/auth"
	"github.com/schoolride/billing-backend/pkg/config"
	"github.com/schoolride/billing-backend/pkg/db/models"
	"github.com/schoolride/billing-backend/pkg/enums"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubCheckout struct{}

func (stubCheckout) CreateSession(ctx context.Context, input checkoutsvc.CreateSessionInput) (*checkoutsvc.Session, error) {
	return &checkoutsvc.Session{SessionID: "cs_1", RedirectURL: "https://checkout.stripe.com/c/cs_1"}, nil
}

type stubPayments struct{}

func (stubPayments) VerifySession(ctx context.Context, payerID uuid.UUID, sessionID string) (*paymentsvc.ConfirmResult, error) {
	return &paymentsvc.ConfirmResult{Payment: &models.Payment{ID: uuid.New()}}, nil
}

func (stubPayments) Due(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error) {
	return nil, nil
}

func (stubPayments) History(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error) {
	return nil, nil
}

type stubPayroll struct{}

func (stubPayroll) MonthlySummary(ctx context.Context, recipientID uuid.UUID) ([]payrollsvc.PeriodSummary, error) {
	return nil, nil
}

func (stubPayroll) Complete(ctx context.Context, payrollID uuid.UUID) (*payrollsvc.CompleteResult, error) {
	return &payrollsvc.CompleteResult{Payroll: &models.Payroll{ID: payrollID}}, nil
}

type stubBilling struct{}

func (stubBilling) GenerateMonthlyFees(context.Context) (billing.GenerationResult, error) {
	return billing.GenerationResult{Period: "October 2025"}, nil
}

type stubSettlement struct{}

func (stubSettlement) SettlePeriod(ctx context.Context, period string) (settlement.Result, error) {
	return settlement.Result{Period: period}, nil
}

type stubWebhook struct{}

func (stubWebhook) HandleEvent(ctx context.Context, event *stripe.Event) (stripewebhook.Outcome, error) {
	return stripewebhook.OutcomeIgnored, nil
}

type stubGuard struct{}

func (stubGuard) CheckAndMark(context.Context, string) (bool, error) { return false, nil }
func (stubGuard) Delete(context.Context, string) error               { return nil }

type stubSigning struct{}

func (stubSigning) SigningSecret() string { return "whsec_test" }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "schoolride-auth"},
	}
}

func newTestRouter() http.Handler {
	return NewRouter(testConfig(), nil, stubPinger{}, stubPinger{}, Services{
		Checkout:      stubCheckout{},
		Payments:      stubPayments{},
		Payroll:       stubPayroll{},
		Billing:       stubBilling{},
		Settlement:    stubSettlement{},
		StripeWebhook: stubWebhook{},
		StripeClient:  stubSigning{},
		WebhookGuard:  stubGuard{},
	})
}

func tokenFor(t *testing.T, role enums.UserRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(testConfig().JWT, time.Now(), time.Hour, auth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthRoutesArePublic(t *testing.T) {
	router := newTestRouter()
	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
		if rec.Header().Get("X-Request-Id") == "" {
			t.Fatalf("%s: expected request id header", path)
		}
	}
}

func TestWebhookRouteSkipsJWT(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{}`)))
	// Reaches signature verification rather than the auth middleware.
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 from signature check, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestRouteAccessByRole(t *testing.T) {
	router := newTestRouter()
	payrollID := uuid.NewString()
	cases := []struct {
		name   string
		method string
		path   string
		body   string
		role   enums.UserRole
		want   int
	}{
		{name: "due anonymous", method: http.MethodGet, path: "/api/v1/payments/due", want: http.StatusUnauthorized},
		{name: "due parent", method: http.MethodGet, path: "/api/v1/payments/due", role: enums.UserRoleParent, want: http.StatusOK},
		{name: "history parent", method: http.MethodGet, path: "/api/v1/payments/history", role: enums.UserRoleParent, want: http.StatusOK},
		{name: "checkout driver", method: http.MethodPost, path: "/api/v1/payments/checkout", body: `{"payment_id":"` + uuid.NewString() + `"}`, role: enums.UserRoleDriver, want: http.StatusForbidden},
		{name: "checkout parent", method: http.MethodPost, path: "/api/v1/payments/checkout", body: `{"payment_id":"` + uuid.NewString() + `"}`, role: enums.UserRoleParent, want: http.StatusOK},
		{name: "verify parent", method: http.MethodPost, path: "/api/v1/payments/verify", body: `{"session_id":"cs_1"}`, role: enums.UserRoleParent, want: http.StatusOK},
		{name: "payroll driver", method: http.MethodGet, path: "/api/v1/payroll/summary", role: enums.UserRoleDriver, want: http.StatusOK},
		{name: "payroll owner", method: http.MethodGet, path: "/api/v1/payroll/summary", role: enums.UserRoleOwner, want: http.StatusOK},
		{name: "payroll parent", method: http.MethodGet, path: "/api/v1/payroll/summary", role: enums.UserRoleParent, want: http.StatusForbidden},
		{name: "generate parent", method: http.MethodPost, path: "/api/admin/v1/billing/generate", role: enums.UserRoleParent, want: http.StatusForbidden},
		{name: "generate admin", method: http.MethodPost, path: "/api/admin/v1/billing/generate", role: enums.UserRoleAdmin, want: http.StatusOK},
		{name: "settle admin", method: http.MethodPost, path: "/api/admin/v1/billing/settle", body: `{"period":"October 2025"}`, role: enums.UserRoleAdmin, want: http.StatusOK},
		{name: "complete admin", method: http.MethodPost, path: "/api/admin/v1/payrolls/" + payrollID + "/complete", role: enums.UserRoleAdmin, want: http.StatusOK},
		{name: "recipient summary admin", method: http.MethodGet, path: "/api/admin/v1/payroll/summary/" + uuid.NewString(), role: enums.UserRoleAdmin, want: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			if tc.role != "" {
				req.Header.Set("Authorization", "Bearer "+tokenFor(t, tc.role))
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d got %d (%s)", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}
