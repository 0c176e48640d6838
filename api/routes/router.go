package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/schoolride/billing-backend/api/controllers"
	admincontrollers "github.com/schoolride/billing-backend/api/controllers/admin"
	paymentcontrollers "github.com/schoolride/billing-backend/api/controllers/payments"
	payrollcontrollers "github.com/schoolride/billing-backend/api/controllers/payroll"
	webhookcontrollers "github.com/schoolride/billing-backend/api/controllers/webhooks"
	"github.com/schoolride/billing-backend/api/middleware"
	"github.com/schoolride/billing-backend/internal/billing"
	checkoutsvc "github.com/schoolride/billing-backend/internal/checkout"
	paymentsvc "github.com/schoolride/billing-backend/internal/payments"
	payrollsvc "github.com/schoolride/billing-backend/internal/payroll"
	"github.com/schoolride/billing-backend/internal/settlement"
	"github.com/schoolride/billing-backend/pkg/config"
	"github.com/schoolride/billing-backend/pkg/db/models"
	"github.com/schoolride/billing-backend/pkg/enums"
	"github.com/schoolride/billing-backend/pkg/logger"
)

type PaymentsService interface {
	VerifySession(ctx context.Context, payerID uuid.UUID, sessionID string) (*paymentsvc.ConfirmResult, error)
	Due(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error)
	History(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error)
}

type PayrollService interface {
	MonthlySummary(ctx context.Context, recipientID uuid.UUID) ([]payrollsvc.PeriodSummary, error)
	Complete(ctx context.Context, payrollID uuid.UUID) (*payrollsvc.CompleteResult, error)
}

type FeeGenerator interface {
	GenerateMonthlyFees(ctx context.Context) (billing.GenerationResult, error)
}

type PeriodSettler interface {
	SettlePeriod(ctx context.Context, period string) (settlement.Result, error)
}

type WebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type SigningSecretSource interface {
	SigningSecret() string
}

// Services is everything the HTTP surface dispatches to.
type Services struct {
	Checkout      checkoutsvc.Service
	Payments      PaymentsService
	Payroll       PayrollService
	Billing       FeeGenerator
	Settlement    PeriodSettler
	StripeWebhook webhookcontrollers.StripeWebhookService
	StripeClient  SigningSecretSource
	WebhookGuard  WebhookGuard

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if svc.Metrics != nil {
		r.Handle("/metrics", svc.Metrics)
	}

	// Signed by Stripe, not by our identity service.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(svc.StripeWebhook, svc.StripeClient, svc.WebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleParent))
			r.Post("/checkout", paymentcontrollers.Checkout(svc.Checkout, logg))
			r.Post("/verify", paymentcontrollers.Verify(svc.Payments, logg))
			r.Get("/due", paymentcontrollers.Due(svc.Payments, logg))
			r.Get("/history", paymentcontrollers.History(svc.Payments, logg))
		})

		r.Route("/payroll", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleDriver, enums.UserRoleOwner))
			r.Get("/summary", payrollcontrollers.Summary(svc.Payroll, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))

		r.Route("/billing", func(r chi.Router) {
			r.Post("/generate", admincontrollers.GenerateFees(svc.Billing, logg))
			r.Post("/settle", admincontrollers.SettlePeriod(svc.Settlement, logg))
		})
		r.Post("/payrolls/{payrollId}/complete", payrollcontrollers.Complete(svc.Payroll, logg))
		r.Get("/payroll/summary/{recipientId}", payrollcontrollers.RecipientSummary(svc.Payroll, logg))
	})

	return r
}
