package admin

import (
	"context"
	"net/http"

	"github.com/schoolride/billing-backend/api/responses"
	"github.com/schoolride/billing-backend/api/validators"
	"github.com/schoolride/billing-backend/internal/billing"
	"github.com/schoolride/billing-backend/internal/settlement"
	"github.com/schoolride/billing-backend/pkg/logger"
)

type feeGenerator interface {
	GenerateMonthlyFees(ctx context.Context) (billing.GenerationResult, error)
}

type periodSettler interface {
	SettlePeriod(ctx context.Context, period string) (settlement.Result, error)
}

type settleRequest struct {
	Period string `json:"period" validate:"required,max=32"`
}

// GenerateFees triggers the monthly fee run for the current period. Per-child
// failures are reported in the body; the run itself still answers 200.
func GenerateFees(svc feeGenerator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		result, err := svc.GenerateMonthlyFees(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// SettlePeriod settles one named billing period, e.g. {"period":"October 2025"}.
func SettlePeriod(svc periodSettler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req settleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithBillingPeriod(ctx, req.Period)
		}
		result, err := svc.SettlePeriod(ctx, req.Period)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
