package payroll

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolride/billing-backend/internal/ledger"
	"github.com/schoolride/billing-backend/internal/ledger/ledgertest"
	"github.com/schoolride/billing-backend/pkg/db"
	"github.com/schoolride/billing-backend/pkg/db/models"
	"github.com/schoolride/billing-backend/pkg/enums"
	pkgerrors "github.com/schoolride/billing-backend/pkg/errors"
	"github.com/schoolride/billing-backend/pkg/outbox"
)

func line(recipient uuid.UUID, period, amount string, status enums.PayrollStatus) models.Payroll {
	return models.Payroll{
		ID:            uuid.New(),
		PaymentID:     uuid.New(),
		RecipientID:   recipient,
		RecipientRole: enums.PayrollRoleDriver,
		Amount:        decimal.RequireFromString(amount),
		Status:        status,
		BillingPeriod: period,
	}
}

func TestSummarizeGroupsNewestFirst(t *testing.T) {
	r := uuid.New()
	rows := []models.Payroll{
		line(r, "August 2025", "1000", enums.PayrollStatusCompleted),
		line(r, "October 2025", "1995", enums.PayrollStatusPending),
		line(r, "October 2025", "1995", enums.PayrollStatusCompleted),
		line(r, "December 2024", "500", enums.PayrollStatusPending),
	}

	got := Summarize(rows)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"October 2025", "August 2025", "December 2024"},
		[]string{got[0].BillingPeriod, got[1].BillingPeriod, got[2].BillingPeriod})

	oct := got[0]
	assert.True(t, oct.Completed.Equal(decimal.RequireFromString("1995")))
	assert.True(t, oct.Pending.Equal(decimal.RequireFromString("1995")))
	assert.True(t, oct.Total.Equal(decimal.RequireFromString("3990")))
	assert.Equal(t, 2, oct.Lines)

	assert.Empty(t, Summarize(nil))
}

func TestMonthlySummaryAndComplete(t *testing.T) {
	conn := ledgertest.Open(t)
	repo := ledger.NewRepository(conn)
	svc, err := NewService(db.NewFromConn(conn), repo, outbox.NewService(outbox.NewRepository(conn), nil), nil)
	require.NoError(t, err)
	ctx := context.Background()

	recipient := uuid.New()
	first := line(recipient, "October 2025", "1995", enums.PayrollStatusPending)
	second := line(recipient, "September 2025", "855", enums.PayrollStatusPending)
	require.NoError(t, repo.CreatePayroll(ctx, &first))
	require.NoError(t, repo.CreatePayroll(ctx, &second))

	done, err := svc.Complete(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, done.AlreadyCompleted)
	assert.Equal(t, enums.PayrollStatusCompleted, done.Payroll.Status)
	require.NotNil(t, done.Payroll.CompletedAt)

	again, err := svc.Complete(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyCompleted)

	var events int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventPayrollComplete).Count(&events).Error)
	assert.EqualValues(t, 1, events)

	summary, err := svc.MonthlySummary(ctx, recipient)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, "October 2025", summary[0].BillingPeriod)
	assert.True(t, summary[0].Completed.Equal(decimal.RequireFromString("1995")))
	assert.True(t, summary[1].Pending.Equal(decimal.RequireFromString("855")))

	_, err = svc.Complete(ctx, uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = svc.MonthlySummary(ctx, uuid.Nil)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
