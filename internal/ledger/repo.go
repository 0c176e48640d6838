package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/schoolride/billing-backend/pkg/db"
	"github.com/schoolride/billing-backend/pkg/db/models"
	"github.com/schoolride/billing-backend/pkg/enums"
)

// ErrDuplicatePayment is returned when (child_id, billing_period) already exists.
var ErrDuplicatePayment = errors.New("payment already exists for child and billing period")

const (
	paymentPeriodConstraint = "payments_child_period_key"
	payrollRoleConstraint   = "payrolls_payment_role_key"
)

// ErrDuplicatePayroll is returned when a payment already has a payroll line for the role.
var ErrDuplicatePayroll = errors.New("payroll already exists for payment and role")

// Repository is the ledger store: payments, payrolls and the enrollment rows
// billing reads from.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	ListBillableChildren(ctx context.Context) ([]models.Child, error)
	FindVan(ctx context.Context, id uuid.UUID) (*models.Van, error)
	SuspendChild(ctx context.Context, childID uuid.UUID) (bool, error)
	ReactivateChild(ctx context.Context, childID uuid.UUID) (bool, error)
	HasSuspendedDebt(ctx context.Context, childID uuid.UUID) (bool, error)

	PaymentExists(ctx context.Context, childID uuid.UUID, period string) (bool, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindPaymentBySessionID(ctx context.Context, sessionID string) (*models.Payment, error)
	AttachCheckoutSession(ctx context.Context, paymentID uuid.UUID, sessionID string) error
	MarkPaid(ctx context.Context, paymentID uuid.UUID, paidAt time.Time) (bool, error)
	MarkSuspended(ctx context.Context, paymentID uuid.UUID, suspendedAt time.Time) (bool, error)
	MarkSettled(ctx context.Context, paymentID uuid.UUID, settledAt time.Time) (bool, error)
	ListUnsettledForPeriod(ctx context.Context, period string) ([]models.Payment, error)
	ListPendingForPayer(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error)
	ListForPayerAndPeriod(ctx context.Context, payerID uuid.UUID, period string) ([]models.Payment, error)
	ListForPayer(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error)

	CreatePayroll(ctx context.Context, payroll *models.Payroll) error
	FindPayroll(ctx context.Context, id uuid.UUID) (*models.Payroll, error)
	CompletePayroll(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error)
	ListPayrollsForRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.Payroll, error)
	ListPayrollsForPayment(ctx context.Context, paymentID uuid.UUID) ([]models.Payroll, error)
}

func billableStatuses() []enums.ChildStatus {
	out := make([]enums.ChildStatus, 0, len(enums.ChildStatuses()))
	for _, status := range enums.ChildStatuses() {
		if status.Billable() {
			out = append(out, status)
		}
	}
	return out
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListBillableChildren(ctx context.Context) ([]models.Child, error) {
	var children []models.Child
	if err := r.db.WithContext(ctx).
		Where("status IN ?", billableStatuses()).
		Order("created_at ASC").
		Order("id ASC").
		Find(&children).Error; err != nil {
		return nil, err
	}
	return children, nil
}

func (r *repository) FindVan(ctx context.Context, id uuid.UUID) (*models.Van, error) {
	var van models.Van
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&van).Error; err != nil {
		return nil, err
	}
	return &van, nil
}

func (r *repository) SuspendChild(ctx context.Context, childID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Child{}).
		Where("id = ? AND status <> ?", childID, enums.ChildStatusInactive).
		Updates(map[string]any{
			"status":     enums.ChildStatusInactive,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

// ReactivateChild applies INACTIVE -> ACTIVE; other statuses are left alone.
func (r *repository) ReactivateChild(ctx context.Context, childID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Child{}).
		Where("id = ? AND status = ?", childID, enums.ChildStatusInactive).
		Updates(map[string]any{
			"status":     enums.ChildStatusActive,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

// HasSuspendedDebt reports whether the child still has an unpaid payment that
// caused a suspension.
func (r *repository) HasSuspendedDebt(ctx context.Context, childID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("child_id = ? AND status = ? AND suspended_at IS NOT NULL", childID, enums.PaymentStatusPending).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) PaymentExists(ctx context.Context, childID uuid.UUID, period string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("child_id = ? AND billing_period = ?", childID, period).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, paymentPeriodConstraint) || dbpkg.IsUniqueViolation(err, "payments.child_id") {
			return ErrDuplicatePayment
		}
		return err
	}
	return nil
}

func (r *repository) FindPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindPaymentBySessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("checkout_session_id = ?", sessionID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// AttachCheckoutSession stores the processor correlation id. Status is untouched.
func (r *repository) AttachCheckoutSession(ctx context.Context, paymentID uuid.UUID, sessionID string) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Updates(map[string]any{
			"checkout_session_id": sessionID,
			"updated_at":          time.Now().UTC(),
		}).Error
}

// MarkPaid applies PENDING -> PAID. It reports false when the row was already PAID
// (or missing), which callers treat as the idempotent no-op branch.
func (r *repository) MarkPaid(ctx context.Context, paymentID uuid.UUID, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", paymentID, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":     enums.PaymentStatusPaid,
			"paid_at":    paidAt,
			"updated_at": paidAt,
		})
	return res.RowsAffected > 0, res.Error
}

// MarkSuspended stamps an unpaid payment as the cause of a suspension. It reports
// false when the payment was already suspended or is no longer PENDING.
func (r *repository) MarkSuspended(ctx context.Context, paymentID uuid.UUID, suspendedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ? AND suspended_at IS NULL", paymentID, enums.PaymentStatusPending).
		Updates(map[string]any{
			"suspended_at": suspendedAt,
			"updated_at":   suspendedAt,
		})
	return res.RowsAffected > 0, res.Error
}

// MarkSettled claims a PAID payment for payroll; false means another run got there
// first or the payment is unpaid.
func (r *repository) MarkSettled(ctx context.Context, paymentID uuid.UUID, settledAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ? AND settled_at IS NULL", paymentID, enums.PaymentStatusPaid).
		Updates(map[string]any{
			"settled_at": settledAt,
			"updated_at": settledAt,
		})
	return res.RowsAffected > 0, res.Error
}

// ListUnsettledForPeriod returns the payments a settlement run still has to act on:
// PAID payments without payroll and PENDING payments not yet suspended.
func (r *repository) ListUnsettledForPeriod(ctx context.Context, period string) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).
		Where("billing_period = ? AND settled_at IS NULL AND (status = ? OR suspended_at IS NULL)", period, enums.PaymentStatusPaid).
		Order("created_at ASC").
		Order("id ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) ListPendingForPayer(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error) {
	return r.listPayments(ctx, r.db.Where("payer_id = ? AND status = ?", payerID, enums.PaymentStatusPending))
}

func (r *repository) ListForPayerAndPeriod(ctx context.Context, payerID uuid.UUID, period string) ([]models.Payment, error) {
	return r.listPayments(ctx, r.db.Where("payer_id = ? AND billing_period = ?", payerID, period))
}

func (r *repository) ListForPayer(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error) {
	return r.listPayments(ctx, r.db.Where("payer_id = ?", payerID))
}

func (r *repository) listPayments(ctx context.Context, scope *gorm.DB) ([]models.Payment, error) {
	var payments []models.Payment
	if err := scope.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) CreatePayroll(ctx context.Context, payroll *models.Payroll) error {
	if payroll.ID == uuid.Nil {
		payroll.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(payroll).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, payrollRoleConstraint) || dbpkg.IsUniqueViolation(err, "payrolls.payment_id") {
			return ErrDuplicatePayroll
		}
		return err
	}
	return nil
}

func (r *repository) FindPayroll(ctx context.Context, id uuid.UUID) (*models.Payroll, error) {
	var payroll models.Payroll
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payroll).Error; err != nil {
		return nil, err
	}
	return &payroll, nil
}

// CompletePayroll applies PENDING -> COMPLETED; false when already completed.
func (r *repository) CompletePayroll(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Payroll{}).
		Where("id = ? AND status = ?", id, enums.PayrollStatusPending).
		Updates(map[string]any{
			"status":       enums.PayrollStatusCompleted,
			"completed_at": completedAt,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) ListPayrollsForRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.Payroll, error) {
	var payrolls []models.Payroll
	if err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&payrolls).Error; err != nil {
		return nil, err
	}
	return payrolls, nil
}

func (r *repository) ListPayrollsForPayment(ctx context.Context, paymentID uuid.UUID) ([]models.Payroll, error) {
	var payrolls []models.Payroll
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("recipient_role ASC").
		Find(&payrolls).Error; err != nil {
		return nil, err
	}
	return payrolls, nil
}

// IsNotFound reports whether err is gorm's record-not-found.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
