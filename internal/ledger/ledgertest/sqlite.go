// Package ledgertest opens an in-memory sqlite ledger with the billing tables,
// mirroring the postgres migrations closely enough for repository and service tests.
package ledgertest

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/schoolride/billing-backend/pkg/db/models"
	"github.com/schoolride/billing-backend/pkg/enums"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS vans (
		id TEXT PRIMARY KEY,
		owner_id TEXT,
		driver_id TEXT,
		driver_share_percent TEXT NOT NULL DEFAULT '0',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS children (
		id TEXT PRIMARY KEY,
		parent_id TEXT NOT NULL,
		van_id TEXT,
		fee_amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'NOT_ASSIGNED',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		child_id TEXT NOT NULL,
		payer_id TEXT NOT NULL,
		van_id TEXT NOT NULL,
		driver_id TEXT,
		amount TEXT NOT NULL,
		billing_period TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		driver_share_percent TEXT NOT NULL DEFAULT '0',
		checkout_session_id TEXT UNIQUE,
		created_at DATETIME,
		updated_at DATETIME,
		paid_at DATETIME,
		suspended_at DATETIME,
		settled_at DATETIME,
		UNIQUE (child_id, billing_period)
	)`,
	`CREATE TABLE IF NOT EXISTS payrolls (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		recipient_role TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		billing_period TEXT NOT NULL,
		created_at DATETIME,
		completed_at DATETIME,
		UNIQUE (payment_id, recipient_role)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
}

// Open returns a fresh in-memory database scoped to the running test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// a single connection keeps the shared in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// SeedVan inserts a van with the given owner, driver and driver share.
func SeedVan(t *testing.T, conn *gorm.DB, owner, driver *uuid.UUID, driverPercent string) models.Van {
	t.Helper()
	van := models.Van{
		ID:                 uuid.New(),
		OwnerID:            owner,
		DriverID:           driver,
		DriverSharePercent: decimal.RequireFromString(driverPercent),
	}
	require.NoError(t, conn.Create(&van).Error)
	return van
}

// SeedChild inserts a child riding vanID (nil for unassigned vans).
func SeedChild(t *testing.T, conn *gorm.DB, parent uuid.UUID, vanID *uuid.UUID, fee string, status enums.ChildStatus) models.Child {
	t.Helper()
	child := models.Child{
		ID:        uuid.New(),
		ParentID:  parent,
		VanID:     vanID,
		FeeAmount: decimal.RequireFromString(fee),
		Status:    status,
	}
	require.NoError(t, conn.Create(&child).Error)
	return child
}

// PaymentFixture describes a payment row; zero values get sensible defaults.
type PaymentFixture struct {
	Child         models.Child
	Van           models.Van
	Amount        string
	Period        string
	Status        enums.PaymentStatus
	SessionID     string
	CreatedAt     time.Time
	DriverPercent string
}

// SeedPayment inserts a payment row built from the fixture.
func SeedPayment(t *testing.T, conn *gorm.DB, f PaymentFixture) models.Payment {
	t.Helper()
	if f.Amount == "" {
		f.Amount = f.Child.FeeAmount.String()
	}
	if f.Status == "" {
		f.Status = enums.PaymentStatusPending
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	percent := f.Van.DriverSharePercent
	if f.DriverPercent != "" {
		percent = decimal.RequireFromString(f.DriverPercent)
	}
	payment := models.Payment{
		ID:                 uuid.New(),
		ChildID:            f.Child.ID,
		PayerID:            f.Child.ParentID,
		VanID:              f.Van.ID,
		DriverID:           f.Van.DriverID,
		Amount:             decimal.RequireFromString(f.Amount),
		BillingPeriod:      f.Period,
		Status:             f.Status,
		DriverSharePercent: percent,
		CreatedAt:          f.CreatedAt,
		UpdatedAt:          f.CreatedAt,
	}
	if f.Status == enums.PaymentStatusPaid {
		paidAt := f.CreatedAt.Add(time.Hour)
		payment.PaidAt = &paidAt
	}
	if f.SessionID != "" {
		session := f.SessionID
		payment.CheckoutSessionID = &session
	}
	require.NoError(t, conn.Create(&payment).Error)
	return payment
}

// Ptr returns a pointer to id.
func Ptr(id uuid.UUID) *uuid.UUID {
	return &id
}
