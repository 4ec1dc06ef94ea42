package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	affiliatedomain "github.com/flasti/ledger/internal/affiliate/domain"
	affiliaterepo "github.com/flasti/ledger/internal/affiliate/repository"
	auditdomain "github.com/flasti/ledger/internal/audit/domain"
	auditrepo "github.com/flasti/ledger/internal/audit/repository"
	auditservice "github.com/flasti/ledger/internal/audit/service"
	balancedomain "github.com/flasti/ledger/internal/balance/domain"
	balancerepo "github.com/flasti/ledger/internal/balance/repository"
	"github.com/flasti/ledger/internal/clock"
	commissiondomain "github.com/flasti/ledger/internal/commission/domain"
	commissionrepo "github.com/flasti/ledger/internal/commission/repository"
	commissionservice "github.com/flasti/ledger/internal/commission/service"
	"github.com/flasti/ledger/internal/config"
	eventsdomain "github.com/flasti/ledger/internal/events/domain"
	eventsrepo "github.com/flasti/ledger/internal/events/repository"
	eventsservice "github.com/flasti/ledger/internal/events/service"
	"github.com/flasti/ledger/internal/sale/domain"
	salerepo "github.com/flasti/ledger/internal/sale/repository"
)

type saleFixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	svc   domain.Service
}

func setupSaleService(t *testing.T) *saleFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	err = db.AutoMigrate(
		&affiliatedomain.Affiliate{},
		&domain.Sale{},
		&balancedomain.Account{},
		&balancedomain.Entry{},
		&commissiondomain.Rate{},
		&auditdomain.AuditLog{},
		&eventsdomain.OutboxEvent{},
	)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	guard := config.NewStaticGuardConfigHolder(config.DefaultGuardConfig())

	for level, bps := range map[int]int64{1: 5000, 2: 6000, 3: 7000} {
		rate := commissiondomain.Rate{ID: node.Generate(), Level: level, RateBps: bps}
		require.NoError(t, db.Create(&rate).Error)
	}

	auditSvc := auditservice.New(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
	})
	commissionSvc := commissionservice.New(commissionservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Guard: guard,
		Repo:  commissionrepo.Provide(),
		Audit: auditSvc,
	})
	publisher := eventsservice.New(eventsservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  eventsrepo.Provide(),
	})

	svc := New(Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Clock:         fake,
		Guard:         guard,
		Repo:          salerepo.Provide(),
		BalanceRepo:   balancerepo.Provide(),
		AffiliateRepo: affiliaterepo.Provide(),
		Commission:    commissionSvc,
		Publisher:     publisher,
		Audit:         auditSvc,
	})

	return &saleFixture{db: db, node: node, clock: fake, svc: svc}
}

func (f *saleFixture) seedAffiliate(t *testing.T, level int) *affiliatedomain.Affiliate {
	t.Helper()
	affiliate := &affiliatedomain.Affiliate{
		ID:     f.node.Generate(),
		Code:   fmt.Sprintf("code%d", f.node.Generate()),
		Name:   "Affiliate",
		Email:  fmt.Sprintf("aff%d@example.com", f.node.Generate()),
		Level:  level,
		Status: affiliatedomain.StatusActive,
	}
	require.NoError(t, f.db.Create(affiliate).Error)
	return affiliate
}

func (f *saleFixture) account(t *testing.T, affiliateID snowflake.ID) *balancedomain.Account {
	t.Helper()
	var account balancedomain.Account
	require.NoError(t, f.db.Where("affiliate_id = ?", affiliateID).First(&account).Error)
	return &account
}

func (f *saleFixture) attributedRequest(aff *affiliatedomain.Affiliate, txID string, grossCents int64) domain.RecordRequest {
	return domain.RecordRequest{
		TransactionID:     txID,
		ProductID:         "app-1",
		ProductName:       "App One",
		GrossCents:        grossCents,
		IPAddress:         "1.2.3.4",
		Provider:          "testpay",
		AffiliateID:       &aff.ID,
		AffiliateLevel:    aff.Level,
		AttributionSource: "token",
	}
}

func TestRecordCreditsCommission(t *testing.T) {
	f := setupSaleService(t)
	aff := f.seedAffiliate(t, 1)

	result, err := f.svc.Record(context.Background(), f.attributedRequest(aff, "TX1", 10000))
	require.NoError(t, err)
	assert.True(t, result.Created, "first delivery must create the sale")
	assert.Equal(t, int64(5000), result.Sale.CommissionCents)

	account := f.account(t, aff.ID)
	assert.Equal(t, int64(5000), account.CurrentCents)
	assert.Equal(t, int64(5000), account.LifetimeCreditedCents)

	var entries int64
	err = f.db.Model(&balancedomain.Entry{}).
		Where("affiliate_id = ? AND type = ?", aff.ID, balancedomain.EntryCredit).
		Count(&entries).Error
	require.NoError(t, err)
	assert.Equal(t, int64(1), entries, "expected 1 credit entry")

	var event eventsdomain.OutboxEvent
	err = f.db.Where("transaction_id = ?", "TX1").First(&event).Error
	require.NoError(t, err)
	assert.Equal(t, eventsdomain.TypeSaleRecorded, event.Type)
	assert.Equal(t, aff.ID.String(), event.Payload["affiliate_id"])
	assert.Equal(t, "App One", event.Payload["product_name"])
	assert.EqualValues(t, 10000, event.Payload["gross_cents"])
	assert.EqualValues(t, 5000, event.Payload["commission_cents"])
}

func TestRecordDuplicateIsNoop(t *testing.T) {
	f := setupSaleService(t)
	aff := f.seedAffiliate(t, 1)
	req := f.attributedRequest(aff, "TX1", 10000)

	first, err := f.svc.Record(context.Background(), req)
	require.NoError(t, err)
	second, err := f.svc.Record(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, second.Created, "second delivery must not create")
	assert.Equal(t, first.Sale.ID, second.Sale.ID, "duplicate returned a different sale")

	account := f.account(t, aff.ID)
	assert.Equal(t, int64(5000), account.CurrentCents, "duplicate delivery credited twice")
}

func TestRecordConcurrentDuplicates(t *testing.T) {
	f := setupSaleService(t)
	aff := f.seedAffiliate(t, 1)
	req := f.attributedRequest(aff, "TX1", 10000)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Record(context.Background(), req)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var sales int64
	require.NoError(t, f.db.Model(&domain.Sale{}).Where("transaction_id = ?", "TX1").Count(&sales).Error)
	assert.Equal(t, int64(1), sales, "expected 1 sale")
	account := f.account(t, aff.ID)
	assert.Equal(t, int64(5000), account.CurrentCents, "expected exactly one credit")
}

func TestRecordConcurrentDistinctSalesSum(t *testing.T) {
	f := setupSaleService(t)
	aff := f.seedAffiliate(t, 1)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Record(context.Background(), f.attributedRequest(aff, fmt.Sprintf("TX%d", i), 1000))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// 8 sales at $10 gross, 50% each.
	account := f.account(t, aff.ID)
	assert.Equal(t, int64(n*500), account.CurrentCents)
	assert.Equal(t, account.LifetimeCreditedCents-account.LifetimePaidCents, account.CurrentCents, "account invariant broken")
}

func TestRecordPromotesLevel(t *testing.T) {
	f := setupSaleService(t)
	aff := f.seedAffiliate(t, 1)

	// $100 at 50% crosses both the $20 and $30 lifetime thresholds.
	_, err := f.svc.Record(context.Background(), f.attributedRequest(aff, "TX1", 10000))
	require.NoError(t, err)

	var reloaded affiliatedomain.Affiliate
	require.NoError(t, f.db.First(&reloaded, "id = ?", aff.ID).Error)
	assert.Equal(t, 3, reloaded.Level)
}

func TestRecordUnattributed(t *testing.T) {
	f := setupSaleService(t)

	result, err := f.svc.Record(context.Background(), domain.RecordRequest{
		TransactionID: "TX1",
		ProductID:     "app-1",
		GrossCents:    10000,
		Provider:      "testpay",
	})
	require.NoError(t, err)
	assert.True(t, result.Created, "unattributed sale must still be recorded")
	assert.Nil(t, result.Sale.AffiliateID)
	assert.Zero(t, result.Sale.CommissionCents)

	var accounts int64
	require.NoError(t, f.db.Model(&balancedomain.Account{}).Count(&accounts).Error)
	assert.Zero(t, accounts, "unattributed sale must not create accounts")
}

func TestRecordValidation(t *testing.T) {
	f := setupSaleService(t)

	cases := []struct {
		name string
		req  domain.RecordRequest
		want error
	}{
		{"missing transaction", domain.RecordRequest{ProductID: "app", GrossCents: 100}, domain.ErrInvalidTransaction},
		{"missing product", domain.RecordRequest{TransactionID: "TX", GrossCents: 100}, domain.ErrInvalidProduct},
		{"zero amount", domain.RecordRequest{TransactionID: "TX", ProductID: "app"}, domain.ErrInvalidAmount},
		{"negative amount", domain.RecordRequest{TransactionID: "TX", ProductID: "app", GrossCents: -5}, domain.ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Record(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRefundReversesCommission(t *testing.T) {
	f := setupSaleService(t)
	aff := f.seedAffiliate(t, 1)

	_, err := f.svc.Record(context.Background(), f.attributedRequest(aff, "TX1", 10000))
	require.NoError(t, err)

	sale, err := f.svc.Refund(context.Background(), "TX1", "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, sale.Status)

	account := f.account(t, aff.ID)
	assert.Zero(t, account.CurrentCents, "reversal did not back out the credit")
	assert.Zero(t, account.LifetimeCreditedCents)

	var reversals int64
	err = f.db.Model(&balancedomain.Entry{}).
		Where("type = ?", balancedomain.EntryReversal).
		Count(&reversals).Error
	require.NoError(t, err)
	assert.Equal(t, int64(1), reversals, "expected 1 reversal entry")

	var event eventsdomain.OutboxEvent
	err = f.db.Where("transaction_id = ? AND type = ?", "TX1", eventsdomain.TypeSaleRefunded).First(&event).Error
	require.NoError(t, err)
	assert.Equal(t, aff.ID.String(), event.Payload["affiliate_id"])
	assert.Equal(t, "App One", event.Payload["product_name"])
	assert.EqualValues(t, 5000, event.Payload["commission_cents"])
}

func TestRefundTwice(t *testing.T) {
	f := setupSaleService(t)
	aff := f.seedAffiliate(t, 1)

	_, err := f.svc.Record(context.Background(), f.attributedRequest(aff, "TX1", 10000))
	require.NoError(t, err)
	_, err = f.svc.Refund(context.Background(), "TX1", "")
	require.NoError(t, err)
	_, err = f.svc.Refund(context.Background(), "TX1", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyRefunded)

	account := f.account(t, aff.ID)
	assert.Zero(t, account.CurrentCents, "double refund moved the balance")
}

func TestRefundUnknownSale(t *testing.T) {
	f := setupSaleService(t)
	_, err := f.svc.Refund(context.Background(), "NOPE", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
